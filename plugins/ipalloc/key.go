// Copyright (c) 2019 Cisco and/or its affiliates.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at:
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ipalloc

import (
	"net"
	"strings"
)

// Key returns the key under which the allocation of the given address is stored.
func Key(prefix string, ip net.IP) string {
	return normalizePrefix(prefix) + ip.String()
}

// ParseKey parses the address from the key of an allocation.
// Returns nil if parsing fails (invalid key).
func ParseKey(prefix, key string) net.IP {
	prefix = normalizePrefix(prefix)
	if !strings.HasPrefix(key, prefix) {
		return nil
	}
	ip := net.ParseIP(strings.TrimPrefix(key, prefix))
	if ip == nil {
		return nil
	}
	return ip.To4()
}

// normalizePrefix makes sure the prefix ends with a slash, so that listing
// of the prefix does not match keys of a sibling namespace.
func normalizePrefix(prefix string) string {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix
}
