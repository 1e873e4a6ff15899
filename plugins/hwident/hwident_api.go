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

package hwident

import (
	"net"

	"github.com/kubermesh/ip-allocator/pkg/hwaddr"
)

// API defines methods provided by the hardware identity selector.
type API interface {
	// Select returns the canonical hardware address of this machine.
	Select() (hwaddr.Candidate, error)
}

// Enumerator lists network interfaces of the local machine.
// Interfaces without (or with malformed) hardware address may be included,
// they are filtered out by the selector.
type Enumerator interface {
	List() ([]Interface, error)
}

// Interface describes a single network interface.
type Interface struct {
	Name         string
	HardwareAddr net.HardwareAddr
}
