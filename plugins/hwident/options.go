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
	"github.com/ligato/cn-infra/logging"

	"github.com/kubermesh/ip-allocator/pkg/hwaddr"
)

// NewSelector creates a new Selector with the provided Options.
func NewSelector(opts ...Option) *Selector {
	s := &Selector{}
	s.Criteria = hwaddr.DefaultCriteria()

	for _, o := range opts {
		o(s)
	}

	if s.Log == nil {
		s.Log = logging.ForPlugin("hwident")
	}
	if s.Enumerator == nil {
		s.Enumerator = &LinkEnumerator{Log: s.Log}
	}
	return s
}

// Option is a function that can be used in NewSelector to customize Selector.
type Option func(*Selector)

// UseDeps returns Option that can inject custom dependencies.
func UseDeps(f func(*Deps)) Option {
	return func(s *Selector) {
		f(&s.Deps)
	}
}
