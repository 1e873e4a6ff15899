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
	"github.com/ligato/cn-infra/logging"
)

// NewAllocator creates a new Allocator with the provided Options.
func NewAllocator(opts ...Option) *Allocator {
	a := &Allocator{}
	a.KeyPrefix = DefaultKeyPrefix

	for _, o := range opts {
		o(a)
	}

	if a.Log == nil {
		a.Log = logging.ForPlugin("ipalloc")
	}
	if a.Metrics == nil {
		a.Metrics = NewMetrics(nil)
	}
	return a
}

// Option is a function that can be used in NewAllocator to customize Allocator.
type Option func(*Allocator)

// UseDeps returns Option that can inject custom dependencies.
func UseDeps(f func(*Deps)) Option {
	return func(a *Allocator) {
		f(&a.Deps)
	}
}
