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

package bootstrap

import (
	"github.com/ligato/cn-infra/logging"

	"github.com/kubermesh/ip-allocator/plugins/artifacts"
	"github.com/kubermesh/ip-allocator/plugins/clusterconf"
	"github.com/kubermesh/ip-allocator/plugins/hwident"
	"github.com/kubermesh/ip-allocator/plugins/ipalloc"
)

// NewBootstrap creates a new Bootstrap with the provided Options.
func NewBootstrap(opts ...Option) *Bootstrap {
	b := &Bootstrap{}

	for _, o := range opts {
		o(b)
	}

	if b.Log == nil {
		b.Log = logging.ForPlugin("bootstrap")
	}
	if b.Config == nil {
		b.Config = DefaultConfig()
	}

	b.conf = clusterconf.NewClusterConf(func(deps *clusterconf.Deps) {
		deps.Log = b.Log
		deps.DB = b.DB
		deps.KeyPrefix = b.Config.ConfigPrefix
	})
	b.selector = hwident.NewSelector(hwident.UseDeps(func(deps *hwident.Deps) {
		deps.Log = b.Log
		deps.Criteria = b.Config.Selection.Criteria
		deps.Enumerator = b.Enumerator
		if deps.Enumerator == nil {
			deps.Enumerator = &hwident.LinkEnumerator{
				Log:           deps.Log,
				PermanentAddr: b.Config.Selection.UsePermanentAddress,
			}
		}
	}))
	b.metrics = ipalloc.NewMetrics(b.Registerer)
	b.writer = artifacts.NewWriter(func(deps *artifacts.Deps) {
		deps.Log = b.Log
		if b.Config.TargetDir != "" {
			deps.TargetDir = b.Config.TargetDir
		}
	})
	return b
}

// Option is a function that can be used in NewBootstrap to customize Bootstrap.
type Option func(*Bootstrap)

// UseDeps returns Option that can inject custom dependencies.
func UseDeps(f func(*Deps)) Option {
	return func(b *Bootstrap) {
		f(&b.Deps)
	}
}
