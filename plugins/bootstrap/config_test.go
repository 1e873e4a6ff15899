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
	"io/ioutil"
	"path/filepath"
	"testing"

	. "github.com/onsi/gomega"

	"github.com/kubermesh/ip-allocator/plugins/artifacts"
	"github.com/kubermesh/ip-allocator/plugins/ipalloc"
)

func writeConfig(t *testing.T, content string) string {
	file := filepath.Join(t.TempDir(), "ip-allocator.yaml")
	Expect(ioutil.WriteFile(file, []byte(content), 0644)).To(Succeed())
	return file
}

func TestLoadConfigDefaults(t *testing.T) {
	RegisterTestingT(t)

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	Expect(err).To(BeNil())
	Expect(cfg).To(Equal(DefaultConfig()))
	Expect(cfg.Selection.UniversalFirst).To(BeTrue())
	Expect(cfg.Selection.PhysicalFirst).To(BeTrue())
	Expect(cfg.Selection.PhysicalPrefixes).To(Equal([]string{"eth"}))
	Expect(cfg.AllocationPrefix).To(Equal(ipalloc.DefaultKeyPrefix))
	Expect(cfg.TargetDir).To(Equal(artifacts.DefaultTargetDir))
}

func TestLoadConfig(t *testing.T) {
	RegisterTestingT(t)

	cfg, err := LoadConfig(writeConfig(t, `
selection:
  physical-first: false
  physical-prefixes: [eth, enp]
  use-permanent-address: true
pool-range-start: 10.1.0.10
pool-range-end: 10.1.0.200
target-dir: /tmp/target
ipv6-base-network: fd65:7b9c:569::/48
`))
	Expect(err).To(BeNil())
	Expect(cfg.Selection.UniversalFirst).To(BeTrue())
	Expect(cfg.Selection.PhysicalFirst).To(BeFalse())
	Expect(cfg.Selection.PhysicalPrefixes).To(Equal([]string{"eth", "enp"}))
	Expect(cfg.Selection.UsePermanentAddress).To(BeTrue())
	Expect(cfg.PoolRangeStart).To(Equal("10.1.0.10"))
	Expect(cfg.PoolRangeEnd).To(Equal("10.1.0.200"))
	Expect(cfg.TargetDir).To(Equal("/tmp/target"))
	Expect(cfg.IPv6BaseNetwork).To(Equal("fd65:7b9c:569::/48"))
	Expect(cfg.ConfigPrefix).To(Equal(DefaultConfig().ConfigPrefix))
}

func TestLoadInvalidConfig(t *testing.T) {
	RegisterTestingT(t)

	_, err := LoadConfig(writeConfig(t, "selection: [not, a, map]"))
	Expect(err).ToNot(BeNil())

	_, err = LoadConfig(writeConfig(t, "pool-range-start: 10.1.0.1"))
	Expect(err).ToNot(BeNil())

	_, err = LoadConfig(writeConfig(t, "pool-range-start: 10.1.0.1\npool-range-end: fe80::1"))
	Expect(err).ToNot(BeNil())

	_, err = LoadConfig(writeConfig(t, "ipv4-base-network: 10.1.0.0/33"))
	Expect(err).ToNot(BeNil())
}

func TestLoadConfigPhysicalOnlyDefaultPrefixes(t *testing.T) {
	RegisterTestingT(t)

	cfg, err := LoadConfig(writeConfig(t, "selection:\n  physical-only: true"))
	Expect(err).To(BeNil())
	Expect(cfg.Selection.PhysicalOnly).To(BeTrue())
	Expect(cfg.Selection.IsPhysical("eth0")).To(BeTrue())

	// an empty list falls back to the default prefixes
	cfg, err = LoadConfig(writeConfig(t, "selection:\n  physical-only: true\n  physical-prefixes: []"))
	Expect(err).To(BeNil())
	Expect(cfg.Selection.IsPhysical("eth0")).To(BeTrue())
	Expect(cfg.Selection.IsPhysical("docker0")).To(BeFalse())
}
