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
	"net"
	"os"

	"github.com/ghodss/yaml"
	"github.com/pkg/errors"

	"github.com/kubermesh/ip-allocator/plugins/artifacts"
	"github.com/kubermesh/ip-allocator/plugins/clusterconf"
	"github.com/kubermesh/ip-allocator/plugins/ipalloc"
	"github.com/kubermesh/ip-allocator/pkg/hwaddr"
)

// DefaultConfigFile is the default location of the tool configuration.
const DefaultConfigFile = "/etc/ip-allocator/ip-allocator.yaml"

// Config represents configuration of the bootstrap pipeline.
type Config struct {
	Selection SelectionConfig `json:"selection"`

	// explicit sub-range of the IPv4 base network used as the pool
	PoolRangeStart string `json:"pool-range-start,omitempty"`
	PoolRangeEnd   string `json:"pool-range-end,omitempty"`

	AllocationPrefix string `json:"allocation-prefix,omitempty"`
	ConfigPrefix     string `json:"config-prefix,omitempty"`
	TargetDir        string `json:"target-dir,omitempty"`

	// local overrides of the base networks stored in the cluster configuration
	IPv6BaseNetwork string `json:"ipv6-base-network,omitempty"`
	IPv4BaseNetwork string `json:"ipv4-base-network,omitempty"`
}

// SelectionConfig configures the choice of the hardware identifier.
type SelectionConfig struct {
	hwaddr.Criteria

	// use the permanent (factory) address of interfaces when available
	UsePermanentAddress bool `json:"use-permanent-address"`
}

// DefaultConfig returns configuration with the default values.
func DefaultConfig() *Config {
	return &Config{
		Selection: SelectionConfig{
			Criteria: hwaddr.DefaultCriteria(),
		},
		AllocationPrefix: ipalloc.DefaultKeyPrefix,
		ConfigPrefix:     clusterconf.DefaultKeyPrefix,
		TargetDir:        artifacts.DefaultTargetDir,
	}
}

// LoadConfig reads the configuration from the given YAML file. Values missing
// in the file (or the whole file) default to DefaultConfig.
func LoadConfig(configFile string) (*Config, error) {
	cfg := DefaultConfig()
	if configFile == "" {
		return cfg, nil
	}
	yamlFile, err := ioutil.ReadFile(configFile)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err = yaml.Unmarshal(yamlFile, cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", configFile)
	}
	if err = cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid configuration %s", configFile)
	}
	return cfg, nil
}

// Validate checks values that can be verified without the cluster configuration.
func (c *Config) Validate() error {
	if (c.PoolRangeStart == "") != (c.PoolRangeEnd == "") {
		return errors.New("pool-range-start and pool-range-end must be set together")
	}
	for _, addr := range []string{c.PoolRangeStart, c.PoolRangeEnd} {
		if addr != "" && net.ParseIP(addr).To4() == nil {
			return errors.Errorf("invalid pool range address %q", addr)
		}
	}
	for _, network := range []string{c.IPv6BaseNetwork, c.IPv4BaseNetwork} {
		if network == "" {
			continue
		}
		if _, _, err := net.ParseCIDR(network); err != nil {
			return err
		}
	}
	return nil
}
