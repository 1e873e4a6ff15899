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

package artifacts

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"path"

	"github.com/apparentlymart/go-cidr/cidr"
	"github.com/coreos/go-systemd/v22/unit"
	"github.com/pkg/errors"
	"gopkg.in/ini.v1"

	"github.com/kubermesh/ip-allocator/plugins/subnet"
)

const (
	unitsDir = "units"
	optsDir  = "opts"

	// DummyInterface is the name of the interface carrying the node addresses.
	DummyInterface = "dummy0"
	// ClusterInterfacePrefix is the name prefix of the per-cluster-subnet interfaces.
	ClusterInterfacePrefix = "cluster"

	// DNSMasqOptsFile is the path of the dnsmasq options file (relative to the target dir).
	DNSMasqOptsFile = optsDir + "/dnsmasq-opts.env"
	// OverlayOptsFile is the path of the IPv4 overlay options file.
	OverlayOptsFile = optsDir + "/v4-overlay-opts.env"
	// DockerOptsFile is the path of the docker options file.
	DockerOptsFile = optsDir + "/ip-allocator-docker-opts.env"
	// KubeletOptsFile is the path of the kubelet options file.
	KubeletOptsFile = optsDir + "/ip-allocator-kubelet-opts.env"
)

// init sets process-wide ini.v1 formatting, see the package documentation.
func init() {
	ini.PrettyFormat = false
	ini.PrettySection = false
}

// File is a rendered artifact.
type File struct {
	// Path relative to the target directory.
	Path string
	Data []byte
}

// Render builds all configuration artifacts of a node from its network
// hierarchy and allocated IPv4 address.
func Render(h *subnet.Hierarchy, ipv4Address net.IP) ([]*File, error) {
	if h == nil || h.Pod == nil || h.HostAddress == nil || h.OverlayAddress == nil {
		return nil, errors.New("incomplete network hierarchy")
	}
	if ipv4Address.To4() == nil {
		return nil, errors.Errorf("invalid IPv4 address: %v", ipv4Address)
	}

	files := []*File{
		{Path: UnitPath(DummyInterface + ".netdev"), Data: dummyNetDev()},
		{Path: UnitPath(DummyInterface + ".network"), Data: dummyNetwork(ipv4Address.To4(), h.HostAddress)},
	}
	for i, network := range h.Cluster {
		name := ClusterInterface(i)
		files = append(files, &File{Path: UnitPath(name + ".network"), Data: clusterNetwork(name, network)})
	}

	dnsmasq, err := dnsmasqOpts(h)
	if err != nil {
		return nil, err
	}
	overlay, err := envFile([][2]string{
		{"VIP_IP", h.OverlayAddress.String()},
	})
	if err != nil {
		return nil, err
	}
	docker, err := envFile([][2]string{
		{"DOCKER_OPT_BIP", "--ipv6 --fixed-cidr-v6=" + h.Pod.String()},
		{"DOCKER_OPT_IPMASQ", "--ip-masq=false"},
	})
	if err != nil {
		return nil, err
	}
	kubelet, err := envFile([][2]string{
		{"IPALLOC_HOST_IP", ipv4Address.To4().String()},
	})
	if err != nil {
		return nil, err
	}

	files = append(files,
		&File{Path: DNSMasqOptsFile, Data: dnsmasq},
		&File{Path: OverlayOptsFile, Data: overlay},
		&File{Path: DockerOptsFile, Data: docker},
		&File{Path: KubeletOptsFile, Data: kubelet},
	)
	return files, nil
}

// UnitPath returns the path of a networkd unit file relative to the target directory.
func UnitPath(name string) string {
	return path.Join(unitsDir, name)
}

// ClusterInterface returns the name of the interface serving the i-th cluster subnet.
func ClusterInterface(i int) string {
	return fmt.Sprintf("%s%d", ClusterInterfacePrefix, i)
}

func dummyNetDev() []byte {
	return serializeUnit([]*unit.UnitSection{
		section("NetDev", "Name", DummyInterface, "Kind", "dummy"),
	})
}

func dummyNetwork(ipv4Address, hostAddress net.IP) []byte {
	return serializeUnit([]*unit.UnitSection{
		section("Match", "Name", DummyInterface),
		section("Address", "Address", ipv4Address.String()+"/32"),
		section("Address", "Address", hostAddress.String()+"/128", "PreferredLifetime", "forever"),
		section("Network", "DHCP", "no", "IPForward", "ipv6"),
	})
}

func clusterNetwork(name string, network *net.IPNet) []byte {
	return serializeUnit([]*unit.UnitSection{
		section("Match", "Name", name),
		section("Address", "Address", network.String(), "PreferredLifetime", "0"),
		section("Network", "DHCP", "yes", "IPForward", "ipv6", "IPv6AcceptRA", "true"),
	})
}

// section builds a unit section from name/value pairs.
func section(name string, entries ...string) *unit.UnitSection {
	s := &unit.UnitSection{Section: name}
	for i := 0; i+1 < len(entries); i += 2 {
		s.Entries = append(s.Entries, &unit.UnitEntry{Name: entries[i], Value: entries[i+1]})
	}
	return s
}

func serializeUnit(sections []*unit.UnitSection) []byte {
	data, _ := io.ReadAll(unit.SerializeSections(sections))
	return data
}

func dnsmasqOpts(h *subnet.Hierarchy) ([]byte, error) {
	opts := [][2]string{{"VIP_IP", h.HostAddress.String()}}
	for i, network := range h.Cluster {
		interfaceIP, err := cidr.Host(network, 0)
		if err != nil {
			return nil, errors.Wrapf(err, "cluster subnet %v", network)
		}
		rangeStart, err := cidr.Host(network, 1)
		if err != nil {
			return nil, errors.Wrapf(err, "cluster subnet %v", network)
		}
		_, rangeEnd := cidr.AddressRange(network)
		prefixLen, _ := network.Mask.Size()

		key := fmt.Sprintf("CLUSTER%d_", i)
		opts = append(opts,
			[2]string{key + "INTERFACE_IP", interfaceIP.String()},
			[2]string{key + "RANGE_START", rangeStart.String()},
			[2]string{key + "RANGE_END", rangeEnd.String()},
			[2]string{key + "RANGE_NETMASK", fmt.Sprint(prefixLen)},
		)
	}
	return envFile(opts)
}

// envFile renders ordered KEY=value pairs.
func envFile(opts [][2]string) ([]byte, error) {
	cfg := ini.Empty()
	sec := cfg.Section(ini.DefaultSection)
	for _, opt := range opts {
		if _, err := sec.NewKey(opt[0], opt[1]); err != nil {
			return nil, errors.Wrapf(err, "option %s", opt[0])
		}
	}
	var buf bytes.Buffer
	if _, err := cfg.WriteTo(&buf); err != nil {
		return nil, errors.Wrap(err, "failed to render options")
	}
	return buf.Bytes(), nil
}
