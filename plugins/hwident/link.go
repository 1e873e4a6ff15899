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

	"github.com/ligato/cn-infra/logging"
	"github.com/safchain/ethtool"
	"github.com/vishvananda/netlink"

	"github.com/kubermesh/ip-allocator/pkg/hwaddr"
)

// LinkEnumerator lists interfaces of the host network namespace over netlink.
type LinkEnumerator struct {
	Log logging.Logger

	// PermanentAddr makes the enumerator report the permanent (burned-in)
	// address of an interface whenever the driver exposes one, so that
	// a changed MAC address does not change the identity of the machine.
	PermanentAddr bool
}

// List returns all links known to the kernel, in kernel order.
func (e *LinkEnumerator) List() ([]Interface, error) {
	links, err := netlink.LinkList()
	if err != nil {
		return nil, err
	}

	var ethTool *ethtool.Ethtool
	if e.PermanentAddr {
		ethTool, err = ethtool.NewEthtool()
		if err != nil {
			e.Log.Warnf("Unable to init ethtool, using current hardware addresses: %v", err)
		} else {
			defer ethTool.Close()
		}
	}

	ifaces := make([]Interface, 0, len(links))
	for _, link := range links {
		attrs := link.Attrs()
		iface := Interface{
			Name:         attrs.Name,
			HardwareAddr: attrs.HardwareAddr,
		}
		if ethTool != nil {
			if permAddr := e.permanentAddr(ethTool, attrs.Name); permAddr != nil {
				iface.HardwareAddr = permAddr
			}
		}
		ifaces = append(ifaces, iface)
	}
	return ifaces, nil
}

// permanentAddr returns the permanent hardware address of the interface or nil
// if the driver does not report a usable one.
func (e *LinkEnumerator) permanentAddr(ethTool *ethtool.Ethtool, ifName string) net.HardwareAddr {
	permAddr, err := ethTool.PermAddr(ifName)
	if err != nil {
		e.Log.Debugf("No permanent address for interface %s: %v", ifName, err)
		return nil
	}
	hwAddr, err := net.ParseMAC(permAddr)
	if err != nil || !hwaddr.Usable(hwAddr) {
		return nil
	}
	return hwAddr
}
