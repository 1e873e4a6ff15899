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
	"github.com/pkg/errors"

	"github.com/kubermesh/ip-allocator/pkg/hwaddr"
)

// Selector picks the canonical hardware address among the interfaces
// returned by the Enumerator.
type Selector struct {
	Deps
}

// Deps lists dependencies of Selector.
type Deps struct {
	Log        logging.Logger
	Enumerator Enumerator
	Criteria   hwaddr.Criteria
}

// Select returns the canonical hardware address of this machine.
func (s *Selector) Select() (hwaddr.Candidate, error) {
	if s.Enumerator == nil {
		return hwaddr.Candidate{}, errors.New("no interface enumerator configured")
	}
	ifaces, err := s.Enumerator.List()
	if err != nil {
		return hwaddr.Candidate{}, errors.Wrap(err, "unable to list network interfaces")
	}

	candidates := make([]hwaddr.Candidate, 0, len(ifaces))
	for _, iface := range ifaces {
		if len(iface.HardwareAddr) > 0 && !hwaddr.Usable(iface.HardwareAddr) {
			s.Log.Warnf("Ignoring hardware address %v of interface %s", iface.HardwareAddr, iface.Name)
		}
		candidates = append(candidates, hwaddr.Candidate{
			Interface: iface.Name,
			Addr:      iface.HardwareAddr,
		})
	}

	selected, err := hwaddr.Select(candidates, s.Criteria)
	if err != nil {
		return hwaddr.Candidate{}, err
	}
	s.Log.Infof("Selected hardware address %s out of %d interfaces", selected, len(ifaces))
	return selected, nil
}
