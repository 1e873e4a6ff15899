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

package hwaddr

import (
	"encoding/binary"
	"fmt"
	"net"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// IdentifierLen is the length of a usable hardware address in bytes.
const IdentifierLen = 6

// localBit marks a locally administered address in the first octet.
const localBit = 0x02

// ErrNoCandidateFound is returned when no interface carries a usable hardware address.
var ErrNoCandidateFound = errors.New("no usable hardware address found")

// Candidate is a hardware address found on one of the local interfaces.
type Candidate struct {
	// Interface is the name of the interface, empty if unknown.
	Interface string
	// Addr is the hardware address of the interface.
	Addr net.HardwareAddr
}

// Value returns the 48-bit numeric value of the address.
func (c Candidate) Value() uint64 {
	if len(c.Addr) != IdentifierLen {
		return 0
	}
	var buf [8]byte
	copy(buf[2:], c.Addr)
	return binary.BigEndian.Uint64(buf[:])
}

// LocallyAdministered returns true if the address is not globally unique.
func (c Candidate) LocallyAdministered() bool {
	return len(c.Addr) > 0 && c.Addr[0]&localBit != 0
}

// String returns a human-readable representation of the candidate.
func (c Candidate) String() string {
	if c.Interface == "" {
		return c.Addr.String()
	}
	return fmt.Sprintf("%s (%s)", c.Addr, c.Interface)
}

// Criteria selects which ranking rules are applied.
type Criteria struct {
	// UniversalFirst ranks universally administered addresses first.
	UniversalFirst bool `json:"universal-first"`
	// PhysicalFirst ranks interfaces matching PhysicalPrefixes first.
	PhysicalFirst bool `json:"physical-first"`
	// PhysicalOnly drops every interface not matching PhysicalPrefixes.
	PhysicalOnly bool `json:"physical-only"`
	// PhysicalPrefixes lists name prefixes of physical interfaces.
	PhysicalPrefixes []string `json:"physical-prefixes"`
}

// DefaultPhysicalPrefixes is used when Criteria does not list any prefix.
var DefaultPhysicalPrefixes = []string{"eth"}

// DefaultCriteria returns the full multi-criterion ranking.
func DefaultCriteria() Criteria {
	return Criteria{
		UniversalFirst:   true,
		PhysicalFirst:    true,
		PhysicalPrefixes: append([]string(nil), DefaultPhysicalPrefixes...),
	}
}

// IsPhysical returns true if the interface name follows the physical-interface
// naming convention.
func (c Criteria) IsPhysical(ifName string) bool {
	prefixes := c.PhysicalPrefixes
	if len(prefixes) == 0 {
		prefixes = DefaultPhysicalPrefixes
	}
	for _, prefix := range prefixes {
		if strings.HasPrefix(ifName, prefix) {
			return true
		}
	}
	return false
}

// Usable returns true if the address can identify a machine: it has to be
// exactly 48 bits long and not all zeroes.
func Usable(addr net.HardwareAddr) bool {
	if len(addr) != IdentifierLen {
		return false
	}
	for _, b := range addr {
		if b != 0 {
			return true
		}
	}
	return false
}

// rankedCandidate is a candidate with its precomputed ranking key.
type rankedCandidate struct {
	Candidate
	local    int
	physical int
	value    uint64
}

func (rc *rankedCandidate) less(other *rankedCandidate) bool {
	if rc.local != other.local {
		return rc.local < other.local
	}
	if rc.physical != other.physical {
		return rc.physical < other.physical
	}
	if rc.value != other.value {
		return rc.value < other.value
	}
	// equal addresses on different interfaces (e.g. bond members)
	return rc.Interface < other.Interface
}

// Select returns the best candidate under the given criteria.
// Rules based on interface names are skipped when none of the usable
// candidates carries a name.
func Select(candidates []Candidate, criteria Criteria) (Candidate, error) {
	namesKnown := false
	for _, c := range candidates {
		if c.Interface != "" && Usable(c.Addr) {
			namesKnown = true
			break
		}
	}

	var ranked []*rankedCandidate
	for _, c := range candidates {
		if !Usable(c.Addr) {
			continue
		}
		physical := criteria.IsPhysical(c.Interface)
		if namesKnown && criteria.PhysicalOnly && !physical {
			continue
		}
		rc := &rankedCandidate{
			Candidate: Candidate{
				Interface: c.Interface,
				Addr:      append(net.HardwareAddr(nil), c.Addr...),
			},
			value: c.Value(),
		}
		if criteria.UniversalFirst && rc.LocallyAdministered() {
			rc.local = 1
		}
		if namesKnown && criteria.PhysicalFirst && !physical {
			rc.physical = 1
		}
		ranked = append(ranked, rc)
	}

	if len(ranked) == 0 {
		return Candidate{}, errors.Wrapf(ErrNoCandidateFound, "%d interfaces inspected", len(candidates))
	}

	sort.Slice(ranked, func(i, j int) bool {
		return ranked[i].less(ranked[j])
	})
	return ranked[0].Candidate, nil
}
