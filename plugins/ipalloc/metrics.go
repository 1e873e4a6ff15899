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
	"github.com/prometheus/client_golang/prometheus"
)

// results of Allocate as reported by the allocations counter
const (
	resultClaimed   = "claimed"
	resultExisting  = "existing"
	resultExhausted = "exhausted"
	resultError     = "error"
)

// Metrics collects statistics of address allocation.
type Metrics struct {
	// ClaimAttempts counts create-only writes sent to the store.
	ClaimAttempts prometheus.Counter
	// ClaimConflicts counts create-only writes rejected because the address
	// was claimed by another machine in the meantime.
	ClaimConflicts prometheus.Counter
	// Allocations counts calls of Allocate by result.
	Allocations *prometheus.CounterVec
}

// NewMetrics creates allocation metrics and registers them with reg, if not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ClaimAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ipalloc",
			Name:      "claim_attempts_total",
			Help:      "Number of create-only writes of address allocations.",
		}),
		ClaimConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ipalloc",
			Name:      "claim_conflicts_total",
			Help:      "Number of address claims lost to another machine.",
		}),
		Allocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ipalloc",
			Name:      "allocations_total",
			Help:      "Number of allocation requests by result.",
		}, []string{"result"}),
	}
	if reg != nil {
		reg.MustRegister(m.ClaimAttempts, m.ClaimConflicts, m.Allocations)
	}
	return m
}
