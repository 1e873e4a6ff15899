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

package main

import (
	"bytes"
	"testing"

	"github.com/ligato/cn-infra/logging"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	. "github.com/onsi/gomega"
)

func TestParseLogLevel(t *testing.T) {
	RegisterTestingT(t)

	level, err := parseLogLevel("DEBUG")
	Expect(err).To(BeNil())
	Expect(level).To(Equal(logging.DebugLevel))

	level, err = parseLogLevel("warning")
	Expect(err).To(BeNil())
	Expect(level).To(Equal(logging.WarnLevel))

	_, err = parseLogLevel("verbose")
	Expect(err).ToNot(BeNil())
}

func TestCommandArgs(t *testing.T) {
	RegisterTestingT(t)

	for _, args := range [][]string{
		{"run"},
		{"run", "machine-a", "machine-b"},
		{"derive", "machine-a"},
		{"show", "machine-a", "machine-b"},
		{"--log-level", "verbose", "derive"},
	} {
		cmd := newRootCmd()
		cmd.SetArgs(args)
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		Expect(cmd.Execute()).ToNot(Succeed(), "args %v", args)
	}
}

func TestMetricLabels(t *testing.T) {
	RegisterTestingT(t)

	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_total"}, []string{"result"})
	registry.MustRegister(counter)
	counter.WithLabelValues("claimed").Inc()

	families, err := registry.Gather()
	Expect(err).To(BeNil())
	Expect(families).To(HaveLen(1))
	Expect(labels(families[0].GetMetric()[0])).To(Equal(`{result="claimed"}`))
	Expect(labels(&dto.Metric{})).To(BeEmpty())

	logMetrics(registry)
}
