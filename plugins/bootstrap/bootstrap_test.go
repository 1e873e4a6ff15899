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

package bootstrap_test

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ligato/cn-infra/logging/logrus"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	. "github.com/onsi/gomega"

	"github.com/kubermesh/ip-allocator/mock/broker"
	"github.com/kubermesh/ip-allocator/plugins/bootstrap"
	"github.com/kubermesh/ip-allocator/plugins/clusterconf"
	"github.com/kubermesh/ip-allocator/plugins/hwident"
	"github.com/kubermesh/ip-allocator/plugins/ipalloc"
	"github.com/kubermesh/ip-allocator/plugins/kvstore"
)

type enumerator []hwident.Interface

func (e enumerator) List() ([]hwident.Interface, error) {
	return e, nil
}

func mac(s string) net.HardwareAddr {
	addr, err := net.ParseMAC(s)
	if err != nil {
		panic(err)
	}
	return addr
}

var machine = enumerator{
	{Name: "lo"},
	{Name: "docker0", HardwareAddr: mac("02:42:ac:11:00:01")},
	{Name: "eth1", HardwareAddr: mac("00:16:3e:00:00:02")},
	{Name: "eth0", HardwareAddr: mac("02:00:00:00:00:01")},
}

func newStore() *broker.MockBroker {
	db := broker.NewMockBroker()
	Expect(db.Put(clusterconf.DefaultKeyPrefix+clusterconf.IPv6BaseNetworkKey, []byte("2001:db8::/32"))).To(Succeed())
	Expect(db.Put(clusterconf.DefaultKeyPrefix+clusterconf.IPv4BaseNetworkKey, []byte("10.1.0.0/24"))).To(Succeed())
	return db
}

type fixture struct {
	db        *broker.MockBroker
	registry  *prometheus.Registry
	targetDir string
	bootstrap *bootstrap.Bootstrap
}

func newFixture(t *testing.T, db *broker.MockBroker, configure func(*bootstrap.Config)) *fixture {
	f := &fixture{
		db:        db,
		registry:  prometheus.NewRegistry(),
		targetDir: t.TempDir(),
	}
	cfg := bootstrap.DefaultConfig()
	cfg.TargetDir = f.targetDir
	cfg.PoolRangeStart = "10.1.0.1"
	cfg.PoolRangeEnd = "10.1.0.2"
	if configure != nil {
		configure(cfg)
	}
	f.bootstrap = bootstrap.NewBootstrap(bootstrap.UseDeps(func(deps *bootstrap.Deps) {
		deps.Log = logrus.DefaultLogger()
		deps.Config = cfg
		if db != nil {
			deps.DB = db
		}
		deps.Enumerator = machine
		deps.Registerer = f.registry
	}))
	return f
}

func (f *fixture) writtenFiles() []string {
	var files []string
	filepath.Walk(f.targetDir, func(path string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			rel, _ := filepath.Rel(f.targetDir, path)
			files = append(files, rel)
		}
		return nil
	})
	return files
}

func TestRun(t *testing.T) {
	RegisterTestingT(t)
	ctx := context.Background()
	f := newFixture(t, newStore(), nil)

	result, err := f.bootstrap.Run(ctx, "machine-a")
	Expect(err).To(BeNil())
	Expect(result.Identifier.Interface).To(Equal("eth1"))
	Expect(result.Hierarchy.Node.String()).To(Equal("2001:db8:16:3e00:2::/80"))
	Expect(result.IPv4Address.String()).To(Equal("10.1.0.1"))
	Expect(result.Files).To(HaveLen(14))
	Expect(f.writtenFiles()).To(ConsistOf(result.Files))

	kubelet, err := os.ReadFile(filepath.Join(f.targetDir, "opts", "ip-allocator-kubelet-opts.env"))
	Expect(err).To(BeNil())
	Expect(string(kubelet)).To(Equal("IPALLOC_HOST_IP=10.1.0.1\n"))

	// second boot of the same machine
	puts := f.db.PutCount()
	result, err = f.bootstrap.Run(ctx, "machine-a")
	Expect(err).To(BeNil())
	Expect(result.IPv4Address.String()).To(Equal("10.1.0.1"))
	Expect(f.db.PutCount()).To(Equal(puts))

	expected := `
# HELP ipalloc_allocations_total Number of allocation requests by result.
# TYPE ipalloc_allocations_total counter
ipalloc_allocations_total{result="claimed"} 1
ipalloc_allocations_total{result="existing"} 1
# HELP ipalloc_claim_attempts_total Number of create-only writes of address allocations.
# TYPE ipalloc_claim_attempts_total counter
ipalloc_claim_attempts_total 1
`
	Expect(testutil.GatherAndCompare(f.registry, strings.NewReader(expected),
		"ipalloc_allocations_total", "ipalloc_claim_attempts_total")).To(Succeed())
}

func TestRunSharedPool(t *testing.T) {
	RegisterTestingT(t)
	ctx := context.Background()
	db := newStore()

	a, err := newFixture(t, db, nil).bootstrap.Run(ctx, "machine-a")
	Expect(err).To(BeNil())
	b, err := newFixture(t, db, nil).bootstrap.Run(ctx, "machine-b")
	Expect(err).To(BeNil())
	Expect(a.IPv4Address.String()).To(Equal("10.1.0.1"))
	Expect(b.IPv4Address.String()).To(Equal("10.1.0.2"))

	f := newFixture(t, db, nil)
	_, err = f.bootstrap.Run(ctx, "machine-c")
	Expect(errors.Is(err, ipalloc.ErrPoolExhausted)).To(BeTrue())
	Expect(f.writtenFiles()).To(BeEmpty())

	allocations, err := f.bootstrap.Allocations(ctx)
	Expect(err).To(BeNil())
	Expect(allocations).To(HaveLen(2))
	Expect(allocations[1].Identity).To(Equal("machine-b"))
}

func TestRunWholeNetworkPool(t *testing.T) {
	RegisterTestingT(t)

	f := newFixture(t, newStore(), func(cfg *bootstrap.Config) {
		cfg.PoolRangeStart = ""
		cfg.PoolRangeEnd = ""
		cfg.IPv4BaseNetwork = "192.168.10.0/30"
	})
	result, err := f.bootstrap.Run(context.Background(), "machine-a")
	Expect(err).To(BeNil())
	Expect(result.IPv4Address.String()).To(Equal("192.168.10.0"))
}

func TestRunFailuresWriteNothing(t *testing.T) {
	RegisterTestingT(t)
	ctx := context.Background()

	// missing cluster configuration
	f := newFixture(t, broker.NewMockBroker(), nil)
	_, err := f.bootstrap.Run(ctx, "machine-a")
	Expect(errors.Is(err, clusterconf.ErrNotConfigured)).To(BeTrue())
	Expect(f.writtenFiles()).To(BeEmpty())

	// store not reachable while allocating
	db := newStore()
	db.FailList(context.DeadlineExceeded)
	f = newFixture(t, db, nil)
	_, err = f.bootstrap.Run(ctx, "machine-a")
	Expect(errors.Is(err, kvstore.ErrStoreUnavailable)).To(BeTrue())
	Expect(f.writtenFiles()).To(BeEmpty())

	// no usable hardware address
	f = newFixture(t, newStore(), func(cfg *bootstrap.Config) {
		cfg.Selection.PhysicalOnly = true
		cfg.Selection.PhysicalPrefixes = []string{"enp"}
	})
	_, err = f.bootstrap.Run(ctx, "machine-a")
	Expect(err).ToNot(BeNil())
	Expect(f.writtenFiles()).To(BeEmpty())
	Expect(f.db.PutCount()).To(BeZero())

	// empty identity
	_, err = newFixture(t, newStore(), nil).bootstrap.Run(ctx, "")
	Expect(errors.Is(err, ipalloc.ErrEmptyIdentity)).To(BeTrue())
}

func TestDeriveWithoutStore(t *testing.T) {
	RegisterTestingT(t)

	f := newFixture(t, nil, func(cfg *bootstrap.Config) {
		cfg.IPv6BaseNetwork = "2001:db8::/32"
		cfg.Selection.UniversalFirst = false
	})
	result, err := f.bootstrap.Derive(context.Background())
	Expect(err).To(BeNil())
	// among physical interfaces the lowest address wins
	Expect(result.Identifier.Interface).To(Equal("eth1"))
	Expect(result.Hierarchy.Node.String()).To(Equal("2001:db8:16:3e00:2::/80"))
	Expect(result.IPv4Address).To(BeNil())
	Expect(f.writtenFiles()).To(BeEmpty())

	_, err = f.bootstrap.Run(context.Background(), "machine-a")
	Expect(err).ToNot(BeNil())
}

func TestShow(t *testing.T) {
	RegisterTestingT(t)
	ctx := context.Background()
	f := newFixture(t, newStore(), nil)

	_, found, err := f.bootstrap.Show(ctx, "machine-a")
	Expect(err).To(BeNil())
	Expect(found).To(BeFalse())

	_, err = f.bootstrap.Run(ctx, "machine-a")
	Expect(err).To(BeNil())

	puts := f.db.PutCount()
	ip, found, err := f.bootstrap.Show(ctx, "machine-a")
	Expect(err).To(BeNil())
	Expect(found).To(BeTrue())
	Expect(ip.String()).To(Equal("10.1.0.1"))
	Expect(f.db.PutCount()).To(Equal(puts))
}
