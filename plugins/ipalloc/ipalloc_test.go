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

package ipalloc_test

import (
	"context"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/ligato/cn-infra/logging/logrus"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	. "github.com/onsi/gomega"

	"github.com/kubermesh/ip-allocator/mock/broker"
	"github.com/kubermesh/ip-allocator/plugins/ipalloc"
)

const prefix = ipalloc.DefaultKeyPrefix

func ip(s string) net.IP {
	return net.ParseIP(s).To4()
}

func network(s string) *net.IPNet {
	_, n, err := net.ParseCIDR(s)
	if err != nil {
		panic(err)
	}
	return n
}

func newPool(first, last string) *ipalloc.Pool {
	pool, err := ipalloc.NewPool(ip(first), ip(last))
	Expect(err).To(BeNil())
	return pool
}

func poolFromNetwork(cidr string) *ipalloc.Pool {
	pool, err := ipalloc.PoolFromNetwork(network(cidr))
	Expect(err).To(BeNil())
	return pool
}

func newAllocator(db ipalloc.ClusterWideDB, pool *ipalloc.Pool) *ipalloc.Allocator {
	return ipalloc.NewAllocator(ipalloc.UseDeps(func(deps *ipalloc.Deps) {
		deps.Log = logrus.DefaultLogger()
		deps.DB = db
		deps.Pool = pool
		deps.Metrics = ipalloc.NewMetrics(prometheus.NewRegistry())
	}))
}

func TestAllocateFirstFit(t *testing.T) {
	RegisterTestingT(t)
	ctx := context.Background()

	db := broker.NewMockBroker()
	allocator := newAllocator(db, newPool("10.0.0.1", "10.0.0.2"))

	addr, err := allocator.Allocate(ctx, "node-a")
	Expect(err).To(BeNil())
	Expect(addr.String()).To(Equal("10.0.0.1"))

	addr, err = allocator.Allocate(ctx, "node-b")
	Expect(err).To(BeNil())
	Expect(addr.String()).To(Equal("10.0.0.2"))

	puts := db.PutCount()
	_, err = allocator.Allocate(ctx, "node-c")
	Expect(errors.Is(err, ipalloc.ErrPoolExhausted)).To(BeTrue())
	Expect(db.PutCount()).To(Equal(puts))

	data, found, _, err := db.Store.GetValue(prefix + "10.0.0.1")
	Expect(err).To(BeNil())
	Expect(found).To(BeTrue())
	Expect(string(data)).To(Equal("node-a"))

	Expect(testutil.ToFloat64(allocator.Metrics.Allocations.WithLabelValues("claimed"))).To(BeEquivalentTo(2))
	Expect(testutil.ToFloat64(allocator.Metrics.Allocations.WithLabelValues("exhausted"))).To(BeEquivalentTo(1))
}

func TestAllocateIsIdempotent(t *testing.T) {
	RegisterTestingT(t)
	ctx := context.Background()

	db := broker.NewMockBroker()
	allocator := newAllocator(db, newPool("10.0.0.1", "10.0.0.10"))

	first, err := allocator.Allocate(ctx, "node-a")
	Expect(err).To(BeNil())
	puts := db.PutCount()

	second, err := allocator.Allocate(ctx, "node-a")
	Expect(err).To(BeNil())
	Expect(second).To(Equal(first))
	Expect(db.PutCount()).To(Equal(puts))

	// another allocator instance (e.g. after reboot) finds the same address
	again, err := newAllocator(db, newPool("10.0.0.1", "10.0.0.10")).Allocate(ctx, "node-a")
	Expect(err).To(BeNil())
	Expect(again).To(Equal(first))
	Expect(db.PutCount()).To(Equal(puts))
	Expect(db.Len()).To(Equal(1))
}

func TestAllocateSkipsKnownAllocations(t *testing.T) {
	RegisterTestingT(t)
	ctx := context.Background()

	db := broker.NewMockBroker()
	Expect(db.Put(prefix+"10.0.0.1", []byte("node-x"))).To(Succeed())
	Expect(db.Put(prefix+"10.0.0.2", []byte("node-y"))).To(Succeed())
	Expect(db.Put(prefix+"not-an-ip", []byte("node-z"))).To(Succeed())

	allocator := newAllocator(db, newPool("10.0.0.1", "10.0.0.4"))
	addr, err := allocator.Allocate(ctx, "node-a")
	Expect(err).To(BeNil())
	Expect(addr.String()).To(Equal("10.0.0.3"))
	Expect(db.PutCount()).To(Equal(1))
}

func TestAllocateExhaustedPerformsNoWrites(t *testing.T) {
	RegisterTestingT(t)
	ctx := context.Background()

	db := broker.NewMockBroker()
	for i := 0; i < 4; i++ {
		Expect(db.Put(fmt.Sprintf("%s10.1.0.%d", prefix, i), []byte(fmt.Sprintf("node-%d", i)))).To(Succeed())
	}

	allocator := newAllocator(db, poolFromNetwork("10.1.0.0/30"))
	_, err := allocator.Allocate(ctx, "node-new")
	Expect(errors.Is(err, ipalloc.ErrPoolExhausted)).To(BeTrue())
	Expect(db.PutCount()).To(Equal(0))
}

func TestAllocateConflictMovesToNextAddress(t *testing.T) {
	RegisterTestingT(t)
	ctx := context.Background()

	db := broker.NewMockBroker()
	allocator := newAllocator(db, newPool("10.0.0.1", "10.0.0.3"))

	// another machine claims every address right before our write to it,
	// until 10.0.0.3
	db.BeforePut(func(key string) {
		if key != prefix+"10.0.0.3" {
			db.Store.PutIfNotExists(key, []byte("node-other"))
		}
	})

	addr, err := allocator.Allocate(ctx, "node-a")
	Expect(err).To(BeNil())
	Expect(addr.String()).To(Equal("10.0.0.3"))
	Expect(db.PutCount()).To(Equal(3))
	Expect(testutil.ToFloat64(allocator.Metrics.ClaimConflicts)).To(BeEquivalentTo(2))
	Expect(testutil.ToFloat64(allocator.Metrics.ClaimAttempts)).To(BeEquivalentTo(3))
}

func TestAllocateConflictOnLastAddress(t *testing.T) {
	RegisterTestingT(t)
	ctx := context.Background()

	db := broker.NewMockBroker()
	allocator := newAllocator(db, newPool("10.0.0.1", "10.0.0.1"))
	db.BeforePut(func(key string) {
		db.Store.PutIfNotExists(key, []byte("node-other"))
	})

	_, err := allocator.Allocate(ctx, "node-a")
	Expect(errors.Is(err, ipalloc.ErrPoolExhausted)).To(BeTrue())
	Expect(db.PutCount()).To(Equal(1))
}

func TestAllocateStoreErrors(t *testing.T) {
	RegisterTestingT(t)
	ctx := context.Background()

	// unclassified errors are passed unmodified
	db := broker.NewMockBroker()
	putErr := errors.New("etcdserver: permission denied")
	db.FailPut(putErr)
	_, err := newAllocator(db, newPool("10.0.0.1", "10.0.0.9")).Allocate(ctx, "node-a")
	Expect(err).To(Equal(putErr))
	Expect(db.PutCount()).To(Equal(1))

	// timeouts are reported as unavailable store and not retried
	db = broker.NewMockBroker()
	db.FailPut(context.DeadlineExceeded)
	_, err = newAllocator(db, newPool("10.0.0.1", "10.0.0.9")).Allocate(ctx, "node-a")
	Expect(errors.Is(err, ipalloc.ErrStoreUnavailable)).To(BeTrue())
	Expect(errors.Is(err, ipalloc.ErrPoolExhausted)).To(BeFalse())
	Expect(db.PutCount()).To(Equal(1))

	db = broker.NewMockBroker()
	db.FailList(status.Error(codes.Unavailable, "all SubConns are in TransientFailure"))
	_, err = newAllocator(db, newPool("10.0.0.1", "10.0.0.9")).Allocate(ctx, "node-a")
	Expect(errors.Is(err, ipalloc.ErrStoreUnavailable)).To(BeTrue())
	Expect(db.PutCount()).To(Equal(0))
}

func TestAllocateCancelledContext(t *testing.T) {
	RegisterTestingT(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	db := broker.NewMockBroker()
	_, err := newAllocator(db, newPool("10.0.0.1", "10.0.0.9")).Allocate(ctx, "node-a")
	Expect(errors.Is(err, ipalloc.ErrStoreUnavailable)).To(BeTrue())
	Expect(errors.Is(err, context.Canceled)).To(BeTrue())
	Expect(db.ListCount()).To(Equal(0))
	Expect(db.PutCount()).To(Equal(0))
}

func TestAllocateHangingStore(t *testing.T) {
	RegisterTestingT(t)

	release := make(chan struct{})
	defer close(release)

	// the write is accepted but never answered
	db := broker.NewMockBroker()
	db.BlockPut(release)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := newAllocator(db, newPool("10.0.0.1", "10.0.0.9")).Allocate(ctx, "node-a")
	Expect(time.Since(start)).To(BeNumerically("<", 2*time.Second))
	Expect(errors.Is(err, ipalloc.ErrStoreUnavailable)).To(BeTrue())
	Expect(errors.Is(err, context.DeadlineExceeded)).To(BeTrue())
	Expect(db.PutCount()).To(Equal(1))

	// the listing never answers
	db = broker.NewMockBroker()
	db.BlockList(release)
	ctx, cancel = context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start = time.Now()
	_, err = newAllocator(db, newPool("10.0.0.1", "10.0.0.9")).Allocate(ctx, "node-a")
	Expect(time.Since(start)).To(BeNumerically("<", 2*time.Second))
	Expect(errors.Is(err, ipalloc.ErrStoreUnavailable)).To(BeTrue())
	Expect(db.PutCount()).To(Equal(0))
}

func TestAllocateInvalidInput(t *testing.T) {
	RegisterTestingT(t)
	ctx := context.Background()

	_, err := newAllocator(broker.NewMockBroker(), newPool("10.0.0.1", "10.0.0.9")).Allocate(ctx, "")
	Expect(errors.Is(err, ipalloc.ErrEmptyIdentity)).To(BeTrue())

	_, err = newAllocator(nil, newPool("10.0.0.1", "10.0.0.9")).Allocate(ctx, "node-a")
	Expect(err).ToNot(BeNil())

	_, err = newAllocator(broker.NewMockBroker(), nil).Allocate(ctx, "node-a")
	Expect(err).ToNot(BeNil())
}

func TestConcurrentAllocations(t *testing.T) {
	RegisterTestingT(t)
	ctx := context.Background()

	const machines = 24
	db := broker.NewMockBroker()
	pool := newPool("192.168.10.1", "192.168.10.24")

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results = map[string]string{}
		errs    []error
	)
	for i := 0; i < machines; i++ {
		wg.Add(1)
		go func(identity string) {
			defer wg.Done()
			// every machine runs its own allocator against the shared store
			addr, err := newAllocator(db, pool).Allocate(ctx, identity)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			results[addr.String()] = identity
		}(fmt.Sprintf("machine-%d", i))
	}
	wg.Wait()

	Expect(errs).To(BeEmpty())
	Expect(results).To(HaveLen(machines))
	for addr := range results {
		Expect(pool.Contains(ip(addr))).To(BeTrue())
	}

	allocations, err := newAllocator(db, pool).Allocations(ctx)
	Expect(err).To(BeNil())
	Expect(allocations).To(HaveLen(machines))
	for _, alloc := range allocations {
		Expect(results[alloc.Address.String()]).To(Equal(alloc.Identity))
	}
}

func TestLookup(t *testing.T) {
	RegisterTestingT(t)
	ctx := context.Background()

	db := broker.NewMockBroker()
	Expect(db.Put(prefix+"10.0.0.7", []byte("node-a"))).To(Succeed())
	allocator := newAllocator(db, newPool("10.0.0.1", "10.0.0.9"))

	addr, found, err := allocator.Lookup(ctx, "node-a")
	Expect(err).To(BeNil())
	Expect(found).To(BeTrue())
	Expect(addr.String()).To(Equal("10.0.0.7"))

	_, found, err = allocator.Lookup(ctx, "node-b")
	Expect(err).To(BeNil())
	Expect(found).To(BeFalse())
	Expect(db.PutCount()).To(Equal(0))
}

func TestAllocationsSortedByAddress(t *testing.T) {
	RegisterTestingT(t)

	db := broker.NewMockBroker()
	for _, a := range []string{"10.0.0.10", "10.0.0.9", "10.0.0.100", "10.0.0.2"} {
		Expect(db.Put(prefix+a, []byte("node-"+a))).To(Succeed())
	}
	allocations, err := newAllocator(db, newPool("10.0.0.1", "10.0.0.200")).Allocations(context.Background())
	Expect(err).To(BeNil())

	var addrs []string
	for _, alloc := range allocations {
		addrs = append(addrs, alloc.Address.String())
	}
	Expect(addrs).To(Equal([]string{"10.0.0.2", "10.0.0.9", "10.0.0.10", "10.0.0.100"}))
}
