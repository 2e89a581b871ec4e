// Copyright 2026 OtaFlux Authors.
// SPDX-License-Identifier: AGPL-3.0

package cache

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/Masterminds/semver/v3"
	. "github.com/onsi/gomega"

	"github.com/otaflux/otaflux/internal/firmware"
)

func entryFor(device firmware.DeviceId, version string) *firmware.Entry {
	v := semver.MustParse(version)
	return firmware.NewEntry(device, v, firmware.Artifact{Bytes: []byte("firmware-" + version)})
}

func TestCache_GetOrLoad_MissThenHit(t *testing.T) {
	g := NewWithT(t)
	c, err := New(4)
	g.Expect(err).NotTo(HaveOccurred())

	var loads int32
	load := func(device firmware.DeviceId) (*firmware.Entry, error) {
		atomic.AddInt32(&loads, 1)
		return entryFor(device, "1.2.3"), nil
	}

	entry, err := c.GetOrLoad("thermostat-1", load)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(entry.Version.String()).To(Equal("1.2.3"))
	g.Expect(loads).To(Equal(int32(1)))

	entry2, err := c.GetOrLoad("thermostat-1", load)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(entry2).To(BeIdenticalTo(entry))
	g.Expect(loads).To(Equal(int32(1)))
}

func TestCache_GetOrLoad_CoalescesConcurrentMisses(t *testing.T) {
	g := NewWithT(t)
	c, err := New(4)
	g.Expect(err).NotTo(HaveOccurred())

	var loads int32
	release := make(chan struct{})
	load := func(device firmware.DeviceId) (*firmware.Entry, error) {
		atomic.AddInt32(&loads, 1)
		<-release
		return entryFor(device, "2.0.0"), nil
	}

	const waiters = 8
	var wg sync.WaitGroup
	results := make([]*firmware.Entry, waiters)
	wg.Add(waiters)
	for i := 0; i < waiters; i++ {
		i := i
		go func() {
			defer wg.Done()
			entry, err := c.GetOrLoad("sensor-7", load)
			g.Expect(err).NotTo(HaveOccurred())
			results[i] = entry
		}()
	}

	close(release)
	wg.Wait()

	g.Expect(loads).To(Equal(int32(1)))
	for _, r := range results {
		g.Expect(r.Version.String()).To(Equal("2.0.0"))
	}
}

func TestCache_Put_EvictsOnlyWhenDistinctDeviceCountGrows(t *testing.T) {
	g := NewWithT(t)
	c, err := New(2)
	g.Expect(err).NotTo(HaveOccurred())

	c.Put("a", entryFor("a", "1.0.0"))
	c.Put("b", entryFor("b", "1.0.0"))
	g.Expect(c.Len()).To(Equal(2))

	// Replacing an existing device's entry must not evict anyone.
	c.Put("a", entryFor("a", "1.0.1"))
	g.Expect(c.Len()).To(Equal(2))
	entryA, err := c.GetOrLoad("a", func(firmware.DeviceId) (*firmware.Entry, error) {
		return nil, fmt.Errorf("should not be called: a is cached")
	})
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(entryA.Version.String()).To(Equal("1.0.1"))

	// A third distinct device evicts the least-recently-used entry.
	c.Put("c", entryFor("c", "1.0.0"))
	g.Expect(c.Len()).To(Equal(2))
}

func TestCache_Invalidate(t *testing.T) {
	g := NewWithT(t)
	c, err := New(4)
	g.Expect(err).NotTo(HaveOccurred())

	c.Put("a", entryFor("a", "1.0.0"))
	g.Expect(c.Len()).To(Equal(1))

	c.Invalidate("a")
	g.Expect(c.Len()).To(Equal(0))

	var loads int32
	_, err = c.GetOrLoad("a", func(firmware.DeviceId) (*firmware.Entry, error) {
		atomic.AddInt32(&loads, 1)
		return entryFor("a", "1.0.0"), nil
	})
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(loads).To(Equal(int32(1)))
}
