// Package roi - the callback surface: the two shapes a scan can report its
// results through.
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package roi

import (
	"sort"
	"sync"
)

// FullCallback receives every field of a scan entry, including per-cluster
// geometry - the shape used when the caller will persist full results (JSON
// output, cluster inspection). It may be invoked concurrently, once per
// (R, T) grid point, from any of a scan's worker goroutines.
type FullCallback func(ScanEntry)

// SimpleEntry is the scalar summary of one (R, T) grid point: R, T, the
// three counts, and LogP, omitting per-cluster geometry.
type SimpleEntry struct {
	R, T            float64
	ClusterCount    int
	ClusteredCount  int
	BackgroundCount int
	LogP            float64
}

// SimpleCallback receives every entry a completed scan produced over one
// RoI, as a single (R, T)-ordered slice - the cheaper shape for callers that
// only want to locate the maximum-log-posterior grid point without forcing
// per-entry geometry work they don't need, and without having to reassemble
// results delivered out of order across a scan's worker goroutines.
type SimpleCallback func([]SimpleEntry)

// simpleCollector buffers ScanEntry values delivered concurrently by a
// scan's worker goroutines and, once the scan completes, hands the full,
// sorted set to a SimpleCallback in a single call.
type simpleCollector struct {
	mu      sync.Mutex
	entries []SimpleEntry
}

func (c *simpleCollector) collect(e ScanEntry) {
	se := SimpleEntry{
		R: e.R, T: e.T,
		ClusterCount:    e.ClusterCount,
		ClusteredCount:  e.ClusteredCount,
		BackgroundCount: e.BackgroundCount,
		LogP:            e.LogP,
	}
	c.mu.Lock()
	c.entries = append(c.entries, se)
	c.mu.Unlock()
}

// RunSimpleScan runs scan once, passing it a FullCallback that buffers every
// entry it is given, then - after scan returns with no error - sorts the
// buffered entries by (R, T) and invokes cb exactly once with the full set.
// scan is expected to perform one RoI's worth of work (e.g. a single
// roi.RunScan call); callers that sweep several RoIs should call
// RunSimpleScan once per RoI so cb is invoked once per RoI, matching
// FullCallback's per-RoI delivery.
func RunSimpleScan(scan func(FullCallback) error, cb SimpleCallback) error {
	c := &simpleCollector{}
	if err := scan(c.collect); err != nil {
		return err
	}
	sort.Slice(c.entries, func(i, j int) bool {
		if c.entries[i].R != c.entries[j].R {
			return c.entries[i].R < c.entries[j].R
		}
		return c.entries[i].T < c.entries[j].T
	})
	cb(c.entries)
	return nil
}
