// Package roi - Scheduler: drives a full (R, T) scan across worker
// goroutines, each owning an independent RoIProxy. See config.go for the
// package-level design note.
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package roi

import (
	"context"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cefhalic/bayescluster/cmn/mono"
	"github.com/cefhalic/bayescluster/cmn/nlog"
)

// ScanEntry is one (R, T) grid point's result, handed to a scan's callback.
type ScanEntry struct {
	R, T            float64
	I, J            int
	ClusterCount    int
	ClusteredCount  int
	BackgroundCount int
	LogP            float64
	Clusters        []ClusterResult
}

// RunScan runs a full (R, T) scan over r, using workers goroutines. The
// R-axis is striped across workers by index modulo workers (worker k handles
// R-bin indices k, k+workers, k+2*workers, ...) rather than by contiguous
// range: scan cost grows with R (larger R means denser
// neighborhoods to walk), so a contiguous split would leave early workers
// idle while later ones are still grinding through the most expensive R
// values - interleaving keeps the per-worker cost roughly balanced.
//
// Each worker gets its own RoIProxy, so there is no shared mutable state
// during the scan; callback is invoked from whichever worker goroutine
// produced that (R, T) entry and must be safe for concurrent use from up to
// workers goroutines at once, or must synchronize internally.
func RunScan(ctx context.Context, r *RoI, cfg *ScanConfiguration, workers int, validate bool, callback FullCallback) error {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	if err := r.Preprocess(cfg.RBounds().Max, cfg.SigmaBins2()); err != nil {
		return err
	}
	if err := r.PreprocessLocalizationScores(cfg.RBounds()); err != nil {
		return err
	}

	g, _ := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		w := w
		g.Go(func() error {
			proxy := NewRoIProxy(r, cfg)
			start := mono.NanoTime()
			err := proxy.ScanRT(workers, w, validate, func(p *RoIProxy, rVal, tVal float64, i, j int) {
				callback(ScanEntry{
					R: rVal, T: tVal, I: i, J: j,
					ClusterCount:    p.ClusterCount,
					ClusteredCount:  p.ClusteredCount,
					BackgroundCount: p.BackgroundCount,
					LogP:            p.LogP,
					Clusters:        p.EnumerateClusters(),
				})
			})
			nlog.Infof("roi %s: worker %d/%d finished its R stripe in %s", r.ID, w, workers,
				time.Duration(mono.NanoTime()-start))
			return err
		})
	}
	return g.Wait()
}
