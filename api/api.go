// Package api is the boundary this repository exposes:
// pairing an input CSV localization file with either a scan configuration or
// a single (R, T), in one of three callback flavors, across the three RoI
// sources (automatic, manual rectangle, ImageJ polygon).
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package api

import (
	"context"
	"runtime"
	"sync"

	"github.com/cefhalic/bayescluster/cmn/cos"
	"github.com/cefhalic/bayescluster/cmn/nlog"
	"github.com/cefhalic/bayescluster/core/roi"
	ingestcsv "github.com/cefhalic/bayescluster/ingest/csv"
	"github.com/cefhalic/bayescluster/ingest/imagej"
	ingestroi "github.com/cefhalic/bayescluster/ingest/roi"
	outjson "github.com/cefhalic/bayescluster/out/json"
)

// Request is the shared, CSV-file-anchored parameter bundle every entry
// point takes.
type Request struct {
	InputFile string
	Threads   int // 0 => runtime.NumCPU()
	Validate  bool
}

func (r Request) workers() int {
	if r.Threads > 0 {
		return r.Threads
	}
	return runtime.NumCPU()
}

func (r Request) loadPoints() ([]roi.Point, error) {
	if r.InputFile == "" {
		return nil, cos.NewErrInvalidConfig("no input file specified")
	}
	return ingestcsv.Load(r.InputFile, r.workers())
}

// AutoRoiScanFull runs a full (R, T) scan over every automatically-detected
// RoI in req's input file, invoking cb once per (R, T) per RoI.
func AutoRoiScanFull(ctx context.Context, req Request, cfg *roi.ScanConfiguration, cb roi.FullCallback) error {
	pts, err := req.loadPoints()
	if err != nil {
		return err
	}
	for _, r := range ingestroi.FromAutoDetect(pts) {
		if err := roi.RunScan(ctx, r, cfg, req.workers(), req.Validate, cb); err != nil {
			return err
		}
	}
	return nil
}

// AutoRoiScanSimple is AutoRoiScanFull with the scalar-only callback shape:
// cb is invoked once per auto-detected RoI, with that RoI's full (R, T)-sorted
// entry set.
func AutoRoiScanSimple(ctx context.Context, req Request, cfg *roi.ScanConfiguration, cb roi.SimpleCallback) error {
	pts, err := req.loadPoints()
	if err != nil {
		return err
	}
	for _, r := range ingestroi.FromAutoDetect(pts) {
		r := r
		err := roi.RunSimpleScan(func(full roi.FullCallback) error {
			return roi.RunScan(ctx, r, cfg, req.workers(), req.Validate, full)
		}, cb)
		if err != nil {
			return err
		}
	}
	return nil
}

// AutoRoiScanToJSON runs AutoRoiScanFull and writes each RoI's scan entries
// and per-entry cluster geometry to outPattern, substituting {input}/{roi}.
func AutoRoiScanToJSON(ctx context.Context, req Request, cfg *roi.ScanConfiguration, outPattern string) error {
	pts, err := req.loadPoints()
	if err != nil {
		return err
	}
	for _, r := range ingestroi.FromAutoDetect(pts) {
		if err := scanRoIToJSON(ctx, req, r, cfg, outPattern); err != nil {
			return err
		}
	}
	return nil
}

// AutoRoiClusterFull clusterizes every automatically-detected RoI at a
// single (R, T), invoking cb once per RoI. cfg supplies the sigma grid and
// pb/alpha hyperparameters the log-score needs even for a single-point
// clusterization.
func AutoRoiClusterFull(ctx context.Context, req Request, cfg *roi.ScanConfiguration, r, t float64, cb roi.FullCallback) error {
	pts, err := req.loadPoints()
	if err != nil {
		return err
	}
	for _, region := range ingestroi.FromAutoDetect(pts) {
		if err := clusterizeOnce(region, cfg, r, t, cb); err != nil {
			return err
		}
	}
	return nil
}

// ManualRoiScanFull runs a full (R, T) scan over the single manually-specified
// rectangular region m.
func ManualRoiScanFull(ctx context.Context, req Request, m ingestroi.ManualRoI, cfg *roi.ScanConfiguration, cb roi.FullCallback) error {
	pts, err := req.loadPoints()
	if err != nil {
		return err
	}
	r := ingestroi.FromManual(cos.GenID(8), pts, m)
	return roi.RunScan(ctx, r, cfg, req.workers(), req.Validate, cb)
}

// ManualRoiScanSimple is ManualRoiScanFull with the scalar-only callback
// shape: cb is invoked exactly once, with the region's full (R, T)-sorted
// entry set.
func ManualRoiScanSimple(ctx context.Context, req Request, m ingestroi.ManualRoI, cfg *roi.ScanConfiguration, cb roi.SimpleCallback) error {
	pts, err := req.loadPoints()
	if err != nil {
		return err
	}
	r := ingestroi.FromManual(cos.GenID(8), pts, m)
	return roi.RunSimpleScan(func(full roi.FullCallback) error {
		return roi.RunScan(ctx, r, cfg, req.workers(), req.Validate, full)
	}, cb)
}

// ManualRoiScanToJSON runs ManualRoiScanFull and writes results to outPattern.
func ManualRoiScanToJSON(ctx context.Context, req Request, m ingestroi.ManualRoI, cfg *roi.ScanConfiguration, outPattern string) error {
	pts, err := req.loadPoints()
	if err != nil {
		return err
	}
	r := ingestroi.FromManual(cos.GenID(8), pts, m)
	return scanRoIToJSON(ctx, req, r, cfg, outPattern)
}

// ManualRoiClusterFull clusterizes the manually-specified region at a single
// (R, T).
func ManualRoiClusterFull(ctx context.Context, req Request, m ingestroi.ManualRoI, cfg *roi.ScanConfiguration, r, t float64, cb roi.FullCallback) error {
	pts, err := req.loadPoints()
	if err != nil {
		return err
	}
	region := ingestroi.FromManual(cos.GenID(8), pts, m)
	return clusterizeOnce(region, cfg, r, t, cb)
}

// ImageJRoiScanFull runs a full (R, T) scan over every polygon imported from
// an ImageJ RoI zip archive.
func ImageJRoiScanFull(ctx context.Context, req Request, zipPath string, scale float64, cfg *roi.ScanConfiguration, cb roi.FullCallback) error {
	pts, err := req.loadPoints()
	if err != nil {
		return err
	}
	polys, err := imagej.OpenZip(zipPath)
	if err != nil {
		return err
	}
	for name, poly := range polys {
		scaled := imagej.Scale(poly, scale)
		r := ingestroi.FromImageJPolygon(name, pts, scaled)
		if err := roi.RunScan(ctx, r, cfg, req.workers(), req.Validate, cb); err != nil {
			return err
		}
	}
	return nil
}

// ImageJRoiScanSimple is ImageJRoiScanFull with the scalar-only callback
// shape: cb is invoked once per imported polygon, with that polygon's full
// (R, T)-sorted entry set.
func ImageJRoiScanSimple(ctx context.Context, req Request, zipPath string, scale float64, cfg *roi.ScanConfiguration, cb roi.SimpleCallback) error {
	pts, err := req.loadPoints()
	if err != nil {
		return err
	}
	polys, err := imagej.OpenZip(zipPath)
	if err != nil {
		return err
	}
	for name, poly := range polys {
		scaled := imagej.Scale(poly, scale)
		r := ingestroi.FromImageJPolygon(name, pts, scaled)
		err := roi.RunSimpleScan(func(full roi.FullCallback) error {
			return roi.RunScan(ctx, r, cfg, req.workers(), req.Validate, full)
		}, cb)
		if err != nil {
			return err
		}
	}
	return nil
}

// ImageJRoiScanToJSON runs ImageJRoiScanFull and writes results to outPattern.
func ImageJRoiScanToJSON(ctx context.Context, req Request, zipPath string, scale float64, cfg *roi.ScanConfiguration, outPattern string) error {
	pts, err := req.loadPoints()
	if err != nil {
		return err
	}
	polys, err := imagej.OpenZip(zipPath)
	if err != nil {
		return err
	}
	for name, poly := range polys {
		scaled := imagej.Scale(poly, scale)
		r := ingestroi.FromImageJPolygon(name, pts, scaled)
		if err := scanRoIToJSON(ctx, req, r, cfg, outPattern); err != nil {
			return err
		}
	}
	return nil
}

// ImageJRoiClusterFull clusterizes every ImageJ-imported polygon at a single
// (R, T).
func ImageJRoiClusterFull(ctx context.Context, req Request, zipPath string, scale float64, cfg *roi.ScanConfiguration, r, t float64, cb roi.FullCallback) error {
	pts, err := req.loadPoints()
	if err != nil {
		return err
	}
	polys, err := imagej.OpenZip(zipPath)
	if err != nil {
		return err
	}
	for name, poly := range polys {
		scaled := imagej.Scale(poly, scale)
		region := ingestroi.FromImageJPolygon(name, pts, scaled)
		if err := clusterizeOnce(region, cfg, r, t, cb); err != nil {
			return err
		}
	}
	return nil
}

// clusterizeOnce is the standalone single-(R,T) clusterization path: unlike
// a full ScanRT sweep, it never runs the validate-mode consistency checks,
// which only make sense for a (R, T) grid sweep.
func clusterizeOnce(r *roi.RoI, cfg *roi.ScanConfiguration, R, T float64, cb roi.FullCallback) error {
	if err := r.Preprocess(R, cfg.SigmaBins2()); err != nil {
		return err
	}
	proxy := roi.NewRoIProxy(r, cfg)
	errs := proxy.ClusterizeAt(R, T)
	if errs.Cnt() > 0 {
		nlog.Warningf("clusterize at R=%g T=%g: %d recoverable error(s)", R, T, errs.Cnt())
	}
	cb(roi.ScanEntry{
		R: R, T: T,
		ClusterCount:    proxy.ClusterCount,
		ClusteredCount:  proxy.ClusteredCount,
		BackgroundCount: proxy.BackgroundCount,
		LogP:            proxy.LogP,
		Clusters:        proxy.EnumerateClusters(),
	})
	return nil
}

func scanRoIToJSON(ctx context.Context, req Request, r *roi.RoI, cfg *roi.ScanConfiguration, outPattern string) error {
	var entries []roi.ScanEntry
	var allClusters []roi.ClusterResult
	var mu sync.Mutex
	err := roi.RunScan(ctx, r, cfg, req.workers(), req.Validate, func(e roi.ScanEntry) {
		mu.Lock()
		defer mu.Unlock()
		entries = append(entries, e)
		allClusters = append(allClusters, e.Clusters...)
	})
	if err != nil {
		return err
	}
	scanPath := outjson.ResolvePath(outPattern, req.InputFile, r.ID)
	if err := outjson.WriteScan(scanPath, entries); err != nil {
		return err
	}

	clusterPath := outjson.ResolvePath(outPattern, req.InputFile, r.ID+".clusters")
	return outjson.WriteClusters(clusterPath, allClusters)
}
