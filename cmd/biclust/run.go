/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package main

import (
	"context"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/urfave/cli"
	"github.com/vbauerster/mpb/v4"
	"github.com/vbauerster/mpb/v4/decor"

	"github.com/cefhalic/bayescluster/cmn/cos"
	"github.com/cefhalic/bayescluster/cmn/nlog"
	"github.com/cefhalic/bayescluster/core/roi"
	ingestcsv "github.com/cefhalic/bayescluster/ingest/csv"
	"github.com/cefhalic/bayescluster/ingest/imagej"
	ingestroi "github.com/cefhalic/bayescluster/ingest/roi"
	outjson "github.com/cefhalic/bayescluster/out/json"
)

func runAction(c *cli.Context) error {
	singlePoint := c.IsSet(rFlag.Name) && c.IsSet(tFlag.Name)

	cfg, err := buildScanConfiguration(c, singlePoint)
	if err != nil {
		return err
	}

	inputFile := c.String(inputFileFlag.Name)
	outPattern := c.String(outputFileFlag.Name)
	workers := resolveWorkers(c.Int(threadsFlag.Name))

	pts, err := ingestcsv.Load(inputFile, workers)
	if err != nil {
		return err
	}
	regions, err := resolveRegions(c, pts)
	if err != nil {
		return err
	}

	ctx := context.Background()
	if singlePoint {
		r := c.Float64(rFlag.Name)
		t := c.Float64(tFlag.Name)
		return runClusterizeOnce(regions, cfg, r, t, inputFile, outPattern)
	}
	return runFullScan(ctx, regions, cfg, workers, c.Bool(validateFlag.Name), inputFile, outPattern)
}

func resolveWorkers(n int) int {
	if n > 0 {
		return n
	}
	return runtime.GOMAXPROCS(0)
}

// buildScanConfiguration turns the sigma/R/T/pb/alpha flags into a
// ScanConfiguration. In single-point mode the R and T grids are collapsed to
// the single requested value (zero bins, degenerate min==max), since
// ClusterizeAt only needs cfg for the sigma grid and pb/alpha - see
// AutoRoiClusterFull's doc comment in package api.
func buildScanConfiguration(c *cli.Context, singlePoint bool) (*roi.ScanConfiguration, error) {
	curve, err := parseSigmaCurve(c.StringSlice(sigmaCurveFlag.Name))
	if err != nil {
		return nil, err
	}
	interpolator, err := roi.NewSigmaPriorInterpolator(curve)
	if err != nil {
		return nil, err
	}

	rBins, rLow, rHigh := c.Int(rBinsFlag.Name), c.Float64(rLowFlag.Name), c.Float64(rHighFlag.Name)
	tBins, tLow, tHigh := c.Int(tBinsFlag.Name), c.Float64(tLowFlag.Name), c.Float64(tHighFlag.Name)
	if singlePoint {
		rBins, rLow, rHigh = 0, c.Float64(rFlag.Name), c.Float64(rFlag.Name)
		tBins, tLow, tHigh = 0, c.Float64(tFlag.Name), c.Float64(tFlag.Name)
	}

	return roi.NewScanConfiguration(
		c.Int(sigmaBinsFlag.Name), c.Float64(sigmaLowFlag.Name), c.Float64(sigmaHighFlag.Name), interpolator,
		rBins, rLow, rHigh,
		tBins, tLow, tHigh,
		c.Float64(pbFlag.Name), c.Float64(alphaFlag.Name),
	)
}

// parseSigmaCurve decodes repeated "size:prob" sigma-curve control points.
func parseSigmaCurve(raw []string) ([]roi.SigmaPriorPoint, error) {
	pts := make([]roi.SigmaPriorPoint, 0, len(raw))
	for _, s := range raw {
		size, prob, ok := strings.Cut(s, ":")
		if !ok {
			return nil, cos.NewErrInvalidConfig("sigma-curve entry %q must be size:prob", s)
		}
		sizeF, err1 := strconv.ParseFloat(size, 64)
		probF, err2 := strconv.ParseFloat(prob, 64)
		if err1 != nil || err2 != nil {
			return nil, cos.NewErrInvalidConfig("sigma-curve entry %q is not numeric", s)
		}
		pts = append(pts, roi.SigmaPriorPoint{Size: sizeF, Prob: probF})
	}
	return pts, nil
}

// resolveRegions builds the RoI list from the --cfg source descriptor: auto
// density detection, a manual rectangle (x,y,w,h), or an ImageJ zip of
// polygons (path,scale).
func resolveRegions(c *cli.Context, pts []roi.Point) ([]*roi.RoI, error) {
	src := c.String(cfgFlag.Name)
	switch {
	case src == "" || src == "auto":
		return ingestroi.FromAutoDetect(pts), nil

	case strings.HasPrefix(src, "manual:"):
		parts := strings.Split(strings.TrimPrefix(src, "manual:"), ",")
		if len(parts) != 4 {
			return nil, cos.NewErrInvalidConfig("manual RoI source must be manual:x,y,w,h, got %q", src)
		}
		vals := make([]float64, 4)
		for i, p := range parts {
			v, err := strconv.ParseFloat(p, 64)
			if err != nil {
				return nil, cos.NewErrInvalidConfig("manual RoI source %q: %v", src, err)
			}
			vals[i] = v
		}
		m := ingestroi.ManualRoI{X: vals[0], Y: vals[1], W: vals[2], H: vals[3]}
		return []*roi.RoI{ingestroi.FromManual(cos.GenID(8), pts, m)}, nil

	case strings.HasPrefix(src, "imagej:"):
		zipPath, scaleStr, ok := strings.Cut(strings.TrimPrefix(src, "imagej:"), ",")
		if !ok {
			return nil, cos.NewErrInvalidConfig("imagej RoI source must be imagej:zippath,scale, got %q", src)
		}
		scale, err := strconv.ParseFloat(scaleStr, 64)
		if err != nil {
			return nil, cos.NewErrInvalidConfig("imagej RoI source %q: %v", src, err)
		}
		polys, err := imagej.OpenZip(zipPath)
		if err != nil {
			return nil, err
		}
		regions := make([]*roi.RoI, 0, len(polys))
		for name, poly := range polys {
			scaled := imagej.Scale(poly, scale)
			regions = append(regions, ingestroi.FromImageJPolygon(name, pts, scaled))
		}
		return regions, nil

	default:
		return nil, cos.NewErrInvalidConfig("unrecognized RoI source %q", src)
	}
}

// runClusterizeOnce evaluates a single (R, T) per region and writes one
// scan+cluster JSON pair per region - no progress bar, since a single
// clusterization is effectively instantaneous next to a full grid scan.
func runClusterizeOnce(regions []*roi.RoI, cfg *roi.ScanConfiguration, r, t float64, inputFile, outPattern string) error {
	for _, region := range regions {
		if err := region.Preprocess(r, cfg.SigmaBins2()); err != nil {
			return err
		}
		proxy := roi.NewRoIProxy(region, cfg)
		if errs := proxy.ClusterizeAt(r, t); errs.Cnt() > 0 {
			nlog.Warningf("region %s: %d recoverable error(s) at R=%g T=%g", region.ID, errs.Cnt(), r, t)
		}
		entry := roi.ScanEntry{
			R: r, T: t,
			ClusterCount:    proxy.ClusterCount,
			ClusteredCount:  proxy.ClusteredCount,
			BackgroundCount: proxy.BackgroundCount,
			LogP:            proxy.LogP,
			Clusters:        proxy.EnumerateClusters(),
		}
		if err := writeRegionResult(region.ID, inputFile, outPattern, []roi.ScanEntry{entry}, entry.Clusters); err != nil {
			return err
		}
	}
	return nil
}

// runFullScan runs a full (R, T) grid scan per region, with one mpb bar per
// region tracking its rBins*tBins progress, then writes each region's
// scan+cluster JSON.
func runFullScan(ctx context.Context, regions []*roi.RoI, cfg *roi.ScanConfiguration, workers int, validate bool, inputFile, outPattern string) error {
	total := int64(cfg.RBounds().Bins) * int64(cfg.TBounds().Bins)
	progress := mpb.New(mpb.WithWidth(64))

	for _, region := range regions {
		bar := progress.AddBar(total,
			mpb.PrependDecorators(decor.Name(region.ID, decor.WC{W: 10})),
			mpb.AppendDecorators(decor.Percentage()),
		)

		var entries []roi.ScanEntry
		var clusters []roi.ClusterResult
		var mu sync.Mutex
		err := roi.RunScan(ctx, region, cfg, workers, validate, func(e roi.ScanEntry) {
			mu.Lock()
			defer mu.Unlock()
			entries = append(entries, e)
			clusters = append(clusters, e.Clusters...)
			bar.Increment()
		})
		if err != nil {
			return err
		}
		if err := writeRegionResult(region.ID, inputFile, outPattern, entries, clusters); err != nil {
			return err
		}
	}
	progress.Wait()
	return nil
}

func writeRegionResult(roiID, inputFile, outPattern string, entries []roi.ScanEntry, clusters []roi.ClusterResult) error {
	scanPath := outjson.ResolvePath(outPattern, inputFile, roiID)
	if err := outjson.WriteScan(scanPath, entries); err != nil {
		return err
	}
	clusterPath := outjson.ResolvePath(outPattern, inputFile, roiID+".clusters")
	return outjson.WriteClusters(clusterPath, clusters)
}
