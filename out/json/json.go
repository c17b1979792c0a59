// Package json writes scan and cluster results to disk: five-significant-digit
// scientific notation floats, with {input}/{roi} path substitution, using
// json-iterator/go for marshaling.
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package json

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/cefhalic/bayescluster/cmn/cos"
	"github.com/cefhalic/bayescluster/core/geom"
	"github.com/cefhalic/bayescluster/core/roi"
)

var api = jsoniter.ConfigCompatibleWithStandardLibrary

// sigFig is a float64 that marshals to 5-significant-digit scientific
// notation, instead of jsoniter's default shortest
// round-trippable representation.
type sigFig float64

func (f sigFig) MarshalJSON() ([]byte, error) {
	s := strconv.FormatFloat(float64(f), 'e', 4, 64)
	return []byte(s), nil
}

// scanRow is one entry of the scan output array:
// { "r": ..., "t": ..., "logP": ... }.
type scanRow struct {
	R    sigFig `json:"r"`
	T    sigFig `json:"t"`
	LogP sigFig `json:"logP"`
}

// clusterRow is one entry of a cluster-output array:
// { "localizations", "area", "perimeter", "centroid_x", "centroid_y" },
// computed from the convex hull of a cluster's member positions.
type clusterRow struct {
	Localizations int    `json:"localizations"`
	Area          sigFig `json:"area"`
	Perimeter     sigFig `json:"perimeter"`
	CentroidX     sigFig `json:"centroid_x"`
	CentroidY     sigFig `json:"centroid_y"`
}

// WriteScan writes a scan's full set of entries as a top-level array
// ordered lexicographically by (r, t).
func WriteScan(path string, entries []roi.ScanEntry) error {
	sorted := make([]roi.ScanEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].R != sorted[j].R {
			return sorted[i].R < sorted[j].R
		}
		return sorted[i].T < sorted[j].T
	})

	rows := make([]scanRow, len(sorted))
	for i, e := range sorted {
		rows[i] = scanRow{R: sigFig(e.R), T: sigFig(e.T), LogP: sigFig(e.LogP)}
	}
	return writeJSON(path, rows)
}

// WriteClusters writes one scan entry's non-empty clusters as the
// cluster-output array of, one row per cluster with its
// convex-hull-derived area/perimeter/centroid.
func WriteClusters(path string, clusters []roi.ClusterResult) error {
	rows := make([]clusterRow, 0, len(clusters))
	for _, c := range clusters {
		if len(c.Points) == 0 {
			continue
		}
		hull := geom.ConvexHull(c.Points)
		centroid := geom.Centroid(c.Points)
		rows = append(rows, clusterRow{
			Localizations: c.Size,
			Area:          sigFig(geom.PolygonArea(hull)),
			Perimeter:     sigFig(geom.PolygonPerimeter(hull)),
			CentroidX:     sigFig(centroid.X),
			CentroidY:     sigFig(centroid.Y),
		})
	}
	return writeJSON(path, rows)
}

func writeJSON(path string, v any) error {
	data, err := api.Marshal(v)
	if err != nil {
		return cos.NewErrIOFailure("marshaling JSON for %q: %v", path, err)
	}
	data = bytes.TrimSuffix(bytes.TrimSpace(data), []byte(","))

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return cos.NewErrIOFailure("creating directory for %q: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return cos.NewErrIOFailure("writing %q: %v", path, err)
	}
	return nil
}

// ResolvePath substitutes {input} (the input file's stem) and {roi} (the
// RoI's id) into pattern output-path substitution.
func ResolvePath(pattern, inputFile, roiID string) string {
	stem := strings.TrimSuffix(filepath.Base(inputFile), filepath.Ext(inputFile))
	r := strings.NewReplacer("{input}", stem, "{roi}", roiID)
	return r.Replace(pattern)
}
