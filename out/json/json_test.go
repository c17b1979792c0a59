/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package json

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/cefhalic/bayescluster/core/geom"
	"github.com/cefhalic/bayescluster/core/roi"
)

func TestResolvePathSubstitutesInputAndRoi(t *testing.T) {
	got := ResolvePath("out/{input}_{roi}.json", "/data/locs.csv", "roi-7")
	want := "out/locs_roi-7.json"
	if got != want {
		t.Errorf("ResolvePath = %q, want %q", got, want)
	}
}

func TestWriteScanOrdersLexicographicallyAndFiveSigFigs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scan.json")

	entries := []roi.ScanEntry{
		{R: 0.2, T: 0.1, LogP: -12.3456789},
		{R: 0.1, T: 0.5, LogP: 1.0},
		{R: 0.1, T: 0.1, LogP: 2.0},
	}
	if err := WriteScan(path, entries); err != nil {
		t.Fatalf("WriteScan: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %q: %v", path, err)
	}
	if data[len(data)-1] == ',' {
		t.Fatalf("trailing comma not stripped: %s", data)
	}

	var rows []map[string]any
	if err := json.Unmarshal(data, &rows); err != nil {
		t.Fatalf("unmarshal: %v\n%s", err, data)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	// Lexicographic (r, t): (0.1, 0.1), (0.1, 0.5), (0.2, 0.1)
	if rows[0]["r"].(float64) != 0.1 || rows[0]["t"].(float64) != 0.1 {
		t.Errorf("row 0 = %v, want r=0.1 t=0.1", rows[0])
	}
	if rows[2]["r"].(float64) != 0.2 {
		t.Errorf("row 2 r = %v, want 0.2", rows[2]["r"])
	}
	// sigFig rounds to 5 significant digits: -12.3456789 -> -12.346.
	if got := rows[2]["logP"].(float64); math.Abs(got-(-12.346)) > 1e-9 {
		t.Errorf("row 2 logP = %v, want -12.346 (5 significant digits)", got)
	}
}

func TestWriteClustersComputesHullGeometry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clusters.json")

	clusters := []roi.ClusterResult{
		{
			Points: []geom.Point{{X: 0, Y: 0}, {X: 2, Y: 0}, {X: 2, Y: 2}, {X: 0, Y: 2}},
			Size:   4,
		},
		{Points: nil, Size: 0}, // skipped: no member points
	}
	if err := WriteClusters(path, clusters); err != nil {
		t.Fatalf("WriteClusters: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %q: %v", path, err)
	}
	var rows []map[string]any
	if err := json.Unmarshal(data, &rows); err != nil {
		t.Fatalf("unmarshal: %v\n%s", err, data)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1 (empty cluster skipped)", len(rows))
	}
	if rows[0]["localizations"].(float64) != 4 {
		t.Errorf("localizations = %v, want 4", rows[0]["localizations"])
	}
	if rows[0]["area"].(float64) != 4 {
		t.Errorf("area = %v, want 4 (2x2 square)", rows[0]["area"])
	}
	if rows[0]["perimeter"].(float64) != 8 {
		t.Errorf("perimeter = %v, want 8", rows[0]["perimeter"])
	}
	if rows[0]["centroid_x"].(float64) != 1 || rows[0]["centroid_y"].(float64) != 1 {
		t.Errorf("centroid = (%v, %v), want (1, 1)", rows[0]["centroid_x"], rows[0]["centroid_y"])
	}
}
