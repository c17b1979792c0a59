/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package api

import (
	"archive/zip"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/cefhalic/bayescluster/core/roi"
	ingestroi "github.com/cefhalic/bayescluster/ingest/roi"
)

const csvHeader = "id,frame,x [nm],y [nm],sigma [nm],intensity [photon],offset [photon],bkgstd [photon],chi2,uncertainty_xy [nm]\n"

// writeLocalizationCSV writes a minimal localization file: a unit square
// (in metres, pre-converted to nanometres for the loader) plus enough
// spacing that the 2R neighbor radius used below only connects the square.
func writeLocalizationCSV(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "locs.csv")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create fixture: %v", err)
	}
	defer f.Close()
	fmt.Fprint(f, csvHeader)
	// +-0.1m square in nm, sigma=150nm (within the accepted [100,300] range),
	// uncertainty_xy=1nm.
	coords := [][2]float64{{0.1, 0.1}, {0.1, -0.1}, {-0.1, 0.1}, {-0.1, -0.1}}
	for i, c := range coords {
		fmt.Fprintf(f, "%d,0,%g,%g,150,0,0,0,0,1\n", i+1, c[0]*1e9, c[1]*1e9)
	}
	return path
}

// writePositiveSquareCSV writes four localizations forming a small square
// entirely within positive coordinates, for pairing against an ImageJ
// polygon fixture (whose pixel coordinates are unsigned).
func writePositiveSquareCSV(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "locs.csv")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create fixture: %v", err)
	}
	defer f.Close()
	fmt.Fprint(f, csvHeader)
	coords := [][2]float64{{0.15, 0.15}, {0.15, 0.25}, {0.25, 0.15}, {0.25, 0.25}}
	for i, c := range coords {
		fmt.Fprintf(f, "%d,0,%g,%g,150,0,0,0,0,1\n", i+1, c[0]*1e9, c[1]*1e9)
	}
	return path
}

// buildImageJPolygonRoI constructs a minimal ImageJ binary .roi polygon
// record, mirroring the layout ingest/imagej.DecodeBinaryRoI parses.
func buildImageJPolygonRoI(top, left uint16, xs, ys []uint16) []byte {
	const (
		magic          = "Iout"
		versionOffset  = 4
		supportedVer   = 0xE4
		roiTypeOffset  = 6
		roiTypePolygon = 0x00
		topOffset      = 8
		leftOffset     = 10
		countOffset    = 16
		coordsStart    = 64
	)
	n := len(xs)
	buf := make([]byte, coordsStart+4*n)
	copy(buf[:4], magic)
	binary.BigEndian.PutUint16(buf[versionOffset:], supportedVer)
	binary.BigEndian.PutUint16(buf[roiTypeOffset:], roiTypePolygon)
	binary.BigEndian.PutUint16(buf[topOffset:], top)
	binary.BigEndian.PutUint16(buf[leftOffset:], left)
	binary.BigEndian.PutUint16(buf[countOffset:], uint16(n))
	for i, x := range xs {
		binary.BigEndian.PutUint16(buf[coordsStart+2*i:], x)
	}
	for i, y := range ys {
		binary.BigEndian.PutUint16(buf[coordsStart+2*n+2*i:], y)
	}
	return buf
}

func testScanConfig(t *testing.T, rBins int, rLow, rHigh float64) *roi.ScanConfiguration {
	t.Helper()
	cfg, err := roi.NewScanConfiguration(
		2, 0.01, 0.03, func(float64) float64 { return 1 },
		rBins, rLow, rHigh,
		1, 0, 0,
		0.5, 1,
	)
	if err != nil {
		t.Fatalf("NewScanConfiguration: %v", err)
	}
	return cfg
}

func TestManualRoiClusterFullSingleCluster(t *testing.T) {
	path := writeLocalizationCSV(t)
	req := Request{InputFile: path, Threads: 1}
	cfg := testScanConfig(t, 0, 0.15, 0.15)

	var got roi.ScanEntry
	var calls int
	m := ingestroi.ManualRoI{X: 0, Y: 0, W: 1, H: 1}
	err := ManualRoiClusterFull(context.Background(), req, m, cfg, 0.15, 0, func(e roi.ScanEntry) {
		calls++
		got = e
	})
	if err != nil {
		t.Fatalf("ManualRoiClusterFull: %v", err)
	}
	if calls != 1 {
		t.Fatalf("callback invoked %d times, want 1", calls)
	}
	if got.ClusterCount != 1 || got.ClusteredCount != 4 || got.BackgroundCount != 0 {
		t.Errorf("entry = %+v, want ClusterCount=1 ClusteredCount=4 BackgroundCount=0", got)
	}
}

func TestManualRoiScanToJSONWritesBothFiles(t *testing.T) {
	path := writeLocalizationCSV(t)
	req := Request{InputFile: path, Threads: 2}
	cfg := testScanConfig(t, 3, 0.02, 0.2)
	m := ingestroi.ManualRoI{X: 0, Y: 0, W: 1, H: 1}

	outDir := t.TempDir()
	outPattern := filepath.Join(outDir, "{input}_{roi}.json")

	if err := ManualRoiScanToJSON(context.Background(), req, m, cfg, outPattern); err != nil {
		t.Fatalf("ManualRoiScanToJSON: %v", err)
	}

	matches, err := filepath.Glob(filepath.Join(outDir, "locs_*.json"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	// Expect the scan file and the .clusters file.
	if len(matches) != 2 {
		t.Fatalf("got %d output files, want 2: %v", len(matches), matches)
	}
	for _, m := range matches {
		data, err := os.ReadFile(m)
		if err != nil {
			t.Fatalf("reading %q: %v", m, err)
		}
		var rows []map[string]any
		if err := json.Unmarshal(data, &rows); err != nil {
			t.Fatalf("%q did not contain a valid JSON array: %v\n%s", m, err, data)
		}
	}
}

func TestAutoRoiClusterFullNoRegionsOnEmptyInput(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.csv")
	if err := os.WriteFile(path, []byte(csvHeader), 0o644); err != nil {
		t.Fatalf("writing empty fixture: %v", err)
	}
	req := Request{InputFile: path, Threads: 1}
	cfg := testScanConfig(t, 0, 0.1, 0.1)

	calls := 0
	err := AutoRoiClusterFull(context.Background(), req, cfg, 0.1, 0, func(roi.ScanEntry) { calls++ })
	if err != nil {
		t.Fatalf("AutoRoiClusterFull: %v", err)
	}
	if calls != 0 {
		t.Errorf("callback invoked %d times on empty input, want 0", calls)
	}
}

func TestLoadPointsRejectsMissingInputFile(t *testing.T) {
	req := Request{}
	if _, err := req.loadPoints(); err == nil {
		t.Error("expected an error for an unset InputFile")
	}
}

// assertSortedByRT fails t if entries is not non-decreasing by (R, T).
func assertSortedByRT(t *testing.T, entries []roi.SimpleEntry) {
	t.Helper()
	for i := 1; i < len(entries); i++ {
		if entries[i-1].R > entries[i].R ||
			(entries[i-1].R == entries[i].R && entries[i-1].T > entries[i].T) {
			t.Errorf("entries not sorted by (R, T) at index %d: %+v then %+v", i, entries[i-1], entries[i])
		}
	}
}

func TestManualRoiScanSimpleInvokesCallbackOnce(t *testing.T) {
	path := writeLocalizationCSV(t)
	req := Request{InputFile: path, Threads: 2}
	cfg := testScanConfig(t, 3, 0.02, 0.2)
	m := ingestroi.ManualRoI{X: 0, Y: 0, W: 1, H: 1}

	var calls int
	var entries []roi.SimpleEntry
	err := ManualRoiScanSimple(context.Background(), req, m, cfg, func(e []roi.SimpleEntry) {
		calls++
		entries = e
	})
	if err != nil {
		t.Fatalf("ManualRoiScanSimple: %v", err)
	}
	if calls != 1 {
		t.Fatalf("callback invoked %d times, want 1", calls)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3 (one per R bin)", len(entries))
	}
	assertSortedByRT(t, entries)
}

func TestAutoRoiScanSimpleNoCallbackOnEmptyInput(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.csv")
	if err := os.WriteFile(path, []byte(csvHeader), 0o644); err != nil {
		t.Fatalf("writing empty fixture: %v", err)
	}
	req := Request{InputFile: path, Threads: 1}
	cfg := testScanConfig(t, 2, 0.05, 0.15)

	calls := 0
	err := AutoRoiScanSimple(context.Background(), req, cfg, func([]roi.SimpleEntry) { calls++ })
	if err != nil {
		t.Fatalf("AutoRoiScanSimple: %v", err)
	}
	if calls != 0 {
		t.Errorf("callback invoked %d times on empty input (no auto-detected regions), want 0", calls)
	}
}

func TestImageJRoiScanSimpleInvokesCallbackOncePerPolygon(t *testing.T) {
	path := writePositiveSquareCSV(t)
	req := Request{InputFile: path, Threads: 1}
	cfg := testScanConfig(t, 2, 0.1, 0.3)

	dir := t.TempDir()
	zipPath := filepath.Join(dir, "rois.zip")
	f, err := os.Create(zipPath)
	if err != nil {
		t.Fatalf("create zip: %v", err)
	}
	zw := zip.NewWriter(f)
	poly := buildImageJPolygonRoI(0, 0, []uint16{0, 500, 500, 0}, []uint16{0, 0, 500, 500})
	for _, name := range []string{"a.roi", "b.roi"} {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip.Create(%q): %v", name, err)
		}
		if _, err := w.Write(poly); err != nil {
			t.Fatalf("writing zip entry %q: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("closing zip writer: %v", err)
	}
	f.Close()

	var calls int
	var lastLen int
	err = ImageJRoiScanSimple(context.Background(), req, zipPath, 0.001, cfg, func(entries []roi.SimpleEntry) {
		calls++
		lastLen = len(entries)
		assertSortedByRT(t, entries)
	})
	if err != nil {
		t.Fatalf("ImageJRoiScanSimple: %v", err)
	}
	if calls != 2 {
		t.Fatalf("callback invoked %d times, want 2 (once per polygon)", calls)
	}
	if lastLen != 2 {
		t.Errorf("got %d entries per polygon, want 2 (one per R bin)", lastLen)
	}
}
