/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package imagej

import (
	"archive/zip"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// buildPolygonRoI constructs a minimal ImageJ binary .roi polygon record:
// a 64-byte header followed by packed x-then-y big-endian uint16 vertex
// arrays, mirroring the layout DecodeBinaryRoI parses.
func buildPolygonRoI(top, left uint16, xs, ys []uint16) []byte {
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

func TestDecodeBinaryRoIPolygon(t *testing.T) {
	data := buildPolygonRoI(10, 20, []uint16{0, 5, 5}, []uint16{0, 0, 5})
	poly, err := DecodeBinaryRoI(data)
	if err != nil {
		t.Fatalf("DecodeBinaryRoI: %v", err)
	}
	want := []struct{ x, y float64 }{
		{20, 10}, {25, 10}, {25, 15},
	}
	if len(poly) != len(want) {
		t.Fatalf("got %d vertices, want %d", len(poly), len(want))
	}
	for i, w := range want {
		if poly[i].X != w.x || poly[i].Y != w.y {
			t.Errorf("vertex %d = (%g, %g), want (%g, %g)", i, poly[i].X, poly[i].Y, w.x, w.y)
		}
	}
}

func TestDecodeBinaryRoIRejectsBadMagic(t *testing.T) {
	data := buildPolygonRoI(0, 0, []uint16{0}, []uint16{0})
	copy(data[:4], "Nope")
	if _, err := DecodeBinaryRoI(data); err == nil {
		t.Error("expected an error for a bad magic header")
	}
}

func TestDecodeBinaryRoIRejectsTruncatedPayload(t *testing.T) {
	data := buildPolygonRoI(0, 0, []uint16{0, 1, 2}, []uint16{0, 1, 2})
	truncated := data[:len(data)-2]
	if _, err := DecodeBinaryRoI(truncated); err == nil {
		t.Error("expected an error for a truncated vertex payload")
	}
}

func TestDecodeBinaryRoIRejectsWrongVersion(t *testing.T) {
	data := buildPolygonRoI(0, 0, []uint16{0}, []uint16{0})
	binary.BigEndian.PutUint16(data[versionOffset:], 0x0001)
	if _, err := DecodeBinaryRoI(data); err == nil {
		t.Error("expected an error for an unsupported version")
	}
}

func TestOpenZipDecodesEveryEntry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rois.zip")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create zip: %v", err)
	}
	zw := zip.NewWriter(f)
	entries := map[string][]byte{
		"roi1.roi": buildPolygonRoI(0, 0, []uint16{0, 10}, []uint16{0, 10}),
		"roi2.roi": buildPolygonRoI(5, 5, []uint16{0, 20, 20}, []uint16{0, 0, 20}),
	}
	for name, data := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip.Create(%q): %v", name, err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatalf("writing zip entry %q: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("closing zip writer: %v", err)
	}
	f.Close()

	polys, err := OpenZip(path)
	if err != nil {
		t.Fatalf("OpenZip: %v", err)
	}
	if len(polys) != len(entries) {
		t.Fatalf("got %d decoded polygons, want %d", len(polys), len(entries))
	}
	if len(polys["roi1.roi"]) != 2 {
		t.Errorf("roi1.roi has %d vertices, want 2", len(polys["roi1.roi"]))
	}
}

func TestScaleMultipliesEveryVertex(t *testing.T) {
	poly, err := DecodeBinaryRoI(buildPolygonRoI(0, 0, []uint16{1, 2}, []uint16{3, 4}))
	if err != nil {
		t.Fatalf("DecodeBinaryRoI: %v", err)
	}
	scaled := Scale(poly, 2.5)
	for i := range poly {
		if scaled[i].X != poly[i].X*2.5 || scaled[i].Y != poly[i].Y*2.5 {
			t.Errorf("vertex %d: scaled = %+v, want (%g, %g)", i, scaled[i], poly[i].X*2.5, poly[i].Y*2.5)
		}
	}
}
