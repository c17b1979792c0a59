// Package imagej decodes ImageJ's binary .roi polygon format out of a zip
// archive of ROIs, the shape used when regions of interest were hand-drawn
// in ImageJ and exported via its ROI Manager's "Save" command.
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package imagej

import (
	"archive/zip"
	"encoding/binary"
	"io"

	"github.com/cefhalic/bayescluster/cmn/cos"
	"github.com/cefhalic/bayescluster/core/geom"
)

const (
	magic         = "Iout"
	roiTypeOffset = 6
	roiTypePolygon = 0x00
	versionOffset = 4
	supportedVer  = 0xE4
	topOffset     = 8
	leftOffset    = 10
	countOffset   = 16
	coordsStart   = 64
)

// DecodeBinaryRoI parses a single ImageJ .roi polygon record: a fixed
// 64-byte header (magic "Iout", a 2-byte version, a 2-byte ROI type, then
// the bounding box top/left and vertex count as big-endian uint16),
// followed by packed x-then-y 16-bit vertex coordinate arrays, each taken
// relative to the bounding box's left/top.
//
// Only the polygon ROI type and version 0xE4 are supported; ImageJ's own
// format has evolved since and other versions are not known to decode
// correctly against this layout.
func DecodeBinaryRoI(data []byte) ([]geom.Point, error) {
	if len(data) < coordsStart || string(data[:4]) != magic {
		return nil, cos.NewErrMalformedInput("not an ImageJ RoI file")
	}
	roiType := binary.BigEndian.Uint16(data[roiTypeOffset:])
	if roiType != roiTypePolygon {
		return nil, cos.NewErrMalformedInput("only polygon ROI type is supported, got %#x", roiType)
	}
	version := binary.BigEndian.Uint16(data[versionOffset:])
	if version != supportedVer {
		return nil, cos.NewErrMalformedInput("only tested against ROI version %#x, got %#x", supportedVer, version)
	}

	top := binary.BigEndian.Uint16(data[topOffset:])
	left := binary.BigEndian.Uint16(data[leftOffset:])
	count := int(binary.BigEndian.Uint16(data[countOffset:]))

	need := coordsStart + 4*count
	if len(data) < need {
		return nil, cos.NewErrMalformedInput("RoI declares %d vertices but payload is truncated", count)
	}

	poly := make([]geom.Point, count)
	xOff := coordsStart
	yOff := coordsStart + 2*count
	for i := 0; i < count; i++ {
		x := binary.BigEndian.Uint16(data[xOff+2*i:]) + left
		y := binary.BigEndian.Uint16(data[yOff+2*i:]) + top
		poly[i] = geom.Point{X: float64(x), Y: float64(y)}
	}
	return poly, nil
}

// OpenZip decodes every .roi entry in the zip archive at path, returning a
// name-to-polygon map, using archive/zip.Reader to walk the archive.
func OpenZip(path string) (map[string][]geom.Point, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, cos.NewErrIOFailure("opening ImageJ RoI zip %q: %v", path, err)
	}
	defer zr.Close()

	out := make(map[string][]geom.Point, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return nil, cos.NewErrIOFailure("reading zip entry %q: %v", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, cos.NewErrIOFailure("reading zip entry %q: %v", f.Name, err)
		}
		poly, err := DecodeBinaryRoI(data)
		if err != nil {
			return nil, err
		}
		out[f.Name] = poly
	}
	return out, nil
}

// Scale multiplies every vertex of poly by factor - used to convert ImageJ's
// pixel-coordinate polygons into the same physical unit (metres) as the
// localization data.
func Scale(poly []geom.Point, factor float64) []geom.Point {
	out := make([]geom.Point, len(poly))
	for i, p := range poly {
		out[i] = geom.Point{X: p.X * factor, Y: p.Y * factor}
	}
	return out
}
