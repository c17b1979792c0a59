// Package roi builds core/roi.RoI instances from loaded localization points:
// a manually-specified rectangle, an automatically-detected density region,
// or an ImageJ polygon.
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package roi

import (
	"math"
	"sort"

	"github.com/cefhalic/bayescluster/cmn/cos"
	"github.com/cefhalic/bayescluster/cmn/nlog"
	"github.com/cefhalic/bayescluster/core/geom"
	corer "github.com/cefhalic/bayescluster/core/roi"
)

// ManualRoI is a user-specified rectangular region, centred at (X, Y) with
// full width W and height H.
type ManualRoI struct {
	X, Y float64
	W, H float64
}

// FromManual extracts the points falling within m (centred, width/height
// window) and returns an RoI recentred on m's centre.
func FromManual(id string, all []corer.Point, m ManualRoI) *corer.RoI {
	halfW, halfH := m.W/2, m.H/2
	var pts []corer.Point
	for _, p := range all {
		x, y := p.X-m.X, p.Y-m.Y
		if math.Abs(x) < halfW && math.Abs(y) < halfH {
			pts = append(pts, corer.NewPoint(x, y, p.S))
		}
	}
	return corer.NewRoI(id, pts, geom.Point{X: m.X, Y: m.Y}, m.W*m.H)
}

// FromImageJPolygon extracts the points inside poly (already scaled into the
// same physical unit as the localization data) and recentres the result on
// the polygon's centroid.
func FromImageJPolygon(id string, all []corer.Point, poly []geom.Point) *corer.RoI {
	hull := geom.ConvexHull(poly)
	centre := geom.Centroid(poly)
	area := geom.PolygonArea(hull)

	var pts []corer.Point
	for _, p := range all {
		if geom.PointInPolygon(geom.Point{X: p.X, Y: p.Y}, poly) {
			pts = append(pts, corer.NewPoint(p.X-centre.X, p.Y-centre.Y, p.S))
		}
	}
	return corer.NewRoI(id, pts, centre, area)
}

// autoHistBins is the fixed square-histogram resolution used by automatic
// RoI detection.
const autoHistBins = 512

// gaussianRadius is the blur kernel's half-width (so the kernel is
// (2*gaussianRadius+1)^2).
const gaussianRadius = 7

// densityThresholdFrac keeps an auto-detected region only if its blurred
// density exceeds this fraction of the histogram's peak.
const densityThresholdFrac = 0.2

// minAutoRoISize discards auto-detected regions smaller than this many
// histogram cells.
const minAutoRoISize = 500

// FromAutoDetect finds density regions in all by binning into an
// autoHistBins x autoHistBins histogram, Gaussian-blurring it, thresholding
// at densityThresholdFrac of the peak, and flood-filling connected regions.
// Regions are returned in ascending order of member count (largest last), points
// are recentred on their region's member centroid, and the returned Area is
// the region's histogram-cell count times one cell's physical area.
func FromAutoDetect(all []corer.Point) []*corer.RoI {
	if len(all) == 0 {
		return nil
	}

	minX, maxX, minY, maxY := all[0].X, all[0].X, all[0].Y, all[0].Y
	for _, p := range all {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	xScale := autoHistBins / (maxX - minX)
	yScale := autoHistBins / (maxY - minY)
	binArea := 1.0 / (xScale * yScale)

	var hist [autoHistBins][autoHistBins]int
	cellOf := func(p *corer.Point) (int, int) {
		x := int((p.X - minX) * xScale)
		y := int((p.Y - minY) * yScale)
		if x >= autoHistBins {
			x = autoHistBins - 1
		}
		if y >= autoHistBins {
			y = autoHistBins - 1
		}
		return x, y
	}
	for i := range all {
		x, y := cellOf(&all[i])
		hist[x][y]++
	}

	mask := make([][]float64, gaussianRadius*2+1)
	for i := range mask {
		mask[i] = make([]float64, gaussianRadius*2+1)
		for j := range mask[i] {
			di, dj := float64(i-gaussianRadius), float64(j-gaussianRadius)
			mask[i][j] = math.Exp(-(di*di + dj*dj) / float64((2*gaussianRadius+1)*(2*gaussianRadius+1)))
		}
	}

	var blurred [autoHistBins][autoHistBins]float64
	maxVal := math.Inf(-1)
	for i := 0; i < autoHistBins; i++ {
		for j := 0; j < autoHistBins; j++ {
			var sum float64
			for k := -gaussianRadius; k <= gaussianRadius; k++ {
				for l := -gaussianRadius; l <= gaussianRadius; l++ {
					i2, j2 := i+k, j+l
					if i2 < 0 || i2 >= autoHistBins || j2 < 0 || j2 >= autoHistBins {
						continue
					}
					sum += float64(hist[i2][j2]) * mask[k+gaussianRadius][l+gaussianRadius]
				}
			}
			blurred[i][j] = sum
			if sum > maxVal {
				maxVal = sum
			}
		}
	}

	var mark [autoHistBins][autoHistBins]int
	threshold := densityThresholdFrac * maxVal
	for i := 0; i < autoHistBins; i++ {
		for j := 0; j < autoHistBins; j++ {
			if blurred[i][j] > threshold {
				mark[i][j] = -1
			}
		}
	}

	nextID := 0
	for i := 0; i < autoHistBins; i++ {
		for j := 0; j < autoHistBins; j++ {
			if mark[i][j] < 0 {
				nextID++
				floodFill(&mark, nextID, i, j)
			}
		}
	}
	if nextID == 0 {
		return nil
	}

	type record struct {
		size           int
		centreX, centreY float64
		members        []*corer.Point
	}
	records := make([]record, nextID+1)

	for i := range all {
		x, y := cellOf(&all[i])
		id := mark[x][y]
		if id <= 0 {
			continue
		}
		records[id].size++
	}
	for i := 0; i < autoHistBins; i++ {
		for j := 0; j < autoHistBins; j++ {
			if mark[i][j] > 0 {
				records[mark[i][j]].size++
			}
		}
	}
	for i := range all {
		x, y := cellOf(&all[i])
		id := mark[x][y]
		if id <= 0 || records[id].size < minAutoRoISize {
			continue
		}
		records[id].members = append(records[id].members, &all[i])
		records[id].centreX += all[i].X
		records[id].centreY += all[i].Y
	}

	sort.Slice(records, func(i, j int) bool { return len(records[i].members) < len(records[j].members) })

	var out []*corer.RoI
	for ridx, rec := range records {
		if len(rec.members) == 0 {
			continue
		}
		cx := rec.centreX / float64(len(rec.members))
		cy := rec.centreY / float64(len(rec.members))

		pts := make([]corer.Point, 0, len(rec.members))
		for _, m := range rec.members {
			pts = append(pts, corer.NewPoint(m.X-cx, m.Y-cy, m.S))
		}
		id := cos.GenID(8)
		out = append(out, corer.NewRoI(id, pts, geom.Point{X: cx, Y: cy}, binArea*float64(rec.size)))
		nlog.Infof("auto-detected RoI %s (%d): %d points, area %g", id, ridx, len(pts), binArea*float64(rec.size))
	}
	return out
}

// floodFill marks a 4-connected region of cells below zero (still
// unassigned) with id. Implemented with an explicit stack rather than
// recursion since a histogram bin can belong to one contiguous region
// spanning much of autoHistBins^2 cells, which would otherwise recurse far
// deeper than Go's default goroutine stack comfortably grows without
// incident (Go's stacks do grow, but an explicit heap-allocated stack keeps
// the goroutine stack depth constant).
func floodFill(mark *[autoHistBins][autoHistBins]int, id, i, j int) {
	type cell struct{ i, j int }
	stack := []cell{{i, j}}
	mark[i][j] = id
	for len(stack) > 0 {
		c := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		neighbors := [4]cell{{c.i - 1, c.j}, {c.i + 1, c.j}, {c.i, c.j - 1}, {c.i, c.j + 1}}
		for _, n := range neighbors {
			if n.i < 0 || n.i >= autoHistBins || n.j < 0 || n.j >= autoHistBins {
				continue
			}
			if mark[n.i][n.j] < 0 {
				mark[n.i][n.j] = id
				stack = append(stack, n)
			}
		}
	}
}
