// Package geom provides the small amount of planar geometry the core needs
// around its clustering: convex hulls and polygon area/perimeter/centroid
// for cluster output, and point-in-polygon membership for arbitrary
// (non-rectangular) RoIs imported from ImageJ.
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package geom

import (
	"math"
	"sort"
)

// Point is a minimal planar point - kept separate from roi.Point (which
// carries localization-specific fields) so this package has no dependency on
// the clustering core.
type Point struct {
	X, Y float64
}

// ConvexHull returns the vertices of the convex hull of pts in counter-
// clockwise order, using the monotone-chain (Andrew) algorithm: sort by
// (x, y), then build the lower and upper chains. O(n log n).
func ConvexHull(pts []Point) []Point {
	n := len(pts)
	if n < 3 {
		out := make([]Point, n)
		copy(out, pts)
		return out
	}

	sorted := make([]Point, n)
	copy(sorted, pts)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].X != sorted[j].X {
			return sorted[i].X < sorted[j].X
		}
		return sorted[i].Y < sorted[j].Y
	})

	cross := func(o, a, b Point) float64 {
		return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
	}

	hull := make([]Point, 0, 2*n)
	// lower chain
	for _, p := range sorted {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	// upper chain
	lower := len(hull) + 1
	for i := n - 2; i >= 0; i-- {
		p := sorted[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	return hull[:len(hull)-1]
}

// PolygonArea returns the (unsigned) area of a simple polygon via the
// shoelace formula.
func PolygonArea(poly []Point) float64 {
	n := len(poly)
	if n < 3 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += poly[i].X*poly[j].Y - poly[j].X*poly[i].Y
	}
	return math.Abs(sum) / 2
}

// PolygonPerimeter returns the perimeter of a (not necessarily convex) closed
// polygon.
func PolygonPerimeter(poly []Point) float64 {
	n := len(poly)
	if n < 2 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		dx := poly[j].X - poly[i].X
		dy := poly[j].Y - poly[i].Y
		sum += math.Hypot(dx, dy)
	}
	return sum
}

// Centroid returns the arithmetic mean of a set of points - used as the
// cluster centroid, which is the centroid of its member localizations, not
// of its hull (the hull can have far fewer, unevenly-weighted vertices).
func Centroid(pts []Point) Point {
	if len(pts) == 0 {
		return Point{}
	}
	var sx, sy float64
	for _, p := range pts {
		sx += p.X
		sy += p.Y
	}
	n := float64(len(pts))
	return Point{X: sx / n, Y: sy / n}
}

// PointInPolygon reports whether p lies inside poly using the standard
// ray-casting (even-odd) test. Points exactly on the boundary may resolve
// either way depending on floating-point rounding.
func PointInPolygon(p Point, poly []Point) bool {
	n := len(poly)
	if n < 3 {
		return false
	}
	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		pi, pj := poly[i], poly[j]
		if (pi.Y > p.Y) != (pj.Y > p.Y) &&
			p.X < (pj.X-pi.X)*(p.Y-pi.Y)/(pj.Y-pi.Y)+pi.X {
			inside = !inside
		}
	}
	return inside
}

// BoundingBox returns the axis-aligned bounding box (min corner, max corner)
// of a point set.
func BoundingBox(pts []Point) (min, max Point) {
	if len(pts) == 0 {
		return
	}
	min, max = pts[0], pts[0]
	for _, p := range pts[1:] {
		min.X = math.Min(min.X, p.X)
		min.Y = math.Min(min.Y, p.Y)
		max.X = math.Max(max.X, p.X)
		max.Y = math.Max(max.Y, p.Y)
	}
	return
}
