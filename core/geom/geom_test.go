/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package geom

import (
	"math"
	"testing"
)

func TestConvexHullUnitSquare(t *testing.T) {
	pts := []Point{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0.5, 0.5}}
	hull := ConvexHull(pts)
	if len(hull) != 4 {
		t.Fatalf("expected 4 hull vertices (interior point dropped), got %d: %v", len(hull), hull)
	}
	if area := PolygonArea(hull); math.Abs(area-1) > 1e-9 {
		t.Errorf("unit square hull area = %g, want 1", area)
	}
}

func TestConvexHullFewerThanThree(t *testing.T) {
	for n := 0; n <= 2; n++ {
		pts := make([]Point, n)
		hull := ConvexHull(pts)
		if len(hull) != n {
			t.Errorf("n=%d: hull has %d points, want %d", n, len(hull), n)
		}
	}
}

func TestPolygonAreaTriangle(t *testing.T) {
	tri := []Point{{0, 0}, {4, 0}, {0, 3}}
	if got := PolygonArea(tri); math.Abs(got-6) > 1e-9 {
		t.Errorf("triangle area = %g, want 6", got)
	}
}

func TestPolygonPerimeterSquare(t *testing.T) {
	sq := []Point{{0, 0}, {2, 0}, {2, 2}, {0, 2}}
	if got := PolygonPerimeter(sq); math.Abs(got-8) > 1e-9 {
		t.Errorf("square perimeter = %g, want 8", got)
	}
}

func TestCentroid(t *testing.T) {
	pts := []Point{{0, 0}, {2, 0}, {2, 2}, {0, 2}}
	c := Centroid(pts)
	if math.Abs(c.X-1) > 1e-9 || math.Abs(c.Y-1) > 1e-9 {
		t.Errorf("centroid = %+v, want {1, 1}", c)
	}
}

func TestCentroidEmpty(t *testing.T) {
	if c := Centroid(nil); c != (Point{}) {
		t.Errorf("centroid of empty set = %+v, want zero value", c)
	}
}

func TestPointInPolygonSquare(t *testing.T) {
	sq := []Point{{0, 0}, {2, 0}, {2, 2}, {0, 2}}
	cases := []struct {
		p    Point
		want bool
	}{
		{Point{1, 1}, true},
		{Point{3, 1}, false},
		{Point{-1, -1}, false},
	}
	for _, c := range cases {
		if got := PointInPolygon(c.p, sq); got != c.want {
			t.Errorf("PointInPolygon(%+v) = %v, want %v", c.p, got, c.want)
		}
	}
}

func TestBoundingBox(t *testing.T) {
	pts := []Point{{-1, 2}, {3, -4}, {0, 0}}
	min, max := BoundingBox(pts)
	if min != (Point{-1, -4}) || max != (Point{3, 2}) {
		t.Errorf("bounding box = [%+v, %+v], want [{-1 -4}, {3 2}]", min, max)
	}
}
