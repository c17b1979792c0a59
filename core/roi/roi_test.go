/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package roi

import (
	"math"
	"math/rand"
	"testing"

	"github.com/cefhalic/bayescluster/core/geom"
)

func randomPoints(n int, seed int64) []Point {
	rng := rand.New(rand.NewSource(seed))
	pts := make([]Point, n)
	for i := range pts {
		x := rng.Float64()*2 - 1
		y := rng.Float64()*2 - 1
		pts[i] = NewPoint(x, y, 0.02)
	}
	return pts
}

// TestNeighborhoodCompleteness checks that for every point P and every R on
// a grid, the brute-force count of points within R equals the count of
// preprocessed neighbors with d^2 <= R^2.
func TestNeighborhoodCompleteness(t *testing.T) {
	pts := randomPoints(200, 1)
	r := NewRoI("completeness", pts, geom.Point{}, 4)
	const maxR = 0.1
	if err := r.Preprocess(maxR, []float64{0.0004}); err != nil {
		t.Fatalf("Preprocess: %v", err)
	}

	for _, R := range []float64{0.01, 0.05, 0.1} {
		R2 := R * R
		for i := range r.Points {
			want := 0
			for j := range r.Points {
				if i == j {
					continue
				}
				dx := r.Points[i].X - r.Points[j].X
				dy := r.Points[i].Y - r.Points[j].Y
				if dx*dx+dy*dy <= R2 {
					want++
				}
			}
			got := 0
			for _, nb := range r.Points[i].Neighbors {
				if nb.DistSq <= R2 {
					got++
				}
			}
			if got != want {
				t.Fatalf("point %d at R=%g: neighbor count %d != brute-force %d", i, R, got, want)
			}
		}
	}
}

func TestScoresByRMonotone(t *testing.T) {
	pts := randomPoints(150, 2)
	r := NewRoI("monotone", pts, geom.Point{}, 4)
	const maxR = 0.2
	if err := r.Preprocess(maxR, []float64{0.0004}); err != nil {
		t.Fatalf("Preprocess: %v", err)
	}
	rb := newBounds(20, 0, maxR)
	if err := r.PreprocessLocalizationScores(rb); err != nil {
		t.Fatalf("PreprocessLocalizationScores: %v", err)
	}

	for i := range r.Points {
		scores := r.Points[i].ScoresByR
		for k := 1; k < len(scores); k++ {
			if scores[k] < scores[k-1] {
				t.Fatalf("point %d: scores_by_R not monotone at bin %d: %g < %g", i, k, scores[k], scores[k-1])
			}
		}
	}
}

func TestPreprocessAngularPruneNoPanicNearOrigin(t *testing.T) {
	// A point at the origin has radius 0, so max2R/radius is +Inf (or NaN via
	// 0/0 if max2R is also 0); Preprocess must treat this as "no pruning"
	// rather than propagating NaN into the neighbor walk.
	pts := []Point{NewPoint(0, 0, 0.02), NewPoint(0.01, 0, 0.02), NewPoint(-0.01, 0, 0.02)}
	r := NewRoI("origin", pts, geom.Point{}, 1)
	if err := r.Preprocess(0.05, []float64{0.0004}); err != nil {
		t.Fatalf("Preprocess: %v", err)
	}
	for i := range r.Points {
		if math.IsNaN(r.Points[i].Radius) {
			t.Fatalf("point %d has NaN radius", i)
		}
	}
	// The origin point (index 0) must see both other points as neighbors.
	if len(r.Points[0].Neighbors) != 2 {
		t.Errorf("origin point neighbor count = %d, want 2", len(r.Points[0].Neighbors))
	}
}
