// Package roi - RoI: a region's localizations, pre-sorted by radius
// from the origin, its neighbor index, and its per-R localization-score
// table. See config.go for the package-level design note.
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package roi

import (
	"math"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/cefhalic/bayescluster/core/geom"
)

// RoI is one region of interest: its member localizations (sorted ascending
// by radius from the origin, the ordering Preprocess relies on to bound its
// neighbor walk), its bounding geometry, and an identifier for output.
type RoI struct {
	ID     string
	Points []Point
	Centre geom.Point
	Area   float64
}

// NewRoI builds an RoI from unsorted points, sorting them by radius from the
// origin ascending - the ordering Preprocess's inward/outward walk depends on.
func NewRoI(id string, pts []Point, centre geom.Point, area float64) *RoI {
	sorted := make([]Point, len(pts))
	copy(sorted, pts)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Radius < sorted[j].Radius })
	return &RoI{ID: id, Points: sorted, Centre: centre, Area: area}
}

// Preprocess builds each point's neighbor list out to radius maxR: for each
// point i, walk outward and inward along the
// radius-sorted point list only as long as the radial gap stays within
// 2*maxR (points farther away in r cannot possibly be within 2*maxR in
// Euclidean distance), angularly pruning with asin before paying for the
// exact squared-distance check, then keep only those inside (2*maxR)^2.
// Each point's walk is independent, so this runs one goroutine per point,
// capped by GOMAXPROCS via errgroup's SetLimit.
func (r *RoI) Preprocess(maxR float64, sigmaBins2 []float64) error {
	max2R := 2 * maxR
	max2R2 := max2R * max2R
	n := len(r.Points)

	g := new(errgroup.Group)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			r.preprocessOne(i, max2R, max2R2)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return nil
}

func (r *RoI) preprocessOne(i int, max2R, max2R2 float64) {
	p := &r.Points[i]

	// dphi bounds the angular window within which a point at radius r could
	// still be inside max2R: asin(max2R/r). When max2R >= r (near the
	// origin, or a point-dense RoI relative to maxR), the ratio exceeds 1 and
	// asin is undefined - there all angles are in range, so the angular
	// prune degenerates to "no pruning" (dphi = pi/2 keeps the [dphi, 2pi-dphi)
	// skip-window empty since dphi2 = 2pi-pi/2 > pi >= any |phi difference|
	// is never guaranteed; instead use pi directly so the window collapses).
	var dphi float64
	ratio := max2R / p.Radius
	if math.IsNaN(ratio) || ratio >= 1 {
		dphi = math.Pi
	} else {
		dphi = math.Asin(ratio)
	}
	dphi2 := 2*math.Pi - dphi

	neighbors := make([]Neighbor, 0, 16)

	for j := i + 1; j < len(r.Points); j++ {
		other := &r.Points[j]
		if other.Radius-p.Radius > max2R {
			break
		}
		dp := math.Abs(p.Phi - other.Phi)
		if dp > dphi && dp < dphi2 {
			continue
		}
		dx, dy := p.X-other.X, p.Y-other.Y
		d2 := dx*dx + dy*dy
		if d2 < max2R2 {
			neighbors = append(neighbors, Neighbor{DistSq: d2, Index: j})
		}
	}

	for j := i - 1; j >= 0; j-- {
		other := &r.Points[j]
		if p.Radius-other.Radius > max2R {
			break
		}
		dp := math.Abs(p.Phi - other.Phi)
		if dp > dphi && dp < dphi2 {
			continue
		}
		dx, dy := p.X-other.X, p.Y-other.Y
		d2 := dx*dx + dy*dy
		if d2 < max2R2 {
			neighbors = append(neighbors, Neighbor{DistSq: d2, Index: j})
		}
	}

	sort.Slice(neighbors, func(a, b int) bool { return neighbors[a].DistSq < neighbors[b].DistSq })
	p.Neighbors = neighbors
}

// PreprocessLocalizationScores fills in ScoresByR for every point over the
// R-grid of rb, walking the (already distance-sorted) neighbor list with a
// monotone cursor as R grows, so the whole R-grid for one point costs
// O(len(neighbors)), not O(len(neighbors)*bins). Must run after Preprocess.
func (r *RoI) PreprocessLocalizationScores(rb Bounds) error {
	n := len(r.Points)
	localizationConstant := r.Area / (math.Pi * float64(n-1))

	g := new(errgroup.Group)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			p := &r.Points[i]
			p.ScoresByR = make([]float64, rb.Bins)
			cursor := 0
			var sum, lastSum, score float64
			R := rb.Min
			for k := 0; k < rb.Bins; k, R = k+1, R+rb.Spacing {
				R2 := R * R
				for cursor < len(p.Neighbors) && p.Neighbors[cursor].DistSq <= R2 {
					sum++
					cursor++
				}
				if sum != lastSum {
					score = math.Sqrt(localizationConstant * sum)
					lastSum = sum
				}
				p.ScoresByR[k] = score
			}
			return nil
		})
	}
	return g.Wait()
}

// CalculateLocalizationScore computes a single point's density score at
// radius R from scratch, used by RoIProxy.ClusterizeAt which does not have
// (and does not need) a precomputed ScoresByR table.
func CalculateLocalizationScore(p *Point, R, area float64, n int) float64 {
	localizationConstant := area / (math.Pi * float64(n-1))
	R2 := R * R
	var sum float64
	for _, nb := range p.Neighbors {
		if nb.DistSq > R2 {
			break
		}
		sum++
	}
	return math.Sqrt(localizationConstant * sum)
}
