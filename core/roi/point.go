// Package roi - Point: a localization, its derived polar coordinates,
// its pre-sorted neighbor list, and its per-R cached localization score. See
// config.go for the package-level design note.
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package roi

import "math"

// Neighbor is one entry of a Point's neighbor list: the squared Euclidean
// distance to another Point and that Point's index within the owning RoI.
type Neighbor struct {
	DistSq float64
	Index  int
}

// Point is a single localization: its position (X, Y), its positional
// uncertainty S, derived polar coordinates, and the per-R cached
// localization score and sorted neighbor list built by RoI.Preprocess.
//
// Point does not carry an owned proto-Cluster; AddProtoInto writes the
// proto-cluster's sufficient statistics directly into a caller-supplied
// target Cluster, avoiding a per-Point heap allocation without changing
// the math.
type Point struct {
	X, Y float64
	S    float64

	Radius   float64
	RadiusSq float64
	Phi      float64

	Neighbors []Neighbor
	ScoresByR []float64
}

// NewPoint derives the polar coordinates of a localization at construction,
// per the invariant r^2 = x^2+y^2, r = sqrt(r^2), phi = atan2(y, x).
func NewPoint(x, y, s float64) Point {
	r2 := x*x + y*y
	return Point{
		X: x, Y: y, S: s,
		RadiusSq: r2,
		Radius:   math.Sqrt(r2),
		Phi:      math.Atan2(y, x),
	}
}

// AddProtoInto adds this point's proto-cluster (its sufficient statistics
// under every sigma hypothesis) into target: for sigma-bin
// k with sigma^2 = sigmaBins2[k], w = 1/(s^2 + sigmaBins2[k]),
// A=w, Bx=w*x, By=w*y, C=w*(x^2+y^2), logF=log(w).
func (p *Point) AddProtoInto(target *Cluster, sigmaBins2 []float64) {
	if len(target.Params) == 0 {
		target.Params = make([]Param, len(sigmaBins2))
	}
	s2 := p.S * p.S
	xy2 := p.X*p.X + p.Y*p.Y
	for k, sig2 := range sigmaBins2 {
		w := 1.0 / (s2 + sig2)
		pm := &target.Params[k]
		pm.A += w
		pm.Bx += w * p.X
		pm.By += w * p.Y
		pm.C += w * xy2
		pm.LogF += math.Log(w)
	}
	target.Size++
}
