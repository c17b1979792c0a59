// Package roi - RoIProxy: the per-worker scan state that owns a
// cluster arena and the union-find over one RoI's points for a single R
// value, walked across the T axis. See config.go for the package-level
// design note.
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package roi

import (
	"math"

	"github.com/cefhalic/bayescluster/cmn/cos"
	"github.com/cefhalic/bayescluster/cmn/nlog"
	"github.com/cefhalic/bayescluster/core/geom"
)

// RecursionLimit bounds the depth of the neighbor-walk in attach: a point in
// a pathologically dense neighborhood (e.g. every point coincident) could
// otherwise recurse once per point and blow the goroutine stack.
const RecursionLimit = 75000

// DataProxy is the per-point union-find state carried across one scan:
// whether the point currently counts as background at this (R, T), and
// which arena slot (if any) it belongs to.
type DataProxy struct {
	ClusterIdx int // -1 == unclustered
	Exclude    bool
}

// RoIProxy is the scratch state one scheduler worker owns for one RoI: the
// roi itself, per-point union-find proxies, a pre-reserved cluster arena, and
// the aggregate counters/score produced by the last updateLogScore call.
//
// A RoIProxy is never shared across goroutines: the scheduler gives each
// worker its own instance (see scheduler.go), so none of its state needs
// synchronization.
type RoIProxy struct {
	roi   *RoI
	cfg   *ScanConfiguration
	scr   *sigmaScratch
	data  []DataProxy
	pool  []Cluster
	clust int // number of live (non-empty) clusters

	ClusterCount    int
	ClusteredCount  int
	BackgroundCount int
	LogP            float64
}

// NewRoIProxy allocates a RoIProxy for r, reserving the cluster arena to
// r.Len() slots up front: every point starts as its own singleton cluster
// in the worst case, and Cluster.Parent is an arena index rather than a
// pointer, so indices must stay valid as the pool grows - a guarantee
// append alone cannot make past the reserved capacity.
func NewRoIProxy(r *RoI, cfg *ScanConfiguration) *RoIProxy {
	n := len(r.Points)
	p := &RoIProxy{
		roi:  r,
		cfg:  cfg,
		scr:  newSigmaScratch(len(cfg.SigmaBins())),
		data: make([]DataProxy, n),
		pool: make([]Cluster, 0, n),
	}
	for i := range p.data {
		p.data[i].ClusterIdx = -1
	}
	return p
}

// reset clears the per-(R) union-find state before starting a new R stripe:
// the cluster arena and every point's cluster assignment.
func (p *RoIProxy) reset() {
	p.pool = p.pool[:0]
	p.clust = 0
	for i := range p.data {
		p.data[i].ClusterIdx = -1
	}
}

// getRoot follows idx's Parent chain to the ultimate root, compressing the
// path as it goes (the classic union-find optimization: every visited node is
// repointed directly at the root, so future lookups along this chain are
// O(1)).
func (p *RoIProxy) getRoot(idx int) int {
	root := idx
	for p.pool[root].Parent != noParent {
		root = p.pool[root].Parent
	}
	for idx != root {
		next := p.pool[idx].Parent
		p.pool[idx].Parent = root
		idx = next
	}
	return root
}

// clusterizeOne starts (or continues) a union-find walk from point i: skip
// if already clustered or excluded, otherwise allocate a fresh cluster
// arena slot, seed it with the point's own proto-cluster, and walk its
// neighborhood.
func (p *RoIProxy) clusterizeOne(i int, twoR2 float64, errs *cos.Errs) {
	dp := &p.data[i]
	if dp.ClusterIdx != -1 || dp.Exclude {
		return
	}
	p.pool = append(p.pool, newCluster())
	target := len(p.pool) - 1
	defer func() {
		if r := recover(); r != nil {
			errs.Add(cos.NewErrRecursionLimitExceeded(RecursionLimit))
		}
	}()
	p.attach(i, twoR2, target, 0)
}

// attach is the recursive neighbor-walk: if i already belongs to a
// (possibly different) cluster, merge that cluster into target and stop
// descending further from i (its neighbors were already visited when it was
// first attached); otherwise absorb i's own proto-cluster into target and
// recurse into its radius-bounded neighbors.
func (p *RoIProxy) attach(i int, twoR2 float64, target int, depth int) {
	if depth > RecursionLimit {
		panic("recursion limit")
	}
	dp := &p.data[i]

	if dp.ClusterIdx != -1 {
		root := p.getRoot(dp.ClusterIdx)
		if root == target {
			return
		}
		p.pool[target].merge(&p.pool[root])
		p.pool[root].Parent = target
		p.pool[root].Size = 0
		dp.ClusterIdx = target
		return
	}

	if dp.Exclude {
		return
	}

	p.pool[target].absorbPoint(&p.roi.Points[i], p.cfg.SigmaBins2())
	dp.ClusterIdx = target

	for _, nb := range p.roi.Points[i].Neighbors {
		if nb.DistSq > twoR2 {
			break
		}
		p.attach(nb.Index, twoR2, target, depth+1)
	}
}

// ClusterizeAt is the standalone single-(R,T) entry point, computing each
// point's localization score from scratch via CalculateLocalizationScore
// rather than relying on a pre-scanned ScoresByR - useful for one-off
// cluster inspection outside a full scan.
func (p *RoIProxy) ClusterizeAt(R, T float64) *cos.Errs {
	p.reset()
	twoR2 := 4 * R * R
	area := p.roi.Area
	n := len(p.roi.Points)
	for i := range p.roi.Points {
		score := CalculateLocalizationScore(&p.roi.Points[i], R, area, n)
		p.data[i].Exclude = score < T
	}
	var errs cos.Errs
	for i := range p.roi.Points {
		p.clusterizeOne(i, twoR2, &errs)
	}
	p.updateLogScore()
	return &errs
}

// ScanRT drives the full (R, T) grid for this worker's stripe of R values:
// R ascends by RBounds().Spacing*stride starting at
// RBounds().Min + offset*spacing (so workers partition R by index modulo
// stride, not by contiguous range - see scheduler.go); within each R, T
// descends from TBounds().Max so that the exclude flags only ever get more
// permissive and clusters only grow, letting Cluster.UpdateLogScore's
// LastSize guard skip unchanged clusters. The cluster arena is cleared
// between successive R values since each carries an independent
// clusterization.
func (p *RoIProxy) ScanRT(stride, offset int, validate bool, callback func(p *RoIProxy, r, t float64, i, j int)) error {
	rb := p.cfg.RBounds()
	tb := p.cfg.TBounds()

	// recursions and fatal are kept separate: a RecursionLimitExceeded hit is
	// recoverable (clusterizeOne's recover already stopped that one point's
	// walk without corrupting the rest of the scan) and must not fail the
	// stripe, while a check/validate failure means the clusterization itself
	// is wrong and has to abort the run.
	var recursions, fatal cos.Errs
	for i := offset; i < rb.Bins; i += stride {
		r := rb.Min + float64(i)*rb.Spacing
		twoR2 := 4 * r * r

		p.reset()
		t := tb.Max
		for j := 0; j != tb.Bins; j, t = j+1, t-tb.Spacing {
			for k := range p.roi.Points {
				p.data[k].Exclude = p.roi.Points[k].ScoresByR[i] < t
			}
			for k := range p.roi.Points {
				p.clusterizeOne(k, twoR2, &recursions)
			}
			p.updateLogScore()

			if validate {
				if err := p.check(r, t); err != nil {
					fatal.Add(err)
				}
				if err := p.validate(r, t); err != nil {
					fatal.Add(err)
				}
			}

			callback(p, r, t, i, j)
		}
	}
	p.reset()
	if recursions.Cnt() > 0 {
		nlog.Warningf("scan stripe offset=%d: %d recoverable recursion-limit hit(s)", offset, recursions.Cnt())
	}
	if fatal.Cnt() > 0 {
		return fatal.JoinErr()
	}
	return nil
}

// updateLogScore recomputes the proxy-level aggregate: sum the per-cluster
// scores (only over non-empty clusters), track cluster/clustered/background
// counts, and fold in the background and cluster-count mixture terms via
// lgamma.
func (p *RoIProxy) updateLogScore() {
	if len(p.cfg.SigmaBins()) == 0 {
		return
	}

	p.ClusterCount = 0
	p.ClusteredCount = 0
	var logP, logPl float64

	for k := range p.pool {
		c := &p.pool[k]
		if c.Size == 0 {
			continue
		}
		logP += c.UpdateLogScore(p.cfg, p.scr)
		p.ClusterCount++
		p.ClusteredCount += c.Size
		lg, _ := math.Lgamma(float64(c.Size))
		logPl += lg
	}

	n := len(p.data)
	p.BackgroundCount = n - p.ClusteredCount

	alpha := p.cfg.Alpha()
	lgAlphaN, _ := math.Lgamma(alpha + float64(p.ClusteredCount))
	logPl += float64(p.BackgroundCount)*p.cfg.LogPb() +
		float64(p.ClusteredCount)*p.cfg.LogPbDagger() +
		p.cfg.LogAlpha()*float64(p.ClusterCount) +
		p.cfg.LogGammaAlpha() -
		lgAlphaN

	p.LogP = logP + (-math.Log(4)*float64(p.BackgroundCount)) + logPl
}

// check re-derives the cluster/background counts and neighbor-root
// consistency from first principles and compares them against the
// incrementally-maintained state - a debug-only O(n) sanity pass, never run
// outside validate mode.
func (p *RoIProxy) check(r, t float64) error {
	twoR2 := 4 * r * r

	live := 0
	for k := range p.pool {
		if p.pool[k].Size > 0 {
			live++
		}
	}
	if live != p.ClusterCount {
		return cos.NewErrMalformedInput("R=%g T=%g: live cluster count %d != tracked %d", r, t, live, p.ClusterCount)
	}

	background, inCluster := 0, 0
	for i := range p.data {
		if p.data[i].Exclude {
			background++
			continue
		}
		if p.data[i].ClusterIdx == -1 {
			return cos.NewErrMalformedInput("R=%g T=%g: point %d not clustered and not excluded", r, t, i)
		}
		root := p.getRoot(p.data[i].ClusterIdx)
		for _, nb := range p.roi.Points[i].Neighbors {
			if nb.DistSq > twoR2 {
				break
			}
			if p.data[nb.Index].Exclude {
				continue
			}
			if p.getRoot(p.data[nb.Index].ClusterIdx) != root {
				return cos.NewErrMalformedInput("R=%g T=%g: point %d's in-radius neighbor %d has a different root", r, t, i, nb.Index)
			}
		}
	}
	for k := range p.pool {
		inCluster += p.pool[k].Size
	}
	if background != p.BackgroundCount {
		return cos.NewErrMalformedInput("R=%g T=%g: recomputed background %d != tracked %d", r, t, background, p.BackgroundCount)
	}
	if inCluster+background != len(p.data) {
		return cos.NewErrMalformedInput("R=%g T=%g: clustered(%d)+background(%d) != total(%d)", r, t, inCluster, background, len(p.data))
	}
	return nil
}

// validate populates the alt_log_score validation fields and compares the
// two independently-formulated scores against each other. This is a second
// O(n) pass over points and is only ever run when the configuration's
// Validate flag is set.
func (p *RoIProxy) validate(r, t float64) error {
	for k := range p.pool {
		c := &p.pool[k]
		if c.Size == 0 {
			continue
		}
		for pi := range c.Params {
			c.Params[pi].WeightedCentreX = c.Params[pi].Bx / c.Params[pi].A
			c.Params[pi].WeightedCentreY = c.Params[pi].By / c.Params[pi].A
			c.Params[pi].S2 = 0
		}
	}

	sigmaBins2 := p.cfg.SigmaBins2()
	for i := range p.data {
		if p.data[i].ClusterIdx == -1 {
			continue
		}
		root := p.getRoot(p.data[i].ClusterIdx)
		c := &p.pool[root]
		pt := &p.roi.Points[i]
		s2 := pt.S * pt.S
		for pi, sig2 := range sigmaBins2 {
			w := 1.0 / (s2 + sig2)
			dx := c.Params[pi].WeightedCentreX - pt.X
			dy := c.Params[pi].WeightedCentreY - pt.Y
			c.Params[pi].S2 += w * (dx*dx + dy*dy)
		}
	}

	const tolerance = 5.0
	for k := range p.pool {
		c := &p.pool[k]
		if c.Size == 0 {
			continue
		}
		for pi := range c.Params {
			fast := c.Params[pi].logScore()
			alt := c.Params[pi].altLogScore()
			if math.Abs(fast-alt) > tolerance {
				return cos.NewErrLogScoreMismatch(r, t, fast, alt, tolerance)
			}
		}
	}
	return nil
}

// ClusterResult is one finished cluster's output shape, ready for JSON
// encoding: its member point positions (for hull computation) and its
// cached score/size.
type ClusterResult struct {
	Points []geom.Point
	Size   int
	Score  float64
}

// EnumerateClusters groups points by their union-find root and returns one
// ClusterResult per non-trivial (size > 0) cluster, used by the callback
// surface to build output geometry (hull, area, centroid).
func (p *RoIProxy) EnumerateClusters() []ClusterResult {
	byRoot := make(map[int][]geom.Point)
	for i := range p.data {
		if p.data[i].ClusterIdx == -1 {
			continue
		}
		root := p.getRoot(p.data[i].ClusterIdx)
		pt := &p.roi.Points[i]
		byRoot[root] = append(byRoot[root], geom.Point{X: pt.X, Y: pt.Y})
	}
	out := make([]ClusterResult, 0, len(byRoot))
	for root, pts := range byRoot {
		c := &p.pool[root]
		out = append(out, ClusterResult{Points: pts, Size: c.Size, Score: c.Score})
	}
	return out
}
