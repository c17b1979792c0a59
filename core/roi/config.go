// Package roi implements the clustering and scoring core: RoI data
// preparation, the per-radius localization score, the union-find
// clusterizer, the per-cluster Bayesian marginal log-score, and the parallel
// (R, T) scheduler that drives a scan. The pieces are ScanConfiguration,
// Point, Cluster, RoI, RoIProxy, Scheduler, and the sigma-prior integrator.
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package roi

import (
	"math"

	"github.com/cefhalic/bayescluster/cmn/cos"
)

// Bounds describes one axis (R or T) of the scan grid.
type Bounds struct {
	Min     float64
	Max     float64
	Spacing float64
	Bins    int
}

func newBounds(bins int, min, max float64) Bounds {
	var spacing float64
	if bins > 0 {
		spacing = (max - min) / float64(bins)
	}
	return Bounds{Min: min, Max: max, Spacing: spacing, Bins: bins}
}

// ScanConfiguration is the immutable bundle of scan parameters: the R-grid,
// T-grid, sigma-grid with its prior, the mixture hyperparameters pb and
// alpha, and their derived logs/gammas. Getters are pure; the value is
// immutable once constructed.
type ScanConfiguration struct {
	sigmaBins    []float64
	sigmaBins2   []float64
	pSigma       []float64
	logPSigma    []float64
	rBounds      Bounds
	tBounds      Bounds
	pb           float64
	alpha        float64
	logPb        float64
	logPbDagger  float64
	logAlpha     float64
	logGammaAlph float64
}

// NewScanConfiguration builds a ScanConfiguration. The
// interpolator f(sigma) gives the prior density at a given sigma; callers
// typically obtain one from NewSigmaPriorInterpolator (a cubic spline fitted
// to user-supplied size:prob control points).
func NewScanConfiguration(
	nSigma int, sigmaMin, sigmaMax float64, interpolator func(float64) float64,
	nR int, rMin, rMax float64,
	nT int, tMin, tMax float64,
	pb, alpha float64,
) (*ScanConfiguration, error) {
	if err := validateBins(nSigma, sigmaMin, sigmaMax, "sigma"); err != nil {
		return nil, err
	}
	if err := validateBins(nR, rMin, rMax, "R"); err != nil {
		return nil, err
	}
	if err := validateBins(nT, tMin, tMax, "T"); err != nil {
		return nil, err
	}
	if pb <= 0 || pb >= 1 {
		return nil, cos.NewErrInvalidConfig("pb must be in (0, 1), got %g", pb)
	}
	if alpha <= 0 {
		return nil, cos.NewErrInvalidConfig("alpha must be > 0, got %g", alpha)
	}
	if interpolator == nil {
		return nil, cos.NewErrInvalidConfig("sigma prior interpolator must not be nil")
	}

	cfg := &ScanConfiguration{
		rBounds: newBounds(nR, rMin, rMax),
		tBounds: newBounds(nT, tMin, tMax),
		pb:      pb,
		alpha:   alpha,
	}

	cfg.sigmaBins = make([]float64, nSigma)
	cfg.sigmaBins2 = make([]float64, nSigma)
	cfg.pSigma = make([]float64, nSigma)
	cfg.logPSigma = make([]float64, nSigma)
	spacing := (sigmaMax - sigmaMin) / float64(nSigma)
	for k := 0; k < nSigma; k++ {
		s := sigmaMin + float64(k)*spacing
		cfg.sigmaBins[k] = s
		cfg.sigmaBins2[k] = s * s
		p := interpolator(s)
		if p <= 0 || math.IsNaN(p) {
			return nil, cos.NewErrInvalidConfig("sigma prior density at sigma=%g is non-positive or NaN: %g", s, p)
		}
		cfg.pSigma[k] = p
		cfg.logPSigma[k] = math.Log(p)
	}

	cfg.logPb = math.Log(pb)
	cfg.logPbDagger = math.Log(1 - pb)
	cfg.logAlpha = math.Log(alpha)
	lgAlpha, _ := math.Lgamma(alpha)
	cfg.logGammaAlph = lgAlpha

	return cfg, nil
}

func validateBins(bins int, min, max float64, axis string) error {
	if bins == 0 && max != min {
		return cos.NewErrInvalidConfig("%s-bins is zero but %s range [%g, %g] is non-degenerate", axis, axis, min, max)
	}
	if bins < 0 {
		return cos.NewErrInvalidConfig("%s-bins must not be negative, got %d", axis, bins)
	}
	return nil
}

func (c *ScanConfiguration) SigmaBins() []float64    { return c.sigmaBins }
func (c *ScanConfiguration) SigmaBins2() []float64   { return c.sigmaBins2 }
func (c *ScanConfiguration) ProbSigma() []float64    { return c.pSigma }
func (c *ScanConfiguration) LogProbSigma() []float64 { return c.logPSigma }
func (c *ScanConfiguration) RBounds() Bounds         { return c.rBounds }
func (c *ScanConfiguration) TBounds() Bounds         { return c.tBounds }
func (c *ScanConfiguration) Pb() float64             { return c.pb }
func (c *ScanConfiguration) Alpha() float64          { return c.alpha }
func (c *ScanConfiguration) LogPb() float64          { return c.logPb }
func (c *ScanConfiguration) LogPbDagger() float64    { return c.logPbDagger }
func (c *ScanConfiguration) LogAlpha() float64       { return c.logAlpha }
func (c *ScanConfiguration) LogGammaAlpha() float64  { return c.logGammaAlph }
