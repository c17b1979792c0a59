/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package main

import "github.com/urfave/cli"

// Flag names match the CLI's documented set verbatim.
var (
	sigmaBinsFlag  = cli.IntFlag{Name: "sigma-bins", Usage: "number of sigma bins to sample the prior over", Value: 50}
	sigmaLowFlag   = cli.Float64Flag{Name: "sigma-low", Usage: "sigma grid lower bound [m]"}
	sigmaHighFlag  = cli.Float64Flag{Name: "sigma-high", Usage: "sigma grid upper bound [m]"}
	sigmaCurveFlag = cli.StringSliceFlag{Name: "sigma-curve", Usage: "sigma prior control point `size:prob`, repeatable, at least 2 required"}

	rBinsFlag = cli.IntFlag{Name: "r-bins", Usage: "number of R bins in the scan grid"}
	rLowFlag  = cli.Float64Flag{Name: "r-low", Usage: "R grid lower bound [m]"}
	rHighFlag = cli.Float64Flag{Name: "r-high", Usage: "R grid upper bound [m]"}

	tBinsFlag = cli.IntFlag{Name: "t-bins", Usage: "number of T bins in the scan grid"}
	tLowFlag  = cli.Float64Flag{Name: "t-low", Usage: "T grid lower bound"}
	tHighFlag = cli.Float64Flag{Name: "t-high", Usage: "T grid upper bound"}

	pbFlag    = cli.Float64Flag{Name: "pb", Usage: "background mixture weight, in (0, 1)"}
	alphaFlag = cli.Float64Flag{Name: "alpha", Usage: "background Dirichlet concentration parameter, > 0"}

	validateFlag = cli.BoolFlag{Name: "validate", Usage: "cross-check every (R, T) entry's log-score against the slow reference computation"}

	inputFileFlag  = cli.StringFlag{Name: "input-file", Usage: "localization CSV `path` to load"}
	outputFileFlag = cli.StringFlag{Name: "output-file", Usage: "output JSON `pattern`, substituting {input} and {roi}"}

	cfgFlag = cli.StringFlag{
		Name: "cfg",
		Usage: "RoI source: `auto`, `manual:x,y,w,h`, or `imagej:zippath,scale` (default auto)",
		Value: "auto",
	}

	rFlag = cli.Float64Flag{Name: "r", Usage: "single R value; with -t, clusterize once instead of scanning the grid"}
	tFlag = cli.Float64Flag{Name: "t", Usage: "single T value; with -r, clusterize once instead of scanning the grid"}

	threadsFlag = cli.IntFlag{Name: "threads", Usage: "worker goroutines (0 => GOMAXPROCS)"}
)

var allFlags = []cli.Flag{
	sigmaBinsFlag, sigmaLowFlag, sigmaHighFlag, sigmaCurveFlag,
	rBinsFlag, rLowFlag, rHighFlag,
	tBinsFlag, tLowFlag, tHighFlag,
	pbFlag, alphaFlag,
	validateFlag,
	inputFileFlag, outputFileFlag,
	cfgFlag,
	rFlag, tFlag,
	threadsFlag,
}
