// biclust is the CLI wrapper around the core/roi scan engine: it turns a
// flat set of flags into a ScanConfiguration, an RoI source, and either a
// full (R, T) grid scan or a single clusterization, writing results out as
// JSON via out/json.
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"

	"github.com/cefhalic/bayescluster/cmn/nlog"
)

var version = "unknown" // set via -ldflags at build time

func main() {
	app := cli.NewApp()
	app.Name = "biclust"
	app.Usage = "Bayesian cluster analysis of 2D single-molecule localization data"
	app.Version = version
	app.Flags = allFlags
	app.Action = runAction
	app.HideHelp = false

	if err := app.Run(os.Args); err != nil {
		nlog.Errorf("%v", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
