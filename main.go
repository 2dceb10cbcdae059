// Copyright 2015 Dorival Pedroso and Raul Durand. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"path/filepath"

	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/io"
	"github.com/cpmech/gosl/la"

	"github.com/JTQIN/CompartmentalSystems/inp"
	"github.com/JTQIN/CompartmentalSystems/sto"
)

func main() {

	// catch errors
	defer func() {
		if err := recover(); err != nil {
			chk.Verbose = true
			for i := 8; i > 3; i-- {
				chk.CallerInfo(i)
			}
			io.PfRed("ERROR: %v\n", err)
		}
	}()

	// read input parameters
	fnamepath, _ := io.ArgToFilename(0, "", ".sim", true)
	verbose := io.ArgToBool(1, true)
	erasePrev := io.ArgToBool(2, true)
	saveCache := io.ArgToBool(3, true)

	// message
	if verbose {
		io.PfWhite("\nCompartmentalSystems -- state transition operators of pool models\n\n")
		io.Pf("Copyright 2015 Dorival Pedroso and Raul Durand. All rights reserved.\n")
		io.Pf("Use of this source code is governed by a BSD-style\n")
		io.Pf("license that can be found in the LICENSE file.\n\n")

		io.Pf("\n%v\n", io.ArgsTable(
			"filename path", "fnamepath", fnamepath,
			"show messages", "verbose", verbose,
			"erase previous results", "erasePrev", erasePrev,
			"save propagator table", "saveCache", saveCache,
		))
	}

	// simulation data
	sim := inp.ReadSim(fnamepath, erasePrev)

	// run
	var run sto.Run
	run.Opts = sim.SolverOpts()
	if err := run.Init(sim.PoolModel(), sim.TimeGrid(), sim.X0()); err != nil {
		chk.Panic("Init failed:\n%v", err)
	}
	if err := run.Solve(); err != nil {
		chk.Panic("Solve failed:\n%v", err)
	}

	// trajectory on the model grid
	grid, err := run.SolveGrid()
	if err != nil {
		chk.Panic("cannot sample trajectory:\n%v", err)
	}
	if verbose {
		io.Pf("\ntrajectory:\n")
		for i, t := range run.Times {
			io.Pf("  t=%10.4f  x=%v\n", t, grid[i])
		}
	}

	// propagator table
	if sim.Cache.Size > 0 {
		if err := run.BuildCache(sim.Cache.Size); err != nil {
			chk.Panic("BuildCache failed:\n%v", err)
		}
		if saveCache {
			fn := sim.Cache.File
			if fn == "" {
				fn = filepath.Join(sim.DirOut, sim.Key+".cache")
			}
			if err := run.SaveCache(fn, sim.EncType); err != nil {
				chk.Panic("SaveCache failed:\n%v", err)
			}
		}
	}

	// terminal operator
	n := sim.Npools()
	phi := la.MatAlloc(n, n)
	t0 := run.Times[0]
	tf := run.Times[len(run.Times)-1]
	if err := run.PropagateMat(phi, tf, t0); err != nil {
		chk.Panic("cannot compute terminal operator:\n%v", err)
	}
	if verbose {
		io.Pf("\nstrategy: %s\n", run.StrategyName())
		io.Pf("Phi(%g,%g):\n", tf, t0)
		la.PrintMat("", phi, "%13.6e", false)
	}
}
