// Copyright 2015 Dorival Pedroso and Raul Durand. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// +build ignore

package main

import (
	"github.com/cpmech/gosl/io"
	"github.com/cpmech/gosl/la"
	"github.com/cpmech/gosl/plt"
	"github.com/cpmech/gosl/utl"

	"github.com/JTQIN/CompartmentalSystems/inp"
	"github.com/JTQIN/CompartmentalSystems/sto"
)

func main() {

	// catch errors
	defer func() {
		if err := recover(); err != nil {
			io.PfRed("ERROR: %v\n", err)
		}
	}()

	// input data
	simfn, fnk := io.ArgToFilename(0, "twopools", ".sim", true)
	np := io.ArgToInt(1, 101)

	// print input data
	io.Pf("\n%s\n", io.ArgsTable(
		"simulation filename", "simfn", simfn,
		"number of plot points", "np", np,
	))

	// solve
	sim := inp.ReadSim(simfn, false)
	var run sto.Run
	run.Opts = sim.SolverOpts()
	if err := run.Init(sim.PoolModel(), sim.TimeGrid(), sim.X0()); err != nil {
		io.PfRed("Init failed:\n%v\n", err)
		return
	}
	if err := run.Solve(); err != nil {
		io.PfRed("Solve failed:\n%v\n", err)
		return
	}

	// sample trajectory
	n := sim.Npools()
	t0 := run.Times[0]
	tf := run.Times[len(run.Times)-1]
	T := utl.LinSpace(t0, tf, np)
	X := la.MatAlloc(n, np)
	x := make([]float64, n)
	for j, t := range T {
		if err := run.X(x, t); err != nil {
			io.PfRed("cannot evaluate trajectory:\n%v\n", err)
			return
		}
		for i := 0; i < n; i++ {
			X[i][j] = x[i]
		}
	}

	// sample operator columns from the start values
	Y := la.MatAlloc(n, np)
	y := make([]float64, n)
	for j, t := range T {
		if err := run.Propagate(y, t, t0, run.X0); err != nil {
			io.PfRed("cannot evaluate operator:\n%v\n", err)
			return
		}
		for i := 0; i < n; i++ {
			Y[i][j] = y[i]
		}
	}

	// plot trajectory
	plt.Reset()
	plt.SetForPng(1, 600, 150)
	for i := 0; i < n; i++ {
		plt.Plot(T, X[i], io.Sf("label='%s'", sim.Pools[i].Name))
	}
	plt.Gll("$t$", "$x_i(t)$", "")
	plt.SaveD("/tmp/csys", fnk+"_sol.png")

	// plot propagated start values: no-further-input decay of the initial mass
	plt.Reset()
	plt.SetForPng(1, 600, 150)
	for i := 0; i < n; i++ {
		plt.Plot(T, Y[i], io.Sf("label='%s'", sim.Pools[i].Name))
	}
	plt.Gll("$t$", "$[\\Phi(t,t_0)x_0]_i$", "")
	plt.SaveD("/tmp/csys", fnk+"_phi.png")
}
