// Copyright 2015 Dorival Pedroso and Raul Durand. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sto

import (
	"math"
	"math/rand"
	"testing"

	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/fun"
	"github.com/cpmech/gosl/io"
	"github.com/cpmech/gosl/la"
	"github.com/cpmech/gosl/num"
	"github.com/cpmech/gosl/utl"

	"github.com/JTQIN/CompartmentalSystems/ana"
)

func init() {
	io.Verbose = false
	rand.Seed(13)
}

func verbose() bool {
	return io.Verbose
}

// twoPoolModel builds the linear two-pool system with decay rates k0=1, k1=2
// and unit constant input, for which Phi(t,s) = diag(exp(-(t-s)), exp(-2(t-s)))
func twoPoolModel() *Model {
	return &Model{
		Npools: 2,
		Bfcn: func(B [][]float64, t float64, x []float64) error {
			B[0][0], B[0][1] = -1, 0
			B[1][0], B[1][1] = 0, -2
			return nil
		},
		Ufcn: func(u []float64, t float64) error {
			u[0], u[1] = 1, 1
			return nil
		},
	}
}

func twoPoolRun(tst *testing.T) *Run {
	var run Run
	if err := run.Init(twoPoolModel(), utl.LinSpace(0, 4, 9), []float64{1, 1}); err != nil {
		tst.Errorf("test failed: %v\n", err)
		return nil
	}
	if err := run.Solve(); err != nil {
		tst.Errorf("test failed: %v\n", err)
		return nil
	}
	return &run
}

func phiExact(t, s float64) [][]float64 {
	return [][]float64{
		{math.Exp(-(t - s)), 0},
		{0, math.Exp(-2 * (t - s))},
	}
}

func Test_sto01(tst *testing.T) {

	//verbose()
	chk.PrintTitle("sto01. trajectory and linearization")

	run := twoPoolRun(tst)
	if run == nil {
		return
	}

	// x_i(t) = exp(-k_i t) x0_i + (1/k_i)(1 - exp(-k_i t))
	x := make([]float64, 2)
	for _, t := range []float64{0, 0.5, 1, 2.5, 4} {
		if err := run.X(x, t); err != nil {
			tst.Errorf("test failed: %v\n", err)
			return
		}
		e1, e2 := math.Exp(-t), math.Exp(-2*t)
		chk.Vector(tst, io.Sf("x(%g)", t), 1e-6, x, []float64{e1 + (1 - e1), e2 + 0.5*(1-e2)})
	}

	// grid sampling matches dense access
	grid, err := run.SolveGrid()
	if err != nil {
		tst.Errorf("test failed: %v\n", err)
		return
	}
	chk.IntAssert(len(grid), len(run.Times))
	run.X(x, run.Times[3])
	chk.Vector(tst, "grid row", 1e-14, grid[3], x)

	// linearized matrix equals the (state independent) model matrix
	B := la.MatAlloc(2, 2)
	if err := run.Blin(B, 1.7); err != nil {
		tst.Errorf("test failed: %v\n", err)
		return
	}
	chk.Matrix(tst, "Blin(1.7)", 1e-15, B, [][]float64{{-1, 0}, {0, -2}})
}

func Test_sto02(tst *testing.T) {

	//verbose()
	chk.PrintTitle("sto02. identity, domain errors")

	run := twoPoolRun(tst)
	if run == nil {
		return
	}

	// Phi(s,s) = I without integration
	y := make([]float64, 2)
	if err := run.Propagate(y, 1.3, 1.3, []float64{2, 5}); err != nil {
		tst.Errorf("test failed: %v\n", err)
		return
	}
	chk.Vector(tst, "Phi(s,s)・x", 1e-15, y, []float64{2, 5})

	phi := la.MatAlloc(2, 2)
	if err := run.PropagateMat(phi, 2, 2); err != nil {
		tst.Errorf("test failed: %v\n", err)
		return
	}
	chk.Matrix(tst, "Phi(s,s)", 1e-15, phi, [][]float64{{1, 0}, {0, 1}})

	// times before t0 are rejected for either argument
	if err := run.Propagate(y, -0.1, 0, []float64{1, 1}); err == nil {
		tst.Errorf("test failed: error expected for t before t0\n")
		return
	} else {
		io.Pforan("OK. err = %v\n", err)
	}
	if err := run.Propagate(y, 1, -0.5, []float64{1, 1}); err == nil {
		tst.Errorf("test failed: error expected for s before t0\n")
		return
	} else {
		io.Pforan("OK. err = %v\n", err)
	}

	// queries before Solve are rejected
	var cold Run
	if err := cold.Init(twoPoolModel(), []float64{0, 4}, []float64{1, 1}); err != nil {
		tst.Errorf("test failed: %v\n", err)
		return
	}
	if err := cold.Propagate(y, 1, 0, []float64{1, 1}); err == nil {
		tst.Errorf("test failed: error expected before Solve\n")
		return
	} else {
		io.Pforan("OK. err = %v\n", err)
	}
}

func Test_sto03(tst *testing.T) {

	//verbose()
	chk.PrintTitle("sto03. strategies agree with the closed form")

	run := twoPoolRun(tst)
	if run == nil {
		return
	}
	if err := run.BuildCache(11); err != nil {
		tst.Errorf("test failed: %v\n", err)
		return
	}

	strategies := []Propagator{run.Direct(), run.Skew(), run.gcs}
	x := []float64{2, 3}
	y := make([]float64, 2)
	phi := la.MatAlloc(2, 2)
	pairs := [][]float64{{1, 0}, {2.5, 0.5}, {4, 0}, {3.3, 3.3}, {4, 1.7}}
	for _, p := range strategies {
		for _, ts := range pairs {
			t, s := ts[0], ts[1]
			ref := phiExact(t, s)
			if err := p.Propagate(y, t, s, x); err != nil {
				tst.Errorf("test failed (%s): %v\n", p.Name(), err)
				return
			}
			chk.Vector(tst, io.Sf("%s: Phi(%g,%g)・x", p.Name(), t, s), 1e-2, y, []float64{ref[0][0] * x[0], ref[1][1] * x[1]})
			if err := p.Mat(phi, t, s); err != nil {
				tst.Errorf("test failed (%s): %v\n", p.Name(), err)
				return
			}
			chk.Matrix(tst, io.Sf("%s: Phi(%g,%g)", p.Name(), t, s), 1e-2, phi, ref)
		}
	}
}

func Test_sto04(tst *testing.T) {

	//verbose()
	chk.PrintTitle("sto04. semigroup and backward consistency")

	run := twoPoolRun(tst)
	if run == nil {
		return
	}

	// Phi(t,r) = Phi(t,s)・Phi(s,r) for r < s < t
	r, s, t := 0.5, 1.5, 3.0
	a := la.MatAlloc(2, 2)
	b := la.MatAlloc(2, 2)
	c := la.MatAlloc(2, 2)
	m := la.MatAlloc(2, 2)
	if err := run.PropagateMat(a, t, s); err != nil {
		tst.Errorf("test failed: %v\n", err)
		return
	}
	if err := run.PropagateMat(b, s, r); err != nil {
		tst.Errorf("test failed: %v\n", err)
		return
	}
	if err := run.PropagateMat(c, t, r); err != nil {
		tst.Errorf("test failed: %v\n", err)
		return
	}
	la.MatMul(m, 1, a, b)
	chk.Matrix(tst, "semigroup", 1e-6, m, c)

	// Phi(s,t)・Phi(t,s) = I
	if err := run.PropagateMat(b, s, t); err != nil {
		tst.Errorf("test failed: %v\n", err)
		return
	}
	la.MatMul(m, 1, b, a)
	chk.Matrix(tst, "backward inverse", 1e-6, m, [][]float64{{1, 0}, {0, 1}})

	// backward vector query matches the closed form
	y := make([]float64, 2)
	if err := run.Propagate(y, s, t, []float64{1, 1}); err != nil {
		tst.Errorf("test failed: %v\n", err)
		return
	}
	ref := phiExact(s, t)
	chk.Vector(tst, "Phi(s,t)・x", 1e-2, y, []float64{ref[0][0], ref[1][1]})
}

func Test_sto05(tst *testing.T) {

	//verbose()
	chk.PrintTitle("sto05. nonnegativity and operator derivative")

	run := twoPoolRun(tst)
	if run == nil {
		return
	}

	// nonnegative input never maps to a negative output
	y := make([]float64, 2)
	for i := 0; i < 20; i++ {
		s := 4 * rand.Float64()
		t := s + (4-s)*rand.Float64()
		if err := run.Propagate(y, t, s, []float64{rand.Float64(), rand.Float64()}); err != nil {
			tst.Errorf("test failed: %v\n", err)
			return
		}
		if y[0] < 0 || y[1] < 0 {
			tst.Errorf("test failed: negative mass %v from nonnegative input\n", y)
			return
		}
	}

	// dPhi/dt (t,s) = Blin(t)・Phi(t,s), checked entrywise by central
	// differences on the direct strategy
	s := 0.5
	phi := la.MatAlloc(2, 2)
	B := la.MatAlloc(2, 2)
	at := 2.0
	if err := run.PropagateMat(phi, at, s); err != nil {
		tst.Errorf("test failed: %v\n", err)
		return
	}
	if err := run.Blin(B, at); err != nil {
		tst.Errorf("test failed: %v\n", err)
		return
	}
	dr := run.Direct()
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			ii, jj := i, j
			dnum, _ := num.DerivCentral(func(t float64, args ...interface{}) float64 {
				p := la.MatAlloc(2, 2)
				dr.Mat(p, t, s)
				return p[ii][jj]
			}, at, 1e-3)
			dana := B[i][0]*phi[0][j] + B[i][1]*phi[1][j]
			chk.Scalar(tst, io.Sf("dPhi[%d][%d]/dt", i, j), 1e-4, dnum, dana)
		}
	}
}

func Test_sto06(tst *testing.T) {

	//verbose()
	chk.PrintTitle("sto06. solution reconstruction from the operator")

	run := twoPoolRun(tst)
	if run == nil {
		return
	}

	// x(t) = Phi(t,0)・x0 + ∫_0^t Phi(t,τ)・u dτ, the integral by the
	// trapezoidal rule on a fine grid
	t := 4.0
	y := make([]float64, 2)
	if err := run.Propagate(y, t, 0, run.X0); err != nil {
		tst.Errorf("test failed: %v\n", err)
		return
	}
	np := 81
	taus := utl.LinSpace(0, t, np)
	h := taus[1] - taus[0]
	acc := make([]float64, 2)
	w := make([]float64, 2)
	for i, tau := range taus {
		if err := run.Propagate(w, t, tau, []float64{1, 1}); err != nil {
			tst.Errorf("test failed: %v\n", err)
			return
		}
		f := h
		if i == 0 || i == np-1 {
			f = h / 2
		}
		acc[0] += f * w[0]
		acc[1] += f * w[1]
	}
	x := make([]float64, 2)
	if err := run.X(x, t); err != nil {
		tst.Errorf("test failed: %v\n", err)
		return
	}
	chk.Vector(tst, "reconstruction", 1e-2, []float64{y[0] + acc[0], y[1] + acc[1]}, x)

	// analytical reference: propagated start values plus input convolution
	var dp ana.DecayPools
	dp.Init(fun.Prms{
		&fun.Prm{N: "npools", V: 2},
		&fun.Prm{N: "k0", V: 1}, &fun.Prm{N: "k1", V: 2},
		&fun.Prm{N: "u0", V: 1}, &fun.Prm{N: "u1", V: 1},
		&fun.Prm{N: "x0_0", V: 1}, &fun.Prm{N: "x0_1", V: 1},
	})
	xana := make([]float64, 2)
	dp.Sol(xana, t, 0)
	chk.Vector(tst, "closed form", 1e-6, x, xana)

	// terminal operator
	phi := la.MatAlloc(2, 2)
	if err := run.PropagateMat(phi, 4, 0); err != nil {
		tst.Errorf("test failed: %v\n", err)
		return
	}
	chk.Matrix(tst, "Phi(4,0)", 1e-2, phi, phiExact(4, 0))
}

func Test_sto07(tst *testing.T) {

	//verbose()
	chk.PrintTitle("sto07. nonlinear model is linearized along the trajectory")

	// single pool with state dependent rate: dx/dt = -(1+x)・x
	mdl := &Model{
		Npools: 1,
		Bfcn: func(B [][]float64, t float64, x []float64) error {
			B[0][0] = -(1 + x[0])
			return nil
		},
	}
	var run Run
	if err := run.Init(mdl, utl.LinSpace(0, 2, 5), []float64{1}); err != nil {
		tst.Errorf("test failed: %v\n", err)
		return
	}
	if err := run.Solve(); err != nil {
		tst.Errorf("test failed: %v\n", err)
		return
	}

	// the linearized matrix tracks the solved state, not the start value
	B := la.MatAlloc(1, 1)
	x := make([]float64, 1)
	if err := run.Blin(B, 1.5); err != nil {
		tst.Errorf("test failed: %v\n", err)
		return
	}
	run.X(x, 1.5)
	chk.Scalar(tst, "Blin follows x(t)", 1e-12, B[0][0], -(1 + x[0]))

	// semigroup still holds for the linearized operator
	a := la.MatAlloc(1, 1)
	b := la.MatAlloc(1, 1)
	c := la.MatAlloc(1, 1)
	run.PropagateMat(a, 2, 1)
	run.PropagateMat(b, 1, 0.25)
	run.PropagateMat(c, 2, 0.25)
	chk.Scalar(tst, "semigroup (nonlinear)", 1e-5, a[0][0]*b[0][0], c[0][0])
}

func Test_sto08(tst *testing.T) {

	//verbose()
	chk.PrintTitle("sto08. discontinuous rates split the integration")

	// rate switches at t = 1: k = 1 before, k = 3 after
	mdl := &Model{
		Npools: 1,
		Bfcn: func(B [][]float64, t float64, x []float64) error {
			if t < 1 {
				B[0][0] = -1
			} else {
				B[0][0] = -3
			}
			return nil
		},
		Disc: []float64{1},
	}
	var run Run
	if err := run.Init(mdl, []float64{0, 2}, []float64{1}); err != nil {
		tst.Errorf("test failed: %v\n", err)
		return
	}
	if err := run.Solve(); err != nil {
		tst.Errorf("test failed: %v\n", err)
		return
	}

	// Phi(2,0) = exp(-3)・exp(-1)
	phi := la.MatAlloc(1, 1)
	if err := run.PropagateMat(phi, 2, 0); err != nil {
		tst.Errorf("test failed: %v\n", err)
		return
	}
	chk.Scalar(tst, "Phi(2,0) across jump", 1e-5, phi[0][0], math.Exp(-4))

	// crossing backward over the jump inverts cleanly
	y := make([]float64, 1)
	if err := run.Propagate(y, 0.5, 1.5, []float64{1}); err != nil {
		tst.Errorf("test failed: %v\n", err)
		return
	}
	chk.Scalar(tst, "Phi(0.5,1.5)", 1e-4, y[0], math.Exp(2))
}
