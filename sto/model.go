// Copyright 2015 Dorival Pedroso and Raul Durand. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// package sto computes state transition operators of compartmental systems.
// A Run solves the (possibly nonlinear) pool system
//
//	dx/dt = B(t,x)・x + u(t)
//
// over a time grid, linearizes the coefficient matrix along the solution,
//
//	Blin(t) = B(t, x(t))
//
// and answers queries for the operator Phi(t,s) mapping mass present at time
// s to its image at time t under the no-further-input linearized dynamics.
package sto

import (
	"math"

	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/la"
	"github.com/cpmech/gosl/ode"

	"github.com/JTQIN/CompartmentalSystems/blk"
	"github.com/JTQIN/CompartmentalSystems/pwc"
)

// BFcn computes the compartmental (coefficient) matrix: B = B(t, x)
type BFcn func(B [][]float64, t float64, x []float64) error

// UFcn computes the external input vector: u = u(t)
type UFcn func(u []float64, t float64) error

// Model defines a compartmental pool system
type Model struct {
	Npools int       // number of pools
	Bfcn   BFcn      // coefficient matrix function
	Ufcn   UFcn      // external input function; nil ⇒ no input
	Disc   []float64 // ascending discontinuity points of the right-hand side
}

// Run solves one model over a fixed time grid and serves Phi queries.
// Queries are stateful: the skew-product system and the memoized inverses
// are built on demand and reused for the life of the Run, so repeated
// queries against the same Run get progressively cheaper. A Run has a single
// logical owner; it is not safe for concurrent use.
type Run struct {
	Mdl   *Model      // model definition
	Times []float64   // ascending model time grid
	X0    []float64   // start values (mass per pool)
	Opts  *pwc.Options // ODE solver options

	// derived state
	traj *pwc.Solution // trajectory x(t) over [Times[0], Times[end]]
	skew *SkewProduct  // lazily built augmented system
	gcs  *GridCache    // set after BuildCache or LoadCache

	// scratch
	bmat [][]float64
	xbuf []float64
}

// Init checks the input data and prepares the run
func (o *Run) Init(mdl *Model, times, x0 []float64) error {
	if mdl == nil || mdl.Bfcn == nil {
		return chk.Err("sto: model with a coefficient matrix function is required")
	}
	if mdl.Npools < 1 {
		return chk.Err("sto: model must have at least one pool")
	}
	if len(times) < 2 {
		return chk.Err("sto: time grid must have at least two points")
	}
	for i := 1; i < len(times); i++ {
		if times[i] <= times[i-1] {
			return chk.Err("sto: time grid must be strictly ascending: t[%d]=%g after t[%d]=%g", i, times[i], i-1, times[i-1])
		}
	}
	if len(x0) != mdl.Npools {
		return chk.Err("sto: %d start values given but model has %d pools", len(x0), mdl.Npools)
	}
	o.Mdl = mdl
	o.Times = make([]float64, len(times))
	copy(o.Times, times)
	o.X0 = make([]float64, len(x0))
	copy(o.X0, x0)
	if o.Opts == nil {
		o.Opts = pwc.DefaultOptions()
	}
	o.bmat = la.MatAlloc(mdl.Npools, mdl.Npools)
	o.xbuf = make([]float64, mdl.Npools)
	o.reset()
	return nil
}

// reset drops all state derived from a trajectory. The skew-product system,
// the inverse memo and the grid cache are only valid for the trajectory they
// were built along.
func (o *Run) reset() {
	o.traj = nil
	o.skew = nil
	o.gcs = nil
}

// Solve integrates the pool system over the model time grid, producing the
// trajectory used for linearization. Any previously built skew-product
// system, memoized inverses and grid cache are discarded.
func (o *Run) Solve() (err error) {
	o.reset()
	n := o.Mdl.Npools
	bmat := la.MatAlloc(n, n)
	u := make([]float64, n)
	sys, err := blk.NewSystem("t", []*blk.Block{
		{Name: "x", Start: o.X0, Deps: []string{"t", "x"}, Fcn: func(f []float64, t float64, args ...[]float64) error {
			x := args[0]
			if err := o.Mdl.Bfcn(bmat, t, x); err != nil {
				return err
			}
			la.MatVecMul(f, 1, bmat, x)
			if o.Mdl.Ufcn != nil {
				if err := o.Mdl.Ufcn(u, t); err != nil {
					return err
				}
				for i := 0; i < n; i++ {
					f[i] += u[i]
				}
			}
			return nil
		}},
	})
	if err != nil {
		return err
	}
	o.traj, err = pwc.SolveBlocks(sys, o.Times[0], o.Times[len(o.Times)-1], o.Mdl.Disc, o.Opts)
	return err
}

// SolveWith replaces the start values (and optionally the time grid) and
// solves again. All derived state is rebuilt on demand afterwards.
func (o *Run) SolveWith(times, x0 []float64) error {
	if times == nil {
		times = o.Times
	}
	if x0 == nil {
		x0 = o.X0
	}
	if err := o.Init(o.Mdl, times, x0); err != nil {
		return err
	}
	return o.Solve()
}

// Solved tells whether the trajectory has been computed
func (o *Run) Solved() bool { return o.traj != nil }

// X evaluates the trajectory at time t (dense access)
func (o *Run) X(x []float64, t float64) error {
	if o.traj == nil {
		return chk.Err("sto: Solve must be called before evaluating the trajectory")
	}
	return o.traj.Eval(x, t)
}

// SolveGrid returns the trajectory sampled on the model's time grid, one row
// per time point
func (o *Run) SolveGrid() ([][]float64, error) {
	if o.traj == nil {
		if err := o.Solve(); err != nil {
			return nil, err
		}
	}
	return o.traj.EvalMany(o.Times)
}

// Blin evaluates the coefficient matrix linearized along the trajectory:
// B = B(t, x(t)). The original, possibly nonlinear matrix function is called
// with the solution substituted for the state.
func (o *Run) Blin(B [][]float64, t float64) error {
	if err := o.X(o.xbuf, t); err != nil {
		return err
	}
	return o.Mdl.Bfcn(B, t, o.xbuf)
}

// checkPhiArgs rejects query times before the global start time: the engine
// never extrapolates before the known initial condition
func (o *Run) checkPhiArgs(t, s float64) error {
	if o.traj == nil {
		return chk.Err("sto: Solve must be called before evaluating Phi")
	}
	t0 := o.Times[0]
	if t < t0 {
		return chk.Err("sto: cannot evaluate Phi(t,s) with t=%g before t0=%g", t, t0)
	}
	if s < t0 {
		return chk.Err("sto: cannot evaluate Phi(t,s) with s=%g before t0=%g", s, t0)
	}
	return nil
}

// integrateLin advances y in place from a to b under dy/dτ = Blin(τ)・y.
// The direction is a property of the span: a reversed span is integrated
// through the substitution τ = a + (b-a)・σ with σ from 0 to 1, which keeps
// the underlying solver always marching forward. Discontinuity points of the
// model crossed by the span split the integration.
func (o *Run) integrateLin(y []float64, a, b float64) error {
	return o.integrateMapped(y, a, b, func(f []float64, τ, scale float64, yy []float64) error {
		if err := o.Blin(o.bmat, τ); err != nil {
			return err
		}
		la.MatVecMul(f, scale, o.bmat, yy)
		return nil
	})
}

// integrateLinMat advances the row-major flattened matrix P in place from a
// to b under dP/dτ = Blin(τ)・P (all columns in one pass)
func (o *Run) integrateLinMat(p []float64, a, b float64) error {
	n := o.Mdl.Npools
	return o.integrateMapped(p, a, b, func(f []float64, τ, scale float64, pp []float64) error {
		if err := o.Blin(o.bmat, τ); err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				sum := 0.0
				for k := 0; k < n; k++ {
					sum += o.bmat[i][k] * pp[k*n+j]
				}
				f[i*n+j] = scale * sum
			}
		}
		return nil
	})
}

// mappedRhs is a right-hand side on the unit interval: τ is the physical
// time and scale the span length factor d(τ)/d(σ)
type mappedRhs func(f []float64, τ, scale float64, y []float64) error

// integrateMapped runs the solver over the sub-spans of [a,b] delimited by
// the model's discontinuity points, each mapped onto the unit interval
func (o *Run) integrateMapped(y []float64, a, b float64, rhs mappedRhs) error {
	if math.Abs(b-a) < 1e-14 {
		return nil
	}
	bounds := splitSpan(a, b, o.Mdl.Disc)
	for i := 0; i < len(bounds)-1; i++ {
		p, q := bounds[i], bounds[i+1]
		if math.Abs(q-p) < 1e-14 {
			continue
		}
		fcn := func(f []float64, σ float64, yy []float64, args ...interface{}) error {
			return rhs(f, p+(q-p)*σ, q-p, yy)
		}
		var sol ode.ODE
		sol.Init(o.Opts.Method, len(y), fcn, nil, nil, nil, true)
		sol.Distr = false
		sol.SetTol(o.Opts.Atol, o.Opts.Rtol)
		if err := sol.Solve(y, 0, 1, 0.01, false); err != nil {
			return chk.Err("sto: integration over [%g,%g] failed: %v", p, q, err)
		}
	}
	return nil
}

// splitSpan returns a, the discontinuity points strictly between a and b
// ordered along the direction of the span, then b
func splitSpan(a, b float64, disc []float64) []float64 {
	lo, hi := a, b
	if b < a {
		lo, hi = b, a
	}
	var inner []float64
	for _, td := range disc {
		if td > lo && td < hi {
			inner = append(inner, td)
		}
	}
	res := []float64{a}
	if b >= a {
		res = append(res, inner...)
	} else {
		for i := len(inner) - 1; i >= 0; i-- {
			res = append(res, inner[i])
		}
	}
	return append(res, b)
}

// clampNonneg clamps y to zero from below if x is componentwise nonnegative.
// Small negative overshoots are an expected consequence of finite
// integration tolerance, not a domain violation.
func clampNonneg(y, x []float64) {
	for _, v := range x {
		if v < 0 {
			return
		}
	}
	for i := range y {
		if y[i] < 0 {
			y[i] = 0
		}
	}
}
