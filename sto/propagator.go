// Copyright 2015 Dorival Pedroso and Raul Durand. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sto

import (
	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/la"

	"github.com/JTQIN/CompartmentalSystems/blk"
	"github.com/JTQIN/CompartmentalSystems/pwc"
)

// Propagator computes the state transition operator Phi(t,s). The three
// strategies agree up to integration tolerance wherever their inputs
// overlap; they differ only in amortized cost.
type Propagator interface {
	Name() string
	Propagate(y []float64, t, s float64, x []float64) error // y = Phi(t,s)・x
	Mat(phi [][]float64, t, s float64) error                // phi = Phi(t,s)
}

// Propagate computes y = Phi(t,s)・x with the currently cheapest strategy:
// the grid cache when built, the skew-product system otherwise. Phi(s,s) is
// the identity and dispatches no integration.
func (o *Run) Propagate(y []float64, t, s float64, x []float64) error {
	if err := o.checkPhiArgs(t, s); err != nil {
		return err
	}
	if s == t {
		copy(y, x)
		return nil
	}
	return o.propagator().Propagate(y, t, s, x)
}

// PropagateMat computes phi = Phi(t,s) as an explicit matrix
func (o *Run) PropagateMat(phi [][]float64, t, s float64) error {
	if err := o.checkPhiArgs(t, s); err != nil {
		return err
	}
	if s == t {
		identity(phi)
		return nil
	}
	return o.propagator().Mat(phi, t, s)
}

// StrategyName reports which strategy currently serves Propagate
func (o *Run) StrategyName() string { return o.propagator().Name() }

func (o *Run) propagator() Propagator {
	if o.gcs != nil {
		return o.gcs
	}
	return o.Skew()
}

// Direct //////////////////////////////////////////////////////////////////

// Direct is the canonical, always-correct, no-memory strategy: every vector
// query integrates dy/dτ = Blin(τ)・y from s to t; every matrix query
// integrates the matrix ODE dPhi/dτ = Blin(τ)・Phi in one pass rather than
// one integration per basis vector.
type Direct struct {
	run *Run
}

// Direct returns the direct-integration strategy for cross-checks
func (o *Run) Direct() *Direct { return &Direct{run: o} }

// Name returns the strategy name
func (o *Direct) Name() string { return "direct" }

// Propagate computes y = Phi(t,s)・x by direct integration; t < s is
// integrated with a reversed span
func (o *Direct) Propagate(y []float64, t, s float64, x []float64) error {
	if err := o.run.checkPhiArgs(t, s); err != nil {
		return err
	}
	copy(y, x)
	if s == t {
		return nil
	}
	if err := o.run.integrateLin(y, s, t); err != nil {
		return err
	}
	clampNonneg(y, x)
	return nil
}

// Mat computes phi = Phi(t,s) by one matrix-ODE integration from Phi(s,s)=I
func (o *Direct) Mat(phi [][]float64, t, s float64) error {
	if err := o.run.checkPhiArgs(t, s); err != nil {
		return err
	}
	n := o.run.Mdl.Npools
	p := make([]float64, n*n)
	for i := 0; i < n; i++ {
		p[i*n+i] = 1
	}
	if s != t {
		if err := o.run.integrateLinMat(p, s, t); err != nil {
			return err
		}
	}
	for i := 0; i < n; i++ {
		copy(phi[i], p[i*n:(i+1)*n])
	}
	return nil
}

// SkewProduct //////////////////////////////////////////////////////////////

// SkewProduct integrates the pair (x, Phi(・,t0)) once as an augmented block
// system anchored at the global start time t0 and answers queries through
// the group law
//
//	Phi(t,s) = Phi(t,t0)・Phi(s,t0)⁻¹
//
// Explicit inverses are memoized in an owned map keyed by the query time at
// which they were needed; the map only grows for the life of the Run
// (callers needing bounded memory must wrap the engine themselves). A vector
// query whose inverse is not memoized yet is answered by a linear solve
// instead of materializing the inverse.
type SkewProduct struct {
	run  *Run
	sol  *pwc.Solution            // augmented solution over the full span
	invs map[float64][][]float64  // query time ⇒ inverse of Phi(time,t0)
	a, b [][]float64              // scratch Phi(t,t0), Phi(s,t0)
	m    [][]float64              // scratch product
}

// Skew returns the skew-product strategy, allocating it on first use
func (o *Run) Skew() *SkewProduct {
	if o.skew == nil {
		n := o.Mdl.Npools
		o.skew = &SkewProduct{
			run:  o,
			invs: make(map[float64][][]float64),
			a:    la.MatAlloc(n, n),
			b:    la.MatAlloc(n, n),
			m:    la.MatAlloc(n, n),
		}
	}
	return o.skew
}

// Name returns the strategy name
func (o *SkewProduct) Name() string { return "skew-product" }

// ensure integrates the augmented system once per trajectory
func (o *SkewProduct) ensure() error {
	if o.sol != nil {
		return nil
	}
	run := o.run
	if run.traj == nil {
		return chk.Err("sto: Solve must be called before evaluating Phi")
	}
	n := run.Mdl.Npools
	ident := make([]float64, n*n)
	for i := 0; i < n; i++ {
		ident[i*n+i] = 1
	}
	bmat := la.MatAlloc(n, n)
	u := make([]float64, n)
	sys, err := blk.NewSystem("t", []*blk.Block{
		{Name: "x", Start: run.X0, Deps: []string{"t", "x"}, Fcn: func(f []float64, t float64, args ...[]float64) error {
			x := args[0]
			if err := run.Mdl.Bfcn(bmat, t, x); err != nil {
				return err
			}
			la.MatVecMul(f, 1, bmat, x)
			if run.Mdl.Ufcn != nil {
				if err := run.Mdl.Ufcn(u, t); err != nil {
					return err
				}
				for i := 0; i < n; i++ {
					f[i] += u[i]
				}
			}
			return nil
		}},
		{Name: "Phi", Start: ident, Nrow: n, Ncol: n, Deps: []string{"t", "x", "Phi"}, Fcn: func(f []float64, t float64, args ...[]float64) error {
			x, phi := args[0], args[1]
			if err := run.Mdl.Bfcn(bmat, t, x); err != nil {
				return err
			}
			for i := 0; i < n; i++ {
				for j := 0; j < n; j++ {
					sum := 0.0
					for k := 0; k < n; k++ {
						sum += bmat[i][k] * phi[k*n+j]
					}
					f[i*n+j] = sum
				}
			}
			return nil
		}},
	})
	if err != nil {
		return err
	}
	o.sol, err = pwc.SolveBlocks(sys, run.Times[0], run.Times[len(run.Times)-1], run.Mdl.Disc, run.Opts)
	return err
}

// phiT0 evaluates Phi(t,t0) from the augmented solution
func (o *SkewProduct) phiT0(m [][]float64, t float64) error {
	if err := o.ensure(); err != nil {
		return err
	}
	return o.sol.BlockMat(m, "Phi", t)
}

// inverse returns the memoized inverse of m for the given query time,
// computing and storing it on a miss. A singular matrix is surfaced as an
// explicit failure naming the time; nothing is stored in that case.
func (o *SkewProduct) inverse(key float64, m [][]float64) ([][]float64, error) {
	if mi, ok := o.invs[key]; ok {
		return mi, nil
	}
	n := o.run.Mdl.Npools
	mi := la.MatAlloc(n, n)
	if err := la.MatInvG(mi, m, 1e-13); err != nil {
		return nil, chk.Err("sto: Phi(%g,t0) is singular; cannot invert for skew-product query: %v", key, err)
	}
	o.invs[key] = mi
	return mi, nil
}

// solve computes w such that A・w = x through the sparse linear solver,
// avoiding a materialized inverse
func (o *SkewProduct) solve(w []float64, A [][]float64, x []float64, key float64) error {
	n := len(x)
	var tri la.Triplet
	tri.Init(n, n, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			tri.Put(i, j, A[i][j])
		}
	}
	ls := la.GetSolver("umfpack")
	defer ls.Clean()
	if err := ls.InitR(&tri, false, false, false); err != nil {
		return chk.Err("sto: cannot initialise linear solver for Phi(%g,t0): %v", key, err)
	}
	if err := ls.Fact(); err != nil {
		return chk.Err("sto: Phi(%g,t0) is singular; linear solve failed: %v", key, err)
	}
	if err := ls.SolveR(w, x, false); err != nil {
		return chk.Err("sto: linear solve for Phi(%g,t0) failed: %v", key, err)
	}
	return nil
}

// Propagate computes y = Phi(t,s)・x through the group law
func (o *SkewProduct) Propagate(y []float64, t, s float64, x []float64) error {
	run := o.run
	if err := run.checkPhiArgs(t, s); err != nil {
		return err
	}
	if s == t {
		copy(y, x)
		return nil
	}
	t0 := run.Times[0]
	n := run.Mdl.Npools
	w := make([]float64, n)

	// s == t0: one dense lookup, no inversion
	if s == t0 {
		if err := o.phiT0(o.a, t); err != nil {
			return err
		}
		la.MatVecMul(y, 1, o.a, x)
		clampNonneg(y, x)
		return nil
	}

	if err := o.phiT0(o.a, t); err != nil {
		return err
	}
	if err := o.phiT0(o.b, s); err != nil {
		return err
	}

	if s > t {
		// non-causal query: the group law Phi(t,s) = Phi(t,t0)・Phi(s,t0)⁻¹
		// still holds. With M = Phi(s,t0)・Phi(t,t0)⁻¹ one has
		// Phi(t,s) = M⁻¹, so a memoized inverse at the earlier time t turns
		// the query into one multiply and one linear solve, with no new
		// inversion of Phi(s,t0)
		if ai, ok := o.invs[t]; ok {
			la.MatMul(o.m, 1, o.b, ai)
			if err := o.solve(y, o.m, x, t); err != nil {
				return err
			}
			clampNonneg(y, x)
			return nil
		}
		if err := o.solve(w, o.b, x, s); err != nil {
			return err
		}
		la.MatVecMul(y, 1, o.a, w)
		clampNonneg(y, x)
		return nil
	}

	// t0 < s < t
	if bi, ok := o.invs[s]; ok {
		la.MatVecMul(w, 1, bi, x)
		la.MatVecMul(y, 1, o.a, w)
		clampNonneg(y, x)
		return nil
	}
	if err := o.solve(w, o.b, x, s); err != nil {
		return err
	}
	la.MatVecMul(y, 1, o.a, w)
	clampNonneg(y, x)
	return nil
}

// Mat computes phi = Phi(t,s) explicitly, memoizing the inverse it needs.
// Both time orders use the same group-law formula; the memo key is always
// s, the time whose operator gets inverted.
func (o *SkewProduct) Mat(phi [][]float64, t, s float64) error {
	run := o.run
	if err := run.checkPhiArgs(t, s); err != nil {
		return err
	}
	if s == t {
		identity(phi)
		return nil
	}
	t0 := run.Times[0]
	if s == t0 {
		return o.phiT0(phi, t)
	}
	if err := o.phiT0(o.a, t); err != nil {
		return err
	}
	if err := o.phiT0(o.b, s); err != nil {
		return err
	}
	bi, err := o.inverse(s, o.b)
	if err != nil {
		return err
	}
	la.MatMul(phi, 1, o.a, bi)
	return nil
}

// identity fills phi with the identity matrix
func identity(phi [][]float64) {
	for i := range phi {
		for j := range phi[i] {
			phi[i][j] = 0
		}
		phi[i][i] = 1
	}
}
