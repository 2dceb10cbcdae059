// Copyright 2015 Dorival Pedroso and Raul Durand. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// package pwc integrates piecewise-continuous initial value problems. The
// time span is split at a finite set of discontinuity points; each smooth
// piece is solved with the ODE solver and seeded with the final state of the
// previous piece, so jumps in the right-hand side never fall inside one
// solver run.
package pwc

import (
	"sort"

	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/ode"

	"github.com/JTQIN/CompartmentalSystems/blk"
)

// Options holds ODE solver settings
type Options struct {
	Method string  // "Dopri5" or "Radau5"
	Atol   float64 // absolute tolerance
	Rtol   float64 // relative tolerance
	Fixstp bool    // use fixed steps
	Dx     float64 // initial (or fixed) step size; 0 ⇒ span/100
	Silent bool    // suppress solver messages
}

// SetDefault sets default values
func (o *Options) SetDefault() {
	o.Method = "Dopri5"
	o.Atol = 1e-8
	o.Rtol = 1e-8
	o.Fixstp = false
	o.Silent = true
}

// DefaultOptions returns options with default values
func DefaultOptions() *Options {
	var o Options
	o.SetDefault()
	return &o
}

// Solve integrates one right-hand side over [ta, tb], splitting the span at
// the discontinuity points lying strictly inside it
func Solve(rhs blk.RhsFcn, ta, tb float64, y0 []float64, disc []float64, opts *Options) (*Solution, error) {
	npieces, err := countPieces(ta, tb, disc)
	if err != nil {
		return nil, err
	}
	rhss := make([]blk.RhsFcn, npieces)
	for i := range rhss {
		rhss[i] = rhs
	}
	return SolvePieces(rhss, ta, tb, y0, disc, opts)
}

// SolvePieces integrates with one right-hand side per smooth piece. The
// number of functions must equal the number of pieces: one more than the
// number of discontinuity points strictly inside (ta, tb).
func SolvePieces(rhss []blk.RhsFcn, ta, tb float64, y0 []float64, disc []float64, opts *Options) (*Solution, error) {

	// check span and discontinuities
	npieces, err := countPieces(ta, tb, disc)
	if err != nil {
		return nil, err
	}
	if len(rhss) != npieces {
		return nil, chk.Err("pwc: %d right-hand sides given but the span has %d smooth pieces", len(rhss), npieces)
	}
	if opts == nil {
		opts = DefaultOptions()
	}

	// piece boundaries: ta, interior disc points, tb
	bounds := []float64{ta}
	for _, td := range disc {
		if td > ta && td < tb {
			bounds = append(bounds, td)
		}
	}
	bounds = append(bounds, tb)

	// integrate each piece, seeding with the previous final state
	o := &Solution{Ta: ta, Tb: tb, ndim: len(y0)}
	y := make([]float64, len(y0))
	copy(y, y0)
	for i := 0; i < npieces; i++ {
		a, b := bounds[i], bounds[i+1]
		p, err := solvePiece(rhss[i], a, b, y, opts)
		if err != nil {
			return nil, chk.Err("pwc: piece %d over [%g,%g] failed: %v", i, a, b, err)
		}
		o.pieces = append(o.pieces, p)
		copy(y, p.y[len(p.y)-1])
	}
	return o, nil
}

// countPieces validates the span and returns the number of smooth pieces
func countPieces(ta, tb float64, disc []float64) (int, error) {
	if tb <= ta {
		return 0, chk.Err("pwc: invalid span: tb=%g must be greater than ta=%g", tb, ta)
	}
	n := 1
	prev := ta
	for _, td := range disc {
		if td <= prev {
			if td > ta {
				return 0, chk.Err("pwc: discontinuity points must be ascending: %g after %g", td, prev)
			}
			continue // before or at ta: irrelevant for this span
		}
		if td < tb {
			n++
			prev = td
		}
	}
	return n, nil
}

// piece holds the accepted steps of one smooth sub-interval
type piece struct {
	a, b float64
	t    []float64
	y    [][]float64
	f    [][]float64 // rhs at the accepted steps, for dense interpolation
}

// solvePiece runs the ODE solver over one smooth interval, collecting the
// accepted steps through the output callback
func solvePiece(rhs blk.RhsFcn, a, b float64, y0 []float64, opts *Options) (*piece, error) {
	ndim := len(y0)
	p := &piece{a: a, b: b}

	fcn := func(f []float64, x float64, y []float64, args ...interface{}) error {
		return rhs(f, x, y)
	}
	out := func(first bool, h, x float64, y []float64, args ...interface{}) error {
		yc := make([]float64, ndim)
		copy(yc, y)
		fc := make([]float64, ndim)
		if err := rhs(fc, x, yc); err != nil {
			return err
		}
		p.t = append(p.t, x)
		p.y = append(p.y, yc)
		p.f = append(p.f, fc)
		return nil
	}

	var sol ode.ODE
	sol.Init(opts.Method, ndim, fcn, nil, nil, out, opts.Silent)
	sol.Distr = false
	sol.SetTol(opts.Atol, opts.Rtol)

	h := opts.Dx
	if h <= 0 {
		h = (b - a) / 100.0
	}
	y := make([]float64, ndim)
	copy(y, y0)
	err := sol.Solve(y, a, b, h, opts.Fixstp)
	if err != nil {
		return nil, err
	}

	// the output callback reports accepted steps; make sure both ends are
	// present so that dense evaluation covers the closed interval
	if len(p.t) == 0 || p.t[0] > a {
		f0 := make([]float64, ndim)
		if err := rhs(f0, a, y0); err != nil {
			return nil, err
		}
		yc := make([]float64, ndim)
		copy(yc, y0)
		p.t = append([]float64{a}, p.t...)
		p.y = append([][]float64{yc}, p.y...)
		p.f = append([][]float64{f0}, p.f...)
	}
	if p.t[len(p.t)-1] < b {
		fb := make([]float64, ndim)
		if err := rhs(fb, b, y); err != nil {
			return nil, err
		}
		yc := make([]float64, ndim)
		copy(yc, y)
		p.t = append(p.t, b)
		p.y = append(p.y, yc)
		p.f = append(p.f, fb)
	}
	return p, nil
}

// locate returns the index i such that t lies in [t[i], t[i+1]]
func (o *piece) locate(t float64) int {
	i := sort.SearchFloat64s(o.t, t)
	if i > 0 {
		i--
	}
	if i > len(o.t)-2 {
		i = len(o.t) - 2
	}
	return i
}
