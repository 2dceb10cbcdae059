// Copyright 2015 Dorival Pedroso and Raul Durand. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pwc

import (
	"github.com/cpmech/gosl/chk"

	"github.com/JTQIN/CompartmentalSystems/blk"
)

// Solution is a stitched result over a piecewise-continuous span. It gives
// dense (continuous) access by cubic Hermite interpolation between the
// accepted solver steps of whichever piece contains the query time, and grid
// access to the accepted steps themselves.
type Solution struct {
	Ta, Tb float64 // overall span

	ndim   int
	pieces []*piece
	sys    *blk.System // set by SolveBlocks; enables per-block access
}

// Ndim returns the flat dimension
func (o *Solution) Ndim() int { return o.ndim }

// NumPieces returns the number of smooth pieces
func (o *Solution) NumPieces() int { return len(o.pieces) }

// PieceSeed returns the start state of piece i (the final state of piece
// i-1 for i > 0)
func (o *Solution) PieceSeed(i int) []float64 {
	y := make([]float64, o.ndim)
	copy(y, o.pieces[i].y[0])
	return y
}

// PieceEnd returns the final time and state of piece i
func (o *Solution) PieceEnd(i int) (t float64, y []float64) {
	p := o.pieces[i]
	y = make([]float64, o.ndim)
	copy(y, p.y[len(p.y)-1])
	return p.t[len(p.t)-1], y
}

// Eval computes the flat state at time t by dense interpolation. Times
// outside [Ta, Tb] are rejected: the solution is never extrapolated.
func (o *Solution) Eval(y []float64, t float64) error {
	if len(y) != o.ndim {
		return chk.Err("pwc: buffer size %d does not match dimension %d", len(y), o.ndim)
	}
	if t < o.Ta || t > o.Tb {
		return chk.Err("pwc: time t=%g is outside the solution span [%g,%g]", t, o.Ta, o.Tb)
	}

	// find the piece containing t; boundary points belong to the right piece
	// (except tb, which belongs to the last one)
	p := o.pieces[len(o.pieces)-1]
	for i := 0; i < len(o.pieces)-1; i++ {
		if t < o.pieces[i].b {
			p = o.pieces[i]
			break
		}
	}

	// cubic Hermite interpolation over the bracketing accepted steps
	i := p.locate(t)
	t0, t1 := p.t[i], p.t[i+1]
	h := t1 - t0
	if h == 0 {
		copy(y, p.y[i])
		return nil
	}
	s := (t - t0) / h
	s2 := s * s
	s3 := s2 * s
	h00 := 2*s3 - 3*s2 + 1
	h10 := s3 - 2*s2 + s
	h01 := -2*s3 + 3*s2
	h11 := s3 - s2
	y0, y1 := p.y[i], p.y[i+1]
	f0, f1 := p.f[i], p.f[i+1]
	for k := 0; k < o.ndim; k++ {
		y[k] = h00*y0[k] + h10*h*f0[k] + h01*y1[k] + h11*h*f1[k]
	}
	return nil
}

// EvalMany computes the flat states at all given times (one row per time)
func (o *Solution) EvalMany(ts []float64) ([][]float64, error) {
	res := make([][]float64, len(ts))
	for k, t := range ts {
		res[k] = make([]float64, o.ndim)
		if err := o.Eval(res[k], t); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// Tgrid returns the accepted solver steps of all pieces concatenated, with
// the duplicate boundary points removed
func (o *Solution) Tgrid() []float64 {
	var res []float64
	for i, p := range o.pieces {
		t := p.t
		if i > 0 {
			t = t[1:] // first point duplicates the previous piece's end
		}
		res = append(res, t...)
	}
	return res
}

// Ygrid returns the states at the accepted steps, time leading, with
// duplicate boundary points removed
func (o *Solution) Ygrid() [][]float64 {
	var res [][]float64
	for i, p := range o.pieces {
		y := p.y
		if i > 0 {
			y = y[1:]
		}
		for _, row := range y {
			rc := make([]float64, o.ndim)
			copy(rc, row)
			res = append(res, rc)
		}
	}
	return res
}

// SolveBlocks composes a block system's RHS and integrates it, attaching the
// system so that results can be accessed per block
func SolveBlocks(sys *blk.System, ta, tb float64, disc []float64, opts *Options) (*Solution, error) {
	rhs, err := sys.Rhs()
	if err != nil {
		return nil, err
	}
	sol, err := Solve(rhs, ta, tb, sys.StartVec(), disc, opts)
	if err != nil {
		return nil, err
	}
	sol.sys = sys
	return sol, nil
}

// BlockVec evaluates the named block at time t (dense access)
func (o *Solution) BlockVec(v []float64, name string, t float64) error {
	if o.sys == nil {
		return chk.Err("pwc: this solution was not built from a block system")
	}
	y := make([]float64, o.ndim)
	if err := o.Eval(y, t); err != nil {
		return err
	}
	return o.sys.ExtractVec(v, name, y)
}

// BlockMat evaluates the named matrix block at time t (dense access)
func (o *Solution) BlockMat(m [][]float64, name string, t float64) error {
	if o.sys == nil {
		return chk.Err("pwc: this solution was not built from a block system")
	}
	y := make([]float64, o.ndim)
	if err := o.Eval(y, t); err != nil {
		return err
	}
	return o.sys.ExtractMat(m, name, y)
}

// BlockGrid returns the named block at the accepted steps, time leading
func (o *Solution) BlockGrid(name string) ([][]float64, error) {
	if o.sys == nil {
		return nil, chk.Err("pwc: this solution was not built from a block system")
	}
	lo, hi, err := o.sys.Offsets(name)
	if err != nil {
		return nil, err
	}
	rows := o.Ygrid()
	res := make([][]float64, len(rows))
	for k, row := range rows {
		res[k] = make([]float64, hi-lo)
		copy(res[k], row[lo:hi])
	}
	return res, nil
}
