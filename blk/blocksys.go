// Copyright 2015 Dorival Pedroso and Raul Durand. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// package blk composes named blocks of state variables and their derivative
// functions into a single flat right-hand side suitable for the ODE solver.
//
// A block triangular system such as
//
//	dot_X1 = f1(t, X1)
//	dot_X2 = f2(t, X1, X2)
//
// is declared block by block; each derivative function receives only the
// blocks it depends on, so large composed systems stay cheap even when most
// blocks ignore each other.
package blk

import (
	"github.com/cpmech/gosl/chk"
)

// DerivFcn computes the time derivative of one block
//
//	f    -- (output) flattened derivative of this block
//	t    -- current time
//	args -- flattened current values of the blocks named in Deps, in
//	        declaration order. The time alias, if listed in Deps, does not
//	        contribute a slice since t is always given.
type DerivFcn func(f []float64, t float64, args ...[]float64) error

// RhsFcn is a composed flat right-hand side: dydt = rhs(t, y)
type RhsFcn func(f []float64, t float64, y []float64) error

// Block holds one named sub-vector of the composed state
type Block struct {
	Name  string    // name of this block
	Start []float64 // start values (flattened, row-major for matrix blocks)
	Nrow  int       // number of rows; 0 ⇒ len(Start) (plain vector block)
	Ncol  int       // number of columns; 0 ⇒ 1
	Deps  []string  // names of blocks (or the time alias) the derivative needs
	Fcn   DerivFcn  // derivative function
}

// Size returns the flat size of this block
func (o *Block) Size() int { return len(o.Start) }

// System holds an ordered set of blocks with a fixed flat layout. The offset
// table is computed once at construction and never changes.
type System struct {
	TimeAlias string // name standing for time in dependency lists

	blocks  []*Block
	offsets []int // nb+1 boundaries of blocks within the flat vector
	idx     map[string]int
	ndim    int
}

// NewSystem validates the blocks and builds the flat layout. Errors are
// reported here, at construction, not at integration time:
//
//	empty or duplicate block names
//	shape inconsistent with the number of start values
//	dependency names that are neither block names nor the time alias
func NewSystem(timeAlias string, blocks []*Block) (*System, error) {
	if timeAlias == "" {
		timeAlias = "t"
	}
	if len(blocks) < 1 {
		return nil, chk.Err("blk: at least one block is required")
	}
	o := &System{
		TimeAlias: timeAlias,
		blocks:    blocks,
		offsets:   make([]int, len(blocks)+1),
		idx:       make(map[string]int),
	}
	for i, b := range blocks {
		if b.Name == "" {
			return nil, chk.Err("blk: block # %d has an empty name", i)
		}
		if b.Name == timeAlias {
			return nil, chk.Err("blk: block %q collides with the time alias", b.Name)
		}
		if _, found := o.idx[b.Name]; found {
			return nil, chk.Err("blk: block %q is declared twice", b.Name)
		}
		if len(b.Start) < 1 {
			return nil, chk.Err("blk: block %q has no start values", b.Name)
		}
		nrow, ncol := b.Nrow, b.Ncol
		if nrow == 0 {
			nrow = len(b.Start)
		}
		if ncol == 0 {
			ncol = 1
		}
		if nrow*ncol != len(b.Start) {
			return nil, chk.Err("blk: block %q: shape (%d,%d) does not match %d start values", b.Name, nrow, ncol, len(b.Start))
		}
		b.Nrow, b.Ncol = nrow, ncol
		o.idx[b.Name] = i
		o.offsets[i+1] = o.offsets[i] + len(b.Start)
	}
	o.ndim = o.offsets[len(blocks)]
	for _, b := range blocks {
		for _, dep := range b.Deps {
			if dep == timeAlias {
				continue
			}
			if _, found := o.idx[dep]; !found {
				return nil, chk.Err("blk: block %q depends on unknown name %q", b.Name, dep)
			}
		}
	}
	return o, nil
}

// Ndim returns the total flat dimension
func (o *System) Ndim() int { return o.ndim }

// Nblocks returns the number of blocks
func (o *System) Nblocks() int { return len(o.blocks) }

// StartVec returns a new flat vector holding all start values concatenated
// in declaration order
func (o *System) StartVec() []float64 {
	y0 := make([]float64, o.ndim)
	for i, b := range o.blocks {
		copy(y0[o.offsets[i]:o.offsets[i+1]], b.Start)
	}
	return y0
}

// Offsets returns the [lo,hi) range of the named block within the flat vector
func (o *System) Offsets(name string) (lo, hi int, err error) {
	i, found := o.idx[name]
	if !found {
		return 0, 0, chk.Err("blk: there is no block named %q", name)
	}
	return o.offsets[i], o.offsets[i+1], nil
}

// Shape returns the declared shape of the named block
func (o *System) Shape(name string) (nrow, ncol int, err error) {
	i, found := o.idx[name]
	if !found {
		return 0, 0, chk.Err("blk: there is no block named %q", name)
	}
	return o.blocks[i].Nrow, o.blocks[i].Ncol, nil
}

// Rhs composes the blocks' own derivative functions into one flat RHS
func (o *System) Rhs() (RhsFcn, error) {
	fcns := make([]DerivFcn, len(o.blocks))
	for i, b := range o.blocks {
		fcns[i] = b.Fcn
	}
	return o.Compose(fcns)
}

// Compose builds a flat RHS from the given per-block derivative functions,
// reusing the declared dependency lists. One call per smooth piece of a
// piecewise-defined system allows different derivative functions on each
// piece while keeping the same layout.
func (o *System) Compose(fcns []DerivFcn) (RhsFcn, error) {
	if len(fcns) != len(o.blocks) {
		return nil, chk.Err("blk: %d derivative functions given but %d blocks are declared", len(fcns), len(o.blocks))
	}
	for i, fcn := range fcns {
		if fcn == nil {
			return nil, chk.Err("blk: derivative function for block %q is nil", o.blocks[i].Name)
		}
	}

	// precompute argument references; the time alias maps to no slice
	type argref struct{ lo, hi int }
	argrefs := make([][]argref, len(o.blocks))
	for i, b := range o.blocks {
		for _, dep := range b.Deps {
			if dep == o.TimeAlias {
				continue
			}
			j := o.idx[dep]
			argrefs[i] = append(argrefs[i], argref{o.offsets[j], o.offsets[j+1]})
		}
	}

	// reusable argument buffers; the engine is single-owner so the composed
	// RHS is never called concurrently
	args := make([][][]float64, len(o.blocks))
	for i := range args {
		args[i] = make([][]float64, len(argrefs[i]))
	}

	rhs := func(f []float64, t float64, y []float64) error {
		for i := range o.blocks {
			for j, r := range argrefs[i] {
				args[i][j] = y[r.lo:r.hi]
			}
			lo, hi := o.offsets[i], o.offsets[i+1]
			if err := fcns[i](f[lo:hi], t, args[i]...); err != nil {
				return chk.Err("blk: derivative of block %q failed at t=%g: %v", o.blocks[i].Name, t, err)
			}
		}
		return nil
	}
	return rhs, nil
}

// Accessor extracts one block from time-leading rows of flat states. Rows is
// a (ntimes × ndim) table; the result is (ntimes × blocksize), time leading.
type Accessor func(rows [][]float64) [][]float64

// Accessors builds one extraction function per block. The closures are built
// by a factory parameterised by the offsets so that each one captures its own
// block, not the loop variable.
func (o *System) Accessors() map[string]Accessor {
	res := make(map[string]Accessor)
	for i, b := range o.blocks {
		res[b.Name] = makeAccessor(o.offsets[i], o.offsets[i+1])
	}
	return res
}

// makeAccessor is the factory building one per-block extraction closure
func makeAccessor(lo, hi int) Accessor {
	return func(rows [][]float64) [][]float64 {
		res := make([][]float64, len(rows))
		for k, row := range rows {
			res[k] = make([]float64, hi-lo)
			copy(res[k], row[lo:hi])
		}
		return res
	}
}

// ExtractVec copies the named block out of one flat state
func (o *System) ExtractVec(v []float64, name string, y []float64) error {
	lo, hi, err := o.Offsets(name)
	if err != nil {
		return err
	}
	if len(v) != hi-lo {
		return chk.Err("blk: buffer size %d does not match block %q size %d", len(v), name, hi-lo)
	}
	copy(v, y[lo:hi])
	return nil
}

// ExtractMat copies the named matrix block out of one flat state, reshaping
// the row-major flat values into the declared (nrow × ncol) shape
func (o *System) ExtractMat(m [][]float64, name string, y []float64) error {
	lo, _, err := o.Offsets(name)
	if err != nil {
		return err
	}
	nrow, ncol, _ := o.Shape(name)
	if len(m) != nrow {
		return chk.Err("blk: matrix buffer has %d rows but block %q has %d", len(m), name, nrow)
	}
	for i := 0; i < nrow; i++ {
		copy(m[i], y[lo+i*ncol:lo+(i+1)*ncol])
	}
	return nil
}
