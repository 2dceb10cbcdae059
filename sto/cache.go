// Copyright 2015 Dorival Pedroso and Raul Durand. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sto

import (
	"math"
	"sort"

	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/io"
	"github.com/cpmech/gosl/la"
	"github.com/cpmech/gosl/utl"
)

// CacheTable holds the precomputed dense grid of propagator blocks. Entry
// Vals[i][j] is the matrix propagating from grid point i to the j-th point
// of row i's own uniform sub-grid, which spans [Grid[i], t_max] with Nc
// points. The table is immutable once built; a new trajectory requires a
// full rebuild.
type CacheTable struct {
	Nc    int           // number of grid points (≥ 2)
	Times []float64     // model time grid the table was built against
	Grid  []float64     // uniform cache grid over [Times[0], Times[end]]
	Vals  [][][][]float64 // (Nc, Nc, npools, npools) propagator blocks
}

// GridCache answers Phi queries with one table lookup plus at most two short
// direct integrations covering the sub-cell remainders around s and t.
// Non-causal queries (t < s) fall through to the skew-product strategy: the
// table only stores forward blocks.
type GridCache struct {
	run   *Run
	table *CacheTable
}

// Name returns the strategy name
func (o *GridCache) Name() string { return "grid-cache" }

// Cache returns the current table, or nil while unbuilt
func (o *Run) Cache() *CacheTable {
	if o.gcs == nil {
		return nil
	}
	return o.gcs.table
}

// BuildCache precomputes the propagator table on a uniform grid of size
// points spanning the trajectory. Each row advances the state step by step
// through its sub-grid points instead of integrating from the coarse point
// straight to each target; integrating anew from the row origin produces
// mismatched segment ends (a zig-zag in the tabulated operator).
func (o *Run) BuildCache(size int) error {
	if size < 2 {
		return chk.Err("sto: cache size must be at least 2 (%d given)", size)
	}
	if o.traj == nil {
		return chk.Err("sto: Solve must be called before building the cache")
	}
	n := o.Mdl.Npools
	nc := size
	tMax := o.Times[len(o.Times)-1]

	table := &CacheTable{
		Nc:    nc,
		Times: make([]float64, len(o.Times)),
		Grid:  utl.LinSpace(o.Times[0], tMax, nc),
		Vals:  make([][][][]float64, nc),
	}
	copy(table.Times, o.Times)
	for i := 0; i < nc; i++ {
		table.Vals[i] = make([][][]float64, nc)
		for j := 0; j < nc; j++ {
			table.Vals[i][j] = la.MatAlloc(n, n)
		}
	}

	io.Pf("building state transition operator cache (nc=%d)\n", nc)
	sv := make([]float64, n)
	for i := 0; i < nc-1; i++ {
		sub := utl.LinSpace(table.Grid[i], tMax, nc)
		for k := 0; k < n; k++ {
			la.VecFill(sv, 0)
			sv[k] = 1
			st := table.Grid[i]
			for j := 0; j < nc; j++ {
				if err := o.integrateLin(sv, st, sub[j]); err != nil {
					return chk.Err("sto: cache build failed at row %d, column %d: %v", i, j, err)
				}
				for r := 0; r < n; r++ {
					table.Vals[i][j][r][k] = sv[r]
				}
				st = sub[j]
			}
		}
	}
	io.Pf("cache built\n")

	o.gcs = &GridCache{run: o, table: table}
	return nil
}

// Propagate computes y = Phi(t,s)・x from the table, bridging the sub-cell
// remainders on both sides with short direct integrations
func (o *GridCache) Propagate(y []float64, t, s float64, x []float64) error {
	run := o.run
	if err := run.checkPhiArgs(t, s); err != nil {
		return err
	}
	if s == t {
		copy(y, x)
		return nil
	}
	if t < s {
		return run.Skew().Propagate(y, t, s, x)
	}

	ca := o.table
	n := run.Mdl.Npools
	tMax := ca.Grid[len(ca.Grid)-1]

	// first cache point at or after s
	i := sort.SearchFloat64s(ca.Grid, s)
	if i > ca.Nc-1 {
		i = ca.Nc - 1
	}
	tm1 := ca.Grid[i]

	// target already before the first cache point: plain short integration
	if t <= tm1 {
		copy(y, x)
		if err := run.integrateLin(y, s, t); err != nil {
			return err
		}
		clampNonneg(y, x)
		return nil
	}

	// bridge s up to the cache grid: y1 = Phi(tm1,s)・x
	y1 := make([]float64, n)
	copy(y1, x)
	if err := run.integrateLin(y1, s, tm1); err != nil {
		return err
	}

	// bulk jump through the table: z = Phi(tm2,tm1)・y1
	z := make([]float64, n)
	step := (tMax - tm1) / float64(ca.Nc-1)
	tm2 := tm1
	if step > 0 {
		j := int(math.Floor((t - tm1) / step))
		if j > ca.Nc-1 {
			j = ca.Nc - 1
		}
		tm2 = tm1 + float64(j)*step
		la.MatVecMul(z, 1, ca.Vals[i][j], y1)
	} else {
		copy(z, y1)
	}

	// remainder: y = Phi(t,tm2)・z
	copy(y, z)
	if err := run.integrateLin(y, tm2, t); err != nil {
		return err
	}
	clampNonneg(y, x)
	return nil
}

// Mat computes phi = Phi(t,s) column by column through the table
func (o *GridCache) Mat(phi [][]float64, t, s float64) error {
	n := o.run.Mdl.Npools
	e := make([]float64, n)
	col := make([]float64, n)
	for k := 0; k < n; k++ {
		la.VecFill(e, 0)
		e[k] = 1
		if err := o.Propagate(col, t, s, e); err != nil {
			return err
		}
		for r := 0; r < n; r++ {
			phi[r][k] = col[r]
		}
	}
	return nil
}
