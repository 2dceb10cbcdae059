// Copyright 2015 Dorival Pedroso and Raul Durand. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// package inp implements the input data read from a (.sim) JSON file
package inp

import (
	"encoding/json"
	goio "io"
	"os"
	"path/filepath"

	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/fun"
	"github.com/cpmech/gosl/io"
	"github.com/cpmech/gosl/utl"

	"github.com/JTQIN/CompartmentalSystems/pwc"
	"github.com/JTQIN/CompartmentalSystems/sto"
)

// Data holds global data for simulations
type Data struct {
	Desc    string `json:"desc"`    // description of simulation
	DirOut  string `json:"dirout"`  // directory for output; e.g. /tmp/csys
	Encoder string `json:"encoder"` // encoder name; e.g. "gob" "json"
}

// SolverData holds ODE solver data
type SolverData struct {
	Method string  `json:"method"` // ODE method: {Dopri5, Radau5}
	Atol   float64 `json:"atol"`   // absolute tolerance
	Rtol   float64 `json:"rtol"`   // relative tolerance
	Dx     float64 `json:"dx"`     // initial (or fixed) step size; 0 => automatic
	Fixstp bool    `json:"fixstp"` // use fixed steps
}

// SetDefault sets default values
func (o *SolverData) SetDefault() {
	o.Method = "Dopri5"
	o.Atol = 1e-8
	o.Rtol = 1e-8
}

// TimeData holds data defining the model time grid
type TimeData struct {
	T0 float64 `json:"t0"` // start time
	Tf float64 `json:"tf"` // final time
	Np int     `json:"np"` // number of grid points; 0 => 11
}

// PoolData holds data for one pool
type PoolData struct {
	Name  string  `json:"name"`  // name of pool. ex: "leaf-litter"
	X0    float64 `json:"x0"`    // start value (mass)
	InFcn string  `json:"infcn"` // name of external input function; "" => no input
}

// CacheData holds data controlling the propagator table
type CacheData struct {
	Size int    `json:"size"` // number of grid points; 0 => no cache
	File string `json:"file"` // file to save/restore the table; "" => none
}

// Simulation holds all simulation data
type Simulation struct {

	// input
	Data      Data        `json:"data"`      // global data
	Pools     []*PoolData `json:"pools"`     // pool definitions
	Bvals     [][]float64 `json:"bvals"`     // constant coefficient matrix
	Functions FuncsData   `json:"functions"` // time functions database
	Times     TimeData    `json:"times"`     // time grid data
	Disc      []float64   `json:"disc"`      // discontinuity points of the input functions
	Solver    SolverData  `json:"solver"`    // ODE solver data
	Cache     CacheData   `json:"cache"`     // propagator table data

	// derived
	DirOut  string     // directory to save results
	Key     string     // simulation key; e.g. mysim01.sim => mysim01
	EncType string     // encoder type
	InFcns  []fun.Func // external input function per pool; nil entry => no input
}

// ReadSim reads all simulation data from a .sim JSON file
func ReadSim(simfilepath string, erasefiles bool) *Simulation {

	// new sim
	var o Simulation

	// read file
	b, err := io.ReadFile(simfilepath)
	if err != nil {
		chk.Panic("ReadSim: cannot read simulation file %q", simfilepath)
	}

	// set default values
	o.Solver.SetDefault()

	// decode
	err = json.Unmarshal(b, &o)
	if err != nil {
		chk.Panic("ReadSim: cannot unmarshal simulation file %q", simfilepath)
	}

	// filename key
	fn := filepath.Base(simfilepath)
	o.Key = io.FnKey(fn)

	// output directory
	o.DirOut = o.Data.DirOut
	if o.DirOut == "" {
		o.DirOut = "/tmp/csys/" + o.Key
	}

	// encoder type
	o.EncType = o.Data.Encoder
	if o.EncType != "gob" && o.EncType != "json" {
		o.EncType = "gob"
	}

	// create directory and erase previous simulation results
	if erasefiles {
		err = os.MkdirAll(o.DirOut, 0777)
		if err != nil {
			chk.Panic("cannot create directory for output results (%s): %v", o.DirOut, err)
		}
		io.RemoveAll(io.Sf("%s/%s*", o.DirOut, o.Key))
	}

	// pools
	np := len(o.Pools)
	if np < 1 {
		chk.Panic("ReadSim: at least one pool is required")
	}
	if len(o.Bvals) != np {
		chk.Panic("ReadSim: coefficient matrix has %d rows but there are %d pools", len(o.Bvals), np)
	}
	for i, row := range o.Bvals {
		if len(row) != np {
			chk.Panic("ReadSim: row %d of the coefficient matrix has %d values but there are %d pools", i, len(row), np)
		}
	}

	// input functions
	o.InFcns = make([]fun.Func, np)
	for i, p := range o.Pools {
		if p.InFcn == "" {
			continue
		}
		o.InFcns[i] = o.Functions.Get(p.InFcn)
		if o.InFcns[i] == nil {
			chk.Panic("ReadSim: cannot find input function named %q for pool %q", p.InFcn, p.Name)
		}
	}

	// time grid
	if o.Times.Tf <= o.Times.T0 {
		chk.Panic("ReadSim: final time must be greater than start time: tf=%g, t0=%g", o.Times.Tf, o.Times.T0)
	}
	if o.Times.Np == 0 {
		o.Times.Np = 11
	}
	if o.Times.Np < 2 {
		chk.Panic("ReadSim: time grid must have at least two points (np=%d)", o.Times.Np)
	}

	// results
	return &o
}

// Npools returns the number of pools
func (o *Simulation) Npools() int { return len(o.Pools) }

// TimeGrid returns the model time grid
func (o *Simulation) TimeGrid() []float64 {
	return utl.LinSpace(o.Times.T0, o.Times.Tf, o.Times.Np)
}

// X0 returns the start values, one per pool
func (o *Simulation) X0() []float64 {
	x0 := make([]float64, len(o.Pools))
	for i, p := range o.Pools {
		x0[i] = p.X0
	}
	return x0
}

// SolverOpts returns ODE solver options built from the input data
func (o *Simulation) SolverOpts() *pwc.Options {
	opts := pwc.DefaultOptions()
	opts.Method = o.Solver.Method
	opts.Atol = o.Solver.Atol
	opts.Rtol = o.Solver.Rtol
	opts.Dx = o.Solver.Dx
	opts.Fixstp = o.Solver.Fixstp
	return opts
}

// PoolModel builds the compartmental model defined by the input data
func (o *Simulation) PoolModel() *sto.Model {
	n := len(o.Pools)
	return &sto.Model{
		Npools: n,
		Bfcn: func(B [][]float64, t float64, x []float64) error {
			for i := 0; i < n; i++ {
				copy(B[i], o.Bvals[i])
			}
			return nil
		},
		Ufcn: func(u []float64, t float64) error {
			for i := 0; i < n; i++ {
				u[i] = 0
				if o.InFcns[i] != nil {
					u[i] = o.InFcns[i].F(t, nil)
				}
			}
			return nil
		},
		Disc: o.Disc,
	}
}

// GetInfo returns formatted information
func (o *Simulation) GetInfo(w goio.Writer) (err error) {
	b, err := json.MarshalIndent(o, "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return
}
