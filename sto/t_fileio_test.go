// Copyright 2015 Dorival Pedroso and Raul Durand. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sto

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/io"
	"github.com/cpmech/gosl/utl"
)

func Test_fileio01(tst *testing.T) {

	//verbose()
	chk.PrintTitle("fileio01. save and load round trip")

	dir := filepath.Join(os.TempDir(), "sto")
	os.MkdirAll(dir, 0777)

	for _, enctype := range []string{"gob", "json"} {

		run := twoPoolRun(tst)
		if run == nil {
			return
		}
		if err := run.BuildCache(6); err != nil {
			tst.Errorf("test failed: %v\n", err)
			return
		}
		fn := filepath.Join(dir, "cache01."+enctype)
		if err := run.SaveCache(fn, enctype); err != nil {
			tst.Errorf("test failed: %v\n", err)
			return
		}

		// a fresh run over the same grid accepts the table
		other := twoPoolRun(tst)
		if other == nil {
			return
		}
		if err := other.LoadCache(fn, enctype); err != nil {
			tst.Errorf("test failed: %v\n", err)
			return
		}
		if other.StrategyName() != "grid-cache" {
			tst.Errorf("test failed: restored run should serve from the cache\n")
			return
		}

		ca, cb := run.Cache(), other.Cache()
		chk.IntAssert(cb.Nc, ca.Nc)
		chk.Vector(tst, "grid ("+enctype+")", 1e-15, cb.Grid, ca.Grid)
		chk.Matrix(tst, "block ("+enctype+")", 1e-15, cb.Vals[2][3], ca.Vals[2][3])

		// restored table answers like the one it was saved from
		y1 := make([]float64, 2)
		y2 := make([]float64, 2)
		if err := run.Propagate(y1, 3.7, 0.4, []float64{1, 2}); err != nil {
			tst.Errorf("test failed: %v\n", err)
			return
		}
		if err := other.Propagate(y2, 3.7, 0.4, []float64{1, 2}); err != nil {
			tst.Errorf("test failed: %v\n", err)
			return
		}
		chk.Vector(tst, "restored query ("+enctype+")", 1e-12, y2, y1)
	}
}

func Test_fileio02(tst *testing.T) {

	//verbose()
	chk.PrintTitle("fileio02. mismatched grids are rejected")

	dir := filepath.Join(os.TempDir(), "sto")
	os.MkdirAll(dir, 0777)

	run := twoPoolRun(tst)
	if run == nil {
		return
	}
	if err := run.BuildCache(6); err != nil {
		tst.Errorf("test failed: %v\n", err)
		return
	}
	fn := filepath.Join(dir, "cache02.gob")
	if err := run.SaveCache(fn, "gob"); err != nil {
		tst.Errorf("test failed: %v\n", err)
		return
	}

	// same span, different number of points
	var other Run
	if err := other.Init(twoPoolModel(), utl.LinSpace(0, 4, 5), []float64{1, 1}); err != nil {
		tst.Errorf("test failed: %v\n", err)
		return
	}
	if err := other.Solve(); err != nil {
		tst.Errorf("test failed: %v\n", err)
		return
	}
	if err := other.LoadCache(fn, "gob"); err == nil {
		tst.Errorf("test failed: error expected for mismatched time grid\n")
		return
	} else {
		io.Pforan("OK. err = %v\n", err)
	}
	if other.Cache() != nil {
		tst.Errorf("test failed: failed load must leave the run without a cache\n")
		return
	}

	// saving without a built cache fails
	fresh := twoPoolRun(tst)
	if fresh == nil {
		return
	}
	if err := fresh.SaveCache(filepath.Join(dir, "none.gob"), "gob"); err == nil {
		tst.Errorf("test failed: error expected when saving without a cache\n")
		return
	} else {
		io.Pforan("OK. err = %v\n", err)
	}

	// loading before Solve fails
	var cold Run
	if err := cold.Init(twoPoolModel(), utl.LinSpace(0, 4, 9), []float64{1, 1}); err != nil {
		tst.Errorf("test failed: %v\n", err)
		return
	}
	if err := cold.LoadCache(fn, "gob"); err == nil {
		tst.Errorf("test failed: error expected when loading before Solve\n")
		return
	} else {
		io.Pforan("OK. err = %v\n", err)
	}
}
