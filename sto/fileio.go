// Copyright 2015 Dorival Pedroso and Raul Durand. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sto

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	goio "io"
	"os"

	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/io"
)

// Encoder defines encoders; e.g. gob or json
type Encoder interface {
	Encode(e interface{}) error
}

// Decoder defines decoders; e.g. gob or json
type Decoder interface {
	Decode(e interface{}) error
}

// GetEncoder returns a new encoder
func GetEncoder(w goio.Writer, enctype string) Encoder {
	if enctype == "json" {
		return json.NewEncoder(w)
	}
	return gob.NewEncoder(w)
}

// GetDecoder returns a new decoder
func GetDecoder(r goio.Reader, enctype string) Decoder {
	if enctype == "json" {
		return json.NewDecoder(r)
	}
	return gob.NewDecoder(r)
}

// SaveCache persists the built propagator table together with the exact
// grids it corresponds to
func (o *Run) SaveCache(filename, enctype string) (err error) {
	if o.gcs == nil {
		return chk.Err("sto: there is no cache to save; call BuildCache first")
	}
	ca := o.gcs.table

	var buf bytes.Buffer
	enc := GetEncoder(&buf, enctype)
	if err = enc.Encode(ca.Nc); err != nil {
		return chk.Err("sto: cannot encode cache size\n%v", err)
	}
	if err = enc.Encode(ca.Times); err != nil {
		return chk.Err("sto: cannot encode cache times\n%v", err)
	}
	if err = enc.Encode(ca.Grid); err != nil {
		return chk.Err("sto: cannot encode cache grid\n%v", err)
	}
	if err = enc.Encode(ca.Vals); err != nil {
		return chk.Err("sto: cannot encode cache values\n%v", err)
	}

	fil, err := os.Create(filename)
	if err != nil {
		return chk.Err("sto: cannot create cache file %q\n%v", filename, err)
	}
	defer func() {
		if e := fil.Close(); e != nil && err == nil {
			err = e
		}
	}()
	if _, err = buf.WriteTo(fil); err != nil {
		return chk.Err("sto: cannot write cache file %q\n%v", filename, err)
	}
	io.Pf("cache saved to %s\n", filename)
	return
}

// LoadCache restores a propagator table. The restored time grid must match
// the current run's grid exactly: a silently mismatched cache would produce
// wrong results with no symptom, so any difference is a hard error and the
// run keeps serving queries without the cache.
func (o *Run) LoadCache(filename, enctype string) (err error) {
	if o.traj == nil {
		return chk.Err("sto: Solve must be called before loading a cache")
	}

	fil, err := os.Open(filename)
	if err != nil {
		return chk.Err("sto: cannot open cache file %q\n%v", filename, err)
	}
	defer func() {
		if e := fil.Close(); e != nil && err == nil {
			err = e
		}
	}()
	dec := GetDecoder(fil, enctype)

	ca := new(CacheTable)
	if err = dec.Decode(&ca.Nc); err != nil {
		return chk.Err("sto: cannot decode cache size\n%v", err)
	}
	if err = dec.Decode(&ca.Times); err != nil {
		return chk.Err("sto: cannot decode cache times\n%v", err)
	}
	if err = dec.Decode(&ca.Grid); err != nil {
		return chk.Err("sto: cannot decode cache grid\n%v", err)
	}
	if err = dec.Decode(&ca.Vals); err != nil {
		return chk.Err("sto: cannot decode cache values\n%v", err)
	}

	if ca.Nc < 2 {
		return chk.Err("sto: restored cache has invalid size %d", ca.Nc)
	}
	if len(ca.Times) != len(o.Times) {
		return chk.Err("sto: restored cache was built for %d time points but the run has %d", len(ca.Times), len(o.Times))
	}
	for i := range ca.Times {
		if ca.Times[i] != o.Times[i] {
			return chk.Err("sto: restored cache does not correspond to the current time grid (mismatch at point %d: %v ≠ %v)", i, ca.Times[i], o.Times[i])
		}
	}

	o.gcs = &GridCache{run: o, table: ca}
	io.Pf("cache loaded from %s\n", filename)
	return
}
