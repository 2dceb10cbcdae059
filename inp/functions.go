// Copyright 2015 Dorival Pedroso and Raul Durand. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package inp

import (
	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/fun"
)

// FuncData holds the definition of one named time function
type FuncData struct {
	Name string   `json:"name"` // name of function. ex: "input0"
	Type string   `json:"type"` // type of function. ex: "cte"
	Prms fun.Prms `json:"prms"` // parameters
}

// FuncsData holds all time functions of a simulation
type FuncsData []*FuncData

// Get returns a function by name
//  Note: returns nil if not found
func (o FuncsData) Get(name string) fun.Func {
	if name == "zero" {
		return &fun.Cte{}
	}
	for _, fd := range o {
		if fd.Name == name {
			switch fd.Type {
			case "cte", "":
				c := 0.0
				if prm := fd.Prms.Find("c"); prm != nil {
					c = prm.V
				}
				return &fun.Cte{C: c}
			default:
				chk.Panic("functions database: type %q of function %q is not available", fd.Type, fd.Name)
			}
		}
	}
	return nil
}
