// Copyright 2015 Dorival Pedroso and Raul Durand. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// package ana implements analytical solutions
package ana

import (
	"math"

	"github.com/cpmech/gosl/fun"
)

// DecayPools implements the closed-form solution of uncoupled linear pools
// with constant external input
//
//	dx_i/dt = -k_i・x_i + u_i
//
// for which the state transition operator is the diagonal matrix exponential
//
//	Phi(t,s) = diag( exp(-k_i・(t-s)) )
//
// and the full solution is the propagated start value plus the input
// convolution
//
//	x_i(t) = exp(-k_i・(t-t0))・x_i(t0) + (u_i/k_i)・(1 - exp(-k_i・(t-t0)))
type DecayPools struct {
	K  []float64 // decay rates (k_i > 0)
	U  []float64 // constant input per pool
	X0 []float64 // start values
}

// Init initialises the pools from parameters named k0,k1,..., u0,u1,...,
// x0_0,x0_1,... with npools given by parameter "npools"
func (o *DecayPools) Init(prms fun.Prms) {
	n := 0
	for _, p := range prms {
		if p.N == "npools" {
			n = int(p.V)
		}
	}
	if n < 1 {
		n = 2
	}
	o.K = make([]float64, n)
	o.U = make([]float64, n)
	o.X0 = make([]float64, n)
	for _, p := range prms {
		for i := 0; i < n; i++ {
			switch p.N {
			case key("k", i):
				o.K[i] = p.V
			case key("u", i):
				o.U[i] = p.V
			case key("x0_", i):
				o.X0[i] = p.V
			}
		}
	}
}

// Npools returns the number of pools
func (o DecayPools) Npools() int { return len(o.K) }

// Phi computes the propagator matrix
func (o DecayPools) Phi(phi [][]float64, t, s float64) {
	for i := range o.K {
		for j := range o.K {
			phi[i][j] = 0
		}
		phi[i][i] = math.Exp(-o.K[i] * (t - s))
	}
}

// PhiVec computes y = Phi(t,s)・x
func (o DecayPools) PhiVec(y []float64, t, s float64, x []float64) {
	for i := range o.K {
		y[i] = math.Exp(-o.K[i]*(t-s)) * x[i]
	}
}

// Sol computes the full solution at time t, starting from X0 at time t0
func (o DecayPools) Sol(x []float64, t, t0 float64) {
	for i := range o.K {
		e := math.Exp(-o.K[i] * (t - t0))
		x[i] = e*o.X0[i] + o.U[i]/o.K[i]*(1-e)
	}
}

// Convolution computes the accumulated-input part of the solution,
//
//	∫_t0^t Phi(t,τ)・u dτ = (u_i/k_i)・(1 - exp(-k_i・(t-t0)))
//
// so that Sol = Phi(t,t0)・X0 + Convolution
func (o DecayPools) Convolution(v []float64, t, t0 float64) {
	for i := range o.K {
		v[i] = o.U[i] / o.K[i] * (1 - math.Exp(-o.K[i]*(t-t0)))
	}
}

func key(prefix string, i int) string {
	return prefix + string(rune('0'+i))
}
