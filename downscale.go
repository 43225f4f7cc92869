/*
Copyright © 2019 the olsen-randerson authors.
This file is part of olsen-randerson.

olsen-randerson is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

olsen-randerson is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with olsen-randerson.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package olsenranderson performs temporal downscaling of biogenic
// carbon fluxes: it converts fluxes known at a coarse timestep
// (usually monthly) into estimates at a finer timestep (hours to
// days), distributing photosynthesis in proportion to
// photosynthetically active radiation and respiration according to a
// Q10 temperature response, while preserving the coarse-period mean.
//
// This package implements the single-period form of the algorithm
// described in:
//
// Olsen, Seth C. and James T. Randerson, 2004. "Differences between
// surface and column atmospheric CO2 and implications for carbon
// cycle research," Journal of Geophysical Research: Atmospheres
// vol. 109, no. D2, D02301. doi:10.1029/2003JD003968.
//
// The continuous-time variant, which avoids discontinuities at
// month boundaries, is in the subpackage fisher.
//
// Sign convention: both engines in this module take net productivity
// (positive values mean carbon uptake by the ecosystem) and
// respiration (always positive) as inputs, and return net ecosystem
// exchange with positive values meaning carbon released to the
// atmosphere. The two published variants of the algorithm disagree on
// this point; the convention here is the atmospheric one used by
// Fisher et al. (2016) and is applied identically everywhere.
//
// Arrays are github.com/ctessum/sparse DenseArrays with the time axis
// leading; any trailing axes (spatial cells, model columns) pass
// through unchanged. All fluxes are rates, with time in the
// denominator of their units, so "conservation" means the mean of the
// downscaled output over a coarse period equals the coarse rate, and
// the sum over N fine steps equals N times the coarse rate.
package olsenranderson

import (
	"errors"
	"math"

	"github.com/ctessum/sparse"
)

// Errors returned by the downscaling functions. Callers can test for
// them with errors.Is.
var (
	// ErrZeroDriver indicates that the scaling driver (PAR, or the
	// Q10 temperature response) averages to exactly zero over an
	// entire averaging window, so the normalization is undefined.
	// For PAR this happens during polar night; supplying data where
	// every period has at least one sunlit step avoids it.
	ErrZeroDriver = errors.New("olsenranderson: driver averages to zero over the averaging window")

	// ErrShapeMismatch indicates that input array shapes disagree
	// with each other or with the documented leading-axis layout.
	ErrShapeMismatch = errors.New("olsenranderson: array shapes do not match")

	// ErrNegativeDriver indicates a negative PAR value.
	ErrNegativeDriver = errors.New("olsenranderson: PAR must be nonnegative")
)

// Config holds the scaling constants for a downscaling variant. The
// original implementations kept these as package globals; making them
// a value lets the historical variants (and any recalibration)
// coexist without shared mutable state.
type Config struct {
	// GPPFactor estimates gross primary productivity from net
	// productivity: GPP ≈ GPPFactor × NPP. The published value is 2,
	// approximating photosynthesis as twice net uptake.
	GPPFactor float64

	// Q10 is the factor by which respiration increases when the
	// temperature increases by ten degrees Celsius.
	Q10 float64

	// T0 is the baseline temperature [°C] for the Q10 response.
	// It should be near the center of the expected temperature range.
	T0 float64
}

// The constants used in the two published deployments of the
// algorithm. They differ only in the baseline temperature.
var (
	// OlsenRanderson2004 holds the constants from Olsen and
	// Randerson (2004).
	OlsenRanderson2004 = Config{GPPFactor: 2, Q10: 1.5, T0: 10}

	// Fisher2016 holds the constants from Fisher et al. (2016).
	Fisher2016 = Config{GPPFactor: 2, Q10: 1.5, T0: 30}
)

// TemperatureResponse returns the elementwise respiration scaling
// factor Q10^((T−T0)/10) for temperature [°C]. The result is always
// positive, although it can underflow to zero for temperatures far
// below T0.
func (c Config) TemperatureResponse(temperature *sparse.DenseArray) *sparse.DenseArray {
	o := sparse.ZerosDense(temperature.Shape...)
	for i, t := range temperature.Elements {
		o.Elements[i] = math.Pow(c.Q10, (t-c.T0)/10)
	}
	return o
}

// Scalar wraps a single value as a rank-0 array, for use as a coarse
// flux total that applies to every column of the driver arrays.
func Scalar(value float64) *sparse.DenseArray {
	a := sparse.ZerosDense()
	a.Elements[0] = value
	return a
}

func shapesEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i, v := range a {
		if v != b[i] {
			return false
		}
	}
	return true
}
