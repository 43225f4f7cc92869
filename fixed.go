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

package olsenranderson

import (
	"fmt"

	"github.com/ctessum/sparse"
)

// DownscaleGPP distributes the gross primary productivity for one
// coarse period over the fine timesteps of that period, in proportion
// to photosynthetically active radiation.
//
// gpp is the coarse-period GPP rate; its shape must equal the
// trailing shape of par, or it may be a Scalar. par holds PAR at the
// fine resolution, with the time axis leading; it must be
// nonnegative, and for each column at least one step must be nonzero
// (otherwise ErrZeroDriver is returned). The result has the shape of
// par, and its mean over the leading axis equals gpp.
func (c Config) DownscaleGPP(gpp, par *sparse.DenseArray) (*sparse.DenseArray, error) {
	if err := checkDriver(par); err != nil {
		return nil, err
	}
	for _, v := range par.Elements {
		if v < 0 {
			return nil, fmt.Errorf("downscaling GPP: PAR value %g: %w", v, ErrNegativeDriver)
		}
	}
	means, err := leadingAxisMean(par)
	if err != nil {
		return nil, fmt.Errorf("downscaling GPP: %w", err)
	}
	return scaleByDriver(gpp, par, means)
}

// DownscaleRespiration distributes the total ecosystem respiration
// for one coarse period over the fine timesteps of that period,
// following the Q10 temperature response.
//
// resp is the coarse-period respiration rate; its shape must equal
// the trailing shape of temperature, or it may be a Scalar.
// temperature is in degrees Celsius at the fine resolution, with the
// time axis leading. The result has the shape of temperature, and its
// mean over the leading axis equals resp.
func (c Config) DownscaleRespiration(resp, temperature *sparse.DenseArray) (*sparse.DenseArray, error) {
	if err := checkDriver(temperature); err != nil {
		return nil, err
	}
	q := c.TemperatureResponse(temperature)
	means, err := leadingAxisMean(q)
	if err != nil {
		// Only reachable when the Q10 response underflows to zero
		// across the whole period.
		return nil, fmt.Errorf("downscaling respiration: %w", err)
	}
	return scaleByDriver(resp, q, means)
}

// DownscaleNEE downscales a net flux for one coarse period. GPP is
// estimated as GPPFactor times productivity and distributed according
// to par; total respiration, the gap between estimated GPP and
// productivity plus the heterotrophic term, is distributed according
// to temperature. The result is respiration minus GPP: positive
// values mean carbon released to the atmosphere.
//
// productivity is the coarse net productivity rate (NEP, or NPP when
// rh is supplied separately; positive means uptake). rh is the
// coarse heterotrophic respiration rate and may be nil, in which case
// productivity is interpreted as NEP. temperature and par are
// fine-resolution drivers and must have identical shapes.
func (c Config) DownscaleNEE(productivity, rh, temperature, par *sparse.DenseArray) (*sparse.DenseArray, error) {
	if err := checkDriver(temperature); err != nil {
		return nil, err
	}
	if err := checkDriver(par); err != nil {
		return nil, err
	}
	if !shapesEqual(temperature.Shape, par.Shape) {
		return nil, fmt.Errorf("downscaling NEE: temperature shape %v vs PAR shape %v: %w",
			temperature.Shape, par.Shape, ErrShapeMismatch)
	}
	if productivity == nil || len(productivity.Elements) == 0 {
		return nil, fmt.Errorf("downscaling NEE: productivity is missing: %w", ErrShapeMismatch)
	}
	if rh != nil && !shapesEqual(rh.Shape, productivity.Shape) {
		return nil, fmt.Errorf("downscaling NEE: Rh shape %v vs productivity shape %v: %w",
			rh.Shape, productivity.Shape, ErrShapeMismatch)
	}

	estGPP := productivity.ScaleCopy(c.GPPFactor)
	respTotal := estGPP.Copy()
	for i := range respTotal.Elements {
		respTotal.Elements[i] -= productivity.Elements[i]
		if rh != nil {
			respTotal.Elements[i] += rh.Elements[i]
		}
	}

	gppDown, err := c.DownscaleGPP(estGPP, par)
	if err != nil {
		return nil, err
	}
	respDown, err := c.DownscaleRespiration(respTotal, temperature)
	if err != nil {
		return nil, err
	}
	for i := range respDown.Elements {
		respDown.Elements[i] -= gppDown.Elements[i]
	}
	return respDown, nil
}

// checkDriver verifies that a fine-resolution driver array has a
// nonempty leading time axis.
func checkDriver(driver *sparse.DenseArray) error {
	if driver == nil || len(driver.Shape) == 0 || driver.Shape[0] == 0 {
		return fmt.Errorf("driver array must have a nonempty leading time axis: %w", ErrShapeMismatch)
	}
	return nil
}

// leadingAxisMean averages over the leading (time) axis, returning
// one value per trailing-axis column. Columns that average to exactly
// zero make the downscaling normalization undefined, so they are an
// error rather than a NaN in the output.
func leadingAxisMean(a *sparse.DenseArray) ([]float64, error) {
	n := a.Shape[0]
	stride := len(a.Elements) / n
	means := make([]float64, stride)
	for i, v := range a.Elements {
		means[i%stride] += v
	}
	for j := range means {
		means[j] /= float64(n)
		if means[j] == 0 {
			return nil, fmt.Errorf("column %d: %w", j, ErrZeroDriver)
		}
	}
	return means, nil
}

// scaleByDriver computes total/mean × driver for each fine step and
// column, the shared normalization of both scaling curves.
func scaleByDriver(total, driver *sparse.DenseArray, means []float64) (*sparse.DenseArray, error) {
	if total == nil || len(total.Elements) == 0 {
		return nil, fmt.Errorf("coarse total is missing: %w", ErrShapeMismatch)
	}
	stride := len(means)
	scalar := len(total.Elements) == 1
	if !scalar && !shapesEqual(total.Shape, driver.Shape[1:]) {
		return nil, fmt.Errorf("coarse total shape %v vs driver trailing shape %v: %w",
			total.Shape, driver.Shape[1:], ErrShapeMismatch)
	}
	o := sparse.ZerosDense(driver.Shape...)
	for i, v := range driver.Elements {
		j := i % stride
		t := total.Elements[0]
		if !scalar {
			t = total.Elements[j]
		}
		o.Elements[i] = t / means[j] * v
	}
	return o, nil
}
