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
	"time"

	"github.com/ctessum/unit"
)

// The downscaling engines work on flux rates, with time in the
// denominator of the units. These helpers convert between
// accumulated-flux products (mass per area, e.g. a monthly total)
// and the rates the engines expect.
var (
	// FluxDimensions is the dimension set of a flux rate
	// [kg m⁻² s⁻¹].
	FluxDimensions = unit.Dimensions{
		unit.MassDim:   1,
		unit.LengthDim: -2,
		unit.TimeDim:   -1,
	}

	// AccumulatedFluxDimensions is the dimension set of a flux
	// accumulated over a period [kg m⁻²].
	AccumulatedFluxDimensions = unit.Dimensions{
		unit.MassDim:   1,
		unit.LengthDim: -2,
	}
)

// Flux returns a dimensioned flux rate [kg m⁻² s⁻¹].
func Flux(value float64) *unit.Unit {
	return unit.New(value, FluxDimensions)
}

// MeanRate converts a flux accumulated over period into the mean rate
// that the downscaling functions take as a coarse input.
func MeanRate(accumulated *unit.Unit, period time.Duration) (*unit.Unit, error) {
	if err := accumulated.Check(AccumulatedFluxDimensions); err != nil {
		return nil, fmt.Errorf("olsenranderson: accumulated flux: %v", err)
	}
	return unit.Div(accumulated, unit.New(period.Seconds(), unit.Second)), nil
}

// StepTotal accumulates a flux rate over one fine timestep, for
// callers that need amounts rather than rates from the downscaled
// output.
func StepTotal(rate *unit.Unit, step time.Duration) (*unit.Unit, error) {
	if err := rate.Check(FluxDimensions); err != nil {
		return nil, fmt.Errorf("olsenranderson: flux rate: %v", err)
	}
	return unit.Mul(rate, unit.New(step.Seconds(), unit.Second)), nil
}
