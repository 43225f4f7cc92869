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

// Package fisher performs continuous-time temporal downscaling of
// biogenic carbon fluxes: the variant of the Olsen-Randerson method
// that replaces per-month normalization with rolling means, removing
// the discontinuities at month boundaries, as described in:
//
// Fisher, J. B., Sikka, M., Huntzinger, D. N., Schwalm, C., and Liu,
// J., 2016: Technical note: 3-hourly temporal downscaling of monthly
// global terrestrial biosphere model net ecosystem exchange,
// Biogeosciences, vol. 13, no. 14, 4271--4277,
// doi:10.5194/bg-13-4271-2016.
//
// The rolling windows here trail the step they end on; it is not
// known whether the published method intended centered windows. The
// parts of the downscaled flux within one window of the start of the
// input range, and within one coarse period of its ends, are
// incomplete. It is recommended to provide an extra coarse period on
// each end and discard those spans.
//
// The sign convention matches the parent package: inputs are net
// productivity (positive means uptake) and respiration (positive),
// output is net ecosystem exchange with positive values meaning
// carbon released to the atmosphere.
package fisher

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"

	olsenranderson "github.com/psu-inversion/olsen-randerson"
)

// DefaultWindow is the averaging window length from Fisher et
// al. (2016).
const DefaultWindow = 30 * 24 * time.Hour

// InputFrequency is the nominal frequency of the coarse input series.
const InputFrequency = "monthly"

// ErrUnsupportedAlignment indicates a window alignment this package
// does not implement.
var ErrUnsupportedAlignment = errors.New("fisher: only trailing window alignment is implemented")

// WindowAlignment selects where a rolling window sits relative to the
// step it describes.
type WindowAlignment int

const (
	// AlignTrailing places the window so it ends at the described
	// step, covering (t−window, t].
	AlignTrailing WindowAlignment = iota

	// AlignCentered centers the window on the described step. It is
	// reserved for a future variant and is currently rejected with
	// ErrUnsupportedAlignment.
	AlignCentered
)

// A Downscaler converts coarse (monthly or coarser) flux series into
// fine-resolution ones. The zero value uses the Fisher et al. (2016)
// constants and a 30-day trailing window.
type Downscaler struct {
	// Config holds the scaling constants. The zero value is replaced
	// by olsenranderson.Fisher2016.
	Config olsenranderson.Config

	// Window is the rolling-mean window length; zero means
	// DefaultWindow.
	Window time.Duration

	// Align is the rolling-window placement.
	Align WindowAlignment
}

func (d *Downscaler) config() olsenranderson.Config {
	if d.Config == (olsenranderson.Config{}) {
		return olsenranderson.Fisher2016
	}
	return d.Config
}

func (d *Downscaler) window() time.Duration {
	if d.Window == 0 {
		return DefaultWindow
	}
	return d.Window
}

// checkInputs validates one coarse/fine series pair.
func (d *Downscaler) checkInputs(coarse, fine Series) error {
	if d.Align != AlignTrailing {
		return ErrUnsupportedAlignment
	}
	if err := coarse.check(); err != nil {
		return err
	}
	if err := fine.check(); err != nil {
		return err
	}
	if fine.Freq <= 0 {
		return fmt.Errorf("fisher: fine-resolution driver: %w", ErrNoFrequency)
	}
	if !shapesEqual(coarse.trailingShape(), fine.trailingShape()) {
		return fmt.Errorf("fisher: coarse trailing shape %v vs driver trailing shape %v: %w",
			coarse.trailingShape(), fine.trailingShape(), olsenranderson.ErrShapeMismatch)
	}
	return nil
}

// GPPSeries downscales a coarse gross primary productivity series
// onto the time index of par. The coarse series is interpolated onto
// the fine index and redistributed in proportion to PAR, normalized
// by its trailing rolling mean. par must be nonnegative, with a
// declared frequency, and no window may average to zero.
func (d *Downscaler) GPPSeries(gpp, par Series) (Series, error) {
	if err := d.checkInputs(gpp, par); err != nil {
		return Series{}, err
	}
	if floats.Min(par.Data.Elements) < 0 {
		return Series{}, fmt.Errorf("fisher: %w", olsenranderson.ErrNegativeDriver)
	}
	out, err := d.scaleSeries(gpp, par)
	if err != nil {
		return Series{}, fmt.Errorf("fisher: downscaling GPP: %w", err)
	}
	return out, nil
}

// RespirationSeries downscales a coarse total-respiration series onto
// the time index of temperature [°C], redistributing it according to
// the Q10 temperature response normalized by its trailing rolling
// mean.
func (d *Downscaler) RespirationSeries(resp, temperature Series) (Series, error) {
	if err := d.checkInputs(resp, temperature); err != nil {
		return Series{}, err
	}
	q := Series{
		Times: temperature.Times,
		Freq:  temperature.Freq,
		Data:  d.config().TemperatureResponse(temperature.Data),
	}
	out, err := d.scaleSeries(resp, q)
	if err != nil {
		return Series{}, fmt.Errorf("fisher: downscaling respiration: %w", err)
	}
	return out, nil
}

// scaleSeries is the shared interpolate-and-normalize core of both
// scaling curves: interpolated coarse / rolling mean of driver ×
// driver.
func (d *Downscaler) scaleSeries(coarse, driver Series) (Series, error) {
	mean, err := driver.rollingMean(d.window())
	if err != nil {
		return Series{}, err
	}
	m := mean.cols()
	for i, v := range mean.Data.Elements {
		if v == 0 {
			return Series{}, fmt.Errorf("window ending %v, column %d: %w",
				mean.Times[i/m], i%m, olsenranderson.ErrZeroDriver)
		}
	}
	d.logEdge(driver)
	base := coarse.interpolateTo(driver.Times, driver.Freq)
	o := zip(base, mean, func(b, mn float64) float64 { return b / mn })
	return zip(o, driver, func(r, v float64) float64 { return r * v }), nil
}

// NEESeries downscales a net flux series onto the shared time index
// of temperature and par. GPP is estimated as GPPFactor times
// productivity and downscaled with GPPSeries; total respiration, the
// gap between estimated GPP and productivity plus the heterotrophic
// term, is downscaled with RespirationSeries. The combination,
// respiration minus GPP, is then re-anchored so that its coarse-period
// means reproduce the input series, which the rolling-window scaling
// alone does not guarantee.
//
// productivity is the coarse net productivity series (NEP, or NPP
// when rh is supplied; positive means uptake). rh is the coarse
// heterotrophic respiration series; pass Series{} to omit it.
// temperature and par must share one time index and shape.
func (d *Downscaler) NEESeries(productivity, rh, temperature, par Series) (Series, error) {
	if err := d.checkInputs(productivity, par); err != nil {
		return Series{}, err
	}
	if err := temperature.check(); err != nil {
		return Series{}, err
	}
	if !sameIndex(temperature, par) {
		return Series{}, fmt.Errorf("fisher: temperature vs PAR: %w", ErrIndexMismatch)
	}
	if !shapesEqual(temperature.Data.Shape, par.Data.Shape) {
		return Series{}, fmt.Errorf("fisher: temperature shape %v vs PAR shape %v: %w",
			temperature.Data.Shape, par.Data.Shape, olsenranderson.ErrShapeMismatch)
	}
	if !rh.Empty() {
		if err := rh.check(); err != nil {
			return Series{}, err
		}
		if !sameIndex(rh, productivity) || !shapesEqual(rh.Data.Shape, productivity.Data.Shape) {
			return Series{}, fmt.Errorf("fisher: Rh vs productivity: %w", ErrIndexMismatch)
		}
	}

	estGPP := scaled(productivity, d.config().GPPFactor)
	respTotal := zip(estGPP, productivity, func(g, p float64) float64 { return g - p })
	if !rh.Empty() {
		respTotal = zip(respTotal, rh, func(r, h float64) float64 { return r + h })
	}
	// The input net flux in the output sign convention (positive
	// toward the atmosphere), used as the conservation reference.
	nee := zip(respTotal, estGPP, func(r, g float64) float64 { return r - g })

	gppDown, err := d.GPPSeries(estGPP, par)
	if err != nil {
		return Series{}, err
	}
	respDown, err := d.RespirationSeries(respTotal, temperature)
	if err != nil {
		return Series{}, err
	}
	combined := zip(respDown, gppDown, func(r, g float64) float64 { return r - g })
	return d.conserveCoarse(combined, nee)
}

// conserveCoarse re-anchors the combined downscaled flux to the
// original coarse series: the difference between the trailing rolling
// mean of the forward-filled coarse series and that of the combined
// flux is added back. Trailing windows and interpolation shift mass
// between adjacent coarse periods; this correction restores the
// coarse-period means. It is a separate step so that an
// exactly conserving or centered-window strategy can replace it.
func (d *Downscaler) conserveCoarse(combined, coarse Series) (Series, error) {
	ref := coarse.forwardFillTo(combined.Times, combined.Freq)
	refMean, err := ref.rollingMean(d.window())
	if err != nil {
		return Series{}, err
	}
	rawMean, err := combined.rollingMean(d.window())
	if err != nil {
		return Series{}, err
	}
	bias := zip(refMean, rawMean, func(r, c float64) float64 { return r - c })
	return zip(combined, bias, func(c, b float64) float64 { return c + b }), nil
}

// logEdge records how many leading steps have incomplete trailing
// windows.
func (d *Downscaler) logEdge(fine Series) {
	steps := int((d.window()+fine.Freq-1)/fine.Freq) - 1
	if steps > fine.Len() {
		steps = fine.Len()
	}
	if steps <= 0 {
		return
	}
	logrus.WithFields(logrus.Fields{
		"steps":  steps,
		"window": d.window(),
		"start":  fine.Times[0],
	}).Debug("fisher: leading steps have incomplete trailing windows")
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
