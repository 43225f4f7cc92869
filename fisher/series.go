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

package fisher

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/ctessum/sparse"

	olsenranderson "github.com/psu-inversion/olsen-randerson"
)

// ErrNoFrequency indicates that an operation requiring a
// fine-resolution series was given one without a declared fixed step
// frequency.
var ErrNoFrequency = errors.New("fisher: series must declare a fixed step frequency")

// ErrIndexMismatch indicates that two series that must share a time
// index do not.
var ErrIndexMismatch = errors.New("fisher: series time indexes do not match")

// Series is a chronologically indexed array. The leading axis of Data
// corresponds to Times; trailing axes (model columns, grid cells)
// pass through the downscaling untouched.
type Series struct {
	// Times is the time index, strictly increasing.
	Times []time.Time

	// Freq is the fixed spacing of Times. It is zero for irregular
	// series, such as monthly fluxes indexed at month centers.
	// Operations that require a fine-resolution series reject
	// zero-frequency input.
	Freq time.Duration

	// Data holds the values; Data.Shape[0] must equal len(Times).
	Data *sparse.DenseArray
}

// NewSeries returns a validated, irregularly spaced series, as used
// for coarse (monthly) fluxes.
func NewSeries(times []time.Time, data *sparse.DenseArray) (Series, error) {
	s := Series{Times: times, Data: data}
	if err := s.check(); err != nil {
		return Series{}, err
	}
	return s, nil
}

// NewRegularSeries returns a validated series whose index starts at
// start and advances by freq for each step along the leading axis of
// data, as used for fine-resolution drivers.
func NewRegularSeries(start time.Time, freq time.Duration, data *sparse.DenseArray) (Series, error) {
	if freq <= 0 {
		return Series{}, ErrNoFrequency
	}
	if data == nil || len(data.Shape) == 0 {
		return Series{}, fmt.Errorf("fisher: series data must have a leading time axis: %w", olsenranderson.ErrShapeMismatch)
	}
	times := make([]time.Time, data.Shape[0])
	for i := range times {
		times[i] = start.Add(time.Duration(i) * freq)
	}
	s := Series{Times: times, Freq: freq, Data: data}
	if err := s.check(); err != nil {
		return Series{}, err
	}
	return s, nil
}

func (s Series) check() error {
	if s.Data == nil || len(s.Data.Shape) == 0 {
		return fmt.Errorf("fisher: series data must have a leading time axis: %w", olsenranderson.ErrShapeMismatch)
	}
	if s.Data.Shape[0] != len(s.Times) {
		return fmt.Errorf("fisher: %d time steps but leading axis length %d: %w",
			len(s.Times), s.Data.Shape[0], olsenranderson.ErrShapeMismatch)
	}
	if len(s.Times) == 0 {
		return fmt.Errorf("fisher: series is empty: %w", olsenranderson.ErrShapeMismatch)
	}
	for i := 1; i < len(s.Times); i++ {
		if !s.Times[i].After(s.Times[i-1]) {
			return fmt.Errorf("fisher: time index is not strictly increasing at step %d (%v)", i, s.Times[i])
		}
	}
	return nil
}

// Len returns the number of time steps.
func (s Series) Len() int { return len(s.Times) }

// Empty reports whether the series carries no data, which is how an
// optional input (the separate heterotrophic respiration term) is
// omitted.
func (s Series) Empty() bool { return s.Data == nil }

// cols returns the number of values per time step.
func (s Series) cols() int {
	return len(s.Data.Elements) / s.Data.Shape[0]
}

// trailingShape returns the shape with the time axis removed.
func (s Series) trailingShape() []int { return s.Data.Shape[1:] }

// rollingMean computes the trailing mean over the left-open window
// (t−window, t] ending at each step. Steps less than one full window
// after the series start average over whatever history exists, so the
// first ⌈window/Freq⌉−1 steps are incomplete.
func (s Series) rollingMean(window time.Duration) (Series, error) {
	if s.Freq <= 0 {
		return Series{}, ErrNoFrequency
	}
	n, m := s.Len(), s.cols()
	steps := int((window + s.Freq - 1) / s.Freq) // timestamps satisfying t > end−window
	if steps < 1 {
		steps = 1
	}
	prefix := make([]float64, (n+1)*m)
	for i := 0; i < n; i++ {
		for j := 0; j < m; j++ {
			prefix[(i+1)*m+j] = prefix[i*m+j] + s.Data.Elements[i*m+j]
		}
	}
	o := sparse.ZerosDense(s.Data.Shape...)
	for i := 0; i < n; i++ {
		k := steps
		if i+1 < k {
			k = i + 1
		}
		for j := 0; j < m; j++ {
			o.Elements[i*m+j] = (prefix[(i+1)*m+j] - prefix[(i+1-k)*m+j]) / float64(k)
		}
	}
	return Series{Times: s.Times, Freq: s.Freq, Data: o}, nil
}

// interpolateTo resamples the series onto times using time-weighted
// linear interpolation between its own (possibly irregular) steps.
// Outside the covered range the end values are held constant, so the
// result is always finite; those held spans are part of the
// documented edge effects at the start and end of the input range.
func (s Series) interpolateTo(times []time.Time, freq time.Duration) Series {
	m := s.cols()
	o := sparse.ZerosDense(append([]int{len(times)}, s.trailingShape()...)...)
	for i, t := range times {
		k := sort.Search(len(s.Times), func(k int) bool { return !s.Times[k].Before(t) })
		switch {
		case k == 0:
			copy(o.Elements[i*m:(i+1)*m], s.Data.Elements[:m])
		case k == len(s.Times):
			copy(o.Elements[i*m:(i+1)*m], s.Data.Elements[(k-1)*m:k*m])
		default:
			w := float64(t.Sub(s.Times[k-1])) / float64(s.Times[k].Sub(s.Times[k-1]))
			for j := 0; j < m; j++ {
				v0 := s.Data.Elements[(k-1)*m+j]
				v1 := s.Data.Elements[k*m+j]
				o.Elements[i*m+j] = (1-w)*v0 + w*v1
			}
		}
	}
	return Series{Times: times, Freq: freq, Data: o}
}

// forwardFillTo resamples the series onto times by carrying each
// value forward until the next step, the upsampling used for the
// conservation reference. Times before the first step take the first
// value.
func (s Series) forwardFillTo(times []time.Time, freq time.Duration) Series {
	m := s.cols()
	o := sparse.ZerosDense(append([]int{len(times)}, s.trailingShape()...)...)
	for i, t := range times {
		k := sort.Search(len(s.Times), func(k int) bool { return s.Times[k].After(t) })
		if k > 0 {
			k--
		}
		copy(o.Elements[i*m:(i+1)*m], s.Data.Elements[k*m:(k+1)*m])
	}
	return Series{Times: times, Freq: freq, Data: o}
}

// ResampleMonthlySum aggregates the series into calendar-month bins,
// summing the steps in each bin. Bins are labelled with the start of
// the month. The result is irregular (Freq 0), like a coarse input
// series.
func (s Series) ResampleMonthlySum() Series {
	return s.resampleMonthly(false)
}

// ResampleMonthlyMean is like ResampleMonthlySum but averages each
// bin, giving a coarse rate directly comparable to a monthly input.
func (s Series) ResampleMonthlyMean() Series {
	return s.resampleMonthly(true)
}

func (s Series) resampleMonthly(mean bool) Series {
	m := s.cols()
	var labels []time.Time
	var counts []int
	bin := -1
	binOf := make([]int, s.Len())
	for i, t := range s.Times {
		label := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
		if bin < 0 || !label.Equal(labels[bin]) {
			labels = append(labels, label)
			counts = append(counts, 0)
			bin++
		}
		binOf[i] = bin
		counts[bin]++
	}
	o := sparse.ZerosDense(append([]int{len(labels)}, s.trailingShape()...)...)
	for i := 0; i < s.Len(); i++ {
		for j := 0; j < m; j++ {
			o.Elements[binOf[i]*m+j] += s.Data.Elements[i*m+j]
		}
	}
	if mean {
		for b := range labels {
			for j := 0; j < m; j++ {
				o.Elements[b*m+j] /= float64(counts[b])
			}
		}
	}
	return Series{Times: labels, Data: o}
}

// sameIndex reports whether two series share a time index.
func sameIndex(a, b Series) bool {
	if a.Len() != b.Len() || a.Freq != b.Freq {
		return false
	}
	for i := range a.Times {
		if !a.Times[i].Equal(b.Times[i]) {
			return false
		}
	}
	return true
}

// zip combines two index-aligned series elementwise.
func zip(a, b Series, f func(x, y float64) float64) Series {
	o := sparse.ZerosDense(a.Data.Shape...)
	for i := range o.Elements {
		o.Elements[i] = f(a.Data.Elements[i], b.Data.Elements[i])
	}
	return Series{Times: a.Times, Freq: a.Freq, Data: o}
}

// scaled multiplies a series by a constant.
func scaled(a Series, v float64) Series {
	return Series{Times: a.Times, Freq: a.Freq, Data: a.Data.ScaleCopy(v)}
}
