// Copyright 2019 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package render

import (
	"errors"
	"math"
)

var errDegenerateScale = errors.New("scale domain has zero width")

// LinearScale maps genome coordinates (the domain) onto pixels (the range).
type LinearScale struct {
	Domain [2]float64 `json:"domain"`
	Range  [2]float64 `json:"range"`
}

// NewLinearScale returns a scale mapping domain onto rng.  The domain must
// have non-zero width for the scale to be invertible.
func NewLinearScale(domain, rng [2]float64) (LinearScale, error) {
	if domain[0] == domain[1] {
		return LinearScale{}, errDegenerateScale
	}
	return LinearScale{Domain: domain, Range: rng}, nil
}

func (s LinearScale) slope() float64 {
	return (s.Range[1] - s.Range[0]) / (s.Domain[1] - s.Domain[0])
}

// Map converts a genome coordinate to a pixel coordinate.
func (s LinearScale) Map(x float64) float64 {
	return s.Range[0] + (x-s.Domain[0])*s.slope()
}

// Invert converts a pixel coordinate back to a genome coordinate.
func (s LinearScale) Invert(y float64) float64 {
	return s.Domain[0] + (y-s.Range[0])/s.slope()
}

// Width returns the number of base pairs covered by the domain.
func (s LinearScale) Width() float64 {
	return math.Abs(s.Domain[1] - s.Domain[0])
}

// RangeWidth returns the number of pixels covered by the range.
func (s LinearScale) RangeWidth() float64 {
	return math.Abs(s.Range[1] - s.Range[0])
}

// Transform returns k and offset such that x*k + offset maps a pixel drawn
// with scale drawnAt to the pixel the same genome coordinate has under s.
// It lets previously built buffers follow a pan or zoom without a rebuild.
func (s LinearScale) Transform(drawnAt LinearScale) (k, offset float64) {
	k = s.slope() / drawnAt.slope()
	offset = s.Map(drawnAt.Domain[0]) - drawnAt.Range[0]*k
	return k, offset
}

// BandScale partitions a pixel interval into equally sized bands separated
// by a fraction of padding.
type BandScale struct {
	start     float64
	step      float64
	bandwidth float64
}

// RowPaddingInner is the fraction of each band step left empty between rows.
const RowPaddingInner = 0.2

// NewBandScale splits rng into n bands with the given inner padding.
func NewBandScale(n int, rng [2]float64, paddingInner float64) BandScale {
	count := float64(n) - paddingInner
	if count < 1 {
		count = 1
	}
	step := (rng[1] - rng[0]) / count
	return BandScale{start: rng[0], step: step, bandwidth: step * (1 - paddingInner)}
}

// Band returns the top of band i.
func (b BandScale) Band(i int) float64 {
	return b.start + float64(i)*b.step
}

// Bandwidth returns the height of every band.
func (b BandScale) Bandwidth() float64 {
	return b.bandwidth
}
