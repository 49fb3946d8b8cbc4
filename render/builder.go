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

// Package render turns a row layout into flat vertex and color buffers that
// any drawing backend can upload directly.
//
// Every rectangle is two triangles: six vertices of two float32 coordinates
// each in Positions, and six color codes (see Palette) in Colors.
package render

import (
	"math"

	"github.com/googlegenomics/pileup/alignment"
	"github.com/googlegenomics/pileup/layout"
	log "github.com/sirupsen/logrus"
)

const (
	// VerticesPerRect is the number of vertices emitted per rectangle.
	VerticesPerRect = 6
	// FloatsPerRect is the number of position values emitted per rectangle.
	FloatsPerRect = VerticesPerRect * 2

	defaultPositionsCapacity = 1 << 20
	defaultColorsCapacity    = 1 << 16
)

// Buffers is the output of a build.  It contains only plain numeric data and
// can be handed to another goroutine or process.
type Buffers struct {
	Positions []float32 `json:"positions"`
	Colors    []float32 `json:"colors"`
}

// Rects returns the number of rectangles described by b.
func (b Buffers) Rects() int {
	return len(b.Positions) / FloatsPerRect
}

// Builder builds Buffers.  It keeps its scratch buffers between builds so
// that steady-state rendering does not allocate them again; a Builder must
// not be used by more than one goroutine at a time.
type Builder struct {
	positions []float32
	colors    []float32
	npos      int
	ncolor    int

	logger log.FieldLogger
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithCapacity sets the initial size of the scratch buffers.
func WithCapacity(positions, colors int) BuilderOption {
	return func(b *Builder) {
		b.positions = make([]float32, positions)
		b.colors = make([]float32, colors)
	}
}

// WithLogger sets the logger used to report undecodable segments.
func WithLogger(logger log.FieldLogger) BuilderOption {
	return func(b *Builder) {
		b.logger = logger
	}
}

// NewBuilder returns a Builder with preallocated scratch buffers.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{logger: log.StandardLogger()}
	for _, opt := range opts {
		opt(b)
	}
	if b.positions == nil {
		b.positions = make([]float32, defaultPositionsCapacity)
	}
	if b.colors == nil {
		b.colors = make([]float32, defaultColorsCapacity)
	}
	return b
}

// Build emits one rectangle per segment and one per decoded substitution.
// Row i occupies band i of rowRange; x coordinates come from scale.  The
// returned buffers are copies trimmed to their used length.
func (b *Builder) Build(rows []layout.Row, scale LinearScale, rowRange [2]float64) Buffers {
	b.npos, b.ncolor = 0, 0

	bands := NewBandScale(len(rows), rowRange, RowPaddingInner)
	baseWidth := scale.Map(1) - scale.Map(0)

	for i, row := range rows {
		top := bands.Band(i)
		bottom := top + bands.Bandwidth()

		for _, segment := range row {
			b.rect(scale.Map(float64(segment.From)), scale.Map(float64(segment.To)), top, bottom, ColorSegment)

			subs, err := alignment.Decode(segment)
			if err != nil {
				b.logger.WithField("segment", segment.ID).Warnf("Skipping substitutions: %v", err)
				continue
			}
			for _, sub := range subs {
				left := scale.Map(float64(segment.From + sub.Pos - 1))
				width := math.Max(1, float64(sub.Length)*baseWidth)
				b.rect(left, left+width, top, bottom, BaseColor(sub.Base))
			}
		}
	}

	out := Buffers{
		Positions: make([]float32, b.npos),
		Colors:    make([]float32, b.ncolor),
	}
	copy(out.Positions, b.positions[:b.npos])
	copy(out.Colors, b.colors[:b.ncolor])
	return out
}

func (b *Builder) rect(left, right, top, bottom float64, color int) {
	b.position(left, top)
	b.position(right, top)
	b.position(left, bottom)

	b.position(left, bottom)
	b.position(right, top)
	b.position(right, bottom)

	b.color(float32(color), VerticesPerRect)
}

func (b *Builder) position(x, y float64) {
	if b.npos+2 > len(b.positions) {
		b.positions = grow(b.positions, b.npos+2)
	}
	b.positions[b.npos] = float32(x)
	b.positions[b.npos+1] = float32(y)
	b.npos += 2
}

func (b *Builder) color(code float32, n int) {
	if b.ncolor+n > len(b.colors) {
		b.colors = grow(b.colors, b.ncolor+n)
	}
	for i := 0; i < n; i++ {
		b.colors[b.ncolor+i] = code
	}
	b.ncolor += n
}

// grow doubles the length of buf until it can hold need values.
func grow(buf []float32, need int) []float32 {
	n := len(buf)
	if n == 0 {
		n = 1
	}
	for n < need {
		n *= 2
	}
	grown := make([]float32, n)
	copy(grown, buf)
	return grown
}
