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

package tiles

import (
	"fmt"
	"math"
)

// viewResolution is the number of pixels a tile is expected to cover.
const viewResolution = 384

// Info describes how a 1D tileset maps coordinates to tiles.
type Info struct {
	TileSize int       `json:"tile_size"`
	MaxZoom  int       `json:"max_zoom"`
	MaxWidth float64   `json:"max_width"`
	MinPos   []float64 `json:"min_pos"`
	MaxPos   []float64 `json:"max_pos"`
}

// Validate reports whether the info can be used to compute visible tiles.
func (i Info) Validate() error {
	if i.MaxZoom < 0 {
		return fmt.Errorf("invalid max_zoom %d", i.MaxZoom)
	}
	if i.MaxWidth <= 0 {
		return fmt.Errorf("invalid max_width %v", i.MaxWidth)
	}
	if len(i.MinPos) == 0 || len(i.MaxPos) == 0 {
		return fmt.Errorf("missing min_pos or max_pos")
	}
	return nil
}

// TileWidth returns the width in data coordinates of a tile at zoom.
func (i Info) TileWidth(zoom int) float64 {
	return i.MaxWidth / math.Exp2(float64(zoom))
}

// TileRange returns the [start, end) data interval covered by tile x at zoom.
func (i Info) TileRange(zoom, x int) (float64, float64) {
	w := i.TileWidth(zoom)
	start := i.MinPos[0] + float64(x)*w
	return start, start + w
}

// ZoomLevel picks the zoom level for a view showing domain over rangeWidth
// pixels.
func (i Info) ZoomLevel(domain [2]float64, rangeWidth float64) int {
	dataWidth := i.MaxPos[0] - i.MinPos[0]
	zoomScale := math.Max(dataWidth/(domain[1]-domain[0]), 1)
	added := math.Max(0, math.Ceil(math.Log2(rangeWidth/viewResolution)))

	zoom := int(math.Round(math.Log2(zoomScale)) + added)
	if zoom > i.MaxZoom {
		zoom = i.MaxZoom
	}
	if zoom < 0 {
		zoom = 0
	}
	return zoom
}

// VisibleTiles returns the zoom level and the tile positions covering domain.
func (i Info) VisibleTiles(domain [2]float64, rangeWidth float64) (int, []int) {
	zoom := i.ZoomLevel(domain, rangeWidth)
	w := i.TileWidth(zoom)
	const epsilon = 1e-7

	lo := int(math.Max(0, math.Floor((domain[0]-i.MinPos[0])/w)))
	hi := int(math.Min(math.Exp2(float64(zoom)), math.Ceil((domain[1]-i.MinPos[0]-epsilon)/w)))

	var xs []int
	for x := lo; x < hi; x++ {
		xs = append(xs, x)
	}
	return zoom, xs
}

// VisibleDescriptors returns descriptors for the tiles of tileset uid
// covering domain.
func (i Info) VisibleDescriptors(uid string, domain [2]float64, rangeWidth float64) []Descriptor {
	zoom, xs := i.VisibleTiles(domain, rangeWidth)
	descriptors := make([]Descriptor, 0, len(xs))
	for _, x := range xs {
		descriptors = append(descriptors, NewDescriptor(uid, zoom, x))
	}
	return descriptors
}
