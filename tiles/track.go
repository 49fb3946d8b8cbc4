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

import "github.com/googlegenomics/pileup/genomics"

// Payload is the response for one tile. A non-empty Error marks a failed
// fetch; the tile is still considered fetched.
type Payload struct {
	Segments []genomics.Segment `json:"segments"`
	Error    string             `json:"error,omitempty"`
}

// ErrorPayload returns a payload carrying err.
func ErrorPayload(err error) Payload {
	return Payload{Error: err.Error()}
}

// Fetcher retrieves tiles. FetchTilesDebounced must not block and must
// eventually call receive exactly once with payloads keyed by the requested
// remote ids. Ids missing from the map are not available yet.
type Fetcher interface {
	FetchTilesDebounced(receive func(map[string]Payload), ids []string)
}

// Tile is a cache entry.
type Tile struct {
	Descriptor
	Data Payload
	// Graphics is owned by the track.
	Graphics interface{}
}

// Track is the drawing side of a Manager.
type Track interface {
	CalculateVisibleTiles() []Descriptor
	InitTile(*Tile)
	UpdateTile(*Tile)
	DestroyTile(*Tile)
	TileLoaded(tileID string) bool
	Draw()
}

// Animator is implemented by tracks that animate after new data arrives.
type Animator interface {
	Animate()
}

// LoadChecker is implemented by tracks that can report whether every visible
// tile is loaded.
type LoadChecker interface {
	AreAllVisibleTilesLoaded() bool
}

// LabelDrawer is implemented by tracks with a label showing the zoom level.
type LabelDrawer interface {
	DrawLabel()
}

// ValueScaler is implemented by tracks whose value scale depends on the
// loaded data.
type ValueScaler interface {
	ValueScaleDomain() []float64
}
