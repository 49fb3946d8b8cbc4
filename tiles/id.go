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

// Package tiles coordinates which tiles of a dataset are visible, which are
// being fetched and which are cached, and keeps a track's graphics in sync with
// that cache.
package tiles

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var errEmptyID = errors.New("empty tile id")

// Descriptor identifies one visible tile.
type Descriptor struct {
	// TileID is the local id, "<zoom>.<pos>...".
	TileID string
	// RemoteID is the id passed to a Fetcher. It may embed a tileset uid.
	RemoteID string
	Zoom     int
	Position []int
	Mirrored bool
}

// NewDescriptor returns the descriptor for the tile at zoom and pos of the
// tileset uid. An empty uid makes the remote id equal to the local one.
func NewDescriptor(uid string, zoom int, pos ...int) Descriptor {
	local := TileID(zoom, pos...)
	remote := local
	if uid != "" {
		remote = uid + "." + local
	}
	return Descriptor{TileID: local, RemoteID: remote, Zoom: zoom, Position: pos}
}

// TileID formats a local tile id.
func TileID(zoom int, pos ...int) string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(zoom))
	for _, p := range pos {
		b.WriteByte('.')
		b.WriteString(strconv.Itoa(p))
	}
	return b.String()
}

// ParseTileID parses a local "<zoom>.<pos>..." id.
func ParseTileID(id string) (zoom int, pos []int, err error) {
	if id == "" {
		return 0, nil, errEmptyID
	}
	parts := strings.Split(id, ".")
	nums := make([]int, len(parts))
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return 0, nil, fmt.Errorf("parsing tile id %q: component %q is not an integer", id, part)
		}
		if n < 0 {
			return 0, nil, fmt.Errorf("parsing tile id %q: negative component %d", id, n)
		}
		nums[i] = n
	}
	return nums[0], nums[1:], nil
}

// ParseRemoteID splits a remote "<uid>.<zoom>.<pos>..." id.
func ParseRemoteID(id string) (uid string, zoom int, pos []int, err error) {
	i := strings.IndexByte(id, '.')
	if i <= 0 {
		return "", 0, nil, fmt.Errorf("parsing remote tile id %q: missing tileset uid", id)
	}
	zoom, pos, err = ParseTileID(id[i+1:])
	if err != nil {
		return "", 0, nil, err
	}
	return id[:i], zoom, pos, nil
}

// ParentTileID returns the local id of the tile one zoom level above d.
func ParentTileID(d Descriptor) string {
	pos := make([]int, len(d.Position))
	for i, p := range d.Position {
		pos[i] = p / 2
	}
	return TileID(d.Zoom-1, pos...)
}
