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
	"sort"

	"github.com/googlegenomics/pileup/genomics"
	log "github.com/sirupsen/logrus"
)

// Manager caches the tiles a track needs and fetches the missing ones.
//
// A Manager is not safe for concurrent use. Fetcher callbacks are routed
// through the dispatch function given with WithDispatch, which must run them
// on the goroutine that owns the Manager (see Loop).
type Manager struct {
	trackID  string
	track    Track
	fetcher  Fetcher
	logger   log.FieldLogger
	dispatch func(func())

	visible    []Descriptor
	visibleIDs map[string]bool
	fetching   map[string]bool
	fetched    map[string]*Tile
	rendering  map[string]bool

	valueDomain []float64
	haveDomain  bool
	loaded      bool

	nextID            int
	dataChanged       []listener
	tilesLoaded       []listener
	valueScaleChanged []listener
}

type listener struct {
	id int
	fn interface{}
}

// Subscription identifies a registered callback.
type Subscription struct {
	event string
	id    int
}

const (
	eventDataChanged       = "dataChanged"
	eventTilesLoaded       = "tilesLoaded"
	eventValueScaleChanged = "valueScaleChanged"
)

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used for tile warnings.
func WithLogger(logger log.FieldLogger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithDispatch sets the function used to run fetch completions. The default
// runs them directly on the calling goroutine.
func WithDispatch(dispatch func(func())) Option {
	return func(m *Manager) {
		m.dispatch = dispatch
	}
}

// WithTrackID sets the id reported by tilesLoaded notifications.
func WithTrackID(id string) Option {
	return func(m *Manager) {
		m.trackID = id
	}
}

// NewManager returns a Manager serving track with tiles from fetcher.
func NewManager(track Track, fetcher Fetcher, opts ...Option) *Manager {
	m := &Manager{
		track:      track,
		fetcher:    fetcher,
		logger:     log.StandardLogger(),
		dispatch:   func(fn func()) { fn() },
		visibleIDs: make(map[string]bool),
		fetching:   make(map[string]bool),
		fetched:    make(map[string]*Tile),
		rendering:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetVisibleTiles records the currently visible tiles.
func (m *Manager) SetVisibleTiles(descriptors []Descriptor) {
	m.visible = descriptors
	m.visibleIDs = make(map[string]bool, len(descriptors))
	for _, d := range descriptors {
		m.visibleIDs[d.TileID] = true
	}
	if !m.AreAllVisibleTilesLoaded() {
		m.loaded = false
	}
}

// RefreshTiles asks the track for its visible tiles, evicts obsolete ones and
// fetches the missing ones.
func (m *Manager) RefreshTiles() {
	m.SetVisibleTiles(m.track.CalculateVisibleTiles())

	var toFetch []string
	for _, d := range m.visible {
		if m.fetching[d.RemoteID] || m.fetched[d.TileID] != nil {
			continue
		}
		m.fetching[d.RemoteID] = true
		toFetch = append(toFetch, d.RemoteID)
	}

	if m.removeOldTiles() {
		m.synchronize()
		m.track.Draw()
	}
	m.fetchNewTiles(toFetch)
}

func (m *Manager) fetchNewTiles(ids []string) {
	if len(ids) == 0 {
		return
	}
	m.fetcher.FetchTilesDebounced(func(payloads map[string]Payload) {
		m.dispatch(func() { m.ReceivedTiles(payloads) })
	}, ids)
}

// ReceivedTiles merges fetched payloads keyed by remote id into the cache.
func (m *Manager) ReceivedTiles(payloads map[string]Payload) {
	for _, d := range m.visible {
		payload, ok := payloads[d.RemoteID]
		if !ok {
			continue
		}
		tile := m.fetched[d.TileID]
		if tile == nil {
			tile = &Tile{Descriptor: d}
			m.fetched[d.TileID] = tile
		}
		tile.Data = payload
		if payload.Error != "" {
			m.logger.WithField("tile", d.TileID).Warnf("Error in loaded tile: %s", payload.Error)
		}
	}

	for id := range payloads {
		delete(m.fetching, id)
	}

	m.synchronize()
	m.track.Draw()
	if drawer, ok := m.track.(LabelDrawer); ok {
		drawer.DrawLabel()
	}

	if scaler, ok := m.track.(ValueScaler); ok {
		domain := scaler.ValueScaleDomain()
		if domain != nil && (!m.haveDomain || !equalDomains(domain, m.valueDomain)) {
			m.valueDomain = append([]float64(nil), domain...)
			m.haveDomain = true
			m.notify(m.valueScaleChanged, nil)
		}
	}

	if animator, ok := m.track.(Animator); ok {
		animator.Animate()
	}

	if checker, ok := m.track.(LoadChecker); ok {
		switch {
		case !checker.AreAllVisibleTilesLoaded():
			m.loaded = false
		case !m.loaded:
			m.loaded = true
			m.notify(m.tilesLoaded, m.trackID)
		}
	}
}

// AreAllVisibleTilesLoaded reports whether every visible tile is cached.
func (m *Manager) AreAllVisibleTilesLoaded() bool {
	for id := range m.visibleIDs {
		if m.fetched[id] == nil {
			return false
		}
	}
	return true
}

// StartRendering marks tiles as being rendered. No tile is evicted while any
// tile is marked.
func (m *Manager) StartRendering(ids ...string) {
	for _, id := range ids {
		m.rendering[id] = true
	}
}

// FinishRendering clears the marks set by StartRendering.
func (m *Manager) FinishRendering(ids ...string) {
	for _, id := range ids {
		delete(m.rendering, id)
	}
}

// removeOldTiles evicts cached tiles that are no longer visible and reports
// whether any were removed.
func (m *Manager) removeOldTiles() bool {
	var obsolete []string
	for id := range m.fetched {
		if !m.visibleIDs[id] {
			obsolete = append(obsolete, id)
		}
	}
	return m.removeTiles(obsolete)
}

func (m *Manager) removeTiles(ids []string) bool {
	if len(ids) == 0 || !m.AreAllVisibleTilesLoaded() || len(m.rendering) > 0 {
		return false
	}
	sort.Strings(ids)
	for _, id := range ids {
		tile := m.fetched[id]
		if tile == nil {
			continue
		}
		m.track.DestroyTile(tile)
		tile.Graphics = nil
		delete(m.fetched, id)
	}
	return true
}

// synchronize makes sure every cached tile has graphics, evicts obsolete
// tiles and notifies dataChanged subscribers.
func (m *Manager) synchronize() {
	ids := m.fetchedIDs()
	for _, id := range ids {
		if !m.track.TileLoaded(id) {
			m.track.InitTile(m.fetched[id])
		}
	}
	m.removeOldTiles()
	for _, id := range m.fetchedIDs() {
		m.track.UpdateTile(m.fetched[id])
	}
	m.notify(m.dataChanged, m.VisibleAndFetchedSegments())
}

func (m *Manager) fetchedIDs() []string {
	ids := make([]string, 0, len(m.fetched))
	for id := range m.fetched {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// VisibleAndFetchedIDs returns the sorted ids of tiles that are both visible
// and cached.
func (m *Manager) VisibleAndFetchedIDs() []string {
	var ids []string
	for _, id := range m.fetchedIDs() {
		if m.visibleIDs[id] {
			ids = append(ids, id)
		}
	}
	return ids
}

// VisibleAndFetchedTiles returns the tiles named by VisibleAndFetchedIDs.
func (m *Manager) VisibleAndFetchedTiles() []*Tile {
	ids := m.VisibleAndFetchedIDs()
	tiles := make([]*Tile, len(ids))
	for i, id := range ids {
		tiles[i] = m.fetched[id]
	}
	return tiles
}

// VisibleAndFetchedSegments returns the deduplicated segments of the visible
// cached tiles.
func (m *Manager) VisibleAndFetchedSegments() []genomics.Segment {
	var lists [][]genomics.Segment
	for _, tile := range m.VisibleAndFetchedTiles() {
		lists = append(lists, tile.Data.Segments)
	}
	return genomics.Merge(lists...)
}

// Fetched returns the cached tile with the given local id.
func (m *Manager) Fetched(tileID string) (*Tile, bool) {
	tile, ok := m.fetched[tileID]
	return tile, ok
}

// IsFetching reports whether a request for the remote id is in flight.
func (m *Manager) IsFetching(remoteID string) bool {
	return m.fetching[remoteID]
}

// ParentInFetched reports whether any ancestor of d is cached.
func (m *Manager) ParentInFetched(d Descriptor) bool {
	d.Position = append([]int(nil), d.Position...)
	for d.Zoom > 0 {
		parent := ParentTileID(d)
		if m.fetched[parent] != nil {
			return true
		}
		d.Zoom--
		for i := range d.Position {
			d.Position[i] /= 2
		}
	}
	return false
}

// OnDataChanged registers fn to receive the visible segments whenever the
// cache is synchronized.
func (m *Manager) OnDataChanged(fn func(segments []genomics.Segment)) Subscription {
	return m.subscribe(&m.dataChanged, eventDataChanged, fn)
}

// OnTilesLoaded registers fn to be called when all visible tiles have loaded.
func (m *Manager) OnTilesLoaded(fn func(trackID string)) Subscription {
	return m.subscribe(&m.tilesLoaded, eventTilesLoaded, fn)
}

// OnValueScaleChanged registers fn to be called when the track's value scale
// domain changes.
func (m *Manager) OnValueScaleChanged(fn func()) Subscription {
	return m.subscribe(&m.valueScaleChanged, eventValueScaleChanged, fn)
}

// Off removes a subscription. Unknown subscriptions are ignored.
func (m *Manager) Off(s Subscription) {
	var list *[]listener
	switch s.event {
	case eventDataChanged:
		list = &m.dataChanged
	case eventTilesLoaded:
		list = &m.tilesLoaded
	case eventValueScaleChanged:
		list = &m.valueScaleChanged
	default:
		return
	}
	for i, l := range *list {
		if l.id == s.id {
			*list = append((*list)[:i:i], (*list)[i+1:]...)
			return
		}
	}
}

func (m *Manager) subscribe(list *[]listener, event string, fn interface{}) Subscription {
	m.nextID++
	*list = append(*list, listener{id: m.nextID, fn: fn})
	return Subscription{event: event, id: m.nextID}
}

func (m *Manager) notify(list []listener, arg interface{}) {
	for _, l := range list {
		switch fn := l.fn.(type) {
		case func([]genomics.Segment):
			fn(arg.([]genomics.Segment))
		case func(string):
			fn(arg.(string))
		case func():
			fn()
		}
	}
}

func equalDomains(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
