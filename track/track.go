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

// Package track implements a pileup track: it keeps the tiles covering the
// current view loaded, lays out their reads into rows on a background worker
// and produces drawable buffers that follow pans and zooms.
package track

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/googlegenomics/pileup/genomics"
	"github.com/googlegenomics/pileup/layout"
	"github.com/googlegenomics/pileup/render"
	"github.com/googlegenomics/pileup/tiles"
	log "github.com/sirupsen/logrus"
)

// DefaultHeight is the vertical extent of the rows in pixels.
const DefaultHeight = 600

// Frame is what the track displays after a draw.
type Frame struct {
	TrackID string
	Label   string
	Rows    int
	render.Buffers
	// ScaleX and OffsetX map x coordinates of Buffers to the current view.
	ScaleX, OffsetX float64
	// Complete is set when every visible tile is loaded and laid out.
	Complete bool
}

// tileGraphics is attached to every cached tile.
type tileGraphics struct {
	segments int
	err      string
}

// Track is a pileup track over one tileset. Apart from Run, Zoomed and Do,
// its methods must be called on the goroutine running Run; the tile manager
// invokes them there.
type Track struct {
	id      string
	uid     string
	info    tiles.Info
	padding int64
	height  float64
	logger  log.FieldLogger
	display func(Frame)

	loop    *tiles.Loop
	manager *tiles.Manager
	worker  *render.Worker

	scale    render.LinearScale
	haveView bool
	graphics map[string]*tileGraphics
	label    string

	rows      []layout.Row
	drawn     *render.Result
	pending   uint64
	rendering []string
}

// Option configures a Track.
type Option func(*Track)

// WithID overrides the random track id.
func WithID(id string) Option {
	return func(t *Track) {
		t.id = id
	}
}

// WithPadding sets the minimum gap in base pairs between reads in a row.
func WithPadding(padding int64) Option {
	return func(t *Track) {
		t.padding = padding
	}
}

// WithHeight sets the pixel height shared by all rows.
func WithHeight(height float64) Option {
	return func(t *Track) {
		t.height = height
	}
}

// WithLogger sets the logger of the track and its tile manager.
func WithLogger(logger log.FieldLogger) Option {
	return func(t *Track) {
		t.logger = logger
	}
}

// WithDisplay sets the function receiving every drawn frame. It runs on the
// goroutine running Run.
func WithDisplay(display func(Frame)) Option {
	return func(t *Track) {
		t.display = display
	}
}

// New returns a track showing tileset uid, described by info, with tiles
// from fetcher. Nothing happens until Run is called and a view is set.
func New(uid string, info tiles.Info, fetcher tiles.Fetcher, opts ...Option) (*Track, error) {
	if err := info.Validate(); err != nil {
		return nil, fmt.Errorf("tileset %s: %v", uid, err)
	}
	t := &Track{
		id:       uuid.New().String(),
		uid:      uid,
		info:     info,
		padding:  layout.DefaultPadding,
		height:   DefaultHeight,
		logger:   log.StandardLogger(),
		display:  func(Frame) {},
		loop:     tiles.NewLoop(),
		graphics: make(map[string]*tileGraphics),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.WithField("track", t.id)
	t.worker = render.NewWorker(render.WithLogger(t.logger))
	t.manager = tiles.NewManager(t, fetcher,
		tiles.WithLogger(t.logger),
		tiles.WithDispatch(t.loop.Post),
		tiles.WithTrackID(t.id))
	t.manager.OnDataChanged(t.relayout)
	return t, nil
}

// ID returns the track id.
func (t *Track) ID() string {
	return t.id
}

// Manager returns the tile manager of the track.
func (t *Track) Manager() *tiles.Manager {
	return t.manager
}

// Run drives the track until ctx is done.
func (t *Track) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		t.worker.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case result := <-t.worker.Results():
				t.loop.Post(func() { t.applyResult(result) })
			}
		}
	}()
	err := t.loop.Run(ctx)
	wg.Wait()
	return err
}

// Zoomed sets the view to scale, which maps genome coordinates to pixels.
// It never blocks.
func (t *Track) Zoomed(scale render.LinearScale) {
	t.loop.Post(func() { t.SetScale(scale) })
}

// Do runs fn on the track goroutine and waits for it.
func (t *Track) Do(ctx context.Context, fn func(*Track)) error {
	return t.loop.Do(ctx, func() { fn(t) })
}

// SetScale sets the view, refreshes the tiles and redraws the current
// buffers under the new scale.
func (t *Track) SetScale(scale render.LinearScale) {
	t.scale = scale
	t.haveView = true
	t.manager.RefreshTiles()
	t.Draw()
}

// CalculateVisibleTiles returns the tiles covering the current view.
func (t *Track) CalculateVisibleTiles() []tiles.Descriptor {
	if !t.haveView {
		return nil
	}
	return t.info.VisibleDescriptors(t.uid, t.scale.Domain, t.scale.RangeWidth())
}

// InitTile attaches graphics to a newly fetched tile.
func (t *Track) InitTile(tile *tiles.Tile) {
	g := &tileGraphics{}
	t.graphics[tile.TileID] = g
	tile.Graphics = g
}

// UpdateTile refreshes the graphics of a cached tile.
func (t *Track) UpdateTile(tile *tiles.Tile) {
	g, ok := t.graphics[tile.TileID]
	if !ok {
		return
	}
	g.segments = len(tile.Data.Segments)
	g.err = tile.Data.Error
}

// DestroyTile releases the graphics of an evicted tile.
func (t *Track) DestroyTile(tile *tiles.Tile) {
	delete(t.graphics, tile.TileID)
	tile.Graphics = nil
}

// TileLoaded reports whether the tile has graphics.
func (t *Track) TileLoaded(tileID string) bool {
	_, ok := t.graphics[tileID]
	return ok
}

// AreAllVisibleTilesLoaded reports whether every visible tile is cached.
func (t *Track) AreAllVisibleTilesLoaded() bool {
	return t.manager.AreAllVisibleTilesLoaded()
}

// DrawLabel updates the label naming the tileset and zoom level.
func (t *Track) DrawLabel() {
	zoom := 0
	if t.haveView {
		zoom = t.info.ZoomLevel(t.scale.Domain, t.scale.RangeWidth())
	}
	t.label = fmt.Sprintf("%s [zoom %d/%d]", t.uid, zoom, t.info.MaxZoom)
}

// Draw displays the latest buffers transformed to the current scale.
func (t *Track) Draw() {
	frame := Frame{
		TrackID:  t.id,
		Label:    t.label,
		ScaleX:   1,
		Complete: t.pending == 0 && t.manager.AreAllVisibleTilesLoaded(),
	}
	if t.drawn != nil {
		frame.Rows = len(t.drawn.Rows)
		frame.Buffers = t.drawn.Buffers
		if t.haveView {
			frame.ScaleX, frame.OffsetX = t.scale.Transform(t.drawn.Scale)
		}
	}
	t.display(frame)
}

// Errors returns the errors of the visible tiles keyed by tile id.
func (t *Track) Errors() map[string]string {
	errs := make(map[string]string)
	for _, tile := range t.manager.VisibleAndFetchedTiles() {
		if g, ok := tile.Graphics.(*tileGraphics); ok && g.err != "" {
			errs[tile.TileID] = g.err
		}
	}
	return errs
}

// relayout submits the segments of the visible tiles to the worker. The
// previous rows go with the task so reads keep their rows.
func (t *Track) relayout(segments []genomics.Segment) {
	ids := t.manager.VisibleAndFetchedIDs()
	t.manager.FinishRendering(t.rendering...)
	t.manager.StartRendering(ids...)
	t.rendering = ids

	t.pending = t.worker.Submit(render.Task{
		Segments:     segments,
		PreviousRows: t.rows,
		Padding:      t.padding,
		Scale:        t.scale,
		RowRange:     [2]float64{0, t.height},
	})
}

func (t *Track) applyResult(result render.Result) {
	if result.Seq != t.pending {
		return
	}
	t.pending = 0
	t.rows = result.Rows
	t.drawn = &result
	t.manager.FinishRendering(t.rendering...)
	t.rendering = nil

	t.logger.WithFields(log.Fields{
		"rows":  len(result.Rows),
		"rects": result.Rects(),
	}).Debug("Laid out reads")
	t.Draw()
}
