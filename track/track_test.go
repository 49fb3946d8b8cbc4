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

package track

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/googlegenomics/pileup/genomics"
	"github.com/googlegenomics/pileup/layout"
	"github.com/googlegenomics/pileup/render"
	"github.com/googlegenomics/pileup/tiles"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testReads = []genomics.Segment{
	{ID: "a", From: 100, To: 200},
	{ID: "b", From: 150, To: 250},
	{ID: "c", From: 300, To: 400},
}

// asyncFetcher answers every request from its own goroutine.
type asyncFetcher struct {
	tile func(remoteID string) tiles.Payload
}

func (f asyncFetcher) FetchTilesDebounced(receive func(map[string]tiles.Payload), ids []string) {
	go func() {
		payloads := make(map[string]tiles.Payload)
		for _, id := range ids {
			payloads[id] = f.tile(id)
		}
		receive(payloads)
	}()
}

func readsFetcher(segments ...genomics.Segment) asyncFetcher {
	return asyncFetcher{tile: func(string) tiles.Payload {
		return tiles.Payload{Segments: segments}
	}}
}

func testInfo(maxZoom int) tiles.Info {
	return tiles.Info{
		TileSize: 1024,
		MaxZoom:  maxZoom,
		MaxWidth: 4000,
		MinPos:   []float64{0},
		MaxPos:   []float64{4000},
	}
}

func view(t *testing.T, from, to float64) render.LinearScale {
	scale, err := render.NewLinearScale([2]float64{from, to}, [2]float64{0, 384})
	require.NoError(t, err)
	return scale
}

type harness struct {
	track  *Track
	frames chan Frame
	cancel context.CancelFunc
	done   chan error
}

func start(t *testing.T, info tiles.Info, fetcher tiles.Fetcher, opts ...Option) *harness {
	h := &harness{frames: make(chan Frame, 100), done: make(chan error, 1)}
	logger, _ := test.NewNullLogger()
	opts = append(opts, WithLogger(logger), WithDisplay(func(f Frame) {
		select {
		case h.frames <- f:
		default:
		}
	}))
	track, err := New("reads", info, fetcher, opts...)
	require.NoError(t, err)
	h.track = track

	var ctx context.Context
	ctx, h.cancel = context.WithCancel(context.Background())
	go func() { h.done <- track.Run(ctx) }()
	return h
}

func (h *harness) stop(t *testing.T) {
	h.cancel()
	select {
	case err := <-h.done:
		assert.Equal(t, context.Canceled, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
}

func (h *harness) waitFor(t *testing.T, match func(Frame) bool) Frame {
	timeout := time.After(5 * time.Second)
	for {
		select {
		case f := <-h.frames:
			if match(f) {
				return f
			}
		case <-timeout:
			t.Fatal("timed out waiting for frame")
			return Frame{}
		}
	}
}

func complete(f Frame) bool { return f.Complete }

func TestNew_InvalidInfo(t *testing.T) {
	if _, err := New("reads", tiles.Info{}, readsFetcher()); err == nil {
		t.Error("New with empty tileset info succeeded")
	}
}

func TestTrack_LaysOutReads(t *testing.T) {
	h := start(t, testInfo(0), readsFetcher(testReads...), WithID("track-1"))
	defer h.stop(t)

	h.track.Zoomed(view(t, 0, 4000))
	frame := h.waitFor(t, complete)

	assert.Equal(t, "track-1", frame.TrackID)
	assert.Equal(t, 2, frame.Rows)
	assert.Equal(t, 3, frame.Rects())
	assert.Len(t, frame.Positions, 3*render.FloatsPerRect)
	assert.Equal(t, 1.0, frame.ScaleX)
	assert.Equal(t, 0.0, frame.OffsetX)

	var label string
	require.NoError(t, h.track.Do(context.Background(), func(t *Track) { label = t.label }))
	assert.Equal(t, "reads [zoom 0/0]", label)
}

func TestTrack_RescalesWithoutLayout(t *testing.T) {
	h := start(t, testInfo(0), readsFetcher(testReads...))
	defer h.stop(t)

	h.track.Zoomed(view(t, 0, 4000))
	drawn := h.waitFor(t, complete)

	h.track.Zoomed(view(t, 0, 2000))
	frame := h.waitFor(t, complete)
	assert.InDelta(t, 2, frame.ScaleX, 1e-9)
	assert.InDelta(t, 0, frame.OffsetX, 1e-9)
	assert.Equal(t, drawn.Positions, frame.Positions)

	h.track.Zoomed(view(t, 1000, 3000))
	frame = h.waitFor(t, complete)
	assert.InDelta(t, 2, frame.ScaleX, 1e-9)
	assert.InDelta(t, -192, frame.OffsetX, 1e-9)
	assert.Equal(t, 2, frame.Rows)
}

func TestTrack_KeepsRowsAcrossZoom(t *testing.T) {
	fetcher := asyncFetcher{tile: func(id string) tiles.Payload {
		if id == "reads.1.0" {
			return tiles.Payload{Segments: testReads[:2]}
		}
		return tiles.Payload{Segments: append([]genomics.Segment{{ID: "d", From: 120, To: 130}}, testReads...)}
	}}
	h := start(t, testInfo(1), fetcher)
	defer h.stop(t)

	h.track.Zoomed(view(t, 0, 2000))
	h.waitFor(t, func(f Frame) bool { return f.Complete && f.Rows == 2 })

	var before map[string]int
	require.NoError(t, h.track.Do(context.Background(), func(t *Track) { before = layout.Index(t.rows) }))

	h.track.Zoomed(view(t, 0, 4000))
	h.waitFor(t, func(f Frame) bool { return f.Complete && f.Rows == 3 })

	var (
		after   map[string]int
		visible []string
		cached  bool
	)
	require.NoError(t, h.track.Do(context.Background(), func(t *Track) {
		after = layout.Index(t.rows)
		visible = t.manager.VisibleAndFetchedIDs()
		_, cached = t.manager.Fetched("1.0")
	}))
	for id, row := range before {
		if got := after[id]; got != row {
			t.Errorf("read %s: got row %d, want %d", id, got, row)
		}
	}
	assert.Equal(t, []string{"0.0"}, visible)
	assert.False(t, cached, "tile 1.0 still cached")
}

func TestTrack_TileErrors(t *testing.T) {
	fetcher := asyncFetcher{tile: func(string) tiles.Payload {
		return tiles.ErrorPayload(errors.New("no such object"))
	}}
	h := start(t, testInfo(0), fetcher)
	defer h.stop(t)

	h.track.Zoomed(view(t, 0, 4000))
	frame := h.waitFor(t, complete)
	assert.Equal(t, 0, frame.Rows)
	assert.Empty(t, frame.Positions)

	var errs map[string]string
	require.NoError(t, h.track.Do(context.Background(), func(t *Track) { errs = t.Errors() }))
	assert.Equal(t, map[string]string{"0.0": "no such object"}, errs)
}

type recordingFetcher struct {
	ids []string
}

func (f *recordingFetcher) FetchTilesDebounced(_ func(map[string]tiles.Payload), ids []string) {
	f.ids = append(f.ids, ids...)
}

func TestTrack_VisibleTiles(t *testing.T) {
	info := tiles.Info{
		TileSize: 1024,
		MaxZoom:  20,
		MaxWidth: 1e6,
		MinPos:   []float64{0},
		MaxPos:   []float64{1e6},
	}
	testCases := []struct {
		name      string
		domain    [2]float64
		pixels    float64
		zoom      int
		positions []int
	}{
		{"whole genome at base resolution", [2]float64{0, 1e6}, 384, 0, []int{0}},
		{"whole genome on a wide view", [2]float64{0, 1e6}, 800, 2, []int{0, 1, 2, 3}},
		{"quarter genome", [2]float64{250000, 500000}, 1024, 4, []int{4, 5, 6, 7}},
		{"narrow view", [2]float64{100000, 110000}, 200, 7, []int{12, 13, 14}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fetcher := &recordingFetcher{}
			tr, err := New("reads", info, fetcher)
			require.NoError(t, err)
			scale, err := render.NewLinearScale(tc.domain, [2]float64{0, tc.pixels})
			require.NoError(t, err)

			tr.SetScale(scale)
			tr.DrawLabel()

			var (
				positions []int
				remote    []string
			)
			for _, d := range tr.CalculateVisibleTiles() {
				if got, want := d.Zoom, tc.zoom; got != want {
					t.Errorf("tile %s: got zoom %d, want %d", d.TileID, got, want)
				}
				positions = append(positions, d.Position[0])
				remote = append(remote, d.RemoteID)
			}
			if got, want := positions, tc.positions; !reflect.DeepEqual(got, want) {
				t.Errorf("got positions %v, want %v", got, want)
			}
			assert.Equal(t, remote, fetcher.ids)
			assert.Equal(t, fmt.Sprintf("reads [zoom %d/20]", tc.zoom), tr.label)
		})
	}
}

func TestTrack_NoViewNoTiles(t *testing.T) {
	track, err := New("reads", testInfo(0), readsFetcher())
	require.NoError(t, err)
	assert.Empty(t, track.CalculateVisibleTiles())
	assert.NotEmpty(t, track.ID())
}
