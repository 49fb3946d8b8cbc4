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

package layout

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/googlegenomics/pileup/genomics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seg(id string, from, to int64) genomics.Segment {
	return genomics.Segment{ID: id, From: from, To: to}
}

func ids(row Row) []string {
	var out []string
	for _, s := range row {
		out = append(out, s.ID)
	}
	return out
}

func randomSegments(r *rand.Rand, prefix string, n int, span int64) []genomics.Segment {
	var segments []genomics.Segment
	for i := 0; i < n; i++ {
		from := r.Int63n(span)
		segments = append(segments, seg(fmt.Sprintf("%s%d", prefix, i), from, from+1+r.Int63n(150)))
	}
	return segments
}

func TestLayout_Scenario(t *testing.T) {
	segments := []genomics.Segment{seg("1", 10, 20), seg("2", 18, 30), seg("3", 40, 50)}

	rows := Layout(segments, nil, 5)
	require.Len(t, rows, 2)
	require.NoError(t, Validate(rows, 5))

	index := Index(rows)
	assert.NotEqual(t, index["1"], index["2"], "overlapping segments share a row")
	assert.Equal(t, 3, Count(rows))
}

func TestLayout_Empty(t *testing.T) {
	rows := Layout(nil, []Row{{seg("1", 0, 10)}}, DefaultPadding)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestLayout_Padding(t *testing.T) {
	testCases := []struct {
		name    string
		padding int64
		rows    int
	}{
		{"touching without padding", 0, 1},
		{"exact gap", 5, 1},
		{"gap too small", 6, 2},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rows := Layout([]genomics.Segment{seg("a", 0, 10), seg("b", 15, 20)}, nil, tc.padding)
			if got, want := len(rows), tc.rows; got != want {
				t.Errorf("Wrong number of rows: got %d, want %d", got, want)
			}
		})
	}
}

func TestLayout_DoesNotModifyInputs(t *testing.T) {
	segments := []genomics.Segment{seg("b", 50, 60), seg("a", 0, 10)}
	previous := []Row{{seg("a", 0, 10), seg("gone", 20, 30)}}

	Layout(segments, previous, DefaultPadding)

	assert.Equal(t, []string{"b", "a"}, []string{segments[0].ID, segments[1].ID})
	assert.Equal(t, []string{"a", "gone"}, ids(previous[0]))
}

func TestLayout_DropsMissingSegments(t *testing.T) {
	previous := Layout([]genomics.Segment{seg("1", 0, 100), seg("2", 10, 110), seg("3", 20, 120)}, nil, DefaultPadding)
	require.Len(t, previous, 3)

	rows := Layout([]genomics.Segment{seg("3", 20, 120)}, previous, DefaultPadding)
	require.Len(t, rows, 3, "row of a retained segment must not change")
	assert.Equal(t, 2, Index(rows)["3"])
	assert.Equal(t, 1, Count(rows))
}

func TestLayout_FillsGapsInPreviousRows(t *testing.T) {
	previous := []Row{{seg("a", 0, 10), seg("c", 100, 110)}}
	rows := Layout([]genomics.Segment{seg("a", 0, 10), seg("b", 40, 50), seg("c", 100, 110)}, previous, DefaultPadding)

	require.Len(t, rows, 1)
	assert.Equal(t, []string{"a", "b", "c"}, ids(rows[0]))
}

func TestLayout_RetainedSegmentsTakeLatestBounds(t *testing.T) {
	previous := []Row{{seg("a", 0, 10), seg("b", 20, 30), seg("c", 40, 50)}}

	a := seg("a", 0, 12)
	a.MD = "12"
	b := seg("b", 12, 30)
	rows := Layout([]genomics.Segment{a, b, seg("c", 40, 50)}, previous, DefaultPadding)
	require.NoError(t, Validate(rows, DefaultPadding))
	require.Len(t, rows, 2)

	assert.Equal(t, []string{"a", "c"}, ids(rows[0]))
	assert.Equal(t, a, rows[0][0], "kept segment must carry its latest fields")
	assert.Equal(t, []genomics.Segment{b}, []genomics.Segment(rows[1]), "segment that no longer fits must be placed again")
}

func TestLayout_DuplicateIDs(t *testing.T) {
	rows := Layout([]genomics.Segment{seg("a", 0, 10), seg("a", 0, 10), seg("b", 5, 15)}, nil, DefaultPadding)
	require.NoError(t, Validate(rows, DefaultPadding))
	assert.Equal(t, 2, Count(rows))
}

func TestLayout_StableOrderForEqualStarts(t *testing.T) {
	rows := Layout([]genomics.Segment{seg("x", 0, 10), seg("y", 0, 10), seg("z", 0, 10)}, nil, DefaultPadding)
	require.Len(t, rows, 3)
	for i, id := range []string{"x", "y", "z"} {
		assert.Equal(t, id, rows[i][0].ID)
	}
}

func TestLayout_Properties(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for trial := 0; trial < 50; trial++ {
		segments := randomSegments(r, "s", 200, 5000)
		padding := r.Int63n(10)

		rows := Layout(segments, nil, padding)
		if err := Validate(rows, padding); err != nil {
			t.Fatalf("Trial %d: %v", trial, err)
		}
		if got, want := Count(rows), len(segments); got != want {
			t.Fatalf("Trial %d: got %d placed segments, want %d", trial, got, want)
		}
	}
}

func TestLayout_IncrementalStability(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	for trial := 0; trial < 20; trial++ {
		initial := randomSegments(r, "old", 100, 3000)
		previous := Layout(initial, nil, DefaultPadding)
		before := Index(previous)

		all := append(append([]genomics.Segment{}, initial...), randomSegments(r, "new", 100, 6000)...)
		rows := Layout(all, previous, DefaultPadding)
		require.NoError(t, Validate(rows, DefaultPadding))
		require.Equal(t, len(all), Count(rows))

		after := Index(rows)
		for id, row := range before {
			if after[id] != row {
				t.Fatalf("Trial %d: segment %s moved from row %d to %d", trial, id, row, after[id])
			}
		}
	}
}

func TestValidate(t *testing.T) {
	assert.Error(t, Validate([]Row{{seg("a", 0, 10), seg("b", 12, 20)}}, 5))
	assert.Error(t, Validate([]Row{{seg("a", 0, 10)}, {seg("a", 0, 10)}}, 5))
	assert.NoError(t, Validate([]Row{{seg("a", 0, 10), seg("b", 15, 20)}}, 5))
}

func BenchmarkLayout(b *testing.B) {
	r := rand.New(rand.NewSource(3))
	segments := randomSegments(r, "s", 5000, 200000)
	previous := Layout(segments[:4000], nil, DefaultPadding)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Layout(segments, previous, DefaultPadding)
	}
}
