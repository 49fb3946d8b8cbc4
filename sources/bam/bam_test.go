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

package bam

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/sam"
	"github.com/googlegenomics/pileup/chrominfo"
	"github.com/googlegenomics/pileup/genomics"
	"github.com/googlegenomics/pileup/internal/storage"
	"github.com/googlegenomics/pileup/tiles"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRead struct {
	ref   int
	pos   int
	cigar []sam.CigarOp
	md    string
}

func match(n int) []sam.CigarOp {
	return []sam.CigarOp{sam.NewCigarOp(sam.CigarMatch, n)}
}

var testReads = []testRead{
	{0, 100, match(100), "4T95"},
	{0, 500, []sam.CigarOp{sam.NewCigarOp(sam.CigarSoftClipped, 5), sam.NewCigarOp(sam.CigarMatch, 95)}, "95"},
	{0, 9900, match(100), ""},
	{1, 0, match(100), "100"},
	{1, 4000, match(100), "50A49"},
}

// writeTestBAM writes a two-chromosome BAM and its index to a temporary
// directory laid out as bucket/object.
func writeTestBAM(t *testing.T) string {
	t.Helper()
	chr1, err := sam.NewReference("chr1", "", "", 10000, nil, nil)
	require.NoError(t, err)
	chr2, err := sam.NewReference("chr2", "", "", 5000, nil, nil)
	require.NoError(t, err)
	header, err := sam.NewHeader(nil, []*sam.Reference{chr1, chr2})
	require.NoError(t, err)
	refs := []*sam.Reference{chr1, chr2}

	var data bytes.Buffer
	w, err := bam.NewWriter(&data, header, 1)
	require.NoError(t, err)
	for i, read := range testReads {
		var length int
		for _, op := range read.cigar {
			length += op.Len()
		}
		seq := []byte(strings.Repeat("A", length))
		qual := bytes.Repeat([]byte{30}, length)
		var aux []sam.Aux
		if read.md != "" {
			md, err := sam.NewAux(mdTag, read.md)
			require.NoError(t, err)
			aux = append(aux, md)
		}
		rec, err := sam.NewRecord(string(rune('a'+i)), refs[read.ref], nil, read.pos, -1, 0, 60, read.cigar, seq, qual, aux)
		require.NoError(t, err)
		require.NoError(t, w.Write(rec))
	}
	require.NoError(t, w.Close())

	r, err := bam.NewReader(bytes.NewReader(data.Bytes()), 1)
	require.NoError(t, err)
	var idx bam.Index
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		require.NoError(t, idx.Add(rec, r.LastChunk()))
	}
	require.NoError(t, r.Close())
	var index bytes.Buffer
	require.NoError(t, bam.WriteIndex(&index, &idx))

	root, err := ioutil.TempDir("", "bam")
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "bucket"), 0755))
	require.NoError(t, ioutil.WriteFile(filepath.Join(root, "bucket", "reads.bam"), data.Bytes(), 0644))
	require.NoError(t, ioutil.WriteFile(filepath.Join(root, "bucket", "reads.bam.bai"), index.Bytes(), 0644))
	return root
}

func openTestSource(t *testing.T, cfg Config, opts ...Option) (*Source, func()) {
	root := writeTestBAM(t)
	cfg.Bucket, cfg.Object = "bucket", "reads.bam"
	src, err := Open(context.Background(), storage.FileClient{Root: root}, cfg, opts...)
	if err != nil {
		os.RemoveAll(root)
		t.Fatalf("Open: %v", err)
	}
	return src, func() { os.RemoveAll(root) }
}

func froms(segments []genomics.Segment) []int64 {
	var got []int64
	for _, s := range segments {
		got = append(got, s.From)
	}
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	return got
}

func TestTilesetInfo(t *testing.T) {
	src, cleanup := openTestSource(t, Config{})
	defer cleanup()

	want := tiles.Info{TileSize: 1024, MaxZoom: 4, MaxWidth: 15000, MinPos: []float64{0}, MaxPos: []float64{15000}}
	assert.Equal(t, want, src.TilesetInfo())
}

func TestTilesetInfo_TileSize(t *testing.T) {
	src, cleanup := openTestSource(t, Config{TileSize: 256})
	defer cleanup()

	info := src.TilesetInfo()
	assert.Equal(t, 256, info.TileSize)
	assert.Equal(t, 6, info.MaxZoom)
}

func TestTile(t *testing.T) {
	src, cleanup := openTestSource(t, Config{})
	defer cleanup()

	testCases := []struct {
		name    string
		zoom, x int
		want    []int64
	}{
		{"whole genome", 0, 0, []int64{100, 500, 9900, 10000, 14000}},
		{"start of chr1", 4, 0, []int64{100, 500}},
		{"across chromosomes", 4, 10, []int64{9900, 10000}},
		{"empty", 4, 5, nil},
		{"end of chr2", 4, 15, []int64{14000}},
	}
	ctx := context.Background()
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			segments, err := src.Tile(ctx, tc.zoom, tc.x)
			require.NoError(t, err)
			assert.Equal(t, tc.want, froms(segments))
		})
	}
}

func TestTile_Records(t *testing.T) {
	src, cleanup := openTestSource(t, Config{})
	defer cleanup()

	segments, err := src.Tile(context.Background(), 4, 0)
	require.NoError(t, err)
	require.Len(t, segments, 2)
	sort.Slice(segments, func(i, j int) bool { return segments[i].From < segments[j].From })

	first := segments[0]
	assert.Equal(t, int64(200), first.To)
	assert.Equal(t, "100M", first.Cigar)
	assert.Equal(t, "4T95", first.MD)
	assert.Equal(t, genomics.Forward, first.Strand)

	second := segments[1]
	assert.Equal(t, "5S95M", second.Cigar)
	assert.Equal(t, int64(595), second.To)
}

func TestTile_StableIDs(t *testing.T) {
	src, cleanup := openTestSource(t, Config{})
	defer cleanup()

	ctx := context.Background()
	whole, err := src.Tile(ctx, 0, 0)
	require.NoError(t, err)
	part, err := src.Tile(ctx, 4, 10)
	require.NoError(t, err)

	ids := make(map[int64]string)
	for _, s := range whole {
		ids[s.From] = s.ID
	}
	for _, s := range part {
		assert.Equal(t, ids[s.From], s.ID, "read at %d", s.From)
	}
	assert.Len(t, genomics.Merge(whole, part), len(whole))
}

func TestTile_MaxTileWidth(t *testing.T) {
	src, cleanup := openTestSource(t, Config{MaxTileWidth: 1000})
	defer cleanup()

	ctx := context.Background()
	segments, err := src.Tile(ctx, 0, 0)
	require.NoError(t, err)
	assert.NotNil(t, segments)
	assert.Empty(t, segments)

	segments, err = src.Tile(ctx, 4, 0)
	require.NoError(t, err)
	assert.Len(t, segments, 2)
}

func TestTile_OutOfRange(t *testing.T) {
	src, cleanup := openTestSource(t, Config{})
	defer cleanup()

	ctx := context.Background()
	for _, tc := range [][2]int{{5, 0}, {2, 4}, {1, -1}} {
		if _, err := src.Tile(ctx, tc[0], tc[1]); err == nil {
			t.Errorf("Tile(%d, %d): expected error", tc[0], tc[1])
		}
	}
}

func TestTiles(t *testing.T) {
	logger, hook := test.NewNullLogger()
	src, cleanup := openTestSource(t, Config{}, WithLogger(logger))
	defer cleanup()

	got := src.Tiles(context.Background(), []string{"4.0", "4.NaN", "x.1", "4.1.2", "9.0"})

	var ids []string
	for id := range got {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	assert.Equal(t, []string{"4.0", "9.0"}, ids)
	assert.Len(t, got["4.0"].Segments, 2)
	assert.NotEmpty(t, got["9.0"].Error)
	assert.Len(t, hook.Entries, 4)
}

func TestChromSizesOverride(t *testing.T) {
	chroms, err := chrominfo.New([]string{"chr2", "chr1"}, []int64{5000, 10000})
	require.NoError(t, err)
	src, cleanup := openTestSource(t, Config{ChromSizes: chroms})
	defer cleanup()

	segments, err := src.Tile(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 4000, 5100, 5500, 14900}, froms(segments))
}

func TestOpen_MissingIndex(t *testing.T) {
	root := writeTestBAM(t)
	defer os.RemoveAll(root)

	_, err := Open(context.Background(), storage.FileClient{Root: root}, Config{Bucket: "bucket", Object: "reads.bam", Index: "missing.bai"})
	if !errors.Is(err, storage.ErrObjectNotExist) {
		t.Errorf("got %v, want %v", err, storage.ErrObjectNotExist)
	}
}
