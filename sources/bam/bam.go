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

// Package bam serves pileup tiles from a BAM file and its BAI index.
package bam

import (
	"context"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/bgzf"
	"github.com/biogo/hts/bgzf/index"
	"github.com/biogo/hts/sam"
	"github.com/googlegenomics/pileup/chrominfo"
	"github.com/googlegenomics/pileup/genomics"
	"github.com/googlegenomics/pileup/internal/storage"
	"github.com/googlegenomics/pileup/tiles"
	log "github.com/sirupsen/logrus"
)

const (
	// DefaultTileSize is the nominal number of bins per tile.
	DefaultTileSize = 1024
	// DefaultMaxTileWidth is the widest tile, in base pairs, for which reads
	// are returned. Wider tiles are empty.
	DefaultMaxTileWidth = 200000
)

var mdTag = sam.NewTag("MD")

// Config names a BAM object and the tables describing its genome.
type Config struct {
	Bucket string
	Object string
	// Index defaults to Object + ".bai".
	Index string
	// ChromSizes overrides the chromosome table derived from the BAM header.
	ChromSizes *chrominfo.Info
	// MaxTileWidth defaults to DefaultMaxTileWidth.
	MaxTileWidth int64
	// TileSize defaults to DefaultTileSize.
	TileSize int
}

// Source reads tiles from one BAM object. It is safe for concurrent use.
type Source struct {
	handle       storage.ObjectHandle
	header       *sam.Header
	index        *bam.Index
	refs         map[string]*sam.Reference
	chroms       *chrominfo.Info
	maxTileWidth int64
	tileSize     int
	logger       log.FieldLogger
}

// Option configures a Source.
type Option func(*Source)

// WithLogger sets the logger used for skipped tiles and records.
func WithLogger(logger log.FieldLogger) Option {
	return func(s *Source) {
		s.logger = logger
	}
}

// Open reads the header and index of the BAM object described by cfg.
func Open(ctx context.Context, client storage.Client, cfg Config, opts ...Option) (*Source, error) {
	s := &Source{
		handle:       client.NewObjectHandle(cfg.Bucket, cfg.Object),
		chroms:       cfg.ChromSizes,
		maxTileWidth: cfg.MaxTileWidth,
		tileSize:     cfg.TileSize,
		logger:       log.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.maxTileWidth <= 0 {
		s.maxTileWidth = DefaultMaxTileWidth
	}
	if s.tileSize <= 0 {
		s.tileSize = DefaultTileSize
	}

	indexObject := cfg.Index
	if indexObject == "" {
		indexObject = cfg.Object + ".bai"
	}
	idx, err := readIndex(ctx, client.NewObjectHandle(cfg.Bucket, indexObject))
	if err != nil {
		return nil, fmt.Errorf("reading index: %w", err)
	}
	s.index = idx

	reader, closer, err := s.newReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	s.header = reader.Header()
	closer()

	s.refs = make(map[string]*sam.Reference)
	for _, ref := range s.header.Refs() {
		s.refs[ref.Name()] = ref
	}
	if s.chroms == nil {
		if s.chroms, err = chrominfo.FromHeader(s.header); err != nil {
			return nil, fmt.Errorf("building chromosome table: %v", err)
		}
	}
	return s, nil
}

func readIndex(ctx context.Context, handle storage.ObjectHandle) (*bam.Index, error) {
	r, err := handle.NewRangeReader(ctx, 0, -1)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return bam.ReadIndex(r)
}

func (s *Source) newReader(ctx context.Context) (*bam.Reader, func(), error) {
	rs := storage.NewReadSeeker(ctx, s.handle)
	reader, err := bam.NewReader(rs, 1)
	if err != nil {
		rs.Close()
		return nil, nil, err
	}
	return reader, func() {
		reader.Close()
		rs.Close()
	}, nil
}

// ChromInfo returns the chromosome table used to place reads.
func (s *Source) ChromInfo() *chrominfo.Info {
	return s.chroms
}

// TilesetInfo describes the tiling of the whole genome.
func (s *Source) TilesetInfo() tiles.Info {
	total := float64(s.chroms.TotalLength())
	size := float64(s.tileSize)
	maxZoom := 0
	if total > size {
		maxZoom = int(math.Ceil(math.Log2(total / size)))
	}
	return tiles.Info{
		TileSize: s.tileSize,
		MaxZoom:  maxZoom,
		MaxWidth: total,
		MinPos:   []float64{0},
		MaxPos:   []float64{total},
	}
}

// Tiles serves local "<zoom>.<x>" tile ids. Malformed ids are logged and left
// out of the result; failed tiles carry an error payload.
func (s *Source) Tiles(ctx context.Context, ids []string) map[string]tiles.Payload {
	payloads := make(map[string]tiles.Payload, len(ids))
	reader, closer, err := s.newReader(ctx)
	if err != nil {
		for _, id := range ids {
			payloads[id] = tiles.ErrorPayload(fmt.Errorf("opening BAM: %v", err))
		}
		return payloads
	}
	defer closer()

	for _, id := range ids {
		zoom, pos, err := tiles.ParseTileID(id)
		if err == nil && len(pos) != 1 {
			err = fmt.Errorf("tile id %q: want one position, got %d", id, len(pos))
		}
		if err != nil {
			s.logger.WithField("tile", id).Warnf("Invalid tile zoom or position: %v", err)
			continue
		}
		segments, err := s.tile(reader, zoom, pos[0])
		if err != nil {
			s.logger.WithField("tile", id).Warnf("Reading tile: %v", err)
			payloads[id] = tiles.ErrorPayload(err)
			continue
		}
		payloads[id] = tiles.Payload{Segments: segments}
	}
	return payloads
}

// Tile returns the reads overlapping tile x at zoom.
func (s *Source) Tile(ctx context.Context, zoom, x int) ([]genomics.Segment, error) {
	reader, closer, err := s.newReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening BAM: %v", err)
	}
	defer closer()
	return s.tile(reader, zoom, x)
}

func (s *Source) tile(reader *bam.Reader, zoom, x int) ([]genomics.Segment, error) {
	info := s.TilesetInfo()
	if zoom > info.MaxZoom || x < 0 || float64(x) >= math.Exp2(float64(zoom)) {
		return nil, fmt.Errorf("tile %d.%d is outside the tileset", zoom, x)
	}
	segments := []genomics.Segment{}
	if info.TileWidth(zoom) > float64(s.maxTileWidth) {
		return segments, nil
	}

	from, to := info.TileRange(zoom, x)
	for _, region := range s.chroms.Split(int64(math.Floor(from)), int64(math.Ceil(to))) {
		found, err := s.records(reader, region)
		if err != nil {
			return nil, fmt.Errorf("reading %v: %v", region, err)
		}
		segments = append(segments, found...)
	}
	return segments, nil
}

func (s *Source) records(reader *bam.Reader, region genomics.Region) ([]genomics.Segment, error) {
	ref, ok := s.refs[region.Name]
	if !ok {
		s.logger.WithField("chromosome", region.Name).Debug("Chromosome not in BAM header")
		return nil, nil
	}
	chrom, ok := s.chroms.Chromosome(region.Name)
	if !ok {
		return nil, nil
	}

	chunks, err := s.index.Chunks(ref, int(region.Start), int(region.End))
	if err == index.ErrNoReference {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("querying index: %v", err)
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	it, err := bam.NewIterator(reader, chunks)
	if err != nil {
		return nil, fmt.Errorf("creating iterator: %v", err)
	}
	defer it.Close()

	var segments []genomics.Segment
	for it.Next() {
		rec := it.Record()
		if rec.Flags&sam.Unmapped != 0 || rec.Ref.ID() != ref.ID() {
			continue
		}
		if int64(rec.Pos) >= region.End || int64(rec.End()) <= region.Start {
			continue
		}
		segments = append(segments, toSegment(rec, chrom.Start, reader.LastChunk().Begin))
	}
	if err := it.Error(); err != nil && err != io.EOF {
		return nil, err
	}
	return segments, nil
}

func toSegment(rec *sam.Record, chromStart int64, offset bgzf.Offset) genomics.Segment {
	segment := genomics.Segment{
		ID:     offsetID(offset),
		From:   chromStart + int64(rec.Pos),
		To:     chromStart + int64(rec.End()),
		Cigar:  rec.Cigar.String(),
		Strand: genomics.Strand(rec.Strand()),
	}
	if aux, ok := rec.Tag(mdTag[:]); ok {
		if md, ok := aux.Value().(string); ok {
			segment.MD = md
		}
	}
	return segment
}

// offsetID formats the virtual offset of a record. It identifies the record
// across tiles and refetches.
func offsetID(offset bgzf.Offset) string {
	return strconv.FormatInt(offset.File<<16|int64(offset.Block), 10)
}
