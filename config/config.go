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

// Package config reads the TOML file describing the tilesets served by
// pileup-server.
//
// Example:
//
//   [server]
//   max_tiles = 256
//
//   [[tileset]]
//   uid = "na12878"
//   bucket = "genomics-public-data"
//   bam = "NA12878.chr20.bam"
//   chromsizes = "hg19.chrom.sizes"
package config

import (
	"context"
	"errors"
	"fmt"
	"io/ioutil"
	"strings"

	"github.com/googlegenomics/pileup/chrominfo"
	"github.com/googlegenomics/pileup/internal/storage"
	"github.com/googlegenomics/pileup/sources/bam"
	"github.com/pelletier/go-toml/v2"
)

// ErrUnknownTileset is returned by Open for uids not in the configuration.
var ErrUnknownTileset = errors.New("unknown tileset")

// Config is the contents of a tileset configuration file.
type Config struct {
	Server   Server    `toml:"server"`
	Tilesets []Tileset `toml:"tileset"`
}

// Server holds settings of the tile server itself.
type Server struct {
	// Directory, if set, serves buckets from subdirectories of a local
	// directory instead of Google Cloud Storage.
	Directory string `toml:"directory"`
	// MaxTiles is the largest number of tiles served per request.
	MaxTiles int `toml:"max_tiles"`
}

// Tileset describes one BAM file.
type Tileset struct {
	UID    string `toml:"uid"`
	Bucket string `toml:"bucket"`
	BAM    string `toml:"bam"`
	// Index defaults to BAM + ".bai".
	Index string `toml:"index"`
	// ChromSizes names a tab separated chromosome sizes object in Bucket. The
	// BAM header is used when it is empty.
	ChromSizes   string `toml:"chromsizes"`
	TileSize     int    `toml:"tile_size"`
	MaxTileWidth int64  `toml:"max_tile_width"`
}

// Default returns the configuration used for settings a file leaves out.
func Default() Config {
	return Config{Server: Server{MaxTiles: 256}}
}

// Load reads and validates the file at path.
func Load(path string) (Config, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading %s: %v", path, err)
	}
	config, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("parsing %s: %v", path, err)
	}
	return config, nil
}

// Parse decodes and validates a TOML configuration.
func Parse(data []byte) (Config, error) {
	config := Default()
	if err := toml.Unmarshal(data, &config); err != nil {
		return Config{}, err
	}
	for i := range config.Tilesets {
		ts := &config.Tilesets[i]
		if ts.TileSize == 0 {
			ts.TileSize = bam.DefaultTileSize
		}
		if ts.MaxTileWidth == 0 {
			ts.MaxTileWidth = bam.DefaultMaxTileWidth
		}
	}
	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

// Validate checks that every tileset has a unique uid and a BAM object.
func (c Config) Validate() error {
	if c.Server.MaxTiles <= 0 {
		return fmt.Errorf("server: invalid max_tiles %d", c.Server.MaxTiles)
	}
	seen := make(map[string]bool)
	for i, ts := range c.Tilesets {
		switch {
		case ts.UID == "":
			return fmt.Errorf("tileset %d: missing uid", i)
		case strings.ContainsAny(ts.UID, "./"):
			return fmt.Errorf("tileset %q: uid must not contain '.' or '/'", ts.UID)
		case seen[ts.UID]:
			return fmt.Errorf("tileset %q: duplicate uid", ts.UID)
		case ts.BAM == "":
			return fmt.Errorf("tileset %q: missing bam", ts.UID)
		case ts.TileSize < 0:
			return fmt.Errorf("tileset %q: invalid tile_size %d", ts.UID, ts.TileSize)
		case ts.MaxTileWidth < 0:
			return fmt.Errorf("tileset %q: invalid max_tile_width %d", ts.UID, ts.MaxTileWidth)
		}
		seen[ts.UID] = true
	}
	return nil
}

// UIDs returns the configured tileset uids in file order.
func (c Config) UIDs() []string {
	uids := make([]string, len(c.Tilesets))
	for i, ts := range c.Tilesets {
		uids[i] = ts.UID
	}
	return uids
}

// Buckets returns the distinct buckets referenced by the tilesets.
func (c Config) Buckets() []string {
	var buckets []string
	seen := make(map[string]bool)
	for _, ts := range c.Tilesets {
		if !seen[ts.Bucket] {
			seen[ts.Bucket] = true
			buckets = append(buckets, ts.Bucket)
		}
	}
	return buckets
}

// Open opens the BAM source of tileset uid using client.
func (c Config) Open(ctx context.Context, client storage.Client, uid string) (*bam.Source, error) {
	for _, ts := range c.Tilesets {
		if ts.UID == uid {
			return ts.Open(ctx, client)
		}
	}
	return nil, ErrUnknownTileset
}

// Open opens the BAM source described by ts using client.
func (ts Tileset) Open(ctx context.Context, client storage.Client) (*bam.Source, error) {
	cfg := bam.Config{
		Bucket:       ts.Bucket,
		Object:       ts.BAM,
		Index:        ts.Index,
		MaxTileWidth: ts.MaxTileWidth,
		TileSize:     ts.TileSize,
	}
	if ts.ChromSizes != "" {
		chroms, err := readChromSizes(ctx, client.NewObjectHandle(ts.Bucket, ts.ChromSizes))
		if err != nil {
			return nil, fmt.Errorf("reading chromosome sizes: %w", err)
		}
		cfg.ChromSizes = chroms
	}
	return bam.Open(ctx, client, cfg)
}

func readChromSizes(ctx context.Context, handle storage.ObjectHandle) (*chrominfo.Info, error) {
	r, err := handle.NewRangeReader(ctx, 0, -1)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return chrominfo.Parse(r)
}
