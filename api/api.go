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

// Package api implements the pileup tile server.
//
// Two endpoints are provided:
//
//   GET /api/v1/tileset_info/?d=<uid>[&d=<uid>...]
//   GET /api/v1/tiles/?d=<uid>.<zoom>.<x>[&d=...]
//
// Both return a JSON object keyed by the requested ids.
package api

import (
	"errors"
	"fmt"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"github.com/googlegenomics/pileup/analytics"
	"github.com/googlegenomics/pileup/internal/storage"
	"github.com/googlegenomics/pileup/tiles"
	log "github.com/sirupsen/logrus"
)

const (
	// TilesetInfoPath is the path of the tileset info endpoint.
	TilesetInfoPath = "/api/v1/tileset_info/"
	// TilesPath is the path of the tiles endpoint.
	TilesPath = "/api/v1/tiles/"

	defaultMaxTiles = 256
)

var (
	errNoIDs          = errors.New("no ids specified")
	errUnknownTileset = errors.New("unknown tileset")
	errTooManyTiles   = errors.New("too many tiles requested")
	errNoValidTileIDs = errors.New("no valid tile ids")
)

// Server provides the tile server endpoints. Must be created with NewServer.
type Server struct {
	resolver Resolver
	maxTiles int
	logger   log.FieldLogger
}

// Option configures a Server.
type Option func(*Server)

// WithMaxTiles limits the number of tiles served by one request.
func WithMaxTiles(n int) Option {
	return func(s *Server) {
		s.maxTiles = n
	}
}

// WithLogger sets the logger for skipped ids.
func WithLogger(logger log.FieldLogger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer returns a Server that looks tilesets up with resolver.
func NewServer(resolver Resolver, opts ...Option) *Server {
	s := &Server{resolver: resolver, maxTiles: defaultMaxTiles, logger: log.StandardLogger()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Export registers the tile server endpoints with router.
func (server *Server) Export(router gin.IRoutes) {
	router.GET(TilesetInfoPath, forwardOrigin, server.serveTilesetInfo)
	router.GET(TilesPath, forwardOrigin, server.serveTiles)
}

func (server *Server) serveTilesetInfo(c *gin.Context) {
	track := analytics.TrackerFromContext(c.Request.Context())
	track(analytics.Event("TilesetInfo", "TilesetInfo Request Received", "", nil))

	uids := c.QueryArray("d")
	if len(uids) == 0 {
		writeError(c, newInvalidInputError("parsing query", errNoIDs))
		return
	}

	response := make(map[string]tiles.Info, len(uids))
	for _, uid := range uids {
		tileset, err := server.resolver.Tileset(c.Request, uid)
		if err != nil {
			writeError(c, newStorageError(fmt.Sprintf("opening tileset %q", uid), err))
			return
		}
		response[uid] = tileset.TilesetInfo()
	}
	writeJSON(c, http.StatusOK, response)
}

func (server *Server) serveTiles(c *gin.Context) {
	ctx := c.Request.Context()
	track := analytics.TrackerFromContext(ctx)
	track(analytics.Event("Tiles", "Tiles Request Received", "", nil))

	ids := c.QueryArray("d")
	if len(ids) == 0 {
		writeError(c, newInvalidInputError("parsing query", errNoIDs))
		return
	}
	if len(ids) > server.maxTiles {
		writeError(c, newInvalidInputError(fmt.Sprintf("requesting %d tiles", len(ids)), errTooManyTiles))
		return
	}

	byTileset := make(map[string][]string)
	for _, id := range ids {
		uid, zoom, pos, err := tiles.ParseRemoteID(id)
		if err != nil {
			server.logger.WithField("tile", id).Warnf("Skipping tile: %v", err)
			continue
		}
		byTileset[uid] = append(byTileset[uid], tiles.TileID(zoom, pos...))
	}
	if len(byTileset) == 0 {
		writeError(c, newInvalidInputError("parsing tile ids", errNoValidTileIDs))
		return
	}

	uids := make([]string, 0, len(byTileset))
	for uid := range byTileset {
		uids = append(uids, uid)
	}
	sort.Strings(uids)

	response := make(map[string]tiles.Payload)
	for _, uid := range uids {
		tileset, err := server.resolver.Tileset(c.Request, uid)
		if err != nil {
			track(analytics.Event("Tiles", "Tiles Internal Error", "", nil))
			missingToken := errors.Is(err, storage.ErrMissingOrInvalidToken)
			err = newStorageError(fmt.Sprintf("opening tileset %q", uid), err)
			if missingToken {
				writeError(c, err)
				return
			}
			server.logger.WithField("tileset", uid).Warnf("Failing %d tiles: %v", len(byTileset[uid]), err)
			for _, local := range byTileset[uid] {
				response[uid+"."+local] = tiles.ErrorPayload(err)
			}
			continue
		}
		for local, payload := range tileset.Tiles(ctx, byTileset[uid]) {
			response[uid+"."+local] = payload
		}
	}
	writeJSON(c, http.StatusOK, response)

	count := int64(len(response))
	track(analytics.Event("Tiles", "Tiles Response Tile Count", "", &count))
}

func forwardOrigin(c *gin.Context) {
	if origin := c.Request.Header.Get("Origin"); origin != "" {
		c.Header("Access-Control-Allow-Origin", origin)
	}
	c.Next()
}
