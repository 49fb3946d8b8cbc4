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

package api

import (
	"context"
	"net/http"
	"sync"

	"github.com/googlegenomics/pileup/internal/storage"
	"github.com/googlegenomics/pileup/tiles"
)

// Tileset is a source of tiles served by the API.
type Tileset interface {
	TilesetInfo() tiles.Info
	// Tiles serves local "<zoom>.<x>" ids.
	Tiles(ctx context.Context, ids []string) map[string]tiles.Payload
}

// Resolver finds the tileset to use for a request.
type Resolver interface {
	Tileset(req *http.Request, uid string) (Tileset, error)
}

// Tilesets is a fixed set of tilesets keyed by uid.
type Tilesets map[string]Tileset

// Tileset returns the tileset uid.
func (t Tilesets) Tileset(_ *http.Request, uid string) (Tileset, error) {
	tileset, ok := t[uid]
	if !ok {
		return nil, errUnknownTileset
	}
	return tileset, nil
}

// OpenFunc opens the tileset uid with client.
type OpenFunc func(ctx context.Context, client storage.Client, uid string) (Tileset, error)

// Registry opens configured tilesets on first use.
type Registry struct {
	newStorageClient storage.Factory
	open             OpenFunc
	known            map[string]bool
	cache            bool

	mu     sync.Mutex
	opened map[string]Tileset
}

// NewRegistry returns a Registry for uids. Storage clients are created per
// request with newStorageClient. When cache is false every request opens its
// tilesets again, which is required when the client depends on request
// credentials.
func NewRegistry(newStorageClient storage.Factory, uids []string, open OpenFunc, cache bool) *Registry {
	known := make(map[string]bool, len(uids))
	for _, uid := range uids {
		known[uid] = true
	}
	return &Registry{
		newStorageClient: newStorageClient,
		open:             open,
		known:            known,
		cache:            cache,
		opened:           make(map[string]Tileset),
	}
}

// Tileset returns the tileset uid, opening it if needed.
func (r *Registry) Tileset(req *http.Request, uid string) (Tileset, error) {
	if !r.known[uid] {
		return nil, errUnknownTileset
	}
	if !r.cache {
		return r.openTileset(req, uid)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if tileset, ok := r.opened[uid]; ok {
		return tileset, nil
	}
	tileset, err := r.openTileset(req, uid)
	if err != nil {
		return nil, err
	}
	r.opened[uid] = tileset
	return tileset, nil
}

func (r *Registry) openTileset(req *http.Request, uid string) (Tileset, error) {
	client, err := r.newStorageClient(req)
	if err != nil {
		return nil, err
	}
	return r.open(req.Context(), client, uid)
}
