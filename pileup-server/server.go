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

package main

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/googlegenomics/pileup/analytics"
	"github.com/googlegenomics/pileup/api"
	"github.com/googlegenomics/pileup/config"
	"github.com/googlegenomics/pileup/internal/storage"
	log "github.com/sirupsen/logrus"
)

type options struct {
	secure bool
	track  func([]analytics.Hit)
	logger log.FieldLogger
}

// newRouter registers the tile server for cfg with router.
func newRouter(router *gin.Engine, cfg config.Config, opts options) {
	if opts.logger == nil {
		opts.logger = log.StandardLogger()
	}
	if opts.track != nil {
		router.Use(analytics.Middleware(opts.track))
	}

	newStorageClient := storage.NewPublicClient
	switch {
	case cfg.Server.Directory != "":
		newStorageClient = storage.NewFileFactory(cfg.Server.Directory)
	case opts.secure:
		newStorageClient = storage.NewClientFromBearerToken
	}

	// Credentials come with each request in secure mode, so opened tilesets
	// cannot be shared between requests.
	cache := !opts.secure || cfg.Server.Directory != ""
	open := func(ctx context.Context, client storage.Client, uid string) (api.Tileset, error) {
		source, err := cfg.Open(ctx, client, uid)
		if err != nil {
			return nil, err
		}
		return source, nil
	}
	registry := api.NewRegistry(newStorageClient, cfg.UIDs(), open, cache)

	server := api.NewServer(registry, api.WithMaxTiles(cfg.Server.MaxTiles), api.WithLogger(opts.logger))
	server.Export(router)
}

// restrictBuckets drops the tilesets stored outside of buckets.
func restrictBuckets(cfg config.Config, buckets []string) config.Config {
	allowed := make(map[string]bool, len(buckets))
	for _, bucket := range buckets {
		allowed[bucket] = true
	}
	kept := cfg.Tilesets[:0:0]
	for _, ts := range cfg.Tilesets {
		if allowed[ts.Bucket] {
			kept = append(kept, ts)
		} else {
			log.WithField("tileset", ts.UID).Warnf("Skipping tileset in bucket %q", ts.Bucket)
		}
	}
	cfg.Tilesets = kept
	return cfg
}
