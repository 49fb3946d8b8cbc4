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

// Package sources contains the tile data sources and the request batching
// they share.
package sources

import (
	"context"
	"sync"
	"time"

	"github.com/googlegenomics/pileup/tiles"
	log "github.com/sirupsen/logrus"
)

// DefaultInterval is the quiet period after which batched requests are sent.
const DefaultInterval = 100 * time.Millisecond

// BatchFunc fetches the tiles named by ids. Ids that cannot be served are
// left out of the result or carry an error payload.
type BatchFunc func(ctx context.Context, ids []string) map[string]tiles.Payload

// Batcher is a tiles.Fetcher that collects the requests arriving within an
// interval of each other and serves them with a single BatchFunc call.
type Batcher struct {
	ctx      context.Context
	interval time.Duration
	fetch    BatchFunc
	logger   log.FieldLogger

	mu      sync.Mutex
	pending []request
	timer   *time.Timer
}

type request struct {
	receive func(map[string]tiles.Payload)
	ids     []string
}

// BatcherOption configures a Batcher.
type BatcherOption func(*Batcher)

// WithInterval sets the quiet period. Zero sends every request immediately.
func WithInterval(d time.Duration) BatcherOption {
	return func(b *Batcher) {
		b.interval = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger log.FieldLogger) BatcherOption {
	return func(b *Batcher) {
		b.logger = logger
	}
}

// NewBatcher returns a Batcher calling fetch with ctx.
func NewBatcher(ctx context.Context, fetch BatchFunc, opts ...BatcherOption) *Batcher {
	b := &Batcher{
		ctx:      ctx,
		interval: DefaultInterval,
		fetch:    fetch,
		logger:   log.StandardLogger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// FetchTilesDebounced queues ids. receive is called once, from another
// goroutine, with the payloads for its own ids.
func (b *Batcher) FetchTilesDebounced(receive func(map[string]tiles.Payload), ids []string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.pending = append(b.pending, request{receive: receive, ids: ids})
	if b.timer == nil {
		b.timer = time.AfterFunc(b.interval, b.flush)
	} else {
		b.timer.Reset(b.interval)
	}
}

func (b *Batcher) flush() {
	b.mu.Lock()
	requests := b.pending
	b.pending = nil
	b.timer = nil
	b.mu.Unlock()

	if len(requests) == 0 {
		return
	}

	var ids []string
	seen := make(map[string]bool)
	for _, req := range requests {
		for _, id := range req.ids {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}

	b.logger.WithField("requests", len(requests)).Debugf("Fetching %d tiles", len(ids))
	var payloads map[string]tiles.Payload
	if err := b.ctx.Err(); err != nil {
		payloads = make(map[string]tiles.Payload, len(ids))
		for _, id := range ids {
			payloads[id] = tiles.ErrorPayload(err)
		}
	} else {
		payloads = b.fetch(b.ctx, ids)
	}

	for _, req := range requests {
		own := make(map[string]tiles.Payload, len(req.ids))
		for _, id := range req.ids {
			if payload, ok := payloads[id]; ok {
				own[id] = payload
			}
		}
		req.receive(own)
	}
}
