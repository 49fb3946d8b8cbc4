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

// Package remote fetches tiles from a pileup tile server.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/googlegenomics/pileup/api"
	"github.com/googlegenomics/pileup/tiles"
	log "github.com/sirupsen/logrus"
)

// maxIDsPerRequest bounds the query string of a single tiles request.
const maxIDsPerRequest = 20

// Client talks to one tile server. Tile ids are remote ids,
// "<uid>.<zoom>.<x>".
type Client struct {
	base       string
	httpClient *http.Client
	logger     log.FieldLogger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the client used for requests, typically one carrying
// OAuth2 credentials.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithLogger sets the logger.
func WithLogger(logger log.FieldLogger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New returns a Client for the server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing server URL: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported server URL scheme %q", u.Scheme)
	}
	c := &Client{
		base:       strings.TrimSuffix(u.String(), "/"),
		httpClient: http.DefaultClient,
		logger:     log.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// TilesetInfo fetches the info of tileset uid.
func (c *Client) TilesetInfo(ctx context.Context, uid string) (tiles.Info, error) {
	var body map[string]tiles.Info
	if err := c.get(ctx, api.TilesetInfoPath, []string{uid}, &body); err != nil {
		return tiles.Info{}, err
	}
	info, ok := body[uid]
	if !ok {
		return tiles.Info{}, fmt.Errorf("no tileset info for %q in response", uid)
	}
	return info, info.Validate()
}

// Tiles fetches the tiles named by ids. A failed request is reported as an
// error payload for each of its ids.
func (c *Client) Tiles(ctx context.Context, ids []string) map[string]tiles.Payload {
	payloads := make(map[string]tiles.Payload, len(ids))
	for start := 0; start < len(ids); start += maxIDsPerRequest {
		end := start + maxIDsPerRequest
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]

		var body map[string]tiles.Payload
		if err := c.get(ctx, api.TilesPath, batch, &body); err != nil {
			c.logger.WithField("tiles", len(batch)).Warnf("Fetching tiles: %v", err)
			for _, id := range batch {
				payloads[id] = tiles.ErrorPayload(err)
			}
			continue
		}
		for id, payload := range body {
			payloads[id] = payload
		}
	}
	return payloads
}

func (c *Client) get(ctx context.Context, path string, ids []string, v interface{}) error {
	query := make(url.Values)
	for _, id := range ids {
		query.Add("d", id)
	}
	req, err := http.NewRequest("GET", c.base+path+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("creating request: %v", err)
	}
	resp, err := c.httpClient.Do(req.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("sending request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("%s: %s", apiErr.Error, apiErr.Message)
		}
		return fmt.Errorf("unexpected response status: %v", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding response: %v", err)
	}
	return nil
}
