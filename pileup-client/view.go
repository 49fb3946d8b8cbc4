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
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/googlegenomics/pileup/chrominfo"
	"github.com/googlegenomics/pileup/render"
	"github.com/googlegenomics/pileup/tiles"
	"github.com/googlegenomics/pileup/track"
)

var errNoChromSizes = errors.New("chromosome sizes are needed to resolve chromosome names")

// parseRegion parses "chrom:from-to" or "from-to" into an absolute domain.
// Chromosome offsets are 1-based and inclusive.
func parseRegion(region string, chroms *chrominfo.Info) ([2]float64, error) {
	name, span := "", region
	if i := strings.LastIndex(region, ":"); i >= 0 {
		name, span = region[:i], region[i+1:]
	}
	parts := strings.Split(strings.Replace(span, ",", "", -1), "-")
	if len(parts) != 2 {
		return [2]float64{}, fmt.Errorf("expected from-to, got %q", span)
	}
	from, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return [2]float64{}, fmt.Errorf("parsing start: %v", err)
	}
	to, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return [2]float64{}, fmt.Errorf("parsing end: %v", err)
	}
	if from >= to {
		return [2]float64{}, fmt.Errorf("empty region %d-%d", from, to)
	}
	if name == "" {
		return [2]float64{float64(from), float64(to)}, nil
	}

	if chroms == nil {
		return [2]float64{}, errNoChromSizes
	}
	start, err := chroms.ChromosomeToAbsolute(name, from-1)
	if err != nil {
		return [2]float64{}, err
	}
	end, err := chroms.ChromosomeToAbsolute(name, to)
	if err != nil {
		return [2]float64{}, err
	}
	return [2]float64{float64(start), float64(end)}, nil
}

// load shows scale on a new track and returns the first complete frame.
func load(ctx context.Context, uid string, info tiles.Info, fetcher tiles.Fetcher, scale render.LinearScale, opts ...track.Option) (track.Frame, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	frames := make(chan track.Frame, 1)
	opts = append(opts, track.WithDisplay(func(f track.Frame) {
		if !f.Complete {
			return
		}
		select {
		case frames <- f:
		default:
		}
	}))
	t, err := track.New(uid, info, fetcher, opts...)
	if err != nil {
		return track.Frame{}, err
	}

	done := make(chan error, 1)
	go func() { done <- t.Run(ctx) }()
	t.Zoomed(scale)

	select {
	case frame := <-frames:
		return frame, nil
	case err := <-done:
		return track.Frame{}, err
	}
}
