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

// This binary renders a pileup of a region headlessly from a tile server and
// writes the resulting frame as JSON.
package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"flag"
	"io"
	"io/ioutil"
	"net/http"
	"os"
	"time"

	"github.com/googlegenomics/pileup/chrominfo"
	"github.com/googlegenomics/pileup/render"
	"github.com/googlegenomics/pileup/sources"
	"github.com/googlegenomics/pileup/sources/remote"
	"github.com/googlegenomics/pileup/track"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	scope = "https://www.googleapis.com/auth/devstorage.read_only"
)

var (
	server     = flag.String("server", "http://localhost", "tile server URL")
	tileset    = flag.String("d", "", "tileset uid")
	region     = flag.String("r", "", "region as chrom:from-to (requires -chromsizes) or from-to in absolute coordinates")
	chromSizes = flag.String("chromsizes", "", "chromosome sizes file used to resolve -r")
	width      = flag.Float64("width", 1024, "view width in pixels")
	height     = flag.Float64("height", track.DefaultHeight, "view height in pixels")
	output     = flag.String("o", "", "output filename")
	timeout    = flag.Duration("timeout", time.Minute, "time allowed for loading the view")
	anonymous  = flag.Bool("anonymous", false, "send requests without Google credentials")
)

func main() {
	flag.Parse()
	if *tileset == "" {
		log.Fatalf("You must specify a tileset with -d.")
	}

	w := io.Writer(os.Stdout)
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			log.Fatalf("Failed to open output file: %v", err)
		}
		defer f.Close()

		w = f
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	// For compatibility with other tools, read the standard cURL certificate
	// authority override from the environment.
	if bundle := os.Getenv("CURL_CA_BUNDLE"); bundle != "" {
		pem, err := ioutil.ReadFile(bundle)
		if err != nil {
			log.Fatalf("Failed to read CA override file %q: %v", bundle, err)
		}
		pool, err := x509.SystemCertPool()
		if err != nil {
			log.Fatalf("Failed to initialize system certificate pool: %v", err)
		}
		if !pool.AppendCertsFromPEM(pem) {
			log.Fatalf("Failed to add certificates from bundle %q", bundle)
		}
		ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					RootCAs: pool,
				}},
		})
		log.Infof("Using CA override bundle from %q", bundle)
	}

	client := http.DefaultClient
	if c, ok := ctx.Value(oauth2.HTTPClient).(*http.Client); ok {
		client = c
	}
	if !*anonymous {
		var err error
		if client, err = google.DefaultClient(ctx, scope); err != nil {
			log.Fatalf("Failed to create client: %v", err)
		}
	}

	source, err := remote.New(*server, remote.WithHTTPClient(client))
	if err != nil {
		log.Fatalf("Failed to create tile client: %v", err)
	}
	info, err := source.TilesetInfo(ctx, *tileset)
	if err != nil {
		log.Fatalf("Failed to read tileset info: %v", err)
	}

	var chroms *chrominfo.Info
	if *chromSizes != "" {
		f, err := os.Open(*chromSizes)
		if err != nil {
			log.Fatalf("Failed to open chromosome sizes: %v", err)
		}
		chroms, err = chrominfo.Parse(f)
		f.Close()
		if err != nil {
			log.Fatalf("Failed to parse chromosome sizes: %v", err)
		}
	}
	domain := [2]float64{info.MinPos[0], info.MaxPos[0]}
	if *region != "" {
		if domain, err = parseRegion(*region, chroms); err != nil {
			log.Fatalf("Invalid region %q: %v", *region, err)
		}
	}
	scale, err := render.NewLinearScale(domain, [2]float64{0, *width})
	if err != nil {
		log.Fatalf("Invalid view: %v", err)
	}

	frame, err := load(ctx, *tileset, info, sources.NewBatcher(ctx, source.Tiles), scale, track.WithHeight(*height))
	if err != nil {
		log.Fatalf("Failed to load view: %v", err)
	}
	log.WithFields(log.Fields{
		"rows":  frame.Rows,
		"rects": frame.Rects(),
	}).Infof("Loaded %s", frame.Label)

	if err := json.NewEncoder(w).Encode(frame); err != nil {
		log.Fatalf("Failed to write frame: %v", err)
	}
}
