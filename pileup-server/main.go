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

// This binary provides a tile server for the BAM files listed in a tileset
// configuration file, backed by GCS or a local directory.
package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/googlegenomics/pileup/analytics"
	"github.com/googlegenomics/pileup/config"
	"github.com/pkg/profile"
	log "github.com/sirupsen/logrus"
)

var (
	port       = flag.Int("port", 80, "HTTP service port")
	configFile = flag.String("config", "", "tileset configuration file (TOML)")
	maxTiles   = flag.Int("max_tiles", 0, "if set, overrides the number of tiles served per request")

	secure    = flag.Bool("secure", false, "serve in HTTPS-only mode and forward client bearer tokens")
	httpsCert = flag.String("https_cert", "", "HTTPS certificate file")
	httpsKey  = flag.String("https_key", "", "HTTPS key file")

	buckets   = flag.String("buckets", "", "if set, restricts tilesets to a comma-separated list of buckets")
	directory = flag.String("directory", "", "if set, serves buckets from subdirectories of this directory instead of GCS")

	profileDir = flag.String("profile", "", "if set, writes a CPU profile to this directory")
	verbose    = flag.Bool("v", false, "verbose logging")

	// Enable or disable anonymous usage tracking.
	//
	// If enabled, anonymous information about requests handled by the server is
	// logged to Google via Google Analytics.
	//
	// This information helps Google determine how well the software is
	// performing and where improvements should be made.  No user identifying
	// information is ever sent to Google.
	trackUsage = flag.Bool("track_usage", false, "anonymous usage tracking")
)

func main() {
	flag.Parse()
	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	if *configFile == "" {
		log.Fatalf("You must specify a tileset configuration with -config.")
	}
	if *secure && (*httpsCert == "" || *httpsKey == "") {
		log.Fatalf("You must specify both -https_cert and -https_key in secure mode.")
	}
	if *profileDir != "" {
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(*profileDir)).Stop()
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *directory != "" {
		cfg.Server.Directory = *directory
	}
	if *maxTiles > 0 {
		cfg.Server.MaxTiles = *maxTiles
	}
	if *buckets != "" {
		cfg = restrictBuckets(cfg, strings.Split(*buckets, ","))
	}
	log.WithField("tilesets", cfg.UIDs()).Infof("Loaded %s", *configFile)

	opts := options{secure: *secure}
	if *trackUsage {
		log.Infof("Enabling anonymous usage tracking")

		reporter := analytics.NewReporter(analytics.NewClient("UA-103022118-1", uuid.New().String()), log.StandardLogger())
		go reporter.Run(context.Background())
		opts.track = reporter.Track
	}

	router := gin.Default()
	newRouter(router, cfg, opts)

	address := fmt.Sprintf(":%d", *port)
	if *secure {
		if err := router.RunTLS(address, *httpsCert, *httpsKey); err != nil {
			log.Fatalf("HTTPS server returned an error: %v", err)
		}
	} else {
		if err := router.Run(address); err != nil {
			log.Fatalf("HTTP server returned an error: %v", err)
		}
	}
}
