package pileup

import (
	"context"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/googlegenomics/pileup/api"
	"github.com/googlegenomics/pileup/config"
	"github.com/googlegenomics/pileup/internal/storage"
	log "github.com/sirupsen/logrus"
	"google.golang.org/appengine"
)

func init() {
	path := os.Getenv("TILESET_CONFIG")
	if path == "" {
		path = "tilesets.toml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	open := func(ctx context.Context, client storage.Client, uid string) (api.Tileset, error) {
		source, err := cfg.Open(ctx, client, uid)
		if err != nil {
			return nil, err
		}
		return source, nil
	}
	registry := api.NewRegistry(newAppEngineClient, cfg.UIDs(), open, false)

	router := gin.New()
	router.Use(gin.Recovery())
	api.NewServer(registry, api.WithMaxTiles(cfg.Server.MaxTiles)).Export(router)
	http.Handle("/", router)
}

func newAppEngineClient(req *http.Request) (storage.Client, error) {
	return storage.NewClientFromBearerToken(req.WithContext(appengine.NewContext(req)))
}
