// Package main is the entry point for the polishgw service.
package main

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/howard-nolan/polishgw/internal/completion"
	"github.com/howard-nolan/polishgw/internal/config"
	"github.com/howard-nolan/polishgw/internal/server"
	"github.com/howard-nolan/polishgw/internal/usage"
)

// upstreamTimeout bounds the single chat-completion call. There are no
// retries, so this is the only thing standing between a hung upstream and
// a hung request. Model replies for three variants regularly take tens of
// seconds, hence the generous value.
const upstreamTimeout = 90 * time.Second

func main() {
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Pick the usage counter store. Redis is the real deployment: INCR
	// gives us atomic per-device counting across concurrent requests.
	// Without an address we fall back to the in-memory store, which is
	// only suitable for local development.
	var store usage.Store
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		store = usage.NewRedisStore(client)
		log.Printf("usage counters in redis at %s (db %d)", cfg.Redis.Addr, cfg.Redis.DB)
	} else {
		store = usage.NewMemoryStore()
		log.Printf("warning: no redis configured — usage counters are in-memory and reset on restart")
	}

	completer := completion.NewClient(&http.Client{Timeout: upstreamTimeout})

	srv := server.New(cfg, store, completer)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      srv,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	log.Printf("polishgw listening on :%d", cfg.Server.Port)

	if err := httpServer.ListenAndServe(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
