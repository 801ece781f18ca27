// posture-api: shared state store for posture monitors.
// Serves /start, /stop, /data and /update over HTTP and persists the
// aggregate state to a JSON file or Redis.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teslashibe/go-posture/internal/config"
	"github.com/teslashibe/go-posture/internal/log"
	"github.com/teslashibe/go-posture/pkg/hub"
	"github.com/teslashibe/go-posture/pkg/metrics"
	"github.com/teslashibe/go-posture/pkg/server"
	"github.com/teslashibe/go-posture/pkg/session"
)

var version = "1.0.0"

func main() {
	cfg, accessLog := parseFlags()
	log.Init(cfg.LogLevel)
	logger := log.Component("posture-api")

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error("store unavailable", "backend", cfg.StoreBackend, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// Nothing classifies frames in this process, so the aggregator is the
	// only metrics source.
	m := metrics.New()
	agg := session.NewAggregator(
		session.LoadState(ctx, store, logger),
		session.WithStore(store),
		session.WithObserver(m),
	)

	h := hub.New("posture-api")
	go h.Run(ctx)

	srvCfg := server.DefaultConfig()
	srvCfg.AccessLog = accessLog
	srv := server.New(srvCfg, agg, h, m)

	go func() {
		if err := srv.Listen(":" + cfg.Port); err != nil {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()
	logger.Info("posture api ready",
		"version", version,
		"port", cfg.Port,
		"store", cfg.StoreBackend,
		"monitoring", agg.Monitoring())

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", "error", err)
	}
	if err := agg.Save(shutdownCtx); err != nil {
		logger.Warn("final save failed", "error", err)
	}
}

// parseFlags reads flags, then .env and the environment. Flags that were
// set explicitly win.
func parseFlags() (config.Config, bool) {
	port := flag.String("port", "", "HTTP port (overrides PORT)")
	storeBackend := flag.String("store", "", "State store: file or redis (overrides POSTURE_STORE)")
	dataFile := flag.String("data-file", "", "JSON state file (overrides POSTURE_DATA_FILE)")
	debug := flag.Bool("debug", false, "Enable debug logging and the access log")
	flag.Parse()

	cfg := config.Load()
	if *port != "" {
		cfg.Port = *port
	}
	if *storeBackend != "" {
		cfg.StoreBackend = *storeBackend
	}
	if *dataFile != "" {
		cfg.DataFile = *dataFile
	}
	if *debug {
		cfg.LogLevel = "debug"
	}
	return cfg, *debug
}

func openStore(ctx context.Context, cfg config.Config) (session.Store, error) {
	switch cfg.StoreBackend {
	case config.StoreFile:
		return session.NewJSONStore(cfg.DataFile), nil
	case config.StoreRedis:
		dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return session.DialRedis(dialCtx, session.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Key:      cfg.RedisKey,
		})
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}
