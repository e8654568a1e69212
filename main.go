package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"shikihoscraper/api"
	"shikihoscraper/config"
	"shikihoscraper/logger"
	"shikihoscraper/store"
)

func main() {
	configPath := flag.String("config", os.Getenv("SHIKIHO_CONFIG"), "path to YAML config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = strconv.Itoa(cfg.Server.Port) // fallback for local development
	}

	log := logger.Init(&cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	renderer, shutdown := cfg.Renderer(log)
	defer shutdown()

	c := cfg.Cache()
	if err := c.Ping(ctx); err != nil {
		log.Warn("redis unavailable, serving without cache", "addr", cfg.Redis.Addr, "error", err)
		c.Close()
		c = nil
	}
	defer c.Close()

	var st *store.Store
	if cfg.Store.Path != "" {
		st, err = store.Open(ctx, cfg.Store.Path)
		if err != nil {
			log.Error("failed to open store", "path", cfg.Store.Path, "error", err)
			os.Exit(1)
		}
		defer st.Close()
	}

	srv := api.NewServer(api.Options{
		Renderer: renderer,
		Engine:   cfg.Engine(log),
		Cache:    c,
		Store:    st,
	})

	httpServer := &http.Server{
		Addr:              ":" + port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server is running", "port", port, "renderer", cfg.Scrape.Renderer)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server failed", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
