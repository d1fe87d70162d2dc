package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pyropy/qrxfer/core/collector"
	"github.com/pyropy/qrxfer/core/config"
	"github.com/pyropy/qrxfer/core/relay"
	"github.com/pyropy/qrxfer/lib/logger"
	collectorRPC "github.com/pyropy/qrxfer/rpc/collector"
)

var log, _ = logger.New("collector-server")

func main() {
	if err := run(); err != nil {
		log.Fatalw("startup", "error", err)
	}
}

func run() error {
	cfg, err := config.GetConfig()
	if err != nil {
		log.Errorw("startup", "error", "config error")
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Errorw("startup", "error", "store open failed", "driver", cfg.Store.Driver)
		return err
	}
	defer store.Close()

	opts := collector.Options{
		Store:      store,
		DedupCache: cfg.Collector.DedupCache,
		SaveDir:    cfg.Store.Path,
	}

	if cfg.Relay.URL != "" {
		relayClient, err := relay.Connect(cfg.Relay.URL, cfg.Relay.Subject)
		if err != nil {
			log.Errorw("startup", "error", "relay connect failed")
			return err
		}
		defer relayClient.Close()
		opts.Publisher = relayClient
	}

	c := collector.New(opts)
	if err := c.Load(ctx); err != nil {
		return err
	}

	go collector.NewProgressMonitor(c, collector.DefaultProgressInterval).Start(ctx)

	rpcServer, err := collectorRPC.NewServer(c)
	if err != nil {
		return err
	}

	addr := cfg.ListenAddr()
	l, err := net.Listen("tcp", addr)
	if err != nil {
		log.Errorw("startup", "error", "net listen failed")
		return err
	}

	listenAddr := l.Addr().String()
	srv := &http.Server{
		Handler:           NewServer(c, rpcServer, cfg.Store.Path),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(l)
	}()

	log.Infow("startup", "status", "collector started", "address", listenAddr, "session", c.Session(), "store", cfg.Store.Driver)
	defer log.Infow("shutdown", "status", "collector stopped", "address", listenAddr)

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}

	log.Infow("shutdown", "status", "collector stopping", "address", listenAddr)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg *config.Config) (collector.Store, error) {
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		return collector.NewPostgresStore(ctx, cfg.Store.DatabaseURL)
	default:
		if err := os.MkdirAll(cfg.Store.Path, 0o755); err != nil {
			return nil, err
		}
		return collector.NewLevelStore(cfg.Store.Path)
	}
}
