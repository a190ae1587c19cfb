package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"xyzcredito.org/internal/auth"
	"xyzcredito.org/internal/config"
	"xyzcredito.org/internal/httpapi"
	"xyzcredito.org/internal/migrate"
	"xyzcredito.org/internal/obs"
	"xyzcredito.org/internal/service"
	"xyzcredito.org/internal/store"
	"xyzcredito.org/internal/store/memory"
	"xyzcredito.org/internal/store/pg"
	"xyzcredito.org/migrations"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// Инициализация observability (регистрация метрик, JSON-логгер и т.п.)
	obs.Init()

	var (
		st      store.Store
		backend = "memory"
		closeDB = func() {}
	)
	if cfg.PGDSN != "" {
		pgStore, err := pg.Open(cfg.PGDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		if cfg.AutoMigrate {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			err := migrate.NewManager(pgStore.DB(), migrations.SQL(), nil).Up(ctx)
			cancel()
			if err != nil {
				log.Fatalf("migrate: %v", err)
			}
		}
		st, backend = pgStore, "postgres"
		closeDB = func() { _ = pgStore.Close() }
	} else {
		st = memory.New()
	}
	obs.InitBuildInfo(version, commit, backend)

	svc := service.New(st, auth.NewHasher(cfg.BcryptCost))
	api := httpapi.New(svc, httpapi.Options{
		Version:        version,
		RateBurst:      cfg.RateBurst,
		RatePerSec:     cfg.RatePerSec,
		MaxBodyBytes:   cfg.MaxBodyBytes,
		AllowedOrigins: cfg.AllowedOrigins,
		TrustedProxies: cfg.TrustedProxies,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	grpcSrv, _ := httpapi.NewGRPCServer(svc)
	grpcLis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Fatalf("grpc listen: %v", err)
	}

	obs.Info("starting", map[string]any{
		"version": version,
		"http":    cfg.HTTPAddr,
		"grpc":    cfg.GRPCAddr,
		"store":   backend,
	})

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()
	go func() {
		if err := grpcSrv.Serve(grpcLis); err != nil {
			obs.Error("grpc_serve", err, nil)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	obs.Info("shutting_down", nil)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	_ = srv.Shutdown(ctx)
	grpcSrv.GracefulStop()
	closeDB()
	obs.Info("stopped", nil)
}
