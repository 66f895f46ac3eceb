package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/subautotrans/subautotrans/internal/config"
	"github.com/subautotrans/subautotrans/internal/httpapi"
	"github.com/subautotrans/subautotrans/internal/media"
	"github.com/subautotrans/subautotrans/internal/service"
	"github.com/subautotrans/subautotrans/internal/store"
	"github.com/subautotrans/subautotrans/pkg/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration: %v", err)
	}
	log.SetLevelFromString(cfg.LogLevel)

	tools := media.NewTools()
	if missing := tools.CheckDependencies(); len(missing) > 0 {
		// Container translation needs these; standalone subtitle files
		// still work without them.
		log.Warn("Missing external tools: %s (MKV support disabled until installed)", strings.Join(missing, ", "))
	}

	st, err := store.NewStore(cfg.DatabasePath)
	if err != nil {
		log.Fatal("Failed to open database: %v", err)
	}
	defer st.Close()

	svc, err := service.New(cfg, st, tools)
	if err != nil {
		log.Fatal("Failed to initialize service: %v", err)
	}

	hub := httpapi.NewHub()
	svc.Queue().OnProgress(hub.BroadcastProgress)
	svc.Queue().OnStatusChange(hub.BroadcastStatus)

	if err := svc.Start(context.Background()); err != nil {
		log.Fatal("Failed to start service: %v", err)
	}

	server := httpapi.NewServer(svc, hub)
	errCh := make(chan error, 1)
	go func() {
		log.Info("Listening on %s", cfg.Addr())
		errCh <- server.ListenAndServe(cfg.Addr())
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("Received %s, shutting down", sig)
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server failed: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP shutdown failed: %v", err)
	}
	svc.Stop()
	log.Info("Shutdown complete")
}
