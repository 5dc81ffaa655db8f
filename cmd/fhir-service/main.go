package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/hdh-bench/platform/pkg/common/config"
	"github.com/hdh-bench/platform/pkg/common/logger"
	"github.com/hdh-bench/platform/pkg/fhir"
)

// One process serves one of the six mock systems, selected via SYSTEM_NAME.
// It loads its seed bundle and serves it read-only. This binary must stay
// free of any ground-truth imports: the agent under test talks to it
// directly.
func main() {
	logger.Init()
	cfg := config.Load()

	seedFile := cfg.SeedFile
	if seedFile == "" {
		seedFile = filepath.Join(cfg.DataDir, cfg.SystemName+"_seed.json")
	}

	bundle, err := fhir.LoadBundle(seedFile)
	if err != nil {
		logger.WithError(err).WithField("seed_file", seedFile).Fatal("Failed to load seed bundle")
	}

	store := fhir.NewStore(cfg.SystemName)
	store.Load(bundle)

	server := &http.Server{
		Addr:         cfg.ServerHost + ":" + cfg.ServerPort,
		Handler:      fhir.NewServer(store).Router(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.WithFields(map[string]interface{}{
			"system":    cfg.SystemName,
			"addr":      server.Addr,
			"resources": len(bundle.Resources()),
		}).Info("FHIR service starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("FHIR service failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down FHIR service")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Forced shutdown")
	}
}
