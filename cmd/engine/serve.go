package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/doomedramen/autopwn-sub005/internal/api"
	"github.com/doomedramen/autopwn-sub005/internal/dictionary"
	"github.com/doomedramen/autopwn-sub005/internal/hashcat"
	"github.com/doomedramen/autopwn-sub005/internal/jobs"
	"github.com/doomedramen/autopwn-sub005/internal/repository"
	"github.com/doomedramen/autopwn-sub005/internal/results"
	"github.com/doomedramen/autopwn-sub005/pkg/debug"
)

const (
	shutdownTimeout    = 30 * time.Second
	expectedPotRecords = 100000
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and manage hashcat sessions",
	Args:  cobra.NoArgs,
	RunE:  doServe,
}

func doServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	potfile := cfg.Potfile()

	store := jobs.NewStore(cfg.WindowLines)
	executor := hashcat.NewExecutor(cfg.HashcatPath, cfg.DataDir, cfg.ControlTimeout)
	manager := jobs.NewManager(store, executor, dictionary.NewResolver(cfg.DataDir), jobs.Options{
		MaxWorkload: cfg.MaxWorkload,
		StopGrace:   cfg.StopGrace,
		PotfilePath: potfile,
	})

	var (
		repo   *repository.ResultRepository
		stored api.ResultLister
	)
	if cfg.DatabaseURL != "" {
		db, err := repository.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := repository.Migrate(cfg.DatabaseURL); err != nil {
			return err
		}
		repo = repository.NewResultRepository(db)
		stored = repo
		debug.Info("Persisting cracked results to PostgreSQL")
	}

	persist := func(records []results.CrackedRecord) {
		if repo == nil || len(records) == 0 {
			return
		}
		if _, err := repo.SaveBatch(context.Background(), records); err != nil {
			debug.Error("Failed to persist cracked results: %v", err)
		}
	}

	var afterSweep []func()
	if repo != nil {
		afterSweep = append(afterSweep, func() {
			records, err := manager.PotfileResults(ctx)
			if err != nil {
				debug.Debug("Potfile sync skipped: %v", err)
				return
			}
			persist(records)
		})
	}

	sweeper, err := jobs.NewSweeper(cfg.CleanupSchedule, manager, afterSweep...)
	if err != nil {
		return err
	}
	sweeper.Start()
	defer func() { <-sweeper.Stop().Done() }()

	handler := api.NewHandler(manager, hashcat.NewDetector(cfg.HashcatPath), stored)
	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		debug.Info("Listening on %s", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := os.MkdirAll(filepath.Dir(potfile), 0755); err != nil {
			debug.Warning("Potfile watch disabled: %v", err)
			return nil
		}
		index := results.NewIndex(expectedPotRecords)
		debug.Info("Potfile index uses %.2f MB", float64(index.MemoryBytes())/1024/1024)
		err := results.Watch(gctx, potfile, index, func(fresh []results.CrackedRecord) {
			for _, rec := range fresh {
				debug.Info("Cracked %s (%s)", rec.Hash, rec.ESSID)
			}
			persist(fresh)
		})
		if err != nil {
			debug.Warning("Potfile watch disabled: %v", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		debug.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			debug.Warning("HTTP shutdown: %v", err)
		}
		return manager.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
