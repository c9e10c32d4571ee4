// Command samfetch runs a single ingest pass with the monitor's
// configuration and exits non-zero on failure, for crontabs and CI smoke
// runs that don't want the long-lived server.
package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/antonybarran/Sam-Search-WA-3/internal/client/sam"
	"github.com/antonybarran/Sam-Search-WA-3/internal/config"
	"github.com/antonybarran/Sam-Search-WA-3/internal/db"
	"github.com/antonybarran/Sam-Search-WA-3/internal/logger"
	gormrepository "github.com/antonybarran/Sam-Search-WA-3/internal/repository/gorm"
	"github.com/antonybarran/Sam-Search-WA-3/internal/service"
)

type fetchOptions struct {
	configPath string
	envOnly    bool
	days       int
	pageSize   int
	maxRecords int
	pagePause  time.Duration
	zipPause   time.Duration
	zips       []string
	naics      string
	setAside   string
	cleanup    bool
}

func main() {
	if err := newFetchCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "samfetch:", err)
		os.Exit(1)
	}
}

func newFetchCommand() *cobra.Command {
	opts := &fetchOptions{}

	cmd := &cobra.Command{
		Use:           "samfetch",
		Short:         "Run one SAM.gov ingest pass and exit",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.configPath, "config", "", "config file (default $SAM_CONFIG or config/config.yaml)")
	cmd.Flags().BoolVar(&opts.envOnly, "env-only", false, "skip the config file, use env and defaults only")
	cmd.Flags().IntVar(&opts.days, "days", 0, "override lookback window in days")
	cmd.Flags().IntVar(&opts.pageSize, "page-size", 0, "override page size")
	cmd.Flags().IntVar(&opts.maxRecords, "max-records", 0, "override record budget (negative disables it)")
	cmd.Flags().DurationVar(&opts.pagePause, "pause", 0, "override pause between pages")
	cmd.Flags().DurationVar(&opts.zipPause, "zip-pause", 0, "override pause between zip dimensions")
	cmd.Flags().StringSliceVar(&opts.zips, "zip", nil, "zip codes to fan out over (repeatable)")
	cmd.Flags().StringVar(&opts.naics, "naics", "", "NAICS filter")
	cmd.Flags().StringVar(&opts.setAside, "set-aside", "", "set-aside filter")
	cmd.Flags().BoolVar(&opts.cleanup, "cleanup", false, "sweep expired notices after the run")

	return cmd
}

func runFetch(cmd *cobra.Command, opts *fetchOptions) error {
	cfgPath := opts.configPath
	if cfgPath == "" {
		cfgPath = os.Getenv("SAM_CONFIG")
	}
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := opts.envOnly
	if envOnlyRaw := os.Getenv("SAM_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = envOnly || strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer log.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close(dbConn)
	if err := db.AutoMigrate(dbConn); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}

	samClient := sam.NewClient(&http.Client{Timeout: cfg.API.Timeout}, sam.Options{
		Host:        cfg.API.BaseURL,
		APIKey:      cfg.API.Key,
		MaxTries:    cfg.API.MaxTries,
		BackoffBase: cfg.API.BackoffBase,
		BackoffMax:  cfg.API.BackoffMax,
		Logger:      log,
	})
	store := gormrepository.New(dbConn.Gorm, log, cfg.DB.PositionalBinds)
	syncService := &service.OpportunitySyncService{
		Store:        store,
		Client:       samClient,
		Logger:       log,
		Scope:        cfg.Ingest.Scope,
		LookbackDays: cfg.Ingest.LookbackDays,
		PageSize:     cfg.Ingest.PageSize,
		MaxRecords:   cfg.Ingest.MaxRecords,
		PagePause:    cfg.Ingest.PagePause,
		ZipPause:     cfg.Ingest.ZipPause,
		Zips:         cfg.Ingest.Zips,
		NAICS:        cfg.Ingest.NAICS,
		SetAside:     cfg.Ingest.SetAside,
		Cleanup:      cfg.Ingest.Cleanup,
		KeepRaw:      cfg.Ingest.KeepRaw,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Only steer cleanup when the flag was given, so the config default
	// still applies to a bare invocation.
	var cleanup *bool
	if cmd.Flags().Changed("cleanup") {
		cleanup = &opts.cleanup
	}

	result, err := syncService.Run(ctx, service.SyncOptions{
		LookbackDays: opts.days,
		PageSize:     opts.pageSize,
		MaxRecords:   opts.maxRecords,
		PagePause:    opts.pagePause,
		ZipPause:     opts.zipPause,
		Zips:         opts.zips,
		NAICS:        opts.naics,
		SetAside:     opts.setAside,
		Cleanup:      cleanup,
	})
	if err != nil {
		return err
	}

	log.Info("ingest pass finished",
		zap.String("run_id", result.RunID),
		zap.String("from", result.Window.From),
		zap.String("to", result.Window.To),
		zap.Int("pages", result.Pages),
		zap.Int("fetched", result.Fetched),
		zap.Int("upserted", result.Upserted),
		zap.Int64("deleted", result.Deleted),
		zap.Float64("elapsed_seconds", result.ElapsedSeconds),
	)
	return nil
}
