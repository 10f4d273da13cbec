package main

import (
	"fmt"
	"os"

	"github.com/brilliant-almazov/railway-exporter/pkg/handlers/exporter"
	wshandler "github.com/brilliant-almazov/railway-exporter/pkg/handlers/ws"
	"github.com/brilliant-almazov/railway-exporter/pkg/promexport"
	"github.com/brilliant-almazov/railway-exporter/pkg/server"
	"github.com/brilliant-almazov/railway-exporter/pkg/services/broadcast"
	"github.com/brilliant-almazov/railway-exporter/pkg/services/config"
	"github.com/brilliant-almazov/railway-exporter/pkg/services/procinfo"
	"github.com/brilliant-almazov/railway-exporter/pkg/services/railway"
	"github.com/brilliant-almazov/railway-exporter/pkg/services/scraper"
	"github.com/brilliant-almazov/railway-exporter/pkg/store/icons"
	"github.com/brilliant-almazov/railway-exporter/pkg/store/metrics"
	"github.com/brilliant-almazov/railway-exporter/pkg/store/pricing"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const version = "1.0.0"

func main() {
	var rootCmd = &cobra.Command{
		Use:   "railway-exporter",
		Short: "Export Railway usage and cost metrics",
		RunE:  runServer,
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, _ []string) error {
	// A missing .env file is fine; real deployments set the environment
	// directly.
	_ = godotenv.Load()

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	ctx := logger.WithContext(cmd.Context())

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	prices, err := pricing.NewStore(cfg.Plan, cfg.Pricing)
	if err != nil {
		return fmt.Errorf("failed to build pricing: %w", err)
	}

	logger.Info().
		Str("version", version).
		Str("plan", prices.Plan()).
		Int("scrape_interval", cfg.ScrapeInterval).
		Int("port", cfg.Port).
		Bool("websocket", cfg.WebsocketEn).
		Msg("railway exporter starting")

	var iconCache *icons.Cache
	if cfg.IconCache.Enabled {
		iconCache = icons.NewCache(cfg.IconCache.MaxCount)
		logger.Info().
			Str("mode", cfg.IconCache.Mode).
			Int("max_count", cfg.IconCache.MaxCount).
			Msg("icon cache enabled")
	}

	store := metrics.NewStore()
	prom := promexport.New()
	caster := broadcast.New()
	proc := procinfo.NewProvider()
	client := railway.NewClient(cfg.APIToken, cfg.APIURL)

	collector := scraper.New(cfg, client, store, prices, prom, caster, iconCache)
	go collector.Run(ctx)

	handler := exporter.NewHandler(cfg, store, prices, prom, proc, caster, iconCache, version)

	api := server.NewWebAPI(logger, server.Config{
		Addr: fmt.Sprintf(":%d", cfg.Port),
		App:  cfg,
		Dependencies: server.Dependencies{
			Exporter: handler,
			Ws:       wshandler.NewHandler(caster, handler),
		},
	})

	return api.Start()
}
