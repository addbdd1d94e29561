package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/edgefilter/bodyroute/internal/admin"
	"github.com/edgefilter/bodyroute/internal/config"
	"github.com/edgefilter/bodyroute/internal/filter"
	"github.com/edgefilter/bodyroute/internal/proxy"
	"github.com/edgefilter/bodyroute/internal/record"
	"github.com/edgefilter/bodyroute/internal/rules"
)

var (
	serveListen       string
	serveFilterConfig string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the content-routing proxy + admin API",
	Long: `Start the reverse proxy that inspects request bodies and routes
each request to the upstream named by the matching rule, together with
the local admin API for decision records and stats.`,
	Example: `  bodyroute serve -c routes.yaml
  bodyroute serve -c routes.yaml --listen :3000 --filter-config '{"debug": true}'`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "listen address (overrides config)")
	serveCmd.Flags().StringVar(&serveFilterConfig, "filter-config", "", "raw filter configuration JSON")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	var cfg *config.Config
	var err error
	if cfgFile != "" {
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
	} else {
		return fmt.Errorf("--config/-c is required for serve command")
	}

	if serveListen != "" {
		cfg.Listen = serveListen
	}

	// The raw filter configuration degrades to defaults on any parse
	// failure; it only toggles diagnostics, never routing behavior.
	fc := config.ParseFilterConfig(serveFilterConfig)
	debug := cfg.Debug || fc.Debug

	var engine rules.Engine
	if cfg.RegoPolicy != "" {
		engine, err = rules.NewOPAEngine(cfg.RegoPolicy, cfg.DefaultRoute)
		if err != nil {
			return fmt.Errorf("creating rego engine: %w", err)
		}
	} else {
		engine, err = rules.NewYAMLEngineFromFile(cfg.RouteFile)
		if err != nil {
			return fmt.Errorf("creating rule engine: %w", err)
		}
	}

	store, err := record.NewJSONLStore(cfg.LogDir)
	if err != nil {
		return fmt.Errorf("creating decision store: %w", err)
	}
	defer store.Close()

	chain := filter.BuildChain(filter.ChainConfig{
		Engine:         engine,
		RecordStore:    store,
		Logger:         logger,
		SignalField:    cfg.SignalField,
		DecisionHeader: cfg.DecisionHeader,
		DefaultRoute:   cfg.DefaultRoute,
		MaxBodyBytes:   cfg.MaxBodyBytes,
		Debug:          debug,
	})

	p, err := proxy.NewProxy(cfg.Routes, cfg.DefaultRoute, cfg.DecisionHeader, chain, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down")
		cancel()
	}()

	adm := admin.NewServer(cfg.AdminAddr, store, engine, logger)
	go func() {
		if err := adm.ListenAndServe(ctx); err != nil {
			logger.Error("admin server error", "error", err)
		}
	}()

	logger.Info("starting serve mode",
		"listen", cfg.Listen,
		"admin", cfg.AdminAddr,
		"signal_field", cfg.SignalField,
		"decision_header", cfg.DecisionHeader,
		"debug", debug,
	)

	return p.ListenAndServe(ctx, cfg.Listen)
}
