// Package main provides the entry point for the Catena catalog service.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jobrunner/catena/internal/app"
	"github.com/jobrunner/catena/internal/catalog"
	"github.com/jobrunner/catena/internal/config"
	"github.com/jobrunner/catena/internal/fetch"
	"github.com/jobrunner/catena/internal/ows/csw"
	"github.com/jobrunner/catena/internal/ows/wfs"
	"github.com/jobrunner/catena/internal/ows/wms"
	"github.com/jobrunner/catena/internal/ows/wmts"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

var cfgFile string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "catena",
	Short: "Catena - OGC catalog composition service",
	Long: `Catena composes a layered geospatial catalog from declarative
definition files and the capabilities documents of the OGC services they
reference.

Features:
  - WMS, WFS, WMTS, CSW, WPS and SOS support
  - Layered trait composition with definition overrides
  - Paginated CSW harvesting into metadata groups
  - Multiple definition sources (local, AWS S3, Azure, HTTP)
  - Hot-reload of definition files
  - TLS with automatic certificate management
  - Prometheus metrics`,
	RunE: runServer,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("Catena %s\n", version)
		fmt.Printf("  Commit:     %s\n", commit)
		fmt.Printf("  Build Date: %s\n", buildDate)
	},
}

var inspectType string

var inspectCmd = &cobra.Command{
	Use:   "inspect <url>",
	Short: "Fetch a service's capabilities and print the derived catalog members",
	Long: `Inspect fetches the capabilities document of one OGC service and
prints the catalog members that would be composed from it, as JSON.

The --type flag selects the protocol: wms, wfs, wmts or csw.`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "log format (json, text)")

	// Server flags
	rootCmd.Flags().String("host", "0.0.0.0", "server host")
	rootCmd.Flags().Int("port", 8080, "server port")
	rootCmd.Flags().Bool("tls", false, "enable TLS")
	rootCmd.Flags().StringSlice("tls-domains", nil, "TLS domains")
	rootCmd.Flags().String("tls-email", "", "TLS email for Let's Encrypt")

	// Source flags
	rootCmd.Flags().String("source-type", "local", "definition source type (local, s3, azure, http)")
	rootCmd.Flags().String("source-path", "./catalog", "local definition directory")

	// CORS flags
	rootCmd.Flags().StringSlice("cors", nil, "allowed CORS origins (e.g., https://example.com,*.sub.domain.tld)")

	// Bind flags to viper
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("server.host", rootCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", rootCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("tls.enabled", rootCmd.Flags().Lookup("tls"))
	_ = viper.BindPFlag("tls.domains", rootCmd.Flags().Lookup("tls-domains"))
	_ = viper.BindPFlag("tls.email", rootCmd.Flags().Lookup("tls-email"))
	_ = viper.BindPFlag("source.type", rootCmd.Flags().Lookup("source-type"))
	_ = viper.BindPFlag("source.local_path", rootCmd.Flags().Lookup("source-path"))
	_ = viper.BindPFlag("server.cors.allowed_origins", rootCmd.Flags().Lookup("cors"))

	inspectCmd.Flags().StringVar(&inspectType, "type", "wms", "service protocol (wms, wfs, wmts, csw)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(inspectCmd)
}

func initConfig() {
	config.Defaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

func runServer(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	logger.Info("starting Catena",
		"version", version,
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"source_type", cfg.Source.Type,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Initialize application
	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}

	// Start server in background
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "address", cfg.Server.Address())
		if err := application.Start(ctx); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Wait for shutdown signal or server error
	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-serverErr:
		logger.Error("server error", "error", err)
		cancel()
	case <-ctx.Done():
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	logger.Info("shutting down server")
	if err := application.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		return err
	}

	logger.Info("server stopped")
	return nil
}

func runInspect(cmd *cobra.Command, args []string) error {
	url := args[0]

	logger := setupLogger(config.LoggingConfig{Level: "warn", Format: "text"})
	client := fetch.New(fetch.Options{Logger: logger})
	registry := catalog.NewRegistry()

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
	defer cancel()

	var groupType catalog.Type
	switch inspectType {
	case "wms":
		groupType = catalog.TypeWMSGroup
	case "wfs":
		groupType = catalog.TypeWFSGroup
	case "wmts":
		groupType = catalog.TypeWMTSGroup
	case "csw":
		groupType = catalog.TypeCSWGroup
	default:
		return fmt.Errorf("unknown service type: %s", inspectType)
	}

	group, _ := registry.GetOrCreate("inspect", groupType)
	group.SetStratum(catalog.StratumDefinition, catalog.Traits{Name: "inspect", URL: url})

	var err error
	switch groupType {
	case catalog.TypeWMSGroup:
		err = wms.LoadGroup(ctx, client, registry, group, logger)
	case catalog.TypeWFSGroup:
		err = wfs.LoadGroup(ctx, client, registry, group, logger)
	case catalog.TypeWMTSGroup:
		err = wmts.LoadGroup(ctx, client, registry, group, logger)
	case catalog.TypeCSWGroup:
		err = csw.LoadGroup(ctx, client, registry, group, csw.Options{}, logger)
	}
	if err != nil {
		return fmt.Errorf("inspecting %s: %w", url, err)
	}

	out := make([]map[string]interface{}, 0, registry.Len())
	for _, m := range registry.List() {
		entry := map[string]interface{}{
			"id":     m.ID,
			"type":   m.Type,
			"traits": m.Traits(),
		}
		if m.IsGroup() {
			entry["children"] = m.Children()
		}
		out = append(out, entry)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Value = slog.StringValue(time.Now().UTC().Format(time.RFC3339))
			}
			return a
		},
	}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
