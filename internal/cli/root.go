// Package cli implements the chatsync terminal client.
package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/vedran77/chatsync/internal/client"
	"github.com/vedran77/chatsync/internal/config"
	"github.com/vedran77/chatsync/internal/logger"
	"github.com/vedran77/chatsync/internal/syncengine"
)

var (
	version = "dev"
	commit  = "unknown"
)

var (
	configPath  string
	serverURL   string
	tokenFile   string
	logLevel    string
	metricsAddr string

	cfg      *config.Config
	registry = prometheus.NewRegistry()
)

var rootCmd = &cobra.Command{
	Use:           "chatsync",
	Short:         "Terminal chat client for the chatsync backend",
	Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A missing .env is fine.
		_ = godotenv.Load()

		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return err
		}
		if serverURL != "" {
			cfg.Client.ServerURL = serverURL
		}
		if tokenFile != "" {
			cfg.Client.TokenFile = tokenFile
		}
		if cfg.Client.TokenFile == "" {
			if cfg.Client.TokenFile, err = defaultTokenFile(); err != nil {
				return err
			}
		}
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		logger.Init(cfg.Log.Level)

		if metricsAddr != "" {
			go serveMetrics(metricsAddr)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

// Execute runs the root command. It is called by main.main.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "backend URL (default from config, http://localhost:8080)")
	rootCmd.PersistentFlags().StringVar(&tokenFile, "token-file", "", "where the session is stored (default ~/.chatsync/token)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve sync metrics on this address, e.g. :9091")
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	logger.Info("serving metrics", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics server stopped", "err", err)
	}
}

// authedClient returns a client carrying the stored session.
func authedClient() (*client.Client, *session, error) {
	s, err := loadSession(cfg.Client.TokenFile)
	if err != nil {
		return nil, nil, err
	}
	server := cfg.Client.ServerURL
	if serverURL == "" && s.Server != "" {
		server = s.Server
	}
	return client.New(server, client.WithToken(s.AccessToken)), s, nil
}

// newEngine wires a sync engine to the backend.
func newEngine(c *client.Client, s *session) *syncengine.Engine {
	return syncengine.New(cfg.Sync, s.UserID, syncengine.Deps{
		Messages:      c.Messages(),
		Conversations: c.Conversations(),
		Markers:       c.ReadMarkers(),
		Uploader:      c.Uploads(),
		Registerer:    registry,
	})
}
