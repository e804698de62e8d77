package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eringen/ringslog"
	"github.com/eringen/ringslog/bookinfo"
	"github.com/eringen/ringslog/logging"
	"github.com/eringen/ringslog/views"
)

var (
	staticDir string
	logLevel  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Example: `  # Serve with a config file
  ringslog serve --config ringslog.yaml

  # Serve with settings from the environment
  RINGSLOG_SESSION_SECRET=change-me ringslog serve --log-level debug`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var lookupCmd = &cobra.Command{
	Use:   "lookup <isbn>",
	Short: "Look up a book in the catalog by ISBN",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := ringslog.LoadConfig(configPath)
		if err != nil {
			return err
		}
		opts := []bookinfo.Option{}
		if cfg.BookAPIURL != "" {
			opts = append(opts, bookinfo.WithEndpoint(cfg.BookAPIURL))
		}
		book, err := bookinfo.New(opts...).Lookup(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "title:  %s\n", book.Title)
		fmt.Fprintf(out, "author: %s\n", book.Author)
		if book.Image != "" {
			fmt.Fprintf(out, "image:  %s\n", book.Image)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&staticDir, "static", "public", "directory with static assets")
	serveCmd.Flags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); overrides log_level")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := ringslog.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	app := ringslog.New(cfg, views.Default(),
		ringslog.WithStaticDir(staticDir),
		ringslog.WithLogger(logger),
	)
	defer app.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() { errc <- app.Start() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("shutdown", zap.Error(err))
		return err
	}
	return <-errc
}
