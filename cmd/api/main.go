// Command buildea-api serves the Buildea idea-sharing API and carries a few
// maintenance subcommands.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"buildea/api/internal/app"
)

var (
	configPath string
	version    = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "buildea-api",
	Short: "Buildea idea-sharing API server",
	Long: `buildea-api serves the Buildea HTTP API.

Configuration comes from an optional YAML file, a .env file and BUILDEA_*
environment variables. Running without a subcommand starts the server.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
	RunE:          runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := buildRuntime(ctx, configPath, true)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.service.Bootstrap(ctx); err != nil {
		rt.logger.Warn(ctx, "bootstrap admin failed", zap.Error(err))
	}

	httpServer := app.NewHTTPServer(rt.service, rt.cfg, rt.logger)
	server := &http.Server{
		Addr:              rt.cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		rt.logger.Info(ctx, "buildea api listening", zap.String("addr", rt.cfg.Addr), zap.String("store", rt.cfg.StoreDriver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		rt.logger.Warn(shutdownCtx, "shutdown error", zap.Error(err))
	}
	rt.service.Wait()
	rt.logger.Info(shutdownCtx, "buildea api stopped")
	return nil
}
