package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Sternrassler/portal-results/internal/api"
	"github.com/Sternrassler/portal-results/internal/app"
	"github.com/Sternrassler/portal-results/internal/config"
	"github.com/Sternrassler/portal-results/pkg/logging"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "results-api",
	Short: "HTTP API for captcha-gated results portal lookups",
	Long: `results-api serves single and range lookups against a results portal.
Each lookup replays the portal's captcha form, retrying rejected captchas
up to the configured attempt budget.`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVarP(&cfgFile, "config", "c", "", "config file (yaml, toml or json)")
	rootCmd.Flags().Int("port", 0, "listen port (overrides server.port)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	v, err := config.NewViper(cfgFile)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := v.BindPFlag("server.port", cmd.Flags().Lookup("port")); err != nil {
		return err
	}

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}

	logging.Setup(cfg.LoggingConfig(api.ServiceName))
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, app.Deps{})
	if err != nil {
		return err
	}
	defer a.Close()

	srv := newServer(cfg, a)

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Int("workers", cfg.Dispatch.Workers).
			Int("max_attempts", cfg.Fetch.MaxAttempts).
			Str("recognizer", a.RecognizerStatus()).
			Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		log.Info().Msg("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	log.Info().Msg("Shutdown complete")
	return nil
}

func newServer(cfg *config.Config, a *app.App) *http.Server {
	return &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: api.NewRouter(a.Service, api.Options{
			RecognizerStatus: a.RecognizerStatus,
			Ready:            a.Ready,
		}),
	}
}
