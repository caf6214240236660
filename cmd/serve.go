package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/lehigh-university-libraries/chronobooth/internal/booth"
	"github.com/lehigh-university-libraries/chronobooth/internal/handlers"
	"github.com/lehigh-university-libraries/chronobooth/internal/metrics"
	"github.com/lehigh-university-libraries/chronobooth/internal/scenes"
	"github.com/lehigh-university-libraries/chronobooth/internal/storage"
	"github.com/lehigh-university-libraries/chronobooth/internal/transform"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCmd() *cobra.Command {
	var (
		port         string
		withTelegram bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the booth JSON API",
		Long: `Starts the Chronobooth API on the specified port.

Each browser visit creates a session which is driven through capture,
optional analysis and transformation by the /api/sessions endpoints.
Prometheus metrics are served on /metrics.`,
		Example: `  # Start server on default port 8888
  chronobooth serve

  # Start server on custom port and run the Telegram bot alongside
  chronobooth serve --port 3000 --telegram`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig(cmd)
			if port != "" {
				cfg.Port = port
			}
			if withTelegram && cfg.TelegramBotToken == "" {
				return fmt.Errorf("TELEGRAM_BOT_TOKEN environment variable not set")
			}

			service, err := transform.NewService(cfg)
			if err != nil {
				return err
			}
			catalog, err := scenes.Default()
			if err != nil {
				return err
			}
			metrics.Register(prometheus.DefaultRegisterer)

			store := storage.New("http", func(id string) *booth.Booth {
				return booth.New(id, service, booth.WithScenes(catalog))
			})
			handler := handlers.New(store, catalog, cfg.MaxUploadBytes)

			mux := newBaseMux()
			handler.Register(mux)

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				return runServer(ctx, ":"+cfg.Port, mux)
			})
			if withTelegram {
				g.Go(func() error {
					return runBot(ctx, cfg.TelegramBotToken, service, catalog)
				})
			}
			return g.Wait()
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "Port to listen on (default $PORT or 8888)")
	cmd.Flags().BoolVar(&withTelegram, "telegram", false, "Also run the Telegram bot")

	return cmd
}

// newBaseMux serves the health check and metrics endpoints.
func newBaseMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			slog.Error("Unable to write healthcheck", "err", err)
		}
	})
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// runServer serves until ctx is done, then shuts down gracefully.
func runServer(ctx context.Context, addr string, handler http.Handler) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		slog.Info("Chronobooth available", "addr", addr, "url", "http://localhost"+addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for context cancellation (Ctrl+C) or server error
	select {
	case <-ctx.Done():
		slog.Info("Shutting down server...")
		// Give server 5 seconds to shut down gracefully
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown failed", "err", err)
			return err
		}
		slog.Info("Server stopped")
		return nil
	case err := <-serverErr:
		return err
	}
}
