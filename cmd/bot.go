package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/lehigh-university-libraries/chronobooth/internal/booth"
	"github.com/lehigh-university-libraries/chronobooth/internal/metrics"
	"github.com/lehigh-university-libraries/chronobooth/internal/scenes"
	"github.com/lehigh-university-libraries/chronobooth/internal/telegram"
	"github.com/lehigh-university-libraries/chronobooth/internal/transform"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newBotCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "bot",
		Short: "Run the booth as a Telegram bot",
		Long: `Runs Chronobooth as a Telegram bot using long polling.

Each chat gets its own session: send /start, then a selfie, then pick an
era or type a custom edit. A health check and metrics are served on the
given port.`,
		Example: `  TELEGRAM_BOT_TOKEN=123:abc chronobooth bot`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig(cmd)
			if port != "" {
				cfg.Port = port
			}
			if cfg.TelegramBotToken == "" {
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

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				return runServer(ctx, ":"+cfg.Port, newBaseMux())
			})
			g.Go(func() error {
				return runBot(ctx, cfg.TelegramBotToken, service, catalog)
			})
			return g.Wait()
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "Port for the health check (default $PORT or 8888)")

	return cmd
}

// runBot long-polls Telegram until ctx is done.
func runBot(ctx context.Context, token string, service booth.Service, catalog *scenes.Catalog) error {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return fmt.Errorf("unable to connect to Telegram: %w", err)
	}
	slog.Info("Telegram bot authorized", "username", bot.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30 // long polling timeout (sec)
	updates := bot.GetUpdatesChan(u)

	go func() {
		<-ctx.Done()
		bot.StopReceivingUpdates()
	}()

	telegram.NewRouter(bot, service, catalog).Run(ctx, updates)
	if ctx.Err() == nil {
		return errors.New("telegram updates channel closed")
	}
	return nil
}
