package cmd

import (
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/lehigh-university-libraries/chronobooth/internal/config"
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "chronobooth",
		Short: "Time-travel photo booth powered by generative image models",
		Long: `Chronobooth takes a selfie, optionally describes the person in it and
asks a generative image model to place them in another era.

It can serve a JSON API for a browser booth, run as a Telegram bot, or
transform a single photo from the command line.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()

			level := config.Load().SlogLevel()
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}

	cmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable debug logging")
	cmd.PersistentFlags().String("analysis-provider", "", "Provider for feature analysis (gemini, openai, ollama)")
	cmd.PersistentFlags().String("transform-provider", "", "Provider for image transformation (gemini, openai)")

	// Add subcommands
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newBotCmd())
	cmd.AddCommand(newTransformCmd())
	cmd.AddCommand(newScenesCmd())

	return cmd
}

// loadConfig reads the environment and applies provider flag overrides.
func loadConfig(cmd *cobra.Command) config.Config {
	cfg := config.Load()
	if v, _ := cmd.Flags().GetString("analysis-provider"); v != "" {
		cfg.AnalysisProvider = strings.ToLower(v)
	}
	if v, _ := cmd.Flags().GetString("transform-provider"); v != "" {
		cfg.TransformProvider = strings.ToLower(v)
	}
	return cfg
}
