package cmd

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/lukaszchomatek/aji-vision-demo/internal/config"
	"github.com/lukaszchomatek/aji-vision-demo/internal/logger"
	"github.com/spf13/cobra"
)

type options struct {
	configPath string
	config     *config.Config
}

func NewRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "caption",
		Short: "Local image captioning with a vision model served by Ollama",
		Long: `Caption images with a locally executed vision model.

The model runs on the GPU when one is available and falls back to the CPU otherwise.
Results are kept in a local history.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()

			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if err := logger.Configure(cfg.Log.Level, cfg.Log.JSON); err != nil {
				return fmt.Errorf("invalid log config: %w", err)
			}
			opts.config = cfg
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logger.Sync()
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to a config file (default ./config.yaml)")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newCaptionCmd(opts))
	cmd.AddCommand(newHistoryCmd(opts))

	return cmd
}
