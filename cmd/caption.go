package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lukaszchomatek/aji-vision-demo/internal/backend"
	"github.com/lukaszchomatek/aji-vision-demo/internal/events"
	"github.com/lukaszchomatek/aji-vision-demo/internal/inject"
	"github.com/lukaszchomatek/aji-vision-demo/internal/logger"
	"github.com/lukaszchomatek/aji-vision-demo/internal/model"
	"github.com/lukaszchomatek/aji-vision-demo/internal/router"
	"github.com/lukaszchomatek/aji-vision-demo/internal/session"
	"github.com/lukaszchomatek/aji-vision-demo/internal/worker"
	"github.com/samber/do"
	"github.com/spf13/cobra"
)

func newCaptionCmd(opts *options) *cobra.Command {
	var preference string
	var twoPass, thumbnail bool
	generation := model.DefaultOptions()

	cmd := &cobra.Command{
		Use:   "caption <image>",
		Short: "Caption one image and record it in the history",
		Example: `  # Caption a photo on whatever backend is available
  caption caption dog.jpg

  # Compare a cold and a warm run on the CPU
  caption caption dog.jpg --backend cpu --two-pass`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := generation.Validate(); err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			injector := inject.Setup(opts.config)
			defer injector.Shutdown()

			w := do.MustInvoke[*worker.Worker](injector)
			r := do.MustInvoke[*router.Router](injector)
			hub := do.MustInvoke[*events.Hub](injector)
			s, err := do.Invoke[*session.Session](injector)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			go w.Run(ctx)
			go r.Run(ctx)

			_, messages, unsubscribe := hub.Subscribe()
			defer unsubscribe()
			go func() {
				for msg := range messages {
					if status, ok := msg.Payload.(model.StatusPayload); ok {
						fmt.Fprintln(cmd.ErrOrStderr(), status.Message)
					}
				}
			}()

			if _, err := s.SelectImage(f, filepath.Base(args[0])); err != nil {
				return err
			}
			resp, err := s.Generate(ctx, model.GenerationRequest{
				Options:           generation,
				BackendPreference: backend.ParsePreference(preference),
				TwoPass:           twoPass,
				StoreThumbnail:    thumbnail,
			})
			if err != nil {
				return err
			}
			logger.Debugf("caption produced on %s", resp.Backend)
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n%s · %s\n", resp.Caption, resp.TimeLabel, resp.Backend)
			return nil
		},
	}

	cmd.Flags().StringVarP(&preference, "backend", "b", "auto", "Backend preference (auto, gpu, cpu)")
	cmd.Flags().BoolVar(&twoPass, "two-pass", false, "Run twice to measure a cold and a warm pass")
	cmd.Flags().BoolVar(&thumbnail, "thumbnail", false, "Store a thumbnail with the history item")
	cmd.Flags().IntVar(&generation.MaxNewTokens, "max-new-tokens", generation.MaxNewTokens, "Maximum caption length in tokens (1-512)")
	cmd.Flags().Float64Var(&generation.Temperature, "temperature", generation.Temperature, "Sampling temperature (0-2)")
	cmd.Flags().IntVar(&generation.NumBeams, "num-beams", generation.NumBeams, "Beam count (1-8)")

	return cmd
}
