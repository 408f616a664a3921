package cmd

import (
	"github.com/gin-gonic/gin"
	"github.com/lukaszchomatek/aji-vision-demo/internal/inject"
	"github.com/lukaszchomatek/aji-vision-demo/internal/logger"
	"github.com/lukaszchomatek/aji-vision-demo/internal/model"
	"github.com/lukaszchomatek/aji-vision-demo/internal/router"
	"github.com/lukaszchomatek/aji-vision-demo/internal/server"
	"github.com/lukaszchomatek/aji-vision-demo/internal/worker"
	"github.com/samber/do"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCmd(opts *options) *cobra.Command {
	var host, port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the captioning HTTP API",
		Long: `Starts the worker and the HTTP API used by the captioning UI.

Worker notifications (model loading progress, backend hints) are streamed on /events.`,
		Example: `  # Start server on the configured address (default 127.0.0.1:9000)
  caption serve

  # Start server on a custom port
  caption serve --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.config
			if host != "" {
				cfg.Server.Host = host
			}
			if port != "" {
				cfg.Server.Port = port
			}

			injector := inject.Setup(cfg)
			defer func() {
				if err := injector.Shutdown(); err != nil {
					logger.Warnf("shutdown: %s", err)
				}
			}()

			w := do.MustInvoke[*worker.Worker](injector)
			r := do.MustInvoke[*router.Router](injector)
			engine, err := do.Invoke[*gin.Engine](injector)
			if err != nil {
				return err
			}

			logger.Infof("service is starting, host: %s, port: %s, model: %s", cfg.Server.Host, cfg.Server.Port, cfg.Ollama.Model)
			group, ctx := errgroup.WithContext(cmd.Context())
			group.Go(func() error {
				return w.Run(ctx)
			})
			group.Go(func() error {
				return r.Run(ctx)
			})
			group.Go(func() error {
				return server.Start(ctx, cfg.Addr(), engine)
			})
			if err := r.Post(ctx, model.Message{Type: model.MessageTypeProbe}); err != nil {
				logger.Warnf("initial probe failed: %s", err)
			}
			return group.Wait()
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Address to listen on (overrides server.host)")
	cmd.Flags().StringVarP(&port, "port", "p", "", "Port to listen on (overrides server.port)")

	return cmd
}
