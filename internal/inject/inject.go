package inject

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lukaszchomatek/aji-vision-demo/internal/backend"
	"github.com/lukaszchomatek/aji-vision-demo/internal/config"
	"github.com/lukaszchomatek/aji-vision-demo/internal/events"
	"github.com/lukaszchomatek/aji-vision-demo/internal/history"
	"github.com/lukaszchomatek/aji-vision-demo/internal/logger"
	"github.com/lukaszchomatek/aji-vision-demo/internal/ollama"
	"github.com/lukaszchomatek/aji-vision-demo/internal/pipeline"
	"github.com/lukaszchomatek/aji-vision-demo/internal/router"
	"github.com/lukaszchomatek/aji-vision-demo/internal/server"
	"github.com/lukaszchomatek/aji-vision-demo/internal/server/handler"
	"github.com/lukaszchomatek/aji-vision-demo/internal/session"
	"github.com/lukaszchomatek/aji-vision-demo/internal/worker"
	"github.com/samber/do"
)

func Setup(cfg *config.Config) *do.Injector {
	injector := do.NewWithOpts(&do.InjectorOpts{
		Logf: func(format string, args ...any) {
			logger.Debug(fmt.Sprintf(format, args...))
		},
	})
	do.ProvideValue[*config.Config](injector, cfg)
	do.ProvideValue[*http.Client](injector, http.DefaultClient)

	do.Provide[backend.Prober](injector, func(i *do.Injector) (backend.Prober, error) {
		return backend.NewDeviceProber(cfg.Backend.GPU), nil
	})
	do.Provide[*ollama.Client](injector, func(i *do.Injector) (*ollama.Client, error) {
		return ollama.NewClient(cfg.Ollama.URL, do.MustInvoke[*http.Client](i)), nil
	})
	do.Provide[pipeline.Loader](injector, func(i *do.Injector) (pipeline.Loader, error) {
		return ollama.NewLoader(do.MustInvoke[*ollama.Client](i), cfg.Ollama), nil
	})
	do.Provide[*worker.Worker](injector, func(i *do.Injector) (*worker.Worker, error) {
		return worker.New(do.MustInvoke[backend.Prober](i), do.MustInvoke[pipeline.Loader](i)), nil
	})
	do.Provide[*events.Hub](injector, func(i *do.Injector) (*events.Hub, error) {
		return events.NewHub(), nil
	})
	do.Provide[*router.Router](injector, func(i *do.Injector) (*router.Router, error) {
		w := do.MustInvoke[*worker.Worker](i)
		return router.New(w.Inbox(), w.Outbox(), do.MustInvoke[*events.Hub](i), cfg.Worker.RequestTimeout), nil
	})
	do.Provide[*history.Store](injector, func(i *do.Injector) (*history.Store, error) {
		return history.Open(cfg.History.Path)
	})
	do.Provide[*session.Session](injector, func(i *do.Injector) (*session.Session, error) {
		store, err := do.Invoke[*history.Store](i)
		if err != nil {
			return nil, err
		}
		return session.New(do.MustInvoke[*router.Router](i), store, cfg.Image, cfg.History.Limit), nil
	})
	do.Provide[*handler.Handler](injector, handler.NewHandler)
	do.Provide[*gin.Engine](injector, func(i *do.Injector) (*gin.Engine, error) {
		return server.InitRouter(cfg.Server, do.MustInvoke[*handler.Handler](i)), nil
	})

	return injector
}
