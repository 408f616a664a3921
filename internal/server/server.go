package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/lukaszchomatek/aji-vision-demo/internal/config"
	"github.com/lukaszchomatek/aji-vision-demo/internal/logger"
	"github.com/lukaszchomatek/aji-vision-demo/internal/server/handler"
)

const shutdownTimeout = 5 * time.Second

// Start serves until ctx ends, then shuts the server down gracefully.
func Start(ctx context.Context, addr string, router *gin.Engine) error {
	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Infof("caption service available at http://%s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Infof("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("server shutdown failed: %s", err)
			return err
		}
		logger.Infof("server stopped")
		return nil
	case err := <-serverErr:
		return err
	}
}

func PermissionCheckMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestKey := c.GetHeader("API-KEY")
		if requestKey != apiKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"message": "Invalid API key",
			})
			return
		}
		c.Next()
	}
}

func InitRouter(serverConfig config.ServerConfig, h *handler.Handler) *gin.Engine {
	router := gin.New()
	router.Use(ginzap.RecoveryWithZap(logger.ZapLogger, true))
	router.Use(ginzap.Ginzap(logger.ZapLogger, time.RFC3339Nano, true))
	router.Use(cors.Default())
	if serverConfig.Pprof {
		pprof.Register(router)
	}

	router.GET("/healthcheck", h.Healthcheck)

	apiGroup := router.Group("")
	if serverConfig.ApiKey != "" {
		apiGroup.Use(PermissionCheckMiddleware(serverConfig.ApiKey))
	}
	apiGroup.POST("/image", h.SelectImage)
	apiGroup.POST("/generate", h.Generate)
	apiGroup.POST("/describe", h.Describe)
	apiGroup.POST("/probe", h.Probe)
	apiGroup.GET("/state", h.State)
	apiGroup.GET("/events", h.Events)

	apiGroup.GET("/history", h.ListHistory)
	apiGroup.DELETE("/history", h.ClearHistory)
	apiGroup.GET("/history/feed", h.HistoryFeed)
	apiGroup.GET("/history/export", h.ExportHistory)
	return router
}
