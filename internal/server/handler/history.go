package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lukaszchomatek/aji-vision-demo/internal/history"
	"github.com/lukaszchomatek/aji-vision-demo/internal/utils"
)

func (h *Handler) ListHistory(c *gin.Context) {
	items, err := h.session.History(c.Request.Context())
	if err != nil {
		utils.GinFailedWithMessage(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) ClearHistory(c *gin.Context) {
	if err := h.session.ClearHistory(c.Request.Context()); err != nil {
		utils.GinFailedWithMessage(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "completed"})
}

// HistoryFeed serves the display list as RSS.
func (h *Handler) HistoryFeed(c *gin.Context) {
	items, err := h.session.History(c.Request.Context())
	if err != nil {
		utils.GinFailedWithMessage(c, http.StatusInternalServerError, err.Error())
		return
	}
	rss, err := history.Feed(items, fmt.Sprintf("http://%s", c.Request.Host))
	if err != nil {
		utils.GinFailedWithMessage(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.Data(http.StatusOK, "application/rss+xml; charset=utf-8", []byte(rss))
}

// ExportHistory returns the display list as yaml (default) or rss.
func (h *Handler) ExportHistory(c *gin.Context) {
	format := c.DefaultQuery("format", history.FormatYAML)
	items, err := h.session.History(c.Request.Context())
	if err != nil {
		utils.GinFailedWithMessage(c, http.StatusInternalServerError, err.Error())
		return
	}
	data, err := history.Export(items, format)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, history.ErrUnknownFormat) {
			status = http.StatusBadRequest
		}
		utils.GinFailedWithMessage(c, status, err.Error())
		return
	}
	contentType := "application/yaml"
	if format == history.FormatRSS {
		contentType = "application/rss+xml; charset=utf-8"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=caption-history.%s", format))
	c.Data(http.StatusOK, contentType, data)
}
