package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lukaszchomatek/aji-vision-demo/internal/backend"
	"github.com/lukaszchomatek/aji-vision-demo/internal/logger"
	"github.com/lukaszchomatek/aji-vision-demo/internal/model"
	"github.com/lukaszchomatek/aji-vision-demo/internal/router"
	"github.com/lukaszchomatek/aji-vision-demo/internal/session"
	"github.com/lukaszchomatek/aji-vision-demo/internal/utils"
)

func (h *Handler) generate(c *gin.Context, req model.GenerationRequest) {
	req.BackendPreference = backend.ParsePreference(string(req.BackendPreference))

	resp, err := h.session.Generate(c.Request.Context(), req)
	if err != nil {
		var generationErr *session.GenerationError
		switch {
		case errors.Is(err, model.ErrInvalidOptions):
			utils.GinFailedWithMessage(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, session.ErrBusy):
			utils.GinFailedWithMessage(c, http.StatusConflict, err.Error())
		case errors.Is(err, session.ErrNoImage):
			utils.GinFailedWithCaption(c, http.StatusBadRequest, session.ErrNoImage.Error(), session.NoImageCaption)
		case errors.Is(err, router.ErrRequestTimeout) && errors.As(err, &generationErr):
			utils.GinFailedWithCaption(c, http.StatusGatewayTimeout, "timeout", generationErr.Caption)
		case errors.As(err, &generationErr):
			utils.GinFailedWithCaption(c, http.StatusBadGateway, generationErr.Err.Error(), generationErr.Caption)
		default:
			utils.GinFailedWithMessage(c, http.StatusInternalServerError, err.Error())
		}
		return
	}
	logger.Infof("caption generated: %q (%s)", resp.Caption, resp.TimeLabel)
	c.JSON(http.StatusOK, resp)
}

// Generate captions the current image. An empty body uses the default options.
func (h *Handler) Generate(c *gin.Context) {
	req := model.GenerationRequest{Options: model.DefaultOptions()}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		utils.GinFailedWithMessage(c, http.StatusBadRequest, err.Error())
		return
	}
	h.generate(c, req)
}
