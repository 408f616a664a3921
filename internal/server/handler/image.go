package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lukaszchomatek/aji-vision-demo/internal/imaging"
	"github.com/lukaszchomatek/aji-vision-demo/internal/model"
	"github.com/lukaszchomatek/aji-vision-demo/internal/utils"
)

func imageErrorStatus(err error) int {
	if errors.Is(err, imaging.ErrImageTooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

func (h *Handler) selectImage(c *gin.Context) (preview *model.ImagePreview, ok bool) {
	file, err := c.FormFile("image")
	if err != nil {
		utils.GinFailedWithMessage(c, http.StatusBadRequest, err.Error())
		return nil, false
	}
	f, err := file.Open()
	if err != nil {
		utils.GinFailedWithMessage(c, http.StatusBadRequest, err.Error())
		return nil, false
	}
	defer f.Close()

	preview, err = h.session.SelectImage(f, file.Filename)
	if err != nil {
		utils.GinFailedWithMessage(c, imageErrorStatus(err), err.Error())
		return nil, false
	}
	return preview, true
}

// SelectImage replaces the current image with the uploaded one.
func (h *Handler) SelectImage(c *gin.Context) {
	preview, ok := h.selectImage(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, preview)
}
