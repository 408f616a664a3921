package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lukaszchomatek/aji-vision-demo/internal/backend"
	"github.com/lukaszchomatek/aji-vision-demo/internal/model"
	"github.com/lukaszchomatek/aji-vision-demo/internal/utils"
)

type describeForm struct {
	MaxNewTokens   *int     `form:"maxNewTokens"`
	Temperature    *float64 `form:"temperature"`
	NumBeams       *int     `form:"numBeams"`
	Backend        string   `form:"backend"`
	TwoPass        bool     `form:"twoPass"`
	StoreThumbnail bool     `form:"storeThumbnail"`
}

func (f describeForm) request() model.GenerationRequest {
	req := model.GenerationRequest{
		Options:           model.DefaultOptions(),
		BackendPreference: backend.ParsePreference(f.Backend),
		TwoPass:           f.TwoPass,
		StoreThumbnail:    f.StoreThumbnail,
	}
	if f.MaxNewTokens != nil {
		req.Options.MaxNewTokens = *f.MaxNewTokens
	}
	if f.Temperature != nil {
		req.Options.Temperature = *f.Temperature
	}
	if f.NumBeams != nil {
		req.Options.NumBeams = *f.NumBeams
	}
	return req
}

// Describe selects the uploaded image and captions it in one request.
func (h *Handler) Describe(c *gin.Context) {
	var form describeForm
	if err := c.ShouldBind(&form); err != nil {
		utils.GinFailedWithMessage(c, http.StatusBadRequest, err.Error())
		return
	}
	if _, ok := h.selectImage(c); !ok {
		return
	}
	h.generate(c, form.request())
}
