package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lukaszchomatek/aji-vision-demo/internal/logger"
	"github.com/lukaszchomatek/aji-vision-demo/internal/model"
	"github.com/lukaszchomatek/aji-vision-demo/internal/utils"
)

func (h *Handler) state() model.StateResponse {
	state := h.session.State()
	snapshot := h.hub.Snapshot()
	state.Status = snapshot.Status
	state.Progress = snapshot.Progress
	state.BackendHint = snapshot.BackendHint
	state.BackendUsed = snapshot.BackendUsed
	return state
}

func (h *Handler) State(c *gin.Context) {
	c.JSON(http.StatusOK, h.state())
}

// Events streams worker notifications as server-sent events, starting with the current state.
func (h *Handler) Events(c *gin.Context) {
	id, messages, cancel := h.hub.Subscribe()
	defer cancel()
	logger.Debugf("events subscriber %s connected", id)

	c.SSEvent("state", h.state())
	c.Writer.Flush()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case msg, ok := <-messages:
			if !ok {
				return false
			}
			c.SSEvent(string(msg.Type), msg)
			return true
		}
	})
	logger.Debugf("events subscriber %s disconnected", id)
}

// Probe asks the worker for a backend hint, the answer arrives as a backend event.
func (h *Handler) Probe(c *gin.Context) {
	if err := h.poster.Post(c.Request.Context(), model.Message{Type: model.MessageTypeProbe}); err != nil {
		utils.GinFailedWithMessage(c, http.StatusServiceUnavailable, err.Error())
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "pending"})
}

func (h *Handler) Healthcheck(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}
