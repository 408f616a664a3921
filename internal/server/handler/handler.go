package handler

import (
	"context"

	"github.com/lukaszchomatek/aji-vision-demo/internal/events"
	"github.com/lukaszchomatek/aji-vision-demo/internal/model"
	"github.com/lukaszchomatek/aji-vision-demo/internal/router"
	"github.com/lukaszchomatek/aji-vision-demo/internal/session"
	"github.com/samber/do"
)

// Poster sends fire-and-forget messages to the worker.
type Poster interface {
	Post(ctx context.Context, msg model.Message) error
}

type Handler struct {
	session *session.Session
	poster  Poster
	hub     *events.Hub
}

func New(s *session.Session, poster Poster, hub *events.Hub) *Handler {
	return &Handler{session: s, poster: poster, hub: hub}
}

func NewHandler(i *do.Injector) (*Handler, error) {
	return New(
		do.MustInvoke[*session.Session](i),
		do.MustInvoke[*router.Router](i),
		do.MustInvoke[*events.Hub](i),
	), nil
}
