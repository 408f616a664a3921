package pipeline

import (
	"context"

	"github.com/lukaszchomatek/aji-vision-demo/internal/backend"
	"github.com/lukaszchomatek/aji-vision-demo/internal/model"
)

type ProgressStatus string

const (
	ProgressStatusProgress ProgressStatus = "progress"
	ProgressStatusDone     ProgressStatus = "done"
)

// Progress is reported by a Loader while it builds a pipeline.
type Progress struct {
	Status ProgressStatus

	// 0..1, only meaningful for ProgressStatusProgress
	Fraction float64
}

// Pipeline is a loaded captioning model bound to one backend.
type Pipeline interface {
	Caption(ctx context.Context, image []byte, options model.Options) (string, error)
	Close() error
}

// Loader builds pipelines. Load may take arbitrarily long and reports through progress.
type Loader interface {
	Load(ctx context.Context, b backend.Backend, progress func(Progress)) (Pipeline, error)
}

type LoaderFunc func(ctx context.Context, b backend.Backend, progress func(Progress)) (Pipeline, error)

func (f LoaderFunc) Load(ctx context.Context, b backend.Backend, progress func(Progress)) (Pipeline, error) {
	return f(ctx, b, progress)
}
