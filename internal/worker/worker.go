package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lukaszchomatek/aji-vision-demo/internal/backend"
	"github.com/lukaszchomatek/aji-vision-demo/internal/logger"
	"github.com/lukaszchomatek/aji-vision-demo/internal/model"
	"github.com/lukaszchomatek/aji-vision-demo/internal/pipeline"
)

const EmptyCaption = "(no result)"

var (
	ErrNoImage        = fmt.Errorf("no image in generate request")
	ErrUnknownMessage = fmt.Errorf("unknown message type")
)

// Worker owns the pipeline cache. Everything else talks to it through Inbox and Outbox.
type Worker struct {
	WorkerId string

	inbox  chan model.Message
	outbox chan model.Message

	prober backend.Prober
	cache  *pipeline.Cache

	// set for the lifetime of Run, used by cache hooks to emit status messages
	ctx context.Context

	logger *logger.CustomLogger
}

func New(prober backend.Prober, loader pipeline.Loader) *Worker {
	workerId := uuid.New().String()
	w := &Worker{
		WorkerId: workerId,
		inbox:    make(chan model.Message, 16),
		outbox:   make(chan model.Message, 64),
		prober:   prober,
		logger:   logger.NewCustomLogger().With("workerId", workerId),
		ctx:      context.Background(),
	}
	w.cache = pipeline.NewCache(loader, pipeline.Hooks{
		OnLoading:  w.onLoading,
		OnProgress: w.onProgress,
		OnReady:    w.onReady,
	})
	return w
}

func (w *Worker) Inbox() chan<- model.Message {
	return w.inbox
}

func (w *Worker) Outbox() <-chan model.Message {
	return w.outbox
}

// Run handles messages one at a time until ctx ends, then releases the pipeline and closes the outbox.
func (w *Worker) Run(ctx context.Context) error {
	w.ctx = ctx
	defer close(w.outbox)
	defer w.cache.Close()
	w.logger.Infof("worker started")
	for {
		select {
		case <-ctx.Done():
			w.logger.Infof("worker stopped")
			return nil
		case msg := <-w.inbox:
			w.handle(ctx, msg)
		}
	}
}

func (w *Worker) handle(ctx context.Context, msg model.Message) {
	w.logger.Debugf("receive %s message, id: %d", msg.Type, msg.ID)
	switch msg.Type {
	case model.MessageTypeProbe:
		w.emit(model.Message{
			Type:    model.MessageTypeBackend,
			Payload: model.BackendPayload{Message: backend.Hint(w.prober.GPUAvailable())},
		})
	case model.MessageTypeGenerate:
		result, err := w.generate(ctx, msg)
		if err != nil {
			w.logger.Warnf("generate request %d failed: %s", msg.ID, err)
			w.emit(model.NewError(msg.ID, err))
			return
		}
		w.emit(model.NewResult(msg.ID, result))
	default:
		w.logger.Warnf("found unknown message type: %s", msg.Type)
		if msg.ID != 0 {
			w.emit(model.NewError(msg.ID, fmt.Errorf("%w: %s", ErrUnknownMessage, msg.Type)))
		}
	}
}

func (w *Worker) generate(ctx context.Context, msg model.Message) (result model.ResultPayload, err error) {
	if len(msg.Image) == 0 {
		err = ErrNoImage
		return
	}
	options := model.DefaultOptions()
	if msg.Options != nil {
		options = *msg.Options
	}
	if err = options.Validate(); err != nil {
		return
	}
	b := backend.Resolve(msg.BackendPreference, w.prober.GPUAvailable())
	p, err := w.cache.Ensure(ctx, b)
	if err != nil {
		return
	}
	if options.NumBeams > 1 {
		w.logger.Debugf("request %d asks for %d beams", msg.ID, options.NumBeams)
	}
	start := time.Now()
	caption, err := p.Caption(ctx, msg.Image, options)
	if err != nil {
		return
	}
	elapsed := float64(time.Since(start).Microseconds()) / 1000
	if caption == "" {
		caption = EmptyCaption
	}
	w.logger.Infof("request %d captioned on %s in %.0f ms", msg.ID, b, elapsed)
	result = model.ResultPayload{
		Caption: caption,
		TimeMs:  elapsed,
		Backend: b,
	}
	return
}

func (w *Worker) emit(msg model.Message) {
	select {
	case w.outbox <- msg:
	case <-w.ctx.Done():
	}
}

func progress(v float64) *float64 {
	return &v
}

func (w *Worker) onLoading(b backend.Backend) {
	w.emit(model.NewStatus(fmt.Sprintf("Loading model (%s)…", b), progress(0)))
}

func (w *Worker) onProgress(b backend.Backend, p pipeline.Progress) {
	switch p.Status {
	case pipeline.ProgressStatusProgress:
		w.emit(model.NewStatus(fmt.Sprintf("Downloading model (%s)", b), progress(p.Fraction)))
	case pipeline.ProgressStatusDone:
		w.emit(model.NewStatus(fmt.Sprintf("Model ready (%s).", b), progress(1)))
	}
}

func (w *Worker) onReady(b backend.Backend) {
	w.emit(model.Message{Type: model.MessageTypeReady, Payload: model.ReadyPayload{Backend: b}})
}
