package session

import (
	"context"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/lukaszchomatek/aji-vision-demo/internal/history"
	"github.com/lukaszchomatek/aji-vision-demo/internal/imaging"
	"github.com/lukaszchomatek/aji-vision-demo/internal/logger"
	"github.com/lukaszchomatek/aji-vision-demo/internal/model"
	"github.com/samber/lo"
)

const (
	NoImageCaption    = "Select an image first."
	ReadyCaption      = "Ready to generate a caption."
	GeneratingCaption = "Generating caption…"
	NoTimeLabel       = "–"
)

var (
	ErrNoImage = fmt.Errorf("no image selected")
	ErrBusy    = fmt.Errorf("generation already in progress")
)

// Sender delivers a generate message to the worker and waits for its result.
type Sender interface {
	Send(ctx context.Context, msg model.Message) (*model.ResultPayload, error)
}

type HistoryStore interface {
	Put(ctx context.Context, item model.HistoryItem) error
	List(ctx context.Context) ([]model.HistoryItem, error)
	Clear(ctx context.Context) error
}

// GenerationError carries the caption shown for a failed generation.
type GenerationError struct {
	Caption string
	Err     error
}

func (e *GenerationError) Error() string {
	return e.Caption
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Session is the state behind one caption UI: the selected image, the last outcome and the in-flight flag.
// The lock is never held across a worker round-trip.
type Session struct {
	sender       Sender
	store        HistoryStore
	imageConfig  imaging.Config
	historyLimit int
	now          func() time.Time

	lock      sync.Mutex
	image     *imaging.Prepared
	busy      bool
	caption   string
	timeLabel string
}

func New(sender Sender, store HistoryStore, imageConfig imaging.Config, historyLimit int) *Session {
	return &Session{
		sender:       sender,
		store:        store,
		imageConfig:  imageConfig,
		historyLimit: historyLimit,
		now:          time.Now,
		timeLabel:    NoTimeLabel,
	}
}

// SelectImage replaces the current image. A failed decode keeps the previous one.
func (s *Session) SelectImage(r io.Reader, name string) (*model.ImagePreview, error) {
	prepared, err := imaging.Prepare(r, name, s.imageConfig)
	if err != nil {
		return nil, err
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	s.image = prepared
	s.caption = ReadyCaption
	s.timeLabel = NoTimeLabel
	logger.Infof("image %s selected (%dx%d, %d KB)", name, prepared.Preview.Width, prepared.Preview.Height, prepared.Preview.SizeKB)
	return &prepared.Preview, nil
}

// begin checks, in order, for an image, valid options and an idle session.
func (s *Session) begin(options model.Options) (*imaging.Prepared, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.image == nil {
		s.caption = NoImageCaption
		return nil, &GenerationError{Caption: NoImageCaption, Err: ErrNoImage}
	}
	if err := options.Validate(); err != nil {
		return nil, err
	}
	if s.busy {
		return nil, ErrBusy
	}
	s.busy = true
	s.caption = GeneratingCaption
	s.timeLabel = NoTimeLabel
	return s.image, nil
}

func (s *Session) finish(caption, timeLabel string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.busy = false
	s.caption = caption
	s.timeLabel = timeLabel
}

// Generate runs one or two passes over the selected image and records the outcome in history.
// Passes are sequential, the second one measures a warm pipeline.
func (s *Session) Generate(ctx context.Context, request model.GenerationRequest) (response *model.GenerationResponse, err error) {
	image, err := s.begin(request.Options)
	if err != nil {
		return
	}
	caption, timeLabel := "", NoTimeLabel
	defer func() {
		s.finish(caption, timeLabel)
	}()

	fail := func(cause error) error {
		caption = fmt.Sprintf("Generation failed: %s", cause)
		logger.Warnf("generation failed: %s", cause)
		return &GenerationError{Caption: caption, Err: cause}
	}

	options := request.Options
	passes := lo.Ternary(request.TwoPass, 2, 1)
	timings := make([]float64, 0, passes)
	var result *model.ResultPayload
	for i := 0; i < passes; i++ {
		result, err = s.sender.Send(ctx, model.Message{
			Type:              model.MessageTypeGenerate,
			Image:             image.Data,
			Options:           &options,
			BackendPreference: request.BackendPreference,
		})
		if err != nil {
			return nil, fail(err)
		}
		timings = append(timings, result.TimeMs)
	}

	item := history.NewItem(s.now(), result.Caption, TimeLabel(timings), lo.Ternary(request.StoreThumbnail, image.Thumbnail, ""))
	if err = s.store.Put(ctx, item); err != nil {
		return nil, fail(err)
	}
	items, err := s.store.List(ctx)
	if err != nil {
		return nil, fail(err)
	}

	caption, timeLabel = item.Caption, item.TimeLabel
	response = &model.GenerationResponse{
		Status:    "completed",
		Caption:   caption,
		TimeLabel: timeLabel,
		Backend:   result.Backend,
		History:   history.Recent(items, s.historyLimit),
	}
	return
}

// TimeLabel formats one measurement as "<t> ms" and two as a cold/warm pair.
func TimeLabel(timings []float64) string {
	switch len(timings) {
	case 0:
		return NoTimeLabel
	case 1:
		return fmt.Sprintf("%.0f ms", math.Round(timings[0]))
	}
	return fmt.Sprintf("cold %.0f ms / warm %.0f ms", math.Round(timings[0]), math.Round(timings[1]))
}

// History returns the display list.
func (s *Session) History(ctx context.Context) ([]model.HistoryItem, error) {
	items, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	return history.Recent(items, s.historyLimit), nil
}

func (s *Session) ClearHistory(ctx context.Context) error {
	return s.store.Clear(ctx)
}

// State reports the session part of the UI state.
func (s *Session) State() model.StateResponse {
	s.lock.Lock()
	defer s.lock.Unlock()
	return model.StateResponse{
		HasImage:  s.image != nil,
		Busy:      s.busy,
		Caption:   s.caption,
		TimeLabel: s.timeLabel,
	}
}
