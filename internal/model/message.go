package model

import (
	"fmt"

	"github.com/lukaszchomatek/aji-vision-demo/internal/backend"
)

type MessageType string

const (
	// to worker
	MessageTypeProbe    MessageType = "probe"
	MessageTypeGenerate MessageType = "generate"

	// from worker
	MessageTypeStatus  MessageType = "status"
	MessageTypeBackend MessageType = "backend"
	MessageTypeReady   MessageType = "ready"
	MessageTypeResult  MessageType = "result"
	MessageTypeError   MessageType = "error"
)

var ErrInvalidOptions = fmt.Errorf("invalid generation options")

// Message is the only thing exchanged between the worker and the rest of the process.
// ID is set on generate requests and on their result/error replies.
type Message struct {
	Type MessageType `json:"type"`

	ID int64 `json:"id,omitempty"`

	Image []byte `json:"-"`

	Options *Options `json:"options,omitempty"`

	BackendPreference backend.Preference `json:"backendPreference,omitempty"`

	Payload interface{} `json:"payload,omitempty"`
}

type Options struct {
	MaxNewTokens int `json:"maxNewTokens" mapstructure:"maxNewTokens"`

	Temperature float64 `json:"temperature" mapstructure:"temperature"`

	NumBeams int `json:"numBeams" mapstructure:"numBeams"`
}

func DefaultOptions() Options {
	return Options{
		MaxNewTokens: 32,
		Temperature:  1,
		NumBeams:     1,
	}
}

func (o Options) Validate() error {
	switch {
	case o.MaxNewTokens < 1 || o.MaxNewTokens > 512:
		return fmt.Errorf("%w: maxNewTokens must be within 1..512, got %d", ErrInvalidOptions, o.MaxNewTokens)
	case o.Temperature < 0 || o.Temperature > 2:
		return fmt.Errorf("%w: temperature must be within 0..2, got %.2f", ErrInvalidOptions, o.Temperature)
	case o.NumBeams < 1 || o.NumBeams > 8:
		return fmt.Errorf("%w: numBeams must be within 1..8, got %d", ErrInvalidOptions, o.NumBeams)
	}
	return nil
}

type StatusPayload struct {
	Message string `json:"message"`

	// nil leaves the progress bar where it is
	Progress *float64 `json:"progress"`
}

type BackendPayload struct {
	Message string `json:"message"`
}

type ReadyPayload struct {
	Backend backend.Backend `json:"backend"`
}

type ResultPayload struct {
	Caption string `json:"caption"`

	TimeMs float64 `json:"timeMs"`

	Backend backend.Backend `json:"backend"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

func NewStatus(message string, progress *float64) Message {
	return Message{Type: MessageTypeStatus, Payload: StatusPayload{Message: message, Progress: progress}}
}

func NewResult(id int64, payload ResultPayload) Message {
	return Message{Type: MessageTypeResult, ID: id, Payload: payload}
}

func NewError(id int64, err error) Message {
	return Message{Type: MessageTypeError, ID: id, Payload: ErrorPayload{Message: err.Error()}}
}

// Correlated reports whether the message settles a pending request.
func (m Message) Correlated() bool {
	return m.Type == MessageTypeResult || m.Type == MessageTypeError
}
