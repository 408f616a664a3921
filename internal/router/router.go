package router

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lukaszchomatek/aji-vision-demo/internal/logger"
	"github.com/lukaszchomatek/aji-vision-demo/internal/model"
)

var (
	ErrRequestTimeout = fmt.Errorf("request timed out")
	ErrRouterClosed   = fmt.Errorf("worker connection closed")
)

// WorkerError is a rejection sent back by the worker.
type WorkerError struct {
	RequestId int64
	Message   string
}

func (e *WorkerError) Error() string {
	return e.Message
}

// Publisher receives messages that do not settle a request.
type Publisher interface {
	Publish(model.Message)
}

type settlement struct {
	result *model.ResultPayload
	err    error
}

// Router correlates generate requests with worker replies by id.
// Each pending entry is settled at most once and removed when settled or abandoned.
type Router struct {
	to        chan<- model.Message
	from      <-chan model.Message
	publisher Publisher
	timeout   time.Duration

	requestId atomic.Int64

	lock    sync.Mutex
	pending map[int64]chan settlement
	closed  bool
}

// New wires a router to a worker's inbox and outbox. timeout 0 waits as long as the caller's context.
func New(to chan<- model.Message, from <-chan model.Message, publisher Publisher, timeout time.Duration) *Router {
	return &Router{
		to:        to,
		from:      from,
		publisher: publisher,
		timeout:   timeout,
		pending:   make(map[int64]chan settlement),
	}
}

// Send assigns a fresh id to msg, hands it to the worker and waits for the matching reply.
func (r *Router) Send(ctx context.Context, msg model.Message) (*model.ResultPayload, error) {
	id := r.requestId.Add(1)
	msg.ID = id
	c := make(chan settlement, 1)

	r.lock.Lock()
	if r.closed {
		r.lock.Unlock()
		return nil, ErrRouterClosed
	}
	r.pending[id] = c
	r.lock.Unlock()

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	select {
	case r.to <- msg:
	case <-ctx.Done():
		r.abandon(id)
		return nil, r.contextError(ctx)
	}

	select {
	case s := <-c:
		return s.result, s.err
	case <-ctx.Done():
		r.abandon(id)
		logger.Warnf("request %d abandoned: %s", id, ctx.Err())
		return nil, r.contextError(ctx)
	}
}

// Post sends a message that expects no correlated reply.
func (r *Router) Post(ctx context.Context, msg model.Message) error {
	select {
	case r.to <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Router) contextError(ctx context.Context) error {
	if ctx.Err() == context.DeadlineExceeded {
		return ErrRequestTimeout
	}
	return ctx.Err()
}

func (r *Router) abandon(id int64) {
	r.lock.Lock()
	defer r.lock.Unlock()
	delete(r.pending, id)
}

// Run dispatches worker messages until the worker closes its outbox or ctx ends.
// Pending requests left at that point are rejected with ErrRouterClosed.
func (r *Router) Run(ctx context.Context) error {
	defer r.close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-r.from:
			if !ok {
				return nil
			}
			r.dispatch(msg)
		}
	}
}

func (r *Router) dispatch(msg model.Message) {
	if !msg.Correlated() {
		if r.publisher != nil {
			r.publisher.Publish(msg)
		}
		return
	}
	r.lock.Lock()
	c, exist := r.pending[msg.ID]
	if exist {
		delete(r.pending, msg.ID)
	}
	r.lock.Unlock()
	if !exist {
		logger.Debugf("dropping %s for unknown request %d", msg.Type, msg.ID)
		return
	}
	c <- settle(msg)
}

func settle(msg model.Message) settlement {
	switch payload := msg.Payload.(type) {
	case model.ResultPayload:
		if msg.Type == model.MessageTypeResult {
			return settlement{result: &payload}
		}
	case model.ErrorPayload:
		return settlement{err: &WorkerError{RequestId: msg.ID, Message: payload.Message}}
	}
	return settlement{err: &WorkerError{RequestId: msg.ID, Message: fmt.Sprintf("malformed %s reply", msg.Type)}}
}

func (r *Router) close() {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.closed = true
	for id, c := range r.pending {
		c <- settlement{err: ErrRouterClosed}
		delete(r.pending, id)
	}
}

// Pending is the number of requests waiting for a reply.
func (r *Router) Pending() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return len(r.pending)
}
