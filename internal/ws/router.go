package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"chatrelay/internal/relay"
)

// internal (untyped) handler signature.
type rawHandler func(ctx context.Context, s *relay.Session, body json.RawMessage) error

var errUnknownEvent = errors.New("unknown_event")

// Router keeps a map[event]handler, à-la gin.Engine. The protocol has no
// acks, so handlers only return an error for the reader to log.
type Router struct {
	mu       sync.RWMutex
	handlers map[string]rawHandler
}

func NewRouter() *Router { return &Router{handlers: make(map[string]rawHandler)} }

// Register binds an event to a strongly-typed handler.
func Register[Req any](
	r *Router,
	event string,
	h func(ctx context.Context, s *relay.Session, req Req) error,
) {
	if event == "" {
		panic("ws router: empty event")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers[event] = func(ctx context.Context, s *relay.Session, body json.RawMessage) error {
		var req Req
		if len(body) > 0 {
			if err := json.Unmarshal(body, &req); err != nil {
				return err
			}
		}
		return h(ctx, s, req)
	}
}

// dispatch is called by the server's reader loop.
func (r *Router) dispatch(ctx context.Context, s *relay.Session, env relay.Envelope) error {
	r.mu.RLock()
	h, ok := r.handlers[env.Event]
	r.mu.RUnlock()
	if !ok {
		return errUnknownEvent
	}
	return h(ctx, s, env.Body)
}
