package server

import (
	"context"
	"time"

	"github.com/retailcore/posd/internal/metrics"
	"github.com/retailcore/posd/internal/protocol"
	"github.com/retailcore/posd/pkg/logger"
)

// HandlerFunc serves one decoded request. A non-nil error is an internal
// failure; business rejections come back as unsuccessful responses instead.
type HandlerFunc func(ctx context.Context, req *protocol.Request) (*protocol.Response, error)

// Router maps action names to handlers.
type Router struct {
	handlers map[string]HandlerFunc
	log      *logger.Logger
}

// NewRouter constructs an empty router.
func NewRouter(log *logger.Logger) *Router {
	if log == nil {
		log = logger.NewDefault("router")
	}
	return &Router{handlers: make(map[string]HandlerFunc), log: log}
}

// Register binds an action name to its handler. Registering the same action
// twice panics; that is a wiring bug, not a runtime condition.
func (r *Router) Register(action string, h HandlerFunc) {
	if _, dup := r.handlers[action]; dup {
		panic("server: duplicate handler for action " + action)
	}
	r.handlers[action] = h
}

// Dispatch routes one request and always produces a response. Handler panics
// and internal errors are logged and converted to generic error responses so
// a single bad request cannot take the connection down.
func (r *Router) Dispatch(ctx context.Context, req *protocol.Request) (resp *protocol.Response) {
	start := time.Now()
	handler, known := r.handlers[req.Action]

	// Action names are client-controlled; unregistered ones share a single
	// metric label so a hostile terminal cannot inflate cardinality.
	label := req.Action
	if !known {
		label = "unknown"
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.log.WithField("action", req.Action).
				WithField("panic", rec).
				Error("handler panic")
			resp = protocol.Errorf(req.RequestID, "Internal server error")
		}
		if resp == nil {
			// A handler returned (nil, nil); treat it as an internal fault.
			r.log.WithField("action", req.Action).Error("handler returned no response")
			resp = protocol.Errorf(req.RequestID, "Internal server error")
		}
		metrics.ObserveRequest(label, resp.Success, time.Since(start))
	}()

	if !known {
		r.log.WithField("action", req.Action).Warn("unknown action")
		return protocol.Errorf(req.RequestID, "Unknown action: %s", req.Action)
	}

	resp, err := handler(ctx, req)
	if err != nil {
		r.log.WithField("action", req.Action).
			WithError(err).
			Error("handler failed")
		return protocol.Errorf(req.RequestID, "Internal server error")
	}
	return resp
}
