package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retailcore/posd/internal/metrics"
	"github.com/retailcore/posd/internal/protocol"
)

func TestDispatchRoutesToHandler(t *testing.T) {
	r := NewRouter(nil)
	r.Register("PING", func(_ context.Context, req *protocol.Request) (*protocol.Response, error) {
		return protocol.OK("pong", "Success", req.RequestID), nil
	})

	resp := r.Dispatch(context.Background(), &protocol.Request{Action: "PING", RequestID: "r1"})
	require.True(t, resp.Success)
	assert.Equal(t, "pong", resp.Data)
	assert.Equal(t, "r1", resp.RequestID)
}

func TestDispatchUnknownAction(t *testing.T) {
	r := NewRouter(nil)

	resp := r.Dispatch(context.Background(), &protocol.Request{Action: "MAKE_COFFEE", RequestID: "r1"})
	assert.False(t, resp.Success)
	assert.Equal(t, "Unknown action: MAKE_COFFEE", resp.Message)
	assert.Equal(t, "r1", resp.RequestID)
}

func TestDispatchConvertsHandlerError(t *testing.T) {
	r := NewRouter(nil)
	r.Register("BOOM", func(context.Context, *protocol.Request) (*protocol.Response, error) {
		return nil, errors.New("db gone")
	})

	resp := r.Dispatch(context.Background(), &protocol.Request{Action: "BOOM", RequestID: "r1"})
	assert.False(t, resp.Success)
	assert.Equal(t, "Internal server error", resp.Message)
}

func TestDispatchRecoversPanic(t *testing.T) {
	r := NewRouter(nil)
	r.Register("PANIC", func(context.Context, *protocol.Request) (*protocol.Response, error) {
		panic("nil map write")
	})

	resp := r.Dispatch(context.Background(), &protocol.Request{Action: "PANIC", RequestID: "r1"})
	require.NotNil(t, resp)
	assert.False(t, resp.Success)
	assert.Equal(t, "Internal server error", resp.Message)
}

func TestDispatchNilHandlerResponse(t *testing.T) {
	r := NewRouter(nil)
	r.Register("VOID", func(context.Context, *protocol.Request) (*protocol.Response, error) {
		return nil, nil
	})

	resp := r.Dispatch(context.Background(), &protocol.Request{Action: "VOID", RequestID: "r1"})
	require.NotNil(t, resp)
	assert.False(t, resp.Success)
	assert.Equal(t, "Internal server error", resp.Message)
	assert.Equal(t, "r1", resp.RequestID)
}

func TestDispatchUnknownActionMetricLabel(t *testing.T) {
	r := NewRouter(nil)
	r.Dispatch(context.Background(), &protocol.Request{Action: "CARDINALITY_BOMB_0001", RequestID: "r1"})
	r.Dispatch(context.Background(), &protocol.Request{Action: "CARDINALITY_BOMB_0002", RequestID: "r2"})

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()

	assert.Contains(t, body, `action="unknown"`)
	assert.NotContains(t, body, "CARDINALITY_BOMB")
}

func TestRegisterDuplicatePanics(t *testing.T) {
	r := NewRouter(nil)
	h := func(context.Context, *protocol.Request) (*protocol.Response, error) { return nil, nil }
	r.Register("X", h)
	assert.Panics(t, func() { r.Register("X", h) })
}
