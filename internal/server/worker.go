package server

import (
	"context"
	"errors"
	"net"

	"github.com/google/uuid"

	"github.com/retailcore/posd/internal/metrics"
	"github.com/retailcore/posd/internal/protocol"
	"github.com/retailcore/posd/pkg/logger"
)

// worker serves one client connection: read a frame, dispatch, write the
// response, repeat. Requests on a connection are strictly sequential.
type worker struct {
	conn   net.Conn
	router *Router
	log    *logger.Logger
}

func newWorker(conn net.Conn, router *Router, log *logger.Logger) *worker {
	connID := uuid.NewString()
	return &worker{
		conn:   conn,
		router: router,
		log: log.WithField("conn_id", connID).
			WithField("remote", conn.RemoteAddr().String()),
	}
}

// serve runs until the peer disconnects, the protocol is violated or ctx is
// cancelled. The caller closes the connection.
func (w *worker) serve(ctx context.Context) {
	w.log.Debug("connection open")
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("connection closing on shutdown")
			return
		default:
		}

		payload, err := protocol.ReadFrame(w.conn)
		if err != nil {
			if errors.Is(err, protocol.ErrPeerClosed) {
				w.log.Debug("peer disconnected")
			} else if errors.Is(err, protocol.ErrProtocol) {
				metrics.ProtocolError()
				w.log.WithError(err).Warn("protocol violation, dropping connection")
			} else {
				w.log.WithError(err).Debug("read failed")
			}
			return
		}

		resp := w.handle(ctx, payload)
		if err := w.write(resp); err != nil {
			w.log.WithError(err).Debug("write failed")
			return
		}
	}
}

// handle turns one raw payload into a response. Malformed JSON gets an error
// response rather than a dropped connection; the framing was still intact.
func (w *worker) handle(ctx context.Context, payload []byte) *protocol.Response {
	req, err := protocol.DecodeRequest(payload)
	if err != nil {
		w.log.WithError(err).Warn("malformed request")
		return protocol.Errorf("", "Invalid request format")
	}
	return w.router.Dispatch(ctx, req)
}

func (w *worker) write(resp *protocol.Response) error {
	payload, err := resp.Encode()
	if err != nil {
		return err
	}
	return protocol.WriteFrame(w.conn, payload)
}
