// Package protocol implements the length-prefixed wire format spoken between
// store terminals and the server: a 4-byte little-endian length followed by a
// UTF-8 JSON payload, symmetric for requests and responses.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MaxFrameSize caps the payload of a single inbound frame. A declared length
// above this is a protocol violation and the connection is closed. The cap is
// read-side only: responses grow with result sets (a full catalog, an order
// with many lines) and are written at whatever size they come out.
const MaxFrameSize = 8192

// headerSize is the fixed length prefix in bytes.
const headerSize = 4

// ErrPeerClosed reports that the remote side closed the connection cleanly
// at a frame boundary. It is a normal termination, not a protocol violation.
var ErrPeerClosed = errors.New("peer closed connection")

// ErrProtocol is the class of unrecoverable framing errors. Errors returned
// by ReadFrame either are ErrPeerClosed or wrap ErrProtocol; after an
// ErrProtocol the stream cannot be trusted and must be closed without a
// response.
var ErrProtocol = errors.New("protocol violation")

// ReadFrame blocks until one complete frame is available on r and returns
// its payload.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrPeerClosed
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: truncated length prefix", ErrProtocol)
		}
		return nil, err
	}

	length := binary.LittleEndian.Uint32(header[:])
	if length == 0 || length > MaxFrameSize {
		return nil, fmt.Errorf("%w: declared length %d outside (0, %d]", ErrProtocol, length, MaxFrameSize)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: truncated payload, wanted %d bytes", ErrProtocol, length)
		}
		return nil, err
	}
	return payload, nil
}

// EncodeFrame prepends the length prefix to payload and returns the complete
// frame ready for a single write.
func EncodeFrame(payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: refusing to encode empty payload", ErrProtocol)
	}

	frame := make([]byte, headerSize+len(payload))
	binary.LittleEndian.PutUint32(frame[:headerSize], uint32(len(payload)))
	copy(frame[headerSize:], payload)
	return frame, nil
}

// WriteFrame encodes payload and writes it to w as one write call so the
// transport never observes a torn frame.
func WriteFrame(w io.Writer, payload []byte) error {
	frame, err := EncodeFrame(payload)
	if err != nil {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}
