package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	payloads := [][]byte{
		[]byte(`{}`),
		[]byte(`{"action":"LOGIN","requestId":"r1"}`),
		bytes.Repeat([]byte("x"), MaxFrameSize),
	}
	for _, payload := range payloads {
		frame, err := EncodeFrame(payload)
		if err != nil {
			t.Fatalf("encode %d bytes: %v", len(payload), err)
		}
		if len(frame) != 4+len(payload) {
			t.Fatalf("frame length %d, want %d", len(frame), 4+len(payload))
		}
		got, err := ReadFrame(bytes.NewReader(frame))
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !bytes.Equal(got, payload) {
			t.Fatalf("round trip mismatch: got %d bytes, want %d", len(got), len(payload))
		}
	}
}

func TestReadFramePeerClosed(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader(nil))
	if !errors.Is(err, ErrPeerClosed) {
		t.Fatalf("empty stream: got %v, want ErrPeerClosed", err)
	}
}

func TestReadFrameTruncatedPrefix(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader([]byte{0x01, 0x02}))
	if !errors.Is(err, ErrProtocol) {
		t.Fatalf("short prefix: got %v, want ErrProtocol", err)
	}
}

func TestReadFrameOversizeLength(t *testing.T) {
	var header [4]byte
	binary.LittleEndian.PutUint32(header[:], 100000)
	_, err := ReadFrame(bytes.NewReader(header[:]))
	if !errors.Is(err, ErrProtocol) {
		t.Fatalf("oversize length: got %v, want ErrProtocol", err)
	}
}

func TestReadFrameZeroLength(t *testing.T) {
	var header [4]byte
	_, err := ReadFrame(bytes.NewReader(header[:]))
	if !errors.Is(err, ErrProtocol) {
		t.Fatalf("zero length: got %v, want ErrProtocol", err)
	}
}

func TestReadFrameNegativeLength(t *testing.T) {
	// A client writing a signed -1 arrives as 0xFFFFFFFF.
	var header [4]byte
	binary.LittleEndian.PutUint32(header[:], 0xFFFFFFFF)
	_, err := ReadFrame(bytes.NewReader(header[:]))
	if !errors.Is(err, ErrProtocol) {
		t.Fatalf("negative length: got %v, want ErrProtocol", err)
	}
}

func TestReadFrameTruncatedPayload(t *testing.T) {
	var buf bytes.Buffer
	var header [4]byte
	binary.LittleEndian.PutUint32(header[:], 10)
	buf.Write(header[:])
	buf.WriteString("short")
	_, err := ReadFrame(&buf)
	if !errors.Is(err, ErrProtocol) {
		t.Fatalf("truncated payload: got %v, want ErrProtocol", err)
	}
}

func TestEncodeFrameRejectsEmptyPayload(t *testing.T) {
	if _, err := EncodeFrame(nil); err == nil {
		t.Fatal("expected error for empty payload")
	}
}

// The cap is read-side only; responses larger than MaxFrameSize (big result
// sets) must still encode and carry the true length.
func TestEncodeFrameAboveReadCap(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), 3*MaxFrameSize)
	frame, err := EncodeFrame(payload)
	if err != nil {
		t.Fatalf("encode %d bytes: %v", len(payload), err)
	}
	if len(frame) != 4+len(payload) {
		t.Fatalf("frame length %d, want %d", len(frame), 4+len(payload))
	}
	if got := binary.LittleEndian.Uint32(frame[:4]); got != uint32(len(payload)) {
		t.Fatalf("length prefix %d, want %d", got, len(payload))
	}
	if !bytes.Equal(frame[4:], payload) {
		t.Fatal("payload corrupted")
	}
}

func TestWriteFrameSingleWrite(t *testing.T) {
	w := &writeCounter{}
	if err := WriteFrame(w, []byte(`{"success":true}`)); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	if w.calls != 1 {
		t.Fatalf("frame written in %d calls, want 1", w.calls)
	}
}

type writeCounter struct {
	calls int
	buf   bytes.Buffer
}

func (w *writeCounter) Write(p []byte) (int, error) {
	w.calls++
	return w.buf.Write(p)
}

var _ io.Writer = (*writeCounter)(nil)
