package message

import (
	"fmt"
	"io"
	"sync"
)

// readChunk is the minimum free space kept at the end of the accumulation
// buffer before each read.
const readChunk = 4096

// StreamReader splits a TCP byte stream into CITP messages using the
// envelope's message_size. Bytes are accumulated across reads; a message is
// only returned once all of its bytes have arrived, and any trailing partial
// message is kept for the next read.
//
// A StreamReader is not safe for concurrent use.
type StreamReader struct {
	r       io.Reader
	buf     []byte
	start   int // offset of the first unconsumed byte in buf
	maxSize uint32
	err     error
}

// NewStreamReader creates a stream reader with DefaultMaxMessageSize.
func NewStreamReader(r io.Reader) *StreamReader {
	return &StreamReader{r: r, maxSize: DefaultMaxMessageSize}
}

// SetMaxMessageSize changes the largest message_size accepted.
func (sr *StreamReader) SetMaxMessageSize(n uint32) {
	if n < HeaderSize {
		n = HeaderSize
	}
	sr.maxSize = n
}

// Buffered returns the number of bytes read but not yet returned.
func (sr *StreamReader) Buffered() int {
	return len(sr.buf) - sr.start
}

// Fill performs one read from the underlying reader and appends the bytes
// to the buffer. It may block waiting for data.
func (sr *StreamReader) Fill() error {
	if sr.err != nil {
		return sr.err
	}

	// Compact before growing so consumed bytes are not carried forward.
	if sr.start > 0 {
		n := copy(sr.buf, sr.buf[sr.start:])
		sr.buf = sr.buf[:n]
		sr.start = 0
	}
	if cap(sr.buf)-len(sr.buf) < readChunk {
		grown := make([]byte, len(sr.buf), 2*cap(sr.buf)+readChunk)
		copy(grown, sr.buf)
		sr.buf = grown
	}

	n, err := sr.r.Read(sr.buf[len(sr.buf):cap(sr.buf)])
	sr.buf = sr.buf[:len(sr.buf)+n]
	if err != nil {
		sr.err = err
		if n > 0 {
			// Deliver what arrived with the error before reporting it.
			return nil
		}
		return err
	}
	return nil
}

// Next returns the next complete message from the buffer without reading.
// ok is false when no complete message is buffered yet. The returned slice
// is owned by the caller.
//
// An envelope declaring a message_size below HeaderSize or above the
// configured maximum is a protocol violation; the stream cannot be
// resynchronized and every later call returns the same error.
func (sr *StreamReader) Next() (frame []byte, ok bool, err error) {
	pending := sr.buf[sr.start:]
	size, ok := PeekMessageSize(pending)
	if !ok {
		return nil, false, nil
	}
	if size < HeaderSize {
		sr.err = fmt.Errorf("%w: %d", ErrMessageSizeTooSmall, size)
		return nil, false, sr.err
	}
	if size > sr.maxSize {
		sr.err = fmt.Errorf("%w: %d > %d", ErrMessageTooLong, size, sr.maxSize)
		return nil, false, sr.err
	}
	if uint64(len(pending)) < uint64(size) {
		return nil, false, nil
	}

	frame = make([]byte, size)
	copy(frame, pending[:size])
	sr.start += int(size)
	if sr.start == len(sr.buf) {
		sr.buf = sr.buf[:0]
		sr.start = 0
	}
	return frame, true, nil
}

// ReadStep performs one Fill and then hands every complete buffered message
// to dispatch, in arrival order. It returns the first framing or read error.
func (sr *StreamReader) ReadStep(dispatch func(frame []byte)) error {
	fillErr := sr.Fill()
	for {
		frame, ok, err := sr.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		dispatch(frame)
	}
	if fillErr != nil {
		return fillErr
	}
	return sr.err
}

// Read blocks until one complete message is available and returns it.
func (sr *StreamReader) Read() ([]byte, error) {
	for {
		frame, ok, err := sr.Next()
		if err != nil {
			return nil, err
		}
		if ok {
			return frame, nil
		}
		if sr.err != nil {
			if sr.err == io.EOF && sr.Buffered() > 0 {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, sr.err
		}
		if err := sr.Fill(); err != nil && sr.Buffered() == 0 {
			return nil, err
		}
	}
}

// StreamWriter writes encoded messages to a byte stream.
// It is safe for concurrent use; each message is written with a single Write.
type StreamWriter struct {
	w  io.Writer
	mu sync.Mutex
}

// NewStreamWriter creates a new stream writer.
func NewStreamWriter(w io.Writer) *StreamWriter {
	return &StreamWriter{w: w}
}

// Write writes one already encoded message.
func (sw *StreamWriter) Write(frame []byte) (int, error) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.w.Write(frame)
}

// WriteMessage encodes m and writes it.
func (sw *StreamWriter) WriteMessage(m *Message) error {
	data, err := m.Encode()
	if err != nil {
		return err
	}
	_, err = sw.Write(data)
	return err
}
