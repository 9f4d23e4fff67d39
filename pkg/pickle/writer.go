package pickle

import (
	"bufio"
	"io"
	"sync"

	"github.com/blockberries/pickle/internal/wire"
)

// Writer is a pooled scratch buffer paired with the Options it was
// handed out under. pool.go's GetWriterWithHint/PutWriterBuffer hand
// these out so a caller doing many one-off Serialize calls on the same
// goroutine can reuse one growing buffer instead of letting each call
// allocate its own.
type Writer struct {
	buf  []byte
	opts Options
}

// Bytes returns the buffer's current contents.
func (w *Writer) Bytes() []byte { return w.buf }

// Reset truncates the buffer to zero length, retaining its capacity.
func (w *Writer) Reset() { w.buf = w.buf[:0] }

// Options returns the Options this Writer was constructed with.
func (w *Writer) Options() Options { return w.opts }

// AppendFrom encodes v with p and appends the result to w's internal
// buffer, growing it as needed.
func AppendFrom[T any](w *Writer, p *Pickler[T], v T) error {
	out, err := p.Serialize(w.buf, &v)
	if err != nil {
		return err
	}
	w.buf = out
	return nil
}

// streamWriterPool recycles the bufio.Writer and scratch buffer a
// StreamWriter needs, the same size-agnostic pattern the teacher's own
// StreamWriter pool uses: the pooled value is reset onto a new
// io.Writer rather than reallocated.
var streamWriterPool = sync.Pool{
	New: func() any { return new(rawStreamWriter) },
}

type rawStreamWriter struct {
	w       *bufio.Writer
	scratch []byte
}

// StreamWriter writes a sequence of length-delimited, pickled T values
// to an io.Writer (distilled spec §6, "a stream is a sequence of
// length-prefixed records sharing one root type"). It buffers writes
// for efficiency and is safe for use from a single goroutine, not for
// concurrent use, mirroring the teacher's own StreamWriter contract.
type StreamWriter[T any] struct {
	p      *Pickler[T]
	raw    *rawStreamWriter
	err    error
	closed bool
	pooled bool
}

// NewStreamWriter returns a StreamWriter using p that writes to w with
// a 4096-byte buffer.
func NewStreamWriter[T any](p *Pickler[T], w io.Writer) *StreamWriter[T] {
	return NewStreamWriterSize(p, w, 4096)
}

// NewStreamWriterSize returns a StreamWriter using p with a
// caller-chosen buffer size.
func NewStreamWriterSize[T any](p *Pickler[T], w io.Writer, bufSize int) *StreamWriter[T] {
	return &StreamWriter[T]{p: p, raw: &rawStreamWriter{w: bufio.NewWriterSize(w, bufSize)}}
}

// GetStreamWriter returns a pooled StreamWriter writing to w. Call
// PutStreamWriter to return it when done.
func GetStreamWriter[T any](p *Pickler[T], w io.Writer) *StreamWriter[T] {
	raw := streamWriterPool.Get().(*rawStreamWriter)
	if raw.w == nil {
		raw.w = bufio.NewWriterSize(w, 4096)
	} else {
		raw.w.Reset(w)
	}
	return &StreamWriter[T]{p: p, raw: raw, pooled: true}
}

// PutStreamWriter returns sw's buffers to the pool. sw must not be used
// afterwards.
func PutStreamWriter[T any](sw *StreamWriter[T]) {
	if sw == nil || !sw.pooled {
		return
	}
	sw.raw.w.Reset(io.Discard)
	streamWriterPool.Put(sw.raw)
}

// WriteDelimited serializes v and writes it to the stream as a varint
// length prefix followed by the encoded payload.
func (sw *StreamWriter[T]) WriteDelimited(v T) error {
	if sw.closed {
		return NewEncodeError("stream writer is closed", nil)
	}
	if sw.err != nil {
		return sw.err
	}

	payload, err := sw.p.Serialize(sw.raw.scratch[:0], &v)
	if err != nil {
		sw.err = err
		return err
	}
	sw.raw.scratch = payload

	var lenBuf [wire.MaxVarintLen64]byte
	n := wire.PutUvarint(lenBuf[:], uint64(len(payload)))
	if _, err := sw.raw.w.Write(lenBuf[:n]); err != nil {
		sw.err = NewEncodeError("length prefix write failed", err)
		return sw.err
	}
	if _, err := sw.raw.w.Write(payload); err != nil {
		sw.err = NewEncodeError("payload write failed", err)
		return sw.err
	}
	return nil
}

// Flush writes any buffered data to the underlying io.Writer.
func (sw *StreamWriter[T]) Flush() error {
	if sw.err != nil {
		return sw.err
	}
	if err := sw.raw.w.Flush(); err != nil {
		sw.err = NewEncodeError("flush failed", err)
		return sw.err
	}
	return nil
}

// Close flushes sw. The underlying io.Writer is not closed.
func (sw *StreamWriter[T]) Close() error {
	if sw.closed {
		return nil
	}
	sw.closed = true
	return sw.Flush()
}

// Err returns the first error encountered while writing, if any.
func (sw *StreamWriter[T]) Err() error { return sw.err }
