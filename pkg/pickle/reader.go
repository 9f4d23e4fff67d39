package pickle

import (
	"bufio"
	"errors"
	"io"
)

// MessageIterator reads a sequence of length-delimited, pickled T
// values written by a StreamWriter[T]. Every value must carry its own
// length prefix, so it does not read SerializeMany's count-prefixed
// output.
//
// Next/Err follows bufio.Scanner's convention deliberately: it is the
// idiom the surrounding ecosystem already expects for "pull one record
// at a time, check Err once the loop ends."
type MessageIterator[T any] struct {
	p   *Pickler[T]
	r   *bufio.Reader
	cur T
	err error
}

// NewMessageIterator returns a MessageIterator using p that reads from r.
func NewMessageIterator[T any](p *Pickler[T], r io.Reader) *MessageIterator[T] {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &MessageIterator[T]{p: p, r: br}
}

// Next decodes the next message into the iterator's current value,
// retrievable with Value. It returns false at end of stream or on the
// first error; callers must check Err after the loop exits.
func (it *MessageIterator[T]) Next() bool {
	if it.err != nil {
		return false
	}

	length, err := readUvarint(it.r)
	if err != nil {
		if err != io.EOF {
			it.err = NewDecodeError(-1, "length prefix read failed", err)
		}
		return false
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(it.r, payload); err != nil {
		it.err = NewDecodeError(-1, "payload read failed", err)
		return false
	}

	v, _, err := it.p.Deserialize(payload)
	if err != nil {
		it.err = err
		return false
	}
	it.cur = v
	return true
}

// Value returns the value decoded by the most recent successful Next call.
func (it *MessageIterator[T]) Value() T { return it.cur }

// Err returns the error, if any, that stopped iteration. It returns nil
// if iteration stopped because the stream was exhausted cleanly.
func (it *MessageIterator[T]) Err() error { return it.err }

// readUvarint decodes a little-endian base-128 varint one byte at a
// time from r, mirroring internal/wire's DecodeUvarint but against an
// io.ByteReader instead of a byte slice, since a stream has no
// pre-materialised buffer to decode a varint header out of.
func readUvarint(r io.ByteReader) (uint64, error) {
	var v uint64
	var shift uint
	for i := 0; ; i++ {
		b, err := r.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				if i == 0 {
					return 0, io.EOF
				}
				return 0, io.ErrUnexpectedEOF
			}
			return 0, err
		}
		if i >= 10 {
			return 0, ErrMalformedWire
		}
		if i == 9 && b > 1 {
			return 0, ErrMalformedWire
		}
		v |= uint64(b&0x7f) << shift
		if b < 0x80 {
			return v, nil
		}
		shift += 7
	}
}
