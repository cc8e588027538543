// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-mantavfs.
//
// go-mantavfs is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package vfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/jeremyhahn/go-mantavfs/pkg/adapters"
	"github.com/jeremyhahn/go-mantavfs/pkg/common"
)

// AccessMode selects how random access content is opened.
type AccessMode int

const (
	// ModeRead opens content for reading.
	ModeRead AccessMode = iota

	// ModeReadWrite is not supported by object stores.
	ModeReadWrite
)

func (m AccessMode) String() string {
	if m == ModeRead {
		return "r"
	}
	return "rw"
}

// rangeOpener opens a ranged channel positioned at offset.
type rangeOpener func(offset int64) (common.RangeReader, error)

// RandomAccessReader reads an object at arbitrary offsets. Every seek closes
// the current ranged request and opens a new one at the target offset.
// Primitive values are decoded big-endian in the java.io.DataInput format.
//
// A RandomAccessReader must not be used from more than one goroutine.
type RandomAccessReader struct {
	path    string
	open    rangeOpener
	channel common.RangeReader
	pos     int64
	closed  bool
	logger  adapters.Logger
}

func newRandomAccessReader(path string, channel common.RangeReader, open rangeOpener, logger adapters.Logger) *RandomAccessReader {
	return &RandomAccessReader{
		path:    path,
		open:    open,
		channel: channel,
		pos:     channel.Offset(),
		logger:  logger,
	}
}

// Position returns the offset of the next byte to be read.
func (r *RandomAccessReader) Position() int64 {
	return r.pos
}

// Length returns the number of bytes between the current position and the
// end of the object.
func (r *RandomAccessReader) Length() int64 {
	remaining := r.channel.Offset() + r.channel.Length() - r.pos
	if remaining < 0 {
		return 0
	}
	return remaining
}

// SeekTo repositions the reader at pos by opening a new ranged request.
// The previous channel is closed and any error closing it is logged.
func (r *RandomAccessReader) SeekTo(pos int64) error {
	if r.closed {
		return fmt.Errorf("seek %s: %w", r.path, io.ErrClosedPipe)
	}
	if pos < 0 {
		return fmt.Errorf("%w: negative seek offset %d", ErrInvalidArgument, pos)
	}

	next, err := r.open(pos)
	if err != nil {
		return err
	}
	previous := r.channel
	r.channel = next
	r.pos = pos
	if err := previous.Close(); err != nil {
		r.logger.Debug(context.Background(), "error closing ranged channel",
			adapters.Field{Key: "path", Value: r.path},
			adapters.Field{Key: "error", Value: err.Error()})
	}
	return nil
}

// Seek implements io.Seeker. io.SeekEnd is relative to the object size.
func (r *RandomAccessReader) Seek(offset int64, whence int) (int64, error) {
	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = r.pos + offset
	case io.SeekEnd:
		target = r.channel.Offset() + r.channel.Length() + offset
	default:
		return r.pos, fmt.Errorf("%w: invalid whence %d", ErrInvalidArgument, whence)
	}
	if err := r.SeekTo(target); err != nil {
		return r.pos, err
	}
	return r.pos, nil
}

// Read implements io.Reader.
func (r *RandomAccessReader) Read(p []byte) (int, error) {
	if r.closed {
		return 0, fmt.Errorf("read %s: %w", r.path, io.ErrClosedPipe)
	}
	n, err := r.channel.Read(p)
	r.pos += int64(n)
	return n, err
}

// ReadFully fills buf. It returns io.EOF if no bytes were available and
// io.ErrUnexpectedEOF if the object ended part way.
func (r *RandomAccessReader) ReadFully(buf []byte) error {
	_, err := io.ReadFull(r, buf)
	return err
}

// ReadFullyAt fills buf[off:off+n].
func (r *RandomAccessReader) ReadFullyAt(buf []byte, off, n int) error {
	if off < 0 || n < 0 || off+n > len(buf) {
		return fmt.Errorf("%w: region [%d,%d) outside buffer of %d bytes", ErrInvalidArgument, off, off+n, len(buf))
	}
	return r.ReadFully(buf[off : off+n])
}

// Skip discards up to n bytes and returns how many were skipped. Fewer
// bytes are skipped when the object ends first.
func (r *RandomAccessReader) Skip(n int64) (int64, error) {
	if n < 0 {
		return 0, fmt.Errorf("%w: negative skip %d", ErrInvalidArgument, n)
	}
	skipped, err := io.CopyN(io.Discard, r, n)
	if errors.Is(err, io.EOF) {
		err = nil
	}
	return skipped, err
}

// readUnit reads one byte. consumed is the number of bytes of the current
// value already read, so the end of the object can be reported as io.EOF on
// a value boundary and io.ErrUnexpectedEOF inside one.
func (r *RandomAccessReader) readUnit(consumed int) (byte, error) {
	var b [1]byte
	for {
		n, err := r.Read(b[:])
		if n == 1 {
			return b[0], nil
		}
		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) && consumed > 0 {
			return 0, io.ErrUnexpectedEOF
		}
		return 0, err
	}
}

func (r *RandomAccessReader) readUint(width int) (uint64, error) {
	var v uint64
	for i := 0; i < width; i++ {
		b, err := r.readUnit(i)
		if err != nil {
			return 0, err
		}
		v = v<<8 | uint64(b)
	}
	return v, nil
}

// ReadByte implements io.ByteReader.
func (r *RandomAccessReader) ReadByte() (byte, error) {
	return r.readUnit(0)
}

// ReadBoolean reads one byte; any non-zero value is true.
func (r *RandomAccessReader) ReadBoolean() (bool, error) {
	b, err := r.readUnit(0)
	return b != 0, err
}

// ReadInt8 reads a signed byte.
func (r *RandomAccessReader) ReadInt8() (int8, error) {
	b, err := r.readUnit(0)
	return int8(b), err
}

// ReadUint8 reads an unsigned byte.
func (r *RandomAccessReader) ReadUint8() (uint8, error) {
	return r.readUnit(0)
}

// ReadInt16 reads a big-endian signed 16-bit integer.
func (r *RandomAccessReader) ReadInt16() (int16, error) {
	v, err := r.readUint(2)
	return int16(uint16(v)), err
}

// ReadUint16 reads a big-endian unsigned 16-bit integer.
func (r *RandomAccessReader) ReadUint16() (uint16, error) {
	v, err := r.readUint(2)
	return uint16(v), err
}

// ReadChar reads a UTF-16 code unit.
func (r *RandomAccessReader) ReadChar() (uint16, error) {
	return r.ReadUint16()
}

// ReadInt32 reads a big-endian signed 32-bit integer.
func (r *RandomAccessReader) ReadInt32() (int32, error) {
	v, err := r.readUint(4)
	return int32(uint32(v)), err
}

// ReadInt64 reads a big-endian signed 64-bit integer as two 32-bit halves.
func (r *RandomAccessReader) ReadInt64() (int64, error) {
	hi, err := r.ReadInt32()
	if err != nil {
		return 0, err
	}
	lo, err := r.ReadInt32()
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return 0, err
	}
	return int64(hi)<<32 | int64(uint32(lo)), nil
}

// ReadFloat32 reads an IEEE 754 single precision value.
func (r *RandomAccessReader) ReadFloat32() (float32, error) {
	v, err := r.ReadInt32()
	return math.Float32frombits(uint32(v)), err
}

// ReadFloat64 reads an IEEE 754 double precision value.
func (r *RandomAccessReader) ReadFloat64() (float64, error) {
	v, err := r.ReadInt64()
	return math.Float64frombits(uint64(v)), err
}

// ReadUTF reads a string written by DataOutput.writeUTF: a 2-byte length
// followed by that many bytes of modified UTF-8.
func (r *RandomAccessReader) ReadUTF() (string, error) {
	length, err := r.ReadUint16()
	if err != nil {
		return "", err
	}
	buf := make([]byte, length)
	if err := r.ReadFully(buf); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return "", err
	}
	return DecodeModifiedUTF8(buf)
}

// ReadLine reads bytes up to "\n", "\r" or "\r\n" and returns them as
// Latin-1 characters without the terminator. It returns io.EOF only when no
// bytes remain.
func (r *RandomAccessReader) ReadLine() (string, error) {
	var b strings.Builder
	for read := 0; ; read++ {
		c, err := r.readUnit(0)
		if errors.Is(err, io.EOF) {
			if read == 0 {
				return "", io.EOF
			}
			return b.String(), nil
		}
		if err != nil {
			return "", err
		}
		switch c {
		case '\n':
			return b.String(), nil
		case '\r':
			next, err := r.readUnit(0)
			if err == nil && next != '\n' {
				if err := r.SeekTo(r.pos - 1); err != nil {
					return "", err
				}
			} else if err != nil && !errors.Is(err, io.EOF) {
				return "", err
			}
			return b.String(), nil
		default:
			b.WriteRune(rune(c))
		}
	}
}

// SetLength always fails; stored objects can't be truncated in place.
func (r *RandomAccessReader) SetLength(int64) error {
	return fmt.Errorf("%w: set length of %s", ErrUnsupportedOperation, r.path)
}

// Write always fails; random access content is read-only.
func (r *RandomAccessReader) Write([]byte) (int, error) {
	return 0, fmt.Errorf("%w: random access write to %s", ErrUnsupportedOperation, r.path)
}

// Close releases the current channel. Calling Close again is a no-op.
func (r *RandomAccessReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.channel.Close()
}
