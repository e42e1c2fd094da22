// Package wire provides the little-endian binary reader/writer helpers
// shared by the transport framing and replay codecs, in the same spirit as
// the teacher repo's internal/binario package (a thin wrapper around
// bytes.Buffer and encoding/binary).
package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Writer accumulates little-endian encoded fields into a byte buffer.
type Writer struct {
	buf bytes.Buffer
	err error
}

func NewWriter() *Writer {
	return &Writer{}
}

func (w *Writer) Err() error {
	return w.err
}

func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}

func (w *Writer) WriteTo(dst io.Writer) (int64, error) {
	if w.err != nil {
		return 0, w.err
	}
	return w.buf.WriteTo(dst)
}

func (w *Writer) U8(v uint8) *Writer {
	if w.err != nil {
		return w
	}
	w.err = w.buf.WriteByte(v)
	return w
}

func (w *Writer) I8(v int8) *Writer {
	return w.U8(uint8(v))
}

func (w *Writer) U16(v uint16) *Writer {
	if w.err != nil {
		return w
	}
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	_, w.err = w.buf.Write(b[:])
	return w
}

func (w *Writer) U32(v uint32) *Writer {
	if w.err != nil {
		return w
	}
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	_, w.err = w.buf.Write(b[:])
	return w
}

func (w *Writer) I32(v int32) *Writer {
	return w.U32(uint32(v))
}

func (w *Writer) U64(v uint64) *Writer {
	if w.err != nil {
		return w
	}
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	_, w.err = w.buf.Write(b[:])
	return w
}

// Raw writes p verbatim, with no length prefix.
func (w *Writer) Raw(p []byte) *Writer {
	if w.err != nil {
		return w
	}
	_, w.err = w.buf.Write(p)
	return w
}

// Blob writes a uint32 length prefix followed by p.
func (w *Writer) Blob(p []byte) *Writer {
	return w.U32(uint32(len(p))).Raw(p)
}

// Reader consumes little-endian encoded fields from a byte slice.
type Reader struct {
	data []byte
	pos  int
	err  error
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

func (r *Reader) Err() error {
	return r.err
}

// Remaining reports how many bytes are left unread.
func (r *Reader) Remaining() int {
	return len(r.data) - r.pos
}

func (r *Reader) need(n int) []byte {
	if r.err != nil {
		return nil
	}
	if r.pos+n > len(r.data) {
		r.err = fmt.Errorf("wire: short read: need %d bytes, have %d", n, len(r.data)-r.pos)
		return nil
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b
}

func (r *Reader) U8() uint8 {
	b := r.need(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *Reader) I8() int8 {
	return int8(r.U8())
}

func (r *Reader) U16() uint16 {
	b := r.need(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (r *Reader) U32() uint32 {
	b := r.need(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *Reader) I32() int32 {
	return int32(r.U32())
}

func (r *Reader) U64() uint64 {
	b := r.need(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

// Raw reads n bytes verbatim. The returned slice aliases the reader's
// underlying buffer and must be copied before the reader is reused.
func (r *Reader) Raw(n int) []byte {
	return r.need(n)
}

// Blob reads a uint32 length prefix followed by that many bytes.
func (r *Reader) Blob() []byte {
	n := r.U32()
	if r.err != nil {
		return nil
	}
	b := r.need(int(n))
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
