package replay

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
)

// Header holds everything that precedes the input record stream.
type Header struct {
	Version           uint16
	LocalPlayerIndex  uint8
	PacketSize        uint8
	Metadata          Metadata
	LocalInitialState []byte
	RemoteInitialState []byte
}

// Reader lazily decodes a replay written by Writer. Next() is a single
// forward pass; Complete() and CRCValid() are only meaningful after Next()
// has returned io.EOF.
type Reader struct {
	src        io.Reader
	packetSize int
	crc        uint32
	crcTable   *crc32.Table
	done       bool
	complete   bool
	crcValid   bool
}

// NewReader parses the header (magic, version, metadata, initial states)
// and returns a Reader positioned at the start of the input record stream.
func NewReader(src io.Reader) (*Reader, Header, error) {
	r := &Reader{src: src, crcTable: crc32.IEEETable}

	var magicBuf [4]byte
	if err := r.readFull(magicBuf[:]); err != nil {
		return nil, Header{}, fmt.Errorf("replay: failed to read magic: %w", err)
	}
	if string(magicBuf[:]) != magic {
		return nil, Header{}, fmt.Errorf("replay: bad magic %q", magicBuf[:])
	}

	var hdr Header
	var err error

	if hdr.Version, err = r.readU16(); err != nil {
		return nil, Header{}, err
	}
	if hdr.LocalPlayerIndex, err = r.readU8(); err != nil {
		return nil, Header{}, err
	}
	if hdr.PacketSize, err = r.readU8(); err != nil {
		return nil, Header{}, err
	}

	metaBytes, err := r.readBlob()
	if err != nil {
		return nil, Header{}, fmt.Errorf("replay: failed to read metadata: %w", err)
	}
	if hdr.Metadata, err = decodeMetadata(metaBytes); err != nil {
		return nil, Header{}, fmt.Errorf("replay: failed to decode metadata: %w", err)
	}

	if hdr.LocalInitialState, err = r.readBlob(); err != nil {
		return nil, Header{}, fmt.Errorf("replay: failed to read local state: %w", err)
	}
	if hdr.RemoteInitialState, err = r.readBlob(); err != nil {
		return nil, Header{}, fmt.Errorf("replay: failed to read remote state: %w", err)
	}

	r.packetSize = int(hdr.PacketSize)

	return r, hdr, nil
}

func (r *Reader) readFull(p []byte) error {
	if _, err := io.ReadFull(r.src, p); err != nil {
		if err == io.EOF {
			return io.ErrUnexpectedEOF
		}
		return err
	}
	r.crc = crc32.Update(r.crc, r.crcTable, p)
	return nil
}

func (r *Reader) readU8() (uint8, error) {
	var b [1]byte
	if err := r.readFull(b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) readU16() (uint16, error) {
	var b [2]byte
	if err := r.readFull(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b[:]), nil
}

func (r *Reader) readU32() (uint32, error) {
	var b [4]byte
	if err := r.readFull(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func (r *Reader) readBlob() ([]byte, error) {
	n, err := r.readU32()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if err := r.readFull(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Next returns the next input record, or io.EOF once the trailer has been
// consumed. If the underlying stream ends before a trailer is found (a
// writer that was dropped without Finish), Next returns
// io.ErrUnexpectedEOF and Complete/CRCValid remain false.
func (r *Reader) Next() (*Record, error) {
	if r.done {
		return nil, io.EOF
	}

	crcBeforeTag := r.crc

	tag, err := r.readU8()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}

	switch tag {
	case recordTagInput:
		var rec Record
		var side byte
		if side, err = r.readU8(); err != nil {
			return nil, err
		}
		rec.Side = side
		if rec.LocalTick, err = r.readU32(); err != nil {
			return nil, err
		}
		if rec.RemoteTick, err = r.readU32(); err != nil {
			return nil, err
		}
		if rec.Joyflags, err = r.readU16(); err != nil {
			return nil, err
		}
		rec.Packet = make([]byte, r.packetSize)
		if err = r.readFull(rec.Packet); err != nil {
			return nil, err
		}
		return &rec, nil

	case recordTagEnd:
		completeByte, err := r.readU8()
		if err != nil {
			return nil, err
		}

		wantCRC := crcBeforeTag

		var crcBuf [4]byte
		if err := r.readFull(crcBuf[:]); err != nil {
			return nil, err
		}
		gotCRC := binary.LittleEndian.Uint32(crcBuf[:])

		r.done = true
		r.complete = completeByte != 0
		r.crcValid = gotCRC == wantCRC

		return nil, io.EOF

	default:
		return nil, fmt.Errorf("replay: unknown record tag 0x%02x", tag)
	}
}

// Complete reports the trailer's completeness flag. Only valid after Next
// has returned io.EOF.
func (r *Reader) Complete() bool {
	return r.complete
}

// CRCValid reports whether the trailer's CRC32 matched the bytes actually
// read. Only valid after Next has returned io.EOF.
func (r *Reader) CRCValid() bool {
	return r.crcValid
}
