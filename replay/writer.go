// Package replay implements the append-only binary replay log: a header
// (magic, version, player index, packet size, metadata, two initial state
// snapshots) followed by a stream of per-side input records, closed off by
// a completeness flag and a CRC32 of everything written before it.
package replay

import (
	"fmt"
	"hash/crc32"
	"io"

	"github.com/tangobattle/tango-sub001/internal/wire"
)

const (
	magic          = "TOOT"
	formatVersion  = uint16(1)
	recordTagInput = uint8(0x01)
	recordTagEnd   = uint8(0xFF)
)

// Record is one side's input for one tick.
type Record struct {
	Side       uint8 // 0 = local, 1 = remote
	LocalTick  uint32
	RemoteTick uint32
	Joyflags   uint16
	Packet     []byte
}

// Writer appends records to a sink. It is not safe for concurrent use.
// A Writer dropped without Finish leaves an incomplete replay; Reader must
// and does cope with that (Next reports io.ErrUnexpectedEOF instead of a
// clean io.EOF in that case).
type Writer struct {
	dst        io.Writer
	crc        uint32
	crcTable   *crc32.Table
	packetSize int
	finished   bool
}

// NewWriter writes the header, metadata, and the two full initial state
// snapshots, then returns a Writer ready to accept input records.
func NewWriter(dst io.Writer, localPlayerIndex uint8, packetSize uint8, meta Metadata, localState, remoteState []byte) (*Writer, error) {
	w := &Writer{
		dst:        dst,
		crcTable:   crc32.IEEETable,
		packetSize: int(packetSize),
	}

	hw := wire.NewWriter()
	hw.Raw([]byte(magic))
	hw.U16(formatVersion)
	hw.U8(localPlayerIndex)
	hw.U8(packetSize)
	hw.Blob(encodeMetadata(meta))
	hw.Blob(localState)
	hw.Blob(remoteState)

	if err := hw.Err(); err != nil {
		return nil, fmt.Errorf("replay: failed to encode header: %w", err)
	}

	if err := w.writeAccumulating(hw.Bytes()); err != nil {
		return nil, fmt.Errorf("replay: failed to write header: %w", err)
	}

	return w, nil
}

func (w *Writer) writeAccumulating(p []byte) error {
	w.crc = crc32.Update(w.crc, w.crcTable, p)
	_, err := w.dst.Write(p)
	return err
}

// WriteInput appends a single-side record. The packet must match the
// packet size declared in the header.
func (w *Writer) WriteInput(rec Record) error {
	if w.finished {
		return fmt.Errorf("replay: write after finish")
	}

	if len(rec.Packet) != w.packetSize {
		return fmt.Errorf("replay: packet is %d bytes, header declares %d", len(rec.Packet), w.packetSize)
	}

	rw := wire.NewWriter()
	rw.U8(recordTagInput)
	rw.U8(rec.Side)
	rw.U32(rec.LocalTick)
	rw.U32(rec.RemoteTick)
	rw.U16(rec.Joyflags)
	rw.Raw(rec.Packet)

	if err := rw.Err(); err != nil {
		return fmt.Errorf("replay: failed to encode record: %w", err)
	}

	return w.writeAccumulating(rw.Bytes())
}

// WritePair appends both sides of one committed tick, local then remote.
func (w *Writer) WritePair(local, remote Record) error {
	if err := w.WriteInput(local); err != nil {
		return err
	}
	return w.WriteInput(remote)
}

// Finish writes the trailer: whether the round reached a clean end
// (complete) and the CRC32 of every byte written before the trailer.
// Finish is idempotent; calling it more than once is a no-op.
func (w *Writer) Finish(complete bool) error {
	if w.finished {
		return nil
	}
	w.finished = true

	tw := wire.NewWriter()
	tw.U8(recordTagEnd)
	if complete {
		tw.U8(1)
	} else {
		tw.U8(0)
	}
	tw.U32(w.crc)

	if err := tw.Err(); err != nil {
		return fmt.Errorf("replay: failed to encode trailer: %w", err)
	}

	_, err := w.dst.Write(tw.Bytes())
	return err
}
