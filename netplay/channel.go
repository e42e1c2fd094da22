package netplay

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"
)

// Channel is the minimal surface Transport needs from the underlying data
// channel: send and receive whole messages, reliably and in order. The
// spec's external interface ("a reliable, ordered, message-oriented byte
// stream, <=64KiB per message") is deliberately narrow so any of a TCP
// socket, a WebRTC data channel, or a QUIC stream can satisfy it.
type Channel interface {
	Send(msg []byte) error
	Recv() ([]byte, error)
	Close() error
}

const maxMessageSize = 64 * 1024

// streamChannel adapts a byte-oriented, reliable, ordered stream (TCP,
// Unix socket, a QUIC stream) into a message-oriented Channel by
// length-prefixing every message with a uint32 little-endian length. This
// generalizes the writeMsg/readMsg framing referenced, but not included,
// in the teacher repo's netplay.Netplay.
type streamChannel struct {
	rw io.ReadWriteCloser

	writeMu sync.Mutex
	readMu  sync.Mutex
}

// NewStreamChannel wraps any reliable ordered byte stream as a Channel.
func NewStreamChannel(rw io.ReadWriteCloser) Channel {
	return &streamChannel{rw: rw}
}

func (c *streamChannel) Send(msg []byte) error {
	if len(msg) > maxMessageSize {
		return fmt.Errorf("netplay: message of %d bytes exceeds %d byte limit", len(msg), maxMessageSize)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(msg)))

	if _, err := c.rw.Write(hdr[:]); err != nil {
		return err
	}
	if _, err := c.rw.Write(msg); err != nil {
		return err
	}

	return nil
}

func (c *streamChannel) Recv() ([]byte, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	var hdr [4]byte
	if _, err := io.ReadFull(c.rw, hdr[:]); err != nil {
		return nil, err
	}

	n := binary.LittleEndian.Uint32(hdr[:])
	if n > maxMessageSize {
		return nil, fmt.Errorf("%w: declared length %d exceeds %d byte limit", ErrMalformed, n, maxMessageSize)
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(c.rw, buf); err != nil {
		return nil, err
	}

	return buf, nil
}

func (c *streamChannel) Close() error {
	return c.rw.Close()
}
