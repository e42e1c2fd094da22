package netplay

import (
	"errors"
	"io"
	"sync"

	"github.com/pion/webrtc/v4"
)

// webrtcChannel adapts a pion WebRTC data channel to Channel. A data
// channel is already message-oriented (the SCTP layer preserves message
// boundaries), so unlike streamChannel it applies no length prefix of its
// own; it just bridges pion's callback-based API onto Recv's pull-based
// one.
type webrtcChannel struct {
	dc *webrtc.DataChannel

	mu     sync.Mutex
	recvCh chan []byte
	closed chan struct{}
}

// NewWebRTCChannel wraps an already-negotiated pion/webrtc data channel.
// The data channel must have been created/accepted with ordered=true (the
// default), matching the spec's "reliable, ordered" requirement.
func NewWebRTCChannel(dc *webrtc.DataChannel) Channel {
	c := &webrtcChannel{
		dc:     dc,
		recvCh: make(chan []byte, 256),
		closed: make(chan struct{}),
	}

	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		select {
		case c.recvCh <- msg.Data:
		case <-c.closed:
		}
	})

	dc.OnClose(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		select {
		case <-c.closed:
		default:
			close(c.closed)
		}
	})

	return c
}

func (c *webrtcChannel) Send(msg []byte) error {
	if len(msg) > maxMessageSize {
		return errors.New("netplay: message exceeds webrtc data channel limit")
	}
	return c.dc.Send(msg)
}

func (c *webrtcChannel) Recv() ([]byte, error) {
	select {
	case msg := <-c.recvCh:
		return msg, nil
	case <-c.closed:
		return nil, io.EOF
	}
}

func (c *webrtcChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.closed:
	default:
		close(c.closed)
	}

	return c.dc.Close()
}
