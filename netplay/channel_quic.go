package netplay

import (
	"context"
	"crypto/tls"

	"github.com/quic-go/quic-go"
)

// DialQUIC opens a QUIC connection and a single bidirectional stream to
// addr, wrapping the stream as a Channel. A QUIC stream is already a
// reliable, ordered byte stream, so it reuses streamChannel's
// length-prefix framing rather than needing its own.
func DialQUIC(ctx context.Context, addr string, tlsConf *tls.Config) (Channel, error) {
	conn, err := quic.DialAddr(ctx, addr, tlsConf, nil)
	if err != nil {
		return nil, err
	}

	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		return nil, err
	}

	return NewQUICChannel(stream), nil
}

// AcceptQUIC accepts a single bidirectional stream on an already-listening
// QUIC connection, wrapping it as a Channel.
func AcceptQUIC(ctx context.Context, conn *quic.Conn) (Channel, error) {
	stream, err := conn.AcceptStream(ctx)
	if err != nil {
		return nil, err
	}

	return NewQUICChannel(stream), nil
}

// NewQUICChannel wraps an already-open QUIC stream as a Channel.
func NewQUICChannel(stream *quic.Stream) Channel {
	return NewStreamChannel(stream)
}
