package netplay

import (
	"fmt"

	"github.com/tangobattle/tango-sub001/internal/wire"
)

// MessageTag identifies a Transport wire message. Tag byte always comes
// first; an unrecognized tag terminates the connection.
type MessageTag uint8

const (
	TagInput MessageTag = 0x01
	TagPing  MessageTag = 0x02
	TagPong  MessageTag = 0x03
)

// InputMessage is the wire form of one side's input for one tick.
// tick_diff = remote_tick - local_tick, as a signed 8-bit value; the
// receiver recovers remote_tick = local_tick + tick_diff. This fits
// because the queue's bounded size (max_length, recommended 300) keeps the
// two sides' tick beliefs within [-128, 127] of each other in practice;
// Round computing tick_diff itself is responsible for not overflowing it.
type InputMessage struct {
	RoundNumber uint8
	LocalTick   uint32
	TickDiff    int8
	Joyflags    uint16
}

func (m InputMessage) RemoteTick() uint32 {
	return uint32(int64(m.LocalTick) + int64(m.TickDiff))
}

type PingMessage struct {
	TS uint64
}

type PongMessage struct {
	TS uint64
}

func encodeMessage(tag MessageTag, body func(w *wire.Writer)) []byte {
	w := wire.NewWriter()
	w.U8(uint8(tag))
	body(w)
	return w.Bytes()
}

func EncodeInput(m InputMessage) []byte {
	return encodeMessage(TagInput, func(w *wire.Writer) {
		w.U8(m.RoundNumber).U32(m.LocalTick).I8(m.TickDiff).U16(m.Joyflags)
	})
}

func EncodePing(m PingMessage) []byte {
	return encodeMessage(TagPing, func(w *wire.Writer) {
		w.U64(m.TS)
	})
}

func EncodePong(m PongMessage) []byte {
	return encodeMessage(TagPong, func(w *wire.Writer) {
		w.U64(m.TS)
	})
}

// DecodedMessage is the result of decoding one wire frame: exactly one of
// the typed fields is non-nil, selected by Tag.
type DecodedMessage struct {
	Tag   MessageTag
	Input *InputMessage
	Ping  *PingMessage
	Pong  *PongMessage
}

func DecodeMessage(raw []byte) (DecodedMessage, error) {
	if len(raw) < 1 {
		return DecodedMessage{}, fmt.Errorf("%w: empty message", ErrMalformed)
	}

	r := wire.NewReader(raw)
	tag := MessageTag(r.U8())

	var out DecodedMessage
	out.Tag = tag

	switch tag {
	case TagInput:
		m := InputMessage{
			RoundNumber: r.U8(),
			LocalTick:   r.U32(),
			TickDiff:    r.I8(),
			Joyflags:    r.U16(),
		}
		out.Input = &m
	case TagPing:
		m := PingMessage{TS: r.U64()}
		out.Ping = &m
	case TagPong:
		m := PongMessage{TS: r.U64()}
		out.Pong = &m
	default:
		return DecodedMessage{}, fmt.Errorf("%w: tag 0x%02x", ErrUnknownTag, uint8(tag))
	}

	if err := r.Err(); err != nil {
		return DecodedMessage{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	return out, nil
}
