package netplay

import "testing"

func TestEncodeDecodeInputMessageRoundTrip(t *testing.T) {
	want := InputMessage{
		RoundNumber: 3,
		LocalTick:   1000,
		TickDiff:    -5,
		Joyflags:    0xBEEF,
	}

	decoded, err := DecodeMessage(EncodeInput(want))
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	if decoded.Tag != TagInput || decoded.Input == nil {
		t.Fatalf("expected a decoded input message, got tag %v", decoded.Tag)
	}
	if *decoded.Input != want {
		t.Fatalf("round trip mismatch: got %+v, want %+v", *decoded.Input, want)
	}
}

func TestInputMessageRemoteTickBoundaries(t *testing.T) {
	cases := []struct {
		localTick uint32
		tickDiff  int8
	}{
		{localTick: 100, tickDiff: 127},
		{localTick: 100, tickDiff: -128},
		{localTick: 0, tickDiff: -1},
	}

	for _, c := range cases {
		m := InputMessage{LocalTick: c.localTick, TickDiff: c.tickDiff}
		want := uint32(int64(c.localTick) + int64(c.tickDiff))
		if got := m.RemoteTick(); got != want {
			t.Errorf("RemoteTick(local=%d, diff=%d) = %d, want %d", c.localTick, c.tickDiff, got, want)
		}
	}
}

func TestEncodeDecodePingPongRoundTrip(t *testing.T) {
	ping := PingMessage{TS: 123456789}
	decoded, err := DecodeMessage(EncodePing(ping))
	if err != nil {
		t.Fatalf("DecodeMessage(ping): %v", err)
	}
	if decoded.Tag != TagPing || decoded.Ping == nil || *decoded.Ping != ping {
		t.Fatalf("ping round trip mismatch: %+v", decoded)
	}

	pong := PongMessage{TS: 987654321}
	decoded, err = DecodeMessage(EncodePong(pong))
	if err != nil {
		t.Fatalf("DecodeMessage(pong): %v", err)
	}
	if decoded.Tag != TagPong || decoded.Pong == nil || *decoded.Pong != pong {
		t.Fatalf("pong round trip mismatch: %+v", decoded)
	}
}

func TestDecodeMessageRejectsUnknownTag(t *testing.T) {
	if _, err := DecodeMessage([]byte{0xFE}); err == nil {
		t.Fatal("expected unknown tag to be rejected")
	}
}

func TestDecodeMessageRejectsTruncated(t *testing.T) {
	raw := EncodeInput(InputMessage{RoundNumber: 1, LocalTick: 1})
	if _, err := DecodeMessage(raw[:len(raw)-2]); err == nil {
		t.Fatal("expected truncated message to be rejected")
	}
}
