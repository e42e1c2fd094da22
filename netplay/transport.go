package netplay

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const latencySampleWindow = 5

// Transport frames Input/Ping/Pong messages over a Channel. It also owns
// the rendezvous gate that defers the first outgoing Input until the peer
// has signaled it is ready to parse one, and a sliding-median latency
// estimator fed by ping/pong round trips.
type Transport struct {
	ch Channel

	gateMu     sync.Mutex
	gateClosed bool
	gateCh     chan struct{}

	pingLimiter *rate.Limiter

	latMu      sync.Mutex
	samples    []time.Duration
	lastPingAt time.Time

	matchID string
}

// SetMatchID labels this transport's ping_rtt_seconds histogram samples.
// Called once by Match at construction; before that, samples are recorded
// under the empty label.
func (t *Transport) SetMatchID(id string) {
	t.matchID = id
}

// NewTransport wraps ch. The rendezvous gate starts closed: no Input will
// be sent until ReleaseRendezvous is called (normally by the receive loop,
// on the first Input it sees from the peer).
func NewTransport(ch Channel) *Transport {
	return &Transport{
		ch:          ch,
		gateCh:      make(chan struct{}),
		pingLimiter: rate.NewLimiter(rate.Every(200*time.Millisecond), 1),
	}
}

// ReleaseRendezvous opens the gate. Idempotent.
func (t *Transport) ReleaseRendezvous() {
	t.gateMu.Lock()
	defer t.gateMu.Unlock()

	if !t.gateClosed {
		t.gateClosed = true
		close(t.gateCh)
	}
}

// SendInput sends an Input message, blocking until the rendezvous gate is
// open (or ctx is done) if it has not been released yet.
func (t *Transport) SendInput(ctx context.Context, m InputMessage) error {
	select {
	case <-t.gateCh:
	case <-ctx.Done():
		return ctx.Err()
	}

	return t.send(EncodeInput(m))
}

// SendPing sends a ping carrying now as Unix microseconds (a wall-clock
// value; now's monotonic reading is not used), rate-limited so a host
// juggling several matches cannot flood pings.
func (t *Transport) SendPing(ctx context.Context, now time.Time) error {
	if err := t.pingLimiter.Wait(ctx); err != nil {
		return err
	}

	t.latMu.Lock()
	t.lastPingAt = now
	t.latMu.Unlock()

	return t.send(EncodePing(PingMessage{TS: uint64(now.UnixMicro())}))
}

// SendPong echoes a ping's timestamp.
func (t *Transport) SendPong(ts uint64) error {
	return t.send(EncodePong(PongMessage{TS: ts}))
}

func (t *Transport) send(raw []byte) error {
	if err := t.ch.Send(raw); err != nil {
		return fmt.Errorf("%w: %v", ErrTransportClosed, err)
	}
	return nil
}

// Recv blocks for the next decoded message.
func (t *Transport) Recv() (DecodedMessage, error) {
	raw, err := t.ch.Recv()
	if err != nil {
		return DecodedMessage{}, fmt.Errorf("%w: %v", ErrTransportClosed, err)
	}

	return DecodeMessage(raw)
}

// ObservePong folds a measured round-trip latency (derived from a pong's
// echoed timestamp) into the sliding-median estimator.
func (t *Transport) ObservePong(now time.Time, echoedTS uint64) {
	sent := time.UnixMicro(int64(echoedTS))
	rtt := now.Sub(sent)
	if rtt < 0 {
		return
	}

	t.latMu.Lock()
	defer t.latMu.Unlock()

	t.samples = append(t.samples, rtt)
	if len(t.samples) > latencySampleWindow {
		t.samples = t.samples[len(t.samples)-latencySampleWindow:]
	}

	pingRTT.WithLabelValues(t.matchID).Observe(rtt.Seconds())
}

// MedianLatency returns the median of the last N round-trip samples. Pure
// diagnostics: no core behavior depends on it.
func (t *Transport) MedianLatency() time.Duration {
	t.latMu.Lock()
	defer t.latMu.Unlock()

	if len(t.samples) == 0 {
		return 0
	}

	sorted := append([]time.Duration(nil), t.samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	return sorted[len(sorted)/2]
}

func (t *Transport) Close() error {
	return t.ch.Close()
}
