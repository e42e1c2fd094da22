// Command lockstepd is a reference front-end for the netplay package: it
// dials or listens for a single peer, negotiates which side goes first,
// and drives democore (a tiny deterministic stand-in core) through the
// lockstep loop, logging every round's outcome.
package main

import (
	"context"
	"crypto/sha256"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/tangobattle/tango-sub001/democore"
	"github.com/tangobattle/tango-sub001/internal/config"
	"github.com/tangobattle/tango-sub001/internal/logging"
	"github.com/tangobattle/tango-sub001/netplay"
)

type opts struct {
	configPath string
	listenAddr string
	connectTo  string
	sessionKey string
}

func parseOpts() *opts {
	o := &opts{}

	flag.StringVar(&o.configPath, "config", "", "path to a JSON config file (defaults baked in if omitted)")
	flag.StringVar(&o.listenAddr, "listen", "", "listen address; mutually exclusive with -connect")
	flag.StringVar(&o.connectTo, "connect", "", "peer address to dial; mutually exclusive with -listen")
	flag.StringVar(&o.sessionKey, "session-key", "", "shared secret both sides pass identically; seeds the match RNG")
	flag.Parse()

	return o
}

func main() {
	o := parseOpts()

	if (o.listenAddr == "") == (o.connectTo == "") {
		fmt.Fprintln(os.Stderr, "lockstepd: exactly one of -listen or -connect is required")
		os.Exit(2)
	}

	cfg, err := config.Load(o.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "lockstepd: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Log)
	defer logger.Sync()

	if cfg.Metrics.Enabled {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())

			logger.Info("metrics listening", zap.String("addr", cfg.Metrics.Addr))

			if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil {
				logger.Error("metrics server exited", zap.Error(err))
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	isOfferer := o.connectTo != ""

	conn, err := dial(o)
	if err != nil {
		logger.Fatal("failed to establish connection", zap.Error(err))
	}
	defer conn.Close()

	logger.Info("peer connected", zap.String("remote", conn.RemoteAddr().String()), zap.Bool("offerer", isOfferer))

	channel := netplay.NewStreamChannel(conn)
	transport := netplay.NewTransport(channel)
	defer transport.Close()

	localCore := democore.New()
	shadowCore := democore.New()
	hooks := democore.Hooks{}
	fps := &fpsController{logger: logger}

	match := netplay.NewMatch(ctx, netplay.MatchConfig{
		InputDelay:     cfg.Match.InputDelay,
		RemoteDelay:    cfg.Match.RemoteDelay,
		MaxQueueLength: cfg.Match.MaxQueueLength,
		MatchType:      [2]uint8{0, 0},
		RNGSeed:        deriveSeed(o.sessionKey),
		IsOfferer:      isOfferer,
		Shadow:         shadowCore,
		Transport:      transport,
		Hooks:          hooks,
		FPS:            fps,
		ReplayMeta:     nil,
		ReplaySink:     nil,
		Logger:         logger,
	})

	go func() {
		if err := match.Run(ctx, transport); err != nil {
			logger.Warn("match dispatch loop exited", zap.Error(err))
			stop()
		}
	}()

	localInitial, err := localCore.SnapshotState()
	if err != nil {
		logger.Fatal("failed to snapshot local initial state", zap.Error(err))
	}
	remoteInitial, err := shadowCore.AdvanceUntilFirstCommittedState()
	if err != nil {
		logger.Fatal("failed to advance shadow to first committed state", zap.Error(err))
	}

	if _, err := match.StartRound(localInitial, remoteInitial, nil); err != nil {
		logger.Fatal("failed to start round", zap.Error(err))
	}

	runFrameLoop(ctx, logger, match, localCore, fps)
}

// runFrameLoop ticks at fps's most recently requested target, feeding a
// placeholder (always-zero) local input each frame. A real front-end would
// source joyflags from an input device here instead.
func runFrameLoop(ctx context.Context, logger *zap.Logger, match *netplay.Match, core *democore.Core, fps *fpsController) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		outcome, err := match.AddLocalInputAndFastforward(ctx, core, 0)
		if err != nil {
			logger.Warn("fastforward failed", zap.Error(err))
			return
		}

		if outcome != nil {
			logger.Info("round finished", zap.Stringer("outcome", *outcome))

			localInitial, snapErr := core.SnapshotState()
			if snapErr != nil {
				logger.Fatal("failed to snapshot next round's local state", zap.Error(snapErr))
			}

			if _, err := match.StartRound(localInitial, localInitial, nil); err != nil {
				logger.Fatal("failed to start next round", zap.Error(err))
			}
		}

		time.Sleep(fps.frameInterval())
	}
}

func dial(o *opts) (net.Conn, error) {
	if o.connectTo != "" {
		return net.Dial("tcp", o.connectTo)
	}

	listener, err := net.Listen("tcp", o.listenAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", o.listenAddr, err)
	}
	defer listener.Close()

	return listener.Accept()
}

// deriveSeed turns an operator-supplied shared secret into the 16-byte
// match RNG seed both sides must agree on bit for bit.
func deriveSeed(sessionKey string) [16]byte {
	sum := sha256.Sum256([]byte(sessionKey))

	var seed [16]byte
	copy(seed[:], sum[:16])

	return seed
}

// fpsController is the CLI's netplay.FPSController: it just remembers the
// last requested target so the frame loop can sleep the right amount.
type fpsController struct {
	logger *zap.Logger
	target float32
}

func (f *fpsController) SetFPSTarget(fps float32) {
	f.target = fps
}

func (f *fpsController) frameInterval() time.Duration {
	target := f.target
	if target <= 0 {
		target = netplay.ExpectedFPS
	}
	return time.Duration(float64(time.Second) / float64(target))
}
