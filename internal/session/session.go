// Package session runs the echo request/reply loop against one target.
package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"slices"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/postalsys/echoping/internal/icmp"
	"github.com/postalsys/echoping/internal/logging"
	"github.com/postalsys/echoping/internal/metrics"
	"github.com/postalsys/echoping/internal/stats"
)

// DefaultInterval is the pause between echo requests. It also bounds how
// long a request waits for its reply.
const DefaultInterval = time.Second

// maxDatagram covers the largest IPv4 header plus a generous ICMP payload.
const maxDatagram = 1500

// State is a step of the session loop. A session starts Ready: the target
// is resolved before the session is created.
type State int32

const (
	StateReady State = iota
	StateSending
	StateAwaitingReply
	StateRecording
	StateSleeping
	StateTerminating
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateReady:
		return "READY"
	case StateSending:
		return "SENDING"
	case StateAwaitingReply:
		return "AWAITING_REPLY"
	case StateRecording:
		return "RECORDING"
	case StateSleeping:
		return "SLEEPING"
	case StateTerminating:
		return "TERMINATING"
	default:
		return "UNKNOWN"
	}
}

// PacketConn is the raw socket the session drives. ReadFrom must return
// whole IPv4 datagrams and honor SetReadDeadline.
type PacketConn interface {
	WriteTo(b []byte, dst net.IP) error
	ReadFrom(b []byte) (int, net.IP, error)
	SetReadDeadline(t time.Time) error
}

// Config describes the target of a session.
type Config struct {
	// Host is the target as given by the user.
	Host string

	// Target is the resolved IPv4 address.
	Target net.IP

	// ID is the echo identifier, constant for the session.
	ID uint16

	// Interval is the pacing between requests. Zero means DefaultInterval.
	Interval time.Duration
}

// Option customizes a Session.
type Option func(s *Session)

// WithReporter sets where per-packet lines are printed.
func WithReporter(r *stats.Reporter) Option {
	return func(s *Session) {
		s.reporter = r
	}
}

// WithMetrics sets the metrics instance.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) {
		s.metrics = m
	}
}

// WithClock replaces the clock used for RTT timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

// Session owns all mutable state of one ping run. Only Run mutates it;
// State and Stats may be read from other goroutines.
type Session struct {
	cfg      Config
	conn     PacketConn
	logger   *slog.Logger
	stats    *stats.Stats
	reporter *stats.Reporter
	metrics  *metrics.Metrics
	limiter  *rate.Limiter
	now      func() time.Time

	state   atomic.Int32
	seq     uint16
	pending map[uint16]time.Time // send time by sequence
	buf     []byte
}

// New creates a session in the Ready state.
func New(cfg Config, conn PacketConn, logger *slog.Logger, opts ...Option) *Session {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}

	s := &Session{
		cfg:     cfg,
		conn:    conn,
		logger:  logging.Component(logger, "session"),
		stats:   stats.New(),
		now:     time.Now,
		limiter: rate.NewLimiter(rate.Every(cfg.Interval), 1),
		pending: make(map[uint16]time.Time),
		buf:     make([]byte, maxDatagram),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.reporter == nil {
		s.reporter = stats.NewReporter(io.Discard)
	}
	if s.metrics == nil {
		s.metrics = metrics.Default()
	}

	s.setState(StateReady)
	return s
}

// State returns the current loop state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Stats returns the accumulator of this session.
func (s *Session) Stats() *stats.Stats {
	return s.stats
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
}

// Run sends one echo request per interval until ctx is cancelled, then
// stamps the end time and returns the final statistics.
func (s *Session) Run(ctx context.Context) stats.Snapshot {
	s.stats.Start(s.now())
	s.logger.Debug("session started",
		logging.KeyHost, s.cfg.Host,
		logging.KeyTarget, s.cfg.Target.String(),
		logging.KeyIdentifier, s.cfg.ID)

	for {
		s.setState(StateSleeping)
		if err := s.limiter.Wait(ctx); err != nil {
			break
		}
		s.cycle(ctx)
		if ctx.Err() != nil {
			break
		}
	}

	s.setState(StateTerminating)
	s.stats.Finish(s.now())
	snap := s.stats.Snapshot()

	s.logger.Debug("session finished",
		logging.KeyCount, snap.Sent,
		logging.KeyDuration, snap.Elapsed().String())

	return snap
}

// cycle transmits the next request and waits for its reply. A failed
// transmit leaves the sequence number unused, so the retry reuses it.
func (s *Session) cycle(ctx context.Context) {
	s.setState(StateSending)

	seq := s.seq + 1
	pkt := icmp.BuildEchoRequest(s.cfg.ID, seq)

	sentAt := s.now()
	if err := s.conn.WriteTo(pkt, s.cfg.Target); err != nil {
		s.metrics.RecordSendError()
		s.logger.Warn("send failed, retrying next interval",
			logging.KeySequence, seq,
			logging.KeyError, err)
		return
	}

	s.seq = seq
	s.track(seq, sentAt)
	s.stats.RecordSent()
	s.metrics.RecordSent(seq)

	s.setState(StateAwaitingReply)
	s.awaitReply(ctx, seq)
}

// track registers seq as the only request in flight.
func (s *Session) track(seq uint16, sentAt time.Time) {
	for k := range s.pending {
		delete(s.pending, k)
	}
	s.pending[seq] = sentAt
}

// awaitReply reads datagrams until the reply for seq arrives, the wait
// window closes, or ctx is cancelled. Datagrams that fail validation are
// reported and skipped.
func (s *Session) awaitReply(ctx context.Context, seq uint16) {
	if err := s.conn.SetReadDeadline(time.Now().Add(s.cfg.Interval)); err != nil {
		s.metrics.RecordReceiveError()
		s.logger.Warn("set read deadline failed",
			logging.KeySequence, seq,
			logging.KeyError, err)
		return
	}

	// Cancellation unblocks a pending read by moving the deadline into the past.
	stop := context.AfterFunc(ctx, func() {
		s.conn.SetReadDeadline(time.Unix(1, 0))
	})
	defer stop()

	// Routine rejections are reported at info once per reason per cycle.
	var noted []string

	for {
		n, src, err := s.conn.ReadFrom(s.buf)
		recvAt := s.now()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, os.ErrDeadlineExceeded) {
				s.metrics.RecordTimeout()
				s.logger.Info("no reply",
					logging.KeySequence, seq,
					logging.KeyDuration, s.cfg.Interval.String())
				return
			}
			s.metrics.RecordReceiveError()
			s.logger.Warn("receive failed, retrying next interval",
				logging.KeySequence, seq,
				logging.KeyError, err)
			return
		}

		reply, err := icmp.ParseEchoReply(s.buf[:n], s.cfg.ID)
		if err != nil {
			noted = s.reject(err, src, noted)
			continue
		}

		sentAt, ok := s.pending[reply.Seq]
		if !ok {
			s.metrics.RecordInvalid(metrics.ReasonStale)
			s.logger.Debug("reply for a request no longer in flight",
				logging.KeySequence, reply.Seq,
				logging.KeySource, src.String())
			continue
		}
		delete(s.pending, reply.Seq)

		s.setState(StateRecording)
		rtt := recvAt.Sub(sentAt)
		s.stats.RecordReply(rtt)
		s.metrics.RecordReply(rtt)
		s.reporter.Reply(reply.Len, src, reply.Seq, reply.TTL, rtt)
		return
	}
}

// reject logs a datagram that failed validation and returns the updated
// list of routine reasons already reported this cycle. Replies meant for
// other processes and our own looped-back requests are routine on a raw
// socket: the first of each kind per cycle logs at info, the rest at debug.
func (s *Session) reject(err error, src net.IP, noted []string) []string {
	reason := metrics.ReasonMalformed
	level := slog.LevelWarn
	routine := false
	switch {
	case errors.Is(err, icmp.ErrTooShort):
		reason = metrics.ReasonTooShort
	case errors.Is(err, icmp.ErrWrongType):
		reason = metrics.ReasonWrongType
		routine = true
	case errors.Is(err, icmp.ErrIdentifierMismatch):
		reason = metrics.ReasonForeignID
		routine = true
	}

	if routine {
		level = slog.LevelInfo
		if slices.Contains(noted, reason) {
			level = slog.LevelDebug
		} else {
			noted = append(noted, reason)
		}
	}

	s.metrics.RecordInvalid(reason)
	s.logger.Log(context.Background(), level, "datagram ignored",
		logging.KeyReason, reason,
		logging.KeySource, src.String(),
		logging.KeyError, err)
	return noted
}
