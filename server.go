package octoserve

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const maxAcceptDelay = time.Second

// ServerStats is the snapshot reported by the status command.
type ServerStats struct {
	Address       string    `json:"address"`
	Accepted      uint64    `json:"accepted"`
	OK            uint64    `json:"ok"`
	ReadFailed    uint64    `json:"read_failed"`
	NotFound      uint64    `json:"not_found"`
	InternalError uint64    `json:"internal_error"`
	Pool          PoolStats `json:"pool"`
}

type ServerOption func(*Server)

// WithMeterProvider records server metrics with mp instead of the global
// provider.
func WithMeterProvider(mp metric.MeterProvider) ServerOption {
	return func(s *Server) {
		s.meterProvider = mp
	}
}

// Server accepts connections on one goroutine and serves each of them on the
// worker pool. One request is read and one response written per connection.
type Server struct {
	cfg    *Config
	router *Router
	pages  *ErrorPages
	pool   *Pool

	meterProvider metric.MeterProvider
	metrics       *serverMetrics

	mu       sync.Mutex
	listener net.Listener
	closed   atomic.Bool

	accepted atomic.Uint64
	outcomes [InternalError + 2]atomic.Uint64 // one per ErrorKind, then ok
}

// NewServer builds the router, the error pages and the worker pool from cfg.
func NewServer(cfg *Config, opts ...ServerOption) *Server {
	s := &Server{
		cfg:    cfg,
		router: NewRouter(cfg),
		pages:  NewErrorPages(cfg.Root),
		pool:   NewPool(cfg.Threads),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.meterProvider == nil {
		s.meterProvider = otel.GetMeterProvider()
	}
	s.metrics = newServerMetrics(s.meterProvider, s.pool)
	s.pool.OnPanic = func(interface{}) {
		s.metrics.taskPanicked(context.Background())
	}
	return s
}

func (s *Server) Config() *Config { return s.cfg }

func (s *Server) Pool() *Pool { return s.pool }

// Listen binds the configured address.
func (s *Server) Listen() (net.Listener, error) {
	ln, err := net.Listen("tcp", s.cfg.Address())
	if err != nil {
		return nil, errors.Wrapf(err, "unable to bind to %s", s.cfg.Address())
	}
	logger.Info().Str("address", ln.Addr().String()).Int("threads", s.cfg.Threads).Msg("[octoserve] Successfully started! Listening")
	return ln, nil
}

// ListenAndServe binds the configured address and serves until Close.
func (s *Server) ListenAndServe() error {
	ln, err := s.Listen()
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections from ln until the server is closed. Errors on a
// single accept are logged and skipped.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		ln.Close()
		return nil
	}
	s.listener = ln
	s.mu.Unlock()

	var delay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.closed.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			if delay == 0 {
				delay = 5 * time.Millisecond
			} else {
				delay *= 2
			}
			if delay > maxAcceptDelay {
				delay = maxAcceptDelay
			}
			logger.Warn().Err(err).Dur("retry_in", delay).Msg("[octoserve] failed to accept connection")
			time.Sleep(delay)
			continue
		}
		delay = 0

		s.accepted.Add(1)
		s.metrics.connectionAccepted(context.Background())
		if err := s.pool.Submit(func() { s.ServeConn(conn) }); err != nil {
			conn.Close()
		}
	}
}

// ServeConn runs the request pipeline on conn and closes it.
func (s *Server) ServeConn(conn net.Conn) {
	c := newCtx(conn)
	finished := false
	defer func() {
		if !finished {
			// The task panicked: answer like any other internal error before
			// the pool recovers it.
			c.Failed = true
			c.Kind = InternalError
			if !c.Writer.Written() {
				c.Writer.Write(s.pages.Bytes(InternalError))
			}
		}
		s.finish(c)
	}()

	if timeout := s.cfg.ReadTimeout(); timeout > 0 {
		conn.SetReadDeadline(time.Now().Add(timeout))
	}

	response, err := s.handle(c)
	if err != nil {
		c.Failed = true
		c.Kind = KindOf(err)
		LogError(logger, err, c)
		c.Writer.Write(s.pages.Bytes(c.Kind))
	} else {
		response.Transmit(c.Writer)
	}
	finished = true
}

func (s *Server) handle(c *Ctx) (*Response, error) {
	target, err := s.router.ReadTarget(c.Conn)
	if err != nil {
		return nil, err
	}
	c.Target = target
	return s.router.Serve(target)
}

func (s *Server) finish(c *Ctx) {
	c.Writer.Flush()
	c.Conn.Close()

	if c.Failed {
		s.outcomes[c.Kind].Add(1)
	} else {
		s.outcomes[InternalError+1].Add(1)
	}
	s.metrics.connectionDone(context.Background(), c)

	event := logger.Debug()
	if c.Writer.Err != nil {
		event = event.AnErr("write_error", c.Writer.Err)
	}
	event.
		Str("conn_id", c.ID).
		Str("remote", c.ClientIP()).
		Str("path", c.Target).
		Str("outcome", c.Outcome()).
		Int64("bytes", c.Writer.Bytes).
		Dur("duration", c.Elapsed()).
		Msg("[octoserve] connection served")
}

// Close stops accepting connections and stops the pool. Connections already
// being served are not waited for.
func (s *Server) Close() error {
	s.closed.Store(true)
	s.pool.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return errors.Wrap(err, "close listener")
	}
	return nil
}

func (s *Server) Stats() ServerStats {
	addr := s.cfg.Address()
	s.mu.Lock()
	if s.listener != nil {
		addr = s.listener.Addr().String()
	}
	s.mu.Unlock()

	return ServerStats{
		Address:       addr,
		Accepted:      s.accepted.Load(),
		OK:            s.outcomes[InternalError+1].Load(),
		ReadFailed:    s.outcomes[ReadFailed].Load(),
		NotFound:      s.outcomes[NotFound].Load(),
		InternalError: s.outcomes[InternalError].Load(),
		Pool:          s.pool.Stats(),
	}
}
