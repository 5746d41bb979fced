package ntrip

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/bramburn/ntripclient/internal/transport"
)

// RtcmObserver is a non-invasive read-only tee on the RTCM stream: it is
// notified of every chunk a Client forwards to its RtcmCallback but
// cannot alter or gate those bytes. diagnostics.Classifier implements
// this interface.
type RtcmObserver interface {
	Observe(data []byte)
}

// ClientOption customizes a Client produced by NewClient.
type ClientOption func(*Client)

// WithLogger overrides the internal logrus.Logger a Client logs through.
// A callback hook forwarding to the Log callback is attached
// automatically; supplying your own *logrus.Logger lets it also receive
// your application's other handlers/formatters.
func WithLogger(l *logrus.Logger) ClientOption {
	return func(c *Client) { c.rawLogger = l }
}

// WithDialer overrides the transport.Dialer a Client uses to reach the
// caster. Tests substitute a mock to simulate a dial failure without a
// real socket.
func WithDialer(d transport.Dialer) ClientOption {
	return func(c *Client) { c.dialer = d }
}

// Client is the lifecycle controller and public façade of this package:
// a durable NTRIP client session that acquires a position, performs the
// caster handshake, runs the GGA/RTCM session loop, and reconnects with
// exponential backoff on transient faults.
//
// A Client is not safe to copy by value; always hold it by pointer.
type Client struct {
	mu sync.Mutex

	config            Config
	state             State
	lastError         ErrorKind
	ggaCache          []byte
	reconnectAttempts uint32
	sessionID         string
	stopping          bool

	stopCh     chan struct{}
	wakeLLA    chan struct{}
	restartCh  chan struct{}
	workerDone chan struct{}

	observer RtcmObserver

	dialer    transport.Dialer
	rawLogger *logrus.Logger
	logger    logrus.FieldLogger
	cbs       *callbacks
}

// NewClient constructs a Client in the Disconnected state. If cfg
// already carries a non-sentinel position, the GGA cache is pre-seeded
// so Connect goes straight to Connecting instead of WaitingLLA.
func NewClient(cfg Config, opts ...ClientOption) *Client {
	c := &Client{
		config: cfg,
		state:  Disconnected,
		dialer: transport.NetDialer{},
		cbs:    &callbacks{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.rawLogger == nil {
		c.rawLogger = logrus.StandardLogger()
	}
	attachCallbackHook(c.rawLogger, c.cbs)
	c.logger = c.rawLogger

	if cfg.hasLocation() {
		if gga, err := BuildGGA(cfg.Latitude, cfg.Longitude, time.Now()); err == nil {
			c.ggaCache = gga
		}
	}
	return c
}

// OnRtcm registers the callback invoked with every chunk of RTCM data.
func (c *Client) OnRtcm(cb RtcmCallback) { c.cbs.setRtcm(cb) }

// OnState registers the callback invoked after every committed state
// transition.
func (c *Client) OnState(cb StateCallback) { c.cbs.setState(cb) }

// OnError registers the callback invoked on every classified fault.
func (c *Client) OnError(cb ErrorCallback) { c.cbs.setError(cb) }

// OnLog registers the callback invoked for internal diagnostic messages.
func (c *Client) OnLog(cb LogCallback) { c.cbs.setLog(cb) }

// SetRtcmClassifier attaches a read-only observer of the RTCM stream.
// Pass nil to detach.
func (c *Client) SetRtcmClassifier(o RtcmObserver) {
	c.mu.Lock()
	c.observer = o
	c.mu.Unlock()
}

// GetState returns the current lifecycle state.
func (c *Client) GetState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// GetLastError returns the most recent non-None fault, cleared to
// ErrorNone on a successful entry to Running and on Reset.
func (c *Client) GetLastError() ErrorKind {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastError
}

// IsRunning reports whether the session loop is actively connected.
func (c *Client) IsRunning() bool {
	return c.GetState() == Running
}

// SessionID returns the correlation id of the current (or most recent)
// connect attempt, or "" if no connect attempt has started yet.
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Connect spawns the worker goroutine if currently Disconnected. Per the
// original SDK's own documentation, a true return means the worker was
// started (or the call was a no-op because one was already running) —
// it does not mean the caster connection has succeeded; observe that
// through OnState/OnError.
func (c *Client) Connect() bool {
	c.mu.Lock()
	if c.state != Disconnected {
		c.mu.Unlock()
		return true
	}

	next := WaitingLLA
	if len(c.ggaCache) > 0 {
		next = Connecting
	}
	from := c.state
	c.state = next
	c.stopping = false
	c.reconnectAttempts = 0
	c.stopCh = make(chan struct{})
	c.wakeLLA = make(chan struct{})
	c.restartCh = make(chan struct{})
	c.workerDone = make(chan struct{})
	stopCh, done := c.stopCh, c.workerDone
	c.mu.Unlock()

	c.cbs.fireState(from, next)
	go c.runWorker(stopCh, done)
	return true
}

// Disconnect stops any running worker and blocks until it has exited,
// then settles in Disconnected. Safe to call from any state, including
// repeatedly and concurrently with itself.
func (c *Client) Disconnect() {
	c.mu.Lock()
	state := c.state
	if state == Disconnected {
		c.mu.Unlock()
		return
	}
	if state == Error {
		c.state = Disconnected
		c.mu.Unlock()
		c.cbs.fireState(Error, Disconnected)
		return
	}

	stopCh := c.stopCh
	done := c.workerDone
	alreadyStopping := c.stopping
	c.stopping = true
	c.mu.Unlock()

	if !alreadyStopping && stopCh != nil {
		close(stopCh)
	}
	if done != nil {
		<-done
	}
}

// Reset clears a terminal Error and returns to Disconnected. Reset is a
// no-op (returns false) from any other state.
func (c *Client) Reset() bool {
	c.mu.Lock()
	if c.state != Error {
		c.mu.Unlock()
		return false
	}
	c.state = Disconnected
	c.lastError = ErrorNone
	c.mu.Unlock()
	c.cbs.fireState(Error, Disconnected)
	return true
}

// SetLocation recomputes the cached GGA sentence from a WGS84 position
// and unblocks a worker waiting in WaitingLLA. An out-of-range
// coordinate is logged and ignored; the cache is left unchanged.
func (c *Client) SetLocation(latitude, longitude float64) {
	gga, err := BuildGGA(latitude, longitude, time.Now())
	if err != nil {
		c.logger.Warnf("ntrip: ignoring SetLocation: %v", err)
		return
	}
	c.setGGAAndUnblock(gga)
}

// SetGgaString stores a verbatim GGA sentence, bypassing the builder. It
// does not validate the NMEA checksum, only that the string is
// non-empty.
func (c *Client) SetGgaString(sentence string) {
	if sentence == "" {
		c.logger.Warn("ntrip: ignoring empty SetGgaString")
		return
	}
	c.setGGAAndUnblock([]byte(sentence))
}

func (c *Client) setGGAAndUnblock(gga []byte) {
	c.mu.Lock()
	c.ggaCache = gga
	from := c.state
	var wake chan struct{}
	if from == WaitingLLA {
		c.state = Connecting
		wake = c.wakeLLA
		c.wakeLLA = make(chan struct{})
	}
	c.mu.Unlock()

	if wake != nil {
		c.cbs.fireState(WaitingLLA, Connecting)
		close(wake)
	}
}

// UpdateConfig atomically replaces the configuration snapshot. An empty
// host or mountpoint is rejected with a warning. If a worker is
// currently connecting, running, or backed off waiting to reconnect, it
// is signalled to restart against the new snapshot the next time it
// reaches a safe point.
func (c *Client) UpdateConfig(cfg Config) bool {
	if !cfg.valid() {
		c.logger.Warn("ntrip: rejected UpdateConfig with empty host or mountpoint")
		return false
	}

	c.mu.Lock()
	c.config = cfg
	state := c.state
	var restart chan struct{}
	if state == Connecting || state == Running || state == Reconnecting {
		restart = c.restartCh
		c.restartCh = make(chan struct{})
	}
	c.mu.Unlock()

	if restart != nil {
		close(restart)
	}
	return true
}

// transition commits a validated state change and fires the State
// callback afterward, so a callback that calls GetState observes the
// new value. Entering Running clears the reconnect counter and the
// last-reported error.
func (c *Client) transition(to State) bool {
	c.mu.Lock()
	from := c.state
	if !transitionAllowed(from, to) {
		c.mu.Unlock()
		return false
	}
	c.state = to
	if to == Running {
		c.reconnectAttempts = 0
		c.lastError = ErrorNone
	}
	c.mu.Unlock()
	c.cbs.fireState(from, to)
	return true
}

// transitionWithFault records kind as the last error and fires the
// Error callback before committing the accompanying state transition,
// per the ordering the callback surface guarantees.
func (c *Client) transitionWithFault(kind ErrorKind, detail string, to State) {
	c.mu.Lock()
	c.lastError = kind
	c.mu.Unlock()
	c.cbs.fireError(kind, detail)
	c.transition(to)
}

func (c *Client) forceDisconnect() {
	c.mu.Lock()
	from := c.state
	c.state = Disconnected
	c.stopping = false
	c.mu.Unlock()
	c.cbs.fireState(from, Disconnected)
}

func (c *Client) emitRtcm(data []byte) {
	c.cbs.fireRtcm(data)
	c.mu.Lock()
	observer := c.observer
	c.mu.Unlock()
	if observer != nil {
		observer.Observe(data)
	}
}

// WriteRtcmData delivers data to the RTCM callback synchronously on the
// caller's goroutine, independent of the connection state and without
// touching the socket.
func (c *Client) WriteRtcmData(data []byte) {
	c.emitRtcm(data)
}

// runWorker is the single goroutine a Connect call starts; it owns the
// socket across every connect attempt of that run and drives the state machine between WaitingLLA,
// Connecting, Running, and Reconnecting until it settles in Error or
// Disconnected, at which point it exits (worker existence tracks those
// four states exactly, per the lifecycle invariant).
func (c *Client) runWorker(stopCh, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-stopCh:
			c.forceDisconnect()
			return
		default:
		}

		switch c.GetState() {
		case WaitingLLA:
			c.mu.Lock()
			wake := c.wakeLLA
			c.mu.Unlock()
			select {
			case <-stopCh:
				c.forceDisconnect()
				return
			case <-wake:
			}

		case Connecting:
			sessionID := uuid.NewString()
			c.mu.Lock()
			c.sessionID = sessionID
			c.mu.Unlock()
			if !c.runConnectAttempt(stopCh, newWorkerLogger(c.logger, sessionID)) {
				return
			}

		case Reconnecting:
			if !c.waitBackoff(stopCh) {
				return
			}
			c.transition(Connecting)

		default:
			return
		}
	}
}

// runConnectAttempt dials, performs the handshake, and, on success, runs
// the session loop until it ends. It returns false when the worker
// should exit (it settled in Error or was stopped), true when it should
// loop again (typically after landing in Reconnecting).
func (c *Client) runConnectAttempt(stopCh chan struct{}, logger logrus.FieldLogger) bool {
	c.mu.Lock()
	cfg := c.config
	gga := c.ggaCache
	restartCh := c.restartCh
	c.mu.Unlock()

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	logger.WithField("addr", addr).Debug("ntrip: dialing caster")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.connectTimeout())
	conn, err := c.dialer.DialContext(ctx, addr)
	cancel()
	if err != nil {
		kind := ErrorNetwork
		if ctx.Err() == context.DeadlineExceeded {
			kind = ErrorConnectTimeout
		}
		return c.handleFault(kind, err.Error(), logger)
	}

	result, err := performHandshake(conn, cfg, gga, cfg.connectTimeout())
	if err != nil {
		conn.Close()
		return c.handleFault(classifyHandshakeError(err), err.Error(), logger)
	}

	switch result.outcome {
	case handshakeBadPassword:
		conn.Close()
		logger.Warn("ntrip: caster rejected credentials")
		c.transitionWithFault(ErrorBadPassword, result.detail, Error)
		return false

	case handshakeRequestError:
		conn.Close()
		logger.WithField("detail", result.detail).Warn("ntrip: caster rejected request")
		c.transitionWithFault(ErrorRequest, result.detail, Error)
		return false
	}

	_ = conn.SetDeadline(time.Time{})
	if !c.transition(Running) {
		conn.Close()
		return false
	}
	logger.Info("ntrip: session established")

	if len(result.trailing) > 0 {
		c.emitRtcm(result.trailing)
	}

	return c.runRunningSession(conn, cfg, stopCh, restartCh, logger)
}

// runRunningSession runs the session loop over an established
// connection and handles whatever it returns.
func (c *Client) runRunningSession(conn net.Conn, cfg Config, stopCh, restartCh chan struct{}, logger logrus.FieldLogger) bool {
	watchDone := make(chan struct{})
	go func() {
		select {
		case <-stopCh:
			conn.Close()
		case <-restartCh:
			conn.Close()
		case <-watchDone:
		}
	}()

	res := runSession(
		conn,
		stopCh,
		restartCh,
		time.Duration(cfg.GGAReportIntervalS)*time.Second,
		cfg.recvTimeout(),
		func() []byte {
			c.mu.Lock()
			defer c.mu.Unlock()
			return c.ggaCache
		},
		c.emitRtcm,
	)
	close(watchDone)
	conn.Close()

	switch res.reason {
	case sessionStoppedByCaller:
		c.forceDisconnect()
		return false

	case sessionRestartRequested:
		logger.Info("ntrip: restarting session for updated config")
		c.transition(Reconnecting)
		c.transition(Connecting)
		return true

	default:
		logger.WithField("detail", res.detail).Warn("ntrip: session ended with a fault")
		return c.handleFault(res.kind, res.detail, logger)
	}
}

// handleFault classifies a connect or session fault against the current
// config's retry policy and budget, committing whichever of Reconnecting
// or Error follows from it. It returns true if the worker should keep
// running (landed in Reconnecting), false if it should exit.
func (c *Client) handleFault(kind ErrorKind, detail string, logger logrus.FieldLogger) bool {
	c.mu.Lock()
	cfg := c.config
	attempts := c.reconnectAttempts
	c.mu.Unlock()

	if !kind.retryable() || !cfg.AutoReconnect {
		c.transitionWithFault(kind, detail, Error)
		return false
	}

	if cfg.MaxReconnectAttempts > 0 && attempts >= cfg.MaxReconnectAttempts {
		logger.Warn("ntrip: reconnect attempts exhausted")
		c.transitionWithFault(ErrorReconnectFailed, "reconnect attempts exhausted", Error)
		return false
	}

	attempts++
	c.mu.Lock()
	c.reconnectAttempts = attempts
	c.mu.Unlock()

	logger.WithField("attempt", attempts).Warn("ntrip: scheduling reconnect")
	c.transitionWithFault(kind, detail, Reconnecting)
	return true
}

// waitBackoff sleeps for the current attempt's backoff delay, or returns
// early (true) if UpdateConfig signalled a restart, or exits the worker
// (false) if Disconnect was called.
func (c *Client) waitBackoff(stopCh chan struct{}) bool {
	c.mu.Lock()
	cfg := c.config
	attempts := c.reconnectAttempts
	restart := c.restartCh
	c.mu.Unlock()

	timer := time.NewTimer(cfg.backoff(attempts))
	defer timer.Stop()

	select {
	case <-stopCh:
		c.forceDisconnect()
		return false
	case <-restart:
		return true
	case <-timer.C:
		return true
	}
}
