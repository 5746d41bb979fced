package ntrip

import "sync"

// RtcmCallback receives every chunk of RTCM data read from the caster, in
// arrival order, on the worker goroutine (spec §5).
type RtcmCallback func(data []byte)

// StateCallback is invoked after the state has already been committed,
// so a callback that calls GetState observes the new value.
type StateCallback func(old, new State)

// ErrorCallback reports a fault classification and a human-readable
// detail string, fired before the state transition it accompanies.
type ErrorCallback func(kind ErrorKind, detail string)

// LogLevel mirrors the four levels of the Log callback surface (spec §6).
type LogLevel int

const (
	LogDebug LogLevel = iota
	LogInfo
	LogWarn
	LogError
)

func (l LogLevel) String() string {
	switch l {
	case LogDebug:
		return "debug"
	case LogInfo:
		return "info"
	case LogWarn:
		return "warn"
	case LogError:
		return "error"
	default:
		return "unknown"
	}
}

// LogCallback receives internal diagnostic messages.
type LogCallback func(level LogLevel, message string)

// callbacks is a mutex-protected cell holding the four user callbacks.
// Every setter replaces its field atomically under lock; every invoker
// takes a local copy of the function pointer before calling it, so the
// lock is never held while user code runs (spec §9).
type callbacks struct {
	mu    sync.RWMutex
	rtcm  RtcmCallback
	state StateCallback
	err   ErrorCallback
	log   LogCallback
}

func (c *callbacks) setRtcm(cb RtcmCallback) {
	c.mu.Lock()
	c.rtcm = cb
	c.mu.Unlock()
}

func (c *callbacks) setState(cb StateCallback) {
	c.mu.Lock()
	c.state = cb
	c.mu.Unlock()
}

func (c *callbacks) setError(cb ErrorCallback) {
	c.mu.Lock()
	c.err = cb
	c.mu.Unlock()
}

func (c *callbacks) setLog(cb LogCallback) {
	c.mu.Lock()
	c.log = cb
	c.mu.Unlock()
}

func (c *callbacks) fireRtcm(data []byte) {
	c.mu.RLock()
	cb := c.rtcm
	c.mu.RUnlock()
	if cb != nil {
		cb(data)
	}
}

func (c *callbacks) fireState(old, new State) {
	c.mu.RLock()
	cb := c.state
	c.mu.RUnlock()
	if cb != nil {
		cb(old, new)
	}
}

func (c *callbacks) fireError(kind ErrorKind, detail string) {
	c.mu.RLock()
	cb := c.err
	c.mu.RUnlock()
	if cb != nil {
		cb(kind, detail)
	}
}

func (c *callbacks) fireLog(level LogLevel, message string) {
	c.mu.RLock()
	cb := c.log
	c.mu.RUnlock()
	if cb != nil {
		cb(level, message)
	}
}
