package ntrip

import "time"

// Config is an immutable snapshot of everything a connect attempt needs:
// caster address and credentials, the rover's initial position, and the
// reconnect/timeout bounds. A Client never mutates a Config in place —
// UpdateConfig replaces the whole snapshot, and the worker clones it at
// the start of each connect attempt (spec §3/§9).
type Config struct {
	Host       string
	Port       uint16
	User       string
	Password   string
	Mountpoint string

	// Latitude/Longitude are WGS84 degrees. (0, 0) means "unset" — the
	// client waits in WaitingLLA until SetLocation/SetGgaString is called.
	Latitude  float64
	Longitude float64

	GGAReportIntervalS int
	AutoReconnect      bool

	ReconnectIntervalMS    uint32
	MaxReconnectIntervalMS uint32
	MaxReconnectAttempts   uint32

	ConnectTimeoutMS uint32
	RecvTimeoutMS    uint32
}

// ConfigOption customizes a Config produced by NewConfig.
type ConfigOption func(*Config)

// NewConfig builds a Config with the documented defaults (spec §3),
// applying any options in order.
func NewConfig(host string, opts ...ConfigOption) Config {
	c := Config{
		Host:                   host,
		Port:                   8002,
		GGAReportIntervalS:     1,
		AutoReconnect:          true,
		ReconnectIntervalMS:    3000,
		MaxReconnectIntervalMS: 5000,
		MaxReconnectAttempts:   0,
		ConnectTimeoutMS:       5000,
		RecvTimeoutMS:          10000,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func WithPort(port uint16) ConfigOption {
	return func(c *Config) { c.Port = port }
}

func WithCredentials(user, password string) ConfigOption {
	return func(c *Config) {
		c.User = user
		c.Password = password
	}
}

func WithMountpoint(mountpoint string) ConfigOption {
	return func(c *Config) { c.Mountpoint = mountpoint }
}

func WithLocation(latitude, longitude float64) ConfigOption {
	return func(c *Config) {
		c.Latitude = latitude
		c.Longitude = longitude
	}
}

func WithGGAReportInterval(seconds int) ConfigOption {
	return func(c *Config) { c.GGAReportIntervalS = seconds }
}

func WithAutoReconnect(enabled bool) ConfigOption {
	return func(c *Config) { c.AutoReconnect = enabled }
}

func WithReconnectBounds(initialMS, maxMS uint32, maxAttempts uint32) ConfigOption {
	return func(c *Config) {
		c.ReconnectIntervalMS = initialMS
		c.MaxReconnectIntervalMS = maxMS
		c.MaxReconnectAttempts = maxAttempts
	}
}

func WithTimeouts(connectMS, recvMS uint32) ConfigOption {
	return func(c *Config) {
		c.ConnectTimeoutMS = connectMS
		c.RecvTimeoutMS = recvMS
	}
}

// hasLocation reports whether the config carries a non-sentinel position.
func (c Config) hasLocation() bool {
	return c.Latitude != 0 || c.Longitude != 0
}

// valid reports whether the config is acceptable to UpdateConfig.
// An empty host or mountpoint is rejected per spec §7.
func (c Config) valid() bool {
	return c.Host != "" && c.Mountpoint != ""
}

func (c Config) connectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutMS) * time.Millisecond
}

func (c Config) recvTimeout() time.Duration {
	return time.Duration(c.RecvTimeoutMS) * time.Millisecond
}

// backoff computes the delay before reconnect attempt k (k >= 1), per the
// spec §4.5 formula: min(initial * 2^(k-1), max).
func (c Config) backoff(attempt uint32) time.Duration {
	if attempt == 0 {
		return 0
	}
	delayMS := uint64(c.ReconnectIntervalMS)
	for i := uint32(1); i < attempt; i++ {
		delayMS *= 2
		if delayMS > uint64(c.MaxReconnectIntervalMS) {
			delayMS = uint64(c.MaxReconnectIntervalMS)
			break
		}
	}
	if delayMS > uint64(c.MaxReconnectIntervalMS) {
		delayMS = uint64(c.MaxReconnectIntervalMS)
	}
	return time.Duration(delayMS) * time.Millisecond
}
