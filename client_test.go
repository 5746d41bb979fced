package ntrip

import (
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bramburn/ntripclient/internal/testcaster"
)

// stateRecorder collects every (old, new) transition a Client reports,
// for asserting the run's transition sequence is a valid path.
type stateRecorder struct {
	mu   sync.Mutex
	seen []State
}

func (r *stateRecorder) record(_, new State) {
	r.mu.Lock()
	r.seen = append(r.seen, new)
	r.mu.Unlock()
}

func (r *stateRecorder) snapshot() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]State, len(r.seen))
	copy(out, r.seen)
	return out
}

func waitForState(t *testing.T, client *Client, want State, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if client.GetState() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for state %s, last seen %s", want, client.GetState())
}

func acceptingCaster(t *testing.T, rtcm []byte) *testcaster.Caster {
	t.Helper()
	caster, err := testcaster.New(func(conn net.Conn) {
		defer conn.Close()
		if _, err := testcaster.ReadRequest(conn); err != nil {
			return
		}
		conn.Write([]byte("ICY 200 OK\r\n\r\n"))
		if len(rtcm) > 0 {
			conn.Write(rtcm)
		}
		time.Sleep(200 * time.Millisecond)
	})
	require.NoError(t, err)
	return caster
}

// TestClient_HappyPath covers seed scenario 1: Disconnected -> Connecting
// -> Running, with RTCM bytes forwarded verbatim.
func TestClient_HappyPath(t *testing.T) {
	caster := acceptingCaster(t, []byte{0x01, 0x02, 0x03})
	defer caster.Close()

	host, port := splitAddr(t, caster.Addr())
	cfg := NewConfig(host, WithPort(port), WithMountpoint("MOUNT"), WithLocation(1, 1))
	client := NewClient(cfg)
	defer client.Disconnect()

	var rtcmMu sync.Mutex
	var rtcm []byte
	client.OnRtcm(func(data []byte) {
		rtcmMu.Lock()
		rtcm = append(rtcm, data...)
		rtcmMu.Unlock()
	})

	rec := &stateRecorder{}
	client.OnState(rec.record)

	client.Connect()
	waitForState(t, client, Running, 2*time.Second)

	rtcmMu.Lock()
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, rtcm)
	rtcmMu.Unlock()

	seen := rec.snapshot()
	require.NotEmpty(t, seen)
	assert.Equal(t, Connecting, seen[0])
	assert.Contains(t, seen, Running)
}

// TestClient_WaitingLLA covers seed scenario 2: an unset position parks
// the worker in WaitingLLA until SetLocation arrives.
func TestClient_WaitingLLA(t *testing.T) {
	caster := acceptingCaster(t, nil)
	defer caster.Close()

	host, port := splitAddr(t, caster.Addr())
	cfg := NewConfig(host, WithPort(port), WithMountpoint("MOUNT"))
	client := NewClient(cfg)
	defer client.Disconnect()

	client.Connect()
	waitForState(t, client, WaitingLLA, time.Second)

	client.SetLocation(22.547, 114.086)
	waitForState(t, client, Running, 2*time.Second)
}

// TestClient_BadCredentials covers seed scenario 3: a 401 response is
// terminal even with auto-reconnect enabled.
func TestClient_BadCredentials(t *testing.T) {
	caster, err := testcaster.New(func(conn net.Conn) {
		defer conn.Close()
		testcaster.ReadRequest(conn)
		conn.Write([]byte("HTTP/1.1 401 Unauthorized\r\n\r\n"))
	})
	require.NoError(t, err)
	defer caster.Close()

	host, port := splitAddr(t, caster.Addr())
	cfg := NewConfig(host, WithPort(port), WithMountpoint("MOUNT"), WithLocation(1, 1), WithAutoReconnect(true))
	client := NewClient(cfg)
	defer client.Disconnect()

	client.Connect()
	waitForState(t, client, Error, 2*time.Second)

	assert.Equal(t, ErrorBadPassword, client.GetLastError())
}

// TestClient_BudgetExhaustion covers seed scenario 5: max_reconnect_attempts
// = 2 settles in Error with ReconnectFailed after exactly two retries.
func TestClient_BudgetExhaustion(t *testing.T) {
	cfg := NewConfig("127.0.0.1",
		WithPort(1), // nothing listens on loopback port 1
		WithMountpoint("MOUNT"),
		WithLocation(1, 1),
		WithReconnectBounds(10, 20, 2),
		WithTimeouts(200, 200),
	)
	client := NewClient(cfg)
	defer client.Disconnect()

	client.Connect()
	waitForState(t, client, Error, 5*time.Second)

	assert.Equal(t, ErrorReconnectFailed, client.GetLastError())
}

// TestClient_IdempotentConnectDisconnect covers the idempotency property:
// repeated calls are safe and produce no extra transitions.
func TestClient_IdempotentConnectDisconnect(t *testing.T) {
	caster := acceptingCaster(t, nil)
	defer caster.Close()

	host, port := splitAddr(t, caster.Addr())
	cfg := NewConfig(host, WithPort(port), WithMountpoint("MOUNT"), WithLocation(1, 1))
	client := NewClient(cfg)

	assert.True(t, client.Connect())
	assert.True(t, client.Connect())
	waitForState(t, client, Running, 2*time.Second)
	assert.True(t, client.Connect())

	client.Disconnect()
	client.Disconnect()
	assert.Equal(t, Disconnected, client.GetState())
}

// TestClient_WriteRtcmData_Reentrant covers the orthogonal passthrough
// API: legal in any state, delivered synchronously unchanged.
func TestClient_WriteRtcmData_Reentrant(t *testing.T) {
	client := NewClient(NewConfig("127.0.0.1", WithMountpoint("MOUNT")))

	var got []byte
	client.OnRtcm(func(data []byte) { got = data })

	payload := []byte{0xAA, 0xBB}
	client.WriteRtcmData(payload)

	assert.Equal(t, payload, got)
	assert.Equal(t, Disconnected, client.GetState())
}

// TestClient_Reset covers Error -> Disconnected via Reset, and that it
// is a no-op from any other state.
func TestClient_Reset(t *testing.T) {
	client := NewClient(NewConfig("127.0.0.1", WithMountpoint("MOUNT")))
	assert.False(t, client.Reset())

	caster, err := testcaster.New(func(conn net.Conn) {
		defer conn.Close()
		testcaster.ReadRequest(conn)
		conn.Write([]byte("HTTP/1.1 401 Unauthorized\r\n\r\n"))
	})
	require.NoError(t, err)
	defer caster.Close()

	host, port := splitAddr(t, caster.Addr())
	client2 := NewClient(NewConfig(host, WithPort(port), WithMountpoint("MOUNT"), WithLocation(1, 1)))
	client2.Connect()
	waitForState(t, client2, Error, 2*time.Second)

	assert.True(t, client2.Reset())
	assert.Equal(t, Disconnected, client2.GetState())
	assert.Equal(t, ErrorNone, client2.GetLastError())
}

func splitAddr(t *testing.T, addr string) (string, uint16) {
	t.Helper()
	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return host, uint16(port)
}
