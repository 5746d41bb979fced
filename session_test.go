package ntrip

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunSession_RtcmPassthrough(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()

	var mu sync.Mutex
	var received []byte
	stop := make(chan struct{})
	restart := make(chan struct{})

	go func() {
		server.Write([]byte{0x01, 0x02})
		server.Write([]byte{0x03})
		time.Sleep(50 * time.Millisecond)
		close(stop)
	}()

	res := runSession(client, stop, restart, time.Hour, time.Second,
		func() []byte { return nil },
		func(data []byte) {
			mu.Lock()
			received = append(received, data...)
			mu.Unlock()
		},
	)

	assert.Equal(t, sessionStoppedByCaller, res.reason)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, received)
}

func TestRunSession_SendsGGAOnSchedule(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	stop := make(chan struct{})
	restart := make(chan struct{})
	gga := []byte("$GPGGA,test*00\r\n")

	readDone := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 64)
		n, _ := server.Read(buf)
		readDone <- buf[:n]
	}()

	go func() {
		runSession(client, stop, restart, 10*time.Millisecond, time.Second,
			func() []byte { return gga },
			func([]byte) {},
		)
	}()

	select {
	case got := <-readDone:
		assert.Equal(t, gga, got)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for GGA report")
	}
	close(stop)
}

func TestRunSession_RecvTimeout(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	stop := make(chan struct{})
	restart := make(chan struct{})

	res := runSession(client, stop, restart, time.Hour, 50*time.Millisecond,
		func() []byte { return nil },
		func([]byte) {},
	)

	assert.Equal(t, sessionRecvTimeout, res.reason)
	assert.Equal(t, ErrorRecvTimeout, res.kind)
}

func TestRunSession_SocketErrorOnEOF(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	stop := make(chan struct{})
	restart := make(chan struct{})

	server.Close()

	res := runSession(client, stop, restart, time.Hour, time.Second,
		func() []byte { return nil },
		func([]byte) {},
	)

	assert.Equal(t, sessionSocketError, res.reason)
	assert.Equal(t, ErrorSocket, res.kind)
}

func TestRunSession_RestartRequested(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	stop := make(chan struct{})
	restart := make(chan struct{})
	close(restart)

	res := runSession(client, stop, restart, time.Hour, time.Second,
		func() []byte { return nil },
		func([]byte) {},
	)

	require.Equal(t, sessionRestartRequested, res.reason)
}
