package ntrip

import (
	"io"
	"net"
	"time"
)

// sessionStopReason reports why runSession returned.
type sessionStopReason int

const (
	sessionStoppedByCaller sessionStopReason = iota
	sessionRestartRequested
	sessionSocketError
	sessionRecvTimeout
)

// sessionResult carries the stop reason plus, for the two fault cases,
// the ErrorKind to report.
type sessionResult struct {
	reason sessionStopReason
	kind   ErrorKind
	detail string
}

const sessionReadBufferSize = 1024

// runSession owns conn exclusively for as long as it runs, per spec
// §4.3: it alternates a bounded read with a non-blocking check of the
// GGA report schedule until told to stop, the socket errors, or a read
// goes quiet for longer than recvTimeout.
//
// getGGA is called fresh on every report tick so a concurrent
// SetLocation/SetGgaString is picked up without runSession needing to
// know about the cache's storage.
func runSession(
	conn net.Conn,
	stop <-chan struct{},
	restart <-chan struct{},
	reportInterval time.Duration,
	recvTimeout time.Duration,
	getGGA func() []byte,
	onRtcm func([]byte),
) sessionResult {
	buf := make([]byte, sessionReadBufferSize)
	lastData := time.Now()
	nextReport := time.Now().Add(reportInterval)

	for {
		if reason, fired := checkSignal(stop, restart); fired {
			return sessionResult{reason: reason}
		}

		readDeadline := nextReport
		if readDeadline.Before(time.Now()) {
			readDeadline = time.Now()
		}
		hardDeadline := lastData.Add(recvTimeout)
		if hardDeadline.Before(readDeadline) {
			readDeadline = hardDeadline
		}

		if err := conn.SetReadDeadline(readDeadline); err != nil {
			return sessionResult{reason: sessionSocketError, kind: ErrorSocket, detail: err.Error()}
		}

		n, err := conn.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			onRtcm(chunk)
			lastData = time.Now()
		}

		if err != nil {
			if reason, fired := checkSignal(stop, restart); fired {
				return sessionResult{reason: reason}
			}
			if err == io.EOF {
				return sessionResult{reason: sessionSocketError, kind: ErrorSocket, detail: "connection closed by caster"}
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				if time.Since(lastData) >= recvTimeout {
					return sessionResult{reason: sessionRecvTimeout, kind: ErrorRecvTimeout, detail: "no data within recv timeout"}
				}
				// Timed out on the report schedule, not the data
				// deadline; fall through to the send check below.
			} else {
				return sessionResult{reason: sessionSocketError, kind: ErrorSocket, detail: err.Error()}
			}
		}

		if !time.Now().Before(nextReport) {
			gga := getGGA()
			if len(gga) > 0 {
				if _, err := conn.Write(gga); err != nil {
					return sessionResult{reason: sessionSocketError, kind: ErrorSocket, detail: err.Error()}
				}
			}
			nextReport = nextReport.Add(reportInterval)
			if nextReport.Before(time.Now()) {
				nextReport = time.Now().Add(reportInterval)
			}
		}
	}
}

// checkSignal performs a non-blocking check of the stop and restart
// channels, reporting which (if either) has fired.
func checkSignal(stop, restart <-chan struct{}) (sessionStopReason, bool) {
	select {
	case <-stop:
		return sessionStoppedByCaller, true
	case <-restart:
		return sessionRestartRequested, true
	default:
		return 0, false
	}
}
