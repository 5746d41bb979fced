// Package location supplies ambient position sources that feed a
// ntrip.Client's SetLocation/SetGgaString, independent of the NTRIP wire
// protocol itself.
package location

import (
	"bufio"
	"fmt"
	"io"
	"time"

	"github.com/adrianmo/go-nmea"
	"go.bug.st/serial"
)

// Sink is the subset of ntrip.Client this package feeds positions into.
// Defined locally so this package does not import the core package.
type Sink interface {
	SetLocation(latitude, longitude float64)
	SetGgaString(sentence string)
}

// SerialConfig configures the serial port a GNSS receiver is attached
// to. Defaults mirror a TOPGNSS TOP708 at its default baud rate.
type SerialConfig struct {
	PortName string
	BaudRate int
}

// DefaultSerialConfig returns the baud rate commonly used by
// inexpensive u-blox/TOPGNSS receivers.
func DefaultSerialConfig(portName string) SerialConfig {
	return SerialConfig{PortName: portName, BaudRate: 38400}
}

// SerialSource reads NMEA sentences from a local serial-attached GNSS
// receiver and forwards GGA fixes to a Sink. It is a position source
// for the NTRIP client, not an NMEA consumer within the client itself.
type SerialSource struct {
	cfg    SerialConfig
	sink   Sink
	port   serial.Port
	stopCh chan struct{}
	done   chan struct{}

	onError func(error)
}

// NewSerialSource opens the configured serial port.
func NewSerialSource(cfg SerialConfig, sink Sink) (*SerialSource, error) {
	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(cfg.PortName, mode)
	if err != nil {
		return nil, fmt.Errorf("location: open serial port %s: %w", cfg.PortName, err)
	}
	if err := port.SetReadTimeout(500 * time.Millisecond); err != nil {
		port.Close()
		return nil, fmt.Errorf("location: set read timeout: %w", err)
	}

	return &SerialSource{
		cfg:    cfg,
		sink:   sink,
		port:   port,
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}, nil
}

// OnError registers a callback for sentence parse failures and I/O
// errors encountered while reading. Optional.
func (s *SerialSource) OnError(cb func(error)) {
	s.onError = cb
}

// Run reads lines from the serial port until Close is called, parsing
// each as NMEA and forwarding GGA fixes to the sink. Run blocks; call it
// from its own goroutine.
func (s *SerialSource) Run() {
	defer close(s.done)

	scanner := bufio.NewScanner(s.port)
	for scanner.Scan() {
		select {
		case <-s.stopCh:
			return
		default:
		}

		line := scanner.Text()
		if line == "" {
			continue
		}

		sentence, err := nmea.Parse(line)
		if err != nil {
			s.reportError(fmt.Errorf("location: parse nmea: %w", err))
			continue
		}

		if sentence.DataType() != nmea.TypeGGA {
			continue
		}
		gga := sentence.(nmea.GGA)
		s.sink.SetLocation(gga.Latitude, gga.Longitude)
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		s.reportError(fmt.Errorf("location: read serial port: %w", err))
	}
}

func (s *SerialSource) reportError(err error) {
	if s.onError != nil {
		s.onError(err)
	}
}

// Close stops Run and releases the serial port.
func (s *SerialSource) Close() error {
	close(s.stopCh)
	err := s.port.Close()
	<-s.done
	return err
}
