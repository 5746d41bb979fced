// Package diagnostics provides a non-invasive observer of the RTCM
// stream: it counts message types for visibility but never alters or
// gates the bytes a client forwards to its own RTCM callback.
package diagnostics

import (
	"sync"

	"github.com/go-gnss/rtcm"
)

// Stats is a snapshot of per-message-type counters.
type Stats struct {
	Counts       map[int]int
	ParseErrors  int
	BytesTotal   int
	MessageTotal int
}

// Classifier implements ntrip.RtcmObserver: it parses every chunk handed
// to it purely to maintain counters, independent of whatever the client
// does with the raw bytes.
type Classifier struct {
	mu           sync.Mutex
	counts       map[int]int
	parseErrors  int
	bytesTotal   int
	messageTotal int
}

// NewClassifier returns an empty Classifier ready to attach to a client
// via SetRtcmClassifier.
func NewClassifier() *Classifier {
	return &Classifier{counts: make(map[int]int)}
}

// Observe parses data as a sequence of RTCM3 messages and updates the
// running counters. Parse failures are counted, not returned — this is
// a diagnostic tee, not a validator the stream depends on.
func (c *Classifier) Observe(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.bytesTotal += len(data)

	messages, err := rtcm.ParseMessages(data)
	if err != nil {
		c.parseErrors++
		return
	}

	for _, msg := range messages {
		c.counts[msg.Number()]++
		c.messageTotal++
	}
}

// Stats returns a copy of the current counters.
func (c *Classifier) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	counts := make(map[int]int, len(c.counts))
	for k, v := range c.counts {
		counts[k] = v
	}
	return Stats{
		Counts:       counts,
		ParseErrors:  c.parseErrors,
		BytesTotal:   c.bytesTotal,
		MessageTotal: c.messageTotal,
	}
}
