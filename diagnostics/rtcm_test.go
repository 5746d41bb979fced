package diagnostics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifier_ParseError(t *testing.T) {
	c := NewClassifier()
	c.Observe([]byte{0x00, 0x01, 0x02})

	stats := c.Stats()
	assert.Equal(t, 3, stats.BytesTotal)
	assert.Equal(t, 0, stats.MessageTotal)
}

func TestClassifier_StatsIsolated(t *testing.T) {
	c := NewClassifier()
	c.Observe([]byte{0xAA})

	snapshot := c.Stats()
	snapshot.Counts[9999] = 1

	assert.NotContains(t, c.Stats().Counts, 9999)
}
