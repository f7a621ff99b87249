package timer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClockAdvanceScalesBySpeed(t *testing.T) {
	c := NewClock(10.0, 0)
	time.Sleep(20 * time.Millisecond)
	elapsed := c.Advance()
	// ~0.02s real time * speed 10 = ~0.2 virtual seconds.
	assert.Greater(t, elapsed, 0.15)
	assert.Less(t, elapsed, 0.5)
}

func TestClockReportsNegativeTimeDuringOpenDelay(t *testing.T) {
	c := NewClock(1.0, 1.0) // market opens one real second from now
	assert.Less(t, c.Advance(), 0.0)
}

func TestTickerNextNeverSkipsBackward(t *testing.T) {
	c := NewClock(1000.0, 0) // fast virtual clock so ticks accumulate quickly
	ticker := NewTicker(c, 0.01)
	defer ticker.Stop()

	first := ticker.Next()
	time.Sleep(5 * time.Millisecond)
	second := ticker.Next()

	assert.Equal(t, 0, first)
	assert.GreaterOrEqual(t, second, first+1)
}
