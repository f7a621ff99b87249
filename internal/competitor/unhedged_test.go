package competitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnhedgedLotsDoesNotArmAtOrBelowThreshold(t *testing.T) {
	breached := false
	u := NewUnhedgedLots(func() { breached = true })

	u.ApplyPositionDelta(10, 0) // exactly at the threshold, not over it
	u.Check(1000)
	assert.False(t, breached)
	assert.Equal(t, int64(10), u.Relative())
}

func TestUnhedgedLotsArmsJustOverThresholdAndFiresAtDeadline(t *testing.T) {
	breached := false
	u := NewUnhedgedLots(func() { breached = true })

	u.ApplyPositionDelta(11, 0) // one lot over the threshold

	u.Check(59.999999)
	assert.False(t, breached, "must not fire before the 60-second window elapses")

	u.Check(60.0)
	assert.True(t, breached)
}

func TestUnhedgedLotsFiresOnceOnly(t *testing.T) {
	calls := 0
	u := NewUnhedgedLots(func() { calls++ })

	u.ApplyPositionDelta(-11, 0)
	u.Check(60)
	u.Check(61)
	assert.Equal(t, 1, calls)
}

func TestUnhedgedLotsDisarmsWhenBackWithinThreshold(t *testing.T) {
	breached := false
	u := NewUnhedgedLots(func() { breached = true })

	u.ApplyPositionDelta(11, 0)
	u.ApplyPositionDelta(-2, 10) // relative now 9, back within threshold

	u.Check(100)
	assert.False(t, breached)
}

func TestUnhedgedLotsTracksSignedRelativePosition(t *testing.T) {
	u := NewUnhedgedLots(func() {})
	u.ApplyPositionDelta(5, 0)
	u.ApplyPositionDelta(-8, 1)
	assert.Equal(t, int64(-3), u.Relative())
}
