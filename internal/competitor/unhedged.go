package competitor

const (
	unhedgedLotsThreshold = 10
	unhedgedLotsWindow    = 60.0 // virtual seconds
)

// UnhedgedLots tracks the signed gap between a competitor's ETF and Future
// positions and arms a one-shot breach timer whenever the unsigned gap
// exceeds the tolerance. onBreach is invoked if the timer is allowed to
// run to completion without the position returning within bounds.
type UnhedgedLots struct {
	relative int64

	armed     bool
	deadline  float64
	onBreach  func()
}

// NewUnhedgedLots builds a monitor with zero relative position.
func NewUnhedgedLots(onBreach func()) *UnhedgedLots {
	return &UnhedgedLots{onBreach: onBreach}
}

// ApplyPositionDelta adjusts the tracked relative position (etf - future)
// and arms or disarms the timer as the unsigned gap crosses the threshold.
// now is the controller's current virtual time.
func (u *UnhedgedLots) ApplyPositionDelta(delta int64, now float64) {
	u.relative += delta
	excess := u.relative
	if excess < 0 {
		excess = -excess
	}

	if excess > unhedgedLotsThreshold {
		if !u.armed {
			u.armed = true
			u.deadline = now + unhedgedLotsWindow
		}
		return
	}
	u.armed = false
}

// Check fires the breach callback, once, if the timer has been armed past
// its deadline. Called on every tick by the owning competitor.
func (u *UnhedgedLots) Check(now float64) {
	if u.armed && now >= u.deadline {
		u.armed = false
		u.onBreach()
	}
}

// Relative reports the current signed etf-minus-future position gap.
func (u *UnhedgedLots) Relative() int64 {
	return u.relative
}
