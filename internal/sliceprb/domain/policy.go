package sliceprb

// Decision is the outcome of the PRB policy for one slice subnet.
type Decision struct {
	Increase bool
	// Target is the PRB level to request; meaningful only when Increase.
	Target int
}

// Name labels the decision in logs and history.
func (d Decision) Name() string {
	if d.Increase {
		return "increase"
	}
	return "no_action"
}

// Decide grows the allocation only when the forecast exceeds the current
// level. The target is the forecast truncated toward zero.
func Decide(forecast float64, current int) Decision {
	if forecast > float64(current) {
		return Decision{Increase: true, Target: int(forecast)}
	}
	return Decision{}
}
