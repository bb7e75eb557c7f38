package energysaving

// DefaultThreshold separates "idle" prediction values from active ones.
const DefaultThreshold = 0.04

// PowerState is the cached administrative condition of a cell.
type PowerState string

const (
	PowerOn  PowerState = "on"
	PowerOff PowerState = "off"
)

// Decision is the outcome of the energy-saving policy for one cell.
type Decision struct {
	Deactivate   bool
	Inconclusive bool
}

// Target is the power state the decision asks for.
func (d Decision) Target() PowerState {
	if d.Deactivate {
		return PowerOff
	}
	return PowerOn
}

// Name labels the decision in logs and history.
func (d Decision) Name() string {
	if d.Deactivate {
		return "deactivate"
	}
	return "keep_active"
}

// Decide deactivates only when every element of every prediction vector is
// below threshold. Anything else keeps the cell active; mixed or empty
// predictions are marked inconclusive.
func Decide(predictions [][]float64, threshold float64) Decision {
	var below, atOrAbove int
	for _, vector := range predictions {
		for _, v := range vector {
			if v < threshold {
				below++
			} else {
				atOrAbove++
			}
		}
	}
	switch {
	case below > 0 && atOrAbove == 0:
		return Decision{Deactivate: true}
	case atOrAbove > 0 && below == 0:
		return Decision{}
	default:
		return Decision{Inconclusive: true}
	}
}
