// Package risk classifies water-quality measurements.
//
// Classify is the single source of the threshold policy. Per-reading
// ingestion and windowed analytics both call it, so the two can never
// disagree on what counts as unstable water.
package risk

import (
	"fmt"
	"math"
	"strings"

	"github.com/AquaSenseApp/aquasense/internal/apperr"
)

type Level string

const (
	Stable   Level = "STABLE"
	Unstable Level = "UNSTABLE"
)

const (
	MinSafePH        = 6.5
	MaxSafeTurbidity = 5.0

	// Physical bounds of the measurements themselves.
	minPH = 0.0
	maxPH = 14.0
)

type Violation string

const (
	ViolationLowPH         Violation = "ph_below_minimum"
	ViolationHighTurbidity Violation = "turbidity_above_maximum"
)

type Assessment struct {
	Level       Level
	Explanation string
	Violations  []Violation
}

func (a Assessment) Unstable() bool {
	return a.Level == Unstable
}

// Classify returns UNSTABLE when ph < 6.5 or turbidity > 5, STABLE otherwise.
// Non-finite or physically impossible values are rejected with a validation
// error instead of being classified.
func Classify(ph, turbidity, flowRate float64) (Assessment, error) {
	if err := validate(ph, turbidity, flowRate); err != nil {
		return Assessment{}, err
	}

	var violations []Violation
	var reasons []string
	if ph < MinSafePH {
		violations = append(violations, ViolationLowPH)
		reasons = append(reasons, fmt.Sprintf("pH %.2f is below the safe minimum of %.2f", ph, MinSafePH))
	}
	if turbidity > MaxSafeTurbidity {
		violations = append(violations, ViolationHighTurbidity)
		reasons = append(reasons, fmt.Sprintf("turbidity %.2f NTU exceeds the safe maximum of %.2f NTU", turbidity, MaxSafeTurbidity))
	}

	if len(violations) == 0 {
		return Assessment{
			Level:       Stable,
			Explanation: fmt.Sprintf("Water quality is within the normal range: pH %.2f and turbidity %.2f NTU.", ph, turbidity),
		}, nil
	}
	return Assessment{
		Level:       Unstable,
		Explanation: "Water quality is unstable: " + strings.Join(reasons, " and ") + ".",
		Violations:  violations,
	}, nil
}

func validate(ph, turbidity, flowRate float64) error {
	if !finite(ph) || ph < minPH || ph > maxPH {
		return apperr.Validation("invalid_ph")
	}
	if !finite(turbidity) || turbidity < 0 {
		return apperr.Validation("invalid_turbidity")
	}
	if !finite(flowRate) || flowRate < 0 {
		return apperr.Validation("invalid_flow_rate")
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
