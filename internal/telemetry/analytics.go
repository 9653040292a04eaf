package telemetry

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/AquaSenseApp/aquasense/internal/apperr"
	"github.com/AquaSenseApp/aquasense/internal/risk"
)

type Averages struct {
	PH        float64
	Turbidity float64
}

// Report is the analytics of one sensor over a lookback window. A report
// with ReadingCount zero is the no-data report: Averages is nil and Message
// says why.
type Report struct {
	SensorID     string
	Period       string
	Window       time.Duration
	ReadingCount int
	Averages     *Averages
	Status       risk.Level
	Message      string
}

func (r Report) NoData() bool {
	return r.ReadingCount == 0
}

type Analyzer struct {
	cfg  Config
	deps Deps
}

// WindowHours converts a lookback given in whole hours, rejecting values
// outside 1..MaxWindow before they can overflow a time.Duration.
func (a *Analyzer) WindowHours(hours int) (time.Duration, error) {
	if hours <= 0 || int64(hours) > int64(a.cfg.MaxWindow/time.Hour) {
		return 0, apperr.Validation("invalid_window")
	}
	return time.Duration(hours) * time.Hour, nil
}

// Analyze averages the sensor's readings created within window of now. A
// zero window selects the configured default. The verdict applies the
// classifier to the exact means; the reported averages are rounded to two
// decimals.
func (a *Analyzer) Analyze(ctx context.Context, callerID, sensorID string, window time.Duration) (Report, error) {
	if window == 0 {
		window = a.cfg.DefaultWindow
	}
	if window < 0 || window > a.cfg.MaxWindow {
		return Report{}, apperr.Validation("invalid_window")
	}

	sensor, err := ownedSensor(ctx, a.deps.Store, callerID, sensorID)
	if err != nil {
		return Report{}, err
	}
	readings, err := a.deps.Store.ListReadingsSince(ctx, sensor.ID, a.deps.Now().Add(-window))
	if err != nil {
		return Report{}, storeFailure(err)
	}

	report := Report{
		SensorID:     sensor.ID,
		Period:       "Last " + describeWindow(window, true),
		Window:       window,
		ReadingCount: len(readings),
	}
	if len(readings) == 0 {
		report.Message = "No data for the last " + describeWindow(window, false)
		return report, nil
	}

	var sumPH, sumTurbidity, sumFlow float64
	for _, r := range readings {
		sumPH += r.PH
		sumTurbidity += r.Turbidity
		sumFlow += r.FlowRate
	}
	n := float64(len(readings))
	meanPH, meanTurbidity := sumPH/n, sumTurbidity/n

	assessment, err := risk.Classify(meanPH, meanTurbidity, sumFlow/n)
	if err != nil {
		return Report{}, storeFailure(err)
	}
	report.Averages = &Averages{PH: round2(meanPH), Turbidity: round2(meanTurbidity)}
	report.Status = assessment.Level
	return report, nil
}

// describeWindow renders whole-hour windows as "24 Hours" (title) or
// "24 hours"; other durations fall back to Go notation.
func describeWindow(window time.Duration, title bool) string {
	if window%time.Hour != 0 {
		return window.String()
	}
	hours := int(window / time.Hour)
	unit := "hours"
	switch {
	case hours == 1 && title:
		return "1 Hour"
	case hours == 1:
		return "hour"
	case title:
		unit = "Hours"
	}
	return fmt.Sprintf("%d %s", hours, unit)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
