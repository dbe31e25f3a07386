package bodycomp

import (
	"math"
	"time"
)

const monthlyWindowDays = 30

// Insight holds the change of each metric between the first and last record
// of some window. Changes are nil when the window holds fewer than 2 records.
type Insight struct {
	WeightChange *float64 `json:"weightChange"`
	MuscleChange *float64 `json:"muscleChange"`
	FatChange    *float64 `json:"fatChange"`
	PeriodDays   int      `json:"periodDays"`
}

// Analyzer derives insights from record lists ordered ascending by date.
type Analyzer struct {
	// injectable clock for deterministic window tests
	now func() time.Time
}

func NewAnalyzer() *Analyzer {
	return &Analyzer{now: time.Now}
}

// Insights compares the oldest and the newest record of the full list.
func (a *Analyzer) Insights(records []Record) Insight {
	if len(records) < 2 {
		return Insight{}
	}

	oldest, newest := records[0], records[len(records)-1]
	return Insight{
		WeightChange: roundedDelta(oldest.WeightKg, newest.WeightKg),
		MuscleChange: roundedDelta(oldest.SkeletalMuscleKg, newest.SkeletalMuscleKg),
		FatChange:    roundedDelta(oldest.BodyFatPercent, newest.BodyFatPercent),
		PeriodDays:   daysBetween(oldest.Date, newest.Date),
	}
}

// MonthlyInsights is computed over a rolling window of the last 30 days,
// NOT a calendar month. The window slides with the current time, so two
// calls on different days can cover different records.
func (a *Analyzer) MonthlyInsights(records []Record) Insight {
	cutoff := a.now().AddDate(0, 0, -monthlyWindowDays)

	var inWindow []Record
	for _, record := range records {
		if !record.Date.Before(cutoff) {
			inWindow = append(inWindow, record)
		}
	}

	if len(inWindow) < 2 {
		return Insight{PeriodDays: monthlyWindowDays}
	}

	return a.Insights(inWindow)
}

// roundedDelta rounds to 1 decimal, half away from zero.
func roundedDelta(oldValue, newValue float64) *float64 {
	delta := math.Round((newValue-oldValue)*10) / 10
	return &delta
}

// daysBetween counts partial days as whole days.
func daysBetween(from, to time.Time) int {
	return int(math.Ceil(to.Sub(from).Hours() / 24))
}
