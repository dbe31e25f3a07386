package bodycomp

import (
	"math"

	"github.com/coachfit/coachfit/internal/users"
)

type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

type Favorability string

const (
	Favorable   Favorability = "favorable"
	Unfavorable Favorability = "unfavorable"
	Neutral     Favorability = "neutral"
)

type Metric string

const (
	MetricWeight Metric = "weight"
	MetricMuscle Metric = "muscle"
	MetricFat    Metric = "fat"
)

// trendDeadband is in absolute units (kilograms or percentage points),
// movements below it are measurement jitter.
const trendDeadband = 0.5

// ClassifyTrend has no concept of calendar windows, the caller picks which
// two values to compare.
func ClassifyTrend(oldValue, newValue float64) Trend {
	diff := newValue - oldValue
	if math.Abs(diff) < trendDeadband {
		return TrendStable
	}
	if diff > 0 {
		return TrendUp
	}
	return TrendDown
}

// TrendFavorability maps a metric trend to favorable/unfavorable/neutral
// relative to the owner's goal. Display concern only, never persisted.
func TrendFavorability(metric Metric, trend Trend, goal users.Goal) Favorability {
	if goal == users.GoalMaintenance {
		if trend == TrendStable {
			return Favorable
		}
		return Neutral
	}

	if trend == TrendStable {
		return Neutral
	}

	switch metric {
	case MetricWeight:
		switch goal {
		case users.GoalFatLoss:
			if trend == TrendDown {
				return Favorable
			}
			return Unfavorable
		case users.GoalMuscleGain:
			if trend == TrendUp {
				return Favorable
			}
			return Unfavorable
		}
	case MetricMuscle:
		// more muscle works for any goal
		if trend == TrendUp {
			return Favorable
		}
		return Unfavorable
	case MetricFat:
		if trend == TrendDown {
			return Favorable
		}
		return Unfavorable
	}

	return Neutral
}
