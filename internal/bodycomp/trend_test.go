package bodycomp

import (
	"testing"

	"github.com/coachfit/coachfit/internal/users"

	"github.com/stretchr/testify/assert"
)

func TestClassifyTrend_deadband(t *testing.T) {
	assert.Equal(t, TrendStable, ClassifyTrend(70.0, 70.4))
	assert.Equal(t, TrendUp, ClassifyTrend(70.0, 70.6))
	assert.Equal(t, TrendDown, ClassifyTrend(70.0, 69.4))

	// exactly on the threshold is a move, the deadband is strict
	assert.Equal(t, TrendUp, ClassifyTrend(70.0, 70.5))
	assert.Equal(t, TrendDown, ClassifyTrend(70.0, 69.5))
}

func TestTrendFavorability(t *testing.T) {
	for name, tc := range map[string]struct {
		metric Metric
		trend  Trend
		goal   users.Goal
		want   Favorability
	}{
		"weight down, fat loss":      {MetricWeight, TrendDown, users.GoalFatLoss, Favorable},
		"weight up, fat loss":        {MetricWeight, TrendUp, users.GoalFatLoss, Unfavorable},
		"weight down, muscle gain":   {MetricWeight, TrendDown, users.GoalMuscleGain, Unfavorable},
		"weight up, muscle gain":     {MetricWeight, TrendUp, users.GoalMuscleGain, Favorable},
		"weight down, maintenance":   {MetricWeight, TrendDown, users.GoalMaintenance, Neutral},
		"weight stable, maintenance": {MetricWeight, TrendStable, users.GoalMaintenance, Favorable},
		"weight stable, fat loss":    {MetricWeight, TrendStable, users.GoalFatLoss, Neutral},
		"muscle up, fat loss":        {MetricMuscle, TrendUp, users.GoalFatLoss, Favorable},
		"muscle down, muscle gain":   {MetricMuscle, TrendDown, users.GoalMuscleGain, Unfavorable},
		"fat down, muscle gain":      {MetricFat, TrendDown, users.GoalMuscleGain, Favorable},
		"fat up, fat loss":           {MetricFat, TrendUp, users.GoalFatLoss, Unfavorable},
		"fat stable, maintenance":    {MetricFat, TrendStable, users.GoalMaintenance, Favorable},
	} {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, TrendFavorability(tc.metric, tc.trend, tc.goal))
		})
	}
}
