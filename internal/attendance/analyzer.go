package attendance

import (
	"math"
	"time"
)

const consistencyWindowDays = 30

type Stats struct {
	Total            int     `json:"total"`
	CurrentStreak    int     `json:"currentStreak"`
	LongestStreak    int     `json:"longestStreak"`
	ConsistencyScore float64 `json:"consistencyScore"`
}

// Analyzer derives attendance stats from check-in lists ordered ascending
// by date. Linear scans only, the lists are small.
type Analyzer struct {
	// injectable clock for deterministic tests
	now func() time.Time
}

func NewAnalyzer() *Analyzer {
	return &Analyzer{now: time.Now}
}

func (a *Analyzer) Stats(checkIns []CheckIn) Stats {
	return Stats{
		Total:            len(checkIns),
		CurrentStreak:    a.currentStreak(checkIns),
		LongestStreak:    longestStreak(checkIns),
		ConsistencyScore: a.consistencyScore(checkIns),
	}
}

// currentStreak counts consecutive check-in days ending today or
// yesterday. A streak survives until a full day is missed.
func (a *Analyzer) currentStreak(checkIns []CheckIn) int {
	if len(checkIns) == 0 {
		return 0
	}

	today := NormalizeDate(a.now())
	last := NormalizeDate(checkIns[len(checkIns)-1].Date)
	if last.Before(today.AddDate(0, 0, -1)) {
		return 0
	}

	streak := 1
	for i := len(checkIns) - 2; i >= 0; i-- {
		current := NormalizeDate(checkIns[i].Date)
		expected := last.AddDate(0, 0, -streak)
		if !current.Equal(expected) {
			break
		}
		streak++
	}
	return streak
}

func longestStreak(checkIns []CheckIn) int {
	if len(checkIns) == 0 {
		return 0
	}

	longest, streak := 1, 1
	for i := 1; i < len(checkIns); i++ {
		prev := NormalizeDate(checkIns[i-1].Date)
		current := NormalizeDate(checkIns[i].Date)
		if current.Equal(prev.AddDate(0, 0, 1)) {
			streak++
		} else {
			streak = 1
		}
		if streak > longest {
			longest = streak
		}
	}
	return longest
}

// consistencyScore is check-ins over elapsed days within a rolling window
// of the last 30 days. Users newer than the window are measured against
// the days since their first check-in, so day one shows 1.0, not 1/30.
func (a *Analyzer) consistencyScore(checkIns []CheckIn) float64 {
	if len(checkIns) == 0 {
		return 0
	}

	today := NormalizeDate(a.now())
	windowStart := today.AddDate(0, 0, -(consistencyWindowDays - 1))

	inWindow := 0
	for _, checkIn := range checkIns {
		if !NormalizeDate(checkIn.Date).Before(windowStart) {
			inWindow++
		}
	}

	elapsedDays := consistencyWindowDays
	first := NormalizeDate(checkIns[0].Date)
	if first.After(windowStart) {
		elapsedDays = int(today.Sub(first).Hours()/24) + 1
	}
	if elapsedDays <= 0 {
		return 0
	}

	score := float64(inWindow) / float64(elapsedDays)
	return math.Round(score*100) / 100
}
