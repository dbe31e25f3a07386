package bodycomp

import (
	"time"

	"github.com/coachfit/coachfit/pkg"
)

// Record is a single body composition measurement. There is at most one
// record per owner per calendar date, the date is the upsert key.
type Record struct {
	ID               int       `json:"id"`
	OwnerID          int       `json:"ownerId"`
	Date             time.Time `json:"date"`
	WeightKg         float64   `json:"weightKg"`
	SkeletalMuscleKg float64   `json:"skeletalMuscleKg"`
	BodyFatPercent   float64   `json:"bodyFatPercent"`
	CreatedAt        time.Time `json:"createdAt"`
}

// NormalizeDate truncates a timestamp to its UTC calendar date.
func NormalizeDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Validate checks the metric bounds and reports all invalid fields together.
func (r Record) Validate() error {
	var errs pkg.ValidationErrors
	if r.Date.IsZero() {
		errs = append(errs, pkg.ValidationError{
			Field: "date", Message: "must be set",
		})
	}
	if r.WeightKg < 20 || r.WeightKg > 300 {
		errs = append(errs, pkg.ValidationError{
			Field: "weightKg", Message: "must be between 20 and 300",
		})
	}
	if r.SkeletalMuscleKg <= 0 || r.SkeletalMuscleKg > 300 {
		errs = append(errs, pkg.ValidationError{
			Field: "skeletalMuscleKg", Message: "must be greater than 0 and at most 300",
		})
	}
	if r.BodyFatPercent < 3 || r.BodyFatPercent > 60 {
		errs = append(errs, pkg.ValidationError{
			Field: "bodyFatPercent", Message: "must be between 3 and 60",
		})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}
