package coaching

import (
	"time"

	"github.com/coachfit/coachfit/pkg"
)

// CoachProfile is what a coach shows in the marketplace directory.
type CoachProfile struct {
	UserID           int       `json:"userId"`
	Headline         string    `json:"headline"`
	Bio              string    `json:"bio,omitempty"`
	Specialties      []string  `json:"specialties,omitempty"`
	AcceptingClients bool      `json:"acceptingClients"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

const (
	maxHeadlineLen   = 160
	maxBioLen        = 4000
	maxSpecialties   = 10
	maxSpecialtyLen  = 60
)

func (p CoachProfile) Validate() error {
	var errs pkg.ValidationErrors
	if p.Headline == "" {
		errs = append(errs, pkg.ValidationError{Field: "headline", Message: "must not be empty"})
	}
	if len(p.Headline) > maxHeadlineLen {
		errs = append(errs, pkg.ValidationError{Field: "headline", Message: "too long"})
	}
	if len(p.Bio) > maxBioLen {
		errs = append(errs, pkg.ValidationError{Field: "bio", Message: "too long"})
	}
	if len(p.Specialties) > maxSpecialties {
		errs = append(errs, pkg.ValidationError{Field: "specialties", Message: "too many entries"})
	}
	for _, s := range p.Specialties {
		if s == "" || len(s) > maxSpecialtyLen {
			errs = append(errs, pkg.ValidationError{Field: "specialties", Message: "entries must be non-empty and short"})
			break
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}
