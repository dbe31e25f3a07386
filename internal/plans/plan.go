package plans

import (
	"encoding/json"
	"time"

	"github.com/coachfit/coachfit/pkg"
)

type Type string

const (
	TypeWorkout Type = "workout"
	TypeDiet    Type = "diet"
)

func (t Type) Valid() bool {
	return t == TypeWorkout || t == TypeDiet
}

// Plan is a workout or diet program a coach hands to a client. New plans
// of the same type supersede the old ones: the version counter grows and
// only the latest stays active.
type Plan struct {
	ID       int    `json:"id"`
	ClientID int    `json:"clientId"`
	CoachID  int    `json:"coachId"`
	Type     Type   `json:"type"`
	Title    string `json:"title"`
	// structured plan body, opaque to the server
	Content json.RawMessage `json:"content,omitempty"`
	// optional PDF in the media store
	FileID    string    `json:"fileId,omitempty"`
	Version   int       `json:"version"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

func (p Plan) Validate() error {
	var errs pkg.ValidationErrors
	if p.ClientID == 0 {
		errs = append(errs, pkg.ValidationError{Field: "clientId", Message: "must be set"})
	}
	if !p.Type.Valid() {
		errs = append(errs, pkg.ValidationError{Field: "type", Message: "must be one of: workout, diet"})
	}
	if p.Title == "" {
		errs = append(errs, pkg.ValidationError{Field: "title", Message: "must not be empty"})
	}
	if len(p.Content) == 0 && p.FileID == "" {
		errs = append(errs, pkg.ValidationError{Field: "content", Message: "either content or fileId must be set"})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}
