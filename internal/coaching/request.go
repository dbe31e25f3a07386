package coaching

import (
	"time"

	"github.com/google/uuid"
)

type RequestStatus string

const (
	StatusPending   RequestStatus = "pending"
	StatusAccepted  RequestStatus = "accepted"
	StatusDeclined  RequestStatus = "declined"
	StatusCancelled RequestStatus = "cancelled"
)

// Request is a client asking a coach to take them on. A client has at most
// one pending request at a time, and none while already assigned to a coach.
type Request struct {
	ID        uuid.UUID     `json:"id"`
	ClientID  int           `json:"clientId"`
	CoachID   int           `json:"coachId"`
	Status    RequestStatus `json:"status"`
	Note      string        `json:"note,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
	DecidedAt *time.Time    `json:"decidedAt,omitempty"`
}

func (r Request) Open() bool {
	return r.Status == StatusPending
}
