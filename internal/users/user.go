package users

import (
	"time"

	"github.com/coachfit/coachfit/pkg"
)

type Role string

const (
	RoleClient Role = "client"
	RoleCoach  Role = "coach"
	RoleAdmin  Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleClient, RoleCoach, RoleAdmin:
		return true
	}
	return false
}

// Goal is the fitness goal a client trains towards. It decides whether a
// body composition trend is reported as favorable or not.
type Goal string

const (
	GoalFatLoss     Goal = "fat_loss"
	GoalMuscleGain  Goal = "muscle_gain"
	GoalMaintenance Goal = "maintenance"
)

func (g Goal) Valid() bool {
	switch g {
	case GoalFatLoss, GoalMuscleGain, GoalMaintenance:
		return true
	}
	return false
}

type User struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	FullName     string    `json:"fullName"`
	Role         Role      `json:"role"`
	Goal         Goal      `json:"goal,omitempty"`
	CoachID      *int      `json:"coachId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (u User) Validate() error {
	if u.Username == "" {
		return pkg.NewValidationError("username", "must not be empty")
	}
	if !u.Role.Valid() {
		return pkg.NewValidationError("role", "must be one of: client, coach, admin")
	}
	if u.Goal != "" && !u.Goal.Valid() {
		return pkg.NewValidationError("goal", "must be one of: fat_loss, muscle_gain, maintenance")
	}
	return nil
}
