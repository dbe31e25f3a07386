package coaching

import (
	"context"
	"errors"
	"fmt"

	"github.com/coachfit/coachfit/internal/users"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

var (
	ErrAlreadyAssigned   = errors.New("client already has a coach")
	ErrNotAssigned       = errors.New("client has no coach")
	ErrOpenRequestExists = errors.New("client already has a pending request")
	ErrNotACoach         = errors.New("target user is not a coach")
	ErrNotAccepting      = errors.New("coach is not accepting clients")
	ErrNotYourRequest    = errors.New("request belongs to someone else")
)

type requestsRepo interface {
	GetProfile(ctx context.Context, userID int) (*CoachProfile, error)
	CreateRequest(ctx context.Context, req Request) (*Request, error)
	GetRequest(ctx context.Context, id uuid.UUID) (*Request, error)
	GetOpenRequest(ctx context.Context, clientID int) (*Request, error)
	Decide(ctx context.Context, id uuid.UUID, status RequestStatus) error
	DeclineOtherOpen(ctx context.Context, clientID int, exceptID uuid.UUID) error
}

type usersRepo interface {
	Get(ctx context.Context, id int) (*users.User, error)
	AssignCoach(ctx context.Context, clientID, coachID int) error
	UnassignCoach(ctx context.Context, clientID int) error
}

// Service owns the request lifecycle and the client-coach assignment rules.
type Service struct {
	repo  requestsRepo
	users usersRepo
}

func NewService(repo requestsRepo, usersRepo usersRepo) *Service {
	return &Service{
		repo:  repo,
		users: usersRepo,
	}
}

// SendRequest lets an unassigned client ask a coach to take them on. At most
// one request may be open per client.
func (s *Service) SendRequest(ctx context.Context, clientID, coachID int, note string) (*Request, error) {
	client, err := s.users.Get(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("get client: %w", err)
	}
	if client.CoachID != nil {
		return nil, ErrAlreadyAssigned
	}

	coach, err := s.users.Get(ctx, coachID)
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			return nil, ErrNotACoach
		}
		return nil, fmt.Errorf("get coach: %w", err)
	}
	if coach.Role != users.RoleCoach {
		return nil, ErrNotACoach
	}

	profile, err := s.repo.GetProfile(ctx, coachID)
	if err != nil && !errors.Is(err, ErrProfileNotFound) {
		return nil, fmt.Errorf("get coach profile: %w", err)
	}
	if profile != nil && !profile.AcceptingClients {
		return nil, ErrNotAccepting
	}

	if _, err := s.repo.GetOpenRequest(ctx, clientID); err == nil {
		return nil, ErrOpenRequestExists
	} else if !errors.Is(err, ErrRequestNotFound) {
		return nil, fmt.Errorf("check open request: %w", err)
	}

	req, err := s.repo.CreateRequest(ctx, Request{
		ClientID: clientID,
		CoachID:  coachID,
		Note:     note,
	})
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	log.Debugf("coaching request %s: client %d -> coach %d", req.ID, clientID, coachID)
	return req, nil
}

// Accept assigns the coach to the client and declines the client's other
// pending requests. The accepting user must be the addressed coach.
func (s *Service) Accept(ctx context.Context, coachID int, requestID uuid.UUID) (*Request, error) {
	req, err := s.repo.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.CoachID != coachID {
		return nil, ErrNotYourRequest
	}
	if !req.Open() {
		return nil, ErrRequestNotFound
	}

	client, err := s.users.Get(ctx, req.ClientID)
	if err != nil {
		return nil, fmt.Errorf("get client: %w", err)
	}
	if client.CoachID != nil {
		// the client got a coach in the meantime, close this request
		if declineErr := s.repo.Decide(ctx, requestID, StatusDeclined); declineErr != nil {
			log.Errorf("decline stale request %s: %s", requestID, declineErr)
		}
		return nil, ErrAlreadyAssigned
	}

	if err := s.users.AssignCoach(ctx, req.ClientID, coachID); err != nil {
		return nil, fmt.Errorf("assign coach: %w", err)
	}

	if err := s.repo.Decide(ctx, requestID, StatusAccepted); err != nil {
		return nil, fmt.Errorf("accept request: %w", err)
	}

	if err := s.repo.DeclineOtherOpen(ctx, req.ClientID, requestID); err != nil {
		log.Errorf("decline other open requests for client %d: %s", req.ClientID, err)
	}

	return s.repo.GetRequest(ctx, requestID)
}

func (s *Service) Decline(ctx context.Context, coachID int, requestID uuid.UUID) error {
	req, err := s.repo.GetRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if req.CoachID != coachID {
		return ErrNotYourRequest
	}
	return s.repo.Decide(ctx, requestID, StatusDeclined)
}

// Cancel withdraws the client's own pending request.
func (s *Service) Cancel(ctx context.Context, clientID int, requestID uuid.UUID) error {
	req, err := s.repo.GetRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if req.ClientID != clientID {
		return ErrNotYourRequest
	}
	return s.repo.Decide(ctx, requestID, StatusCancelled)
}

// Unassign breaks the client-coach link. Allowed for the assigned coach and
// for admins, checked by the caller; here only the link itself is verified.
func (s *Service) Unassign(ctx context.Context, clientID int) error {
	client, err := s.users.Get(ctx, clientID)
	if err != nil {
		return fmt.Errorf("get client: %w", err)
	}
	if client.CoachID == nil {
		return ErrNotAssigned
	}
	return s.users.UnassignCoach(ctx, clientID)
}
