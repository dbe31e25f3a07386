package coaching

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	_ requestsRepo  = (*repoMock)(nil)
	_ directoryRepo = (*repoMock)(nil)
)

type repoMock struct {
	Profiles map[int]CoachProfile
	Requests map[uuid.UUID]Request
	mutex    sync.Mutex
}

func NewRepoMock() *repoMock {
	return &repoMock{
		Profiles: map[int]CoachProfile{},
		Requests: map[uuid.UUID]Request{},
	}
}

func (r *repoMock) UpsertProfile(_ context.Context, profile CoachProfile) (*CoachProfile, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	profile.UpdatedAt = time.Now()
	r.Profiles[profile.UserID] = profile
	return &profile, nil
}

func (r *repoMock) GetProfile(_ context.Context, userID int) (*CoachProfile, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	profile, ok := r.Profiles[userID]
	if !ok {
		return nil, ErrProfileNotFound
	}
	return &profile, nil
}

func (r *repoMock) ListProfiles(_ context.Context) ([]CoachProfile, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	profiles := make([]CoachProfile, 0)
	for _, profile := range r.Profiles {
		profiles = append(profiles, profile)
	}

	sort.Slice(profiles, func(i, j int) bool {
		if profiles[i].AcceptingClients != profiles[j].AcceptingClients {
			return profiles[i].AcceptingClients
		}
		return profiles[i].UpdatedAt.After(profiles[j].UpdatedAt)
	})

	return profiles, nil
}

func (r *repoMock) CreateRequest(_ context.Context, req Request) (*Request, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	req.Status = StatusPending
	req.CreatedAt = time.Now()
	r.Requests[req.ID] = req
	return &req, nil
}

func (r *repoMock) GetRequest(_ context.Context, id uuid.UUID) (*Request, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	req, ok := r.Requests[id]
	if !ok {
		return nil, ErrRequestNotFound
	}
	return &req, nil
}

func (r *repoMock) GetOpenRequest(_ context.Context, clientID int) (*Request, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for _, req := range r.Requests {
		if req.ClientID == clientID && req.Open() {
			found := req
			return &found, nil
		}
	}
	return nil, ErrRequestNotFound
}

func (r *repoMock) ListInbox(_ context.Context, coachID int) ([]Request, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	requests := make([]Request, 0)
	for _, req := range r.Requests {
		if req.CoachID == coachID && req.Open() {
			requests = append(requests, req)
		}
	}

	sort.Slice(requests, func(i, j int) bool {
		return requests[i].CreatedAt.Before(requests[j].CreatedAt)
	})

	return requests, nil
}

func (r *repoMock) ListByClient(_ context.Context, clientID int) ([]Request, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	requests := make([]Request, 0)
	for _, req := range r.Requests {
		if req.ClientID == clientID {
			requests = append(requests, req)
		}
	}

	sort.Slice(requests, func(i, j int) bool {
		return requests[i].CreatedAt.After(requests[j].CreatedAt)
	})

	return requests, nil
}

func (r *repoMock) Decide(_ context.Context, id uuid.UUID, status RequestStatus) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	req, ok := r.Requests[id]
	if !ok || !req.Open() {
		return ErrRequestNotFound
	}

	now := time.Now()
	req.Status = status
	req.DecidedAt = &now
	r.Requests[id] = req
	return nil
}

func (r *repoMock) DeclineOtherOpen(_ context.Context, clientID int, exceptID uuid.UUID) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	now := time.Now()
	for id, req := range r.Requests {
		if id == exceptID || req.ClientID != clientID || !req.Open() {
			continue
		}
		req.Status = StatusDeclined
		req.DecidedAt = &now
		r.Requests[id] = req
	}
	return nil
}
