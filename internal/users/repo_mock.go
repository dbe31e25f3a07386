package users

import (
	"context"
	"sync"
	"time"
)

var _ usersRepo = (*RepoMock)(nil)

type RepoMock struct {
	Users  map[int]User
	nextID int
	mutex  sync.Mutex
}

func NewRepoMock() *RepoMock {
	repo := &RepoMock{
		Users:  map[int]User{},
		nextID: 1,
	}

	now := time.Now()
	repo.Users[1] = User{
		ID:        1,
		Username:  "mildred",
		FullName:  "Mildred Client",
		Role:      RoleClient,
		Goal:      GoalFatLoss,
		CreatedAt: now,
	}
	repo.Users[2] = User{
		ID:        2,
		Username:  "cassidy",
		FullName:  "Cassidy Coach",
		Role:      RoleCoach,
		CreatedAt: now,
	}
	repo.nextID = 3

	return repo
}

func (r *RepoMock) Add(_ context.Context, user User) (*User, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for _, u := range r.Users {
		if u.Username == user.Username {
			return nil, ErrUsernameTaken
		}
	}

	user.ID = r.nextID
	r.nextID++
	r.Users[user.ID] = user
	return &user, nil
}

func (r *RepoMock) Get(_ context.Context, id int) (*User, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	user, ok := r.Users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &user, nil
}

func (r *RepoMock) AssignCoach(_ context.Context, clientID, coachID int) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	user, ok := r.Users[clientID]
	if !ok || user.Role != RoleClient {
		return ErrUserNotFound
	}
	user.CoachID = &coachID
	r.Users[clientID] = user
	return nil
}

func (r *RepoMock) UnassignCoach(_ context.Context, clientID int) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	user, ok := r.Users[clientID]
	if !ok {
		return ErrUserNotFound
	}
	user.CoachID = nil
	r.Users[clientID] = user
	return nil
}

func (r *RepoMock) UpdateGoal(_ context.Context, id int, goal Goal) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	user, ok := r.Users[id]
	if !ok {
		return ErrUserNotFound
	}
	user.Goal = goal
	r.Users[id] = user
	return nil
}
