package plans

import (
	"context"
	"sort"
	"sync"
	"time"
)

var _ plansRepo = (*repoMock)(nil)

type repoMock struct {
	Plans  map[int]Plan
	nextID int
	mutex  sync.Mutex
}

func NewRepoMock() *repoMock {
	return &repoMock{
		Plans:  map[int]Plan{},
		nextID: 1,
	}
}

func (r *repoMock) Create(_ context.Context, plan Plan) (*Plan, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	maxVersion := 0
	for id, existing := range r.Plans {
		if existing.ClientID != plan.ClientID || existing.Type != plan.Type {
			continue
		}
		if existing.Version > maxVersion {
			maxVersion = existing.Version
		}
		if existing.Active {
			existing.Active = false
			r.Plans[id] = existing
		}
	}

	plan.ID = r.nextID
	r.nextID++
	plan.Version = maxVersion + 1
	plan.Active = true
	plan.CreatedAt = time.Now()
	r.Plans[plan.ID] = plan
	return &plan, nil
}

func (r *repoMock) List(_ context.Context, clientID int, planType Type) ([]Plan, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	plans := make([]Plan, 0)
	for _, plan := range r.Plans {
		if plan.ClientID != clientID {
			continue
		}
		if planType != "" && plan.Type != planType {
			continue
		}
		plans = append(plans, plan)
	}

	sort.Slice(plans, func(i, j int) bool {
		if plans[i].Type != plans[j].Type {
			return plans[i].Type < plans[j].Type
		}
		return plans[i].Version > plans[j].Version
	})

	return plans, nil
}

func (r *repoMock) GetActive(_ context.Context, clientID int, planType Type) (*Plan, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for _, plan := range r.Plans {
		if plan.ClientID == clientID && plan.Type == planType && plan.Active {
			found := plan
			return &found, nil
		}
	}
	return nil, ErrPlanNotFound
}
