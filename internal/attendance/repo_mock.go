package attendance

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

var _ checkInsRepo = (*repoMock)(nil)

type repoMock struct {
	// (userID, date) to CheckIn
	CheckIns map[string]CheckIn
	nextID   int
	mutex    sync.Mutex
}

func NewRepoMock() *repoMock {
	return &repoMock{
		CheckIns: map[string]CheckIn{},
		nextID:   1,
	}
}

func checkInKey(userID int, date time.Time) string {
	return fmt.Sprintf("%d|%s", userID, NormalizeDate(date).Format(dateLayout))
}

func (r *repoMock) Add(_ context.Context, userID int, date time.Time) (*CheckIn, bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	key := checkInKey(userID, date)
	if _, ok := r.CheckIns[key]; ok {
		return nil, false, nil
	}

	checkIn := CheckIn{
		ID:        r.nextID,
		UserID:    userID,
		Date:      NormalizeDate(date),
		CreatedAt: time.Now(),
	}
	r.nextID++
	r.CheckIns[key] = checkIn
	return &checkIn, true, nil
}

func (r *repoMock) ListOrderedByDate(_ context.Context, userID int) ([]CheckIn, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	checkIns := make([]CheckIn, 0)
	for _, checkIn := range r.CheckIns {
		if checkIn.UserID == userID {
			checkIns = append(checkIns, checkIn)
		}
	}

	sort.Slice(checkIns, func(i, j int) bool {
		return checkIns[i].Date.Before(checkIns[j].Date)
	})

	return checkIns, nil
}
