package bodycomp

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

var _ recordsRepo = (*repoMock)(nil)

type repoMock struct {
	// (ownerID, date) to Record
	Records map[string]Record
	nextID  int
	mutex   sync.Mutex
}

func NewRepoMock() *repoMock {
	return &repoMock{
		Records: map[string]Record{},
		nextID:  1,
	}
}

func recordKey(ownerID int, date time.Time) string {
	return fmt.Sprintf("%d|%s", ownerID, NormalizeDate(date).Format(dateLayout))
}

func (r *repoMock) UpsertByDate(_ context.Context, record Record) (*Record, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	record.Date = NormalizeDate(record.Date)
	key := recordKey(record.OwnerID, record.Date)

	if existing, ok := r.Records[key]; ok {
		record.ID = existing.ID
		record.CreatedAt = existing.CreatedAt
	} else {
		record.ID = r.nextID
		r.nextID++
		record.CreatedAt = time.Now()
	}

	r.Records[key] = record
	return &record, nil
}

func (r *repoMock) ListOrderedByDate(_ context.Context, ownerID int) ([]Record, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	records := make([]Record, 0)
	for _, record := range r.Records {
		if record.OwnerID == ownerID {
			records = append(records, record)
		}
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Date.Before(records[j].Date)
	})

	return records, nil
}

func (r *repoMock) DeleteByDate(_ context.Context, ownerID int, date time.Time) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	key := recordKey(ownerID, date)
	if _, ok := r.Records[key]; !ok {
		return ErrRecordNotFound
	}
	delete(r.Records, key)
	return nil
}
