package chat

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var _ messagesRepo = (*repoMock)(nil)

type repoMock struct {
	Messages []Message
	mutex    sync.Mutex
}

func NewRepoMock() *repoMock {
	return &repoMock{}
}

func (r *repoMock) Add(_ context.Context, msg Message) (*Message, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.SentAt.IsZero() {
		msg.SentAt = time.Now()
	}
	r.Messages = append(r.Messages, msg)
	return &msg, nil
}

func (r *repoMock) ListBefore(_ context.Context, chatID string, before time.Time, limit int) ([]Message, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	messages := make([]Message, 0)
	for _, msg := range r.Messages {
		if msg.ChatID == chatID && msg.SentAt.Before(before) {
			messages = append(messages, msg)
		}
	}

	sort.Slice(messages, func(i, j int) bool {
		return messages[i].SentAt.Before(messages[j].SentAt)
	})

	if len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}

	return messages, nil
}
