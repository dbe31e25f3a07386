package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const chatChannelPrefix = "coachfit-chat||"

// ErrNoNewMessages means the wait window closed before anything arrived.
var ErrNoNewMessages = errors.New("no new messages")

// Notifier fans freshly stored messages out over redis pub/sub so other
// open sessions of the two participants get them without polling the
// database. Delivery is best-effort, a missed publish only delays the
// reader until their next history fetch.
type Notifier struct {
	redisClient *redis.Client
}

func NewNotifier(redisClient *redis.Client) *Notifier {
	return &Notifier{
		redisClient: redisClient,
	}
}

func (n *Notifier) Publish(ctx context.Context, msg Message) error {
	msgJson, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	if err := n.redisClient.Publish(ctx, chatChannelPrefix+msg.ChatID, msgJson).Err(); err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	return nil
}

// Wait blocks until a message other than lastSeen shows up in the chat, or
// the context expires. Duplicate deliveries are dropped by message id.
func (n *Notifier) Wait(ctx context.Context, chatID string, lastSeen uuid.UUID) (*Message, error) {
	sub := n.redisClient.Subscribe(ctx, chatChannelPrefix+chatID)
	defer func() {
		if err := sub.Close(); err != nil {
			log.Errorf("close chat subscription [%s]: %s", chatID, err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil, ErrNoNewMessages
		case received, ok := <-sub.Channel():
			if !ok {
				return nil, ErrNoNewMessages
			}

			var msg Message
			if err := json.Unmarshal([]byte(received.Payload), &msg); err != nil {
				log.Errorf("unmarshal chat notification [%s]: %s", chatID, err)
				continue
			}
			if msg.ID == lastSeen {
				continue
			}

			return &msg, nil
		}
	}
}
