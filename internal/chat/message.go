package chat

import (
	"fmt"
	"time"

	"github.com/coachfit/coachfit/pkg"

	"github.com/google/uuid"
)

const maxTextLen = 4000

// Message lives in exactly one chat, the one between a client and their
// assigned coach. The database is the source of truth; the pub/sub leg is
// best-effort delivery on top.
type Message struct {
	ID       uuid.UUID `json:"id"`
	ChatID   string    `json:"chatId"`
	SenderID int       `json:"senderId"`
	Text     string    `json:"text"`
	SentAt   time.Time `json:"sentAt"`
}

// MakeChatID builds the canonical id of a client-coach chat. The pair
// identifies the chat, so both sides land on the same id.
func MakeChatID(clientID, coachID int) string {
	return fmt.Sprintf("%d-%d", clientID, coachID)
}

func (m Message) Validate() error {
	var errs pkg.ValidationErrors
	if m.Text == "" {
		errs = append(errs, pkg.ValidationError{Field: "text", Message: "must not be empty"})
	}
	if len(m.Text) > maxTextLen {
		errs = append(errs, pkg.ValidationError{Field: "text", Message: "too long"})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}
