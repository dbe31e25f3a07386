package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/coachfit/coachfit/internal/telemetry/tracing"
	"github.com/coachfit/coachfit/pkg"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

func (r *Repo) Add(ctx context.Context, msg Message) (_ *Message, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.chat.add")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("chat.id", msg.ChatID))

	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.SentAt.IsZero() {
		msg.SentAt = time.Now()
	}

	if _, err := r.db.Exec(
		ctx,
		`INSERT INTO chat_message (id, chat_id, sender_id, text, sent_at)
			VALUES ($1, $2, $3, $4, $5);`,
		msg.ID, msg.ChatID, msg.SenderID, msg.Text, msg.SentAt,
	); err != nil {
		return nil, r.wrapQueryErr(err)
	}

	return &msg, nil
}

// ListBefore pages through a chat's history backwards from the given
// moment. Returned messages are in ascending sent_at order.
func (r *Repo) ListBefore(ctx context.Context, chatID string, before time.Time, limit int) (_ []Message, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.chat.listBefore")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("chat.id", chatID))
	span.SetAttributes(attribute.Int("limit", limit))

	rows, err := r.db.Query(
		ctx,
		`SELECT id, chat_id, sender_id, text, sent_at FROM (
				SELECT id, chat_id, sender_id, text, sent_at
					FROM chat_message
					WHERE chat_id = $1 AND sent_at < $2
					ORDER BY sent_at DESC
					LIMIT $3
			) page ORDER BY sent_at;`,
		chatID, before, limit,
	)
	if err != nil {
		return nil, r.wrapQueryErr(err)
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return r.rows2messages(rows)
}

func (r *Repo) Count(ctx context.Context, chatID string) (_ int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.chat.count")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("chat.id", chatID))

	var count int
	if err := r.db.QueryRow(
		ctx,
		`SELECT COUNT(*) FROM chat_message WHERE chat_id = $1;`,
		chatID,
	).Scan(&count); err != nil {
		return 0, r.wrapQueryErr(err)
	}

	return count, nil
}

func (r *Repo) wrapQueryErr(err error) error {
	if pkg.IsConnectionError(err) {
		return fmt.Errorf("%w: %v", pkg.ErrStorageUnavailable, err)
	}
	return err
}

func (r *Repo) rows2messages(rows pgx.Rows) ([]Message, error) {
	var messages []Message
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.ID, &msg.ChatID, &msg.SenderID, &msg.Text, &msg.SentAt); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	if messages == nil {
		messages = make([]Message, 0)
	}

	return messages, nil
}
