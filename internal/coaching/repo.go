package coaching

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coachfit/coachfit/internal/telemetry/tracing"
	"github.com/coachfit/coachfit/pkg"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

var (
	ErrProfileNotFound = errors.New("coach profile not found")
	ErrRequestNotFound = errors.New("coaching request not found")
)

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

func (r *Repo) UpsertProfile(ctx context.Context, profile CoachProfile) (_ *CoachProfile, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.coaching.upsertProfile")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("user.id", profile.UserID))

	profile.UpdatedAt = time.Now()

	if _, err := r.db.Exec(
		ctx,
		`INSERT INTO coach_profile
				(user_id, headline, bio, specialties, accepting_clients, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (user_id) DO UPDATE SET
				headline = EXCLUDED.headline,
				bio = EXCLUDED.bio,
				specialties = EXCLUDED.specialties,
				accepting_clients = EXCLUDED.accepting_clients,
				updated_at = EXCLUDED.updated_at;`,
		profile.UserID, profile.Headline, profile.Bio,
		profile.Specialties, profile.AcceptingClients, profile.UpdatedAt,
	); err != nil {
		return nil, r.wrapQueryErr(err)
	}

	return &profile, nil
}

func (r *Repo) GetProfile(ctx context.Context, userID int) (_ *CoachProfile, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.coaching.getProfile")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("user.id", userID))

	rows, err := r.db.Query(
		ctx,
		`SELECT user_id, headline, bio, specialties, accepting_clients, updated_at
			FROM coach_profile WHERE user_id = $1;`,
		userID,
	)
	if err != nil {
		return nil, r.wrapQueryErr(err)
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	profiles, err := r.rows2profiles(rows)
	if err != nil {
		return nil, err
	}

	if len(profiles) != 1 {
		return nil, ErrProfileNotFound
	}

	return &profiles[0], nil
}

// ListProfiles returns the marketplace directory, accepting coaches first.
func (r *Repo) ListProfiles(ctx context.Context) (_ []CoachProfile, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.coaching.listProfiles")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(
		ctx,
		`SELECT user_id, headline, bio, specialties, accepting_clients, updated_at
			FROM coach_profile
			ORDER BY accepting_clients DESC, updated_at DESC;`,
	)
	if err != nil {
		return nil, r.wrapQueryErr(err)
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return r.rows2profiles(rows)
}

func (r *Repo) CreateRequest(ctx context.Context, req Request) (_ *Request, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.coaching.createRequest")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("client.id", req.ClientID))
	span.SetAttributes(attribute.Int("coach.id", req.CoachID))

	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	req.Status = StatusPending
	req.CreatedAt = time.Now()

	if _, err := r.db.Exec(
		ctx,
		`INSERT INTO coaching_request
				(id, client_id, coach_id, status, note, created_at)
				VALUES ($1, $2, $3, $4, $5, $6);`,
		req.ID, req.ClientID, req.CoachID, req.Status, req.Note, req.CreatedAt,
	); err != nil {
		return nil, r.wrapQueryErr(err)
	}

	return &req, nil
}

func (r *Repo) GetRequest(ctx context.Context, id uuid.UUID) (_ *Request, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.coaching.getRequest")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("request.id", id.String()))

	rows, err := r.db.Query(
		ctx,
		`SELECT id, client_id, coach_id, status, note, created_at, decided_at
			FROM coaching_request WHERE id = $1;`,
		id,
	)
	if err != nil {
		return nil, r.wrapQueryErr(err)
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	requests, err := r.rows2requests(rows)
	if err != nil {
		return nil, err
	}

	if len(requests) != 1 {
		return nil, ErrRequestNotFound
	}

	return &requests[0], nil
}

// GetOpenRequest returns the client's pending request, if any.
func (r *Repo) GetOpenRequest(ctx context.Context, clientID int) (_ *Request, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.coaching.getOpenRequest")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("client.id", clientID))

	rows, err := r.db.Query(
		ctx,
		`SELECT id, client_id, coach_id, status, note, created_at, decided_at
			FROM coaching_request WHERE client_id = $1 AND status = 'pending';`,
		clientID,
	)
	if err != nil {
		return nil, r.wrapQueryErr(err)
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	requests, err := r.rows2requests(rows)
	if err != nil {
		return nil, err
	}

	if len(requests) == 0 {
		return nil, ErrRequestNotFound
	}

	return &requests[0], nil
}

// ListInbox returns a coach's pending requests, oldest first.
func (r *Repo) ListInbox(ctx context.Context, coachID int) (_ []Request, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.coaching.listInbox")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("coach.id", coachID))

	rows, err := r.db.Query(
		ctx,
		`SELECT id, client_id, coach_id, status, note, created_at, decided_at
			FROM coaching_request
			WHERE coach_id = $1 AND status = 'pending'
			ORDER BY created_at;`,
		coachID,
	)
	if err != nil {
		return nil, r.wrapQueryErr(err)
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return r.rows2requests(rows)
}

func (r *Repo) ListByClient(ctx context.Context, clientID int) (_ []Request, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.coaching.listByClient")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("client.id", clientID))

	rows, err := r.db.Query(
		ctx,
		`SELECT id, client_id, coach_id, status, note, created_at, decided_at
			FROM coaching_request
			WHERE client_id = $1
			ORDER BY created_at DESC;`,
		clientID,
	)
	if err != nil {
		return nil, r.wrapQueryErr(err)
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return r.rows2requests(rows)
}

// Decide moves a pending request to a terminal status. Returns
// ErrRequestNotFound if the request is gone or no longer pending.
func (r *Repo) Decide(ctx context.Context, id uuid.UUID, status RequestStatus) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.coaching.decide")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("request.id", id.String()))
	span.SetAttributes(attribute.String("status", string(status)))

	tag, err := r.db.Exec(
		ctx,
		`UPDATE coaching_request SET status = $1, decided_at = $2
			WHERE id = $3 AND status = 'pending';`,
		status, time.Now(), id,
	)
	if err != nil {
		return r.wrapQueryErr(err)
	}

	if tag.RowsAffected() == 0 {
		return ErrRequestNotFound
	}

	return nil
}

// DeclineOtherOpen declines the client's pending requests except the one
// just accepted.
func (r *Repo) DeclineOtherOpen(ctx context.Context, clientID int, exceptID uuid.UUID) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.coaching.declineOtherOpen")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("client.id", clientID))

	if _, err := r.db.Exec(
		ctx,
		`UPDATE coaching_request SET status = 'declined', decided_at = $1
			WHERE client_id = $2 AND status = 'pending' AND id != $3;`,
		time.Now(), clientID, exceptID,
	); err != nil {
		return r.wrapQueryErr(err)
	}

	return nil
}

func (r *Repo) wrapQueryErr(err error) error {
	if pkg.IsConnectionError(err) {
		return fmt.Errorf("%w: %v", pkg.ErrStorageUnavailable, err)
	}
	return err
}

func (r *Repo) rows2profiles(rows pgx.Rows) ([]CoachProfile, error) {
	var profiles []CoachProfile
	for rows.Next() {
		var p CoachProfile
		if err := rows.Scan(
			&p.UserID, &p.Headline, &p.Bio, &p.Specialties, &p.AcceptingClients, &p.UpdatedAt,
		); err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}

	if profiles == nil {
		profiles = make([]CoachProfile, 0)
	}

	return profiles, nil
}

func (r *Repo) rows2requests(rows pgx.Rows) ([]Request, error) {
	var requests []Request
	for rows.Next() {
		var req Request
		if err := rows.Scan(
			&req.ID, &req.ClientID, &req.CoachID, &req.Status, &req.Note, &req.CreatedAt, &req.DecidedAt,
		); err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}

	if requests == nil {
		requests = make([]Request, 0)
	}

	return requests, nil
}
