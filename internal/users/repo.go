package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coachfit/coachfit/internal/auth"
	"github.com/coachfit/coachfit/internal/telemetry/tracing"
	"github.com/coachfit/coachfit/pkg"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrUsernameTaken = errors.New("username taken")
)

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

func (r *Repo) Add(ctx context.Context, user User) (_ *User, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.users.add")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}

	rows, err := r.db.Query(
		ctx,
		`INSERT INTO coachfit_user
				(username, password_hash, full_name, role, goal, created_at)
				VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id;`,
		user.Username, user.PasswordHash, user.FullName, user.Role, user.Goal, user.CreatedAt,
	)
	if err != nil {
		if pkg.IsUniqueViolationError(err) {
			return nil, ErrUsernameTaken
		}
		return nil, r.wrapQueryErr(err)
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if !rows.Next() {
		return nil, errors.New("unexpected error [no rows next]")
	}

	var id int
	if err := rows.Scan(&id); err != nil {
		return nil, fmt.Errorf("rows scan: %w", err)
	}

	span.SetAttributes(attribute.Int("user.id", id))

	user.ID = id
	return &user, nil
}

func (r *Repo) Get(ctx context.Context, id int) (_ *User, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.users.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", id))

	rows, err := r.db.Query(
		ctx,
		`SELECT id, username, password_hash, full_name, role, goal, coach_id, created_at
			FROM coachfit_user WHERE id = $1;`,
		id,
	)
	if err != nil {
		return nil, r.wrapQueryErr(err)
	}
	defer rows.Close()

	return r.oneUser(rows)
}

func (r *Repo) GetByUsername(ctx context.Context, username string) (_ *User, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.users.getByUsername")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(
		ctx,
		`SELECT id, username, password_hash, full_name, role, goal, coach_id, created_at
			FROM coachfit_user WHERE username = $1;`,
		username,
	)
	if err != nil {
		return nil, r.wrapQueryErr(err)
	}
	defer rows.Close()

	return r.oneUser(rows)
}

// GetCredentials makes the repo usable as the login credentials source
// for the auth handler.
func (r *Repo) GetCredentials(ctx context.Context, username string) (auth.UserCredentials, error) {
	user, err := r.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return auth.UserCredentials{}, auth.ErrUnknownUser
		}
		return auth.UserCredentials{}, err
	}
	return auth.UserCredentials{
		UserID:       user.ID,
		Role:         string(user.Role),
		PasswordHash: user.PasswordHash,
	}, nil
}

func (r *Repo) UpdateGoal(ctx context.Context, id int, goal Goal) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.users.updateGoal")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", id))
	span.SetAttributes(attribute.String("goal", string(goal)))

	tag, err := r.db.Exec(
		ctx,
		`UPDATE coachfit_user SET goal = $1 WHERE id = $2;`,
		goal, id,
	)
	if err != nil {
		return r.wrapQueryErr(err)
	}

	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return nil
}

// AssignCoach links a client to their coach. Exclusivity comes for free,
// the assignment is a single column on the client row.
func (r *Repo) AssignCoach(ctx context.Context, clientID, coachID int) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.users.assignCoach")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("client.id", clientID))
	span.SetAttributes(attribute.Int("coach.id", coachID))

	tag, err := r.db.Exec(
		ctx,
		`UPDATE coachfit_user SET coach_id = $1 WHERE id = $2 AND role = 'client';`,
		coachID, clientID,
	)
	if err != nil {
		return r.wrapQueryErr(err)
	}

	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return nil
}

func (r *Repo) UnassignCoach(ctx context.Context, clientID int) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.users.unassignCoach")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("client.id", clientID))

	tag, err := r.db.Exec(
		ctx,
		`UPDATE coachfit_user SET coach_id = NULL WHERE id = $1;`,
		clientID,
	)
	if err != nil {
		return r.wrapQueryErr(err)
	}

	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return nil
}

func (r *Repo) ListClientsOfCoach(ctx context.Context, coachID int) (_ []User, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.users.listClientsOfCoach")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("coach.id", coachID))

	rows, err := r.db.Query(
		ctx,
		`SELECT id, username, password_hash, full_name, role, goal, coach_id, created_at
			FROM coachfit_user WHERE coach_id = $1 ORDER BY username;`,
		coachID,
	)
	if err != nil {
		return nil, r.wrapQueryErr(err)
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return r.rows2users(rows)
}

func (r *Repo) wrapQueryErr(err error) error {
	if pkg.IsConnectionError(err) {
		return fmt.Errorf("%w: %v", pkg.ErrStorageUnavailable, err)
	}
	return err
}

func (r *Repo) oneUser(rows pgx.Rows) (*User, error) {
	if err := rows.Err(); err != nil {
		return nil, err
	}

	users, err := r.rows2users(rows)
	if err != nil {
		return nil, err
	}

	if len(users) != 1 {
		return nil, ErrUserNotFound
	}

	return &users[0], nil
}

func (r *Repo) rows2users(rows pgx.Rows) ([]User, error) {
	var users []User
	for rows.Next() {
		var u User
		var goal *string
		if err := rows.Scan(
			&u.ID, &u.Username, &u.PasswordHash, &u.FullName, &u.Role, &goal, &u.CoachID, &u.CreatedAt,
		); err != nil {
			return nil, err
		}
		if goal != nil {
			u.Goal = Goal(*goal)
		}
		users = append(users, u)
	}

	if users == nil {
		users = make([]User, 0)
	}

	return users, nil
}
