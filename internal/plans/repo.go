package plans

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coachfit/coachfit/internal/telemetry/tracing"
	"github.com/coachfit/coachfit/pkg"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

var ErrPlanNotFound = errors.New("plan not found")

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

// Create stores a new plan version. In one transaction it deactivates the
// client's prior plans of the same type and inserts the new one with the
// next version number, so there is never more than one active plan per
// (client, type).
func (r *Repo) Create(ctx context.Context, plan Plan) (_ *Plan, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.plans.create")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("client.id", plan.ClientID))
	span.SetAttributes(attribute.String("type", string(plan.Type)))

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, r.wrapQueryErr(err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var maxVersion int
	if err := tx.QueryRow(
		ctx,
		`SELECT COALESCE(MAX(version), 0) FROM plan WHERE client_id = $1 AND type = $2;`,
		plan.ClientID, plan.Type,
	).Scan(&maxVersion); err != nil {
		return nil, fmt.Errorf("get max version: %w", err)
	}

	if _, err := tx.Exec(
		ctx,
		`UPDATE plan SET active = FALSE WHERE client_id = $1 AND type = $2 AND active;`,
		plan.ClientID, plan.Type,
	); err != nil {
		return nil, fmt.Errorf("deactivate prior versions: %w", err)
	}

	plan.Version = maxVersion + 1
	plan.Active = true

	if err := tx.QueryRow(
		ctx,
		`INSERT INTO plan
				(client_id, coach_id, type, title, content, file_id, version, active, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id, created_at;`,
		plan.ClientID, plan.CoachID, plan.Type, plan.Title,
		plan.Content, plan.FileID, plan.Version, plan.Active,
		time.Now(),
	).Scan(&plan.ID, &plan.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert plan: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	span.SetAttributes(attribute.Int("plan.id", plan.ID))
	span.SetAttributes(attribute.Int("plan.version", plan.Version))

	return &plan, nil
}

// List returns the client's plans, optionally filtered by type, newest
// version first.
func (r *Repo) List(ctx context.Context, clientID int, planType Type) (_ []Plan, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.plans.list")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("client.id", clientID))

	rows, err := r.db.Query(
		ctx,
		`SELECT id, client_id, coach_id, type, title, content, file_id, version, active, created_at
			FROM plan
			WHERE client_id = $1
			AND ($2::text = '' OR type = $2)
			ORDER BY type, version DESC;`,
		clientID, planType,
	)
	if err != nil {
		return nil, r.wrapQueryErr(err)
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return r.rows2plans(rows)
}

func (r *Repo) GetActive(ctx context.Context, clientID int, planType Type) (_ *Plan, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.plans.getActive")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("client.id", clientID))
	span.SetAttributes(attribute.String("type", string(planType)))

	rows, err := r.db.Query(
		ctx,
		`SELECT id, client_id, coach_id, type, title, content, file_id, version, active, created_at
			FROM plan
			WHERE client_id = $1 AND type = $2 AND active;`,
		clientID, planType,
	)
	if err != nil {
		return nil, r.wrapQueryErr(err)
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	plans, err := r.rows2plans(rows)
	if err != nil {
		return nil, err
	}

	if len(plans) != 1 {
		return nil, ErrPlanNotFound
	}

	return &plans[0], nil
}

func (r *Repo) Get(ctx context.Context, id int) (_ *Plan, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.plans.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", id))

	rows, err := r.db.Query(
		ctx,
		`SELECT id, client_id, coach_id, type, title, content, file_id, version, active, created_at
			FROM plan WHERE id = $1;`,
		id,
	)
	if err != nil {
		return nil, r.wrapQueryErr(err)
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	plans, err := r.rows2plans(rows)
	if err != nil {
		return nil, err
	}

	if len(plans) != 1 {
		return nil, ErrPlanNotFound
	}

	return &plans[0], nil
}

func (r *Repo) wrapQueryErr(err error) error {
	if pkg.IsConnectionError(err) {
		return fmt.Errorf("%w: %v", pkg.ErrStorageUnavailable, err)
	}
	return err
}

func (r *Repo) rows2plans(rows pgx.Rows) ([]Plan, error) {
	var plans []Plan
	for rows.Next() {
		var plan Plan
		var content []byte
		if err := rows.Scan(
			&plan.ID, &plan.ClientID, &plan.CoachID, &plan.Type, &plan.Title,
			&content, &plan.FileID, &plan.Version, &plan.Active, &plan.CreatedAt,
		); err != nil {
			return nil, err
		}
		plan.Content = content
		plans = append(plans, plan)
	}

	if plans == nil {
		plans = make([]Plan, 0)
	}

	return plans, nil
}
