package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coachfit/coachfit/internal/telemetry/tracing"
	"github.com/coachfit/coachfit/pkg"

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

// Add records a check-in for the given date. Idempotent: a second
// check-in on the same day is a no-op and reports created = false.
func (r *Repo) Add(ctx context.Context, userID int, date time.Time) (_ *CheckIn, created bool, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.attendance.add")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("user.id", userID))

	checkIn := CheckIn{
		UserID: userID,
		Date:   NormalizeDate(date),
	}

	rows, err := r.db.Query(
		ctx,
		`INSERT INTO attendance_checkin (user_id, date, created_at)
				VALUES ($1, $2, $3)
			ON CONFLICT (user_id, date) DO NOTHING
			RETURNING id, created_at;`,
		checkIn.UserID, checkIn.Date, time.Now(),
	)
	if err != nil {
		return nil, false, r.wrapQueryErr(err)
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, false, err
	}

	// no row back means the check-in already existed
	if !rows.Next() {
		return nil, false, nil
	}

	if err := rows.Scan(&checkIn.ID, &checkIn.CreatedAt); err != nil {
		return nil, false, fmt.Errorf("rows scan: %w", err)
	}

	return &checkIn, true, nil
}

func (r *Repo) ListOrderedByDate(ctx context.Context, userID int) (_ []CheckIn, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.attendance.listOrderedByDate")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("user.id", userID))

	rows, err := r.db.Query(
		ctx,
		`SELECT id, user_id, date, created_at
			FROM attendance_checkin
			WHERE user_id = $1
			ORDER BY date ASC;`,
		userID,
	)
	if err != nil {
		return nil, r.wrapQueryErr(err)
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	var checkIns []CheckIn
	for rows.Next() {
		var checkIn CheckIn
		if err := rows.Scan(&checkIn.ID, &checkIn.UserID, &checkIn.Date, &checkIn.CreatedAt); err != nil {
			return nil, err
		}
		checkIns = append(checkIns, checkIn)
	}

	if checkIns == nil {
		checkIns = make([]CheckIn, 0)
	}

	return checkIns, nil
}

func (r *Repo) Count(ctx context.Context, userID int) (_ int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.attendance.count")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(
		ctx,
		`SELECT COUNT(*) FROM attendance_checkin WHERE user_id = $1;`,
		userID,
	)
	if err != nil {
		return -1, r.wrapQueryErr(err)
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return -1, err
	}

	if rows.Next() {
		var count int
		if err := rows.Scan(&count); err == nil {
			return count, nil
		}
	}

	return -1, errors.New("unexpected error, failed to get check-ins count")
}

func (r *Repo) wrapQueryErr(err error) error {
	if pkg.IsConnectionError(err) {
		return fmt.Errorf("%w: %v", pkg.ErrStorageUnavailable, err)
	}
	return err
}
