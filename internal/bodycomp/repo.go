package bodycomp

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

var ErrRecordNotFound = errors.New("record not found")

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

// UpsertByDate inserts the record, or replaces all metric values if the
// owner already has a record for that date. The write is atomic, so a
// client can retry the same payload after a failure without creating
// duplicates. created_at is set on first insert only.
func (r *Repo) UpsertByDate(ctx context.Context, record Record) (_ *Record, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.bodycomp.upsertByDate")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("owner.id", record.OwnerID))

	record.Date = NormalizeDate(record.Date)

	rows, err := r.db.Query(
		ctx,
		`INSERT INTO body_comp_record
				(owner_id, date, weight_kg, skeletal_muscle_kg, body_fat_percent, created_at)
				VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (owner_id, date) DO UPDATE SET
				weight_kg = EXCLUDED.weight_kg,
				skeletal_muscle_kg = EXCLUDED.skeletal_muscle_kg,
				body_fat_percent = EXCLUDED.body_fat_percent
			RETURNING id, created_at;`,
		record.OwnerID, record.Date,
		record.WeightKg, record.SkeletalMuscleKg, record.BodyFatPercent,
		time.Now(),
	)
	if err != nil {
		return nil, r.wrapQueryErr(err)
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if !rows.Next() {
		return nil, errors.New("unexpected error [no rows next]")
	}

	if err := rows.Scan(&record.ID, &record.CreatedAt); err != nil {
		return nil, fmt.Errorf("rows scan: %w", err)
	}

	span.SetAttributes(attribute.Int("record.id", record.ID))

	return &record, nil
}

// ListOrderedByDate returns all records of the owner, ascending by date,
// the order the insight analyzer expects.
func (r *Repo) ListOrderedByDate(ctx context.Context, ownerID int) (_ []Record, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.bodycomp.listOrderedByDate")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("owner.id", ownerID))

	rows, err := r.db.Query(
		ctx,
		`SELECT id, owner_id, date, weight_kg, skeletal_muscle_kg, body_fat_percent, created_at
			FROM body_comp_record
			WHERE owner_id = $1
			ORDER BY date ASC;`,
		ownerID,
	)
	if err != nil {
		return nil, r.wrapQueryErr(err)
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return r.rows2records(rows)
}

func (r *Repo) Get(ctx context.Context, id int) (_ *Record, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.bodycomp.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", id))

	rows, err := r.db.Query(
		ctx,
		`SELECT id, owner_id, date, weight_kg, skeletal_muscle_kg, body_fat_percent, created_at
			FROM body_comp_record WHERE id = $1;`,
		id,
	)
	if err != nil {
		return nil, r.wrapQueryErr(err)
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	records, err := r.rows2records(rows)
	if err != nil {
		return nil, err
	}

	if len(records) != 1 {
		return nil, ErrRecordNotFound
	}

	return &records[0], nil
}

func (r *Repo) DeleteByDate(ctx context.Context, ownerID int, date time.Time) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.bodycomp.deleteByDate")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("owner.id", ownerID))

	tag, err := r.db.Exec(
		ctx,
		`DELETE FROM body_comp_record WHERE owner_id = $1 AND date = $2;`,
		ownerID, NormalizeDate(date),
	)
	if err != nil {
		return r.wrapQueryErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (r *Repo) wrapQueryErr(err error) error {
	if pkg.IsConnectionError(err) {
		return fmt.Errorf("%w: %v", pkg.ErrStorageUnavailable, err)
	}
	return err
}

func (r *Repo) rows2records(rows pgx.Rows) ([]Record, error) {
	var records []Record
	for rows.Next() {
		var record Record
		if err := rows.Scan(
			&record.ID, &record.OwnerID, &record.Date,
			&record.WeightKg, &record.SkeletalMuscleKg, &record.BodyFatPercent,
			&record.CreatedAt,
		); err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	if records == nil {
		records = make([]Record, 0)
	}

	return records, nil
}
