package assessments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/2beens/fitsense/internal/telemetry/tracing"
	"github.com/2beens/fitsense/pkg"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrAssessmentNotFound = errors.New("assessment not found")
	ErrUnknownUser        = errors.New("unknown user")
)

const selectColumns = `id, user_id, name, age, gender, height, weight, frequency, duration, exercises, predictions, created_at`

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

// Upsert stores the assessment as the user's only one. created reports whether a new row was inserted.
func (r *Repo) Upsert(ctx context.Context, a *Assessment) (_ *Assessment, created bool, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.assessments.upsert")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	exercisesJson, err := json.Marshal(a.Exercises)
	if err != nil {
		return nil, false, fmt.Errorf("marshal exercises: %w", err)
	}

	rows, err := r.db.Query(
		ctx,
		`INSERT INTO assessments
				(user_id, name, age, gender, height, weight, frequency, duration, exercises, predictions, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
			ON CONFLICT (user_id) DO UPDATE SET
				name = EXCLUDED.name,
				age = EXCLUDED.age,
				gender = EXCLUDED.gender,
				height = EXCLUDED.height,
				weight = EXCLUDED.weight,
				frequency = EXCLUDED.frequency,
				duration = EXCLUDED.duration,
				exercises = EXCLUDED.exercises,
				predictions = EXCLUDED.predictions,
				created_at = NOW()
			RETURNING id, created_at, (xmax = 0) AS inserted;`,
		a.UserID, a.Name, a.Age, a.Gender, a.Height, a.Weight, a.Frequency, a.Duration,
		exercisesJson, predictionsOrEmpty(a.Predictions),
	)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			if pkg.IsForeignKeyViolationError(err) {
				return nil, false, ErrUnknownUser
			}
			return nil, false, err
		}
		return nil, false, errors.New("unexpected error [no rows next]")
	}

	if err := rows.Scan(&a.ID, &a.CreatedAt, &created); err != nil {
		return nil, false, fmt.Errorf("rows scan: %w", err)
	}

	return a, created, nil
}

// Update overwrites the user's stored assessment and refreshes its timestamp.
func (r *Repo) Update(ctx context.Context, a *Assessment) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.assessments.update")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	exercisesJson, err := json.Marshal(a.Exercises)
	if err != nil {
		return fmt.Errorf("marshal exercises: %w", err)
	}

	if err := r.db.QueryRow(
		ctx,
		`UPDATE assessments SET
				name = $1, age = $2, gender = $3, height = $4, weight = $5,
				frequency = $6, duration = $7, exercises = $8, predictions = $9, created_at = NOW()
			WHERE user_id = $10
			RETURNING id, created_at;`,
		a.Name, a.Age, a.Gender, a.Height, a.Weight, a.Frequency, a.Duration,
		exercisesJson, predictionsOrEmpty(a.Predictions), a.UserID,
	).Scan(&a.ID, &a.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAssessmentNotFound
		}
		return err
	}

	return nil
}

// ListByUser returns the user's assessments, newest first.
func (r *Repo) ListByUser(ctx context.Context, userID int) (_ []Assessment, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.assessments.list")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(
		ctx,
		`SELECT `+selectColumns+` FROM assessments WHERE user_id = $1 ORDER BY created_at DESC;`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return rows2assessments(rows)
}

func (r *Repo) Latest(ctx context.Context, userID int) (_ *Assessment, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.assessments.latest")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(
		ctx,
		`SELECT `+selectColumns+` FROM assessments WHERE user_id = $1 ORDER BY created_at DESC LIMIT 1;`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	assessments, err := rows2assessments(rows)
	if err != nil {
		return nil, err
	}
	if len(assessments) == 0 {
		return nil, ErrAssessmentNotFound
	}
	return &assessments[0], nil
}

func rows2assessments(rows pgx.Rows) ([]Assessment, error) {
	assessments := []Assessment{}
	for rows.Next() {
		var a Assessment
		var exercisesJson, predictionsJson []byte
		if err := rows.Scan(
			&a.ID, &a.UserID, &a.Name, &a.Age, &a.Gender, &a.Height, &a.Weight,
			&a.Frequency, &a.Duration, &exercisesJson, &predictionsJson, &a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("rows scan: %w", err)
		}
		if err := json.Unmarshal(exercisesJson, &a.Exercises); err != nil {
			return nil, fmt.Errorf("unmarshal exercises of assessment %d: %w", a.ID, err)
		}
		a.Predictions = predictionsJson
		assessments = append(assessments, a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return assessments, nil
}

func predictionsOrEmpty(predictions json.RawMessage) []byte {
	if len(predictions) == 0 {
		return []byte("{}")
	}
	return predictions
}
