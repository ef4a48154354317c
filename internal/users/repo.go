package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/2beens/fitsense/internal/telemetry/tracing"
	"github.com/2beens/fitsense/pkg"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email taken")
)

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

func (r *Repo) Add(ctx context.Context, user *User) (_ *User, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.users.add")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(
		ctx,
		`INSERT INTO users (email, password_hash, name)
			VALUES ($1, $2, $3)
			RETURNING id, created_at;`,
		normalizeEmail(user.Email), user.PasswordHash, user.Name,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			if pkg.IsUniqueViolationError(err) {
				return nil, ErrEmailTaken
			}
			return nil, err
		}
		return nil, errors.New("unexpected error [no rows next]")
	}

	if err := rows.Scan(&user.ID, &user.CreatedAt); err != nil {
		return nil, fmt.Errorf("rows scan: %w", err)
	}
	user.Email = normalizeEmail(user.Email)

	return user, nil
}

func (r *Repo) Get(ctx context.Context, id int) (_ *User, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.users.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	return r.getBy(ctx, `SELECT id, email, password_hash, name, created_at FROM users WHERE id = $1;`, id)
}

func (r *Repo) GetByEmail(ctx context.Context, email string) (_ *User, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.users.getByEmail")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	return r.getBy(ctx, `SELECT id, email, password_hash, name, created_at FROM users WHERE email = $1;`, normalizeEmail(email))
}

func (r *Repo) getBy(ctx context.Context, query string, arg any) (*User, error) {
	var user User
	if err := r.db.QueryRow(ctx, query, arg).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Name,
		&user.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
