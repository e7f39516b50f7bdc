package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"server-actions/backend/internal/db"
	"server-actions/backend/internal/user/domain"
)

const userColumns = `id, email, name, status, created_at, updated_at`

const (
	getUserSQL = `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	createUserSQL = `INSERT INTO users (` + userColumns + `) VALUES ($1, $2, $3, $4, $5, $6)`

	updateUserSQL = `UPDATE users SET
	name = COALESCE($2, name),
	email = COALESCE($3, email),
	updated_at = $4
WHERE id = $1
RETURNING ` + userColumns
)

// PostgresRepository persists users with sqlx over the pgx driver.
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository returns a user repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: sqlx.NewDb(db, "pgx")}
}

type userRecord struct {
	ID        string         `db:"id"`
	Email     string         `db:"email"`
	Name      sql.NullString `db:"name"`
	Status    string         `db:"status"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

var _ Repository = (*PostgresRepository)(nil)

// GetByID returns the user for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	var rec userRecord
	if err := r.db.GetContext(ctx, &rec, getUserSQL, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return rec.toDomain(), nil
}

// Create persists the user to the database. The user must have ID set; it is not assigned by this method.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	_, err := r.db.ExecContext(ctx, createUserSQL,
		u.ID, u.Email, nullString(u.Name), string(u.Status), u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create user: %w", db.Classify(err))
	}
	return nil
}

// Update sets the patched fields in one statement and returns the row as stored.
func (r *PostgresRepository) Update(ctx context.Context, id string, p domain.Patch, now time.Time) (*domain.User, error) {
	var rec userRecord
	err := r.db.GetContext(ctx, &rec, updateUserSQL, id, nullStringPtr(p.Name), nullStringPtr(p.Email), now)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("update user: %w", db.Classify(err))
	}
	return rec.toDomain(), nil
}

func (rec *userRecord) toDomain() *domain.User {
	return &domain.User{
		ID:        rec.ID,
		Email:     rec.Email,
		Name:      rec.Name.String,
		Status:    domain.UserStatus(rec.Status),
		CreatedAt: rec.CreatedAt.UTC(),
		UpdatedAt: rec.UpdatedAt.UTC(),
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
