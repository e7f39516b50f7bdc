package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"server-actions/backend/internal/db"
	"server-actions/backend/internal/post/domain"
)

const postColumns = `id, author_id, title, body, status, created_at, updated_at, published_at`

const (
	getPostSQL = `SELECT ` + postColumns + ` FROM posts WHERE id = $1`

	createPostSQL = `INSERT INTO posts (` + postColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	updateOwnedPostSQL = `UPDATE posts SET
	title = COALESCE($3, title),
	body = COALESCE($4, body),
	status = COALESCE($5, status),
	published_at = CASE WHEN COALESCE($5, status) = 'published' AND published_at IS NULL THEN $6 ELSE published_at END,
	updated_at = $6
WHERE id = $1 AND author_id = $2
RETURNING ` + postColumns

	deleteOwnedPostSQL = `DELETE FROM posts WHERE id = $1 AND author_id = $2`
)

// PostgresRepository persists posts with sqlx over the pgx driver.
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository returns a post repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: sqlx.NewDb(db, "pgx")}
}

var _ Repository = (*PostgresRepository)(nil)

type postRecord struct {
	ID          string       `db:"id"`
	AuthorID    string       `db:"author_id"`
	Title       string       `db:"title"`
	Body        string       `db:"body"`
	Status      string       `db:"status"`
	CreatedAt   time.Time    `db:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at"`
	PublishedAt sql.NullTime `db:"published_at"`
}

// Create persists the post. The post must have ID set; it is not assigned by this method.
func (r *PostgresRepository) Create(ctx context.Context, p *domain.Post) error {
	var publishedAt sql.NullTime
	if p.PublishedAt != nil {
		publishedAt = sql.NullTime{Time: *p.PublishedAt, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, createPostSQL,
		p.ID, p.AuthorID, p.Title, p.Body, string(p.Status), p.CreatedAt, p.UpdatedAt, publishedAt)
	if err != nil {
		return fmt.Errorf("create post: %w", db.Classify(err))
	}
	return nil
}

// GetByID returns the post for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Post, error) {
	var rec postRecord
	if err := r.db.GetContext(ctx, &rec, getPostSQL, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get post: %w", err)
	}
	return rec.toDomain(), nil
}

// List runs one SELECT with the visibility predicate and filters of q.
func (r *PostgresRepository) List(ctx context.Context, q domain.ListQuery) ([]*domain.Post, error) {
	query, args := listPostsSQL(q.Normalize())
	var recs []postRecord
	if err := r.db.SelectContext(ctx, &recs, query, args...); err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	out := make([]*domain.Post, 0, len(recs))
	for i := range recs {
		out = append(out, recs[i].toDomain())
	}
	return out, nil
}

// listPostsSQL builds the list query. Only placeholders carry caller-supplied values.
func listPostsSQL(q domain.ListQuery) (string, []any) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if q.ViewerID == "" {
		where = append(where, "status = 'published'")
	} else {
		where = append(where, "(status = 'published' OR author_id = "+arg(q.ViewerID)+")")
	}
	if q.AuthorID != "" {
		where = append(where, "author_id = "+arg(q.AuthorID))
	}
	if q.Status != "" {
		where = append(where, "status = "+arg(string(q.Status)))
	}
	query := `SELECT ` + postColumns + ` FROM posts WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY created_at DESC, id DESC LIMIT ` + arg(q.Limit) + ` OFFSET ` + arg(q.Offset)
	return query, args
}

// UpdateOwned applies patch in one statement scoped to the author and returns the row as stored.
func (r *PostgresRepository) UpdateOwned(ctx context.Context, id, authorID string, patch domain.Patch, now time.Time) (*domain.Post, error) {
	var status sql.NullString
	if patch.Status != nil {
		status = sql.NullString{String: string(*patch.Status), Valid: true}
	}
	var rec postRecord
	err := r.db.GetContext(ctx, &rec, updateOwnedPostSQL,
		id, authorID, nullStringPtr(patch.Title), nullStringPtr(patch.Body), status, now)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("update post: %w", err)
	}
	return rec.toDomain(), nil
}

// DeleteOwned deletes the post if authorID owns it.
func (r *PostgresRepository) DeleteOwned(ctx context.Context, id, authorID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, deleteOwnedPostSQL, id, authorID)
	if err != nil {
		return false, fmt.Errorf("delete post: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete post: %w", err)
	}
	return n > 0, nil
}

func (rec *postRecord) toDomain() *domain.Post {
	p := &domain.Post{
		ID:        rec.ID,
		AuthorID:  rec.AuthorID,
		Title:     rec.Title,
		Body:      rec.Body,
		Status:    domain.PostStatus(rec.Status),
		CreatedAt: rec.CreatedAt.UTC(),
		UpdatedAt: rec.UpdatedAt.UTC(),
	}
	if rec.PublishedAt.Valid {
		t := rec.PublishedAt.Time.UTC()
		p.PublishedAt = &t
	}
	return p
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
