package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"server-actions/backend/internal/db/sqlite"
	"server-actions/backend/internal/post/domain"
)

// GormRepository persists posts through gorm. It backs the embedded SQLite store.
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository returns a post repository over gdb. The schema must already be migrated.
func NewGormRepository(gdb *gorm.DB) *GormRepository {
	return &GormRepository{db: gdb}
}

var _ Repository = (*GormRepository)(nil)

// Create inserts the post.
func (r *GormRepository) Create(ctx context.Context, p *domain.Post) error {
	row := domainToRow(p)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("create post: %w", sqlite.Classify(err))
	}
	return nil
}

// GetByID returns the post for id, or nil if not found.
func (r *GormRepository) GetByID(ctx context.Context, id string) (*domain.Post, error) {
	var row sqlite.PostRow
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get post: %w", err)
	}
	return rowToDomain(&row), nil
}

// List returns the posts visible under q, newest first.
func (r *GormRepository) List(ctx context.Context, q domain.ListQuery) ([]*domain.Post, error) {
	q = q.Normalize()
	tx := r.db.WithContext(ctx).Model(&sqlite.PostRow{})
	if q.ViewerID == "" {
		tx = tx.Where("status = ?", string(domain.PostStatusPublished))
	} else {
		tx = tx.Where("(status = ? OR author_id = ?)", string(domain.PostStatusPublished), q.ViewerID)
	}
	if q.AuthorID != "" {
		tx = tx.Where("author_id = ?", q.AuthorID)
	}
	if q.Status != "" {
		tx = tx.Where("status = ?", string(q.Status))
	}
	var rows []sqlite.PostRow
	err := tx.Order("created_at DESC").Order("id DESC").Limit(q.Limit).Offset(q.Offset).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	out := make([]*domain.Post, 0, len(rows))
	for i := range rows {
		out = append(out, rowToDomain(&rows[i]))
	}
	return out, nil
}

// UpdateOwned applies patch inside one transaction, scoped to the author.
func (r *GormRepository) UpdateOwned(ctx context.Context, id, authorID string, patch domain.Patch, now time.Time) (*domain.Post, error) {
	var out *domain.Post
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row sqlite.PostRow
		if err := tx.Where("id = ? AND author_id = ?", id, authorID).Take(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		p := rowToDomain(&row)
		p.Apply(patch, now)
		row = domainToRow(p)
		if err := tx.Save(&row).Error; err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update post: %w", err)
	}
	return out, nil
}

// DeleteOwned deletes the post if authorID owns it.
func (r *GormRepository) DeleteOwned(ctx context.Context, id, authorID string) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ? AND author_id = ?", id, authorID).Delete(&sqlite.PostRow{})
	if res.Error != nil {
		return false, fmt.Errorf("delete post: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func rowToDomain(row *sqlite.PostRow) *domain.Post {
	p := &domain.Post{
		ID:        row.ID,
		AuthorID:  row.AuthorID,
		Title:     row.Title,
		Body:      row.Body,
		Status:    domain.PostStatus(row.Status),
		CreatedAt: row.CreatedAt.UTC(),
		UpdatedAt: row.UpdatedAt.UTC(),
	}
	if row.PublishedAt != nil {
		t := row.PublishedAt.UTC()
		p.PublishedAt = &t
	}
	return p
}

func domainToRow(p *domain.Post) sqlite.PostRow {
	return sqlite.PostRow{
		ID:          p.ID,
		AuthorID:    p.AuthorID,
		Title:       p.Title,
		Body:        p.Body,
		Status:      string(p.Status),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
		PublishedAt: p.PublishedAt,
	}
}
