package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"server-actions/backend/internal/db/sqlite"
	"server-actions/backend/internal/user/domain"
)

// GormRepository persists users through gorm. It backs the embedded SQLite store.
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository returns a user repository over gdb. The schema must already be migrated.
func NewGormRepository(gdb *gorm.DB) *GormRepository {
	return &GormRepository{db: gdb}
}

var _ Repository = (*GormRepository)(nil)

// GetByID returns the user for id, or nil if not found.
func (r *GormRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	var row sqlite.UserRow
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return rowToDomain(&row), nil
}

// Create inserts the user.
func (r *GormRepository) Create(ctx context.Context, u *domain.User) error {
	row := domainToRow(u)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("create user: %w", sqlite.Classify(err))
	}
	return nil
}

// Update applies p inside one transaction and returns the stored row.
func (r *GormRepository) Update(ctx context.Context, id string, p domain.Patch, now time.Time) (*domain.User, error) {
	var out *domain.User
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row sqlite.UserRow
		if err := tx.Where("id = ?", id).Take(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		u := rowToDomain(&row)
		u.Apply(p, now)
		row = domainToRow(u)
		if err := tx.Save(&row).Error; err != nil {
			return err
		}
		out = u
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update user: %w", sqlite.Classify(err))
	}
	return out, nil
}

func rowToDomain(row *sqlite.UserRow) *domain.User {
	return &domain.User{
		ID:        row.ID,
		Email:     row.Email,
		Name:      row.Name.String,
		Status:    domain.UserStatus(row.Status),
		CreatedAt: row.CreatedAt.UTC(),
		UpdatedAt: row.UpdatedAt.UTC(),
	}
}

func domainToRow(u *domain.User) sqlite.UserRow {
	return sqlite.UserRow{
		ID:        u.ID,
		Email:     u.Email,
		Name:      sql.NullString{String: u.Name, Valid: u.Name != ""},
		Status:    string(u.Status),
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}
