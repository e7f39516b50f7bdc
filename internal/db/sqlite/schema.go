package sqlite

import (
	"database/sql"
	"time"

	"gorm.io/gorm"
)

// UserRow mirrors the users table of the Postgres migrations.
type UserRow struct {
	ID        string `gorm:"primaryKey"`
	Email     string `gorm:"not null;uniqueIndex:users_email_key"`
	Name      sql.NullString
	Status    string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime:false"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime:false"`
}

func (UserRow) TableName() string { return "users" }

// PostRow mirrors the posts table of the Postgres migrations. Author exists only so AutoMigrate
// declares the foreign key; it is never loaded.
type PostRow struct {
	ID          string    `gorm:"primaryKey"`
	AuthorID    string    `gorm:"not null;index:posts_author_id_created_at_idx,priority:1"`
	Author      *UserRow  `gorm:"foreignKey:AuthorID;references:ID;constraint:OnDelete:RESTRICT"`
	Title       string    `gorm:"not null"`
	Body        string    `gorm:"not null"`
	Status      string    `gorm:"not null;index:posts_status_created_at_idx,priority:1"`
	CreatedAt   time.Time `gorm:"not null;autoCreateTime:false;index:posts_author_id_created_at_idx,priority:2;index:posts_status_created_at_idx,priority:2"`
	UpdatedAt   time.Time `gorm:"not null;autoUpdateTime:false"`
	PublishedAt *time.Time
}

func (PostRow) TableName() string { return "posts" }

// Migrate creates or updates the SQLite schema.
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(&UserRow{}, &PostRow{})
}

// OpenMigrated opens path and applies Migrate. Used by the server in sqlite mode and by repository tests.
func OpenMigrated(path string) (*gorm.DB, error) {
	gdb, err := Open(path)
	if err != nil {
		return nil, err
	}
	if err := Migrate(gdb); err != nil {
		_ = Close(gdb)
		return nil, err
	}
	return gdb, nil
}
