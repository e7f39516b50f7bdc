package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"server-actions/backend/internal/db"
	"server-actions/backend/internal/user/domain"
)

var userCols = []string{"id", "email", "name", "status", "created_at", "updated_at"}

func newMockRepo(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return NewPostgresRepository(sqlDB), mock
}

func testUser() *domain.User {
	ts := time.Date(2024, 5, 1, 10, 0, 0, 123456000, time.UTC)
	return &domain.User{
		ID:        "user-1",
		Email:     "ada@example.com",
		Name:      "Ada",
		Status:    domain.UserStatusActive,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
}

func TestPostgresRepository_CreateThenGet_RoundTrip(t *testing.T) {
	repo, mock := newMockRepo(t)
	u := testUser()

	mock.ExpectExec(regexp.QuoteMeta(createUserSQL)).
		WithArgs(u.ID, u.Email, u.Name, "active", u.CreatedAt, u.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(getUserSQL)).
		WithArgs(u.ID).
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow(u.ID, u.Email, u.Name, "active", u.CreatedAt, u.UpdatedAt))

	require.NoError(t, repo.Create(context.Background(), u))
	got, err := repo.GetByID(context.Background(), u.ID)

	require.NoError(t, err)
	assert.Equal(t, u, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_Create_NullName(t *testing.T) {
	repo, mock := newMockRepo(t)
	u := testUser()
	u.Name = ""

	mock.ExpectExec(regexp.QuoteMeta(createUserSQL)).
		WithArgs(u.ID, u.Email, nil, "active", u.CreatedAt, u.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), u))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_Create_Duplicate(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta(createUserSQL)).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

	err := repo.Create(context.Background(), testUser())

	assert.ErrorIs(t, err, db.ErrDuplicate)
}

func TestPostgresRepository_GetByID_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta(getUserSQL)).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(userCols))

	got, err := repo.GetByID(context.Background(), "missing")

	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPostgresRepository_GetByID_DBError(t *testing.T) {
	repo, mock := newMockRepo(t)
	boom := errors.New("connection reset")
	mock.ExpectQuery(regexp.QuoteMeta(getUserSQL)).WillReturnError(boom)

	got, err := repo.GetByID(context.Background(), "user-1")

	assert.ErrorIs(t, err, boom)
	assert.Nil(t, got)
}

func TestPostgresRepository_Update(t *testing.T) {
	repo, mock := newMockRepo(t)
	u := testUser()
	now := u.CreatedAt.Add(time.Hour)
	email := "ada@lovelace.dev"

	mock.ExpectQuery(regexp.QuoteMeta(updateUserSQL)).
		WithArgs(u.ID, nil, email, now).
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow(u.ID, email, "Ada", "active", u.CreatedAt, now))

	got, err := repo.Update(context.Background(), u.ID, domain.Patch{Email: &email}, now)

	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, email, got.Email)
	assert.Equal(t, "Ada", got.Name)
	assert.Equal(t, now, got.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_Update_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	name := "x"
	mock.ExpectQuery(regexp.QuoteMeta(updateUserSQL)).
		WillReturnRows(sqlmock.NewRows(userCols))

	got, err := repo.Update(context.Background(), "missing", domain.Patch{Name: &name}, time.Now())

	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPostgresRepository_Update_DuplicateEmail(t *testing.T) {
	repo, mock := newMockRepo(t)
	email := "taken@example.com"
	mock.ExpectQuery(regexp.QuoteMeta(updateUserSQL)).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

	_, err := repo.Update(context.Background(), "user-1", domain.Patch{Email: &email}, time.Now())

	assert.ErrorIs(t, err, db.ErrDuplicate)
}
