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
	"server-actions/backend/internal/post/domain"
)

var postCols = []string{"id", "author_id", "title", "body", "status", "created_at", "updated_at", "published_at"}

var t0 = time.Date(2024, 5, 1, 10, 0, 0, 123456000, time.UTC)

func newMockRepo(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return NewPostgresRepository(sqlDB), mock
}

func publishedPost() *domain.Post {
	return domain.New("0b8e4c9a-5b0e-4f3e-9a51-6a3d3b2f1c10", "user-1", "Hello", "First post", domain.PostStatusPublished, t0)
}

func TestPostgresRepository_CreateThenGet_RoundTrip(t *testing.T) {
	repo, mock := newMockRepo(t)
	p := publishedPost()

	mock.ExpectExec(regexp.QuoteMeta(createPostSQL)).
		WithArgs(p.ID, p.AuthorID, p.Title, p.Body, "published", p.CreatedAt, p.UpdatedAt, *p.PublishedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(getPostSQL)).
		WithArgs(p.ID).
		WillReturnRows(sqlmock.NewRows(postCols).
			AddRow(p.ID, p.AuthorID, p.Title, p.Body, "published", p.CreatedAt, p.UpdatedAt, *p.PublishedAt))

	require.NoError(t, repo.Create(context.Background(), p))
	got, err := repo.GetByID(context.Background(), p.ID)

	require.NoError(t, err)
	assert.Equal(t, p, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_Create_DraftHasNullPublishedAt(t *testing.T) {
	repo, mock := newMockRepo(t)
	p := domain.New("p1", "user-1", "Draft", "", domain.PostStatusDraft, t0)

	mock.ExpectExec(regexp.QuoteMeta(createPostSQL)).
		WithArgs(p.ID, p.AuthorID, p.Title, p.Body, "draft", p.CreatedAt, p.UpdatedAt, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), p))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_Create_MissingAuthor(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec(regexp.QuoteMeta(createPostSQL)).
		WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: "posts_author_id_fkey"})

	err := repo.Create(context.Background(), publishedPost())

	assert.ErrorIs(t, err, db.ErrMissingReference)
}

func TestPostgresRepository_GetByID_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta(getPostSQL)).WillReturnRows(sqlmock.NewRows(postCols))

	got, err := repo.GetByID(context.Background(), "missing")

	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestListPostsSQL(t *testing.T) {
	testCases := []struct {
		name      string
		q         domain.ListQuery
		wantWhere string
		wantArgs  []any
	}{
		{
			name:      "anonymous",
			q:         domain.ListQuery{Limit: 20},
			wantWhere: "WHERE status = 'published' ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2",
			wantArgs:  []any{20, 0},
		},
		{
			name:      "viewer",
			q:         domain.ListQuery{ViewerID: "user-1", Limit: 10, Offset: 5},
			wantWhere: "WHERE (status = 'published' OR author_id = $1) ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3",
			wantArgs:  []any{"user-1", 10, 5},
		},
		{
			name:      "viewer with filters",
			q:         domain.ListQuery{ViewerID: "user-1", AuthorID: "user-2", Status: domain.PostStatusDraft, Limit: 20},
			wantWhere: "WHERE (status = 'published' OR author_id = $1) AND author_id = $2 AND status = $3 ORDER BY created_at DESC, id DESC LIMIT $4 OFFSET $5",
			wantArgs:  []any{"user-1", "user-2", "draft", 20, 0},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			query, args := listPostsSQL(tc.q)
			assert.Equal(t, "SELECT "+postColumns+" FROM posts "+tc.wantWhere, query)
			assert.Equal(t, tc.wantArgs, args)
		})
	}
}

func TestPostgresRepository_List(t *testing.T) {
	repo, mock := newMockRepo(t)
	newer := t0.Add(time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT "+postColumns+" FROM posts WHERE (status = 'published' OR author_id = $1)")).
		WithArgs("user-1", domain.DefaultListLimit, 0).
		WillReturnRows(sqlmock.NewRows(postCols).
			AddRow("p2", "user-1", "Mine", "", "draft", newer, newer, nil).
			AddRow("p1", "user-2", "Theirs", "", "published", t0, t0, t0))

	got, err := repo.List(context.Background(), domain.ListQuery{ViewerID: "user-1"})

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "p2", got[0].ID)
	assert.Nil(t, got[0].PublishedAt)
	require.NotNil(t, got[1].PublishedAt)
	assert.Equal(t, t0, *got[1].PublishedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_List_Empty(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows(postCols))

	got, err := repo.List(context.Background(), domain.ListQuery{})

	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestPostgresRepository_UpdateOwned(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := t0.Add(time.Hour)
	published := domain.PostStatusPublished

	mock.ExpectQuery(regexp.QuoteMeta(updateOwnedPostSQL)).
		WithArgs("p1", "user-1", nil, nil, "published", now).
		WillReturnRows(sqlmock.NewRows(postCols).
			AddRow("p1", "user-1", "Hello", "", "published", t0, now, now))

	got, err := repo.UpdateOwned(context.Background(), "p1", "user-1", domain.Patch{Status: &published}, now)

	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.PostStatusPublished, got.Status)
	require.NotNil(t, got.PublishedAt)
	assert.Equal(t, now, *got.PublishedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_UpdateOwned_NotOwned(t *testing.T) {
	repo, mock := newMockRepo(t)
	title := "x"
	mock.ExpectQuery(regexp.QuoteMeta(updateOwnedPostSQL)).
		WithArgs("p1", "user-2", "x", nil, nil, t0).
		WillReturnRows(sqlmock.NewRows(postCols))

	got, err := repo.UpdateOwned(context.Background(), "p1", "user-2", domain.Patch{Title: &title}, t0)

	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPostgresRepository_DeleteOwned(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec(regexp.QuoteMeta(deleteOwnedPostSQL)).
		WithArgs("p1", "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(deleteOwnedPostSQL)).
		WithArgs("p1", "user-2").
		WillReturnResult(sqlmock.NewResult(0, 0))

	deleted, err := repo.DeleteOwned(context.Background(), "p1", "user-1")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = repo.DeleteOwned(context.Background(), "p1", "user-2")
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_DeleteOwned_DBError(t *testing.T) {
	repo, mock := newMockRepo(t)
	boom := errors.New("connection reset")
	mock.ExpectExec(regexp.QuoteMeta(deleteOwnedPostSQL)).WillReturnError(boom)

	_, err := repo.DeleteOwned(context.Background(), "p1", "user-1")

	assert.ErrorIs(t, err, boom)
}
