package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"server-actions/backend/internal/config"
	"server-actions/backend/internal/db/sqlite"
	"server-actions/backend/internal/user/domain"
)

func TestOpen_RequiresDSN(t *testing.T) {
	logger, _ := test.NewNullLogger()
	_, err := Open(context.Background(), &config.Config{StoreDriver: config.StorePostgres}, logger)
	assert.Error(t, err)
}

func TestOpen_SQLiteMemory(t *testing.T) {
	logger, _ := test.NewNullLogger()
	s, err := Open(context.Background(), &config.Config{StoreDriver: config.StoreSQLite, SQLitePath: sqlite.Memory}, logger)
	require.NoError(t, err)
	defer func() { assert.NoError(t, s.Close()) }()

	require.NoError(t, s.Pinger.PingContext(context.Background()))

	now := time.Now().UTC().Truncate(time.Microsecond)
	u := &domain.User{ID: "u1", Email: "u1@example.com", Status: domain.UserStatusActive, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.Users.Create(context.Background(), u))
	got, err := s.Users.GetByID(context.Background(), "u1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "u1@example.com", got.Email)
}

func TestOpen_SQLiteFileAutoMigrate(t *testing.T) {
	logger, _ := test.NewNullLogger()
	cfg := &config.Config{
		StoreDriver: config.StoreSQLite,
		SQLitePath:  filepath.Join(t.TempDir(), "serveractions.db"),
		AutoMigrate: true,
	}
	s, err := Open(context.Background(), cfg, logger)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Posts.GetByID(context.Background(), "00000000-0000-0000-0000-000000000000")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestClose_Nil(t *testing.T) {
	var s *Store
	assert.NoError(t, s.Close())
}
