// seed inserts development sample data for local testing.
// Idempotent: skips inserts if the dev user already exists.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"server-actions/backend/internal/config"
	"server-actions/backend/internal/logging"
	postdomain "server-actions/backend/internal/post/domain"
	postrepo "server-actions/backend/internal/post/repository"
	"server-actions/backend/internal/store"
	userdomain "server-actions/backend/internal/user/domain"
	userrepo "server-actions/backend/internal/user/repository"
)

const (
	devUserID    = "dev-user-001"
	devUserEmail = "dev@example.com"
	memberID     = "dev-user-002"
	memberEmail  = "member@example.com"
)

var seedPosts = []struct {
	id, author, title, body string
	status                  postdomain.PostStatus
}{
	{"8d3c1f52-4f0e-4d8e-9f6a-0c1b2a3d4e01", devUserID, "Welcome", "The first published post.", postdomain.PostStatusPublished},
	{"8d3c1f52-4f0e-4d8e-9f6a-0c1b2a3d4e02", devUserID, "Work in progress", "Only the author can read drafts.", postdomain.PostStatusDraft},
	{"8d3c1f52-4f0e-4d8e-9f6a-0c1b2a3d4e03", memberID, "Hello from a member", "Published by the second user.", postdomain.PostStatusPublished},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log, err := logging.New(cfg.LogLevel, "text", os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx := context.Background()
	st, err := store.Open(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("seed: open store")
	}
	defer st.Close()

	applied, err := seed(ctx, st.Users, st.Posts, time.Now().UTC().Truncate(time.Microsecond), log)
	if err != nil {
		log.WithError(err).Fatal("seed failed")
	}
	if !applied {
		log.Info("seed already applied; skipping")
	}
}

// seed creates two users and their posts. It returns false without writing if the dev user exists.
func seed(ctx context.Context, users userrepo.Repository, posts postrepo.Repository, now time.Time, log logrus.FieldLogger) (bool, error) {
	existing, err := users.GetByID(ctx, devUserID)
	if err != nil {
		return false, fmt.Errorf("seed check: %w", err)
	}
	if existing != nil {
		return false, nil
	}

	for _, u := range []*userdomain.User{
		{ID: devUserID, Email: devUserEmail, Name: "Dev User", Status: userdomain.UserStatusActive, CreatedAt: now, UpdatedAt: now},
		{ID: memberID, Email: memberEmail, Name: "Member User", Status: userdomain.UserStatusActive, CreatedAt: now, UpdatedAt: now},
	} {
		if err := users.Create(ctx, u); err != nil {
			return false, fmt.Errorf("create user %s: %w", u.ID, err)
		}
		log.WithField("user_id", u.ID).Info("seed: user created")
	}
	for i, p := range seedPosts {
		// Space creation times so list order is deterministic.
		created := now.Add(time.Duration(i-len(seedPosts)) * time.Minute)
		post := postdomain.New(p.id, p.author, p.title, p.body, p.status, created)
		if err := posts.Create(ctx, post); err != nil {
			return false, fmt.Errorf("create post %s: %w", p.id, err)
		}
	}
	log.WithField("posts", len(seedPosts)).Info("seed: posts created")
	return true, nil
}
