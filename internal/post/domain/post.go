package domain

import (
	"errors"
	"time"
)

// Post is a piece of content owned by a user.
type Post struct {
	ID          string
	AuthorID    string
	Title       string
	Body        string
	Status      PostStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
	PublishedAt *time.Time // set the first time the post is published
}

type PostStatus string

const (
	PostStatusDraft     PostStatus = "draft"
	PostStatusPublished PostStatus = "published"
	PostStatusArchived  PostStatus = "archived"
)

// Valid reports whether s is a known status.
func (s PostStatus) Valid() bool {
	switch s {
	case PostStatusDraft, PostStatusPublished, PostStatusArchived:
		return true
	}
	return false
}

// Patch holds the mutable post fields of an update; nil means unchanged.
type Patch struct {
	Title  *string
	Body   *string
	Status *PostStatus
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Title == nil && p.Body == nil && p.Status == nil
}

// Apply copies the set fields of patch onto p, stamps UpdatedAt, and stamps PublishedAt
// when the post becomes published for the first time.
func (p *Post) Apply(patch Patch, now time.Time) {
	if patch.Title != nil {
		p.Title = *patch.Title
	}
	if patch.Body != nil {
		p.Body = *patch.Body
	}
	if patch.Status != nil {
		p.Status = *patch.Status
	}
	p.stampPublished(now)
	p.UpdatedAt = now
}

func (p *Post) stampPublished(now time.Time) {
	if p.Status == PostStatusPublished && p.PublishedAt == nil {
		t := now
		p.PublishedAt = &t
	}
}

// New returns a post ready to insert. A published post gets PublishedAt = now.
func New(id, authorID, title, body string, status PostStatus, now time.Time) *Post {
	if status == "" {
		status = PostStatusDraft
	}
	p := &Post{
		ID:        id,
		AuthorID:  authorID,
		Title:     title,
		Body:      body,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	p.stampPublished(now)
	return p
}

// Validate validates the post for persistence. Returns an error describing the first validation failure.
func (p *Post) Validate() error {
	if p.ID == "" {
		return errors.New("id is required")
	}
	if p.AuthorID == "" {
		return errors.New("author is required")
	}
	if p.Title == "" {
		return errors.New("title is required")
	}
	if !p.Status.Valid() {
		return errors.New("unknown status " + string(p.Status))
	}
	return nil
}

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// ListQuery selects posts visible to ViewerID (empty for anonymous): published posts plus the
// viewer's own posts. AuthorID and Status narrow the result when set.
type ListQuery struct {
	ViewerID string
	AuthorID string
	Status   PostStatus
	Limit    int
	Offset   int
}

// Normalize clamps Limit to [1, MaxListLimit], defaulting to DefaultListLimit, and Offset to >= 0.
func (q ListQuery) Normalize() ListQuery {
	switch {
	case q.Limit <= 0:
		q.Limit = DefaultListLimit
	case q.Limit > MaxListLimit:
		q.Limit = MaxListLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return q
}
