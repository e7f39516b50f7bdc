package handler

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"server-actions/backend/internal/action"
	"server-actions/backend/internal/db"
	"server-actions/backend/internal/policy/engine"
	"server-actions/backend/internal/post/domain"
	postrepo "server-actions/backend/internal/post/repository"
)

// ReadPolicy decides whether a caller may see a post. *engine.OPAEvaluator implements it.
type ReadPolicy interface {
	AllowRead(ctx context.Context, in engine.ReadInput) bool
}

// Server implements the post.* entry points.
type Server struct {
	postRepo postrepo.Repository
	policy   ReadPolicy
	now      func() time.Time
	newID    func() string
}

// NewServer returns the post entry points. postRepo may be nil; then all entry points return Unimplemented.
// policy may be nil; then the built-in read rule applies.
func NewServer(postRepo postrepo.Repository, policy ReadPolicy) *Server {
	return &Server{
		postRepo: postRepo,
		policy:   policy,
		now:      func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
		newID:    uuid.NewString,
	}
}

// EntryPoints returns every post entry point for registration.
func (s *Server) EntryPoints() []*action.EntryPoint {
	return []*action.EntryPoint{
		action.New("post", "create", s.Create, action.Describe("Create a post owned by the caller.")),
		action.New("post", "get", s.Get, action.Public(), action.Describe("Get a post visible to the caller.")),
		action.New("post", "list", s.List, action.Public(), action.Describe("List visible posts, newest first.")),
		action.New("post", "update", s.Update, action.Describe("Update one of the caller's posts.")),
		action.New("post", "delete", s.Delete, action.Describe("Delete one of the caller's posts.")),
	}
}

// Post is the result shape of a single post.
type Post struct {
	ID          string     `json:"id"`
	AuthorID    string     `json:"author_id"`
	Title       string     `json:"title"`
	Body        string     `json:"body"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

type CreateInput struct {
	Title  string `mapstructure:"title" validate:"required,max=200"`
	Body   string `mapstructure:"body" validate:"max=20000"`
	Status string `mapstructure:"status" validate:"omitempty,oneof=draft published"`
}

// Check rejects titles made only of whitespace.
func (in CreateInput) Check() []action.FieldViolation {
	if strings.TrimSpace(in.Title) == "" {
		return []action.FieldViolation{{Field: "title", Description: "is required"}}
	}
	return nil
}

// Create inserts a post authored by the caller.
func (s *Server) Create(ctx context.Context, caller action.Caller, in CreateInput) (*Post, error) {
	if s.postRepo == nil {
		return nil, action.Unimplemented("post.create")
	}
	p := domain.New(s.newID(), caller.UserID, strings.TrimSpace(in.Title), in.Body, domain.PostStatus(in.Status), s.now())
	if err := p.Validate(); err != nil {
		return nil, action.FailedPrecondition("%v", err)
	}
	if err := s.postRepo.Create(ctx, p); err != nil {
		switch {
		case errors.Is(err, db.ErrMissingReference):
			return nil, action.FailedPrecondition("caller has no user profile; call user.create first")
		case errors.Is(err, db.ErrDuplicate):
			return nil, action.AlreadyExists("post")
		}
		return nil, err
	}
	return domainPostToResult(p), nil
}

type GetInput struct {
	PostID string `mapstructure:"post_id" validate:"required,uuid"`
}

// Get returns a post if the read policy lets the caller see it. Invisible posts are reported as not found.
func (s *Server) Get(ctx context.Context, caller action.Caller, in GetInput) (*Post, error) {
	if s.postRepo == nil {
		return nil, action.Unimplemented("post.get")
	}
	p, err := s.postRepo.GetByID(ctx, strings.ToLower(in.PostID))
	if err != nil {
		return nil, err
	}
	if p == nil || !s.allowRead(ctx, caller, p) {
		return nil, action.NotFound("post")
	}
	return domainPostToResult(p), nil
}

func (s *Server) allowRead(ctx context.Context, caller action.Caller, p *domain.Post) bool {
	in := engine.ReadInput{CallerID: caller.UserID, AuthorID: p.AuthorID, Status: string(p.Status)}
	if s.policy == nil {
		return engine.BuiltinAllowRead(in)
	}
	return s.policy.AllowRead(ctx, in)
}

type ListInput struct {
	AuthorID string `mapstructure:"author_id" validate:"omitempty,max=128"`
	Status   string `mapstructure:"status" validate:"omitempty,oneof=draft published archived"`
	Limit    *int   `mapstructure:"limit" validate:"omitnil,min=1,max=100"`
	Offset   int    `mapstructure:"offset" validate:"min=0"`
}

// ListResult is the result of post.list.
type ListResult struct {
	Posts []*Post `json:"posts"`
}

// List returns published posts and, for an identified caller, the caller's own posts.
func (s *Server) List(ctx context.Context, caller action.Caller, in ListInput) (*ListResult, error) {
	if s.postRepo == nil {
		return nil, action.Unimplemented("post.list")
	}
	q := domain.ListQuery{
		ViewerID: caller.UserID,
		AuthorID: in.AuthorID,
		Status:   domain.PostStatus(in.Status),
		Offset:   in.Offset,
	}
	if in.Limit != nil {
		q.Limit = *in.Limit
	}
	posts, err := s.postRepo.List(ctx, q.Normalize())
	if err != nil {
		return nil, err
	}
	out := &ListResult{Posts: make([]*Post, 0, len(posts))}
	for _, p := range posts {
		out.Posts = append(out.Posts, domainPostToResult(p))
	}
	return out, nil
}

type UpdateInput struct {
	PostID string  `mapstructure:"post_id" validate:"required,uuid"`
	Title  *string `mapstructure:"title" validate:"omitnil,min=1,max=200"`
	Body   *string `mapstructure:"body" validate:"omitnil,max=20000"`
	Status *string `mapstructure:"status" validate:"omitnil,oneof=draft published archived"`
}

// Check requires at least one mutable field.
func (in UpdateInput) Check() []action.FieldViolation {
	if in.Title == nil && in.Body == nil && in.Status == nil {
		return []action.FieldViolation{{Field: "title", Description: "at least one of title, body, status is required"}}
	}
	if in.Title != nil && strings.TrimSpace(*in.Title) == "" {
		return []action.FieldViolation{{Field: "title", Description: "must not be blank"}}
	}
	return nil
}

// Update changes one of the caller's posts. Posts that do not exist or belong to someone else are not found.
func (s *Server) Update(ctx context.Context, caller action.Caller, in UpdateInput) (*Post, error) {
	if s.postRepo == nil {
		return nil, action.Unimplemented("post.update")
	}
	var patch domain.Patch
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		patch.Title = &title
	}
	patch.Body = in.Body
	if in.Status != nil {
		st := domain.PostStatus(*in.Status)
		patch.Status = &st
	}
	p, err := s.postRepo.UpdateOwned(ctx, strings.ToLower(in.PostID), caller.UserID, patch, s.now())
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, action.NotFound("post")
	}
	return domainPostToResult(p), nil
}

type DeleteInput struct {
	PostID string `mapstructure:"post_id" validate:"required,uuid"`
}

// DeleteResult is the result of post.delete.
type DeleteResult struct {
	PostID  string `json:"post_id"`
	Deleted bool   `json:"deleted"`
}

// Delete removes one of the caller's posts.
func (s *Server) Delete(ctx context.Context, caller action.Caller, in DeleteInput) (*DeleteResult, error) {
	if s.postRepo == nil {
		return nil, action.Unimplemented("post.delete")
	}
	id := strings.ToLower(in.PostID)
	deleted, err := s.postRepo.DeleteOwned(ctx, id, caller.UserID)
	if err != nil {
		return nil, err
	}
	if !deleted {
		return nil, action.NotFound("post")
	}
	return &DeleteResult{PostID: id, Deleted: true}, nil
}

func domainPostToResult(p *domain.Post) *Post {
	return &Post{
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
