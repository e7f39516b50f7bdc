package handler

import (
	"context"
	"errors"
	"strings"
	"time"

	"server-actions/backend/internal/action"
	"server-actions/backend/internal/db"
	"server-actions/backend/internal/user/domain"
	userrepo "server-actions/backend/internal/user/repository"
)

// Server implements the user.* entry points.
type Server struct {
	userRepo userrepo.Repository
	now      func() time.Time
}

// NewServer returns the user entry points. userRepo may be nil; then all entry points return Unimplemented.
func NewServer(userRepo userrepo.Repository) *Server {
	return &Server{userRepo: userRepo, now: now}
}

func now() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }

// EntryPoints returns every user entry point for registration.
func (s *Server) EntryPoints() []*action.EntryPoint {
	return []*action.EntryPoint{
		action.New("user", "create", s.Create, action.Describe("Create the caller's user profile.")),
		action.New("user", "get", s.Get, action.Describe("Get a user by id.")),
		action.New("user", "me", s.Me, action.Describe("Get the caller's user profile.")),
		action.New("user", "update", s.Update, action.Describe("Update the caller's name or email.")),
	}
}

// User is the result shape of every user entry point.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CreateInput struct {
	Email string `mapstructure:"email" validate:"required,email,max=320"`
	Name  string `mapstructure:"name" validate:"max=200"`
}

// Create inserts the caller's own profile; the user id is the caller's subject.
func (s *Server) Create(ctx context.Context, caller action.Caller, in CreateInput) (*User, error) {
	if s.userRepo == nil {
		return nil, action.Unimplemented("user.create")
	}
	ts := s.now()
	u := &domain.User{
		ID:        caller.UserID,
		Email:     normalizeEmail(in.Email),
		Name:      strings.TrimSpace(in.Name),
		Status:    domain.UserStatusActive,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	if err := u.Validate(); err != nil {
		return nil, action.FailedPrecondition("%v", err)
	}
	if err := s.userRepo.Create(ctx, u); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			return nil, action.AlreadyExists("user")
		}
		return nil, err
	}
	return domainUserToResult(u), nil
}

type GetInput struct {
	UserID string `mapstructure:"user_id" validate:"required,max=128"`
}

// Get returns a user by ID.
func (s *Server) Get(ctx context.Context, _ action.Caller, in GetInput) (*User, error) {
	if s.userRepo == nil {
		return nil, action.Unimplemented("user.get")
	}
	return s.getByID(ctx, in.UserID)
}

type MeInput struct{}

// Me returns the caller's own profile.
func (s *Server) Me(ctx context.Context, caller action.Caller, _ MeInput) (*User, error) {
	if s.userRepo == nil {
		return nil, action.Unimplemented("user.me")
	}
	return s.getByID(ctx, caller.UserID)
}

func (s *Server) getByID(ctx context.Context, id string) (*User, error) {
	u, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, action.NotFound("user")
	}
	return domainUserToResult(u), nil
}

type UpdateInput struct {
	Name  *string `mapstructure:"name" validate:"omitnil,max=200"`
	Email *string `mapstructure:"email" validate:"omitnil,email,max=320"`
}

// Check requires at least one field to change.
func (in UpdateInput) Check() []action.FieldViolation {
	if in.Name == nil && in.Email == nil {
		return []action.FieldViolation{{Field: "name", Description: "at least one of name, email is required"}}
	}
	return nil
}

// Update changes the caller's own profile.
func (s *Server) Update(ctx context.Context, caller action.Caller, in UpdateInput) (*User, error) {
	if s.userRepo == nil {
		return nil, action.Unimplemented("user.update")
	}
	var p domain.Patch
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		p.Name = &name
	}
	if in.Email != nil {
		email := normalizeEmail(*in.Email)
		p.Email = &email
	}
	u, err := s.userRepo.Update(ctx, caller.UserID, p, s.now())
	if err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			return nil, action.AlreadyExists("user")
		}
		return nil, err
	}
	if u == nil {
		return nil, action.NotFound("user")
	}
	return domainUserToResult(u), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func domainUserToResult(u *domain.User) *User {
	return &User{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Status:    string(u.Status),
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}
