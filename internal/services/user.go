package services

import (
	"context"
	"time"

	"github.com/taskhive/apiserver/types"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	UpdateState(ctx context.Context, id int, state string, lastActive time.Time) error
	UpdatePassword(ctx context.Context, id int, passwordHash string) error
	ListNonAdmin(ctx context.Context) ([]types.User, error)
	ListByDepartment(ctx context.Context, department string) ([]types.User, error)
	Delete(ctx context.Context, id int) error
}

// UserService encapsulates user use-cases.
type UserService struct {
	repo UserRepository
}

func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo}
}

func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (types.User, error) {
	return s.repo.GetByEmail(ctx, email)
}

func (s *UserService) Create(ctx context.Context, user types.User) (types.User, error) {
	return s.repo.Create(ctx, user)
}

func (s *UserService) Update(ctx context.Context, user types.User) (types.User, error) {
	return s.repo.Update(ctx, user)
}

func (s *UserService) SetState(ctx context.Context, id int, state string, lastActive time.Time) error {
	return s.repo.UpdateState(ctx, id, state, lastActive)
}

func (s *UserService) SetPassword(ctx context.Context, id int, passwordHash string) error {
	return s.repo.UpdatePassword(ctx, id, passwordHash)
}

func (s *UserService) ListNonAdmin(ctx context.Context) ([]types.User, error) {
	return s.repo.ListNonAdmin(ctx)
}

func (s *UserService) ListByDepartment(ctx context.Context, department string) ([]types.User, error) {
	return s.repo.ListByDepartment(ctx, department)
}

func (s *UserService) Delete(ctx context.Context, id int) error {
	return s.repo.Delete(ctx, id)
}
