package app

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/payflow/approval-service/internal/domain"
	"github.com/payflow/approval-service/internal/store"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 6

// UserStore defines the account management operations.
type UserStore interface {
	FindUserByEmail(ctx context.Context, email string) (*domain.User, error)
	FindUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	CreateUser(ctx context.Context, user *domain.User) (uuid.UUID, error)
	UpdateUser(ctx context.Context, user *domain.User, passwordHash *string) error
	DeleteUser(ctx context.Context, id uuid.UUID) error
	CountAdmins(ctx context.Context, excluding *uuid.UUID) (int, error)
	ResetLockState(ctx context.Context, id uuid.UUID) error
}

// UserService is the admin-only account management layer.
type UserService struct {
	store      UserStore
	logger     *zap.Logger
	bcryptCost int
}

func NewUserService(store UserStore, logger *zap.Logger) *UserService {
	return &UserService{store: store, logger: logger.Named("users"), bcryptCost: bcrypt.DefaultCost}
}

func (s *UserService) List(ctx context.Context) ([]domain.User, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []domain.User{}
	}
	return users, nil
}

func (s *UserService) Get(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return s.store.FindUserByID(ctx, id)
}

// Create provisions an account. Only one admin may exist.
func (s *UserService) Create(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = normalizeEmail(req.Email)

	v := &validator{}
	validateProfile(v, req.Name, req.Email, req.Role)
	v.check(len(req.Password) >= minPasswordLength, fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	if err := v.err(); err != nil {
		return nil, err
	}

	if req.Role == domain.RoleAdmin {
		if err := s.ensureNoOtherAdmin(ctx, nil); err != nil {
			return nil, err
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{Name: req.Name, Email: req.Email, PasswordHash: string(hash), Role: req.Role}
	id, err := s.store.CreateUser(ctx, user)
	if err != nil {
		return nil, err
	}
	s.logger.Info("account created", zap.String("user_id", id.String()), zap.String("role", string(req.Role)))
	return s.store.FindUserByID(ctx, id)
}

// Update edits an account. An empty password keeps the current one.
func (s *UserService) Update(ctx context.Context, id uuid.UUID, req domain.UpdateUserRequest) (*domain.User, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = normalizeEmail(req.Email)

	v := &validator{}
	validateProfile(v, req.Name, req.Email, req.Role)
	if req.Password != "" {
		v.check(len(req.Password) >= minPasswordLength, fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	if err := v.err(); err != nil {
		return nil, err
	}

	if req.Role == domain.RoleAdmin {
		if err := s.ensureNoOtherAdmin(ctx, &id); err != nil {
			return nil, err
		}
	}

	var passwordHash *string
	if req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		h := string(hash)
		passwordHash = &h
	}

	user := &domain.User{ID: id, Name: req.Name, Email: req.Email, Role: req.Role}
	if err := s.store.UpdateUser(ctx, user, passwordHash); err != nil {
		return nil, err
	}
	return s.store.FindUserByID(ctx, id)
}

func (s *UserService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.store.DeleteUser(ctx, id)
}

// Unlock clears every lockout field, the administrative reset for a permanent lock.
func (s *UserService) Unlock(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	if err := s.store.ResetLockState(ctx, id); err != nil {
		return nil, err
	}
	s.logger.Info("account unlocked", zap.String("user_id", id.String()))
	return s.store.FindUserByID(ctx, id)
}

// EnsureUsers creates each account whose email is not registered yet and returns how many were created.
func (s *UserService) EnsureUsers(ctx context.Context, seeds []domain.CreateUserRequest) (int, error) {
	created := 0
	for _, seed := range seeds {
		_, err := s.store.FindUserByEmail(ctx, normalizeEmail(seed.Email))
		if err == nil {
			continue
		}
		if !errors.Is(err, store.ErrUserNotFound) {
			return created, err
		}
		if _, err := s.Create(ctx, seed); err != nil {
			if errors.Is(err, store.ErrAdminExists) {
				s.logger.Info("admin already provisioned; skipping seed", zap.String("email", seed.Email))
				continue
			}
			return created, fmt.Errorf("seed %s: %w", seed.Email, err)
		}
		created++
	}
	return created, nil
}

func (s *UserService) ensureNoOtherAdmin(ctx context.Context, excluding *uuid.UUID) error {
	count, err := s.store.CountAdmins(ctx, excluding)
	if err != nil {
		return err
	}
	if count > 0 {
		return store.ErrAdminExists
	}
	return nil
}

func validateProfile(v *validator, name, email string, role domain.Role) {
	v.check(len(name) >= 2 && len(name) <= 100, "name must be between 2 and 100 characters")
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		v.add("email must be a valid address")
	}
	v.check(role.Valid(), "role must be one of requester, approver, bank_payer, admin")
}
