package user

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/linkfolio-api/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

type Service interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	// ChangePassword re-verifies the current password and writes the new hash
	// in the same operation; there is no separate check endpoint to race against.
	ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error
	// Delete is a hard delete: the record, its uniqueness guards and any
	// outstanding verification state are removed immediately.
	Delete(ctx context.Context, userID string) error
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
	Delete(ctx context.Context, u *domain.User) error
}

type verificationStore interface {
	DeleteAll(ctx context.Context, userID string) error
}

type service struct {
	repo             userStore
	verificationRepo verificationStore
}

type ServiceDeps struct {
	UserRepo         userStore
	VerificationRepo verificationStore
}

func NewService(deps ServiceDeps) Service {
	return &service{repo: deps.UserRepo, verificationRepo: deps.VerificationRepo}
}

func (s *service) Get(ctx context.Context, userID string) (*domain.User, error) {
	return s.repo.Get(ctx, userID)
}

func (s *service) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	u, err := s.repo.Get(ctx, userID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(currentPassword)) != nil {
		return fmt.Errorf("current password is incorrect: %w", domain.ErrUnauthorized)
	}
	if len(newPassword) < 8 {
		return fmt.Errorf("password must be at least 8 characters: %w", domain.ErrBadRequest)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.repo.Update(ctx, userID, map[string]interface{}{"password_hash": string(hash)})
}

func (s *service) Delete(ctx context.Context, userID string) error {
	u, err := s.repo.Get(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.verificationRepo.DeleteAll(ctx, userID); err != nil {
		slog.Warn("failed to purge verification records", "user_id", userID, "err", err)
	}
	return s.repo.Delete(ctx, u)
}
