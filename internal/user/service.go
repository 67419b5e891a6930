package user

import (
	"article-service/internal/domain"
	"article-service/internal/errors"
	"context"
	defError "errors"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Service defines the interface for user business logic
type Service interface {
	Register(ctx context.Context, user *domain.User) error
	Login(ctx context.Context, email, password string) (*domain.User, error)
	GetUserByID(ctx context.Context, id uint64) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	IncreaseTokenVersion(ctx context.Context, id uint64) error
	DeactivateUser(ctx context.Context, id uint64) error
}

type DefaultService struct {
	repository UserRepository
}

func NewService(repository UserRepository) Service {
	return &DefaultService{repository: repository}
}

// Register stores a new member account. Roles above member are granted by an administrator.
func (s *DefaultService) Register(ctx context.Context, user *domain.User) error {
	_, err := s.repository.FindByEmail(ctx, user.Email)
	if err != nil && !defError.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	if err == nil {
		return errors.UnprocessableEntity("User already registered", nil)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		return errors.UnprocessableEntity("Password cannot be used", err)
	}
	user.PasswordHash = string(hashedPassword)
	user.Role = domain.RoleMember
	user.TokenVersion = 1
	user.IsActive = true

	return s.repository.Create(ctx, user)
}

func (s *DefaultService) Login(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := s.repository.FindByEmail(ctx, email)
	if err != nil {
		return nil, errors.Unauthorized("Wrong email or password", err)
	}

	if !user.IsActive {
		return nil, errors.Unauthorized("User is not active", nil)
	}

	err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password))
	if err != nil {
		return nil, errors.Unauthorized("Wrong email or password", err)
	}

	return user, nil
}

func (s *DefaultService) GetUserByID(ctx context.Context, id uint64) (*domain.User, error) {
	user, err := s.repository.FindByID(ctx, id)
	if err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFound("User not found", err)
		}
		return nil, err
	}
	return user, nil
}

func (s *DefaultService) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, err := s.repository.FindByEmail(ctx, email)
	if err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFound("User not found", err)
		}
		return nil, err
	}
	return user, nil
}

func (s *DefaultService) IncreaseTokenVersion(ctx context.Context, id uint64) error {
	return s.repository.IncrementTokenVersion(ctx, id)
}

func (s *DefaultService) DeactivateUser(ctx context.Context, id uint64) error {
	return s.repository.Deactivate(ctx, id)
}
