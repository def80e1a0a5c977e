package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"zeus-insurance/internal/model"
	"zeus-insurance/internal/pkg/jwtutil"
	"zeus-insurance/internal/repository"
)

// AuthService authenticates back-office operators, the only callers allowed
// to record payments outside the chat.
type AuthService struct {
	operatorRepo  *repository.OperatorRepository
	jwtSecret     string
	jwtExpiration time.Duration
}

type LoginInput struct {
	Username string
	Password string
}

type AuthResult struct {
	Token    string
	Operator *model.Operator
}

func NewAuthService(operatorRepo *repository.OperatorRepository, jwtSecret string, jwtExpiration time.Duration) *AuthService {
	return &AuthService{
		operatorRepo:  operatorRepo,
		jwtSecret:     jwtSecret,
		jwtExpiration: jwtExpiration,
	}
}

// EnsureOperator creates the configured operator, or refreshes its password
// hash when it changed. passwordHash must already be a bcrypt hash.
func (s *AuthService) EnsureOperator(ctx context.Context, username, passwordHash string) error {
	username = strings.TrimSpace(username)
	if username == "" || passwordHash == "" {
		return nil
	}
	if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
		return fmt.Errorf("%w: operator password hash is not bcrypt", ErrInvalidInput)
	}

	existing, err := s.operatorRepo.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	if existing == nil {
		return s.operatorRepo.Create(ctx, &model.Operator{Username: username, PasswordHash: passwordHash})
	}
	if existing.PasswordHash != passwordHash {
		return s.operatorRepo.UpdatePasswordHash(ctx, existing.ID, passwordHash)
	}
	return nil
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	username := strings.TrimSpace(input.Username)
	password := strings.TrimSpace(input.Password)
	if username == "" || password == "" {
		return nil, ErrInvalidInput
	}

	operator, err := s.operatorRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if operator == nil {
		return nil, ErrInvalidCredential
	}

	if err := bcrypt.CompareHashAndPassword([]byte(operator.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredential
	}

	token, err := jwtutil.GenerateToken(s.jwtSecret, s.jwtExpiration, operator.ID, operator.Username)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, Operator: operator}, nil
}

func (s *AuthService) GetOperatorByID(ctx context.Context, id uint) (*model.Operator, error) {
	if id == 0 {
		return nil, ErrInvalidInput
	}
	return s.operatorRepo.GetByID(ctx, id)
}
