package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/shieldops/backend/internal/models"
	"github.com/shieldops/backend/internal/storage"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailExists        = errors.New("email already registered")
)

// PasswordHasher abstracts credential hashing so the auth flow does not
// depend on a particular algorithm.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

type bcryptHasher struct{}

func NewBcryptHasher() PasswordHasher { return bcryptHasher{} }

func (bcryptHasher) Hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

func (bcryptHasher) Compare(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

type AuthService struct {
	users  storage.UserRepository
	tokens *TokenService
	hasher PasswordHasher
	log    *zap.SugaredLogger
}

func NewAuthService(users storage.UserRepository, tokens *TokenService, hasher PasswordHasher, log *zap.SugaredLogger) *AuthService {
	return &AuthService{
		users:  users,
		tokens: tokens,
		hasher: hasher,
		log:    log,
	}
}

func (s *AuthService) Signup(ctx context.Context, req models.SignupRequest) (*models.User, error) {
	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	user, err := s.users.CreateUser(ctx, req.Email, hash, req.FullName)
	if err != nil {
		if errors.Is(err, storage.ErrEmailTaken) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.log.Infow("user registered", "userID", user.ID)
	return user, nil
}

// Login verifies the password and issues a fresh token pair. Issuing the
// pair supersedes any session the user held before, so a second login kills
// the first client's credentials on its next refresh.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest, meta models.UserMetadata) (*models.LoginResponse, error) {
	user, err := s.users.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	if !user.IsActive {
		return nil, ErrInvalidCredentials
	}

	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		return nil, ErrInvalidCredentials
	}

	pair, err := s.tokens.IssueTokenPair(ctx, user.ID, meta)
	if err != nil {
		return nil, fmt.Errorf("issue token pair: %w", err)
	}

	s.log.Infow("user logged in", "userID", user.ID, "sessionID", pair.SessionID)
	return &models.LoginResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		SessionID:    pair.SessionID,
		ExpiresIn:    pair.ExpiresIn,
		User:         user,
	}, nil
}

func (s *AuthService) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	return s.users.GetUserByID(ctx, userID)
}
