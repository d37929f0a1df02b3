package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"etalase/internal/metrics"
	"etalase/internal/models"
	"etalase/internal/repositories"

	"github.com/dgrijalva/jwt-go"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// DefaultTokenTTL is how long an issued session token stays valid.
const DefaultTokenTTL = 24 * time.Hour

// Claims is the identity carried by a session token.
type Claims struct {
	AccountID uint   `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	jwt.StandardClaims
}

// Session is returned by a successful registration or login.
type Session struct {
	Token string      `json:"token"`
	User  AccountView `json:"user"`
}

// RegisterInput is the payload of a registration.
type RegisterInput struct {
	Username string `json:"username" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,max=255"`
	Password string `json:"password" validate:"required,max=72"`
}

// LoginInput is the payload of a login.
type LoginInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AuthService handles business logic for authentication and authorization.
type AuthService struct {
	userRepo  repositories.UserRepository
	jwtSecret []byte
	tokenTTL  time.Duration
	validate  *validator.Validate

	dummyOnce sync.Once
	dummyHash []byte
}

// NewAuthService creates a new AuthService. A non-positive tokenTTL falls
// back to DefaultTokenTTL.
func NewAuthService(userRepo repositories.UserRepository, jwtSecret string, tokenTTL time.Duration) *AuthService {
	if tokenTTL <= 0 {
		tokenTTL = DefaultTokenTTL
	}
	return &AuthService{
		userRepo:  userRepo,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
		validate:  newValidator(),
	}
}

// Register creates a new account with the default role and signs a session
// token for it.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*Session, error) {
	user, err := s.CreateAccount(ctx, input, models.DefaultRole)
	if err != nil {
		metrics.AuthEvents.WithLabelValues("register", "failure").Inc()
		return nil, err
	}
	metrics.AuthEvents.WithLabelValues("register", "success").Inc()
	return s.newSession(user)
}

// CreateAccount validates the input, hashes the password and stores the
// account with the given role.
func (s *AuthService) CreateAccount(ctx context.Context, input RegisterInput, role string) (*models.User, error) {
	input.Username = strings.TrimSpace(input.Username)
	input.Email = strings.TrimSpace(input.Email)
	if err := s.validate.Struct(input); err != nil {
		return nil, validationError(err)
	}
	if role == "" {
		role = models.DefaultRole
	}

	if err := s.ensureAvailable(ctx, input.Username, input.Email); err != nil {
		return nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, fmt.Errorf("%w: password is too long", ErrValidation)
		}
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username: input.Username,
		Email:    input.Email,
		Password: string(hashedPassword),
		Role:     role,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, fmt.Errorf("username or email %w", ErrConflict)
		}
		return nil, storeError(err)
	}
	slog.Info("account created", "user_id", user.ID, "username", user.Username, "role", user.Role)
	return user, nil
}

func (s *AuthService) ensureAvailable(ctx context.Context, username, email string) error {
	if _, err := s.userRepo.GetByUsername(ctx, username); err == nil {
		return fmt.Errorf("username '%s' %w", username, ErrConflict)
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return storeError(err)
	}
	if _, err := s.userRepo.GetByEmail(ctx, email); err == nil {
		return fmt.Errorf("email '%s' %w", email, ErrConflict)
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return storeError(err)
	}
	return nil
}

// Login checks the credentials and signs a fresh session token. An unknown
// email and a wrong password produce the same error.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*Session, error) {
	input.Email = strings.TrimSpace(input.Email)
	if err := s.validate.Struct(input); err != nil {
		return nil, validationError(err)
	}

	user, err := s.userRepo.GetByEmail(ctx, input.Email)
	if err != nil {
		if !errors.Is(err, repositories.ErrNotFound) {
			return nil, storeError(err)
		}
		// Spend the same bcrypt work as a real comparison.
		_ = bcrypt.CompareHashAndPassword(s.fallbackHash(), []byte(input.Password))
		metrics.AuthEvents.WithLabelValues("login", "failure").Inc()
		return nil, ErrUnauthorized
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(input.Password)); err != nil {
		metrics.AuthEvents.WithLabelValues("login", "failure").Inc()
		return nil, ErrUnauthorized
	}

	metrics.AuthEvents.WithLabelValues("login", "success").Inc()
	return s.newSession(user)
}

// VerifySession parses and validates a session token, returning the
// identity it carries.
func (s *AuthService) VerifySession(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("%w: token is empty", ErrInvalidToken)
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.AccountID == 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// IssueToken signs a session token for user.
func (s *AuthService) IssueToken(user *models.User) (string, error) {
	now := time.Now()
	claims := Claims{
		AccountID: user.ID,
		Username:  user.Username,
		Email:     user.Email,
		StandardClaims: jwt.StandardClaims{
			Id:        uuid.NewString(),
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(s.tokenTTL).Unix(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return tokenString, nil
}

func (s *AuthService) newSession(user *models.User) (*Session, error) {
	token, err := s.IssueToken(user)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, User: newAccountView(user)}, nil
}

func (s *AuthService) fallbackHash() []byte {
	s.dummyOnce.Do(func() {
		hash, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcrypt.DefaultCost)
		if err != nil {
			slog.Error("failed to prepare fallback hash", "error", err.Error())
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}
