package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/adnan4498/infinitum-crm-server/internal/application/port"
	"github.com/adnan4498/infinitum-crm-server/internal/domain/entity"
)

var (
	// ErrInvalidCredentials is returned when email or password do not match
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidToken is returned when a bearer token fails validation
	ErrInvalidToken = errors.New("invalid token")
)

// AuthConfig holds token signing configuration.
type AuthConfig struct {
	SecretKey string
	TokenTTL  time.Duration
	Issuer    string
}

// Claims are the JWT claims carried by access tokens. The principal's role
// and designation travel in the token; activity is re-checked against the
// user directory on every request.
type Claims struct {
	Role          entity.Role `json:"role"`
	PMDesignation bool        `json:"pm_designation"`
	jwt.RegisteredClaims
}

// AuthService authenticates users and resolves bearer tokens to principals.
type AuthService interface {
	Login(ctx context.Context, email, password string) (string, *entity.User, error)
	ResolvePrincipal(ctx context.Context, token string) (entity.Principal, error)
}

type authServiceImpl struct {
	userRepo port.UserRepository
	config   AuthConfig
	logger   Logger
}

// NewAuthService creates a new AuthService
func NewAuthService(userRepo port.UserRepository, config AuthConfig, logger Logger) AuthService {
	return &authServiceImpl{
		userRepo: userRepo,
		config:   config,
		logger:   logger,
	}
}

// Login verifies the password and issues a signed access token.
func (s *authServiceImpl) Login(ctx context.Context, email, password string) (string, *entity.User, error) {
	if email == "" || password == "" {
		return "", nil, entity.NewValidationError("credentials", "email and password are required")
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		s.logger.Error("Failed to look up user", "error", err, "email", email)
		return "", nil, fmt.Errorf("look up user: %w", err)
	}
	if user == nil || !user.IsActive {
		return "", nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	now := time.Now()
	claims := Claims{
		Role:          user.Role,
		PMDesignation: user.PMDesignation,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.TokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.SecretKey))
	if err != nil {
		s.logger.Error("Failed to sign token", "error", err, "user_id", user.ID)
		return "", nil, fmt.Errorf("sign token: %w", err)
	}

	s.logger.Info("User logged in", "user_id", user.ID)
	return token, user, nil
}

// ResolvePrincipal validates a token and confirms the user is still active.
func (s *authServiceImpl) ResolvePrincipal(ctx context.Context, tokenString string) (entity.Principal, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(s.config.SecretKey), nil
	})
	if err != nil {
		return entity.Principal{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return entity.Principal{}, ErrInvalidToken
	}

	user, err := s.userRepo.GetByID(ctx, claims.Subject)
	if err != nil {
		s.logger.Error("Failed to look up token subject", "error", err, "user_id", claims.Subject)
		return entity.Principal{}, fmt.Errorf("look up user: %w", err)
	}
	if user == nil || !user.IsActive {
		return entity.Principal{}, ErrInvalidToken
	}

	return entity.Principal{
		ID:            user.ID,
		Role:          user.Role,
		PMDesignation: user.PMDesignation,
	}, nil
}
