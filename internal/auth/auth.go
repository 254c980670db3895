package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/ukydev/fleet-maintenance/internal/models"
	apperrors "github.com/ukydev/fleet-maintenance/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidToken       = apperrors.NewAppError(apperrors.CodeUnauthorized, "invalid token", apperrors.ErrUnauthorized)
	ErrExpiredToken       = apperrors.NewAppError(apperrors.CodeUnauthorized, "token expired", apperrors.ErrUnauthorized)
	ErrInvalidCredentials = apperrors.NewAppError(apperrors.CodeUnauthorized, "invalid credentials", apperrors.ErrUnauthorized)
	ErrUserInactive       = apperrors.NewAppError(apperrors.CodeUnauthorized, "user is inactive", apperrors.ErrUnauthorized)
)

var validate = validator.New()

// tokenClaims is the JWT payload.
type tokenClaims struct {
	UserID   string      `json:"user_id"`
	Username string      `json:"username"`
	Role     models.Role `json:"role"`
	jwt.RegisteredClaims
}

// Service handles authentication operations
type Service struct {
	jwtSecret []byte
	tokenExp  time.Duration
}

// NewService creates an authentication service signing HS256 tokens with secret.
func NewService(secret string, expiry time.Duration) *Service {
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	return &Service{
		jwtSecret: []byte(secret),
		tokenExp:  expiry,
	}
}

// HashPassword hashes a password using bcrypt
func (s *Service) HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(bytes), nil
}

// CheckPassword checks if a password matches a hash
func (s *Service) CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// GenerateToken issues a signed access token for user.
func (s *Service) GenerateToken(user *models.User) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		UserID:   user.ID.Hex(),
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.Hex(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenExp)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
}

// GenerateRefreshToken generates an opaque refresh token
func (s *Service) GenerateRefreshToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate refresh token: %w", err)
	}
	return base64.URLEncoding.EncodeToString(bytes), nil
}

// ValidateToken validates a JWT token and returns the claims
func (s *Service) ValidateToken(tokenString string) (*models.Claims, error) {
	tokenString = strings.TrimPrefix(tokenString, "Bearer ")

	var claims tokenClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid || claims.UserID == "" || claims.ExpiresAt == nil {
		return nil, ErrInvalidToken
	}

	return &models.Claims{
		UserID:   claims.UserID,
		Username: claims.Username,
		Role:     claims.Role,
		Exp:      claims.ExpiresAt.Unix(),
	}, nil
}

// ExtractTokenFromHeader extracts token from Authorization header
func (s *Service) ExtractTokenFromHeader(authHeader string) (string, error) {
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", ErrInvalidToken
	}
	return parts[1], nil
}

// ValidateRegistration checks a registration request's fields.
func (s *Service) ValidateRegistration(req models.RegisterRequest) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperrors.Validation("invalid registration: %v", err)
	}

	fe := fieldErrs[0]
	switch fe.Field() {
	case "Username":
		return apperrors.Validation("username must be between 3 and 50 characters")
	case "Email":
		return apperrors.Validation("invalid email format")
	case "Password":
		return apperrors.Validation("password must be at least 8 characters long")
	case "Role":
		return apperrors.Validation("invalid role")
	default:
		return apperrors.Validation("%s is invalid", strings.ToLower(fe.Field()))
	}
}
