package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrInvalidClaims    = errors.New("invalid token claims")
	ErrInsufficientRole = errors.New("insufficient permissions")
)

// Role represents a caller's access level
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleViewer Role = "viewer"
)

var roleLevels = map[Role]int{
	RoleAdmin:  100,
	RoleViewer: 10,
}

// HasPermission checks if role has at least the required permission level
func (r Role) HasPermission(required Role) bool {
	level, ok := roleLevels[r]
	return ok && level >= roleLevels[required]
}

// ParseRole returns the role named s, or ErrInvalidClaims.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if _, ok := roleLevels[r]; !ok {
		return "", ErrInvalidClaims
	}
	return r, nil
}

// Claims represents JWT token claims
type Claims struct {
	jwt.RegisteredClaims
	Role Role `json:"role"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	SecretKey   string
	Issuer      string
	TokenExpiry time.Duration
}

// DefaultJWTConfig returns sensible defaults
func DefaultJWTConfig() JWTConfig {
	return JWTConfig{
		SecretKey:   "", // Must be set from environment
		Issuer:      "harvester",
		TokenExpiry: 24 * time.Hour,
	}
}

// JWTService handles JWT operations
type JWTService struct {
	config JWTConfig
	now    func() time.Time
}

// NewJWTService creates a new JWT service
func NewJWTService(config JWTConfig) (*JWTService, error) {
	if config.SecretKey == "" {
		return nil, errors.New("JWT secret key is required")
	}
	if config.TokenExpiry <= 0 {
		config.TokenExpiry = DefaultJWTConfig().TokenExpiry
	}
	return &JWTService{config: config, now: time.Now}, nil
}

// GenerateToken signs an HS256 token for subject with the given role.
func (s *JWTService) GenerateToken(subject string, role Role) (string, error) {
	if _, err := ParseRole(string(role)); err != nil {
		return "", err
	}
	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.TokenExpiry)),
			NotBefore: jwt.NewNumericDate(now),
		},
		Role: role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.SecretKey))
}

// ValidateToken validates a JWT token and returns the claims
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(s.config.SecretKey), nil
	}, jwt.WithIssuer(s.config.Issuer), jwt.WithTimeFunc(s.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}
	if _, err := ParseRole(string(claims.Role)); err != nil {
		return nil, err
	}

	return claims, nil
}
