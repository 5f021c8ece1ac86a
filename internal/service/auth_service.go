package service

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/DiegoCE21/ApprovalFlow-sub000/internal/models"
	appErrors "github.com/DiegoCE21/ApprovalFlow-sub000/pkg/errors"
)

// AuthConfig defines how caller tokens are verified.
type AuthConfig struct {
	Secret      string
	Issuer      string
	AdminEmails []string
}

// AuthService verifies tokens issued by the identity provider.
type AuthService struct {
	logger *zap.Logger
	config AuthConfig
	admins map[string]struct{}
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	admins := make(map[string]struct{}, len(config.AdminEmails))
	for _, email := range config.AdminEmails {
		if normalized := models.NormalizeEmail(email); normalized != "" {
			admins[normalized] = struct{}{}
		}
	}
	return &AuthService{logger: logger, config: config, admins: admins}
}

// ValidateToken parses and validates an access token returning the claims.
// Callers listed in the admin allowlist are granted the admin capability.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if s.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.config.Issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	}, opts...)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	if claims.UserID <= 0 || strings.TrimSpace(claims.Email) == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token lacks user identity")
	}
	if _, ok := s.admins[models.NormalizeEmail(claims.Email)]; ok {
		claims.IsAdmin = true
	}
	return claims, nil
}
