package service

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/taobei/auth/internal/config"
	"github.com/taobei/auth/internal/models"
)

type TokenService struct {
	secretKey []byte
	expiry    time.Duration
	issuer    string
	logger    *logrus.Logger
	now       func() time.Time
}

func NewTokenService(cfg *config.JWTConfig, logger *logrus.Logger) (*TokenService, error) {
	secretKey := []byte(cfg.SecretKey)
	if len(secretKey) < 32 {
		return nil, fmt.Errorf("secret key must be at least 32 bytes")
	}
	if cfg.Expiry <= 0 {
		return nil, fmt.Errorf("token expiry must be positive")
	}

	return &TokenService{
		secretKey: secretKey,
		expiry:    cfg.Expiry,
		issuer:    cfg.Issuer,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// SessionClaims identify the authenticated user.
type SessionClaims struct {
	UserID      int64  `json:"userId"`
	PhoneNumber string `json:"phoneNumber"`
	jwt.RegisteredClaims
}

// Issue signs a session token for user and returns it with its expiry.
func (s *TokenService) Issue(user *models.User) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.expiry)

	claims := &SessionClaims{
		UserID:      user.ID,
		PhoneNumber: user.PhoneNumber,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.New().String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secretKey)
	if err != nil {
		s.logger.WithError(err).Error("Failed to sign session token")
		return "", time.Time{}, fmt.Errorf("failed to sign session token: %w", err)
	}

	return signed, expiresAt, nil
}

// Verify checks the signature, signing method and expiry of tokenString.
func (s *TokenService) Verify(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secretKey, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	return claims, nil
}
