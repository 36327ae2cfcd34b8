package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iudanet/warehouse/internal/crypto"
	"github.com/iudanet/warehouse/internal/server/storage"
	"github.com/iudanet/warehouse/pkg/api"
)

const (
	// Issuer значение iss в access token
	Issuer = "warehouse-auth"
	// DefaultAccessTokenTTL время жизни access token
	DefaultAccessTokenTTL = 30 * time.Minute
	// DefaultRefreshTokenTTL время жизни refresh token
	DefaultRefreshTokenTTL = 30 * 24 * time.Hour

	refreshTokenBytes = 32
)

// TokenConfig содержит конфигурацию токенов
type TokenConfig struct {
	Secret          []byte
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// TokenService выпускает и проверяет access token (JWT) и ротирует refresh token
type TokenService struct {
	users  storage.UserStorage
	logger *slog.Logger
	now    func() time.Time
	parser *jwt.Parser
	cfg    TokenConfig
}

// TokenOption настраивает TokenService
type TokenOption func(*TokenService)

// WithTokenClock подменяет часы (для тестов)
func WithTokenClock(now func() time.Time) TokenOption {
	return func(s *TokenService) { s.now = now }
}

// NewTokenService создает TokenService
func NewTokenService(cfg TokenConfig, users storage.UserStorage, logger *slog.Logger, opts ...TokenOption) (*TokenService, error) {
	if len(cfg.Secret) == 0 {
		return nil, fmt.Errorf("token secret cannot be empty")
	}
	if cfg.AccessTokenTTL <= 0 {
		cfg.AccessTokenTTL = DefaultAccessTokenTTL
	}
	if cfg.RefreshTokenTTL <= 0 {
		cfg.RefreshTokenTTL = DefaultRefreshTokenTTL
	}

	s := &TokenService{
		users:  users,
		logger: logger,
		now:    time.Now,
		cfg:    cfg,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)

	return s, nil
}

// IssueAccessToken создает JWT access token для email
func (s *TokenService) IssueAccessToken(email string) (string, int64, error) {
	now := s.now()

	claims := jwt.RegisteredClaims{
		Subject:   email,
		Issuer:    Issuer,
		ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.AccessTokenTTL)),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.cfg.Secret)
	if err != nil {
		return "", 0, fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, int64(s.cfg.AccessTokenTTL.Seconds()), nil
}

// VerifyAccessToken проверяет подпись и срок действия, возвращает email владельца
func (s *TokenService) VerifyAccessToken(tokenString string) (string, error) {
	var claims jwt.RegisteredClaims

	_, err := s.parser.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return s.cfg.Secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}

	return claims.Subject, nil
}

// IssueRefreshToken создает случайный refresh token
func (s *TokenService) IssueRefreshToken() (string, time.Time, error) {
	tokenBytes := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate random token: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(tokenBytes), s.now().Add(s.cfg.RefreshTokenTTL), nil
}

// IssuePair выпускает пару токенов и сохраняет refresh token, заменяя предыдущий
func (s *TokenService) IssuePair(ctx context.Context, email string) (*api.TokenResponse, error) {
	resp, refreshExpiresAt, err := s.mint(email)
	if err != nil {
		return nil, err
	}

	if err := s.users.SetRefreshToken(ctx, email, crypto.HashToken(resp.RefreshToken), refreshExpiresAt); err != nil {
		return nil, fmt.Errorf("failed to save refresh token: %w", err)
	}

	return resp, nil
}

// Rotate обменивает refresh token на новую пару. Предъявленный токен больше не принимается.
func (s *TokenService) Rotate(ctx context.Context, presented string) (*api.TokenResponse, error) {
	oldHash := crypto.HashToken(presented)

	user, err := s.users.GetUserByRefreshToken(ctx, oldHash)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, fmt.Errorf("failed to get refresh token owner: %w", err)
	}

	if user.RefreshTokenExpiresAt == nil || !s.now().Before(*user.RefreshTokenExpiresAt) {
		if err := s.users.ClearRefreshToken(ctx, user.Email); err != nil && !errors.Is(err, storage.ErrUserNotFound) {
			s.logger.ErrorContext(ctx, "failed to clear expired refresh token",
				slog.String("email", user.Email),
				slog.Any("error", err))
		}
		return nil, ErrTokenExpired
	}

	resp, refreshExpiresAt, err := s.mint(user.Email)
	if err != nil {
		return nil, err
	}

	err = s.users.RotateRefreshToken(ctx, user.Email, oldHash, crypto.HashToken(resp.RefreshToken), refreshExpiresAt)
	if err != nil {
		if errors.Is(err, storage.ErrTokenNotFound) {
			// Токен ротирован параллельным запросом
			return nil, ErrTokenInvalid
		}
		return nil, fmt.Errorf("failed to rotate refresh token: %w", err)
	}

	return resp, nil
}

// Revoke удаляет refresh token пользователя.
// Уже выданный access token продолжает действовать до exp.
func (s *TokenService) Revoke(ctx context.Context, email string) error {
	if err := s.users.ClearRefreshToken(ctx, email); err != nil && !errors.Is(err, storage.ErrUserNotFound) {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return nil
}

func (s *TokenService) mint(email string) (*api.TokenResponse, time.Time, error) {
	accessToken, expiresIn, err := s.IssueAccessToken(email)
	if err != nil {
		return nil, time.Time{}, err
	}

	refreshToken, refreshExpiresAt, err := s.IssueRefreshToken()
	if err != nil {
		return nil, time.Time{}, err
	}

	return &api.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    api.TokenTypeBearer,
		ExpiresIn:    expiresIn,
	}, refreshExpiresAt, nil
}
