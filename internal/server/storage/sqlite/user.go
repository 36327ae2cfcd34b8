package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iudanet/warehouse/internal/models"
	"github.com/iudanet/warehouse/internal/server/storage"
)

const userColumns = `id, email, password_hash, verification_code, code_created_at,
	last_code_request_at, refresh_token_hash, refresh_token_expires_at, created_at`

// rowScanner общий интерфейс для *sql.Row и *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

// CreateUser creates a new user in the storage
func (s *Storage) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, email, password_hash, created_at)
		VALUES (?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		toMillis(user.CreatedAt),
	)

	if err != nil {
		// Проверяем на duplicate email
		if strings.Contains(err.Error(), "UNIQUE constraint failed: users.email") {
			return storage.ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}

	return nil
}

// GetUserByEmail retrieves user by email
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = ?`

	user, err := scanUser(s.db.QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// GetUserByRefreshToken retrieves user holding the refresh token hash
func (s *Storage) GetUserByRefreshToken(ctx context.Context, tokenHash string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE refresh_token_hash = ?`

	user, err := scanUser(s.db.QueryRowContext(ctx, query, tokenHash))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by refresh token: %w", err)
	}

	return user, nil
}

// DeleteUser deletes user by email
func (s *Storage) DeleteUser(ctx context.Context, email string) error {
	return s.execAffectingUser(ctx, "delete user", `DELETE FROM users WHERE email = ?`, email)
}

// SetVerificationCode stores a fresh code for the user
func (s *Storage) SetVerificationCode(ctx context.Context, email, code string, now time.Time) error {
	query := `
		UPDATE users
		SET verification_code = ?, code_created_at = ?, last_code_request_at = ?
		WHERE email = ?
	`
	return s.execAffectingUser(ctx, "set verification code", query, code, toMillis(now), toMillis(now), email)
}

// ClearVerificationCode removes the outstanding code
func (s *Storage) ClearVerificationCode(ctx context.Context, email string) error {
	query := `UPDATE users SET verification_code = NULL, code_created_at = NULL WHERE email = ?`
	return s.execAffectingUser(ctx, "clear verification code", query, email)
}

// ConsumeVerificationCode clears the code only if it still matches
func (s *Storage) ConsumeVerificationCode(ctx context.Context, email, code string) error {
	query := `
		UPDATE users
		SET verification_code = NULL, code_created_at = NULL
		WHERE email = ? AND verification_code = ?
	`

	rows, err := s.exec(ctx, query, email, code)
	if err != nil {
		return fmt.Errorf("failed to consume verification code: %w", err)
	}
	if rows == 0 {
		return storage.ErrCodeNotFound
	}

	return nil
}

// RollbackVerificationCode removes a just-issued code and restores the cooldown timestamp
func (s *Storage) RollbackVerificationCode(ctx context.Context, email, code string, prevRequestAt *time.Time) error {
	query := `
		UPDATE users
		SET verification_code = NULL, code_created_at = NULL, last_code_request_at = ?
		WHERE email = ? AND verification_code = ?
	`

	if _, err := s.exec(ctx, query, nullMillis(prevRequestAt), email, code); err != nil {
		return fmt.Errorf("failed to rollback verification code: %w", err)
	}

	return nil
}

// SetRefreshToken replaces the stored refresh token hash
func (s *Storage) SetRefreshToken(ctx context.Context, email, tokenHash string, expiresAt time.Time) error {
	query := `
		UPDATE users
		SET refresh_token_hash = ?, refresh_token_expires_at = ?
		WHERE email = ?
	`
	return s.execAffectingUser(ctx, "set refresh token", query, tokenHash, toMillis(expiresAt), email)
}

// ClearRefreshToken removes the stored refresh token
func (s *Storage) ClearRefreshToken(ctx context.Context, email string) error {
	query := `UPDATE users SET refresh_token_hash = NULL, refresh_token_expires_at = NULL WHERE email = ?`
	return s.execAffectingUser(ctx, "clear refresh token", query, email)
}

// RotateRefreshToken swaps oldHash for newHash in a single statement
func (s *Storage) RotateRefreshToken(ctx context.Context, email, oldHash, newHash string, expiresAt time.Time) error {
	query := `
		UPDATE users
		SET refresh_token_hash = ?, refresh_token_expires_at = ?
		WHERE email = ? AND refresh_token_hash = ?
	`

	rows, err := s.exec(ctx, query, newHash, toMillis(expiresAt), email, oldHash)
	if err != nil {
		return fmt.Errorf("failed to rotate refresh token: %w", err)
	}
	if rows == 0 {
		return storage.ErrTokenNotFound
	}

	return nil
}

// exec выполняет запрос и возвращает количество измененных строк
func (s *Storage) exec(ctx context.Context, query string, args ...any) (int64, error) {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows, nil
}

// execAffectingUser выполняет запрос над одной строкой users, 0 строк означает ErrUserNotFound
func (s *Storage) execAffectingUser(ctx context.Context, op, query string, args ...any) error {
	rows, err := s.exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	if rows == 0 {
		return storage.ErrUserNotFound
	}
	return nil
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		user             models.User
		code             sql.NullString
		codeCreatedAt    sql.NullInt64
		lastRequestAt    sql.NullInt64
		refreshHash      sql.NullString
		refreshExpiresAt sql.NullInt64
		createdAt        int64
	)

	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&code,
		&codeCreatedAt,
		&lastRequestAt,
		&refreshHash,
		&refreshExpiresAt,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	user.VerificationCode = code.String
	user.CodeCreatedAt = fromNullMillis(codeCreatedAt)
	user.LastCodeRequestAt = fromNullMillis(lastRequestAt)
	user.RefreshTokenHash = refreshHash.String
	user.RefreshTokenExpiresAt = fromNullMillis(refreshExpiresAt)
	user.CreatedAt = time.UnixMilli(createdAt)

	return &user, nil
}
