package storage

import (
	"context"
	"time"

	"github.com/iudanet/warehouse/internal/models"
)

// UserStorage defines interface for user records and their login state.
// Every method is a single-row operation; plain setters are last-write-wins.
type UserStorage interface {
	// CreateUser creates a new user in the storage
	// Returns ErrUserAlreadyExists if email is taken
	CreateUser(ctx context.Context, user *models.User) error

	// GetUserByEmail retrieves user by email
	// Returns ErrUserNotFound if user doesn't exist
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// GetUserByRefreshToken retrieves user holding the given refresh token hash
	// Returns ErrUserNotFound if nobody holds it
	GetUserByRefreshToken(ctx context.Context, tokenHash string) (*models.User, error)

	// DeleteUser deletes user by email, which also revokes its session
	// Returns ErrUserNotFound if user doesn't exist
	DeleteUser(ctx context.Context, email string) error

	// SetVerificationCode stores a new code, sets code_created_at and last_code_request_at to now
	// Returns ErrUserNotFound if user doesn't exist
	SetVerificationCode(ctx context.Context, email, code string, now time.Time) error

	// ClearVerificationCode removes the outstanding code
	ClearVerificationCode(ctx context.Context, email string) error

	// ConsumeVerificationCode clears the code only if it still equals code
	// Returns ErrCodeNotFound if nothing was cleared
	ConsumeVerificationCode(ctx context.Context, email, code string) error

	// RollbackVerificationCode undoes SetVerificationCode after a failed delivery:
	// clears code if it still equals code and restores last_code_request_at
	RollbackVerificationCode(ctx context.Context, email, code string, prevRequestAt *time.Time) error

	// SetRefreshToken replaces the stored refresh token hash
	// Returns ErrUserNotFound if user doesn't exist
	SetRefreshToken(ctx context.Context, email, tokenHash string, expiresAt time.Time) error

	// ClearRefreshToken removes the stored refresh token
	ClearRefreshToken(ctx context.Context, email string) error

	// RotateRefreshToken replaces oldHash with newHash atomically
	// Returns ErrTokenNotFound if the stored hash is no longer oldHash
	RotateRefreshToken(ctx context.Context, email, oldHash, newHash string, expiresAt time.Time) error

	// Ping checks storage availability
	Ping(ctx context.Context) error
}
