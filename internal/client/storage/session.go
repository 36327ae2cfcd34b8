// Package storage defines the client-side persistence of login sessions.
package storage

import (
	"context"
	"time"
)

// SessionStorage хранит сессии клиента, по одной на email
type SessionStorage interface {
	// SaveSession создает или заменяет сессию для session.Email
	SaveSession(ctx context.Context, session *Session) error

	// GetSession возвращает сессию по email
	// Returns ErrSessionNotFound if nothing is saved
	GetSession(ctx context.Context, email string) (*Session, error)

	// DeleteSession удаляет сессию
	// Returns ErrSessionNotFound if nothing is saved
	DeleteSession(ctx context.Context, email string) error

	// ListSessions возвращает все сессии, отсортированные по email
	ListSessions(ctx context.Context) ([]*Session, error)
}

// Session пара токенов пользователя в локальном файле
type Session struct {
	ExpiresAt    time.Time `json:"expires_at"` // когда истекает access token
	UpdatedAt    time.Time `json:"updated_at"` // последнее сохранение (вход или refresh)
	Email        string    `json:"-"`          // ключ в хранилище
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
}

// AccessExpired сообщает, что access token уже истек к моменту now
func (s *Session) AccessExpired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}
