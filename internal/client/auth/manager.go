package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/iudanet/warehouse/internal/client/api"
	"github.com/iudanet/warehouse/internal/client/storage"
	"github.com/iudanet/warehouse/internal/validation"
)

var (
	// ErrReloginRequired сессия отклонена сервером и удалена, нужен новый вход
	ErrReloginRequired = errors.New("session expired, please log in again")
	// ErrNoSession нет ни одной действующей сохраненной сессии
	ErrNoSession = errors.New("no saved session")
)

// Call защищенный запрос к серверу с текущим access token
type Call func(ctx context.Context, accessToken string) error

// Manager выполняет защищенные запросы от имени сохраненной сессии
// При 401 один раз обновляет токены и повторяет запрос
type Manager struct {
	apiClient APIClient
	store     storage.SessionStorage
	logger    *slog.Logger
	now       func() time.Time
	refreshes singleflight.Group
}

// NewManager создает менеджер сессий
func NewManager(apiClient APIClient, store storage.SessionStorage, logger *slog.Logger, opts ...Option) *Manager {
	o := buildOptions(opts)
	return &Manager{
		apiClient: apiClient,
		store:     store,
		logger:    logger,
		now:       o.now,
	}
}

// Do выполняет call с access token сессии email
// На api.ErrUnauthorized токены обновляются и call повторяется ровно один раз
func (m *Manager) Do(ctx context.Context, email string, call Call) error {
	email = validation.NormalizeEmail(email)

	sess, err := m.store.GetSession(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return fmt.Errorf("%w: %w", ErrNoSession, err)
		}
		return fmt.Errorf("failed to load session: %w", err)
	}

	err = call(ctx, sess.AccessToken)
	if !errors.Is(err, api.ErrUnauthorized) {
		return err
	}

	m.logger.DebugContext(ctx, "access token rejected, refreshing", slog.String("email", email))

	fresh, err := m.refresh(ctx, email, sess.RefreshToken)
	if err != nil {
		return err
	}

	return call(ctx, fresh.AccessToken)
}

// refresh обменивает presented на новую пару и сохраняет ее
// Параллельные обновления одной сессии объединяются в один запрос
func (m *Manager) refresh(ctx context.Context, email, presented string) (*storage.Session, error) {
	v, err, shared := m.refreshes.Do(email, func() (any, error) {
		// Сессию мог уже обновить другой вызов, тогда старый токен отозван
		current, err := m.store.GetSession(ctx, email)
		switch {
		case errors.Is(err, storage.ErrSessionNotFound):
			return nil, fmt.Errorf("%w: %w", ErrReloginRequired, err)
		case err != nil:
			return nil, fmt.Errorf("failed to load session: %w", err)
		case current.RefreshToken != presented:
			return current, nil
		}

		resp, err := m.apiClient.Refresh(ctx, presented)
		if err != nil {
			if errors.Is(err, api.ErrUnauthorized) {
				m.dropSession(ctx, email)
				return nil, fmt.Errorf("%w: %w", ErrReloginRequired, err)
			}
			return nil, fmt.Errorf("token refresh failed: %w", err)
		}

		sess := newSession(email, resp, m.now())
		if err := m.store.SaveSession(ctx, sess); err != nil {
			return nil, fmt.Errorf("failed to save session: %w", err)
		}

		m.logger.DebugContext(ctx, "session refreshed", slog.String("email", email))
		return sess, nil
	})
	if err != nil {
		return nil, err
	}

	if shared {
		m.logger.DebugContext(ctx, "joined in-flight refresh", slog.String("email", email))
	}

	return v.(*storage.Session), nil
}

// Refresh принудительно обновляет токены сессии
func (m *Manager) Refresh(ctx context.Context, email string) (*storage.Session, error) {
	email = validation.NormalizeEmail(email)

	sess, err := m.store.GetSession(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrNoSession, err)
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	return m.refresh(ctx, email, sess.RefreshToken)
}

// WhoAmI возвращает email владельца access token по данным сервера
func (m *Manager) WhoAmI(ctx context.Context, email string) (string, error) {
	var user string
	err := m.Do(ctx, email, func(ctx context.Context, accessToken string) error {
		resp, err := m.apiClient.TestAuth(ctx, accessToken)
		if err != nil {
			return err
		}
		user = resp.User
		return nil
	})
	if err != nil {
		return "", err
	}
	return user, nil
}

// Resume находит первую сохраненную сессию, которую принимает сервер
// Сессии, отклоненные сервером, удаляются. При сетевых ошибках сессия остается
func (m *Manager) Resume(ctx context.Context) (*storage.Session, error) {
	sessions, err := m.store.ListSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	var transient []error
	for _, sess := range sessions {
		_, err := m.WhoAmI(ctx, sess.Email)
		switch {
		case err == nil:
			current, err := m.store.GetSession(ctx, sess.Email)
			if err != nil {
				return nil, fmt.Errorf("failed to load session: %w", err)
			}
			return current, nil
		case errors.Is(err, ErrReloginRequired):
			m.logger.InfoContext(ctx, "saved session rejected", slog.String("email", sess.Email))
		case errors.Is(err, api.ErrUnauthorized):
			// Токен отклонен даже после обновления
			m.dropSession(ctx, sess.Email)
		case ctx.Err() != nil:
			return nil, ctx.Err()
		default:
			m.logger.WarnContext(ctx, "failed to check saved session",
				slog.String("email", sess.Email),
				slog.Any("error", err))
			transient = append(transient, err)
		}
	}

	if len(transient) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrNoSession, errors.Join(transient...))
	}
	return nil, ErrNoSession
}

// Logout отзывает токены на сервере (best effort) и всегда удаляет локальную сессию
func (m *Manager) Logout(ctx context.Context, email string) error {
	email = validation.NormalizeEmail(email)

	err := m.Do(ctx, email, func(ctx context.Context, accessToken string) error {
		return m.apiClient.Logout(ctx, accessToken)
	})
	switch {
	case errors.Is(err, ErrNoSession):
		return err
	case err != nil && !errors.Is(err, ErrReloginRequired):
		m.logger.WarnContext(ctx, "failed to logout on server", slog.Any("error", err))
	}

	if err := m.store.DeleteSession(ctx, email); err != nil && !errors.Is(err, storage.ErrSessionNotFound) {
		return fmt.Errorf("failed to delete local session: %w", err)
	}

	return nil
}

// Sessions возвращает сохраненные сессии
func (m *Manager) Sessions(ctx context.Context) ([]*storage.Session, error) {
	return m.store.ListSessions(ctx)
}

func (m *Manager) dropSession(ctx context.Context, email string) {
	if err := m.store.DeleteSession(ctx, email); err != nil && !errors.Is(err, storage.ErrSessionNotFound) {
		m.logger.WarnContext(ctx, "failed to delete session", slog.String("email", email), slog.Any("error", err))
	}
}
