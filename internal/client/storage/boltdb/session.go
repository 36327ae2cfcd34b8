package boltdb

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/warehouse/internal/client/storage"
)

// SaveSession creates or replaces the session for session.Email
func (s *Storage) SaveSession(_ context.Context, session *storage.Session) error {
	if session.Email == "" {
		return fmt.Errorf("session email cannot be empty")
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketSessions).Put([]byte(session.Email), data); err != nil {
			return fmt.Errorf("failed to save session: %w", err)
		}
		return nil
	})
}

// GetSession retrieves the session saved for email
func (s *Storage) GetSession(_ context.Context, email string) (*storage.Session, error) {
	var session *storage.Session

	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketSessions).Get([]byte(email))
		if data == nil {
			return storage.ErrSessionNotFound
		}

		var err error
		session, err = decodeSession(email, data)
		return err
	})
	if err != nil {
		return nil, err
	}

	return session, nil
}

// DeleteSession removes the session saved for email
func (s *Storage) DeleteSession(_ context.Context, email string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketSessions)
		if bucket.Get([]byte(email)) == nil {
			return storage.ErrSessionNotFound
		}

		if err := bucket.Delete([]byte(email)); err != nil {
			return fmt.Errorf("failed to delete session: %w", err)
		}
		return nil
	})
}

// ListSessions returns all saved sessions ordered by email
// (bbolt keeps keys sorted bytewise)
func (s *Storage) ListSessions(_ context.Context) ([]*storage.Session, error) {
	var sessions []*storage.Session

	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSessions).ForEach(func(k, v []byte) error {
			session, err := decodeSession(string(k), v)
			if err != nil {
				return err
			}
			sessions = append(sessions, session)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return sessions, nil
}

func decodeSession(email string, data []byte) (*storage.Session, error) {
	var session storage.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session %s: %w", email, err)
	}
	session.Email = email
	return &session, nil
}
