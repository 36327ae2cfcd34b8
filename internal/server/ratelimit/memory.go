package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore хранит счетчики в памяти процесса.
// Подходит для одного экземпляра сервера и для тестов.
type MemoryStore struct {
	buckets  map[string]*bucket
	now      func() time.Time
	cleanupC chan struct{}
	stopOnce sync.Once
	mu       sync.Mutex
}

// bucket счетчик для конкретного ключа
type bucket struct {
	expiresAt time.Time
	count     int64
}

// NewMemoryStore создает хранилище и запускает периодическую очистку
// истекших окон с интервалом cleanupInterval
func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	return newMemoryStore(cleanupInterval, time.Now)
}

func newMemoryStore(cleanupInterval time.Duration, now func() time.Time) *MemoryStore {
	s := &MemoryStore{
		buckets:  make(map[string]*bucket),
		now:      now,
		cleanupC: make(chan struct{}),
	}

	if cleanupInterval > 0 {
		go s.cleanup(cleanupInterval)
	}

	return s
}

// cleanup периодически удаляет истекшие buckets для экономии памяти
func (s *MemoryStore) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.deleteExpired()
		case <-s.cleanupC:
			return
		}
	}
}

func (s *MemoryStore) deleteExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, b := range s.buckets {
		if !now.Before(b.expiresAt) {
			delete(s.buckets, key)
		}
	}
}

// Stop останавливает cleanup goroutine
func (s *MemoryStore) Stop() {
	s.stopOnce.Do(func() {
		close(s.cleanupC)
	})
}

// Increment увеличивает счетчик под одной блокировкой (check-and-increment атомарен)
func (s *MemoryStore) Increment(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	b, exists := s.buckets[key]
	if !exists || !now.Before(b.expiresAt) {
		// Окно истекло целиком: начинаем новое
		b = &bucket{expiresAt: now.Add(window)}
		s.buckets[key] = b
	}

	b.count++

	return b.count, b.expiresAt.Sub(now), nil
}

// Len возвращает количество активных buckets
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}
