package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix = "session:"
	sessionTTL       = 24 * time.Hour
	sweepInterval    = time.Minute
)

// Sessions issues and resolves opaque bearer tokens.
type Sessions interface {
	Create(ctx context.Context, userID int64) (string, error)
	GetUserID(ctx context.Context, id string) (int64, bool)
	Delete(ctx context.Context, id string) error
}

// Store manages sessions in Redis.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewStore returns a new session store.
func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = sessionTTL
	}
	return &Store{rdb: rdb, ttl: ttl}
}

// Create stores a new session for userID and returns its ID.
func (s *Store) Create(ctx context.Context, userID int64) (string, error) {
	id, err := newSessionID()
	if err != nil {
		return "", err
	}
	key := sessionKeyPrefix + id
	if err := s.rdb.Set(ctx, key, strconv.FormatInt(userID, 10), s.ttl).Err(); err != nil {
		return "", err
	}
	return id, nil
}

// GetUserID resolves a session to its user. Unknown or expired sessions and
// Redis failures all report false.
func (s *Store) GetUserID(ctx context.Context, id string) (int64, bool) {
	v, err := s.rdb.Get(ctx, sessionKeyPrefix+id).Result()
	if err != nil {
		return 0, false
	}
	userID, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return userID, true
}

// Delete removes a session by ID.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.rdb.Del(ctx, sessionKeyPrefix+id).Err()
}

// MemoryStore keeps sessions in process. Used when Redis is not configured.
// Expired sessions are dropped when read, and swept on Create at most once
// per sweepInterval.
type MemoryStore struct {
	mu        sync.Mutex
	ttl       time.Duration
	sessions  map[string]memorySession
	now       func() time.Time
	lastSweep time.Time
}

type memorySession struct {
	userID  int64
	expires time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = sessionTTL
	}
	return &MemoryStore{ttl: ttl, sessions: make(map[string]memorySession), now: time.Now}
}

func (s *MemoryStore) Create(_ context.Context, userID int64) (string, error) {
	id, err := newSessionID()
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if now.Sub(s.lastSweep) >= sweepInterval {
		s.sweep(now)
	}
	s.sessions[id] = memorySession{userID: userID, expires: now.Add(s.ttl)}
	return id, nil
}

// sweep drops expired sessions. Callers hold mu.
func (s *MemoryStore) sweep(now time.Time) {
	for id, sess := range s.sessions {
		if now.After(sess.expires) {
			delete(s.sessions, id)
		}
	}
	s.lastSweep = now
}

func (s *MemoryStore) GetUserID(_ context.Context, id string) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return 0, false
	}
	if s.now().After(sess.expires) {
		delete(s.sessions, id)
		return 0, false
	}
	return sess.userID, true
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

func newSessionID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("rand: %w", err)
	}
	return hex.EncodeToString(b), nil
}
