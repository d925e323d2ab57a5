package chat

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zhouzirui/realty-assistant/backend/internal/model/chat"
)

// StoreConfig bounds how much conversation state the store keeps.
type StoreConfig struct {
	// MaxTurns caps each session; the oldest turns are dropped beyond it. Zero disables the cap.
	MaxTurns int
	// TTL evicts sessions idle for longer than this on CleanupExpired. Zero disables expiry.
	TTL time.Duration
}

// Stats summarises the store contents.
type Stats struct {
	Sessions int `json:"sessions"`
	Turns    int `json:"turns"`
}

type session struct {
	mu           sync.Mutex
	turns        []chat.Turn
	createdAt    time.Time
	lastActivity time.Time
	closed       bool
}

// Store keeps per-session turn histories in memory.
//
// The session map is guarded by one RWMutex and every session carries its own
// mutex, so writers to one session never block another. Locks are always taken
// map first, session second.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*session
	cfg      StoreConfig
	now      func() time.Time
}

// NewStore bootstraps an empty store.
func NewStore(cfg StoreConfig) *Store {
	if cfg.MaxTurns < 0 {
		cfg.MaxTurns = 0
	}
	if cfg.TTL < 0 {
		cfg.TTL = 0
	}
	return &Store{
		sessions: make(map[string]*session),
		cfg:      cfg,
		now:      time.Now,
	}
}

// GetOrCreate resolves a session, minting an identifier when sessionID is empty.
// Unknown identifiers are initialised with an empty history rather than rejected.
func (s *Store) GetOrCreate(sessionID string) (string, bool) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	s.mu.RLock()
	_, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if ok {
		return sessionID, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; ok {
		return sessionID, false
	}

	now := s.now()
	s.sessions[sessionID] = &session{
		turns:        make([]chat.Turn, 0, 16),
		createdAt:    now,
		lastActivity: now,
	}
	return sessionID, true
}

// Append adds a turn to the end of the session history.
func (s *Store) Append(sessionID string, turn chat.Turn) error {
	sess := s.lookup(sessionID)
	if sess == nil {
		return ErrSessionNotFound
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.closed {
		return ErrSessionNotFound
	}

	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = s.now().UTC()
	}

	sess.turns = append(sess.turns, turn)
	if limit := s.cfg.MaxTurns; limit > 0 && len(sess.turns) > limit {
		trimmed := make([]chat.Turn, limit, limit+16)
		copy(trimmed, sess.turns[len(sess.turns)-limit:])
		sess.turns = trimmed
	}
	sess.lastActivity = s.now()
	return nil
}

// RecentWindow returns up to n of the latest turns in their original order.
func (s *Store) RecentWindow(sessionID string, n int) []chat.Turn {
	if n <= 0 {
		return []chat.Turn{}
	}

	sess := s.lookup(sessionID)
	if sess == nil {
		return []chat.Turn{}
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	start := 0
	if len(sess.turns) > n {
		start = len(sess.turns) - n
	}

	window := make([]chat.Turn, len(sess.turns)-start)
	copy(window, sess.turns[start:])
	return window
}

// History returns a copy of the full session history, empty when unknown.
func (s *Store) History(sessionID string) []chat.Turn {
	sess := s.lookup(sessionID)
	if sess == nil {
		return []chat.Turn{}
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	copied := make([]chat.Turn, len(sess.turns))
	copy(copied, sess.turns)
	return copied
}

// Clear removes the session and reports whether it existed.
func (s *Store) Clear(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return false
	}
	delete(s.sessions, sessionID)

	sess.mu.Lock()
	sess.closed = true
	sess.turns = nil
	sess.mu.Unlock()
	return true
}

// CleanupExpired drops sessions idle for longer than the configured TTL.
func (s *Store) CleanupExpired() int {
	if s.cfg.TTL <= 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, sess := range s.sessions {
		sess.mu.Lock()
		if now.Sub(sess.lastActivity) > s.cfg.TTL {
			sess.closed = true
			sess.turns = nil
			delete(s.sessions, id)
			removed++
		}
		sess.mu.Unlock()
	}
	return removed
}

// Stats reports the number of live sessions and stored turns.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{Sessions: len(s.sessions)}
	for _, sess := range s.sessions {
		sess.mu.Lock()
		stats.Turns += len(sess.turns)
		sess.mu.Unlock()
	}
	return stats
}

func (s *Store) lookup(sessionID string) *session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[sessionID]
}
