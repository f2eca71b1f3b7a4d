// Package session implements the session manager: secure identifier
// generation, TTL-driven expiry, bounded population, and background cleanup.
package session

import (
	"errors"
	"hash/fnv"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"docs-mcp-server/pkg/mcptypes"
)

const shardCount = 16

var (
	ErrNotFound           = errors.New("session not found")
	ErrExpired            = errors.New("session expired")
	ErrMaxSessionsReached = errors.New("maximum session count reached")
	ErrVersionMismatch    = errors.New("session protocol version mismatch")
)

// Config controls TTL, capacity, and the cleanup sweep interval.
type Config struct {
	TTL             time.Duration
	MaxSessions     int
	CleanupInterval time.Duration
}

// DefaultConfig returns sane defaults: 30 minute TTL, 10,000 session cap,
// a 5 minute cleanup sweep.
func DefaultConfig() Config {
	return Config{
		TTL:             30 * time.Minute,
		MaxSessions:     10_000,
		CleanupInterval: 5 * time.Minute,
	}
}

// Stats summarizes the session population.
type Stats struct {
	Active  int
	Expired int
}

type shard struct {
	mu sync.Mutex
	m  map[string]*mcptypes.Session
}

// Manager holds sessions in a sharded, mutex-guarded map, mirroring the
// concurrency shape of a rate limiter's per-client bucket map, generalized
// across shards for the larger expected session cardinality.
type Manager struct {
	cfg    Config
	shards [shardCount]*shard

	// count is the authoritative total session population, maintained
	// alongside the shard maps so Create can enforce MaxSessions with a
	// single atomic reservation instead of a check-then-act race across
	// shard locks.
	count atomic.Int64

	stop chan struct{}
	once sync.Once
}

// New constructs a Manager. Call StartCleanupLoop to begin the background sweep.
func New(cfg Config) *Manager {
	m := &Manager{cfg: cfg, stop: make(chan struct{})}
	for i := range m.shards {
		m.shards[i] = &shard{m: make(map[string]*mcptypes.Session)}
	}
	return m
}

func (m *Manager) shardFor(id string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return m.shards[h.Sum32()%shardCount]
}

// Create generates a new session id and record, failing with
// ErrMaxSessionsReached if the manager is at capacity.
func (m *Manager) Create(client mcptypes.ClientInfo, protocolVersion string) (string, error) {
	// Reserve a slot by incrementing the shared counter before touching any
	// shard. If that pushes the population over the cap, release the
	// reservation and fail — this closes the race where N concurrent
	// callers all observe a stale under-cap count and each insert.
	if m.cfg.MaxSessions > 0 {
		if m.count.Add(1) > int64(m.cfg.MaxSessions) {
			m.count.Add(-1)
			return "", ErrMaxSessionsReached
		}
	} else {
		m.count.Add(1)
	}

	var id string
	for attempt := 0; attempt < 3; attempt++ {
		candidate := uuid.New().String()
		sh := m.shardFor(candidate)
		sh.mu.Lock()
		if _, exists := sh.m[candidate]; !exists {
			now := time.Now()
			sh.m[candidate] = &mcptypes.Session{
				ID:              candidate,
				CreatedAt:       now,
				LastAccessed:    now,
				ProtocolVersion: protocolVersion,
				Client:          client,
			}
			sh.mu.Unlock()
			id = candidate
			break
		}
		sh.mu.Unlock()
	}
	if id == "" {
		m.count.Add(-1)
		return "", errors.New("failed to allocate a unique session id")
	}
	return id, nil
}

// Get returns the session for id, failing with ErrNotFound or ErrExpired.
func (m *Manager) Get(id string) (mcptypes.Session, error) {
	sh := m.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sess, ok := sh.m[id]
	if !ok {
		return mcptypes.Session{}, ErrNotFound
	}
	if m.expired(sess) {
		delete(sh.m, id)
		m.count.Add(-1)
		return mcptypes.Session{}, ErrExpired
	}
	return *sess, nil
}

// Touch updates last-accessed for id, failing with ErrNotFound if absent
// or ErrExpired if the session has aged out.
func (m *Manager) Touch(id string) error {
	sh := m.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sess, ok := sh.m[id]
	if !ok {
		return ErrNotFound
	}
	if m.expired(sess) {
		delete(sh.m, id)
		m.count.Add(-1)
		return ErrExpired
	}
	sess.LastAccessed = time.Now()
	return nil
}

// Delete removes the session for id, failing with ErrNotFound if absent.
func (m *Manager) Delete(id string) error {
	sh := m.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, ok := sh.m[id]; !ok {
		return ErrNotFound
	}
	delete(sh.m, id)
	m.count.Add(-1)
	return nil
}

// ValidateVersion confirms token matches the session's recorded version.
func (m *Manager) ValidateVersion(id, token string) error {
	sess, err := m.Get(id)
	if err != nil {
		return err
	}
	if sess.ProtocolVersion != token {
		return ErrVersionMismatch
	}
	return nil
}

// Cleanup removes all expired sessions across every shard, returning the count removed.
func (m *Manager) Cleanup() int {
	removed := 0
	for _, sh := range m.shards {
		sh.mu.Lock()
		for id, sess := range sh.m {
			if m.expired(sess) {
				delete(sh.m, id)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	if removed > 0 {
		m.count.Add(-int64(removed))
	}
	return removed
}

// Count returns the total number of session records currently held,
// expired or not.
func (m *Manager) Count() int {
	return int(m.count.Load())
}

// Stats reports active vs. expired counts.
func (m *Manager) Stats() Stats {
	var stats Stats
	for _, sh := range m.shards {
		sh.mu.Lock()
		for _, sess := range sh.m {
			if m.expired(sess) {
				stats.Expired++
			} else {
				stats.Active++
			}
		}
		sh.mu.Unlock()
	}
	return stats
}

func (m *Manager) expired(sess *mcptypes.Session) bool {
	if m.cfg.TTL <= 0 {
		return false
	}
	return sess.LastAccessed.Add(m.cfg.TTL).Before(time.Now())
}

// StartCleanupLoop runs Cleanup every CleanupInterval until Stop is called,
// mirroring a rate limiter's ticker-driven cleanup goroutine.
func (m *Manager) StartCleanupLoop() {
	interval := m.cfg.CleanupInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-m.stop:
				return
			case <-ticker.C:
				if n := m.Cleanup(); n > 0 {
					slog.Debug("session cleanup sweep removed expired sessions", "count", n)
				}
			}
		}
	}()
}

// Stop terminates the background cleanup loop.
func (m *Manager) Stop() {
	m.once.Do(func() {
		close(m.stop)
	})
}
