// Package identity keeps "the current cart" identity consistent across the
// cookie, local-store and memory mirrors of a visitor.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"storefront/internal/domain"
	"storefront/internal/repository/visitorcart"
)

const (
	CookieName    = "cart_id"
	SeqCookieName = "cart_id_seq"
)

// Entry is one mirror's view of the identity. Seq is the write counter used
// for last-write-wins; 0 means the writer did not record one.
type Entry struct {
	CartID string
	Seq    int64
}

// Mirror is one storage location of the cart identity.
type Mirror interface {
	Name() string
	Load(ctx context.Context) (Entry, bool, error)
	Save(ctx context.Context, e Entry) error
	Clear(ctx context.Context) error
}

// CookieJar is the part of *gin.Context the cookie mirror needs.
type CookieJar interface {
	Cookie(name string) (string, error)
	SetCookie(name, value string, maxAge int, path, domain string, secure, httpOnly bool)
}

type CookieOptions struct {
	MaxAge time.Duration
	Secure bool
}

// cookieMirror reads the request cookies and writes response cookies. Writes
// are remembered so later reads within the same request see them.
type cookieMirror struct {
	jar     CookieJar
	opts    CookieOptions
	written *Entry
	cleared bool
}

func (m *cookieMirror) Name() string { return "cookie" }

func (m *cookieMirror) Load(_ context.Context) (Entry, bool, error) {
	if m.written != nil {
		return *m.written, true, nil
	}
	if m.cleared {
		return Entry{}, false, nil
	}
	id, err := m.jar.Cookie(CookieName)
	if err != nil || id == "" {
		return Entry{}, false, nil
	}
	e := Entry{CartID: id}
	if raw, err := m.jar.Cookie(SeqCookieName); err == nil && raw != "" {
		// a client-written cookie may lack the counter; it then loses every tie
		if seq, err := strconv.ParseInt(raw, 10, 64); err == nil {
			e.Seq = seq
		}
	}
	return e, true, nil
}

func (m *cookieMirror) Save(_ context.Context, e Entry) error {
	maxAge := int(m.opts.MaxAge.Seconds())
	// not HTTP-only: browser code reads the cart id directly
	m.jar.SetCookie(CookieName, e.CartID, maxAge, "/", "", m.opts.Secure, false)
	m.jar.SetCookie(SeqCookieName, strconv.FormatInt(e.Seq, 10), maxAge, "/", "", m.opts.Secure, false)
	m.written = &e
	m.cleared = false
	return nil
}

func (m *cookieMirror) Clear(_ context.Context) error {
	m.jar.SetCookie(CookieName, "", -1, "/", "", m.opts.Secure, false)
	m.jar.SetCookie(SeqCookieName, "", -1, "/", "", m.opts.Secure, false)
	m.written = nil
	m.cleared = true
	return nil
}

type localRepo interface {
	Get(ctx context.Context, visitorID string) (*visitorcart.Entry, error)
	Upsert(ctx context.Context, e visitorcart.Entry) error
	Delete(ctx context.Context, visitorID string) error
}

// localMirror is the persistent per-visitor row.
type localMirror struct {
	repo      localRepo
	visitorID string
}

func (m *localMirror) Name() string { return "local" }

func (m *localMirror) Load(ctx context.Context) (Entry, bool, error) {
	row, err := m.repo.Get(ctx, m.visitorID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return Entry{}, false, nil
		}
		return Entry{}, false, fmt.Errorf("load visitor cart: %w", err)
	}
	return Entry{CartID: row.CartID, Seq: row.Seq}, true, nil
}

func (m *localMirror) Save(ctx context.Context, e Entry) error {
	if err := m.repo.Upsert(ctx, visitorcart.Entry{VisitorID: m.visitorID, CartID: e.CartID, Seq: e.Seq}); err != nil {
		return fmt.Errorf("save visitor cart: %w", err)
	}
	return nil
}

func (m *localMirror) Clear(ctx context.Context) error {
	if err := m.repo.Delete(ctx, m.visitorID); err != nil {
		return fmt.Errorf("clear visitor cart: %w", err)
	}
	return nil
}

type memoryEntry struct {
	Entry
	expiresAt time.Time
}

// MemoryMirrors is the process-wide in-memory mirror, one slot per visitor.
// Idle slots expire after ttl.
type MemoryMirrors struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryMirrors(ttl time.Duration) *MemoryMirrors {
	return &MemoryMirrors{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (m *MemoryMirrors) get(visitorID string) (Entry, bool) {
	m.mu.RLock()
	e, ok := m.entries[visitorID]
	m.mu.RUnlock()
	if !ok {
		return Entry{}, false
	}
	if m.now().After(e.expiresAt) {
		m.mu.Lock()
		// a put may have refreshed the slot since the read lock was released
		if cur, ok := m.entries[visitorID]; ok && m.now().After(cur.expiresAt) {
			delete(m.entries, visitorID)
		}
		m.mu.Unlock()
		return Entry{}, false
	}
	return e.Entry, true
}

func (m *MemoryMirrors) put(visitorID string, e Entry) {
	m.mu.Lock()
	m.entries[visitorID] = memoryEntry{Entry: e, expiresAt: m.now().Add(m.ttl)}
	m.mu.Unlock()
}

func (m *MemoryMirrors) remove(visitorID string) {
	m.mu.Lock()
	delete(m.entries, visitorID)
	m.mu.Unlock()
}

// Sweep drops expired slots and reports how many were removed.
func (m *MemoryMirrors) Sweep() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k, e := range m.entries {
		if now.After(e.expiresAt) {
			delete(m.entries, k)
			n++
		}
	}
	return n
}

type memoryMirror struct {
	slots     *MemoryMirrors
	visitorID string
}

func (m *memoryMirror) Name() string { return "memory" }

func (m *memoryMirror) Load(_ context.Context) (Entry, bool, error) {
	e, ok := m.slots.get(m.visitorID)
	return e, ok, nil
}

func (m *memoryMirror) Save(_ context.Context, e Entry) error {
	m.slots.put(m.visitorID, e)
	return nil
}

func (m *memoryMirror) Clear(_ context.Context) error {
	m.slots.remove(m.visitorID)
	return nil
}

// Sequence hands out strictly increasing write counters based on wall-clock
// nanoseconds, so counters from different requests stay comparable.
type Sequence struct {
	last atomic.Int64
	now  func() time.Time
}

func NewSequence() *Sequence {
	return &Sequence{now: time.Now}
}

func (s *Sequence) Next() int64 {
	for {
		prev := s.last.Load()
		next := s.now().UnixNano()
		if next <= prev {
			next = prev + 1
		}
		if s.last.CompareAndSwap(prev, next) {
			return next
		}
	}
}
