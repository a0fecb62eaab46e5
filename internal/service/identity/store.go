package identity

import (
	"context"
	"errors"
	"fmt"
	"log"
)

type loadResult struct {
	entry Entry
	ok    bool
	err   error
}

// Store is the identity of one visitor within one request. Reads go memory,
// then cookie, then local store; writes go to all three. It never talks to
// the commerce backend.
type Store struct {
	visitorID string
	memory    Mirror
	cookie    Mirror
	local     Mirror
	seq       *Sequence
	logger    *log.Logger

	loaded map[string]loadResult
}

// NewStore wires a Store from explicit mirrors.
func NewStore(visitorID string, memory, cookie, local Mirror, seq *Sequence, logger *log.Logger) *Store {
	if seq == nil {
		seq = NewSequence()
	}
	return &Store{
		visitorID: visitorID,
		memory:    memory,
		cookie:    cookie,
		local:     local,
		seq:       seq,
		logger:    logger,
		loaded:    make(map[string]loadResult),
	}
}

func (s *Store) VisitorID() string {
	return s.visitorID
}

// mirrors in read priority order.
func (s *Store) mirrors() []Mirror {
	return []Mirror{s.memory, s.cookie, s.local}
}

func (s *Store) load(ctx context.Context, m Mirror) (Entry, bool, error) {
	if r, ok := s.loaded[m.Name()]; ok {
		return r.entry, r.ok, r.err
	}
	e, ok, err := m.Load(ctx)
	s.loaded[m.Name()] = loadResult{entry: e, ok: ok, err: err}
	return e, ok, err
}

func (s *Store) remember(m Mirror, e Entry, ok bool) {
	s.loaded[m.Name()] = loadResult{entry: e, ok: ok}
}

// CurrentEntry returns the highest-priority identity and backfills the
// mirrors that hold none.
func (s *Store) CurrentEntry(ctx context.Context) (Entry, bool) {
	var (
		found   Entry
		ok      bool
		missing []Mirror
	)
	for _, m := range s.mirrors() {
		e, has, err := s.load(ctx, m)
		if err != nil {
			s.logf("identity: read %s mirror: %v", m.Name(), err)
			continue
		}
		if !has {
			missing = append(missing, m)
			continue
		}
		if !ok {
			found, ok = e, true
		}
	}
	if !ok {
		return Entry{}, false
	}
	for _, m := range missing {
		if err := m.Save(ctx, found); err != nil {
			s.logf("identity: backfill %s mirror: %v", m.Name(), err)
			continue
		}
		s.remember(m, found, true)
	}
	return found, true
}

// Current returns the current cart id, if any mirror holds one.
func (s *Store) Current(ctx context.Context) (string, bool) {
	e, ok := s.CurrentEntry(ctx)
	return e.CartID, ok
}

// Set writes cartID to every mirror under a fresh write counter. A failing
// mirror does not stop the others; all failures are returned joined.
func (s *Store) Set(ctx context.Context, cartID string) error {
	if cartID == "" {
		return errors.New("identity: empty cart id")
	}
	return s.write(ctx, Entry{CartID: cartID, Seq: s.seq.Next()})
}

func (s *Store) write(ctx context.Context, e Entry) error {
	var errs []error
	for _, m := range s.mirrors() {
		if err := m.Save(ctx, e); err != nil {
			s.logf("identity: write %s mirror: %v", m.Name(), err)
			errs = append(errs, fmt.Errorf("%s mirror: %w", m.Name(), err))
			delete(s.loaded, m.Name())
			continue
		}
		s.remember(m, e, true)
	}
	return errors.Join(errs...)
}

// Clear retires the identity from every mirror, best-effort.
func (s *Store) Clear(ctx context.Context) error {
	var errs []error
	for _, m := range s.mirrors() {
		if err := m.Clear(ctx); err != nil {
			s.logf("identity: clear %s mirror: %v", m.Name(), err)
			errs = append(errs, fmt.Errorf("%s mirror: %w", m.Name(), err))
			delete(s.loaded, m.Name())
			continue
		}
		s.remember(m, Entry{}, false)
	}
	return errors.Join(errs...)
}

func (s *Store) logf(format string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}

// Factory builds per-request Stores that share the process-wide memory
// mirror, the local-store repository and the write counter.
type Factory struct {
	memory *MemoryMirrors
	local  localRepo
	seq    *Sequence
	cookie CookieOptions
	logger *log.Logger
}

func NewFactory(memory *MemoryMirrors, local localRepo, cookie CookieOptions, logger *log.Logger) *Factory {
	return &Factory{
		memory: memory,
		local:  local,
		seq:    NewSequence(),
		cookie: cookie,
		logger: logger,
	}
}

// For returns the Store of visitorID, reading and writing cookies via jar.
func (f *Factory) For(jar CookieJar, visitorID string) *Store {
	return NewStore(
		visitorID,
		&memoryMirror{slots: f.memory, visitorID: visitorID},
		&cookieMirror{jar: jar, opts: f.cookie},
		&localMirror{repo: f.local, visitorID: visitorID},
		f.seq,
		f.logger,
	)
}
