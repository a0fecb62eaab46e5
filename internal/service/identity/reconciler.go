package identity

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"storefront/internal/domain"
	"storefront/internal/mirror"
)

type Outcome string

const (
	// OutcomeEmpty means no mirror holds an identity.
	OutcomeEmpty Outcome = "empty"
	// OutcomeInSync means every readable mirror already agreed.
	OutcomeInSync Outcome = "in_sync"
	// OutcomeCopied means the identity was copied into empty mirrors only.
	OutcomeCopied Outcome = "copied"
	// OutcomeOverwritten means a mirror held a different, older identity.
	OutcomeOverwritten Outcome = "overwritten"
)

type Result struct {
	Outcome     Outcome
	CartID      string
	MirrorReset bool
}

type observation struct {
	count int
	at    time.Time
}

// Reconciler brings a visitor's mirrors back into agreement on every request
// and resets cart mirrors that the backend has seen emptied.
type Reconciler struct {
	mirrors mirror.Store
	logger  *log.Logger

	mu       sync.Mutex
	observed map[string]observation
	ttl      time.Duration
	now      func() time.Time
}

func NewReconciler(mirrors mirror.Store, logger *log.Logger) *Reconciler {
	return &Reconciler{
		mirrors:  mirrors,
		logger:   logger,
		observed: make(map[string]observation),
		ttl:      time.Hour,
		now:      time.Now,
	}
}

// CartChanged records the item count the backend last reported for cartID.
func (r *Reconciler) CartChanged(_ context.Context, cartID string, itemCount int) {
	now := r.now()
	r.mu.Lock()
	r.observed[cartID] = observation{count: itemCount, at: now}
	r.mu.Unlock()
}

// Sweep drops observed counts older than the ttl and reports how many were
// removed.
func (r *Reconciler) Sweep() int {
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, o := range r.observed {
		if now.Sub(o.at) > r.ttl {
			delete(r.observed, id)
			n++
		}
	}
	return n
}

func (r *Reconciler) observedCount(cartID string) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.observed[cartID]
	if !ok || r.now().Sub(o.at) > r.ttl {
		return 0, false
	}
	return o.count, true
}

// Reconcile applies last-write-wins across the mirrors of s: the entry with
// the highest write counter is copied into empty mirrors and overwrites
// mirrors naming another cart. Ties prefer the cookie, then the local store.
func (r *Reconciler) Reconcile(ctx context.Context, s *Store) (Result, error) {
	type slot struct {
		mirror Mirror
		entry  Entry
		ok     bool
	}
	order := []Mirror{s.cookie, s.local, s.memory}
	slots := make([]slot, 0, len(order))
	var readErrs []error
	for _, m := range order {
		e, ok, err := s.load(ctx, m)
		if err != nil {
			// an unreadable mirror is neither compared nor written
			readErrs = append(readErrs, err)
			continue
		}
		slots = append(slots, slot{mirror: m, entry: e, ok: ok})
	}

	winner := -1
	for i, sl := range slots {
		if !sl.ok {
			continue
		}
		if winner < 0 || sl.entry.Seq > slots[winner].entry.Seq {
			winner = i
		}
	}
	if winner < 0 {
		return Result{Outcome: OutcomeEmpty}, errors.Join(readErrs...)
	}

	win := slots[winner].entry
	res := Result{Outcome: OutcomeInSync, CartID: win.CartID}
	var writeErrs []error
	for i, sl := range slots {
		if i == winner {
			continue
		}
		switch {
		case !sl.ok:
			if res.Outcome == OutcomeInSync {
				res.Outcome = OutcomeCopied
			}
		case sl.entry.CartID != win.CartID:
			res.Outcome = OutcomeOverwritten
		default:
			continue
		}
		if err := sl.mirror.Save(ctx, win); err != nil {
			writeErrs = append(writeErrs, err)
			continue
		}
		s.remember(sl.mirror, win, true)
	}
	if res.Outcome == OutcomeOverwritten {
		r.logf("identity: visitor %s reconciled to cart %s", s.VisitorID(), win.CartID)
	}

	reset, err := r.resetIfEmptied(ctx, win.CartID)
	if err != nil {
		writeErrs = append(writeErrs, err)
	}
	res.MirrorReset = reset

	return res, errors.Join(append(readErrs, writeErrs...)...)
}

// resetIfEmptied replaces the cart mirror with an empty one when the backend
// last reported zero items but the mirror still shows some.
func (r *Reconciler) resetIfEmptied(ctx context.Context, cartID string) (bool, error) {
	if r.mirrors == nil {
		return false, nil
	}
	count, ok := r.observedCount(cartID)
	if !ok || count != 0 {
		return false, nil
	}
	m, err := r.mirrors.Get(ctx, cartID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if m.ItemCount == 0 {
		return false, nil
	}
	empty := mirror.Project(domain.RemoteCart{
		ID:            cartID,
		Currency:      m.Currency,
		DiscountCodes: m.DiscountCodes,
	})
	if err := r.mirrors.Put(ctx, empty); err != nil {
		return false, err
	}
	r.logf("identity: cart %s was emptied remotely, mirror reset", cartID)
	return true, nil
}

func (r *Reconciler) logf(format string, args ...interface{}) {
	if r.logger != nil {
		r.logger.Printf(format, args...)
	}
}
