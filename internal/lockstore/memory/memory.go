package memory

import (
	"context"
	"sync"
	"time"

	"github.com/travhall/el-camino-sub001/internal/lockstore"
)

// Store is a thread-safe in-memory reservation store. It is the default
// backend for single-instance deployments and for tests.
type Store struct {
	mu  sync.Mutex
	res map[string]lockstore.Reservation // key: "{itemID}/{ownerID}"
}

func New() *Store {
	return &Store{
		res: make(map[string]lockstore.Reservation),
	}
}

func key(itemID, ownerID string) string {
	return itemID + "/" + ownerID
}

// lockedByOthers sums the quantity held by valid reservations for the
// item, excluding the given owner. Callers must hold s.mu.
func (s *Store) lockedByOthers(itemID, ownerID string, now time.Time) int {
	total := 0
	for _, r := range s.res {
		if r.ItemID == itemID && r.OwnerID != ownerID && r.Valid(now) {
			total += r.Quantity
		}
	}
	return total
}

func (s *Store) Acquire(_ context.Context, itemID, ownerID string, quantity, onHand int, ttl time.Duration, now time.Time) (*lockstore.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(itemID, ownerID)

	// Re-acquisition extends the existing entry rather than duplicating it
	if existing, ok := s.res[k]; ok && existing.Valid(now) {
		r := extend(existing, quantity, ttl, now)
		s.res[k] = r
		return &r, nil
	}

	available := onHand - s.lockedByOthers(itemID, ownerID, now)
	if available < 0 {
		available = 0
	}
	if available < quantity {
		return nil, &lockstore.InsufficientError{
			ItemID:    itemID,
			Requested: quantity,
			Available: available,
		}
	}

	r := lockstore.Reservation{
		ItemID:    itemID,
		OwnerID:   ownerID,
		Quantity:  quantity,
		Status:    lockstore.StatusPending,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	s.res[k] = r
	return &r, nil
}

func (s *Store) Extend(_ context.Context, itemID, ownerID string, quantity int, ttl time.Duration, now time.Time) (*lockstore.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(itemID, ownerID)
	existing, ok := s.res[k]
	if !ok || !existing.Valid(now) {
		return nil, lockstore.ErrNotFound
	}

	r := extend(existing, quantity, ttl, now)
	s.res[k] = r
	return &r, nil
}

func extend(r lockstore.Reservation, quantity int, ttl time.Duration, now time.Time) lockstore.Reservation {
	if quantity > r.Quantity {
		r.Quantity = quantity
	}
	r.ExpiresAt = now.Add(ttl)
	return r
}

func (s *Store) Get(_ context.Context, itemID, ownerID string, now time.Time) (*lockstore.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.res[key(itemID, ownerID)]
	if !ok {
		return nil, lockstore.ErrNotFound
	}
	if !r.Valid(now) {
		return nil, lockstore.ErrExpired
	}
	return &r, nil
}

func (s *Store) Confirm(_ context.Context, itemID, ownerID string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(itemID, ownerID)
	r, ok := s.res[k]
	if !ok || !r.Valid(now) {
		return false, nil
	}

	r.Status = lockstore.StatusConfirmed
	s.res[k] = r
	return true, nil
}

func (s *Store) Release(_ context.Context, itemID, ownerID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(itemID, ownerID)
	if _, ok := s.res[k]; !ok {
		return false, nil
	}
	delete(s.res, k)
	return true, nil
}

func (s *Store) Active(_ context.Context, now time.Time) ([]lockstore.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var active []lockstore.Reservation
	for _, r := range s.res {
		if r.Valid(now) {
			active = append(active, r)
		}
	}
	return active, nil
}

func (s *Store) Sweep(_ context.Context, now time.Time) ([]lockstore.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []lockstore.Reservation
	for k, r := range s.res {
		if r.Status == lockstore.StatusPending && !now.Before(r.ExpiresAt) {
			delete(s.res, k)
			r.Status = lockstore.StatusExpired
			removed = append(removed, r)
		}
	}
	return removed, nil
}

func (s *Store) Close() error {
	return nil
}
