package lockstore

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound = errors.New("el-camino: reservation not found")
	ErrExpired  = errors.New("el-camino: reservation has expired")
)

// Status is the lifecycle state of a reservation. Released and expired
// reservations are removed from the store rather than kept around; those
// two values only appear on entries handed back to callers (sweep
// results, events).
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusReleased  Status = "released"
	StatusExpired   Status = "expired"
)

// Reservation is a time-bounded claim on a quantity of one item by one
// owner session. At most one reservation exists per (item, owner) pair.
type Reservation struct {
	ItemID    string    `json:"item_id"`
	OwnerID   string    `json:"owner_id"`
	Quantity  int       `json:"quantity"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Valid reports whether the reservation still counts against inventory
// at the given instant. Confirmed reservations never expire; they are
// removed only by an explicit release.
func (r *Reservation) Valid(now time.Time) bool {
	if r.Status == StatusConfirmed {
		return true
	}
	return r.Status == StatusPending && now.Before(r.ExpiresAt)
}

// InsufficientError reports a failed acquisition: the item's uncommitted
// capacity is below the requested quantity.
type InsufficientError struct {
	ItemID    string
	Requested int
	Available int
}

func (e *InsufficientError) Error() string {
	return fmt.Sprintf("el-camino: insufficient inventory for %q: requested %d, available %d",
		e.ItemID, e.Requested, e.Available)
}

// Store holds active reservations. Implementations must make Acquire
// atomic: the read of competing reservations and the insert of the new
// one may not interleave with another Acquire for the same item.
//
// The caller supplies the current time so that implementations stay
// clock-free and tests can drive expiry deterministically.
type Store interface {
	// Acquire creates or re-acquires the (itemID, ownerID) reservation.
	// If a valid entry already exists it is extended in place: quantity
	// becomes max(existing, requested) and the expiry is refreshed.
	// Otherwise capacity is checked against onHand minus the quantity
	// held by all other valid reservations for the item; on shortfall
	// Acquire returns *InsufficientError and writes nothing.
	Acquire(ctx context.Context, itemID, ownerID string, quantity, onHand int, ttl time.Duration, now time.Time) (*Reservation, error)

	// Extend refreshes an existing valid reservation without an
	// inventory check, raising its quantity to max(existing, requested).
	// Returns ErrNotFound if no valid entry exists.
	Extend(ctx context.Context, itemID, ownerID string, quantity int, ttl time.Duration, now time.Time) (*Reservation, error)

	// Get returns the (itemID, ownerID) reservation.
	// Returns ErrNotFound or ErrExpired as appropriate.
	Get(ctx context.Context, itemID, ownerID string, now time.Time) (*Reservation, error)

	// Confirm transitions a valid reservation to StatusConfirmed.
	// Reports false, without error, when no valid entry exists.
	Confirm(ctx context.Context, itemID, ownerID string, now time.Time) (bool, error)

	// Release removes the reservation regardless of status. Reports
	// false when there was nothing to remove; that is not an error.
	Release(ctx context.Context, itemID, ownerID string) (bool, error)

	// Active returns all reservations still valid at the given instant.
	Active(ctx context.Context, now time.Time) ([]Reservation, error)

	// Sweep removes every pending reservation whose expiry has passed
	// and returns the removed entries with StatusExpired set.
	Sweep(ctx context.Context, now time.Time) ([]Reservation, error)

	// Close releases any resources held by the store.
	Close() error
}
