// Package locker is the reservation table service: it owns the store,
// gates inventory reads through the rate limiter, and runs the expiry
// sweep. All reservation state transitions go through this package.
package locker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/travhall/el-camino-sub001/internal/events"
	"github.com/travhall/el-camino-sub001/internal/inventory"
	"github.com/travhall/el-camino-sub001/internal/lockstore"
	"github.com/travhall/el-camino-sub001/internal/ratelimit"
)

// EndpointInventory is the rate-limit endpoint key for catalog reads.
const EndpointInventory = "inventory-query"

const (
	DefaultTTL           = 10 * time.Minute
	DefaultSweepInterval = time.Minute
)

type Config struct {
	// TTL bounds the life of an unconfirmed reservation.
	TTL time.Duration

	// SweepInterval is how often expired reservations are removed.
	// Zero disables the background sweep (tests drive RunSweep directly).
	SweepInterval time.Duration

	// FailOpen treats an item as available when the inventory query
	// errors, instead of failing the acquisition. Default is off:
	// failing closed cannot oversell.
	FailOpen bool
}

// AcquireResult is the structured outcome of an acquire attempt.
// Insufficient inventory is an expected outcome, not an error.
type AcquireResult struct {
	Granted     bool
	Reservation *lockstore.Reservation
	// Extended reports that an existing reservation was refreshed in
	// place rather than a fresh one created.
	Extended bool
	// Available holds the item's remaining capacity when the request
	// was denied for insufficiency.
	Available int
}

// Reason classifies why a validation failed.
type Reason string

const (
	ReasonNotFound     Reason = "not_found"
	ReasonExpired      Reason = "expired"
	ReasonInsufficient Reason = "insufficient_inventory"
)

// Validation is the structured outcome of a validate call.
type Validation struct {
	Valid       bool
	Reason      Reason
	Reservation *lockstore.Reservation
}

type Option func(*Manager)

func WithEmitter(e events.Emitter) Option {
	return func(m *Manager) { m.events = e }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// Manager coordinates reservation state. Construct with New, which
// starts the sweep loop; Close stops it.
type Manager struct {
	cfg    Config
	store  lockstore.Store
	inv    *inventory.Facade
	limits *ratelimit.Limiter
	events events.Emitter
	now    func() time.Time

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func New(cfg Config, store lockstore.Store, inv *inventory.Facade, limits *ratelimit.Limiter, opts ...Option) *Manager {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}

	m := &Manager{
		cfg:    cfg,
		store:  store,
		inv:    inv,
		limits: limits,
		events: events.Discard,
		now:    time.Now,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	if cfg.SweepInterval > 0 {
		go m.sweepLoop()
	} else {
		close(m.done)
	}
	return m
}

// Acquire reserves quantity units of the item for the owner. A valid
// existing reservation is extended without an inventory round-trip;
// otherwise capacity is checked against the rate-limited catalog read.
func (m *Manager) Acquire(ctx context.Context, itemID string, quantity int, ownerID string) (AcquireResult, error) {
	if itemID == "" || ownerID == "" {
		return AcquireResult{}, fmt.Errorf("el-camino: item id and owner id are required")
	}
	if quantity < 1 {
		return AcquireResult{}, fmt.Errorf("el-camino: quantity must be >= 1, got %d", quantity)
	}

	now := m.now()

	if res, err := m.store.Extend(ctx, itemID, ownerID, quantity, m.cfg.TTL, now); err == nil {
		m.inv.Invalidate(itemID)
		m.emit(events.Event{
			Type:     events.TypeExtended,
			ItemID:   itemID,
			Owner:    events.MaskOwner(ownerID),
			Quantity: res.Quantity,
		})
		return AcquireResult{Granted: true, Extended: true, Reservation: res}, nil
	} else if !errors.Is(err, lockstore.ErrNotFound) {
		return AcquireResult{}, err
	}

	onHand, err := m.onHand(ctx, itemID, ownerID)
	if err != nil {
		return AcquireResult{}, err
	}

	res, err := m.store.Acquire(ctx, itemID, ownerID, quantity, onHand, m.cfg.TTL, now)
	if err != nil {
		var ie *lockstore.InsufficientError
		if errors.As(err, &ie) {
			return AcquireResult{Available: ie.Available}, nil
		}
		return AcquireResult{}, err
	}

	m.inv.Invalidate(itemID)
	m.emit(events.Event{
		Type:     events.TypeAcquired,
		ItemID:   itemID,
		Owner:    events.MaskOwner(ownerID),
		Quantity: res.Quantity,
	})
	return AcquireResult{Granted: true, Reservation: res}, nil
}

func (m *Manager) onHand(ctx context.Context, itemID, ownerID string) (int, error) {
	var onHand int
	err := m.limits.Do(ctx, ownerID, EndpointInventory, func(ctx context.Context) error {
		n, err := m.inv.OnHand(ctx, itemID)
		if err != nil {
			return err
		}
		onHand = n
		return nil
	})
	if err == nil {
		return onHand, nil
	}

	var le *ratelimit.LimitError
	if errors.As(err, &le) {
		m.emit(events.Event{
			Type:       events.TypeRateLimited,
			ItemID:     itemID,
			Owner:      events.MaskOwner(ownerID),
			RetryAfter: le.RetryAfter,
		})
		return 0, err
	}

	if m.cfg.FailOpen {
		// Availability over correctness: treat the item as in stock
		return math.MaxInt32, nil
	}
	return 0, fmt.Errorf("el-camino: acquisition failed closed: %w", err)
}

// Validate checks that the owner's reservation still covers the
// required quantity.
func (m *Manager) Validate(ctx context.Context, itemID, ownerID string, required int) (Validation, error) {
	res, err := m.store.Get(ctx, itemID, ownerID, m.now())
	switch {
	case errors.Is(err, lockstore.ErrNotFound):
		return Validation{Reason: ReasonNotFound}, nil
	case errors.Is(err, lockstore.ErrExpired):
		return Validation{Reason: ReasonExpired}, nil
	case err != nil:
		return Validation{}, err
	}

	if res.Quantity < required {
		return Validation{Reason: ReasonInsufficient, Reservation: res}, nil
	}
	return Validation{Valid: true, Reservation: res}, nil
}

// Confirm commits a valid reservation at checkout. Reports false when
// no valid reservation exists.
func (m *Manager) Confirm(ctx context.Context, itemID, ownerID string) (bool, error) {
	ok, err := m.store.Confirm(ctx, itemID, ownerID, m.now())
	if err != nil || !ok {
		return ok, err
	}
	m.emit(events.Event{
		Type:   events.TypeConfirmed,
		ItemID: itemID,
		Owner:  events.MaskOwner(ownerID),
	})
	return true, nil
}

// Release removes the reservation regardless of status. Releasing a
// missing reservation reports false and is not an error; cleanup paths
// must be safe to run twice.
func (m *Manager) Release(ctx context.Context, itemID, ownerID string) (bool, error) {
	ok, err := m.store.Release(ctx, itemID, ownerID)
	if err != nil || !ok {
		return ok, err
	}
	m.inv.Invalidate(itemID)
	m.emit(events.Event{
		Type:   events.TypeReleased,
		ItemID: itemID,
		Owner:  events.MaskOwner(ownerID),
	})
	return true, nil
}

// ActiveLocks returns all reservations not expired and not released.
func (m *Manager) ActiveLocks(ctx context.Context) ([]lockstore.Reservation, error) {
	return m.store.Active(ctx, m.now())
}

// Status returns the owner's reservation for the item.
// Returns lockstore.ErrNotFound or lockstore.ErrExpired as appropriate.
func (m *Manager) Status(ctx context.Context, itemID, ownerID string) (*lockstore.Reservation, error) {
	return m.store.Get(ctx, itemID, ownerID, m.now())
}

// RunSweep removes expired reservations once, invalidating the
// inventory cache for each affected item. The background loop calls
// this on every tick; tests and the CLI call it directly.
func (m *Manager) RunSweep(ctx context.Context) ([]lockstore.Reservation, error) {
	removed, err := m.store.Sweep(ctx, m.now())
	for _, r := range removed {
		m.inv.Invalidate(r.ItemID)
		m.emit(events.Event{
			Type:     events.TypeExpired,
			ItemID:   r.ItemID,
			Owner:    events.MaskOwner(r.OwnerID),
			Quantity: r.Quantity,
		})
	}
	return removed, err
}

func (m *Manager) sweepLoop() {
	defer close(m.done)

	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			_, _ = m.RunSweep(context.Background())
		}
	}
}

// Close stops the sweep loop. It does not close the store; the store's
// owner does that.
func (m *Manager) Close() error {
	m.closeOnce.Do(func() { close(m.stop) })
	<-m.done
	return nil
}

func (m *Manager) emit(e events.Event) {
	e.At = m.now()
	m.events.Emit(e)
}
