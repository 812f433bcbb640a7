// Package cart wraps the external cart collaborator's mutations in
// reservation acquire/validate/release, so a cart line can only exist
// while its quantity is locked.
package cart

import (
	"context"
	"fmt"

	"github.com/travhall/el-camino-sub001/internal/events"
	"github.com/travhall/el-camino-sub001/internal/locker"
)

// Service is the external cart collaborator. The integration only
// cares about success or failure of each mutation.
type Service interface {
	AddItem(ctx context.Context, itemID string, quantity int) error
	UpdateItem(ctx context.Context, itemID string, quantity int) error
	RemoveItem(ctx context.Context, itemID string) error
}

// Line is one cart line item.
type Line struct {
	ItemID   string
	Quantity int
}

// Result is the structured outcome of a guarded cart mutation. A
// denied mutation is an expected outcome; the caller shows the shopper
// the remaining availability and the cart is left untouched.
type Result struct {
	OK        bool
	Available int
	Reason    locker.Reason
}

// Validation aggregates the pre-checkout check over every cart line.
// The cart is checkout-eligible only when Issues is empty.
type Validation struct {
	Valid  bool
	Issues []events.Issue
}

type Option func(*Checkout)

func WithEmitter(e events.Emitter) Option {
	return func(c *Checkout) { c.events = e }
}

// Checkout orchestrates cart mutations against the reservation table.
// It holds no reservation state of its own.
type Checkout struct {
	locks  *locker.Manager
	cart   Service
	events events.Emitter
}

func New(locks *locker.Manager, cart Service, opts ...Option) *Checkout {
	c := &Checkout{
		locks:  locks,
		cart:   cart,
		events: events.Discard,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AddItem reserves the quantity first and only then mutates the cart.
// If the mutation itself fails, the fresh reservation is released so a
// retry does not find a stale hold.
func (c *Checkout) AddItem(ctx context.Context, ownerID, itemID string, quantity int) (Result, error) {
	ar, err := c.locks.Acquire(ctx, itemID, quantity, ownerID)
	if err != nil {
		return Result{}, err
	}
	if !ar.Granted {
		return Result{Available: ar.Available, Reason: locker.ReasonInsufficient}, nil
	}

	if err := c.cart.AddItem(ctx, itemID, quantity); err != nil {
		// Only a fresh reservation is unwound; an extended one still
		// guards quantity already in the cart.
		if !ar.Extended {
			_, _ = c.locks.Release(ctx, itemID, ownerID)
		}
		return Result{}, fmt.Errorf("cart add failed: %w", err)
	}
	return Result{OK: true}, nil
}

// UpdateItem changes a line's quantity. The existing reservation is
// validated against the new quantity; when it no longer covers it, a
// fresh acquire is attempted. A denied acquire leaves the cart at its
// prior quantity.
func (c *Checkout) UpdateItem(ctx context.Context, ownerID, itemID string, quantity int) (Result, error) {
	v, err := c.locks.Validate(ctx, itemID, ownerID, quantity)
	if err != nil {
		return Result{}, err
	}
	if !v.Valid {
		ar, err := c.locks.Acquire(ctx, itemID, quantity, ownerID)
		if err != nil {
			return Result{}, err
		}
		if !ar.Granted {
			return Result{Available: ar.Available, Reason: locker.ReasonInsufficient}, nil
		}
	}

	if err := c.cart.UpdateItem(ctx, itemID, quantity); err != nil {
		return Result{}, fmt.Errorf("cart update failed: %w", err)
	}
	return Result{OK: true}, nil
}

// RemoveItem deletes the line and releases its reservation. The
// release runs even when the cart mutation fails; skipping it would
// leave a later retry fighting an abandoned hold.
func (c *Checkout) RemoveItem(ctx context.Context, ownerID, itemID string) error {
	mutErr := c.cart.RemoveItem(ctx, itemID)

	if _, err := c.locks.Release(ctx, itemID, ownerID); err != nil && mutErr == nil {
		mutErr = err
	}

	if mutErr != nil {
		return fmt.Errorf("cart remove failed: %w", mutErr)
	}
	return nil
}

// ValidateCart runs the pre-checkout check over every line and
// aggregates the failures.
func (c *Checkout) ValidateCart(ctx context.Context, ownerID string, lines []Line) (Validation, error) {
	var issues []events.Issue
	for _, ln := range lines {
		v, err := c.locks.Validate(ctx, ln.ItemID, ownerID, ln.Quantity)
		if err != nil {
			return Validation{}, err
		}
		if v.Valid {
			continue
		}

		issue := events.Issue{
			ItemID:    ln.ItemID,
			Requested: ln.Quantity,
			Problem:   string(v.Reason),
		}
		if v.Reservation != nil {
			issue.Available = v.Reservation.Quantity
		}
		issues = append(issues, issue)
	}

	c.events.Emit(events.Event{
		Type:   events.TypeCartValidated,
		Owner:  events.MaskOwner(ownerID),
		Issues: issues,
	})

	return Validation{Valid: len(issues) == 0, Issues: issues}, nil
}

// ConfirmAll commits every line's reservation at checkout. Best
// effort: a failed line does not stop the rest. Returns the lines that
// could not be confirmed.
func (c *Checkout) ConfirmAll(ctx context.Context, ownerID string, lines []Line) []Line {
	var failed []Line
	for _, ln := range lines {
		ok, err := c.locks.Confirm(ctx, ln.ItemID, ownerID)
		if err != nil || !ok {
			failed = append(failed, ln)
		}
	}
	return failed
}

// ReleaseAll frees every line's reservation on checkout abort. Best
// effort; a missing reservation is a benign no-op, not a failure.
func (c *Checkout) ReleaseAll(ctx context.Context, ownerID string, lines []Line) []Line {
	var failed []Line
	for _, ln := range lines {
		if _, err := c.locks.Release(ctx, ln.ItemID, ownerID); err != nil {
			failed = append(failed, ln)
		}
	}
	return failed
}
