package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/travhall/el-camino-sub001/internal/lockstore"
)

var base = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

const ttl = 10 * time.Minute

func TestAcquire(t *testing.T) {
	s := New()
	ctx := context.Background()

	r, err := s.Acquire(ctx, "sku-1", "owner-a", 3, 5, ttl, base)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	if r.ItemID != "sku-1" {
		t.Errorf("expected item 'sku-1', got %q", r.ItemID)
	}
	if r.Quantity != 3 {
		t.Errorf("expected quantity 3, got %d", r.Quantity)
	}
	if r.Status != lockstore.StatusPending {
		t.Errorf("expected status pending, got %q", r.Status)
	}
	if !r.ExpiresAt.Equal(base.Add(ttl)) {
		t.Errorf("expected expiry %v, got %v", base.Add(ttl), r.ExpiresAt)
	}
}

func TestAcquireInsufficient(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, err := s.Acquire(ctx, "sku-1", "owner-a", 3, 5, ttl, base); err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}

	_, err := s.Acquire(ctx, "sku-1", "owner-b", 4, 5, ttl, base)
	var ie *lockstore.InsufficientError
	if !errors.As(err, &ie) {
		t.Fatalf("expected InsufficientError, got %v", err)
	}
	if ie.Available != 2 {
		t.Errorf("expected available 2, got %d", ie.Available)
	}

	// The failed acquire must not have written anything
	if _, err := s.Get(ctx, "sku-1", "owner-b", base); !errors.Is(err, lockstore.ErrNotFound) {
		t.Errorf("expected ErrNotFound for owner-b, got %v", err)
	}
}

func TestReacquireExtendsNotDuplicates(t *testing.T) {
	s := New()
	ctx := context.Background()

	first, err := s.Acquire(ctx, "sku-1", "owner-a", 2, 10, ttl, base)
	if err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}

	later := base.Add(30 * time.Second)
	second, err := s.Acquire(ctx, "sku-1", "owner-a", 5, 10, ttl, later)
	if err != nil {
		t.Fatalf("re-acquire failed: %v", err)
	}

	if second.Quantity != 5 {
		t.Errorf("expected quantity raised to 5, got %d", second.Quantity)
	}
	if !second.ExpiresAt.After(first.ExpiresAt) {
		t.Error("expected re-acquire to push the expiry out")
	}

	active, err := s.Active(ctx, later)
	if err != nil {
		t.Fatalf("Active failed: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("expected exactly one reservation, got %d", len(active))
	}

	// A lower quantity must not shrink the reservation
	third, err := s.Acquire(ctx, "sku-1", "owner-a", 1, 10, ttl, later)
	if err != nil {
		t.Fatalf("second re-acquire failed: %v", err)
	}
	if third.Quantity != 5 {
		t.Errorf("expected quantity to stay at 5, got %d", third.Quantity)
	}
}

func TestExtendMissing(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, err := s.Extend(ctx, "sku-1", "owner-a", 2, ttl, base); !errors.Is(err, lockstore.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestReleaseIdempotent(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, err := s.Acquire(ctx, "sku-1", "owner-a", 1, 5, ttl, base); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	released, err := s.Release(ctx, "sku-1", "owner-a")
	if err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if !released {
		t.Error("expected first release to report true")
	}

	released, err = s.Release(ctx, "sku-1", "owner-a")
	if err != nil {
		t.Fatalf("second Release failed: %v", err)
	}
	if released {
		t.Error("expected second release to report false")
	}
}

func TestConfirm(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, err := s.Acquire(ctx, "sku-1", "owner-a", 2, 5, ttl, base); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	ok, err := s.Confirm(ctx, "sku-1", "owner-a", base)
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	if !ok {
		t.Error("expected confirm to report true")
	}

	r, err := s.Get(ctx, "sku-1", "owner-a", base)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if r.Status != lockstore.StatusConfirmed {
		t.Errorf("expected status confirmed, got %q", r.Status)
	}

	ok, err = s.Confirm(ctx, "sku-1", "owner-b", base)
	if err != nil {
		t.Fatalf("Confirm for missing owner failed: %v", err)
	}
	if ok {
		t.Error("expected confirm of a missing reservation to report false")
	}
}

func TestConfirmedImmuneToSweep(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, err := s.Acquire(ctx, "sku-1", "owner-a", 2, 5, ttl, base); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if _, err := s.Confirm(ctx, "sku-1", "owner-a", base); err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}

	afterExpiry := base.Add(ttl + time.Minute)
	removed, err := s.Sweep(ctx, afterExpiry)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if len(removed) != 0 {
		t.Errorf("expected sweep to leave confirmed reservations, removed %d", len(removed))
	}

	active, err := s.Active(ctx, afterExpiry)
	if err != nil {
		t.Fatalf("Active failed: %v", err)
	}
	if len(active) != 1 {
		t.Errorf("expected confirmed reservation to stay active, got %d", len(active))
	}
}

func TestSweepFreesCapacity(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, err := s.Acquire(ctx, "sku-1", "owner-a", 5, 5, ttl, base); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	afterExpiry := base.Add(ttl + time.Minute)
	removed, err := s.Sweep(ctx, afterExpiry)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if len(removed) != 1 {
		t.Fatalf("expected 1 swept reservation, got %d", len(removed))
	}
	if removed[0].Status != lockstore.StatusExpired {
		t.Errorf("expected swept status expired, got %q", removed[0].Status)
	}

	active, err := s.Active(ctx, afterExpiry)
	if err != nil {
		t.Fatalf("Active failed: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("expected no active reservations after sweep, got %d", len(active))
	}

	// Freed capacity is claimable by another owner
	if _, err := s.Acquire(ctx, "sku-1", "owner-b", 5, 5, ttl, afterExpiry); err != nil {
		t.Errorf("expected acquire of freed capacity to succeed, got %v", err)
	}
}

func TestSweepSkipsRenewedReservation(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, err := s.Acquire(ctx, "sku-1", "owner-a", 1, 5, ttl, base); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	// The owner renews just before the original expiry passes
	renewedAt := base.Add(ttl - time.Second)
	if _, err := s.Extend(ctx, "sku-1", "owner-a", 1, ttl, renewedAt); err != nil {
		t.Fatalf("Extend failed: %v", err)
	}

	removed, err := s.Sweep(ctx, base.Add(ttl+time.Minute))
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if len(removed) != 0 {
		t.Errorf("expected sweep to leave the renewed reservation, removed %d", len(removed))
	}

	if _, err := s.Get(ctx, "sku-1", "owner-a", base.Add(ttl+time.Minute)); err != nil {
		t.Errorf("expected renewed reservation to survive the sweep, got %v", err)
	}
}

func TestGetExpired(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, err := s.Acquire(ctx, "sku-1", "owner-a", 1, 5, ttl, base); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	// Expired but not yet swept
	_, err := s.Get(ctx, "sku-1", "owner-a", base.Add(ttl))
	if !errors.Is(err, lockstore.ErrExpired) {
		t.Errorf("expected ErrExpired, got %v", err)
	}
}

func TestConcurrentAcquireNoOversell(t *testing.T) {
	s := New()
	ctx := context.Background()

	const onHand = 5
	const shoppers = 20

	granted := make([]bool, shoppers)
	var wg sync.WaitGroup
	for i := 0; i < shoppers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			owner := string(rune('a' + i))
			if _, err := s.Acquire(ctx, "sku-1", owner, 1, onHand, ttl, base); err == nil {
				granted[i] = true
			}
		}(i)
	}
	wg.Wait()

	total := 0
	for _, ok := range granted {
		if ok {
			total++
		}
	}
	if total != onHand {
		t.Errorf("expected exactly %d grants, got %d", onHand, total)
	}

	active, err := s.Active(ctx, base)
	if err != nil {
		t.Fatalf("Active failed: %v", err)
	}
	sum := 0
	for _, r := range active {
		sum += r.Quantity
	}
	if sum > onHand {
		t.Errorf("reserved %d units with only %d on hand", sum, onHand)
	}
}
