package inventory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// QuantityClient is the external "current on-hand quantity" call.
type QuantityClient interface {
	OnHandQuantity(ctx context.Context, itemID string) (int, error)
}

// UpstreamError wraps a failed inventory read. The facade does not
// retry; retry policy belongs to the caller.
type UpstreamError struct {
	ItemID string
	Err    error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("el-camino: inventory query for %q failed: %v", e.ItemID, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

type cacheEntry struct {
	quantity  int
	fetchedAt time.Time
}

type Option func(*Facade)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(f *Facade) { f.now = now }
}

// Facade wraps the remote quantity call with in-flight deduplication
// and a short TTL cache. Concurrent callers asking about the same item
// share one remote call. The reservation layer invalidates the cache
// whenever a lock for the item is acquired, released, or swept, so
// freed capacity shows up before the TTL runs out.
type Facade struct {
	client QuantityClient
	ttl    time.Duration
	now    func() time.Time

	group singleflight.Group

	mu    sync.Mutex
	cache map[string]cacheEntry
}

func NewFacade(client QuantityClient, ttl time.Duration, opts ...Option) *Facade {
	if ttl <= 0 {
		ttl = time.Minute
	}
	f := &Facade{
		client: client,
		ttl:    ttl,
		now:    time.Now,
		cache:  make(map[string]cacheEntry),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Facade) cached(itemID string) (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	e, ok := f.cache[itemID]
	if !ok || f.now().Sub(e.fetchedAt) >= f.ttl {
		return 0, false
	}
	return e.quantity, true
}

func (f *Facade) store(itemID string, quantity int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cache[itemID] = cacheEntry{quantity: quantity, fetchedAt: f.now()}
}

// OnHand returns the current on-hand quantity for the item, served
// from cache when fresh.
func (f *Facade) OnHand(ctx context.Context, itemID string) (int, error) {
	if qty, ok := f.cached(itemID); ok {
		return qty, nil
	}

	v, err, _ := f.group.Do(itemID, func() (interface{}, error) {
		// A concurrent flight may have filled the cache already
		if qty, ok := f.cached(itemID); ok {
			return qty, nil
		}

		qty, err := f.client.OnHandQuantity(ctx, itemID)
		if err != nil {
			return 0, &UpstreamError{ItemID: itemID, Err: err}
		}

		f.store(itemID, qty)
		return qty, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

// Invalidate drops the cached quantity for the item.
func (f *Facade) Invalidate(itemID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.cache, itemID)
}
