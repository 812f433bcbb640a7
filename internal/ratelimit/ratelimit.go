package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	gorate "golang.org/x/time/rate"
)

// DefaultClass is the ceiling key used for clients the classifier does
// not place in a more specific class.
const DefaultClass = "default"

// Decision is the outcome of a single rate-limit check.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// LimitError is returned by Do when the limit is exceeded. It carries
// the retry-after hint so callers can apply backoff.
type LimitError struct {
	ClientID   string
	Endpoint   string
	RetryAfter time.Duration
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("el-camino: rate limit exceeded for %q on %q, retry after %s",
		e.ClientID, e.Endpoint, e.RetryAfter)
}

// Config sets the request budget per (client, endpoint) key. Ceilings
// maps client class to requests per window; the "default" class applies
// to unclassified clients.
type Config struct {
	Window   time.Duration
	Ceilings map[string]int
}

type Option func(*Limiter)

// WithClassifier sets the function that maps a client id to its class.
// Without one, every client uses the default ceiling.
func WithClassifier(fn func(clientID string) string) Option {
	return func(l *Limiter) { l.classify = fn }
}

// Limiter throttles requests per (client, endpoint) key using a token
// bucket sized to the configured ceiling per window. Counters live only
// for the process lifetime; this is a best-effort defensive layer, not
// the security boundary.
type Limiter struct {
	cfg      Config
	classify func(clientID string) string

	mu       sync.Mutex
	limiters map[string]*gorate.Limiter
}

func New(cfg Config, opts ...Option) *Limiter {
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.Ceilings == nil {
		cfg.Ceilings = map[string]int{}
	}
	if cfg.Ceilings[DefaultClass] <= 0 {
		cfg.Ceilings[DefaultClass] = 10
	}

	l := &Limiter{
		cfg:      cfg,
		classify: func(string) string { return DefaultClass },
		limiters: make(map[string]*gorate.Limiter),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func limiterKey(clientID, endpoint string) string {
	return clientID + "|" + endpoint
}

func (l *Limiter) ceiling(clientID string) int {
	class := l.classify(clientID)
	if n, ok := l.cfg.Ceilings[class]; ok && n > 0 {
		return n
	}
	return l.cfg.Ceilings[DefaultClass]
}

func (l *Limiter) limiter(clientID, endpoint string) *gorate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := limiterKey(clientID, endpoint)
	lim, ok := l.limiters[key]
	if !ok {
		n := l.ceiling(clientID)
		lim = gorate.NewLimiter(gorate.Every(l.cfg.Window/time.Duration(n)), n)
		l.limiters[key] = lim
	}
	return lim
}

// Check consumes one request from the (client, endpoint) budget. Once
// the ceiling is reached, further calls are denied with a non-zero
// retry-after hint until tokens refill.
func (l *Limiter) Check(clientID, endpoint string) Decision {
	r := l.limiter(clientID, endpoint).Reserve()
	if d := r.Delay(); d > 0 {
		r.Cancel()
		return Decision{RetryAfter: d}
	}
	return Decision{Allowed: true}
}

// Do runs op under the (client, endpoint) budget. When the limit is
// exceeded it fails fast with *LimitError without invoking op.
func (l *Limiter) Do(ctx context.Context, clientID, endpoint string, op func(context.Context) error) error {
	if d := l.Check(clientID, endpoint); !d.Allowed {
		return &LimitError{
			ClientID:   clientID,
			Endpoint:   endpoint,
			RetryAfter: d.RetryAfter,
		}
	}
	return op(ctx)
}

// ResetClient clears all counters for the client, across endpoints.
// Used in tests and for administrative recovery.
func (l *Limiter) ResetClient(clientID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	prefix := clientID + "|"
	for key := range l.limiters {
		if strings.HasPrefix(key, prefix) {
			delete(l.limiters, key)
		}
	}
}
