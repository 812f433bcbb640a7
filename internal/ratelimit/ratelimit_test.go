package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCeiling(t *testing.T) {
	l := New(Config{
		Window:   time.Minute,
		Ceilings: map[string]int{DefaultClass: 3},
	})

	for i := 0; i < 3; i++ {
		d := l.Check("client-a", "inventory-query")
		require.True(t, d.Allowed, "request %d should be allowed", i+1)
	}

	d := l.Check("client-a", "inventory-query")
	assert.False(t, d.Allowed)
	assert.Greater(t, d.RetryAfter, time.Duration(0))
}

func TestKeysAreIndependent(t *testing.T) {
	l := New(Config{
		Window:   time.Minute,
		Ceilings: map[string]int{DefaultClass: 1},
	})

	require.True(t, l.Check("client-a", "inventory-query").Allowed)
	require.False(t, l.Check("client-a", "inventory-query").Allowed)

	// Other clients and other endpoints have their own budget
	assert.True(t, l.Check("client-b", "inventory-query").Allowed)
	assert.True(t, l.Check("client-a", "cart-mutation").Allowed)
}

func TestResetClient(t *testing.T) {
	l := New(Config{
		Window:   time.Minute,
		Ceilings: map[string]int{DefaultClass: 1},
	})

	require.True(t, l.Check("client-a", "inventory-query").Allowed)
	require.False(t, l.Check("client-a", "inventory-query").Allowed)

	l.ResetClient("client-a")

	assert.True(t, l.Check("client-a", "inventory-query").Allowed)
}

func TestDoFailsFastWithoutInvokingOp(t *testing.T) {
	l := New(Config{
		Window:   time.Minute,
		Ceilings: map[string]int{DefaultClass: 1},
	})
	ctx := context.Background()

	calls := 0
	op := func(context.Context) error {
		calls++
		return nil
	}

	require.NoError(t, l.Do(ctx, "client-a", "inventory-query", op))
	require.Equal(t, 1, calls)

	err := l.Do(ctx, "client-a", "inventory-query", op)
	require.Error(t, err)
	assert.Equal(t, 1, calls, "op must not run once the limit is exceeded")

	var le *LimitError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, "client-a", le.ClientID)
	assert.Equal(t, "inventory-query", le.Endpoint)
	assert.Greater(t, le.RetryAfter, time.Duration(0))
}

func TestDoPropagatesOpError(t *testing.T) {
	l := New(Config{Window: time.Minute})
	boom := errors.New("boom")

	err := l.Do(context.Background(), "client-a", "inventory-query", func(context.Context) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestClassCeilings(t *testing.T) {
	l := New(Config{
		Window: time.Minute,
		Ceilings: map[string]int{
			DefaultClass: 1,
			"trusted":    5,
		},
	}, WithClassifier(func(clientID string) string {
		if clientID == "admin" {
			return "trusted"
		}
		return DefaultClass
	}))

	for i := 0; i < 5; i++ {
		require.True(t, l.Check("admin", "inventory-query").Allowed, "trusted request %d", i+1)
	}
	assert.False(t, l.Check("admin", "inventory-query").Allowed)

	require.True(t, l.Check("shopper", "inventory-query").Allowed)
	assert.False(t, l.Check("shopper", "inventory-query").Allowed)
}

func TestDefaultsApplied(t *testing.T) {
	l := New(Config{})

	// The default class gets the documented ceiling of 10 per window
	for i := 0; i < 10; i++ {
		require.True(t, l.Check("client-a", "inventory-query").Allowed, "request %d", i+1)
	}
	assert.False(t, l.Check("client-a", "inventory-query").Allowed)
}
