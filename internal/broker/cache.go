package broker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zarvd/stonebanking-jwt/internal/exchange"
)

// tokenCache holds the last access token. Only refreshes take mu; the fast path reads
// current without it and is re-checked under mu before a refresh is skipped.
type tokenCache struct {
	mu      sync.Mutex
	current atomic.Pointer[exchange.AccessToken]
	now     func() time.Time
}

func (c *tokenCache) peek() *exchange.AccessToken {
	return c.current.Load()
}

// getOrRefresh returns the cached token while it is valid, otherwise runs refresh and
// stores its result. Concurrent callers share a single refresh.
func (c *tokenCache) getOrRefresh(
	ctx context.Context,
	refresh func(context.Context) (*exchange.AccessToken, error),
) (*exchange.AccessToken, bool, error) {
	if token := c.current.Load(); token.Valid(c.now()) {
		return token, false, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if token := c.current.Load(); token.Valid(c.now()) {
		return token, false, nil
	}

	token, err := refresh(ctx)
	if err != nil {
		return nil, false, err
	}
	c.current.Store(token)
	return token, true, nil
}

// replace runs refresh unconditionally and stores its result.
func (c *tokenCache) replace(
	ctx context.Context,
	refresh func(context.Context) (*exchange.AccessToken, error),
) (*exchange.AccessToken, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	token, err := refresh(ctx)
	if err != nil {
		return nil, err
	}
	c.current.Store(token)
	return token, nil
}
