package memory

import (
	"context"
	"sync"

	"github.com/directaid/backend/internal/models"
	"github.com/shopspring/decimal"
)

type cachedBalance struct {
	gen   int64
	value decimal.Decimal
}

// BalanceCache is the in-process balance cache. A value is only returned
// when it was stored under the account's current generation.
type BalanceCache struct {
	mu     sync.Mutex
	gens   map[models.Account]int64
	values map[models.Account]map[string]cachedBalance
}

func NewBalanceCache() *BalanceCache {
	return &BalanceCache{
		gens:   make(map[models.Account]int64),
		values: make(map[models.Account]map[string]cachedBalance),
	}
}

func (c *BalanceCache) Generation(ctx context.Context, account models.Account) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[account], nil
}

func (c *BalanceCache) Get(ctx context.Context, account models.Account, gen int64, key string) (decimal.Decimal, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[account] != gen {
		return decimal.Zero, false, nil
	}
	v, ok := c.values[account][key]
	if !ok || v.gen != gen {
		return decimal.Zero, false, nil
	}
	return v.value, true, nil
}

func (c *BalanceCache) Set(ctx context.Context, account models.Account, gen int64, key string, v decimal.Decimal) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[account] != gen {
		return nil
	}
	m := c.values[account]
	if m == nil {
		m = make(map[string]cachedBalance)
		c.values[account] = m
	}
	m[key] = cachedBalance{gen: gen, value: v}
	return nil
}

func (c *BalanceCache) Invalidate(ctx context.Context, accounts ...models.Account) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, a := range accounts {
		c.gens[a]++
		delete(c.values, a)
	}
	return nil
}

// Poison overwrites a cached value in place. Used by drift tests.
func (c *BalanceCache) Poison(account models.Account, key string, v decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m := c.values[account]
	if m == nil {
		m = make(map[string]cachedBalance)
		c.values[account] = m
	}
	m[key] = cachedBalance{gen: c.gens[account], value: v}
}
