package repositories

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/directaid/backend/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// RedisBalanceCache keeps derived balances in one hash per account. Fields
// are prefixed with the generation they were computed under, and Invalidate
// bumps the generation counter, so stale fields are never read back.
type RedisBalanceCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisBalanceCache(client *redis.Client, ttl time.Duration) *RedisBalanceCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisBalanceCache{client: client, ttl: ttl}
}

func balanceKey(account models.Account) string    { return "balance:" + string(account) }
func balanceGenKey(account models.Account) string { return "balance:gen:" + string(account) }
func balanceField(gen int64, key string) string   { return strconv.FormatInt(gen, 10) + "|" + key }

func (c *RedisBalanceCache) Generation(ctx context.Context, account models.Account) (int64, error) {
	gen, err := c.client.Get(ctx, balanceGenKey(account)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (c *RedisBalanceCache) Get(ctx context.Context, account models.Account, gen int64, key string) (decimal.Decimal, bool, error) {
	raw, err := c.client.HGet(ctx, balanceKey(account), balanceField(gen, key)).Result()
	if errors.Is(err, redis.Nil) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, err
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("corrupt cached balance %s/%s: %w", account, key, err)
	}
	return v, true, nil
}

func (c *RedisBalanceCache) Set(ctx context.Context, account models.Account, gen int64, key string, v decimal.Decimal) error {
	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, balanceKey(account), balanceField(gen, key), v.String())
	pipe.Expire(ctx, balanceKey(account), c.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (c *RedisBalanceCache) Invalidate(ctx context.Context, accounts ...models.Account) error {
	if len(accounts) == 0 {
		return nil
	}
	pipe := c.client.TxPipeline()
	for _, a := range accounts {
		pipe.Incr(ctx, balanceGenKey(a))
		pipe.Del(ctx, balanceKey(a))
	}
	_, err := pipe.Exec(ctx)
	return err
}
