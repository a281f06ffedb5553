package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/Rwiron/saintmassori-sub002/core"
	"github.com/Rwiron/saintmassori-sub002/core/billing"
)

const balanceKeyPrefix = "balance:student:"

// RedisCache caches the student balances in Redis.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ billing.BalanceCache = (*RedisCache)(nil) // interface compliance check

// Open connects to the Redis server of conf and checks the connection.
func Open(ctx context.Context, conf core.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     conf.Address,
		Password: conf.Password,
		DB:       conf.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "connecting to redis at %s", conf.Address)
	}
	return client, nil
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func balanceKey(studentID string) string {
	return balanceKeyPrefix + studentID
}

func (c *RedisCache) GetBalance(ctx context.Context, studentID string) (billing.Balance, bool, error) {
	data, err := c.client.Get(ctx, balanceKey(studentID)).Bytes()
	if err == redis.Nil {
		return billing.Balance{}, false, nil
	}
	if err != nil {
		return billing.Balance{}, false, errors.Wrap(err, "reading cached balance")
	}

	var b billing.Balance
	if err = json.Unmarshal(data, &b); err != nil {
		return billing.Balance{}, false, errors.Wrap(err, "decoding cached balance")
	}
	return b, true, nil
}

func (c *RedisCache) SetBalance(ctx context.Context, b billing.Balance) error {
	data, err := json.Marshal(b)
	if err != nil {
		return errors.Wrap(err, "encoding balance")
	}
	return errors.Wrap(c.client.Set(ctx, balanceKey(b.StudentID), data, c.ttl).Err(), "caching balance")
}

func (c *RedisCache) InvalidateBalance(ctx context.Context, studentIDs ...string) error {
	if len(studentIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(studentIDs))
	for _, id := range studentIDs {
		keys = append(keys, balanceKey(id))
	}
	return errors.Wrap(c.client.Del(ctx, keys...).Err(), "invalidating cached balances")
}
