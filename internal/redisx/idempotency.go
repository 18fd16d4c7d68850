package redisx

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Idempotency maps a client-supplied checkout key to the order it created.
type Idempotency struct {
	rdb redis.Cmdable
}

func NewIdempotency(rdb redis.Cmdable) *Idempotency {
	return &Idempotency{rdb: rdb}
}

func (i *Idempotency) Lookup(ctx context.Context, userID, key string) (string, bool, error) {
	id, err := i.rdb.Get(ctx, fmt.Sprintf(KeyIdemCheckout, userID, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

// Remember stores orderID under key unless another request got there first,
// in which case the earlier order id is returned.
func (i *Idempotency) Remember(ctx context.Context, userID, key, orderID string) (string, error) {
	k := fmt.Sprintf(KeyIdemCheckout, userID, key)
	ok, err := i.rdb.SetNX(ctx, k, orderID, TTLIdempotency).Result()
	if err != nil {
		return "", err
	}
	if ok {
		return orderID, nil
	}
	return i.rdb.Get(ctx, k).Result()
}
