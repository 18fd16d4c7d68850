package redisx

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// testClient connects to TEST_REDIS_ADDR and skips when it is unset.
func testClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	rdb := New(addr)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("ping: %v", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestDeduper(t *testing.T) {
	d := NewDeduper(testClient(t), "payments-test")
	ctx := context.Background()
	id := uuid.NewString()

	if seen, err := d.Seen(ctx, id); err != nil || seen {
		t.Fatalf("fresh id: seen=%v err=%v", seen, err)
	}
	if err := d.Mark(ctx, id); err != nil {
		t.Fatal(err)
	}
	if seen, _ := d.Seen(ctx, id); !seen {
		t.Error("marked id not seen")
	}
}

func TestStatusCache(t *testing.T) {
	c := NewStatusCache(testClient(t))
	ctx := context.Background()
	id := uuid.NewString()

	if _, ok, err := c.Get(ctx, id); err != nil || ok {
		t.Fatalf("miss: ok=%v err=%v", ok, err)
	}
	want := OrderStatus{OrderID: id, Status: "PAID", UpdatedAt: time.Now().UTC().Truncate(time.Second)}
	if err := c.Set(ctx, want); err != nil {
		t.Fatal(err)
	}
	got, ok, err := c.Get(ctx, id)
	if err != nil || !ok || got.Status != "PAID" || !got.UpdatedAt.Equal(want.UpdatedAt) {
		t.Errorf("got %+v ok=%v err=%v", got, ok, err)
	}
	if err := c.Invalidate(ctx, id); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := c.Get(ctx, id); ok {
		t.Error("entry survived invalidate")
	}
}

func TestIdempotencyFirstWriterWins(t *testing.T) {
	i := NewIdempotency(testClient(t))
	ctx := context.Background()
	key := uuid.NewString()

	got, err := i.Remember(ctx, "u1", key, "order-a")
	if err != nil || got != "order-a" {
		t.Fatalf("first: %q %v", got, err)
	}
	got, err = i.Remember(ctx, "u1", key, "order-b")
	if err != nil || got != "order-a" {
		t.Errorf("second: %q %v", got, err)
	}
	if id, ok, _ := i.Lookup(ctx, "u1", key); !ok || id != "order-a" {
		t.Errorf("lookup: %q %v", id, ok)
	}
}
