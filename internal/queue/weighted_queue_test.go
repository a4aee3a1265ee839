package queue

import (
	"context"
	"encoding/json"
	"math/rand"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestPickOrderFavorsHeavierLanes(t *testing.T) {
	q := &WeightedQueue{prefix: "test"}
	q.rng = rand.New(rand.NewSource(1))

	counts := map[Priority]int{}
	for i := 0; i < 2000; i++ {
		order := q.pickOrder()
		if len(order) != 3 {
			t.Fatalf("expected all 3 priorities in the order, got %d", len(order))
		}
		counts[order[0]]++
	}

	if counts[PriorityHigh] <= counts[PriorityBatch] {
		t.Fatalf("expected high lane to win first pick more often than batch: high=%d batch=%d", counts[PriorityHigh], counts[PriorityBatch])
	}
	if counts[PriorityQuality] <= counts[PriorityBatch] {
		t.Fatalf("expected quality lane to win first pick more often than batch: quality=%d batch=%d", counts[PriorityQuality], counts[PriorityBatch])
	}
}

func newTestRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "127.0.0.1:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}
	return client
}

func TestWeightedQueueEnqueueDequeue(t *testing.T) {
	client := newTestRedisClient(t)
	prefix := "test:weighted:" + time.Now().Format("20060102150405")
	q, err := NewWeightedQueue(client, prefix)
	if err != nil {
		t.Fatalf("NewWeightedQueue failed: %v", err)
	}
	ctx := context.Background()
	defer func() {
		for _, p := range priorityOrder {
			client.Del(ctx, q.key(p))
		}
	}()

	job := Job{Type: "generate_igce", Payload: json.RawMessage(`{"program":"p1"}`), Priority: PriorityHigh}
	if err := q.Enqueue(ctx, job); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	dequeueCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	got, err := q.Dequeue(dequeueCtx)
	if err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}
	if got.Type != job.Type {
		t.Fatalf("expected type %s, got %s", job.Type, got.Type)
	}
}
