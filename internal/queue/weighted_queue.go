package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
)

// WeightedQueue implements Queue over three Redis lists, one per Priority,
// picked with probability proportional to Weights rather than strict
// left-to-right precedence. It generalizes the single-FIFO Redis list
// queue to the core's three-lane weighted model.
type WeightedQueue struct {
	client *redis.Client
	prefix string
	rng    *rand.Rand
}

// NewWeightedQueue creates a Redis-backed weighted queue. prefix namespaces
// the three underlying list keys (e.g. "gen" -> "gen:high", "gen:batch",
// "gen:quality").
func NewWeightedQueue(client *redis.Client, prefix string) (*WeightedQueue, error) {
	if prefix == "" {
		prefix = "gen"
	}

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("NewWeightedQueue: failed to ping Redis: %v", err)
		return nil, err
	}

	return &WeightedQueue{
		client: client,
		prefix: prefix,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

func (q *WeightedQueue) key(p Priority) string {
	return fmt.Sprintf("%s:%s", q.prefix, p)
}

// Enqueue pushes job onto its priority's list via RPUSH.
func (q *WeightedQueue) Enqueue(ctx context.Context, job Job) error {
	if job.Priority == "" {
		job.Priority = PriorityBatch
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}

	data, err := json.Marshal(job)
	if err != nil {
		log.Printf("Enqueue: failed to marshal job: %v", err)
		return err
	}

	key := q.key(job.Priority)
	if err := q.client.RPush(ctx, key, data).Err(); err != nil {
		log.Printf("Enqueue: failed to push to Redis key=%s: %v", key, err)
		return err
	}
	return nil
}

// pickOrder returns the three priorities in a random order weighted by
// Weights: each draw removes one priority from the pool, weighted by its
// remaining share, so a single dequeue attempt tries all three lanes but
// favors the heavier ones first.
func (q *WeightedQueue) pickOrder() []Priority {
	remaining := append([]Priority{}, priorityOrder...)
	order := make([]Priority, 0, len(remaining))

	for len(remaining) > 0 {
		total := 0
		for _, p := range remaining {
			total += Weights[p]
		}
		r := q.rng.Intn(total)
		cursor := 0
		for i, p := range remaining {
			cursor += Weights[p]
			if r < cursor {
				order = append(order, p)
				remaining = append(remaining[:i], remaining[i+1:]...)
				break
			}
		}
	}
	return order
}

// Dequeue returns the next available job, trying lanes in a weighted-random
// order with a non-blocking LPOP first, then falling back to a blocking
// BLPOP across all three keys when every lane is empty. Context
// cancellation unblocks the wait the same way the teacher's single-queue
// Dequeue does: a goroutine races the blocking call against ctx.Done().
func (q *WeightedQueue) Dequeue(ctx context.Context) (Job, error) {
	for {
		for _, p := range q.pickOrder() {
			data, err := q.client.LPop(ctx, q.key(p)).Result()
			if err == redis.Nil {
				continue
			}
			if err != nil {
				log.Printf("Dequeue: LPop failed on key=%s: %v", q.key(p), err)
				return Job{}, err
			}
			var job Job
			if err := json.Unmarshal([]byte(data), &job); err != nil {
				log.Printf("Dequeue: failed to unmarshal job: %v", err)
				return Job{}, err
			}
			return job, nil
		}

		job, err := q.blockingWait(ctx)
		if err != nil {
			return Job{}, err
		}
		if job != nil {
			return *job, nil
		}
		// timed out with nothing available; loop and re-weight.
	}
}

type blpopResult struct {
	val []string
	err error
}

// blockingWait waits up to one second across all three keys (strict Redis
// BLPOP precedence by key order is fine here: it only decides who wins a
// race when two lanes receive a push in the same instant, not the steady
// state weighting, which pickOrder already handles above).
func (q *WeightedQueue) blockingWait(ctx context.Context) (*Job, error) {
	keys := make([]string, len(priorityOrder))
	for i, p := range priorityOrder {
		keys[i] = q.key(p)
	}

	resultChan := make(chan blpopResult, 1)
	go func() {
		val, err := q.client.BLPop(ctx, time.Second, keys...).Result()
		resultChan <- blpopResult{val: val, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultChan:
		if res.err == redis.Nil {
			return nil, nil
		}
		if res.err != nil {
			return nil, res.err
		}
		if len(res.val) < 2 {
			return nil, fmt.Errorf("queue: unexpected BLPOP result shape")
		}
		var job Job
		if err := json.Unmarshal([]byte(res.val[1]), &job); err != nil {
			return nil, err
		}
		return &job, nil
	}
}
