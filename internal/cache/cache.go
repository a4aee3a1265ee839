// Package cache provides a namespaced, TTL-aware key/value cache and
// pub/sub layer backed by Redis, with graceful degradation when Redis is
// unreachable.
package cache

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Namespace groups cache keys by concern so TTLs and invalidation can be
// tuned per concern independent of key naming collisions.
type Namespace string

const (
	NamespaceRAGSearch     Namespace = "rag_search"
	NamespaceRAGEmbeddings Namespace = "rag_embeddings"
	NamespaceKnowledgeList Namespace = "knowledge_docs_list"
	NamespaceAnalyticsOrg  Namespace = "analytics_org"
	NamespaceAnalyticsUser Namespace = "analytics_user"
	NamespaceGenerationRes Namespace = "generation_result"
	NamespacePubSub        Namespace = "pubsub_channel"
	NamespaceProgress      Namespace = "progress_channel"
)

// TTL durations per namespace, mirrored from the cache namespaces/TTLs used
// by the system this core was distilled from.
var TTL = map[Namespace]time.Duration{
	NamespaceRAGSearch:     30 * time.Minute,
	NamespaceRAGEmbeddings: 24 * time.Hour,
	NamespaceKnowledgeList: time.Hour,
	NamespaceAnalyticsOrg:  5 * time.Minute,
	NamespaceAnalyticsUser: 15 * time.Minute,
	NamespaceGenerationRes: 7 * 24 * time.Hour,
}

// Layer is the cache/pub-sub contract the rest of the core depends on.
// Implementations must tolerate a down backend without returning errors
// that would abort the caller's request path; Get returning (nil, false)
// is indistinguishable from a miss whether the key was absent or the
// backend was unreachable.
type Layer interface {
	Get(ctx context.Context, ns Namespace, key string) ([]byte, bool)
	Set(ctx context.Context, ns Namespace, key string, value []byte) error
	Delete(ctx context.Context, ns Namespace, key string) error
	DeletePattern(ctx context.Context, ns Namespace, pattern string) error
	Publish(ctx context.Context, channel string, payload []byte) error
	// Subscribe returns a channel of payloads published to channel and an
	// unsubscribe function the caller must invoke when done listening.
	Subscribe(ctx context.Context, channel string) (<-chan []byte, func(), error)
}

// RedisLayer implements Layer over a go-redis client, namespacing keys as
// "<namespace>:<key>" and degrading to no-ops on connection failure rather
// than propagating Redis errors into request paths that do not need them.
type RedisLayer struct {
	client *redis.Client
}

// NewRedisLayer creates a client from REDIS_ADDR/REDIS_DB/REDIS_PASSWORD
// environment variables, matching the niski84-the-hive connection idiom.
func NewRedisLayer(ctx context.Context) (*RedisLayer, error) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "127.0.0.1:6379"
	}
	dbStr := os.Getenv("REDIS_DB")
	if dbStr == "" {
		dbStr = "0"
	}
	db, err := strconv.Atoi(dbStr)
	if err != nil {
		log.Printf("cache: invalid REDIS_DB value %q, using default 0", dbStr)
		db = 0
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		DB:       db,
		Password: os.Getenv("REDIS_PASSWORD"),
	})

	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("cache: failed to ping Redis at %s: %v", addr, err)
		return nil, err
	}

	log.Printf("cache: connected to Redis at %s db=%d", addr, db)
	return &RedisLayer{client: client}, nil
}

func namespacedKey(ns Namespace, key string) string {
	return string(ns) + ":" + key
}

func (c *RedisLayer) Get(ctx context.Context, ns Namespace, key string) ([]byte, bool) {
	val, err := c.client.Get(ctx, namespacedKey(ns, key)).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("cache: get %s failed: %v", namespacedKey(ns, key), err)
		}
		return nil, false
	}
	return val, true
}

func (c *RedisLayer) Set(ctx context.Context, ns Namespace, key string, value []byte) error {
	ttl := TTL[ns]
	if err := c.client.Set(ctx, namespacedKey(ns, key), value, ttl).Err(); err != nil {
		log.Printf("cache: set %s failed: %v", namespacedKey(ns, key), err)
		return nil // graceful degradation: caller proceeds without caching
	}
	return nil
}

func (c *RedisLayer) Delete(ctx context.Context, ns Namespace, key string) error {
	if err := c.client.Del(ctx, namespacedKey(ns, key)).Err(); err != nil {
		log.Printf("cache: delete %s failed: %v", namespacedKey(ns, key), err)
	}
	return nil
}

func (c *RedisLayer) DeletePattern(ctx context.Context, ns Namespace, pattern string) error {
	iter := c.client.Scan(ctx, 0, namespacedKey(ns, pattern), 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		log.Printf("cache: scan pattern %s failed: %v", pattern, err)
		return nil
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		log.Printf("cache: delete pattern %s failed: %v", pattern, err)
	}
	return nil
}

func (c *RedisLayer) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := c.client.Publish(ctx, channel, payload).Err(); err != nil {
		log.Printf("cache: publish to %s failed: %v", channel, err)
	}
	return nil
}

// Subscribe forwards payloads from Redis's pub/sub channel onto a buffered
// Go channel until ctx is cancelled or the returned cancel func is called.
func (c *RedisLayer) Subscribe(ctx context.Context, channel string) (<-chan []byte, func(), error) {
	sub := c.client.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, nil, fmt.Errorf("cache: subscribe to %s failed: %w", channel, err)
	}

	out := make(chan []byte, 32)
	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			select {
			case out <- []byte(msg.Payload):
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, func() { sub.Close() }, nil
}
