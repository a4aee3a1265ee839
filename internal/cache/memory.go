package cache

import (
	"context"
	"path/filepath"
	"sync"
)

// MemoryLayer is an in-process Layer used in tests and as a degraded-mode
// fallback, guarded the same way AgentCache guards its map.
type MemoryLayer struct {
	mutex     sync.RWMutex
	values    map[string][]byte
	published []PublishedMessage
	subs      map[string][]chan []byte
}

// PublishedMessage records a Publish call for assertions in tests.
type PublishedMessage struct {
	Channel string
	Payload []byte
}

func NewMemoryLayer() *MemoryLayer {
	return &MemoryLayer{values: make(map[string][]byte), subs: make(map[string][]chan []byte)}
}

func (m *MemoryLayer) Get(ctx context.Context, ns Namespace, key string) ([]byte, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	val, ok := m.values[namespacedKey(ns, key)]
	return val, ok
}

func (m *MemoryLayer) Set(ctx context.Context, ns Namespace, key string, value []byte) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.values[namespacedKey(ns, key)] = value
	return nil
}

func (m *MemoryLayer) Delete(ctx context.Context, ns Namespace, key string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.values, namespacedKey(ns, key))
	return nil
}

func (m *MemoryLayer) DeletePattern(ctx context.Context, ns Namespace, pattern string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	full := namespacedKey(ns, pattern)
	for k := range m.values {
		if ok, _ := filepath.Match(full, k); ok {
			delete(m.values, k)
		}
	}
	return nil
}

func (m *MemoryLayer) Publish(ctx context.Context, channel string, payload []byte) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.published = append(m.published, PublishedMessage{Channel: channel, Payload: payload})
	for _, ch := range m.subs[channel] {
		select {
		case ch <- payload:
		default:
			// subscriber not keeping up; drop rather than block the publisher
		}
	}
	return nil
}

// Published returns every message Publish has recorded, for test assertions.
func (m *MemoryLayer) Published() []PublishedMessage {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	out := make([]PublishedMessage, len(m.published))
	copy(out, m.published)
	return out
}

// Subscribe registers a buffered channel against channel, fed by future
// Publish calls; the returned cancel func unregisters and closes it.
func (m *MemoryLayer) Subscribe(ctx context.Context, channel string) (<-chan []byte, func(), error) {
	ch := make(chan []byte, 32)
	m.mutex.Lock()
	m.subs[channel] = append(m.subs[channel], ch)
	m.mutex.Unlock()

	cancel := func() {
		m.mutex.Lock()
		defer m.mutex.Unlock()
		chs := m.subs[channel]
		for i, c := range chs {
			if c == ch {
				m.subs[channel] = append(chs[:i], chs[i+1:]...)
				close(c)
				break
			}
		}
	}
	return ch, cancel, nil
}
