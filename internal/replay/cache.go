// Package replay tracks consumed signature nonces. A nonce is single use
// within its namespace (key_id and agent_id) for as long as it is retained.
package replay

import (
	"strconv"
	"sync"
	"time"
)

// DefaultWindow is how long a consumed nonce is retained when no window is
// configured.
const DefaultWindow = 24 * time.Hour

type Cache interface {
	// Consume marks nonce as used in namespace. It reports false when the
	// nonce was already consumed. Concurrent calls for the same nonce see
	// exactly one true.
	Consume(namespace, nonce string, now time.Time) (bool, error)
	// Prune forgets nonces whose retention ended before now.
	Prune(now time.Time) (int64, error)
}

// Namespace scopes nonces to a key and the agent it signed for. The key_id
// is length-prefixed so distinct pairs never share a namespace, whatever
// characters either part contains.
func Namespace(keyID, agentID string) string {
	return strconv.Itoa(len(keyID)) + ":" + keyID + "/" + agentID
}

type InMemoryCache struct {
	window time.Duration

	mu     sync.Mutex
	shards map[string]*shard
}

type shard struct {
	mu     sync.Mutex
	nonces map[string]time.Time
}

func NewInMemoryCache(window time.Duration) *InMemoryCache {
	if window <= 0 {
		window = DefaultWindow
	}
	return &InMemoryCache{window: window, shards: make(map[string]*shard)}
}

func (c *InMemoryCache) shard(namespace string) *shard {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.shards[namespace]
	if !ok {
		s = &shard{nonces: make(map[string]time.Time)}
		c.shards[namespace] = s
	}
	return s
}

func (c *InMemoryCache) Consume(namespace, nonce string, now time.Time) (bool, error) {
	s := c.shard(namespace)
	s.mu.Lock()
	defer s.mu.Unlock()
	if retainUntil, ok := s.nonces[nonce]; ok && !retainUntil.Before(now) {
		return false, nil
	}
	s.nonces[nonce] = now.Add(c.window)
	return true, nil
}

func (c *InMemoryCache) Prune(now time.Time) (int64, error) {
	c.mu.Lock()
	shards := make([]*shard, 0, len(c.shards))
	for _, s := range c.shards {
		shards = append(shards, s)
	}
	c.mu.Unlock()

	var purged int64
	for _, s := range shards {
		s.mu.Lock()
		for nonce, retainUntil := range s.nonces {
			if retainUntil.Before(now) {
				delete(s.nonces, nonce)
				purged++
			}
		}
		s.mu.Unlock()
	}
	return purged, nil
}

// Len returns the number of retained nonces.
func (c *InMemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, s := range c.shards {
		s.mu.Lock()
		n += len(s.nonces)
		s.mu.Unlock()
	}
	return n
}
