package webchat

import (
	"sync"
	"time"
)

// ConvManagerOptions configures the in-memory conversation cache.
type ConvManagerOptions struct {
	// EvictIdle is how long an entry may sit untouched before a sweep
	// removes it. Zero disables eviction.
	EvictIdle time.Duration
	// EvictInterval is how often the sweep runs.
	EvictInterval time.Duration
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// ConvManager stores all live conversations keyed by session key.
type ConvManager struct {
	mu    sync.Mutex
	conns map[string]*Conversation
	now   func() time.Time

	evictIdle     time.Duration
	evictInterval time.Duration
	evictRunning  bool
}

func NewConvManager(opts ConvManagerOptions) *ConvManager {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &ConvManager{
		conns:         map[string]*Conversation{},
		now:           now,
		evictIdle:     opts.EvictIdle,
		evictInterval: opts.EvictInterval,
	}
}

// GetOrCreate returns the conversation for key, inserting an empty one on
// miss. The same pointer is returned for repeated calls with the same key.
func (cm *ConvManager) GetOrCreate(key string) *Conversation {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if c, ok := cm.conns[key]; ok {
		return c
	}
	c := &Conversation{Key: key, Turns: []Turn{}, LastActivity: cm.now()}
	cm.conns[key] = c
	return c
}

// Get returns the conversation for key if present.
func (cm *ConvManager) Get(key string) (*Conversation, bool) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	c, ok := cm.conns[key]
	return c, ok
}

// Touch marks the conversation as active now.
func (cm *ConvManager) Touch(key string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if c, ok := cm.conns[key]; ok {
		c.LastActivity = cm.now()
	}
}

// Delete removes the conversation for key. No-op when absent.
func (cm *ConvManager) Delete(key string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	delete(cm.conns, key)
}

// Len reports the number of live conversations.
func (cm *ConvManager) Len() int {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return len(cm.conns)
}
