package webchat

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// SetEvictionConfig adjusts the idle threshold and sweep interval.
func (cm *ConvManager) SetEvictionConfig(idle, interval time.Duration) {
	if cm == nil {
		return
	}
	cm.mu.Lock()
	cm.evictIdle = idle
	cm.evictInterval = interval
	cm.mu.Unlock()
}

// StartEvictionLoop runs the sweep on a ticker until ctx is cancelled.
// Calling it twice is a no-op while a loop is already running.
func (cm *ConvManager) StartEvictionLoop(ctx context.Context) {
	if cm == nil {
		return
	}
	if ctx == nil {
		panic("webchat: StartEvictionLoop requires non-nil ctx")
	}
	cm.mu.Lock()
	if cm.evictRunning {
		cm.mu.Unlock()
		return
	}
	idle := cm.evictIdle
	interval := cm.evictInterval
	if idle <= 0 || interval <= 0 {
		cm.mu.Unlock()
		return
	}
	cm.evictRunning = true
	cm.mu.Unlock()

	go cm.runEvictionLoop(ctx, interval)
}

func (cm *ConvManager) runEvictionLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			cm.mu.Lock()
			cm.evictRunning = false
			cm.mu.Unlock()
			return
		case now := <-ticker.C:
			if n := cm.EvictIdleOnce(now); n > 0 {
				log.Debug().Int("evicted", n).Msg("swept idle conversations")
			}
		}
	}
}

// EvictIdleOnce removes every conversation whose last activity is older
// than the idle threshold. An entry idle for exactly the threshold is
// preserved. Returns the number of evicted entries.
func (cm *ConvManager) EvictIdleOnce(now time.Time) int {
	if cm == nil {
		return 0
	}
	if now.IsZero() {
		now = cm.now()
	}

	cm.mu.Lock()
	defer cm.mu.Unlock()
	idle := cm.evictIdle
	if idle <= 0 {
		return 0
	}

	evicted := 0
	for key, conv := range cm.conns {
		if conv == nil || conv.LastActivity.IsZero() {
			continue
		}
		if now.Sub(conv.LastActivity) > idle {
			delete(cm.conns, key)
			evicted++
		}
	}
	return evicted
}
