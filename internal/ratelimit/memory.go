package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Memory keeps acquisition times in process memory. State is lost on
// restart.
type Memory struct {
	mu       sync.Mutex
	interval time.Duration
	acquired map[string]time.Time
	now      func() time.Time
}

func NewMemory(interval time.Duration) *Memory {
	return NewMemoryWithClock(interval, time.Now)
}

func NewMemoryWithClock(interval time.Duration, now func() time.Time) *Memory {
	return &Memory{
		interval: interval,
		acquired: make(map[string]time.Time),
		now:      now,
	}
}

func (m *Memory) TryAcquire(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if last, ok := m.acquired[key]; ok && now.Sub(last) < m.interval {
		return false, nil
	}

	m.acquired[key] = now
	m.sweep(now)
	return true, nil
}

func (m *Memory) Release(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.acquired, key)
	m.mu.Unlock()
	return nil
}

// sweep drops keys whose interval has elapsed. Caller holds mu.
func (m *Memory) sweep(now time.Time) {
	for key, last := range m.acquired {
		if now.Sub(last) >= m.interval {
			delete(m.acquired, key)
		}
	}
}
