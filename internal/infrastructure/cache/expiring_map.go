package cache

import (
	"sync"
	"time"
)

type expiringValue struct {
	value     []byte
	expiresAt time.Time
}

// expiringMap is a mutex-guarded map whose entries lapse after their TTL.
// A background loop sweeps expired keys until close.
type expiringMap struct {
	mu      sync.Mutex
	entries map[string]expiringValue
	now     func() time.Time

	stop      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func newExpiringMap(sweepEvery time.Duration) *expiringMap {
	m := &expiringMap{
		entries: make(map[string]expiringValue),
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	m.wg.Add(1)
	go m.sweepLoop(sweepEvery)
	return m
}

// get returns the live value for key
func (m *expiringMap) get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok || !m.now().Before(e.expiresAt) {
		return nil, false
	}
	return e.value, true
}

// setNX stores value unless a live entry exists
func (m *expiringMap) setNX(key string, value []byte, ttl time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if e, ok := m.entries[key]; ok && now.Before(e.expiresAt) {
		return false
	}
	m.entries[key] = expiringValue{value: value, expiresAt: now.Add(ttl)}
	return true
}

func (m *expiringMap) set(key string, value []byte, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = expiringValue{value: value, expiresAt: m.now().Add(ttl)}
}

func (m *expiringMap) del(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
}

func (m *expiringMap) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *expiringMap) sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for k, e := range m.entries {
		if !now.Before(e.expiresAt) {
			delete(m.entries, k)
		}
	}
}

func (m *expiringMap) sweepLoop(every time.Duration) {
	defer m.wg.Done()
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *expiringMap) close() {
	m.closeOnce.Do(func() {
		close(m.stop)
		m.wg.Wait()
	})
}
