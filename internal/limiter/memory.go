package limiter

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	fails        int
	updated      time.Time
	blockedUntil time.Time
}

// Memory is an in-process limiter for a replica without a database.
type Memory struct {
	mu       sync.Mutex
	peers    map[string]*entry
	window   time.Duration
	maxFails int
	blockFor time.Duration
	now      func() time.Time
}

// NewMemory mirrors NewPG without persistence.
func NewMemory(window time.Duration, maxFails int, blockFor time.Duration) *Memory {
	return &Memory{
		peers:    make(map[string]*entry),
		window:   window,
		maxFails: maxFails,
		blockFor: blockFor,
		now:      time.Now,
	}
}

func (m *Memory) Allow(_ context.Context, peer []byte) (bool, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.peers[string(peer)]
	if !ok {
		return true, 0, nil
	}
	if now := m.now(); e.blockedUntil.After(now) {
		return false, e.blockedUntil.Sub(now), nil
	}
	return true, 0, nil
}

func (m *Memory) Failure(_ context.Context, peer []byte) (bool, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	e, ok := m.peers[string(peer)]
	if !ok || now.Sub(e.updated) > m.window {
		e = &entry{}
		m.peers[string(peer)] = e
	}
	e.fails++
	e.updated = now
	if e.fails >= m.maxFails {
		e.blockedUntil = now.Add(m.blockFor)
		return true, m.blockFor, nil
	}
	return false, 0, nil
}
