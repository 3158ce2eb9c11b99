/*
 * MIT License
 *
 * Copyright (c) 2022-2025  Arsene Tochemey Gandote
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

package consul

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/consul/api"
)

// memoryConsul is an in-memory stand-in for the consul KV and session
// endpoints, blocking reads included
type memoryConsul struct {
	mu       sync.Mutex
	index    uint64
	changed  chan struct{}
	pairs    map[string]*api.KVPair
	sessions map[string]*api.SessionEntry

	acquireErr    error
	renewErr      error
	creates       int
	destroys      int
	blockingReads int

	// keys of invalidated sessions cannot be acquired until their delay ends
	lockDelay time.Duration
	delayed   map[string]time.Time
}

var (
	_ kv       = (*memoryConsul)(nil)
	_ sessions = (*memoryConsul)(nil)
)

func newMemoryConsul() *memoryConsul {
	return &memoryConsul{
		index:    1,
		changed:  make(chan struct{}),
		pairs:    make(map[string]*api.KVPair),
		sessions: make(map[string]*api.SessionEntry),
		delayed:  make(map[string]time.Time),
	}
}

// bump must be called with the lock held
func (m *memoryConsul) bump() {
	m.index++
	close(m.changed)
	m.changed = make(chan struct{})
}

func (m *memoryConsul) Get(key string, q *api.QueryOptions) (*api.KVPair, *api.QueryMeta, error) {
	ctx := q.Context()
	var timeout <-chan time.Time
	if q.WaitIndex > 0 {
		timer := time.NewTimer(q.WaitTime)
		defer timer.Stop()
		timeout = timer.C

		m.mu.Lock()
		m.blockingReads++
		m.mu.Unlock()
	}

	for {
		m.mu.Lock()
		if q.WaitIndex == 0 || m.index > q.WaitIndex {
			pair, meta := m.read(key)
			m.mu.Unlock()
			return pair, meta, nil
		}
		changed := m.changed
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-timeout:
			m.mu.Lock()
			pair, meta := m.read(key)
			m.mu.Unlock()
			return pair, meta, nil
		case <-changed:
		}
	}
}

// read must be called with the lock held
func (m *memoryConsul) read(key string) (*api.KVPair, *api.QueryMeta) {
	meta := &api.QueryMeta{LastIndex: m.index}
	pair, ok := m.pairs[key]
	if !ok {
		return nil, meta
	}
	clone := *pair
	return &clone, meta
}

func (m *memoryConsul) Acquire(p *api.KVPair, _ *api.WriteOptions) (bool, *api.WriteMeta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.acquireErr != nil {
		return false, nil, m.acquireErr
	}

	if _, ok := m.sessions[p.Session]; !ok {
		return false, nil, fmt.Errorf("Unexpected response code: 500 (invalid session %q)", p.Session)
	}

	if current, ok := m.pairs[p.Key]; ok && current.Session != "" && current.Session != p.Session {
		return false, &api.WriteMeta{}, nil
	}

	if until, ok := m.delayed[p.Key]; ok && time.Now().Before(until) {
		return false, &api.WriteMeta{}, nil
	}

	m.pairs[p.Key] = &api.KVPair{Key: p.Key, Value: p.Value, Session: p.Session}
	m.bump()
	return true, &api.WriteMeta{}, nil
}

func (m *memoryConsul) Release(p *api.KVPair, _ *api.WriteOptions) (bool, *api.WriteMeta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.pairs[p.Key]
	if !ok || current.Session != p.Session {
		return false, &api.WriteMeta{}, nil
	}

	current.Session = ""
	m.bump()
	return true, &api.WriteMeta{}, nil
}

func (m *memoryConsul) Create(se *api.SessionEntry, _ *api.WriteOptions) (string, *api.WriteMeta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.NewString()
	entry := *se
	entry.ID = id
	m.sessions[id] = &entry
	m.creates++
	return id, &api.WriteMeta{}, nil
}

func (m *memoryConsul) Renew(id string, _ *api.WriteOptions) (*api.SessionEntry, *api.WriteMeta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.renewErr != nil {
		return nil, nil, m.renewErr
	}

	entry, ok := m.sessions[id]
	if !ok {
		return nil, &api.WriteMeta{}, nil
	}
	clone := *entry
	return &clone, &api.WriteMeta{}, nil
}

func (m *memoryConsul) Destroy(id string, _ *api.WriteOptions) (*api.WriteMeta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.destroys++
	m.invalidate(id)
	return &api.WriteMeta{}, nil
}

// invalidate must be called with the lock held
func (m *memoryConsul) invalidate(id string) {
	if _, ok := m.sessions[id]; !ok {
		return
	}

	delete(m.sessions, id)
	for key, pair := range m.pairs {
		if pair.Session == id {
			pair.Session = ""
			if m.lockDelay > 0 {
				m.delayed[key] = time.Now().Add(m.lockDelay)
			}
		}
	}
	m.bump()
}

// expire invalidates the session holding the key as consul does when a TTL elapses
func (m *memoryConsul) expire(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if pair, ok := m.pairs[key]; ok {
		m.invalidate(pair.Session)
	}
}

// steal hands the key over to a foreign session
func (m *memoryConsul) steal(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.NewString()
	m.sessions[id] = &api.SessionEntry{ID: id}
	m.pairs[key] = &api.KVPair{Key: key, Value: []byte(value), Session: id}
	m.bump()
}

// holder returns the value of the key when a session holds it
func (m *memoryConsul) holder(key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if pair, ok := m.pairs[key]; ok && pair.Session != "" {
		return string(pair.Value)
	}
	return ""
}

func (m *memoryConsul) setAcquireErr(err error) {
	m.mu.Lock()
	m.acquireErr = err
	m.mu.Unlock()
}

func (m *memoryConsul) setLockDelay(delay time.Duration) {
	m.mu.Lock()
	m.lockDelay = delay
	m.mu.Unlock()
}

func (m *memoryConsul) setRenewErr(err error) {
	m.mu.Lock()
	m.renewErr = err
	m.mu.Unlock()
}

func (m *memoryConsul) stats() (creates, destroys, blockingReads, live int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creates, m.destroys, m.blockingReads, len(m.sessions)
}

var errUnavailable = errors.New("Unexpected response code: 503 (No cluster leader)")

func cancelled() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}
