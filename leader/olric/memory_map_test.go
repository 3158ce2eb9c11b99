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

package olric

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memoryMap is an in-memory stand-in for an olric map with expiring locks
type memoryMap struct {
	mu      sync.Mutex
	values  map[string]string
	locks   map[string]*memoryLockEntry
	leaseFn func() error
	lockErr error
	deletes int
}

type memoryLockEntry struct {
	token   string
	expires time.Time
}

var _ lockMap = (*memoryMap)(nil)

func newMemoryMap() *memoryMap {
	return &memoryMap{
		values: make(map[string]string),
		locks:  make(map[string]*memoryLockEntry),
	}
}

// expired must be called with the lock held
func (m *memoryMap) expired(key string) bool {
	entry, ok := m.locks[key]
	if !ok {
		return true
	}
	if time.Now().After(entry.expires) {
		delete(m.locks, key)
		return true
	}
	return false
}

func (m *memoryMap) Lock(ctx context.Context, key string, lease, wait time.Duration) (lockHandle, error) {
	deadline := time.NewTimer(wait)
	defer deadline.Stop()
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	for {
		m.mu.Lock()
		if m.lockErr != nil {
			err := m.lockErr
			m.mu.Unlock()
			return nil, err
		}
		if m.expired(key) {
			token := uuid.NewString()
			m.locks[key] = &memoryLockEntry{token: token, expires: time.Now().Add(lease)}
			m.mu.Unlock()
			return &memoryLock{store: m, key: key, token: token}, nil
		}
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, errContended
		case <-ticker.C:
		}
	}
}

func (m *memoryMap) Put(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *memoryMap) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry, ok := m.locks[key]; ok && !m.expired(key) {
		return entry.token, true, nil
	}
	value, ok := m.values[key]
	return value, ok, nil
}

func (m *memoryMap) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes++
	delete(m.values, key)
	return nil
}

// breakLock drops the lock as if its lease had expired
func (m *memoryMap) breakLock(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, key)
}

func (m *memoryMap) locked(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.expired(key)
}

func (m *memoryMap) value(key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[key]
}

func (m *memoryMap) setLeaseFn(fn func() error) {
	m.mu.Lock()
	m.leaseFn = fn
	m.mu.Unlock()
}

func (m *memoryMap) setLockErr(err error) {
	m.mu.Lock()
	m.lockErr = err
	m.mu.Unlock()
}

type memoryLock struct {
	store *memoryMap
	key   string
	token string
}

func (l *memoryLock) Lease(_ context.Context, lease time.Duration) error {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	if l.store.leaseFn != nil {
		if err := l.store.leaseFn(); err != nil {
			return err
		}
	}

	entry, ok := l.store.locks[l.key]
	if !ok || entry.token != l.token || l.store.expired(l.key) {
		return errLost
	}
	entry.expires = time.Now().Add(lease)
	return nil
}

func (l *memoryLock) Unlock(_ context.Context) error {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	if entry, ok := l.store.locks[l.key]; ok && entry.token == l.token {
		delete(l.store.locks, l.key)
	}
	return nil
}

var errUnavailable = errors.New("olric: no available members")
