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

package etcd

import (
	"context"
	"errors"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// memoryMutex is an in-memory stand-in for the etcd primitive shared by
// several initiators
type memoryMutex struct {
	mu         sync.Mutex
	holders    map[string]*token
	nextLease  int64
	refreshErr error
	acquireErr error
	releases   int
}

var _ mutex = (*memoryMutex)(nil)

func newMemoryMutex() *memoryMutex {
	return &memoryMutex{holders: make(map[string]*token)}
}

func (m *memoryMutex) Acquire(_ context.Context, key, value string, _ time.Duration) (*token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.acquireErr != nil {
		return nil, m.acquireErr
	}
	if _, ok := m.holders[key]; ok {
		return nil, errContended
	}
	m.nextLease++
	tok := &token{key: key, value: value, lease: clientv3.LeaseID(m.nextLease)}
	m.holders[key] = tok
	return tok, nil
}

func (m *memoryMutex) Refresh(_ context.Context, tok *token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.refreshErr != nil {
		return m.refreshErr
	}
	if current, ok := m.holders[tok.key]; !ok || current.lease != tok.lease || current.value != tok.value {
		return errLost
	}
	return nil
}

func (m *memoryMutex) Release(_ context.Context, tok *token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releases++
	if current, ok := m.holders[tok.key]; ok && current.lease == tok.lease {
		delete(m.holders, tok.key)
	}
	return nil
}

// holder returns the value of the key, empty when the key is free
func (m *memoryMutex) holder(key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tok, ok := m.holders[key]; ok {
		return tok.value
	}
	return ""
}

// steal replaces the key as if another party had reclaimed it after expiry
func (m *memoryMutex) steal(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextLease++
	m.holders[key] = &token{key: key, value: value, lease: clientv3.LeaseID(m.nextLease)}
}

func (m *memoryMutex) setRefreshErr(err error) {
	m.mu.Lock()
	m.refreshErr = err
	m.mu.Unlock()
}

func (m *memoryMutex) setAcquireErr(err error) {
	m.mu.Lock()
	m.acquireErr = err
	m.mu.Unlock()
}

func (m *memoryMutex) releaseCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.releases
}

var errUnavailable = errors.New("etcdserver: request timed out")
