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

package zookeeper

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/go-zookeeper/zk"
	"github.com/google/uuid"
	"go.uber.org/atomic"
)

// memoryZK is an in-memory stand-in for a ZooKeeper ensemble shared by
// several candidates. Ephemeral nodes belong to a single shared session.
type memoryZK struct {
	mu        sync.Mutex
	nodes     map[string]*memoryNode
	watches   map[string][]chan zk.Event
	lost      chan struct{}
	listErr   error
	deleteErr error
	started   *atomic.Bool
}

type memoryNode struct {
	data      []byte
	ephemeral bool
	counter   int32
}

var _ connection = (*memoryZK)(nil)

func newMemoryZK() *memoryZK {
	return &memoryZK{
		nodes:   map[string]*memoryNode{"/": {}},
		watches: make(map[string][]chan zk.Event),
		lost:    make(chan struct{}),
		started: atomic.NewBool(false),
	}
}

func (m *memoryZK) Start(context.Context) error {
	m.started.Store(true)
	return nil
}

func (m *memoryZK) Started() bool {
	return m.started.Load()
}

func (m *memoryZK) Close() {
	m.started.Store(false)
}

func (m *memoryZK) WatchSessionLoss() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lost
}

func (m *memoryZK) Create(p string, data []byte, _ int32, _ []zk.ACL) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.create(p, data, false)
}

// create must be called with the lock held
func (m *memoryZK) create(p string, data []byte, ephemeral bool) (string, error) {
	if _, ok := m.nodes[p]; ok {
		return "", zk.ErrNodeExists
	}
	if _, ok := m.nodes[path.Dir(p)]; !ok {
		return "", zk.ErrNoNode
	}
	m.nodes[p] = &memoryNode{data: data, ephemeral: ephemeral}
	m.fire(p, zk.EventNodeCreated)
	return p, nil
}

func (m *memoryZK) CreateProtectedEphemeralSequential(p string, data []byte, _ []zk.ACL) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	parent, ok := m.nodes[path.Dir(p)]
	if !ok {
		return "", zk.ErrNoNode
	}

	parent.counter++
	guid := strings.ReplaceAll(uuid.NewString(), "-", "")
	name := fmt.Sprintf("_c_%s-%s%010d", guid, path.Base(p), parent.counter)
	if strings.HasSuffix(p, "/") {
		name = fmt.Sprintf("_c_%s-%010d", guid, parent.counter)
	}
	return m.create(path.Join(path.Dir(p), name), data, true)
}

func (m *memoryZK) Children(p string) ([]string, *zk.Stat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.listErr != nil {
		return nil, nil, m.listErr
	}

	if _, ok := m.nodes[p]; !ok {
		return nil, nil, zk.ErrNoNode
	}

	var children []string
	for candidate := range m.nodes {
		if candidate != "/" && path.Dir(candidate) == p {
			children = append(children, path.Base(candidate))
		}
	}
	sort.Strings(children)
	return children, &zk.Stat{}, nil
}

func (m *memoryZK) ExistsW(p string) (bool, *zk.Stat, <-chan zk.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan zk.Event, 1)
	m.watches[p] = append(m.watches[p], ch)
	_, ok := m.nodes[p]
	return ok, &zk.Stat{}, ch, nil
}

func (m *memoryZK) Get(p string) ([]byte, *zk.Stat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	node, ok := m.nodes[p]
	if !ok {
		return nil, nil, zk.ErrNoNode
	}
	return node.data, &zk.Stat{}, nil
}

func (m *memoryZK) Delete(p string, _ int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.deleteErr != nil {
		return m.deleteErr
	}
	return m.delete(p)
}

// delete must be called with the lock held
func (m *memoryZK) delete(p string) error {
	if _, ok := m.nodes[p]; !ok {
		return zk.ErrNoNode
	}
	for candidate := range m.nodes {
		if candidate != "/" && path.Dir(candidate) == p {
			return zk.ErrNotEmpty
		}
	}
	delete(m.nodes, p)
	m.fire(p, zk.EventNodeDeleted)
	return nil
}

// fire must be called with the lock held
func (m *memoryZK) fire(p string, kind zk.EventType) {
	for _, ch := range m.watches[p] {
		ch <- zk.Event{Type: kind, Path: p}
	}
	delete(m.watches, p)
}

// expire drops the ephemeral nodes and notifies a session loss
func (m *memoryZK) expire() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for p, node := range m.nodes {
		if node.ephemeral {
			_ = m.delete(p)
		}
	}
	close(m.lost)
	m.lost = make(chan struct{})
}

// remove deletes the node of the candidate with the given id
func (m *memoryZK) remove(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for p, node := range m.nodes {
		if node.ephemeral && string(node.data) == id {
			return m.delete(p) == nil
		}
	}
	return false
}

// registered returns the number of candidate nodes
func (m *memoryZK) registered() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, node := range m.nodes {
		if node.ephemeral {
			count++
		}
	}
	return count
}

func (m *memoryZK) exists(p string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.nodes[p]
	return ok
}

func (m *memoryZK) setListErr(err error) {
	m.mu.Lock()
	m.listErr = err
	m.mu.Unlock()
}
