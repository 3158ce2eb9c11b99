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
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/consul/api"
	"go.uber.org/atomic"

	"github.com/tochemey/goelect/log"
)

// kv is the subset of *api.KV used by the engine
type kv interface {
	Get(key string, q *api.QueryOptions) (*api.KVPair, *api.QueryMeta, error)
	Acquire(p *api.KVPair, q *api.WriteOptions) (bool, *api.WriteMeta, error)
	Release(p *api.KVPair, q *api.WriteOptions) (bool, *api.WriteMeta, error)
}

// sessions is the subset of *api.Session used by the engine
type sessions interface {
	Create(se *api.SessionEntry, q *api.WriteOptions) (string, *api.WriteMeta, error)
	Renew(id string, q *api.WriteOptions) (*api.SessionEntry, *api.WriteMeta, error)
	Destroy(id string, q *api.WriteOptions) (*api.WriteMeta, error)
}

var (
	_ kv       = (*api.KV)(nil)
	_ sessions = (*api.Session)(nil)
)

// errSessionInvalidated is reported when consul no longer knows the session
var errSessionInvalidated = errors.New("consul session was invalidated")

// isSessionError reports whether err means the session or the key is unknown to consul
func isSessionError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, errSessionInvalidated) {
		return true
	}

	var statusErr api.StatusError
	if errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "invalid session")
}

// session is a consul session together with its renewal task.
// lost is closed once a renewal fails, which means anything the session
// held may already belong to someone else.
type session struct {
	id     string
	lost   chan struct{}
	done   chan struct{}
	cancel context.CancelFunc
	failed *atomic.Bool
}

// openSession creates a session and starts renewing it every interval
func openSession(ctx context.Context, client sessions, entry *sessionEntry, interval time.Duration, logger log.Logger) (*session, error) {
	id, _, err := client.Create(entry.build(), writeOptions(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to create consul session: %w", err)
	}

	renewCtx, cancel := context.WithCancel(ctx)
	s := &session{
		id:     id,
		lost:   make(chan struct{}),
		done:   make(chan struct{}),
		cancel: cancel,
		failed: atomic.NewBool(false),
	}

	go s.renew(renewCtx, client, interval, logger)
	return s, nil
}

// renew keeps the session alive until ctx is done or a renewal fails
func (s *session) renew(ctx context.Context, client sessions, interval time.Duration, logger log.Logger) {
	defer close(s.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			entry, _, err := client.Renew(s.id, writeOptions(ctx))
			if ctx.Err() != nil {
				return
			}

			if err == nil && entry == nil {
				err = errSessionInvalidated
			}

			if err != nil {
				logger.Warnf("failed to renew consul session=(%s): %v", s.id, err)
				s.failed.Store(true)
				close(s.lost)
				return
			}
		}
	}
}

// Lost returns a channel closed when the session renewal failed
func (s *session) Lost() <-chan struct{} {
	return s.lost
}

// Failed reports whether the session renewal failed
func (s *session) Failed() bool {
	return s.failed.Load()
}

// close stops the renewal and destroys the session, best effort
func (s *session) close(ctx context.Context, client sessions) error {
	s.cancel()
	<-s.done
	if _, err := client.Destroy(s.id, writeOptions(ctx)); err != nil {
		return fmt.Errorf("failed to destroy consul session=(%s): %w", s.id, err)
	}
	return nil
}

// sessionEntry holds the settings of the sessions created by the engine
type sessionEntry struct {
	name      string
	ttl       time.Duration
	lockDelay time.Duration
	behavior  string
}

func (e *sessionEntry) build() *api.SessionEntry {
	return &api.SessionEntry{
		Name:      e.name,
		TTL:       e.ttl.String(),
		LockDelay: e.lockDelay,
		Behavior:  e.behavior,
	}
}

func writeOptions(ctx context.Context) *api.WriteOptions {
	return (&api.WriteOptions{}).WithContext(ctx)
}
