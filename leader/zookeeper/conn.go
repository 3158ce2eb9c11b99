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
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-zookeeper/zk"
	"go.uber.org/atomic"

	gerrors "github.com/tochemey/goelect/errors"
	"github.com/tochemey/goelect/log"
)

// client is the set of ZooKeeper calls the election recipe relies on
type client interface {
	Create(path string, data []byte, flags int32, acl []zk.ACL) (string, error)
	CreateProtectedEphemeralSequential(path string, data []byte, acl []zk.ACL) (string, error)
	Children(path string) ([]string, *zk.Stat, error)
	ExistsW(path string) (bool, *zk.Stat, <-chan zk.Event, error)
	Get(path string) ([]byte, *zk.Stat, error)
	Delete(path string, version int32) error
	// WatchSessionLoss returns a one-shot channel closed when the session
	// expired or may have expired
	WatchSessionLoss() <-chan struct{}
}

// connection is a client whose lifecycle can be driven by the engine
type connection interface {
	client
	Start(ctx context.Context) error
	Started() bool
	Close()
}

// Conn is a ZooKeeper connection manager.
//
// The connection is dialed by Start. Conn watches the session and reports a
// loss when the session expired or the connection was down for longer than
// the session could survive.
type Conn struct {
	servers        []string
	sessionTimeout time.Duration
	logger         log.Logger

	lifecycle sync.Mutex
	mu        sync.Mutex
	conn      *zk.Conn
	lost      chan struct{}
	started   *atomic.Bool
	done      chan struct{}
}

var _ connection = (*Conn)(nil)

// NewConn creates a connection manager. Nothing is dialed until Start.
func NewConn(servers []string, sessionTimeout time.Duration, logger log.Logger) *Conn {
	if sessionTimeout <= 0 {
		sessionTimeout = defaultSessionTimeout
	}
	if logger == nil {
		logger = log.DefaultLogger
	}

	return &Conn{
		servers:        servers,
		sessionTimeout: sessionTimeout,
		logger:         logger,
		lost:           make(chan struct{}),
		started:        atomic.NewBool(false),
	}
}

// Start dials the servers and waits for a session, at most the session
// timeout. Calling Start on a started connection is a no-op.
func (c *Conn) Start(ctx context.Context) error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	if c.started.Load() {
		return nil
	}

	if len(c.servers) == 0 {
		return gerrors.NewErrInvalidConfig(errors.New("the [Servers] is required"))
	}

	conn, events, err := zk.Connect(c.servers, c.sessionTimeout, zk.WithLogger(&zkLogger{logger: c.logger}))
	if err != nil {
		return fmt.Errorf("failed to connect to zookeeper: %w", err)
	}

	connected := make(chan struct{})
	done := make(chan struct{})
	go c.watch(conn, events, connected, done)

	ctx, cancel := context.WithTimeout(ctx, c.sessionTimeout)
	defer cancel()

	select {
	case <-connected:
	case <-ctx.Done():
		conn.Close()
		<-done
		c.logger.Warnf("no zookeeper session established with servers=%v within %s", c.servers, c.sessionTimeout)
		return fmt.Errorf("failed to establish a zookeeper session: %w", ctx.Err())
	}

	c.mu.Lock()
	c.conn = conn
	c.done = done
	c.mu.Unlock()
	c.started.Store(true)
	c.logger.Infof("zookeeper session established with servers=%v", c.servers)
	return nil
}

// Started reports whether the connection has been started and not closed
func (c *Conn) Started() bool {
	return c.started.Load()
}

// Close closes the connection. Pending session watchers are notified.
func (c *Conn) Close() {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	if !c.started.Load() {
		return
	}

	c.started.Store(false)
	c.mu.Lock()
	conn, done := c.conn, c.done
	c.conn = nil
	c.mu.Unlock()

	conn.Close()
	<-done
}

// WatchSessionLoss returns a one-shot channel closed on the next session loss
func (c *Conn) WatchSessionLoss() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lost
}

// Create implements client
func (c *Conn) Create(path string, data []byte, flags int32, acl []zk.ACL) (string, error) {
	conn, err := c.client()
	if err != nil {
		return "", err
	}
	return conn.Create(path, data, flags, acl)
}

// CreateProtectedEphemeralSequential implements client
func (c *Conn) CreateProtectedEphemeralSequential(path string, data []byte, acl []zk.ACL) (string, error) {
	conn, err := c.client()
	if err != nil {
		return "", err
	}
	return conn.CreateProtectedEphemeralSequential(path, data, acl)
}

// Children implements client
func (c *Conn) Children(path string) ([]string, *zk.Stat, error) {
	conn, err := c.client()
	if err != nil {
		return nil, nil, err
	}
	return conn.Children(path)
}

// ExistsW implements client
func (c *Conn) ExistsW(path string) (bool, *zk.Stat, <-chan zk.Event, error) {
	conn, err := c.client()
	if err != nil {
		return false, nil, nil, err
	}
	return conn.ExistsW(path)
}

// Get implements client
func (c *Conn) Get(path string) ([]byte, *zk.Stat, error) {
	conn, err := c.client()
	if err != nil {
		return nil, nil, err
	}
	return conn.Get(path)
}

// Delete implements client
func (c *Conn) Delete(path string, version int32) error {
	conn, err := c.client()
	if err != nil {
		return err
	}
	return conn.Delete(path, version)
}

func (c *Conn) client() (*zk.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil, gerrors.ErrNotStarted
	}
	return c.conn, nil
}

// publish notifies the current session watchers
func (c *Conn) publish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	close(c.lost)
	c.lost = make(chan struct{})
}

// watch follows the session events until the event channel is closed.
// A disconnection is a loss once the session timeout elapsed without a
// reconnection, the server being free to expire the session by then.
func (c *Conn) watch(conn *zk.Conn, events <-chan zk.Event, connected, done chan struct{}) {
	defer close(done)
	defer c.publish()

	var (
		once     sync.Once
		deadline <-chan time.Time
		session  int64
	)

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}

			if event.Type != zk.EventSession {
				continue
			}

			switch event.State {
			case zk.StateHasSession:
				deadline = nil
				once.Do(func() { close(connected) })
				current := conn.SessionID()
				if session != 0 && session != current {
					// a new session means the previous one expired
					c.logger.Warnf("zookeeper session=(%d) replaced by session=(%d)", session, current)
					c.publish()
				}
				session = current
			case zk.StateDisconnected:
				if deadline == nil {
					deadline = time.After(c.sessionTimeout)
				}
			case zk.StateExpired:
				c.logger.Warnf("zookeeper session=(%d) expired", session)
				deadline = nil
				c.publish()
			default:
			}
		case <-deadline:
			c.logger.Warnf("zookeeper disconnected for more than %s, assuming session=(%d) lost", c.sessionTimeout, session)
			deadline = nil
			c.publish()
		}
	}
}

// zkLogger writes the ZooKeeper client logs at the debug level,
// connection failures at the warn level
type zkLogger struct {
	logger log.Logger
}

var _ zk.Logger = (*zkLogger)(nil)

func (l *zkLogger) Printf(format string, args ...any) {
	if strings.HasPrefix(strings.ToLower(format), "failed to connect") {
		l.logger.Warnf(format, args...)
		return
	}
	l.logger.Debugf(format, args...)
}
