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
	"path"
	"slices"
	"strings"
	"time"

	"github.com/flowchartsman/retry"
	"github.com/go-zookeeper/zk"
	"go.uber.org/atomic"

	"github.com/tochemey/goelect/internal/election"
	"github.com/tochemey/goelect/log"
)

const deleteAttempts = 5

var (
	errNodeGone    = errors.New("candidate node no longer exists")
	errSessionLost = errors.New("zookeeper session lost")
)

// selector implements the ZooKeeper leader election recipe.
//
// Every candidate registers an ephemeral sequential node under the role
// path holding its id. The candidate owning the lowest node leads. Others
// watch the node right before their own so that a single candidate is
// woken up when a node goes away.
type selector struct {
	client        client
	path          string
	id            string
	acl           []zk.ACL
	retryInterval time.Duration
	logger        log.Logger
	leading       *atomic.Bool
}

func newSelector(client client, rolePath, id string, retryInterval time.Duration, logger log.Logger) *selector {
	return &selector{
		client:        client,
		path:          rolePath,
		id:            id,
		acl:           zk.WorldACL(zk.PermAll),
		retryInterval: retryInterval,
		logger:        logger,
		leading:       atomic.NewBool(false),
	}
}

// HasLeadership reports whether the candidate node is currently the lowest one
func (s *selector) HasLeadership() bool {
	return s.leading.Load()
}

// enqueue registers the candidate and returns the path of its node
func (s *selector) enqueue() (string, error) {
	prefix := s.path + "/" + candidatePrefix
	node, err := s.client.CreateProtectedEphemeralSequential(prefix, []byte(s.id), s.acl)
	if errors.Is(err, zk.ErrNoNode) {
		if err := s.createParents(); err != nil {
			return "", err
		}
		node, err = s.client.CreateProtectedEphemeralSequential(prefix, []byte(s.id), s.acl)
	}

	if err != nil {
		return "", fmt.Errorf("failed to create candidate node under %s: %w", s.path, err)
	}

	s.logger.Debugf("candidate node=(%s) created", node)
	return node, nil
}

// createParents creates the role path and its ancestors
func (s *selector) createParents() error {
	components := strings.Split(strings.Trim(s.path, "/"), "/")
	current := ""
	for _, component := range components {
		current += "/" + component
		if _, err := s.client.Create(current, nil, 0, s.acl); err != nil && !errors.Is(err, zk.ErrNodeExists) {
			return fmt.Errorf("failed to create node=(%s): %w", current, err)
		}
	}
	return nil
}

// await blocks until node is the lowest candidate node.
// It returns false when ctx is done, and an error when the node is gone
// or the session lost.
func (s *selector) await(ctx context.Context, node string, sessionLost <-chan struct{}) (bool, error) {
	name := path.Base(node)
	for {
		select {
		case <-ctx.Done():
			return false, nil
		case <-sessionLost:
			return false, errSessionLost
		default:
		}

		nodes, err := s.candidates()
		if err != nil {
			s.logger.Warnf("failed to list candidates: %v", err)
			if !election.Sleep(ctx, s.retryInterval) {
				return false, nil
			}
			continue
		}

		index := slices.IndexFunc(nodes, func(n sequenceNode) bool { return n.name == name })
		if index < 0 {
			return false, errNodeGone
		}

		if index == 0 {
			s.leading.Store(true)
			return true, nil
		}

		predecessor := s.path + "/" + nodes[index-1].name
		exists, _, events, err := s.client.ExistsW(predecessor)
		if err != nil {
			s.logger.Warnf("failed to watch node=(%s): %v", predecessor, err)
			if !election.Sleep(ctx, s.retryInterval) {
				return false, nil
			}
			continue
		}

		if !exists {
			continue
		}

		s.logger.Debugf("waiting for node=(%s) to go away", predecessor)
		select {
		case <-ctx.Done():
			return false, nil
		case <-sessionLost:
			return false, errSessionLost
		case <-events:
		}
	}
}

// watch sets a watch on node. It returns false when the node does not exist.
func (s *selector) watch(node string) (<-chan zk.Event, bool, error) {
	exists, _, events, err := s.client.ExistsW(node)
	if err != nil {
		return nil, false, err
	}
	return events, exists, nil
}

// resign clears the leadership flag
func (s *selector) resign() {
	s.leading.Store(false)
}

// remove deletes node, retrying recoverable errors
func (s *selector) remove(ctx context.Context, node string) error {
	s.resign()
	retrier := retry.NewRetrier(deleteAttempts, s.retryInterval, 10*s.retryInterval)
	return retrier.RunContext(ctx, func(context.Context) error {
		err := s.client.Delete(node, -1)
		switch {
		case err == nil, errors.Is(err, zk.ErrNoNode):
			return nil
		case recoverable(err):
			return err
		default:
			return retry.Stop(err)
		}
	})
}

// candidates returns the candidate nodes sorted by creation
func (s *selector) candidates() ([]sequenceNode, error) {
	children, _, err := s.client.Children(s.path)
	if err != nil {
		if errors.Is(err, zk.ErrNoNode) {
			return nil, nil
		}
		return nil, err
	}

	nodes := parseSequenceNodes(children)
	sortSequenceNodes(nodes)
	return nodes, nil
}

// participants returns the ids of the registered candidates, the leader first
func (s *selector) participants() ([]string, error) {
	nodes, err := s.candidates()
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(nodes))
	for _, node := range nodes {
		data, _, err := s.client.Get(s.path + "/" + node.name)
		if err != nil {
			if errors.Is(err, zk.ErrNoNode) {
				continue
			}
			return nil, err
		}
		ids = append(ids, string(data))
	}
	return ids, nil
}

// recoverable reports whether a failed call is worth retrying
func recoverable(err error) bool {
	switch {
	case errors.Is(err, zk.ErrNoAuth),
		errors.Is(err, zk.ErrNoChildrenForEphemerals),
		errors.Is(err, zk.ErrNotEmpty),
		errors.Is(err, zk.ErrInvalidACL),
		errors.Is(err, zk.ErrAuthFailed):
		return false
	default:
		return true
	}
}
