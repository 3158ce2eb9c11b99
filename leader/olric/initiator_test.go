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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	gerrors "github.com/tochemey/goelect/errors"
	"github.com/tochemey/goelect/internal/testutil"
	"github.com/tochemey/goelect/leader"
	"github.com/tochemey/goelect/log"
)

const (
	role    = "scheduler"
	lockKey = role + ".lock"
)

func testConfig() *Config {
	return &Config{
		LockLease:        time.Second,
		LockWait:         100 * time.Millisecond,
		RenewalInterval:  50 * time.Millisecond,
		RetryInterval:    50 * time.Millisecond,
		YieldBackoff:     300 * time.Millisecond,
		OperationTimeout: time.Second,
		ShutdownTimeout:  5 * time.Second,
		Logger:           log.DiscardLogger,
	}
}

func newTestInitiator(t *testing.T, store *memoryMap, id string) (*Initiator, *testutil.Candidate) {
	t.Helper()
	candidate := testutil.NewCandidate(id, role)
	initiator, err := newInitiator(store, candidate, testConfig())
	require.NoError(t, err)
	return initiator, candidate
}

func TestInitiator(t *testing.T) {
	t.Run("With single candidate acquiring and stopping", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		ctx := context.Background()
		store := newMemoryMap()
		initiator, candidate := newTestInitiator(t, store, "node-1")

		mailbox := leader.NewMailbox()
		defer mailbox.Close()
		publisher := leader.NewEventPublisher(log.DiscardLogger)
		publisher.Subscribe(mailbox)
		initiator.SetLeaderEventPublisher(publisher)

		require.NoError(t, initiator.Start(ctx))
		require.Eventually(t, initiator.IsLeader, 2*time.Second, 10*time.Millisecond)
		require.Eventually(t, candidate.Granted, time.Second, 10*time.Millisecond)
		assert.Equal(t, "node-1", store.value(role))
		assert.True(t, store.locked(lockKey))

		event, ok := mailbox.Next(time.Second)
		require.True(t, ok)
		assert.Equal(t, leader.EventGranted, event.Type())
		assert.Equal(t, Backend, event.Backend())

		// the lease is renewed past its initial expiry
		time.Sleep(1500 * time.Millisecond)
		assert.True(t, initiator.IsLeader())

		require.NoError(t, initiator.Stop(ctx))
		assert.False(t, initiator.IsLeader())
		assert.Equal(t, leader.Stopped, initiator.State())
		assert.Empty(t, store.value(role))
		assert.False(t, store.locked(lockKey))

		event, ok = mailbox.Next(time.Second)
		require.True(t, ok)
		assert.Equal(t, leader.EventRevoked, event.Type())
		require.NoError(t, candidate.Verify())
	})
	t.Run("With leadership read from the map", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		ctx := context.Background()
		store := newMemoryMap()
		initiator, candidate := newTestInitiator(t, store, "node-1")

		require.NoError(t, initiator.Start(ctx))
		require.Eventually(t, candidate.Granted, 2*time.Second, 10*time.Millisecond)

		// the marker no longer names the candidate
		require.NoError(t, store.Put(ctx, role, "node-2"))
		assert.False(t, initiator.IsLeader())
		require.NoError(t, store.Put(ctx, role, "node-1"))
		assert.True(t, initiator.IsLeader())

		// the lock expired and another member holds it now
		store.breakLock(lockKey)
		other, err := store.Lock(ctx, lockKey, 10*time.Second, 100*time.Millisecond)
		require.NoError(t, err)
		assert.Equal(t, "node-1", store.value(role))
		assert.False(t, initiator.IsLeader())
		require.Eventually(t, func() bool { return candidate.Revokes() >= 1 }, 2*time.Second, 10*time.Millisecond)
		require.NoError(t, other.Unlock(ctx))
		require.Eventually(t, func() bool { return candidate.Grants() >= 2 }, 2*time.Second, 10*time.Millisecond)

		// the lock vanished: the renewal detects it
		store.breakLock(lockKey)
		assert.False(t, initiator.IsLeader())
		require.Eventually(t, func() bool { return candidate.Revokes() >= 2 }, 2*time.Second, 10*time.Millisecond)

		require.NoError(t, initiator.Stop(ctx))
		require.NoError(t, candidate.Verify())
	})
	t.Run("With mutual exclusion and yield handover", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		ctx := context.Background()
		store := newMemoryMap()

		var contenders []testutil.Contender
		candidates := make(map[string]*testutil.Candidate)
		for _, id := range []string{"node-1", "node-2", "node-3"} {
			initiator, candidate := newTestInitiator(t, store, id)
			require.NoError(t, initiator.Start(ctx))
			contenders = append(contenders, testutil.Contender{ID: id, Initiator: initiator})
			candidates[id] = candidate
		}

		require.Eventually(t, func() bool { return testutil.Leader(contenders...) != nil }, 2*time.Second, 10*time.Millisecond)
		observed := testutil.SampleLeaders(t, 300*time.Millisecond, contenders...)
		require.Equal(t, 1, observed.Cardinality())

		first := testutil.Leader(contenders...)
		require.NotNil(t, first)
		candidates[first.ID].Yield()

		require.Eventually(t, func() bool {
			current := testutil.Leader(contenders...)
			return current != nil && current.ID != first.ID
		}, 2*time.Second, 10*time.Millisecond)

		for _, contender := range contenders {
			require.NoError(t, contender.Initiator.Stop(ctx))
		}
		for id, candidate := range candidates {
			require.NoError(t, candidate.Verify(), id)
			assert.Equal(t, candidate.Grants(), candidate.Revokes(), id)
		}
		assert.False(t, store.locked(lockKey))
	})
	t.Run("With renewal failing for a whole lease", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		ctx := context.Background()
		store := newMemoryMap()
		initiator, candidate := newTestInitiator(t, store, "node-1")

		require.NoError(t, initiator.Start(ctx))
		require.Eventually(t, candidate.Granted, 2*time.Second, 10*time.Millisecond)

		store.setLeaseFn(func() error { return errUnavailable })
		time.Sleep(300 * time.Millisecond)
		assert.Zero(t, candidate.Revokes())

		require.Eventually(t, func() bool { return candidate.Revokes() >= 1 }, 3*time.Second, 10*time.Millisecond)
		store.setLeaseFn(nil)

		require.NoError(t, initiator.Stop(ctx))
		require.NoError(t, candidate.Verify())
	})
	t.Run("With failed lock attempts", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		ctx := context.Background()
		store := newMemoryMap()
		store.setLockErr(errUnavailable)
		initiator, candidate := newTestInitiator(t, store, "node-1")

		require.NoError(t, initiator.Start(ctx))
		time.Sleep(200 * time.Millisecond)
		assert.Equal(t, leader.Acquiring, initiator.State())
		assert.Zero(t, candidate.Grants())

		store.setLockErr(nil)
		require.Eventually(t, initiator.IsLeader, 2*time.Second, 10*time.Millisecond)
		require.NoError(t, initiator.Stop(ctx))
	})
	t.Run("With panicking OnGranted", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		ctx := context.Background()
		store := newMemoryMap()
		initiator, candidate := newTestInitiator(t, store, "node-1")
		candidate.GrantHook = func(leader.Context) error { panic("boom") }

		require.NoError(t, initiator.Start(ctx))
		require.Eventually(t, func() bool { return candidate.Revokes() >= 1 }, 2*time.Second, 10*time.Millisecond)
		require.NoError(t, initiator.Stop(ctx))
		require.NoError(t, candidate.Verify())
		assert.False(t, store.locked(lockKey))
		assert.Empty(t, store.value(role))
	})
	t.Run("With stop while waiting for the lock", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		ctx := context.Background()
		store := newMemoryMap()
		_, err := store.Lock(ctx, lockKey, time.Hour, time.Second)
		require.NoError(t, err)

		initiator, candidate := newTestInitiator(t, store, "node-1")
		require.NoError(t, initiator.Start(ctx))
		time.Sleep(150 * time.Millisecond)

		start := time.Now()
		require.NoError(t, initiator.Stop(ctx))
		assert.Less(t, time.Since(start), time.Second)
		assert.Zero(t, candidate.Grants())
	})
	t.Run("With disabled engine", func(t *testing.T) {
		config := testConfig()
		config.Disabled = true
		initiator, err := newInitiator(newMemoryMap(), testutil.NewCandidate("node-1", role), config)
		require.NoError(t, err)
		require.NoError(t, initiator.Start(context.Background()))
		assert.False(t, initiator.IsRunning())
	})
}

func TestNew(t *testing.T) {
	t.Run("With nil client", func(t *testing.T) {
		initiator, err := New(nil, testutil.NewCandidate("node-1", role), nil)
		require.ErrorIs(t, err, gerrors.ErrClientRequired)
		require.Nil(t, initiator)
	})
	t.Run("With nil candidate", func(t *testing.T) {
		_, err := newInitiator(newMemoryMap(), nil, nil)
		require.ErrorIs(t, err, gerrors.ErrCandidateRequired)
	})
	t.Run("With renewal slower than the lease", func(t *testing.T) {
		config := &Config{LockLease: time.Second, RenewalInterval: 2 * time.Second}
		_, err := newInitiator(newMemoryMap(), testutil.NewCandidate("node-1", role), config)
		require.ErrorIs(t, err, gerrors.ErrInvalidConfig)
	})
}

func TestConfig(t *testing.T) {
	config := new(Config)
	config.Sanitize()
	require.NoError(t, config.Validate())
	assert.Equal(t, DefaultMapName, config.MapName)
	assert.Equal(t, 10*time.Second, config.LockLease)
	assert.Equal(t, 5*time.Second, config.LockWait)
	assert.Equal(t, 5*time.Second, config.RenewalInterval)
	assert.Equal(t, time.Second, config.YieldBackoff)
	assert.Equal(t, log.DefaultLogger, config.Logger)
}
