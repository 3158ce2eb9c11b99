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
	"fmt"
	"time"

	"github.com/tochemey/olric"
)

var (
	// errContended means the lock is held by another candidate
	errContended = errors.New("leadership lock is held by another candidate")
	// errLost means the lock expired or was taken over
	errLost = errors.New("leadership lock is no longer held")
)

// lockMap is the distributed map primitive the engine drives
type lockMap interface {
	// Lock blocks at most wait for the lock on key. The lock expires after
	// lease unless renewed. It returns errContended when the wait elapsed.
	Lock(ctx context.Context, key string, lease, wait time.Duration) (lockHandle, error)
	// Put sets the value of key
	Put(ctx context.Context, key, value string) error
	// Get returns the value of key and whether key exists
	Get(ctx context.Context, key string) (string, bool, error)
	// Delete removes key
	Delete(ctx context.Context, key string) error
}

// lockHandle is a held lock
type lockHandle interface {
	// Lease sets the remaining lifetime of the lock. It returns errLost
	// when the lock is no longer held.
	Lease(ctx context.Context, lease time.Duration) error
	// Unlock releases the lock
	Unlock(ctx context.Context) error
}

// dmapStore implements lockMap on an olric distributed map
type dmapStore struct {
	dmap olric.DMap
}

var _ lockMap = (*dmapStore)(nil)

func newDMapStore(dmap olric.DMap) *dmapStore {
	return &dmapStore{dmap: dmap}
}

func (s *dmapStore) Lock(ctx context.Context, key string, lease, wait time.Duration) (lockHandle, error) {
	lock, err := s.dmap.LockWithTimeout(ctx, key, lease, wait)
	if err != nil {
		if errors.Is(err, olric.ErrLockNotAcquired) {
			return nil, errContended
		}
		return nil, fmt.Errorf("failed to lock key=(%s): %w", key, err)
	}
	return &dmapLock{key: key, lock: lock}, nil
}

func (s *dmapStore) Put(ctx context.Context, key, value string) error {
	return s.dmap.Put(ctx, key, value)
}

func (s *dmapStore) Get(ctx context.Context, key string) (string, bool, error) {
	resp, err := s.dmap.Get(ctx, key)
	if err != nil {
		if errors.Is(err, olric.ErrKeyNotFound) {
			return "", false, nil
		}
		return "", false, err
	}

	value, err := resp.String()
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *dmapStore) Delete(ctx context.Context, key string) error {
	_, err := s.dmap.Delete(ctx, key)
	return err
}

type dmapLock struct {
	key  string
	lock olric.LockContext
}

func (l *dmapLock) Lease(ctx context.Context, lease time.Duration) error {
	if err := l.lock.Lease(ctx, lease); err != nil {
		if errors.Is(err, olric.ErrNoSuchLock) {
			return errLost
		}
		return fmt.Errorf("failed to renew lock key=(%s): %w", l.key, err)
	}
	return nil
}

func (l *dmapLock) Unlock(ctx context.Context) error {
	if err := l.lock.Unlock(ctx); err != nil && !errors.Is(err, olric.ErrNoSuchLock) {
		return fmt.Errorf("failed to unlock key=(%s): %w", l.key, err)
	}
	return nil
}
