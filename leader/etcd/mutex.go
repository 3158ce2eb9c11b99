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
	"fmt"
	"math"
	"time"

	"go.etcd.io/etcd/api/v3/v3rpc/rpctypes"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/multierr"
)

var (
	// errContended means the key is held by another candidate
	errContended = errors.New("leadership key is held by another candidate")
	// errLost means a conditional update proved that the key is no longer ours
	errLost = errors.New("leadership key is no longer held")
)

// token is the proof of ownership of the leadership key.
// The lease is granted per acquisition and never reused.
type token struct {
	key   string
	value string
	lease clientv3.LeaseID
}

// mutex is the etcd primitive the engine drives
type mutex interface {
	// Acquire creates the key when absent, bound to a fresh lease of the given TTL.
	// It returns errContended when the key already exists.
	Acquire(ctx context.Context, key, value string, ttl time.Duration) (*token, error)
	// Refresh extends the lease and re-puts the key conditioned on the
	// value and lease still being ours. It returns errLost otherwise.
	Refresh(ctx context.Context, tok *token) error
	// Release deletes the key when it is still ours and revokes the lease
	Release(ctx context.Context, tok *token) error
}

type leaseMutex struct {
	kv    clientv3.KV
	lease clientv3.Lease
}

var _ mutex = (*leaseMutex)(nil)

func newLeaseMutex(kv clientv3.KV, lease clientv3.Lease) *leaseMutex {
	return &leaseMutex{kv: kv, lease: lease}
}

func (m *leaseMutex) Acquire(ctx context.Context, key, value string, ttl time.Duration) (*token, error) {
	grant, err := m.lease.Grant(ctx, ttlSeconds(ttl))
	if err != nil {
		return nil, fmt.Errorf("failed to grant lease: %w", err)
	}

	resp, err := m.kv.Txn(ctx).
		If(clientv3.Compare(clientv3.CreateRevision(key), "=", 0)).
		Then(clientv3.OpPut(key, value, clientv3.WithLease(grant.ID))).
		Commit()

	if err != nil || !resp.Succeeded {
		// the lease is only useful when the key was created
		_, _ = m.lease.Revoke(ctx, grant.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to create key=(%s): %w", key, err)
		}
		return nil, errContended
	}

	return &token{key: key, value: value, lease: grant.ID}, nil
}

func (m *leaseMutex) Refresh(ctx context.Context, tok *token) error {
	keepAlive, err := m.lease.KeepAliveOnce(ctx, tok.lease)
	if err != nil {
		if errors.Is(err, rpctypes.ErrLeaseNotFound) {
			return errLost
		}
		return fmt.Errorf("failed to keep lease alive: %w", err)
	}

	if keepAlive.TTL <= 0 {
		return errLost
	}

	resp, err := m.kv.Txn(ctx).
		If(owned(tok)...).
		Then(clientv3.OpPut(tok.key, tok.value, clientv3.WithLease(tok.lease))).
		Commit()
	if err != nil {
		return fmt.Errorf("failed to refresh key=(%s): %w", tok.key, err)
	}

	if !resp.Succeeded {
		return errLost
	}
	return nil
}

func (m *leaseMutex) Release(ctx context.Context, tok *token) error {
	var err error
	if _, derr := m.kv.Txn(ctx).If(owned(tok)...).Then(clientv3.OpDelete(tok.key)).Commit(); derr != nil {
		err = multierr.Append(err, fmt.Errorf("failed to delete key=(%s): %w", tok.key, derr))
	}

	if _, rerr := m.lease.Revoke(ctx, tok.lease); rerr != nil && !errors.Is(rerr, rpctypes.ErrLeaseNotFound) {
		err = multierr.Append(err, fmt.Errorf("failed to revoke lease: %w", rerr))
	}
	return err
}

// owned is the condition of every write made while holding the key
func owned(tok *token) []clientv3.Cmp {
	return []clientv3.Cmp{
		clientv3.Compare(clientv3.Value(tok.key), "=", tok.value),
		clientv3.Compare(clientv3.LeaseValue(tok.key), "=", tok.lease),
	}
}

func ttlSeconds(ttl time.Duration) int64 {
	seconds := int64(math.Ceil(ttl.Seconds()))
	if seconds < 1 {
		return 1
	}
	return seconds
}
