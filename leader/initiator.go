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

package leader

import "context"

// Initiator drives the election of a single candidate against a backend
type Initiator interface {
	// Start begins contending for the candidate's role.
	// Calling Start on a running initiator is a no-op.
	Start(ctx context.Context) error
	// Stop stops contending, releasing the leadership when held.
	// Stop waits at most the configured shutdown timeout.
	Stop(ctx context.Context) error
	// IsRunning reports whether the initiator has been started
	IsRunning() bool
	// IsLeader reports whether the candidate currently holds the role
	IsLeader() bool
	// State returns the current election state
	State() State
	// SetLeaderEventPublisher sets the sink of Granted and Revoked events.
	// A nil publisher disables event publication.
	SetLeaderEventPublisher(publisher Publisher)
}
