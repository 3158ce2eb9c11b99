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

import (
	"fmt"
	"time"
)

// EventType defines the kind of leadership event
type EventType int

const (
	// EventGranted is published when a candidate acquires the leadership
	EventGranted EventType = iota + 1
	// EventRevoked is published when a candidate loses or relinquishes the leadership
	EventRevoked
)

// String returns the name of the event type
func (t EventType) String() string {
	switch t {
	case EventGranted:
		return "Granted"
	case EventRevoked:
		return "Revoked"
	default:
		return "Unknown"
	}
}

// Event is an immutable record of a leadership transition
type Event struct {
	kind        EventType
	role        string
	candidateID string
	backend     string
	context     Context
	timestamp   time.Time
}

// NewEvent creates an event for the given grant context.
// backend names the coordination store that produced the transition.
func NewEvent(kind EventType, backend string, ctx Context) Event {
	return Event{
		kind:        kind,
		role:        ctx.Role(),
		candidateID: ctx.CandidateID(),
		backend:     backend,
		context:     ctx,
		timestamp:   time.Now().UTC(),
	}
}

// Type returns the event type
func (e Event) Type() EventType {
	return e.kind
}

// Role returns the contended role
func (e Event) Role() string {
	return e.role
}

// CandidateID returns the candidate identifier
func (e Event) CandidateID() string {
	return e.candidateID
}

// Backend returns the name of the backend that produced the event
func (e Event) Backend() string {
	return e.backend
}

// Context returns the grant context the event refers to
func (e Event) Context() Context {
	return e.context
}

// Timestamp returns the time the event was created
func (e Event) Timestamp() time.Time {
	return e.timestamp
}

// String returns a human-readable description of the event
func (e Event) String() string {
	return fmt.Sprintf("%s{role=%s, candidate=%s, backend=%s}", e.kind, e.role, e.candidateID, e.backend)
}
