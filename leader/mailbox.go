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
	"time"

	gods "github.com/Workiva/go-datastructures/queue"
)

// Mailbox is a Listener that queues events until they are consumed.
// It never blocks the publishing engine.
type Mailbox struct {
	underlying *gods.Queue
}

// enforce compilation error
var _ Listener = (*Mailbox)(nil)

// NewMailbox creates an empty Mailbox
func NewMailbox() *Mailbox {
	return &Mailbox{underlying: gods.New(16)}
}

// OnEvent implements Listener. Events received after Close are dropped.
func (m *Mailbox) OnEvent(event Event) {
	_ = m.underlying.Put(event)
}

// Next waits at most timeout for the next event.
// It returns false when no event arrived in time or the mailbox is closed.
// A non-positive timeout waits until an event arrives.
func (m *Mailbox) Next(timeout time.Duration) (Event, bool) {
	items, err := m.underlying.Poll(1, timeout)
	if err != nil || len(items) == 0 {
		return Event{}, false
	}
	event, ok := items[0].(Event)
	return event, ok
}

// Len returns the number of queued events
func (m *Mailbox) Len() int {
	return int(m.underlying.Len())
}

// Close disposes the mailbox and unblocks pending Next calls
func (m *Mailbox) Close() {
	m.underlying.Dispose()
}
