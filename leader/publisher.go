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
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"
	"go.uber.org/atomic"

	gerrors "github.com/tochemey/goelect/errors"
	"github.com/tochemey/goelect/log"
)

// Publisher is the sink election engines publish leadership events to
type Publisher interface {
	// Publish delivers the event. It is called synchronously by the engine,
	// before the matching candidate callback.
	Publish(event Event)
}

// Listener observes leadership events
type Listener interface {
	OnEvent(event Event)
}

// ListenerFunc adapts a function to a Listener
type ListenerFunc func(event Event)

// OnEvent implements Listener
func (f ListenerFunc) OnEvent(event Event) {
	f(event)
}

// subscriber is a registered listener, optionally filtered by role
type subscriber struct {
	id       string
	listener Listener
	roles    mapset.Set[string]
	active   *atomic.Bool
}

func (s *subscriber) accepts(role string) bool {
	if !s.active.Load() {
		return false
	}
	return s.roles.Cardinality() == 0 || s.roles.Contains(role)
}

// EventPublisher fans leadership events out to its listeners.
//
// Delivery is synchronous and follows the registration order. A panicking
// listener is logged and does not prevent delivery to the others.
type EventPublisher struct {
	mu          sync.RWMutex
	subscribers []*subscriber
	logger      log.Logger
}

// enforce compilation error
var _ Publisher = (*EventPublisher)(nil)

// NewEventPublisher creates an instance of EventPublisher
func NewEventPublisher(logger log.Logger) *EventPublisher {
	if logger == nil {
		logger = log.DefaultLogger
	}
	return &EventPublisher{logger: logger}
}

// Subscribe registers the listener and returns the function that removes it.
// When roles are given, the listener only receives events of those roles.
func (p *EventPublisher) Subscribe(listener Listener, roles ...string) (unsubscribe func()) {
	sub := &subscriber{
		id:       uuid.NewString(),
		listener: listener,
		roles:    mapset.NewSet(roles...),
		active:   atomic.NewBool(true),
	}

	p.mu.Lock()
	p.subscribers = append(p.subscribers, sub)
	p.mu.Unlock()

	return func() { p.remove(sub.id) }
}

// SubscribersCount returns the number of registered listeners
func (p *EventPublisher) SubscribersCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.subscribers)
}

// Publish implements Publisher
func (p *EventPublisher) Publish(event Event) {
	p.mu.RLock()
	subscribers := make([]*subscriber, len(p.subscribers))
	copy(subscribers, p.subscribers)
	p.mu.RUnlock()

	for _, sub := range subscribers {
		if sub.accepts(event.Role()) {
			p.deliver(sub, event)
		}
	}
}

// Close removes every listener
func (p *EventPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, sub := range p.subscribers {
		sub.active.Store(false)
	}
	p.subscribers = nil
}

func (p *EventPublisher) deliver(sub *subscriber, event Event) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Errorf("listener=(%s) failed to handle %s: %v", sub.id, event, gerrors.NewPanicError(r))
		}
	}()
	sub.listener.OnEvent(event)
}

func (p *EventPublisher) remove(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, sub := range p.subscribers {
		if sub.id == id {
			sub.active.Store(false)
			p.subscribers = append(p.subscribers[:i], p.subscribers[i+1:]...)
			return
		}
	}
}

type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}

// NoopPublisher returns a Publisher that drops every event
func NoopPublisher() Publisher {
	return noopPublisher{}
}
