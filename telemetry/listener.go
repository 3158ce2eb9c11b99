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

package telemetry

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/tochemey/goelect/leader"
)

const (
	grantsCounterName      = "leader_grants_total"
	revocationsCounterName = "leader_revocations_total"
	activeGaugeName        = "leader_active"
	leadershipSpanName     = "leadership"
)

// Listener records the leadership events as metrics.
//
// Every grant opens a leadership span that the matching revocation ends,
// so a trace shows how long each candidate held its role.
type Listener struct {
	grants      metric.Int64Counter
	revocations metric.Int64Counter
	active      metric.Int64UpDownCounter
	tracer      trace.Tracer

	mu    sync.Mutex
	spans map[string]trace.Span
}

var _ leader.Listener = (*Listener)(nil)

// NewListener creates a Listener using the given telemetry
func NewListener(telemetry *Telemetry) (*Listener, error) {
	if telemetry == nil {
		telemetry = New()
	}

	meter := telemetry.Meter()
	listener := &Listener{
		tracer: telemetry.Tracer(),
		spans:  make(map[string]trace.Span),
	}

	var err error
	if listener.grants, err = meter.Int64Counter(
		grantsCounterName,
		metric.WithDescription("The total number of leadership grants"),
	); err != nil {
		return nil, fmt.Errorf("failed to create grants instrument, %v", err)
	}

	if listener.revocations, err = meter.Int64Counter(
		revocationsCounterName,
		metric.WithDescription("The total number of leadership revocations"),
	); err != nil {
		return nil, fmt.Errorf("failed to create revocations instrument, %v", err)
	}

	if listener.active, err = meter.Int64UpDownCounter(
		activeGaugeName,
		metric.WithDescription("The number of leaderships currently held"),
	); err != nil {
		return nil, fmt.Errorf("failed to create active leaders instrument, %v", err)
	}

	return listener, nil
}

// OnEvent implements leader.Listener
func (l *Listener) OnEvent(event leader.Event) {
	ctx := context.Background()
	attrs := []attribute.KeyValue{
		attribute.String("backend", event.Backend()),
		attribute.String("role", event.Role()),
		attribute.String("candidate", event.CandidateID()),
	}
	options := metric.WithAttributes(attrs...)
	key := event.Backend() + "/" + event.Role() + "/" + event.CandidateID()

	switch event.Type() {
	case leader.EventGranted:
		l.grants.Add(ctx, 1, options)
		l.active.Add(ctx, 1, options)

		_, span := l.tracer.Start(ctx, leadershipSpanName,
			trace.WithTimestamp(event.Timestamp()),
			trace.WithAttributes(attrs...))

		l.mu.Lock()
		if previous, ok := l.spans[key]; ok {
			previous.End()
		}
		l.spans[key] = span
		l.mu.Unlock()

	case leader.EventRevoked:
		l.revocations.Add(ctx, 1, options)
		l.active.Add(ctx, -1, options)

		l.mu.Lock()
		span, ok := l.spans[key]
		delete(l.spans, key)
		l.mu.Unlock()

		if ok {
			span.End(trace.WithTimestamp(event.Timestamp()))
		}
	}
}
