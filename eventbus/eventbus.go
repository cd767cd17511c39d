/*************************************************************************
 * Copyright 2026 sboxmgr contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package eventbus implements a synchronous, in-process event bus: typed
// events, priority-ordered handler dispatch, isolated handler failures, and
// bounded statistics.
package eventbus

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sboxmgr/core/log"
)

// Priority orders handler dispatch and event severity.
type Priority int

const (
	PriorityDebug    Priority = 0
	PriorityInfo     Priority = 1
	PriorityNormal   Priority = 2
	PriorityHigh     Priority = 3
	PriorityCritical Priority = 4
)

// Event is one typed occurrence published on the bus.
type Event struct {
	ID        string
	Type      string
	Source    string
	Timestamp time.Time
	Priority  Priority
	TraceID   string
	Data      map[string]interface{}
}

// Handler processes one Event. A Handler must not block indefinitely: the
// bus dispatches synchronously and a stalled handler stalls the publisher.
type Handler func(Event)

const ringSize = 1000

type subscription struct {
	handler  Handler
	priority int
	seq      int // subscription order, for stable sort among equal priority
}

// Stats holds per-type counters and a bounded ring of recent events.
type Stats struct {
	Counts      map[string]int
	ErrorCounts map[string]int
	Recent      []Event
}

// Bus is a synchronous, single-threaded-per-publish event dispatcher.
type Bus struct {
	mtx     sync.Mutex
	subs    map[string][]subscription
	seq     int
	counts  map[string]int
	errs    map[string]int
	ring    []Event
	ringPos int
	lg      *log.KVLogger
}

// New builds an empty Bus. lg may be nil, in which case handler panics are
// swallowed silently, matching the NewDiscardLogger pattern for callers
// that opt out of logging.
func New(lg *log.KVLogger) *Bus {
	return &Bus{
		subs:   make(map[string][]subscription),
		counts: make(map[string]int),
		errs:   make(map[string]int),
		ring:   make([]Event, 0, ringSize),
		lg:     lg,
	}
}

// Subscribe registers handler for typ with the given priority. Higher
// priority values fire first; equal-priority handlers fire in subscription
// order.
func (b *Bus) Subscribe(typ string, handler Handler, priority int) {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	b.seq++
	b.subs[typ] = append(b.subs[typ], subscription{handler: handler, priority: priority, seq: b.seq})
	sort.SliceStable(b.subs[typ], func(i, j int) bool {
		return b.subs[typ][i].priority > b.subs[typ][j].priority
	})
}

// Unsubscribe removes all subscriptions for typ. Handler slices are small
// enough that a full rebuild beats tracking per-handler tokens.
func (b *Bus) Unsubscribe(typ string) {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	delete(b.subs, typ)
}

// Emit dispatches ev to every handler subscribed to ev.Type, in priority
// order. Handler panics are caught and logged; they never prevent other
// handlers from running. If ev.ID or ev.Timestamp are zero-valued they are
// filled in.
func (b *Bus) Emit(ev Event) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	b.mtx.Lock()
	handlers := make([]subscription, len(b.subs[ev.Type]))
	copy(handlers, b.subs[ev.Type])
	b.counts[ev.Type]++
	if len(b.ring) < ringSize {
		b.ring = append(b.ring, ev)
	} else {
		b.ring[b.ringPos] = ev
		b.ringPos = (b.ringPos + 1) % ringSize
	}
	b.mtx.Unlock()

	for _, sub := range handlers {
		b.dispatchOne(ev, sub.handler)
	}
}

func (b *Bus) dispatchOne(ev Event, h Handler) {
	defer func() {
		if r := recover(); r != nil {
			b.mtx.Lock()
			b.errs[ev.Type]++
			b.mtx.Unlock()
			if b.lg != nil {
				b.lg.Error("event handler panicked", log.KV("event_type", ev.Type), log.KV("panic", r))
			}
		}
	}()
	h(ev)
}

// Statistics returns a snapshot of per-type counters, error counters, and
// the bounded ring buffer of recent events.
func (b *Bus) Statistics() Stats {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	s := Stats{
		Counts:      make(map[string]int, len(b.counts)),
		ErrorCounts: make(map[string]int, len(b.errs)),
		Recent:      make([]Event, len(b.ring)),
	}
	for k, v := range b.counts {
		s.Counts[k] = v
	}
	for k, v := range b.errs {
		s.ErrorCounts[k] = v
	}
	copy(s.Recent, b.ring)
	return s
}
