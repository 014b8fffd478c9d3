// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package events

import (
	"sync"
	"time"

	"github.com/luxfi/log"

	"github.com/WilliamSmith5172078/sealed/cache"
)

var _ Emitter = (*Feed)(nil)

// Feed fans events out to subscribers and retains a bounded history so
// late-joining observers can replay recent activity.
type Feed struct {
	mu          sync.RWMutex
	subscribers []chan Event

	history *cache.Ring[Event]
	log     log.Logger
}

// NewFeed creates a feed retaining up to historySize recent events.
func NewFeed(logger log.Logger, historySize int) *Feed {
	return &Feed{
		history: cache.NewRing[Event](historySize),
		log:     logger,
	}
}

// Emit records the event and delivers it to every subscriber. Slow
// subscribers are skipped rather than blocking the emitting
// transaction.
func (f *Feed) Emit(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	f.history.Append(e)

	f.mu.RLock()
	defer f.mu.RUnlock()

	for _, ch := range f.subscribers {
		select {
		case ch <- e:
		default:
			f.log.Debug("dropping event for slow subscriber",
				log.Stringer("type", e.Type),
			)
		}
	}
}

// Subscribe returns a channel receiving all future events. The buffer
// must be drained promptly or events are dropped.
func (f *Feed) Subscribe(buffer int) <-chan Event {
	ch := make(chan Event, buffer)

	f.mu.Lock()
	f.subscribers = append(f.subscribers, ch)
	f.mu.Unlock()

	return ch
}

// Recent returns the retained history, oldest first.
func (f *Feed) Recent() []Event {
	return f.history.Recent()
}
