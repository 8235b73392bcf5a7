// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package broadcast

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/danielhkuo/quickly-vote/models"
)

// DefaultQueueSize is the number of snapshots a poll topic buffers
const DefaultQueueSize = 16

var ErrClosed = errors.New("broadcaster closed")

// Subscriber receives result snapshots for the polls it joined.
// Deliver must not block; an error drops the subscription.
type Subscriber interface {
	ID() string
	Deliver(snapshot models.PollResults) error
}

// topic fans out one poll's snapshots from its own goroutine
type topic struct {
	pollID string
	subs   map[string]Subscriber
	queue  chan models.PollResults
	done   chan struct{}
}

// Hub keeps per-poll subscriber sets and delivers published snapshots.
// Each poll has its own queue and goroutine, so a slow poll never holds up
// another and snapshots for one poll are delivered in publish order.
type Hub struct {
	queueSize int
	logger    *slog.Logger

	mu     sync.Mutex
	topics map[string]*topic
	closed bool
	wg     sync.WaitGroup
}

func NewHub(queueSize int, logger *slog.Logger) *Hub {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		queueSize: queueSize,
		logger:    logger,
		topics:    make(map[string]*topic),
	}
}

// Subscribe adds sub to pollID's topic, starting the topic if needed.
// Subscribing twice is a no-op.
func (h *Hub) Subscribe(pollID string, sub Subscriber) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrClosed
	}

	t, ok := h.topics[pollID]
	if !ok {
		t = &topic{
			pollID: pollID,
			subs:   make(map[string]Subscriber),
			queue:  make(chan models.PollResults, h.queueSize),
			done:   make(chan struct{}),
		}
		h.topics[pollID] = t
		h.wg.Add(1)
		go h.run(t)
	}
	t.subs[sub.ID()] = sub

	return nil
}

// Unsubscribe removes sub from pollID. The topic stops once it has no subscribers.
func (h *Hub) Unsubscribe(pollID string, sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(pollID, sub.ID())
}

// UnsubscribeAll removes sub from every poll
func (h *Hub) UnsubscribeAll(sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for pollID := range h.topics {
		h.removeLocked(pollID, sub.ID())
	}
}

func (h *Hub) removeLocked(pollID, subID string) {
	t, ok := h.topics[pollID]
	if !ok {
		return
	}
	delete(t.subs, subID)
	if len(t.subs) == 0 {
		delete(h.topics, pollID)
		close(t.done)
	}
}

// Publish queues snapshot for pollID's subscribers without waiting for delivery.
// If the queue is full the oldest pending snapshot is discarded; the newer one
// supersedes it. Polls without subscribers are skipped.
func (h *Hub) Publish(pollID string, snapshot models.PollResults) {
	h.mu.Lock()
	defer h.mu.Unlock()

	t, ok := h.topics[pollID]
	if !ok || h.closed {
		return
	}

	for {
		select {
		case t.queue <- snapshot:
			return
		default:
		}

		select {
		case <-t.queue:
			h.logger.Debug("superseded pending snapshot", "poll_id", pollID)
		default:
		}
	}
}

// Subscribers returns the number of subscribers of pollID
func (h *Hub) Subscribers(pollID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if t, ok := h.topics[pollID]; ok {
		return len(t.subs)
	}
	return 0
}

// Run blocks until ctx is done, then closes the hub
func (h *Hub) Run(ctx context.Context) error {
	<-ctx.Done()
	h.Close()
	return nil
}

// Close stops every topic and waits for their goroutines
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	for pollID, t := range h.topics {
		delete(h.topics, pollID)
		close(t.done)
	}
	h.mu.Unlock()

	h.wg.Wait()
	h.logger.Info("broadcaster stopped")
}

func (h *Hub) run(t *topic) {
	defer h.wg.Done()

	// Highest total delivered so far; older snapshots are never sent
	lastTotal := -1

	for {
		select {
		case <-t.done:
			return
		case snap := <-t.queue:
			if snap.TotalVotes < lastTotal {
				continue
			}
			lastTotal = snap.TotalVotes
			h.deliver(t, snap)
		}
	}
}

func (h *Hub) deliver(t *topic, snap models.PollResults) {
	h.mu.Lock()
	subs := make([]Subscriber, 0, len(t.subs))
	for _, s := range t.subs {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	// Each voter's snapshot carries their own userVote; viewers get none
	snap.UserVote = nil

	for _, s := range subs {
		if err := s.Deliver(snap); err != nil {
			h.logger.Warn("dropping subscriber after failed delivery",
				"poll_id", t.pollID,
				"subscriber", s.ID(),
				"error", err,
			)
			h.mu.Lock()
			// The topic may have been retired and replaced meanwhile
			if h.topics[t.pollID] == t {
				h.removeLocked(t.pollID, s.ID())
			}
			h.mu.Unlock()
		}
	}
}
