// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dustin/go-humanize"
)

// Entry is one key's fixed window
type Entry struct {
	Key         string
	Count       int
	WindowStart time.Time
	WindowEnd   time.Time
}

func (e *Entry) expired(now time.Time) bool {
	return !now.Before(e.WindowEnd)
}

type shard struct {
	mu      sync.Mutex
	entries map[string]*Entry
}

// Memory is an in-process fixed-window limiter.
// Keys are spread over independently locked shards, so Check on one key
// never waits on another shard and updates to the same key are linearizable.
type Memory struct {
	cfg    Config
	shards []*shard
	logger *slog.Logger
}

func NewMemory(cfg Config, logger *slog.Logger) (*Memory, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	if logger == nil {
		logger = slog.Default()
	}

	m := &Memory{
		cfg:    cfg,
		shards: make([]*shard, cfg.Shards),
		logger: logger,
	}
	for i := range m.shards {
		m.shards[i] = &shard{entries: make(map[string]*Entry)}
	}

	return m, nil
}

func (m *Memory) shardFor(key string) *shard {
	return m.shards[xxhash.Sum64String(key)%uint64(len(m.shards))]
}

// Check counts one request against key.
// A window that has reached its end is reset instead of waiting for the sweep.
func (m *Memory) Check(_ context.Context, key string) (Result, error) {
	now := m.cfg.Now()
	s := m.shardFor(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || e.expired(now) {
		e = &Entry{
			Key:         key,
			Count:       1,
			WindowStart: now,
			WindowEnd:   now.Add(m.cfg.Window),
		}
		s.entries[key] = e
		return Result{Allowed: true, Remaining: m.cfg.MaxRequests - 1, ResetAt: e.WindowEnd}, nil
	}

	if e.Count < m.cfg.MaxRequests {
		e.Count++
		return Result{Allowed: true, Remaining: m.cfg.MaxRequests - e.Count, ResetAt: e.WindowEnd}, nil
	}

	return Result{Allowed: false, Remaining: 0, ResetAt: e.WindowEnd}, nil
}

// Sweep evicts every entry whose window has ended and returns how many were removed
func (m *Memory) Sweep(now time.Time) int {
	removed := 0
	for _, s := range m.shards {
		s.mu.Lock()
		for key, e := range s.entries {
			if e.expired(now) {
				delete(s.entries, key)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// Len returns the number of tracked keys
func (m *Memory) Len() int {
	n := 0
	for _, s := range m.shards {
		s.mu.Lock()
		n += len(s.entries)
		s.mu.Unlock()
	}
	return n
}

// Run sweeps on a fixed interval until ctx is done
func (m *Memory) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()

	m.logger.Info("rate limit sweep started", "interval", m.cfg.SweepInterval)

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("rate limit sweep stopped")
			return nil
		case <-ticker.C:
			removed := m.Sweep(m.cfg.Now())
			if removed > 0 {
				m.logger.Debug("rate limit entries swept",
					"removed", humanize.Comma(int64(removed)),
					"remaining", humanize.Comma(int64(m.Len())),
				)
			}
		}
	}
}
