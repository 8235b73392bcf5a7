// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/danielhkuo/quickly-vote/broadcast"
	"github.com/danielhkuo/quickly-vote/models"
	"github.com/danielhkuo/quickly-vote/voting"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 1024

	// Outbound frames buffered per client
	sendBufferSize = 32

	// Bound on a socket-initiated vote or snapshot read
	opTimeout = 5 * time.Second
)

var (
	ErrClientClosed = errors.New("client closed")
	ErrSlowConsumer = errors.New("client send buffer full")
)

// Voter is the vote path shared with the HTTP boundary
type Voter interface {
	Submit(ctx context.Context, pollID, optionID string, identity models.Identity) (models.PollResults, error)
	Results(ctx context.Context, pollID, fingerprint string) (models.PollResults, error)
}

// Client is one socket connection. It subscribes to polls on request and
// receives their snapshots through Deliver.
type Client struct {
	id     string
	ipHash string
	conn   *websocket.Conn
	hub    *broadcast.Hub
	voter  Voter
	logger *slog.Logger

	send   chan []byte
	done   chan struct{}
	closed atomic.Bool

	// Highest total queued per poll; keeps the join snapshot, vote replies
	// and hub updates from going backwards when they race
	mu         sync.Mutex
	lastTotals map[string]int
}

func newClient(conn *websocket.Conn, hub *broadcast.Hub, voter Voter, ipHash string, logger *slog.Logger) *Client {
	return &Client{
		id:         uuid.NewString(),
		ipHash:     ipHash,
		conn:       conn,
		hub:        hub,
		voter:      voter,
		logger:     logger,
		send:       make(chan []byte, sendBufferSize),
		done:       make(chan struct{}),
		lastTotals: make(map[string]int),
	}
}

func (c *Client) ID() string {
	return c.id
}

// Deliver queues a voteUpdate frame. It never blocks: a full buffer closes
// the client and is reported as an error so the hub drops it.
func (c *Client) Deliver(snap models.PollResults) error {
	pollID := snap.Poll.ID

	// Held until the frame is queued so frames leave in the order checked
	c.mu.Lock()
	defer c.mu.Unlock()

	if last, ok := c.lastTotals[pollID]; ok && snap.TotalVotes < last {
		return nil
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	err = c.queue(models.ServerEvent{
		Type:   models.EventVoteUpdate,
		PollID: pollID,
		Data:   data,
	})
	if err != nil {
		return err
	}

	c.lastTotals[pollID] = snap.TotalVotes
	return nil
}

func (c *Client) sendError(pollID, message string) {
	if err := c.queue(models.ServerEvent{Type: models.EventError, PollID: pollID, Message: message}); err != nil {
		c.logger.Debug("failed to queue error event", "client_id", c.id, "error", err)
	}
}

func (c *Client) queue(ev models.ServerEvent) error {
	if c.closed.Load() {
		return ErrClientClosed
	}

	frame, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	select {
	case c.send <- frame:
		return nil
	case <-c.done:
		return ErrClientClosed
	default:
		// Disconnect a viewer that fell behind; reconnecting re-syncs it
		c.close()
		return ErrSlowConsumer
	}
}

func (c *Client) close() {
	if c.closed.CompareAndSwap(false, true) {
		close(c.done)
	}
}

// readPump handles inbound events until the connection fails or ctx ends
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.hub.UnsubscribeAll(c)
		c.close()
		c.conn.Close()
		c.logger.Debug("socket closed", "client_id", c.id)
	}()

	// Unblock ReadMessage on shutdown
	stop := context.AfterFunc(ctx, func() { c.conn.Close() })
	defer stop()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("socket read error", "client_id", c.id, "error", err)
			}
			return
		}

		var ev models.ClientEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			c.sendError("", "Invalid message format")
			continue
		}

		c.handle(ctx, ev)
	}
}

func (c *Client) handle(ctx context.Context, ev models.ClientEvent) {
	pollID := strings.TrimSpace(ev.PollID)
	if pollID == "" {
		c.sendError("", "pollId is required")
		return
	}

	switch ev.Type {
	case models.EventJoinPoll:
		c.join(ctx, pollID, strings.TrimSpace(ev.Fingerprint))
	case models.EventLeavePoll:
		c.hub.Unsubscribe(pollID, c)
	case models.EventVote:
		c.vote(ctx, pollID, ev)
	default:
		c.sendError(pollID, "Unknown event type: "+ev.Type)
	}
}

// join subscribes and immediately sends the current snapshot, so a
// reconnecting viewer is in sync without waiting for the next vote
func (c *Client) join(ctx context.Context, pollID, fingerprint string) {
	// Subscribe before reading so no commit falls between the two
	if err := c.hub.Subscribe(pollID, c); err != nil {
		c.sendError(pollID, "Live updates unavailable")
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	snap, err := c.voter.Results(opCtx, pollID, fingerprint)
	if err != nil {
		c.hub.Unsubscribe(pollID, c)
		c.sendError(pollID, voting.Message(err))
		return
	}

	if err := c.Deliver(snap); err != nil {
		c.logger.Debug("failed to send join snapshot", "client_id", c.id, "poll_id", pollID, "error", err)
	}
}

func (c *Client) vote(ctx context.Context, pollID string, ev models.ClientEvent) {
	fingerprint := strings.TrimSpace(ev.Fingerprint)
	if fingerprint == "" || strings.TrimSpace(ev.OptionID) == "" {
		c.sendError(pollID, "optionId and fingerprint are required")
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	identity := models.Identity{IP: c.ipHash, Fingerprint: fingerprint}
	snap, err := c.voter.Submit(opCtx, pollID, strings.TrimSpace(ev.OptionID), identity)
	if err != nil {
		c.sendError(pollID, voting.Message(err))
		return
	}

	if err := c.Deliver(snap); err != nil {
		c.logger.Debug("failed to send vote result", "client_id", c.id, "poll_id", pollID, "error", err)
	}
}

// writePump writes queued frames and keeps the connection alive with pings
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.logger.Debug("socket write error", "client_id", c.id, "error", err)
				c.close()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
