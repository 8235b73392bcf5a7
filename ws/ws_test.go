// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ws

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/danielhkuo/quickly-vote/broadcast"
	"github.com/danielhkuo/quickly-vote/models"
	"github.com/danielhkuo/quickly-vote/store"
	"github.com/danielhkuo/quickly-vote/testutil"
	"github.com/danielhkuo/quickly-vote/voting"
)

type testEnv struct {
	server *httptest.Server
	hub    *broadcast.Hub
	poll   models.Poll
}

func setup(t *testing.T) *testEnv {
	t.Helper()

	conn := testutil.SetupTestDB(t)
	hub := broadcast.NewHub(0, nil)
	ledger := voting.NewLedger(store.New(conn), voting.Options{Publisher: hub})
	srv := httptest.NewServer(NewServer(hub, ledger, testutil.TestSalt, "*", nil))

	t.Cleanup(func() {
		srv.Close()
		hub.Close()
	})

	return &testEnv{
		server: srv,
		hub:    hub,
		poll:   testutil.CreateTestPoll(t, conn, "Live?", "Yes", "No"),
	}
}

func (e *testEnv) dial(t *testing.T, ip string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(e.server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"X-Forwarded-For": {ip}})
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, ev models.ClientEvent) {
	t.Helper()
	if err := conn.WriteJSON(ev); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) models.ServerEvent {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev models.ServerEvent
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	return ev
}

func readSnapshot(t *testing.T, conn *websocket.Conn) models.PollResults {
	t.Helper()
	ev := readEvent(t, conn)
	if ev.Type != models.EventVoteUpdate {
		t.Fatalf("expected voteUpdate, got %s (%s)", ev.Type, ev.Message)
	}
	var snap models.PollResults
	if err := json.Unmarshal(ev.Data, &snap); err != nil {
		t.Fatalf("bad snapshot payload: %v", err)
	}
	return snap
}

func TestJoinSendsCurrentSnapshot(t *testing.T) {
	env := setup(t)
	conn := env.dial(t, "10.0.0.1")

	send(t, conn, models.ClientEvent{Type: models.EventJoinPoll, PollID: env.poll.ID})

	snap := readSnapshot(t, conn)
	if snap.Poll.ID != env.poll.ID || snap.TotalVotes != 0 {
		t.Errorf("unexpected join snapshot: %+v", snap)
	}
	if len(snap.Results) != 2 {
		t.Errorf("expected 2 results, got %d", len(snap.Results))
	}
	if env.hub.Subscribers(env.poll.ID) != 1 {
		t.Errorf("expected 1 subscriber, got %d", env.hub.Subscribers(env.poll.ID))
	}
}

func TestVoteBroadcastsToViewers(t *testing.T) {
	env := setup(t)
	viewer := env.dial(t, "10.0.0.1")
	voter := env.dial(t, "10.0.0.2")

	send(t, viewer, models.ClientEvent{Type: models.EventJoinPoll, PollID: env.poll.ID})
	readSnapshot(t, viewer)

	yes := env.poll.Options[0].ID
	send(t, voter, models.ClientEvent{Type: models.EventVote, PollID: env.poll.ID, OptionID: yes, Fingerprint: "fp-voter"})

	result := readSnapshot(t, voter)
	if result.TotalVotes != 1 {
		t.Errorf("voter expected totalVotes 1, got %d", result.TotalVotes)
	}
	if result.UserVote == nil || *result.UserVote != yes {
		t.Errorf("voter expected userVote %s, got %v", yes, result.UserVote)
	}

	update := readSnapshot(t, viewer)
	if update.TotalVotes != 1 || update.Results[0].Percentage != 100 {
		t.Errorf("viewer expected 1 vote at 100%%, got %+v", update)
	}
	if update.UserVote != nil {
		t.Error("viewer update should not carry another voter's choice")
	}
}

func TestVoteErrors(t *testing.T) {
	env := setup(t)
	conn := env.dial(t, "10.0.0.3")
	yes := env.poll.Options[0].ID

	send(t, conn, models.ClientEvent{Type: models.EventVote, PollID: env.poll.ID, OptionID: yes, Fingerprint: "fp"})
	readSnapshot(t, conn)

	tests := []struct {
		name     string
		event    models.ClientEvent
		contains string
	}{
		{
			name:     "duplicate",
			event:    models.ClientEvent{Type: models.EventVote, PollID: env.poll.ID, OptionID: yes, Fingerprint: "fp"},
			contains: "already voted",
		},
		{
			name:     "missing fingerprint",
			event:    models.ClientEvent{Type: models.EventVote, PollID: env.poll.ID, OptionID: yes},
			contains: "fingerprint",
		},
		{
			name:     "unknown poll",
			event:    models.ClientEvent{Type: models.EventJoinPoll, PollID: "missing"},
			contains: "not found",
		},
		{
			name:     "missing poll id",
			event:    models.ClientEvent{Type: models.EventJoinPoll},
			contains: "pollId",
		},
		{
			name:     "unknown type",
			event:    models.ClientEvent{Type: "shout", PollID: env.poll.ID},
			contains: "Unknown event",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			send(t, conn, tt.event)
			ev := readEvent(t, conn)
			if ev.Type != models.EventError {
				t.Fatalf("expected error event, got %s", ev.Type)
			}
			if !strings.Contains(ev.Message, tt.contains) {
				t.Errorf("expected message containing %q, got %q", tt.contains, ev.Message)
			}
		})
	}

	if env.hub.Subscribers("missing") != 0 {
		t.Error("failed join should not leave a subscription")
	}
}

func TestInvalidFrame(t *testing.T) {
	env := setup(t)
	conn := env.dial(t, "10.0.0.4")

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatal(err)
	}
	ev := readEvent(t, conn)
	if ev.Type != models.EventError || ev.Message != "Invalid message format" {
		t.Errorf("unexpected event: %+v", ev)
	}
}

func TestLeaveAndDisconnectUnsubscribe(t *testing.T) {
	env := setup(t)
	a := env.dial(t, "10.0.0.5")
	b := env.dial(t, "10.0.0.6")

	for _, c := range []*websocket.Conn{a, b} {
		send(t, c, models.ClientEvent{Type: models.EventJoinPoll, PollID: env.poll.ID})
		readSnapshot(t, c)
	}
	if n := env.hub.Subscribers(env.poll.ID); n != 2 {
		t.Fatalf("expected 2 subscribers, got %d", n)
	}

	send(t, a, models.ClientEvent{Type: models.EventLeavePoll, PollID: env.poll.ID})
	b.Close()

	deadline := time.Now().Add(2 * time.Second)
	for env.hub.Subscribers(env.poll.ID) != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if n := env.hub.Subscribers(env.poll.ID); n != 0 {
		t.Errorf("expected no subscribers after leave and disconnect, got %d", n)
	}
}

func TestClientDeliver(t *testing.T) {
	hub := broadcast.NewHub(0, nil)
	defer hub.Close()
	c := newClient(nil, hub, nil, "ip", slog.Default())

	snap := func(total int) models.PollResults {
		return models.PollResults{Poll: models.Poll{ID: "p1"}, TotalVotes: total}
	}

	if err := c.Deliver(snap(3)); err != nil {
		t.Fatal(err)
	}
	if err := c.Deliver(snap(2)); err != nil {
		t.Fatal(err)
	}
	if len(c.send) != 1 {
		t.Errorf("stale snapshot should be skipped, %d frames queued", len(c.send))
	}

	for i := 0; len(c.send) < sendBufferSize; i++ {
		if err := c.Deliver(snap(10 + i)); err != nil {
			t.Fatalf("unexpected error filling buffer: %v", err)
		}
	}
	if err := c.Deliver(snap(1000)); !errors.Is(err, ErrSlowConsumer) {
		t.Errorf("expected ErrSlowConsumer on full buffer, got %v", err)
	}
	if !c.closed.Load() {
		t.Error("client should be closed after its buffer overflowed")
	}

	if err := c.Deliver(snap(2000)); !errors.Is(err, ErrClientClosed) {
		t.Errorf("expected ErrClientClosed, got %v", err)
	}
}

func TestClientDeliverConcurrentKeepsOrder(t *testing.T) {
	hub := broadcast.NewHub(0, nil)
	defer hub.Close()

	snap := func(total int) models.PollResults {
		return models.PollResults{Poll: models.Poll{ID: "p1"}, TotalVotes: total}
	}

	for run := 0; run < 500; run++ {
		c := newClient(nil, hub, nil, "ip", slog.Default())

		var wg sync.WaitGroup
		for _, total := range []int{5, 6} {
			wg.Add(1)
			go func(total int) {
				defer wg.Done()
				c.Deliver(snap(total))
			}(total)
		}
		wg.Wait()

		last := -1
		for len(c.send) > 0 {
			var ev models.ServerEvent
			if err := json.Unmarshal(<-c.send, &ev); err != nil {
				t.Fatal(err)
			}
			var got models.PollResults
			if err := json.Unmarshal(ev.Data, &got); err != nil {
				t.Fatal(err)
			}
			if got.TotalVotes < last {
				t.Fatalf("run %d: totalVotes went from %d to %d", run, last, got.TotalVotes)
			}
			last = got.TotalVotes
		}
		if last != 6 {
			t.Fatalf("run %d: expected the newest snapshot to be queued last, got %d", run, last)
		}
	}
}

func TestSlowViewerIsDisconnected(t *testing.T) {
	hub := broadcast.NewHub(0, nil)
	t.Cleanup(hub.Close)

	clients := make(chan *Client, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := (&websocket.Upgrader{}).Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c := newClient(conn, hub, nil, "ip", slog.Default())

		// Fill the buffer before the write pump runs
		for i := 0; i < sendBufferSize; i++ {
			c.Deliver(models.PollResults{Poll: models.Poll{ID: "p1"}, TotalVotes: i})
		}
		if err := hub.Subscribe("p1", c); err != nil {
			conn.Close()
			return
		}
		clients <- c

		<-c.done
		go c.writePump()
		c.readPump(r.Context())
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	var c *Client
	select {
	case c = <-clients:
	case <-time.After(2 * time.Second):
		t.Fatal("server never subscribed the client")
	}

	hub.Publish("p1", models.PollResults{Poll: models.Poll{ID: "p1"}, TotalVotes: 100})

	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers("p1") != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if n := hub.Subscribers("p1"); n != 0 {
		t.Fatalf("expected the slow viewer to be dropped, %d subscribers left", n)
	}
	if !c.closed.Load() {
		t.Error("slow viewer should be closed")
	}

	// The viewer sees its connection end instead of going quiet
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, _, err := conn.ReadMessage()
		if err == nil {
			continue
		}
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			t.Fatal("connection stayed open after the viewer was dropped")
		}
		break
	}
}

func TestOriginChecker(t *testing.T) {
	tests := []struct {
		allowed string
		origin  string
		want    bool
	}{
		{"*", "https://anything.example", true},
		{"", "https://anything.example", true},
		{"https://polls.example", "https://polls.example", true},
		{"https://polls.example", "https://evil.example", false},
		{"https://polls.example", "", true},
	}

	for _, tt := range tests {
		req := httptest.NewRequest("GET", "/ws", nil)
		if tt.origin != "" {
			req.Header.Set("Origin", tt.origin)
		}
		if got := originChecker(tt.allowed)(req); got != tt.want {
			t.Errorf("allowed=%q origin=%q: got %v, want %v", tt.allowed, tt.origin, got, tt.want)
		}
	}
}
