// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package ws serves live poll results over WebSocket.

Server upgrades GET /ws and runs one Client per connection. The client's
identity IP is the salted hash of the request's client IP, so socket votes
are gated exactly like HTTP votes.

# Frames

Inbound:

	{"type":"joinPoll","pollId":"...","fingerprint":"..."}
	{"type":"leavePoll","pollId":"..."}
	{"type":"vote","pollId":"...","optionId":"...","fingerprint":"..."}

Outbound:

	{"type":"voteUpdate","pollId":"...","data":{...PollResults}}
	{"type":"error","pollId":"...","message":"..."}

Joining subscribes to the poll's broadcast topic and then sends the current
snapshot, so a reconnecting viewer re-syncs at once. A vote is answered with
the voter's own snapshot (with userVote); other viewers get the broadcast.

# Delivery

Frames go through a bounded send buffer drained by the write pump. A client
never queues a snapshot older than one it already queued for that poll. A
client whose buffer fills is closed, which drops it from every topic; its
reconnect fetches current state.

Ping/pong keeps idle connections alive; a missed pong or a read error ends
the connection and unsubscribes it.
*/
package ws
