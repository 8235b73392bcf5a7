// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package broadcast pushes poll result snapshots to live subscribers.

Each poll with at least one subscriber owns a topic: a bounded queue drained
by its own goroutine. Publish only enqueues, so the vote commit path never
waits on a subscriber's connection. When the queue is full the oldest pending
snapshot is dropped in favor of the newer one.

A topic never delivers a snapshot whose totalVotes is lower than one it has
already delivered. A subscriber whose Deliver fails is removed and the error
is logged; other subscribers are unaffected.

	hub := broadcast.NewHub(0, logger)
	hub.Subscribe(pollID, client)
	hub.Publish(pollID, snapshot)
	hub.UnsubscribeAll(client) // on disconnect
*/
package broadcast
