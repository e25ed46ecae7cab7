// Package realtime implements the in-memory fan-out of entity change
// events to connected websocket clients. Nothing is persisted: a channel
// that connects after an event was published never sees it.
package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/KIaudius/issues-insights-tracker/internal/bootstrap/logging"
	"github.com/KIaudius/issues-insights-tracker/internal/ports"
)

const shardCount = 16

// shard holds the registry slice for userID % shardCount. Shards lock
// independently, so traffic on unrelated users never contends.
type shard struct {
	mu sync.RWMutex
	// connections: userID -> that user's live clients.
	connections map[uint64]map[*Client]struct{}
	// subscriptions: userID -> issue ids the user follows. Entries may
	// outlive the last connection; they are inert until reconnect.
	subscriptions map[uint64]map[uint64]struct{}
}

// Hub is the process-wide connection/subscription registry. Construct one
// per process and inject it; it is safe for concurrent use.
type Hub struct {
	shards [shardCount]*shard
}

var _ ports.Notifier = (*Hub)(nil)

func NewHub() *Hub {
	h := &Hub{}
	for i := range h.shards {
		h.shards[i] = &shard{
			connections:   make(map[uint64]map[*Client]struct{}),
			subscriptions: make(map[uint64]map[uint64]struct{}),
		}
	}
	return h
}

func (h *Hub) shardFor(userID uint64) *shard {
	return h.shards[userID%shardCount]
}

// Connect registers a live client for the user.
func (h *Hub) Connect(client *Client) {
	if client == nil {
		return
	}

	s := h.shardFor(client.userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	clients, ok := s.connections[client.userID]
	if !ok {
		clients = make(map[*Client]struct{})
		s.connections[client.userID] = clients
	}
	clients[client] = struct{}{}
}

// Disconnect removes the client; the user's subscriptions stay behind
// until they reconnect (they are inert without a live channel).
func (h *Hub) Disconnect(client *Client) {
	if client == nil {
		return
	}

	s := h.shardFor(client.userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if clients, ok := s.connections[client.userID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(s.connections, client.userID)
		}
	}
}

// Subscribe is an idempotent set add.
func (h *Hub) Subscribe(userID, issueID uint64) {
	s := h.shardFor(userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	issues, ok := s.subscriptions[userID]
	if !ok {
		issues = make(map[uint64]struct{})
		s.subscriptions[userID] = issues
	}
	issues[issueID] = struct{}{}
}

// Unsubscribe is an idempotent set remove.
func (h *Hub) Unsubscribe(userID, issueID uint64) {
	s := h.shardFor(userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if issues, ok := s.subscriptions[userID]; ok {
		delete(issues, issueID)
		if len(issues) == 0 {
			delete(s.subscriptions, userID)
		}
	}
}

// Publish delivers the event to every channel of every user subscribed to
// the event's issue. Sends are non-blocking: a slow client's full buffer
// drops the message for that client only. Publish never returns an error
// and never blocks the caller beyond the registry scan.
func (h *Hub) Publish(ctx context.Context, event ports.Event) {
	payload, err := marshalEvent(event)
	if err != nil {
		logging.Warn(ctx, "drop unmarshalable realtime event",
			slog.String("event_type", string(event.Type)),
			slog.Uint64("issue_id", event.IssueID),
		)
		return
	}

	dropped := 0
	for _, s := range h.shards {
		s.mu.RLock()
		for userID, issues := range s.subscriptions {
			if _, subscribed := issues[event.IssueID]; !subscribed {
				continue
			}
			for client := range s.connections[userID] {
				if !client.trySend(payload) {
					dropped++
				}
			}
		}
		s.mu.RUnlock()
	}

	if dropped > 0 {
		logging.Warn(ctx, "dropped realtime event for slow clients",
			slog.String("event_type", string(event.Type)),
			slog.Uint64("issue_id", event.IssueID),
			slog.Int("dropped", dropped),
		)
	}
}

func marshalEvent(event ports.Event) ([]byte, error) {
	msg := map[string]any{
		"type":        string(event.Type),
		"update_type": string(event.UpdateType),
	}
	switch {
	case event.Issue != nil:
		msg["issue"] = event.Issue
	case event.Comment != nil:
		msg["comment"] = event.Comment
	case event.Attachment != nil:
		msg["attachment"] = event.Attachment
	}
	return json.Marshal(msg)
}
