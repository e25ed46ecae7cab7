package realtime

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/KIaudius/issues-insights-tracker/internal/ports"
)

func issueEvent(issueID uint64) ports.Event {
	return ports.Event{
		Type:       ports.EventIssueUpdate,
		UpdateType: ports.UpdateUpdated,
		IssueID:    issueID,
		Issue: &ports.IssueSnapshot{
			IssueID:  issueID,
			Title:    "t",
			Status:   "TRIAGED",
			Severity: "HIGH",
		},
	}
}

func drain(c *Client) [][]byte {
	var out [][]byte
	for {
		select {
		case payload := <-c.send:
			out = append(out, payload)
		default:
			return out
		}
	}
}

func TestPublishReachesAllChannelsOfSubscriber(t *testing.T) {
	hub := NewHub()
	ctx := context.Background()

	// User 1 follows issue 10 on two channels; user 2 follows issue 20.
	c1a := newClient(hub, 1, nil)
	c1b := newClient(hub, 1, nil)
	c2 := newClient(hub, 2, nil)
	hub.Connect(c1a)
	hub.Connect(c1b)
	hub.Connect(c2)
	hub.Subscribe(1, 10)
	hub.Subscribe(2, 20)

	hub.Publish(ctx, issueEvent(10))

	if got := len(drain(c1a)); got != 1 {
		t.Errorf("channel c1a got %d events, want 1", got)
	}
	if got := len(drain(c1b)); got != 1 {
		t.Errorf("channel c1b got %d events, want 1", got)
	}
	if got := len(drain(c2)); got != 0 {
		t.Errorf("unsubscribed user's channel got %d events, want 0", got)
	}
}

func TestPublishPayloadShape(t *testing.T) {
	hub := NewHub()
	c := newClient(hub, 1, nil)
	hub.Connect(c)
	hub.Subscribe(1, 10)

	hub.Publish(context.Background(), issueEvent(10))

	payloads := drain(c)
	if len(payloads) != 1 {
		t.Fatalf("got %d payloads, want 1", len(payloads))
	}

	var msg struct {
		Type       string `json:"type"`
		UpdateType string `json:"update_type"`
		Issue      struct {
			ID     uint64 `json:"id"`
			Status string `json:"status"`
		} `json:"issue"`
	}
	if err := json.Unmarshal(payloads[0], &msg); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if msg.Type != "issue_update" || msg.UpdateType != "updated" {
		t.Fatalf("payload type = %s/%s", msg.Type, msg.UpdateType)
	}
	if msg.Issue.ID != 10 || msg.Issue.Status != "TRIAGED" {
		t.Fatalf("payload issue = %+v", msg.Issue)
	}
}

func TestSubscribeIsIdempotent(t *testing.T) {
	hub := NewHub()
	c := newClient(hub, 1, nil)
	hub.Connect(c)
	hub.Subscribe(1, 10)
	hub.Subscribe(1, 10)

	hub.Publish(context.Background(), issueEvent(10))

	if got := len(drain(c)); got != 1 {
		t.Fatalf("duplicate subscription delivered %d events, want 1", got)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	hub := NewHub()
	c := newClient(hub, 1, nil)
	hub.Connect(c)
	hub.Subscribe(1, 10)
	hub.Unsubscribe(1, 10)
	hub.Unsubscribe(1, 10) // idempotent

	hub.Publish(context.Background(), issueEvent(10))

	if got := len(drain(c)); got != 0 {
		t.Fatalf("unsubscribed channel got %d events, want 0", got)
	}
}

func TestDisconnectKeepsSubscriptionsInert(t *testing.T) {
	hub := NewHub()
	ctx := context.Background()

	c := newClient(hub, 1, nil)
	hub.Connect(c)
	hub.Subscribe(1, 10)
	hub.Disconnect(c)

	// Stale subscription without a live channel delivers nowhere.
	hub.Publish(ctx, issueEvent(10))
	if got := len(drain(c)); got != 0 {
		t.Fatalf("disconnected channel got %d events, want 0", got)
	}

	// Reconnect revives the subscription.
	c2 := newClient(hub, 1, nil)
	hub.Connect(c2)
	hub.Publish(ctx, issueEvent(10))
	if got := len(drain(c2)); got != 1 {
		t.Fatalf("reconnected channel got %d events, want 1", got)
	}
}

func TestPublishDropsForSlowClientOnly(t *testing.T) {
	hub := NewHub()
	ctx := context.Background()

	slow := newClient(hub, 1, nil)
	fast := newClient(hub, 2, nil)
	hub.Connect(slow)
	hub.Connect(fast)
	hub.Subscribe(1, 10)
	hub.Subscribe(2, 10)

	// Fill the slow client's buffer.
	for i := 0; i < sendBuffer; i++ {
		hub.Publish(ctx, issueEvent(10))
	}
	drain(fast)

	// The next publish must still reach the healthy client.
	hub.Publish(ctx, issueEvent(10))

	if got := len(drain(fast)); got != 1 {
		t.Fatalf("healthy channel got %d events, want 1", got)
	}
	if got := len(drain(slow)); got != sendBuffer {
		t.Fatalf("slow channel buffered %d events, want %d", got, sendBuffer)
	}
}

func TestPublishWithNoSubscribersIsSilent(t *testing.T) {
	hub := NewHub()
	// Must not panic or block.
	hub.Publish(context.Background(), issueEvent(99))
}
