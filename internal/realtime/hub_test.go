package realtime

import (
	"context"
	"log/slog"
	"testing"
	"time"
)

func testHub() *Hub {
	return NewHub(slog.Default())
}

// ---------------------------------------------------------------------------
// shouldSend tests
// ---------------------------------------------------------------------------

func TestShouldSend_AllEvents(t *testing.T) {
	h := testHub()
	client := &Client{sub: Subscription{AllEvents: true}}

	event := &Event{Type: EventPredictionSubmitted, Timestamp: time.Now()}
	if !h.shouldSend(client, event) {
		t.Error("AllEvents client should receive all events")
	}
}

func TestShouldSend_EventTypeFilter(t *testing.T) {
	h := testHub()

	client := &Client{sub: Subscription{
		EventTypes: []EventType{EventPredictionSubmitted, EventPredictionResolved},
	}}

	submitted := &Event{Type: EventPredictionSubmitted}
	resolved := &Event{Type: EventPredictionResolved}
	flagged := &Event{Type: EventRiskFlagged}

	if !h.shouldSend(client, submitted) {
		t.Error("Should receive prediction_submitted events")
	}
	if !h.shouldSend(client, resolved) {
		t.Error("Should receive prediction_resolved events")
	}
	if h.shouldSend(client, flagged) {
		t.Error("Should NOT receive risk_flagged events")
	}
}

func TestShouldSend_PrincipalFilter(t *testing.T) {
	h := testHub()

	client := &Client{sub: Subscription{
		Principals: []string{"0xoracle1"},
	}}

	matching := &Event{
		Type: EventPredictionSubmitted,
		Data: map[string]interface{}{"predictor": "0xoracle1", "targetProtocol": "aave-v3"},
	}
	notMatching := &Event{
		Type: EventPredictionSubmitted,
		Data: map[string]interface{}{"predictor": "0xother"},
	}
	matchingResolver := &Event{
		Type: EventPredictionResolved,
		Data: map[string]interface{}{"resolutionOracle": "0xoracle1"},
	}
	matchingPrincipal := &Event{
		Type: EventOracleRegistered,
		Data: map[string]interface{}{"principal": "0xoracle1"},
	}

	if !h.shouldSend(client, matching) {
		t.Error("Should match on predictor")
	}
	if h.shouldSend(client, notMatching) {
		t.Error("Should NOT match unrelated principals")
	}
	if !h.shouldSend(client, matchingResolver) {
		t.Error("Should match on resolution oracle")
	}
	if !h.shouldSend(client, matchingPrincipal) {
		t.Error("Should match on principal")
	}
}

func TestShouldSend_ProtocolFilter(t *testing.T) {
	h := testHub()

	client := &Client{sub: Subscription{
		Protocols: []string{"curve"},
	}}

	matching := &Event{
		Type: EventRiskFlagged,
		Data: map[string]interface{}{"protocol": "curve"},
	}
	matchingTarget := &Event{
		Type: EventPredictionSubmitted,
		Data: map[string]interface{}{"targetProtocol": "curve"},
	}
	notMatching := &Event{
		Type: EventRiskFlagged,
		Data: map[string]interface{}{"protocol": "aave-v3"},
	}

	if !h.shouldSend(client, matching) {
		t.Error("Should match on protocol")
	}
	if !h.shouldSend(client, matchingTarget) {
		t.Error("Should match on targetProtocol")
	}
	if h.shouldSend(client, notMatching) {
		t.Error("Should NOT match other protocols")
	}
}

func TestShouldSend_MinStakeFilter(t *testing.T) {
	h := testHub()

	client := &Client{sub: Subscription{
		MinStake: 5_000_000,
	}}

	big := &Event{
		Type: EventPredictionSubmitted,
		Data: map[string]interface{}{"stakeAmount": float64(10_000_000)},
	}
	small := &Event{
		Type: EventPredictionSubmitted,
		Data: map[string]interface{}{"stakeAmount": float64(1_000_000)},
	}
	otherType := &Event{
		Type: EventRewardClaimed,
		Data: map[string]interface{}{"claimed": float64(1)},
	}

	if !h.shouldSend(client, big) {
		t.Error("Should receive large-stake submissions")
	}
	if h.shouldSend(client, small) {
		t.Error("Should NOT receive small-stake submissions")
	}
	if !h.shouldSend(client, otherType) {
		t.Error("MinStake only applies to submissions")
	}
}

// ---------------------------------------------------------------------------
// Hub lifecycle tests
// ---------------------------------------------------------------------------

func TestHubRegisterAndBroadcast(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	client := &Client{
		hub:  h,
		send: make(chan []byte, 8),
		sub:  Subscription{AllEvents: true},
	}
	h.register <- client

	h.Broadcast(&Event{
		Type:      EventOracleRegistered,
		Timestamp: time.Now(),
		Data:      map[string]interface{}{"principal": "0xaaa"},
	})

	select {
	case msg := <-client.send:
		if len(msg) == 0 {
			t.Error("empty broadcast payload")
		}
	case <-time.After(time.Second):
		t.Fatal("client never received broadcast")
	}
}

func TestHubShutdownClosesClients(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	client := &Client{
		hub:  h,
		send: make(chan []byte, 8),
		sub:  Subscription{AllEvents: true},
	}
	h.register <- client

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}

	// Client channel closed on shutdown.
	select {
	case _, ok := <-client.send:
		if ok {
			t.Error("expected closed send channel")
		}
	case <-time.After(time.Second):
		t.Fatal("client send channel not closed")
	}
}

func TestHubStats(t *testing.T) {
	h := testHub()
	stats := h.Stats()
	if stats["connectedClients"].(int) != 0 {
		t.Errorf("connectedClients = %v, want 0", stats["connectedClients"])
	}
}
