package mq

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
)

func TestParsePayload_RoundTripThroughJSON(t *testing.T) {
	runID := uuid.New()
	sent := NewMessage(MessageTypeRunPending, RunPendingPayload{
		RunID:            runID,
		UserStory:        "simple form",
		SimulateFailures: 2,
	})

	body, err := json.Marshal(sent)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	// Consumer получает payload как map[string]any
	var received Message
	if err := json.Unmarshal(body, &received); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if received.Type != MessageTypeRunPending {
		t.Errorf("expected type %s, got %s", MessageTypeRunPending, received.Type)
	}

	payload, err := ParsePayload[RunPendingPayload](&received)
	if err != nil {
		t.Fatalf("parse payload: %v", err)
	}

	want := RunPendingPayload{RunID: runID, UserStory: "simple form", SimulateFailures: 2}
	if diff := cmp.Diff(want, payload); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}
}

func TestParsePayload_WrongShape(t *testing.T) {
	msg := &Message{Payload: map[string]any{"run_id": 42}}

	if _, err := ParsePayload[RunPendingPayload](msg); err == nil {
		t.Error("expected error for non-UUID run_id")
	}
}

func TestNewMessage(t *testing.T) {
	a := NewMessage(MessageTypeRunFinished, nil)
	b := NewMessage(MessageTypeRunFinished, nil)

	if a.ID == "" || a.ID == b.ID {
		t.Errorf("message IDs should be unique and non-empty: %q %q", a.ID, b.ID)
	}
	if a.Timestamp.IsZero() {
		t.Error("timestamp should be set")
	}
}

func TestQueueArgs(t *testing.T) {
	args := queueArgs(QueueRunsPending)
	if args["x-dead-letter-exchange"] != string(ExchangeDLQ) {
		t.Errorf("runs.pending should dead-letter to %s, got %v", ExchangeDLQ, args)
	}
	if queueArgs(QueueDLQRuns) != nil {
		t.Error("dlq queue should have no arguments")
	}
}

func TestTopologyInfo_ListsBindings(t *testing.T) {
	info := TopologyInfo()
	for _, b := range bindings {
		if !strings.Contains(info, string(b.queue)) {
			t.Errorf("topology info misses queue %s", b.queue)
		}
		if !strings.Contains(info, string(b.exchange)) {
			t.Errorf("topology info misses exchange %s", b.exchange)
		}
	}
}
