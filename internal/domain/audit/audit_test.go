package audit

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestBuildBaseQueryNumbersPlaceholders(t *testing.T) {
	query, args := buildBaseQuery("SELECT COUNT(1)", Filter{Action: "selection.approve", ActorUser: "u1"})
	if !strings.Contains(query, "action = $1") || !strings.Contains(query, "actor_user_id = $2::uuid") {
		t.Fatalf("unexpected query: %s", query)
	}
	if len(args) != 2 || args[0] != "selection.approve" || args[1] != "u1" {
		t.Fatalf("unexpected args: %v", args)
	}

	query, args = buildBaseQuery("SELECT 1", Filter{})
	if strings.Contains(query, "$") || len(args) != 0 {
		t.Fatalf("expected no filters, got %s %v", query, args)
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	events := []Event{{
		ID:         "e1",
		ActorID:    "u1",
		Action:     "feedback.create",
		EntityType: "feedback_form",
		EntityID:   "f1",
		RequestID:  "req-1",
		IP:         "10.0.0.1",
		CreatedAt:  time.Date(2024, 7, 1, 9, 30, 0, 0, time.UTC),
	}}
	if err := WriteCSV(&buf, events); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header and one row, got %d lines", len(lines))
	}
	if lines[1] != "e1,u1,feedback.create,feedback_form,f1,req-1,10.0.0.1,2024-07-01T09:30:00Z" {
		t.Fatalf("unexpected row: %q", lines[1])
	}
}

func TestMarshalStateSkipsNil(t *testing.T) {
	payload, err := marshalState(nil)
	if err != nil || payload != nil {
		t.Fatalf("expected nil payload, got %s %v", payload, err)
	}
	payload, err = marshalState(map[string]string{"status": "approved"})
	if err != nil || string(payload) != `{"status":"approved"}` {
		t.Fatalf("unexpected payload: %s %v", payload, err)
	}
}
