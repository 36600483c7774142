package notify

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/darecoin/backend/internal/models"
)

func TestDecode(t *testing.T) {
	n := models.Notification{
		ID:        4,
		UserID:    9,
		Type:      ProofApproved,
		Message:   "approved",
		DareID:    sql.NullInt64{Int64: 3, Valid: true},
		CreatedAt: time.Now(),
	}
	body, _ := json.Marshal(n)
	payload, _ := json.Marshal(Event{UserID: 9, Notification: body})

	ev, err := Decode(string(payload))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if ev.UserID != 9 {
		t.Errorf("expected user 9, got %d", ev.UserID)
	}

	var out map[string]interface{}
	if err := json.Unmarshal(ev.Notification, &out); err != nil {
		t.Fatalf("notification body not json: %v", err)
	}
	if out["dare"] != float64(3) {
		t.Errorf("expected dare id 3 to survive the round trip, got %v", out["dare"])
	}
	if out["truth"] != nil {
		t.Errorf("expected null truth, got %v", out["truth"])
	}
}

func TestDecodeRejectsBadPayloads(t *testing.T) {
	for _, p := range []string{"", "not json", `{"notification":{}}`, `{"userId":0}`} {
		if _, err := Decode(p); err == nil {
			t.Errorf("expected error for payload %q", p)
		}
	}
}

func TestPublishWithoutRedis(t *testing.T) {
	// must be a no-op rather than a panic
	Publish(context.Background(), nil, &models.Notification{ID: 1, UserID: 1})
}

func TestTargets(t *testing.T) {
	if d := Dare(5); d.DareID != 5 || d.TruthID != 0 {
		t.Errorf("unexpected dare target %+v", d)
	}
	if tr := Truth(6); tr.TruthID != 6 || tr.DareID != 0 {
		t.Errorf("unexpected truth target %+v", tr)
	}
	if nullID(0) != nil {
		t.Errorf("zero id must be stored as NULL")
	}
}
