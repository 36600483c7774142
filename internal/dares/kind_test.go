package dares

import (
	"strings"
	"testing"

	"github.com/darecoin/backend/internal/accounts"
	"github.com/darecoin/backend/internal/models"
	rdb "github.com/darecoin/backend/internal/redis"
)

func TestKinds(t *testing.T) {
	if DareKind.Set != rdb.DareExpirySet || TruthKind.Set != rdb.TruthExpirySet {
		t.Errorf("kinds must use their own expiry sets")
	}
	if DareKind.RefType != accounts.RefDare || TruthKind.RefType != accounts.RefTruth {
		t.Errorf("unexpected reference types")
	}
	if DareKind.titleColumn() != "title" || TruthKind.titleColumn() != "question" {
		t.Errorf("unexpected title columns")
	}
	if DareKind.IsTruth() || !TruthKind.IsTruth() {
		t.Errorf("IsTruth mixed up")
	}
	if tg := TruthKind.Target(3); tg.TruthID != 3 || tg.DareID != 0 {
		t.Errorf("truth target points at the wrong table: %+v", tg)
	}
	if l := DareKind.Label(&Item{Title: "Sing"}); !strings.Contains(l, "Sing") {
		t.Errorf("label %q misses the title", l)
	}
}

func TestItemChallenge(t *testing.T) {
	it := &Item{ID: 4, CreatorID: 9, Status: models.StatusActive}
	c := it.Challenge()
	if c.CreatorID != 9 || c.Status != models.StatusActive {
		t.Errorf("unexpected challenge %+v", c)
	}
	if err := CanJoin(c, 9, nil); err != ErrSelfJoin {
		t.Errorf("creator join: got %v", err)
	}
}

func TestCloseAndRefundRequiresActive(t *testing.T) {
	// the status check runs before any statement
	it := &Item{ID: 1, Status: models.StatusCompleted}
	if err := DareKind.CloseAndRefund(nil, it, models.StatusRemoved, "removed"); err != ErrNotActive {
		t.Errorf("expected ErrNotActive, got %v", err)
	}
}
