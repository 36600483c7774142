package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/darecoin/backend/internal/accounts"
	"github.com/darecoin/backend/internal/models"
	"github.com/darecoin/backend/internal/testdb"
	"github.com/jmoiron/sqlx"
)

func fundUser(t *testing.T, db *sqlx.DB, userID int, amount int64) {
	t.Helper()
	tx := db.MustBegin()
	if err := accounts.CreditExternal(tx, userID, amount, models.TxnTopup, accounts.RefTopup, 0, "test funds"); err != nil {
		tx.Rollback()
		t.Fatalf("fund user %d: %v", userID, err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit funds: %v", err)
	}
}

func walletOf(t *testing.T, db *sqlx.DB, userID int) int64 {
	t.Helper()
	b, err := accounts.Balance(db, userID)
	if err != nil {
		t.Fatalf("balance of %d: %v", userID, err)
	}
	return b
}

func decode(t *testing.T, body []byte, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(body, out); err != nil {
		t.Fatalf("Failed to decode response: %v (%s)", err, body)
	}
}

// createDare posts a dare as creatorID and returns its id.
func createDare(t *testing.T, db *sqlx.DB, creatorID int, reward int64) int {
	t.Helper()
	w := serveAs(t, creatorID, http.MethodPost, "/dares", "/dares",
		map[string]interface{}{"title": "Eat a lemon", "reward": reward, "timeframe": "24h"},
		CreateDare(db, nil, testConfig()))
	if w.Code != http.StatusCreated {
		t.Fatalf("create dare: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var d models.Dare
	decode(t, w.Body.Bytes(), &d)
	if d.ID == 0 || d.Status != models.StatusActive || d.CanAccept {
		t.Fatalf("unexpected dare %+v", d)
	}
	return d.ID
}

func dareRoute(action string) (string, func(id int) string) {
	return "/dares/:id/" + action, func(id int) string { return fmt.Sprintf("/dares/%d/%s", id, action) }
}

func TestDareLifecycle(t *testing.T) {
	db := testdb.Open(t)
	creator := testdb.CreateUser(t, db, "creator")
	alice := testdb.CreateUser(t, db, "alice")
	bob := testdb.CreateUser(t, db, "bob")
	fundUser(t, db, creator, 1000)

	id := createDare(t, db, creator, 500)
	if got := walletOf(t, db, creator); got != 500 {
		t.Fatalf("expected the stake escrowed, creator balance %d", got)
	}

	joinRoute, joinPath := dareRoute("join")
	join := JoinDare(db, nil)
	if w := serveAs(t, creator, http.MethodPost, joinRoute, joinPath(id), nil, join); w.Code != http.StatusForbidden {
		t.Errorf("creator join: expected 403, got %d", w.Code)
	}
	for _, tt := range []struct {
		user int
		want string
	}{
		{alice, "Dare accepted"},
		{alice, "You already accepted this dare"},
		{bob, "Dare accepted"},
	} {
		w := serveAs(t, tt.user, http.MethodPost, joinRoute, joinPath(id), nil, join)
		if w.Code != http.StatusOK {
			t.Fatalf("join by %d: expected 200, got %d: %s", tt.user, w.Code, w.Body.String())
		}
		if msg := message(t, w); msg != tt.want {
			t.Errorf("join by %d: expected %q, got %q", tt.user, tt.want, msg)
		}
	}
	var rows int
	if err := db.Get(&rows, `SELECT COUNT(*) FROM dare_participants WHERE dare_id=$1`, id); err != nil {
		t.Fatalf("count participants: %v", err)
	}
	if rows != 2 {
		t.Errorf("expected 2 participant rows after a repeat join, got %d", rows)
	}

	submitRoute, submitPath := dareRoute("submit")
	submit := SubmitDare(db, nil, testConfig())
	if w := serveAs(t, alice, http.MethodPost, submitRoute, submitPath(id), map[string]string{"description": "done"}, submit); w.Code != http.StatusOK {
		t.Fatalf("alice submit: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if w := serveAs(t, bob, http.MethodPost, submitRoute, submitPath(id), map[string]string{"proofUrl": "https://cdn.test/lemon.jpg"}, submit); w.Code != http.StatusOK {
		t.Fatalf("bob submit: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if w := serveAs(t, alice, http.MethodPost, submitRoute, submitPath(id), map[string]string{"description": "again"}, submit); w.Code != http.StatusConflict {
		t.Errorf("second submit while pending: expected 409, got %d", w.Code)
	}

	pendingRoute, pendingPath := dareRoute("pending")
	if w := serveAs(t, alice, http.MethodGet, pendingRoute, pendingPath(id), nil, PendingDare(db)); w.Code != http.StatusForbidden {
		t.Errorf("pending as participant: expected 403, got %d", w.Code)
	}
	w := serveAs(t, creator, http.MethodGet, pendingRoute, pendingPath(id), nil, PendingDare(db))
	if w.Code != http.StatusOK {
		t.Fatalf("pending: expected 200, got %d", w.Code)
	}
	var pending struct {
		Participants []models.Participant `json:"participants"`
	}
	decode(t, w.Body.Bytes(), &pending)
	if len(pending.Participants) != 2 {
		t.Fatalf("expected 2 pending submissions, got %d", len(pending.Participants))
	}
	var bobEntry models.Participant
	for _, p := range pending.Participants {
		if p.User.ID == bob {
			bobEntry = p
		}
	}
	if bobEntry.ID == 0 || bobEntry.UserID != bob {
		t.Fatalf("bob's submission missing from %+v", pending.Participants)
	}

	verifyRoute, verifyPath := dareRoute("verify")
	verify := VerifyDare(db, nil)
	approve := map[string]interface{}{"participantId": bobEntry.ID, "action": "approve"}
	if w := serveAs(t, alice, http.MethodPost, verifyRoute, verifyPath(id), approve, verify); w.Code != http.StatusForbidden {
		t.Errorf("verify by non-creator: expected 403, got %d", w.Code)
	}
	// bob's participant id equals alice's user id here; the id names bob's row
	w = serveAs(t, creator, http.MethodPost, verifyRoute, verifyPath(id), approve, verify)
	if w.Code != http.StatusOK {
		t.Fatalf("approve: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	if got := walletOf(t, db, bob); got != 500 {
		t.Errorf("expected bob paid 500, got %d", got)
	}
	if got := walletOf(t, db, alice); got != 0 {
		t.Errorf("expected alice unpaid, got %d", got)
	}
	if got := walletOf(t, db, creator); got != 500 {
		t.Errorf("expected creator balance 500, got %d", got)
	}
	if sum := testdb.SumBalances(t, db); sum != 0 {
		t.Errorf("balances must sum to zero, got %d", sum)
	}

	d, err := loadDare(db, id, creator)
	if err != nil {
		t.Fatalf("load dare: %v", err)
	}
	if d.Status != models.StatusCompleted {
		t.Errorf("expected dare completed, got %s", d.Status)
	}
	for _, p := range d.Participants {
		want := models.ParticipantRejected
		if p.UserID == bob {
			want = models.ParticipantCompleted
		}
		if p.Status != want {
			t.Errorf("participant %d: expected %s, got %s", p.UserID, want, p.Status)
		}
	}

	if w := serveAs(t, creator, http.MethodPost, verifyRoute, verifyPath(id), approve, verify); w.Code != http.StatusConflict {
		t.Errorf("second review: expected 409, got %d", w.Code)
	}
	if got := walletOf(t, db, bob); got != 500 {
		t.Errorf("a second review must not pay again, bob has %d", got)
	}
}

func TestVerifyUsesParticipantID(t *testing.T) {
	db := testdb.Open(t)
	creator := testdb.CreateUser(t, db, "creator")
	alice := testdb.CreateUser(t, db, "alice")
	fundUser(t, db, creator, 100)
	id := createDare(t, db, creator, 100)

	joinRoute, joinPath := dareRoute("join")
	if w := serveAs(t, alice, http.MethodPost, joinRoute, joinPath(id), nil, JoinDare(db, nil)); w.Code != http.StatusOK {
		t.Fatalf("join: %d", w.Code)
	}
	submitRoute, submitPath := dareRoute("submit")
	w := serveAs(t, alice, http.MethodPost, submitRoute, submitPath(id), map[string]string{"description": "done"}, SubmitDare(db, nil, testConfig()))
	if w.Code != http.StatusOK {
		t.Fatalf("submit: %d", w.Code)
	}
	var submitted struct {
		Participant models.Participant `json:"participant"`
	}
	decode(t, w.Body.Bytes(), &submitted)
	if submitted.Participant.ID == alice {
		t.Fatalf("participant and user ids must differ for this test")
	}

	verifyRoute, verifyPath := dareRoute("verify")
	verify := VerifyDare(db, nil)
	byUser := map[string]interface{}{"participantId": alice, "action": "reject"}
	if w := serveAs(t, creator, http.MethodPost, verifyRoute, verifyPath(id), byUser, verify); w.Code != http.StatusBadRequest {
		t.Errorf("user id as participantId: expected 400, got %d", w.Code)
	}
	byRow := map[string]interface{}{"participantId": submitted.Participant.ID, "action": "reject", "note": "blurry"}
	w = serveAs(t, creator, http.MethodPost, verifyRoute, verifyPath(id), byRow, verify)
	if w.Code != http.StatusOK {
		t.Fatalf("reject: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var status string
	if err := db.Get(&status, `SELECT status FROM dare_participants WHERE id=$1`, submitted.Participant.ID); err != nil {
		t.Fatalf("load participant: %v", err)
	}
	if status != models.ParticipantRejected {
		t.Errorf("expected rejected, got %s", status)
	}
	if got := walletOf(t, db, alice); got != 0 {
		t.Errorf("rejection must not pay, alice has %d", got)
	}
}

func TestIgnoredDaresLeaveTheFeed(t *testing.T) {
	db := testdb.Open(t)
	creator := testdb.CreateUser(t, db, "creator")
	alice := testdb.CreateUser(t, db, "alice")
	bob := testdb.CreateUser(t, db, "bob")
	fundUser(t, db, creator, 50)
	id := createDare(t, db, creator, 50)

	ignoreRoute, ignorePath := dareRoute("ignore")
	if w := serveAs(t, creator, http.MethodPost, ignoreRoute, ignorePath(id), nil, IgnoreDare(db)); w.Code != http.StatusBadRequest {
		t.Errorf("creator ignore: expected 400, got %d", w.Code)
	}
	if w := serveAs(t, bob, http.MethodPost, ignoreRoute, ignorePath(id), nil, IgnoreDare(db)); w.Code != http.StatusOK {
		t.Fatalf("ignore: expected 200, got %d", w.Code)
	}

	feed := func(user int) int {
		w := serveAs(t, user, http.MethodGet, "/dares", "/dares", nil, ListDares(db))
		if w.Code != http.StatusOK {
			t.Fatalf("list: expected 200, got %d", w.Code)
		}
		var out struct {
			Dares []models.Dare `json:"dares"`
			Total int           `json:"total"`
		}
		decode(t, w.Body.Bytes(), &out)
		return len(out.Dares)
	}
	if n := feed(bob); n != 0 {
		t.Errorf("expected the ignored dare hidden from bob, got %d dares", n)
	}
	if n := feed(alice); n != 1 {
		t.Errorf("expected alice to still see the dare, got %d", n)
	}
}

func TestTransferAgainstLedger(t *testing.T) {
	db := testdb.Open(t)
	alice := testdb.CreateUser(t, db, "alice")
	bob := testdb.CreateUser(t, db, "bob")
	fundUser(t, db, alice, 10)
	cfg := testConfig()

	tests := []struct {
		name      string
		body      string
		wantCode  int
		wantAlice int64
	}{
		{"overdraft", `{"to": "bob", "amount": 20}`, http.StatusBadRequest, 10},
		{"unknown recipient", `{"to": "carol", "amount": 5}`, http.StatusNotFound, 10},
		{"self by username", `{"to": "ALICE", "amount": 5}`, http.StatusBadRequest, 10},
		{"by id", fmt.Sprintf(`{"to": %d, "amount": 6}`, bob), http.StatusOK, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serveAs(t, alice, http.MethodPost, "/transfer", "/transfer", tt.body, Transfer(db, nil, cfg))
			if w.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d: %s", tt.wantCode, w.Code, w.Body.String())
			}
			if got := walletOf(t, db, alice); got != tt.wantAlice {
				t.Errorf("expected alice balance %d, got %d", tt.wantAlice, got)
			}
			if sum := testdb.SumBalances(t, db); sum != 0 {
				t.Errorf("balances must sum to zero, got %d", sum)
			}
		})
	}
	if got := walletOf(t, db, bob); got != 6 {
		t.Errorf("expected bob to hold 6, got %d", got)
	}
}
