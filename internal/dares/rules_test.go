package dares

import (
	"errors"
	"testing"
	"time"

	"github.com/darecoin/backend/internal/models"
)

func participant(status string) *models.Participant {
	return &models.Participant{UserID: 2, Status: status}
}

func TestCanJoin(t *testing.T) {
	active := Challenge{CreatorID: 1, Status: models.StatusActive}
	done := Challenge{CreatorID: 1, Status: models.StatusCompleted}

	tests := []struct {
		name     string
		c        Challenge
		userID   int
		existing *models.Participant
		want     error
	}{
		{"creator cannot join", active, 1, nil, ErrSelfJoin},
		{"creator cannot join closed dare either", done, 1, nil, ErrSelfJoin},
		{"fresh join", active, 2, nil, nil},
		{"duplicate join", active, 2, participant(models.ParticipantJoined), ErrAlreadyJoined},
		{"duplicate join after completion", done, 2, participant(models.ParticipantCompleted), ErrAlreadyJoined},
		{"closed dare", done, 2, nil, ErrNotActive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := CanJoin(tt.c, tt.userID, tt.existing); !errors.Is(err, tt.want) {
				t.Errorf("CanJoin() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCreatorNeverSeesAccept(t *testing.T) {
	for _, status := range []string{models.StatusActive, models.StatusCompleted, models.StatusExpired} {
		c := Challenge{CreatorID: 7, Status: status}
		if CanAccept(c, 7, false) {
			t.Errorf("creator saw an enabled accept action for status %s", status)
		}
	}
	if !CanAccept(Challenge{CreatorID: 7, Status: models.StatusActive}, 8, false) {
		t.Errorf("other user should be able to accept an active dare")
	}
	if CanAccept(Challenge{CreatorID: 7, Status: models.StatusActive}, 8, true) {
		t.Errorf("a joined user should not see accept again")
	}
}

func TestCanSubmit(t *testing.T) {
	active := Challenge{CreatorID: 1, Status: models.StatusActive}
	tests := []struct {
		name string
		c    Challenge
		p    *models.Participant
		want error
	}{
		{"not joined", active, nil, ErrNotParticipant},
		{"joined", active, participant(models.ParticipantJoined), nil},
		{"resubmit after rejection", active, participant(models.ParticipantRejected), nil},
		{"already pending", active, participant(models.ParticipantPendingReview), ErrAlreadySubmitted},
		{"already completed", active, participant(models.ParticipantCompleted), ErrAlreadyCompleted},
		{"expired dare", Challenge{CreatorID: 1, Status: models.StatusExpired}, participant(models.ParticipantJoined), ErrNotActive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := CanSubmit(tt.c, tt.p); !errors.Is(err, tt.want) {
				t.Errorf("CanSubmit() = %v, want %v", err, tt.want)
			}
		})
	}

	if err := CanSubmit(active, participant("weird")); err == nil {
		t.Errorf("expected error for unknown status")
	}
}

func TestCanReview(t *testing.T) {
	active := Challenge{CreatorID: 1, Status: models.StatusActive}
	tests := []struct {
		name     string
		c        Challenge
		reviewer int
		p        *models.Participant
		want     error
	}{
		{"creator approves pending", active, 1, participant(models.ParticipantPendingReview), nil},
		{"non creator", active, 3, participant(models.ParticipantPendingReview), ErrNotCreator},
		{"participant reviews self", active, 2, participant(models.ParticipantPendingReview), ErrNotCreator},
		{"unknown participant", active, 1, nil, ErrNotParticipant},
		{"second review", active, 1, participant(models.ParticipantCompleted), ErrNotPending},
		{"rejected already", active, 1, participant(models.ParticipantRejected), ErrNotPending},
		{"joined without proof", active, 1, participant(models.ParticipantJoined), ErrNotPending},
		{"completed dare", Challenge{CreatorID: 1, Status: models.StatusCompleted}, 1, participant(models.ParticipantPendingReview), ErrNotActive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := CanReview(tt.c, tt.reviewer, tt.p); !errors.Is(err, tt.want) {
				t.Errorf("CanReview() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCanIgnore(t *testing.T) {
	c := Challenge{CreatorID: 1, Status: models.StatusActive}
	if err := CanIgnore(c, 1, nil); !errors.Is(err, ErrCannotIgnore) {
		t.Errorf("creator must not be able to decline own dare")
	}
	if err := CanIgnore(c, 2, participant(models.ParticipantJoined)); !errors.Is(err, ErrCannotIgnore) {
		t.Errorf("participant must not be able to decline")
	}
	if err := CanIgnore(c, 2, nil); err != nil {
		t.Errorf("bystander should be able to decline: %v", err)
	}
}

func TestReviewOutcome(t *testing.T) {
	cases := map[string]string{
		"approve":   models.ParticipantCompleted,
		" APPROVE ": models.ParticipantCompleted,
		"approved":  models.ParticipantCompleted,
		"reject":    models.ParticipantRejected,
		"rejected":  models.ParticipantRejected,
	}
	for in, want := range cases {
		got, err := ReviewOutcome(in)
		if err != nil || got != want {
			t.Errorf("ReviewOutcome(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ReviewOutcome("maybe"); !errors.Is(err, ErrInvalidAction) {
		t.Errorf("expected ErrInvalidAction, got %v", err)
	}
}

func TestExpirable(t *testing.T) {
	now := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)
	active := Challenge{CreatorID: 1, Status: models.StatusActive}

	if !Expirable(active, 0, past, now) {
		t.Errorf("overdue dare without reviews should expire")
	}
	if !Expirable(active, 0, now, now) {
		t.Errorf("dare expiring exactly now should expire")
	}
	if Expirable(active, 1, past, now) {
		t.Errorf("dare with pending review must wait for the creator")
	}
	if Expirable(active, 0, future, now) {
		t.Errorf("dare before its deadline must not expire")
	}
	if Expirable(Challenge{Status: models.StatusCompleted}, 0, past, now) {
		t.Errorf("completed dare must not expire")
	}
}

func TestParseTimeframe(t *testing.T) {
	def := 7 * 24 * time.Hour
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"", def, false},
		{"24h", 24 * time.Hour, false},
		{"3d", 72 * time.Hour, false},
		{"1w", 7 * 24 * time.Hour, false},
		{"30m", 30 * time.Minute, false},
		{"2 days", 48 * time.Hour, false},
		{"1 Week", 7 * 24 * time.Hour, false},
		{"12 hours", 12 * time.Hour, false},
		{"d", 0, true},
		{"0h", 0, true},
		{"5y", 0, true},
		{"400d", 0, true},
		{"365d", 365 * 24 * time.Hour, false},
		{"8760h", 365 * 24 * time.Hour, false},
		{"8761h", 0, true},
		{"53w", 0, true},
		// products that would overflow time.Duration
		{"2562048h", 0, true},
		{"5124096h", 0, true},
		{"3074457345618h", 0, true},
		{"99999999999999999999d", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseTimeframe(tt.in, def)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseTimeframe(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseTimeframe(%q) unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseTimeframe(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
