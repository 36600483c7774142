// Package dares holds the dare and truth lifecycle rules shared by the HTTP
// handlers and the background workers.
//
// A participant moves joined -> pending_review -> completed | rejected; a
// rejected participant may submit again. Only the creator reviews, and only
// while the challenge is active.
package dares

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/darecoin/backend/internal/models"
)

var (
	ErrSelfJoin         = errors.New("you cannot accept your own dare")
	ErrNotActive        = errors.New("this challenge is no longer active")
	ErrAlreadyJoined    = errors.New("already joined")
	ErrNotParticipant   = errors.New("you have not joined this challenge")
	ErrAlreadySubmitted = errors.New("proof already submitted and awaiting review")
	ErrAlreadyCompleted = errors.New("you already completed this challenge")
	ErrNotCreator       = errors.New("only the creator can review submissions")
	ErrNotPending       = errors.New("submission is not pending review")
	ErrCannotIgnore     = errors.New("you cannot decline a challenge you created or joined")
	ErrInvalidAction    = errors.New("action must be approve or reject")
)

// Review actions
const (
	ActionApprove = "approve"
	ActionReject  = "reject"
)

// Challenge is the part of a dare or truth the rules look at.
type Challenge struct {
	CreatorID int
	Status    string
}

// CanJoin decides whether userID may join. A returned ErrAlreadyJoined is not a
// failure for callers: joining twice is idempotent.
func CanJoin(c Challenge, userID int, existing *models.Participant) error {
	if c.CreatorID == userID {
		return ErrSelfJoin
	}
	if existing != nil {
		return ErrAlreadyJoined
	}
	if c.Status != models.StatusActive {
		return ErrNotActive
	}
	return nil
}

// CanAccept is the flag the client uses to enable its Accept button.
func CanAccept(c Challenge, userID int, joined bool) bool {
	return CanJoin(c, userID, nil) == nil && !joined
}

// CanSubmit checks that a participant may (re)submit proof.
func CanSubmit(c Challenge, p *models.Participant) error {
	if p == nil {
		return ErrNotParticipant
	}
	if c.Status != models.StatusActive {
		return ErrNotActive
	}
	switch p.Status {
	case models.ParticipantJoined, models.ParticipantRejected:
		return nil
	case models.ParticipantPendingReview:
		return ErrAlreadySubmitted
	case models.ParticipantCompleted:
		return ErrAlreadyCompleted
	}
	return fmt.Errorf("unknown participant status %q", p.Status)
}

// CanReview checks that reviewerID may approve or reject participant p.
func CanReview(c Challenge, reviewerID int, p *models.Participant) error {
	if c.CreatorID != reviewerID {
		return ErrNotCreator
	}
	if p == nil {
		return ErrNotParticipant
	}
	if c.Status != models.StatusActive {
		return ErrNotActive
	}
	if p.Status != models.ParticipantPendingReview {
		return ErrNotPending
	}
	return nil
}

// CanIgnore checks that a user may hide a challenge from their own feed.
func CanIgnore(c Challenge, userID int, existing *models.Participant) error {
	if c.CreatorID == userID || existing != nil {
		return ErrCannotIgnore
	}
	return nil
}

// ReviewOutcome maps a review action to the participant's next status.
func ReviewOutcome(action string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(action)) {
	case ActionApprove, "approved", "accept":
		return models.ParticipantCompleted, nil
	case ActionReject, "rejected", "decline":
		return models.ParticipantRejected, nil
	}
	return "", ErrInvalidAction
}

// Expirable reports whether an expired challenge can be closed now. Challenges
// with submissions awaiting review stay open until the creator decides.
func Expirable(c Challenge, pendingReviews int, expiresAt, now time.Time) bool {
	return c.Status == models.StatusActive && pendingReviews == 0 && !now.Before(expiresAt)
}

const maxTimeframe = 365 * 24 * time.Hour

// ParseTimeframe turns values such as "24h", "3d", "1w", "30m", "2 days" or
// "1 week" into a duration. Empty input falls back to def.
func ParseTimeframe(tf string, def time.Duration) (time.Duration, error) {
	s := strings.ToLower(strings.TrimSpace(tf))
	if s == "" {
		return def, nil
	}
	s = strings.ReplaceAll(s, " ", "")

	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 {
		return 0, fmt.Errorf("invalid timeframe %q", tf)
	}
	n, err := strconv.Atoi(s[:i])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid timeframe %q", tf)
	}

	var unit time.Duration
	switch s[i:] {
	case "m", "min", "mins", "minute", "minutes":
		unit = time.Minute
	case "h", "hr", "hrs", "hour", "hours":
		unit = time.Hour
	case "d", "day", "days":
		unit = 24 * time.Hour
	case "w", "week", "weeks":
		unit = 7 * 24 * time.Hour
	default:
		return 0, fmt.Errorf("invalid timeframe unit in %q", tf)
	}

	if n > int(maxTimeframe/unit) {
		return 0, fmt.Errorf("timeframe %q is longer than a year", tf)
	}
	return time.Duration(n) * unit, nil
}
