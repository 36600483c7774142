package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
)

func TestIsUniqueViolation(t *testing.T) {
	unique := &pq.Error{Code: "23505", Message: "duplicate key"}
	if !IsUniqueViolation(unique) {
		t.Errorf("expected unique violation")
	}
	if !IsUniqueViolation(fmt.Errorf("insert user: %w", unique)) {
		t.Errorf("expected wrapped unique violation to be detected")
	}
	if IsUniqueViolation(&pq.Error{Code: "23503"}) {
		t.Errorf("foreign key violation is not a unique violation")
	}
	if IsUniqueViolation(errors.New("boom")) {
		t.Errorf("plain error is not a unique violation")
	}
}

func TestViolatedConstraint(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &pq.Error{Code: "23505", Constraint: "users_email_key"})
	if got := ViolatedConstraint(err); got != "users_email_key" {
		t.Errorf("unexpected constraint %q", got)
	}
	if ViolatedConstraint(errors.New("x")) != "" {
		t.Errorf("plain error has no constraint")
	}
}
