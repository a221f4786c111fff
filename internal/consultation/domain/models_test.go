package domain_test

import (
	"testing"

	"github.com/counselhub/counselhub/internal/consultation/domain"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to domain.Status
		want     bool
	}{
		{domain.StatusDraft, domain.StatusSubmitted, true},
		{domain.StatusSubmitted, domain.StatusPendingAdvisor, true},
		{domain.StatusPendingAdvisor, domain.StatusAccepted, true},
		{domain.StatusPendingAdvisor, domain.StatusCancelled, true},
		{domain.StatusAccepted, domain.StatusPaymentReserved, true},
		{domain.StatusAccepted, domain.StatusCancelled, true},
		{domain.StatusPaymentReserved, domain.StatusInProgress, true},
		{domain.StatusPaymentReserved, domain.StatusCancelled, true},
		{domain.StatusInProgress, domain.StatusCompleted, true},
		{domain.StatusInProgress, domain.StatusCancelled, true},
		{domain.StatusCompleted, domain.StatusReleased, true},

		{domain.StatusDraft, domain.StatusPendingAdvisor, false},
		{domain.StatusSubmitted, domain.StatusAccepted, false},
		{domain.StatusPendingAdvisor, domain.StatusInProgress, false},
		{domain.StatusAccepted, domain.StatusInProgress, false},
		{domain.StatusPaymentReserved, domain.StatusCompleted, false},
		{domain.StatusInProgress, domain.StatusReleased, false},
		{domain.StatusCompleted, domain.StatusCancelled, false},
		{domain.StatusReleased, domain.StatusCancelled, false},
		{domain.StatusCancelled, domain.StatusSubmitted, false},
		{domain.StatusRejected, domain.StatusSubmitted, false},
	}
	for _, tc := range cases {
		if got := domain.CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestTerminal(t *testing.T) {
	terminal := []domain.Status{domain.StatusReleased, domain.StatusCancelled, domain.StatusRejected}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	open := []domain.Status{
		domain.StatusDraft, domain.StatusSubmitted, domain.StatusPendingAdvisor,
		domain.StatusAccepted, domain.StatusPaymentReserved, domain.StatusInProgress,
		domain.StatusCompleted,
	}
	for _, s := range open {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestStatusValid(t *testing.T) {
	if !domain.StatusPaymentReserved.Valid() {
		t.Error("payment_reserved should be valid")
	}
	if domain.Status("refunded").Valid() {
		t.Error("unknown status should not be valid")
	}
}

func TestMilestoneColumn(t *testing.T) {
	cases := map[domain.Status]string{
		domain.StatusSubmitted:       "submitted_at",
		domain.StatusAccepted:        "accepted_at",
		domain.StatusPaymentReserved: "payment_reserved_at",
		domain.StatusInProgress:      "started_at",
		domain.StatusCompleted:       "completed_at",
		domain.StatusReleased:        "released_at",
		domain.StatusCancelled:       "cancelled_at",
		domain.StatusDraft:           "",
		domain.StatusRejected:        "",
	}
	for status, want := range cases {
		if got := domain.MilestoneColumn(status); got != want {
			t.Errorf("MilestoneColumn(%s) = %q, want %q", status, got, want)
		}
	}
}
