package domain

import "testing"

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to TicketStatus
		want     bool
	}{
		{"", TicketStatusOpen, true},
		{"", TicketStatusInProgress, false},
		{TicketStatusOpen, TicketStatusInProgress, true},
		{TicketStatusOpen, TicketStatusResolved, false},
		{TicketStatusOpen, TicketStatusClosed, false},
		{TicketStatusInProgress, TicketStatusResolved, true},
		{TicketStatusInProgress, TicketStatusEscalated, true},
		{TicketStatusInProgress, TicketStatusClosed, false},
		{TicketStatusEscalated, TicketStatusInProgress, true},
		{TicketStatusEscalated, TicketStatusClosed, true},
		{TicketStatusResolved, TicketStatusClosed, true},
		{TicketStatusResolved, TicketStatusInProgress, false},
		{TicketStatusClosed, TicketStatusOpen, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%q, %q) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestEscalationLevelFor(t *testing.T) {
	if got := EscalationLevelFor(RoleTechnician); got != EscalationLevelTechnician {
		t.Fatalf("technician target: got %q", got)
	}
	for _, r := range []Role{RoleSupervisor, RoleAdmin} {
		if got := EscalationLevelFor(r); got != EscalationLevelSupervisor {
			t.Fatalf("%s target: got %q", r, got)
		}
	}
}

func TestSubmitterFullName(t *testing.T) {
	cases := map[string]Submitter{
		"Thandi Mokoena": {FirstName: "Thandi", LastName: "Mokoena"},
		"Thandi":         {FirstName: "Thandi"},
		"Mokoena":        {LastName: "Mokoena"},
	}
	for want, s := range cases {
		if got := s.FullName(); got != want {
			t.Errorf("FullName() = %q, want %q", got, want)
		}
	}
}
