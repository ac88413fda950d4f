package service

import (
	"context"
	"testing"

	"github.com/tdhs/helpdesk-service/internal/config"
	"github.com/tdhs/helpdesk-service/internal/docstore"
	"github.com/tdhs/helpdesk-service/internal/domain"
	apperrors "github.com/tdhs/helpdesk-service/pkg/util/errorutil"
)

func ptr[T any](v T) *T { return &v }

func TestUpdateStaffUser(t *testing.T) {
	f := newFixture(t, docstore.NewMemoryStore(), testTicketConfig())
	s := seedStaff(t, f)
	svc := NewStaffService(f.users, nil, nil)
	ctx := context.Background()

	user, err := svc.UpdateStaffUser(ctx, s.admin, s.tech.UserID, UpdateStaffInput{
		Name:         ptr("  Thabo Mokoena "),
		Role:         ptr(domain.RoleSupervisor),
		Availability: ptr(domain.AvailabilityOnLeave),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if user.Name != "Thabo Mokoena" || user.Role != domain.RoleSupervisor || user.Availability != domain.AvailabilityOnLeave {
		t.Fatalf("unexpected user %+v", user)
	}
	stored, err := f.users.GetByID(ctx, s.tech.UserID)
	if err != nil || stored.Email != "thabo@example.org" || stored.Role != domain.RoleSupervisor {
		t.Fatalf("stored user not updated: %+v (%v)", stored, err)
	}

	tests := []struct {
		name  string
		actor domain.Principal
		id    string
		input UpdateStaffInput
		code  string
	}{
		{"supervisor", s.supervisor, s.tech2.UserID, UpdateStaffInput{Name: ptr("Zee")}, apperrors.CodeForbidden},
		{"short name", s.admin, s.tech2.UserID, UpdateStaffInput{Name: ptr(" Z ")}, apperrors.CodeInvalidInput},
		{"unknown role", s.admin, s.tech2.UserID, UpdateStaffInput{Role: ptr(domain.Role("Janitor"))}, apperrors.CodeInvalidInput},
		{"unknown availability", s.admin, s.tech2.UserID, UpdateStaffInput{Availability: ptr(domain.Availability("Away"))}, apperrors.CodeInvalidInput},
		{"missing user", s.admin, "ghost", UpdateStaffInput{Name: ptr("Ghost")}, apperrors.CodeNotFound},
		{"disable admin", s.admin, s.admin.UserID, UpdateStaffInput{Disabled: ptr(true)}, apperrors.CodeForbidden},
		{"promote disabled", s.admin, s.tech2.UserID, UpdateStaffInput{Role: ptr(domain.RoleAdmin), Disabled: ptr(true)}, apperrors.CodeForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UpdateStaffUser(ctx, tt.actor, tt.id, tt.input)
			requireCode(t, err, tt.code)
		})
	}

	admin, err := f.users.GetByID(ctx, s.admin.UserID)
	if err != nil || admin.Disabled {
		t.Fatalf("admin was disabled: %+v (%v)", admin, err)
	}
}

func TestUpdateStaffUserEvictsSummary(t *testing.T) {
	f := newFixture(t, docstore.NewMemoryStore(), testTicketConfig())
	s := seedStaff(t, f)
	c := newMapCache()
	lookup := NewLookupService(config.LookupConfig{CacheTTLSeconds: 60}, LookupDependencies{
		TicketRepo: f.tickets,
		UserRepo:   f.users,
		Cache:      c,
	})
	svc := NewStaffService(f.users, c, nil)
	ctx := context.Background()

	if refs := lookup.ResolveUserRefs(ctx, []string{s.tech.UserID}); refs[s.tech.UserID].Name != "Thabo" {
		t.Fatalf("unexpected summary %+v", refs[s.tech.UserID])
	}
	if _, err := svc.UpdateStaffUser(ctx, s.admin, s.tech.UserID, UpdateStaffInput{Name: ptr("Thabo M")}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if refs := lookup.ResolveUserRefs(ctx, []string{s.tech.UserID}); refs[s.tech.UserID].Name != "Thabo M" {
		t.Fatalf("stale summary after rename: %+v", refs[s.tech.UserID])
	}

	if err := svc.DeleteStaffUser(ctx, s.admin, s.tech.UserID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if refs := lookup.ResolveUserRefs(ctx, []string{s.tech.UserID}); !refs[s.tech.UserID].Unknown {
		t.Fatalf("expected Unknown after delete, got %+v", refs[s.tech.UserID])
	}
}

func TestDeleteStaffUser(t *testing.T) {
	f := newFixture(t, docstore.NewMemoryStore(), testTicketConfig())
	s := seedStaff(t, f)
	svc := NewStaffService(f.users, nil, nil)
	ctx := context.Background()

	requireCode(t, svc.DeleteStaffUser(ctx, s.supervisor, s.tech.UserID), apperrors.CodeForbidden)
	requireCode(t, svc.DeleteStaffUser(ctx, s.admin, s.admin.UserID), apperrors.CodeForbidden)
	requireCode(t, svc.DeleteStaffUser(ctx, s.admin, "ghost"), apperrors.CodeNotFound)
	requireCode(t, svc.DeleteStaffUser(ctx, s.admin, " "), apperrors.CodeInvalidInput)

	if err := svc.DeleteStaffUser(ctx, s.admin, s.tech.UserID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.users.GetByID(ctx, s.tech.UserID); err == nil {
		t.Fatal("deleted user still stored")
	}
	requireCode(t, svc.DeleteStaffUser(ctx, s.admin, s.tech.UserID), apperrors.CodeNotFound)

	store := docstore.NewMemoryStore()
	down := newFixture(t, store, testTicketConfig())
	ds := seedStaff(t, down)
	store.Close()
	err := NewStaffService(down.users, nil, nil).DeleteStaffUser(ctx, ds.admin, ds.tech.UserID)
	requireCode(t, err, apperrors.CodeStoreUnavailable)
}
