package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tdhs/helpdesk-service/internal/cache"
	"github.com/tdhs/helpdesk-service/internal/config"
	"github.com/tdhs/helpdesk-service/internal/docstore"
	"github.com/tdhs/helpdesk-service/internal/domain"
	"github.com/tdhs/helpdesk-service/internal/repository"
	apperrors "github.com/tdhs/helpdesk-service/pkg/util/errorutil"
)

const (
	ticketNumberKeyPrefix = "ticket-number:"
	userSummaryKeyPrefix  = "user-summary:"
	// number to id mappings never change, only disappear on delete
	ticketNumberCacheTTL = 24 * time.Hour
)

// TicketOverview holds the dashboard counters.
type TicketOverview struct {
	Active        int
	HighPriority  int
	Escalated     int
	ResolvedToday int
}

// TicketView is a ticket together with its resolved user references.
type TicketView struct {
	Ticket      *domain.Ticket
	AssignedTo  *domain.UserSummary
	AssignedBy  *domain.UserSummary
	EscalatedBy *domain.UserSummary
}

// LookupService serves read-only ticket and user queries.
type LookupService struct {
	tickets repository.TicketRepository
	users   repository.UserRepository
	cache   cache.Cache
	ttl     time.Duration
	logger  *zap.Logger
	now     func() time.Time
}

// LookupDependencies bundles repositories for lookups.
type LookupDependencies struct {
	TicketRepo repository.TicketRepository
	UserRepo   repository.UserRepository
	Cache      cache.Cache
	Logger     *zap.Logger
}

// NewLookupService constructs the service.
func NewLookupService(cfg config.LookupConfig, deps LookupDependencies) *LookupService {
	c := deps.Cache
	if c == nil {
		c = cache.Noop{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LookupService{
		tickets: deps.TicketRepo,
		users:   deps.UserRepo,
		cache:   c,
		ttl:     cfg.CacheTTL(),
		logger:  logger,
		now:     time.Now,
	}
}

// FindTicketByNumber returns the ticket whose number matches exactly.
func (s *LookupService) FindTicketByNumber(ctx context.Context, number string) (*domain.Ticket, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, apperrors.NewValidationError("ticket number required", nil)
	}

	key := ticketNumberKeyPrefix + number
	if id, ok, err := s.cache.Get(ctx, key); err != nil {
		s.logger.Debug("lookup cache read failed", zap.Error(err))
	} else if ok {
		ticket, err := s.tickets.GetByID(ctx, id)
		if err == nil && ticket.TicketNumber == number {
			return ticket, nil
		}
		if err != nil && !errors.Is(err, docstore.ErrNotFound) {
			return nil, storeError(err)
		}
		_ = s.cache.Delete(ctx, key)
	}

	ticket, err := s.tickets.FindByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_number": number})
		}
		return nil, storeError(err)
	}
	if err := s.cache.Set(ctx, key, ticket.ID, ticketNumberCacheTTL); err != nil {
		s.logger.Debug("lookup cache write failed", zap.Error(err))
	}
	return ticket, nil
}

// FindTicketByID reads a ticket by its document id.
func (s *LookupService) FindTicketByID(ctx context.Context, id string) (*domain.Ticket, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperrors.NewValidationError("ticket id required", nil)
	}
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"id": id})
		}
		return nil, storeError(err)
	}
	return ticket, nil
}

// ResolveUserRefs maps each non-empty id to a display summary. Users that are
// missing or cannot be read come back as Unknown; this never fails.
func (s *LookupService) ResolveUserRefs(ctx context.Context, ids []string) map[string]domain.UserSummary {
	result := make(map[string]domain.UserSummary, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, done := result[id]; done {
			continue
		}
		result[id] = s.resolveUser(ctx, id)
	}
	return result
}

func (s *LookupService) resolveUser(ctx context.Context, id string) domain.UserSummary {
	key := userSummaryKeyPrefix + id
	var cached domain.UserSummary
	if ok, err := cache.GetJSON(ctx, s.cache, key, &cached); err == nil && ok {
		return cached
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if !errors.Is(err, docstore.ErrNotFound) {
			s.logger.Warn("user lookup failed", zap.String("user_id", id), zap.Error(err))
		}
		return domain.UnknownUser(id)
	}
	summary := user.Summary()
	if s.ttl > 0 {
		if err := cache.SetJSON(ctx, s.cache, key, summary, s.ttl); err != nil {
			s.logger.Debug("user summary cache write failed", zap.Error(err))
		}
	}
	return summary
}

// TrackTicket is the public tracking view: the ticket plus its assignee.
func (s *LookupService) TrackTicket(ctx context.Context, number string) (*TicketView, error) {
	ticket, err := s.FindTicketByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, ticket), nil
}

// TicketDetail is the staff view of one ticket by id.
func (s *LookupService) TicketDetail(ctx context.Context, principal domain.Principal, id string) (*TicketView, error) {
	ticket, err := s.FindTicketByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canSee(principal, ticket) {
		return nil, apperrors.NewForbidden("ticket is not assigned to you")
	}
	return s.view(ctx, ticket), nil
}

// ListTickets returns the dashboard listing for principal. Technicians only
// see tickets assigned to them.
func (s *LookupService) ListTickets(ctx context.Context, principal domain.Principal, filter repository.TicketFilter) ([]domain.Ticket, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": filter.Status})
	}
	if principal.Role == domain.RoleTechnician {
		filter.AssignedToID = principal.UserID
	}
	tickets, err := s.tickets.List(ctx, filter)
	if err != nil {
		return nil, storeError(err)
	}
	return tickets, nil
}

// Overview counts the tickets on principal's dashboard. Technicians and
// supervisors only count tickets assigned to them.
func (s *LookupService) Overview(ctx context.Context, principal domain.Principal) (*TicketOverview, error) {
	var filter repository.TicketFilter
	if principal.HasRole(domain.RoleTechnician, domain.RoleSupervisor) {
		filter.AssignedToID = principal.UserID
	}
	tickets, err := s.tickets.List(ctx, filter)
	if err != nil {
		return nil, storeError(err)
	}

	now := s.now()
	out := &TicketOverview{}
	for i := range tickets {
		t := &tickets[i]
		switch t.Status {
		case domain.TicketStatusOpen, domain.TicketStatusInProgress:
			out.Active++
		case domain.TicketStatusEscalated:
			out.Escalated++
		case domain.TicketStatusResolved:
			if t.ResolvedAt != nil && sameDay(t.ResolvedAt.In(now.Location()), now) {
				out.ResolvedToday++
			}
		}
		if t.Status == domain.TicketStatusResolved || t.Status == domain.TicketStatusClosed {
			continue
		}
		if t.Priority == domain.TicketPriorityHigh || t.Priority == domain.TicketPriorityCritical {
			out.HighPriority++
		}
	}
	return out, nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// ListStaff returns staff accounts sorted by name, optionally narrowed to
// one role.
func (s *LookupService) ListStaff(ctx context.Context, role domain.Role) ([]domain.User, error) {
	if role != "" && !role.Valid() {
		return nil, apperrors.NewValidationError("unknown role", map[string]any{"role": role})
	}
	users, err := s.users.List(ctx, role)
	if err != nil {
		return nil, storeError(err)
	}
	return users, nil
}

func (s *LookupService) view(ctx context.Context, ticket *domain.Ticket) *TicketView {
	refs := s.ResolveUserRefs(ctx, []string{ticket.AssignedToID, ticket.AssignedByID, ticket.EscalatedByID})
	view := &TicketView{Ticket: ticket}
	if u, ok := refs[ticket.AssignedToID]; ok {
		view.AssignedTo = &u
	}
	if u, ok := refs[ticket.AssignedByID]; ok {
		view.AssignedBy = &u
	}
	if u, ok := refs[ticket.EscalatedByID]; ok {
		view.EscalatedBy = &u
	}
	return view
}

func canSee(principal domain.Principal, ticket *domain.Ticket) bool {
	if principal.Role != domain.RoleTechnician {
		return true
	}
	return ticket.AssignedToID == principal.UserID
}
