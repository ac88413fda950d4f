package service

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/tdhs/helpdesk-service/internal/config"
	"github.com/tdhs/helpdesk-service/internal/docstore"
	"github.com/tdhs/helpdesk-service/internal/domain"
	"github.com/tdhs/helpdesk-service/internal/observability"
	"github.com/tdhs/helpdesk-service/internal/repository"
	apperrors "github.com/tdhs/helpdesk-service/pkg/util/errorutil"
)

// Allocation outcomes recorded in metrics.
const (
	AllocationSucceeded   = "succeeded"
	AllocationExhausted   = "exhausted"
	AllocationUnavailable = "unavailable"
	AllocationFailed      = "failed"
)

// maxBackoffShift caps the exponential growth of retry pauses at 32x.
const maxBackoffShift = 5

// BuildFunc assembles the ticket for an allocated number. It is called once
// per attempt and must not keep state between calls.
type BuildFunc func(number string, now time.Time) *domain.Ticket

// TicketAllocator reserves the next ticket number and stores its ticket in
// the same transaction.
type TicketAllocator struct {
	store    docstore.Store
	counters repository.CounterRepository
	tickets  repository.TicketRepository
	cfg      config.TicketConfig
	logger   *zap.Logger
	metrics  *observability.Metrics
	now      func() time.Time
}

// AllocatorDependencies bundles allocator collaborators.
type AllocatorDependencies struct {
	Store       docstore.Store
	CounterRepo repository.CounterRepository
	TicketRepo  repository.TicketRepository
	Logger      *zap.Logger
	Metrics     *observability.Metrics
}

// NewTicketAllocator constructs the allocator.
func NewTicketAllocator(cfg config.TicketConfig, deps AllocatorDependencies) *TicketAllocator {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	return &TicketAllocator{
		store:    deps.Store,
		counters: deps.CounterRepo,
		tickets:  deps.TicketRepo,
		cfg:      cfg,
		logger:   logger,
		metrics:  deps.Metrics,
		now:      time.Now,
	}
}

// Allocate runs the read-increment-create transaction until it commits,
// the attempt bound is reached, or the store fails. Every attempt re-reads
// the counter, so a number is never reused after a conflict.
func (a *TicketAllocator) Allocate(ctx context.Context, build BuildFunc) (*domain.Ticket, error) {
	conflicts := 0
	for attempt := 1; attempt <= a.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			a.metrics.RecordAllocation(AllocationUnavailable, conflicts)
			return nil, apperrors.NewStoreUnavailable(err)
		}

		ticket, err := a.attempt(ctx, build)
		switch {
		case err == nil:
			a.metrics.RecordAllocation(AllocationSucceeded, conflicts)
			a.logger.Debug("ticket number allocated",
				zap.String("ticket_number", ticket.TicketNumber),
				zap.String("ticket_id", ticket.ID),
				zap.Int("attempt", attempt))
			return ticket, nil
		case errors.Is(err, docstore.ErrConflict):
			conflicts++
			a.logger.Debug("allocation conflict, retrying", zap.Int("attempt", attempt))
			if attempt < a.cfg.MaxAttempts {
				if err := a.pause(ctx, attempt); err != nil {
					a.metrics.RecordAllocation(AllocationUnavailable, conflicts)
					return nil, apperrors.NewStoreUnavailable(err)
				}
			}
		case errors.Is(err, docstore.ErrUnavailable),
			errors.Is(err, context.Canceled),
			errors.Is(err, context.DeadlineExceeded):
			a.metrics.RecordAllocation(AllocationUnavailable, conflicts)
			a.logger.Error("ticket store unavailable", zap.Int("attempt", attempt), zap.Error(err))
			return nil, apperrors.NewStoreUnavailable(err)
		default:
			a.metrics.RecordAllocation(AllocationFailed, conflicts)
			a.logger.Error("ticket allocation failed", zap.Int("attempt", attempt), zap.Error(err))
			return nil, apperrors.NewInternalError(err)
		}
	}

	a.metrics.RecordAllocation(AllocationExhausted, conflicts)
	a.logger.Warn("ticket allocation exhausted", zap.Int("attempts", a.cfg.MaxAttempts))
	return nil, apperrors.NewAllocationExhausted(a.cfg.MaxAttempts)
}

func (a *TicketAllocator) attempt(ctx context.Context, build BuildFunc) (*domain.Ticket, error) {
	var ticket *domain.Ticket
	err := a.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		count, err := a.counters.ReadCount(ctx, tx, a.cfg.CounterKey)
		if err != nil {
			return err
		}
		next := count + 1
		candidate := build(FormatTicketNumber(a.cfg.Prefix, next), a.now().UTC())

		if err := a.counters.WriteCount(ctx, tx, a.cfg.CounterKey, next); err != nil {
			return err
		}
		if err := a.tickets.Insert(tx, candidate); err != nil {
			return err
		}
		ticket = candidate
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

// pause sleeps for a jittered, exponentially growing interval.
func (a *TicketAllocator) pause(ctx context.Context, attempt int) error {
	base := a.cfg.RetryBackoff()
	if base <= 0 {
		return nil
	}
	d := base << min(attempt-1, maxBackoffShift)
	d = d/2 + rand.N(d/2+1)

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
