package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tdhs/helpdesk-service/internal/config"
	"github.com/tdhs/helpdesk-service/internal/docstore"
	"github.com/tdhs/helpdesk-service/internal/domain"
	"github.com/tdhs/helpdesk-service/internal/events"
	"github.com/tdhs/helpdesk-service/internal/observability"
	"github.com/tdhs/helpdesk-service/internal/repository"
	apperrors "github.com/tdhs/helpdesk-service/pkg/util/errorutil"
)

type fixture struct {
	store      docstore.Store
	counters   repository.CounterRepository
	tickets    repository.TicketRepository
	users      repository.UserRepository
	metrics    *observability.Metrics
	allocator  *TicketAllocator
	submission *SubmissionService
	lookup     *LookupService
	workflow   *WorkflowService
	recorder   *eventRecorder
}

func testTicketConfig() config.TicketConfig {
	return config.TicketConfig{Prefix: "TDHS", CounterKey: "tickets", MaxAttempts: 5, RetryBackoffMS: 1}
}

func newFixture(t *testing.T, store docstore.Store, cfg config.TicketConfig) *fixture {
	t.Helper()
	f := &fixture{
		store:    store,
		counters: repository.NewCounterRepository(store),
		tickets:  repository.NewTicketRepository(store),
		users:    repository.NewUserRepository(store),
		metrics:  observability.NewMetrics(),
		recorder: &eventRecorder{},
	}
	dispatcher := events.NewInMemoryDispatcher()
	for _, et := range []events.EventType{
		events.EventTicketCreated, events.EventTicketAssigned, events.EventTicketEscalated,
		events.EventTicketResolved, events.EventTicketClosed, events.EventTicketDeleted,
	} {
		dispatcher.Subscribe(et, f.recorder.handle)
	}

	f.allocator = NewTicketAllocator(cfg, AllocatorDependencies{
		Store:       store,
		CounterRepo: f.counters,
		TicketRepo:  f.tickets,
		Metrics:     f.metrics,
	})
	f.submission = NewSubmissionService(f.allocator, dispatcher, nil)
	f.lookup = NewLookupService(config.LookupConfig{CacheTTLSeconds: 60}, LookupDependencies{
		TicketRepo: f.tickets,
		UserRepo:   f.users,
	})
	f.workflow = NewWorkflowService(WorkflowDependencies{
		Store:      store,
		TicketRepo: f.tickets,
		UserRepo:   f.users,
		Dispatcher: dispatcher,
	})
	return f
}

func (f *fixture) seedCounter(t *testing.T, value int64) {
	t.Helper()
	err := f.store.RunTransaction(context.Background(), func(ctx context.Context, tx docstore.Tx) error {
		return f.counters.WriteCount(ctx, tx, "tickets", value)
	})
	if err != nil {
		t.Fatalf("seed counter: %v", err)
	}
}

func (f *fixture) counter(t *testing.T) int64 {
	t.Helper()
	n, err := f.counters.Peek(context.Background(), "tickets")
	if err != nil {
		t.Fatalf("peek counter: %v", err)
	}
	return n
}

func (f *fixture) ticketCount(t *testing.T) int {
	t.Helper()
	all, err := f.tickets.List(context.Background(), repository.TicketFilter{})
	if err != nil {
		t.Fatalf("list tickets: %v", err)
	}
	return len(all)
}

func (f *fixture) seedUser(t *testing.T, u domain.User) domain.Principal {
	t.Helper()
	if u.Availability == "" {
		u.Availability = domain.AvailabilityAvailable
	}
	if err := f.users.Create(context.Background(), &u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return domain.Principal{UserID: u.ID, Role: u.Role, Email: u.Email}
}

func (f *fixture) submit(t *testing.T) *SubmitResult {
	t.Helper()
	res, err := f.submission.SubmitTicket(context.Background(), validInput())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	return res
}

func validInput() SubmitTicketInput {
	return SubmitTicketInput{
		PersalNumber: "12345678",
		FirstName:    "Naledi",
		LastName:     "Dlamini",
		Email:        "naledi.dlamini@example.org",
		Cellphone:    "0821234567",
		JobTitle:     "Clerk",
		Location:     "Admin block",
		District:     "Sub-District 1",
		FacilityName: "Central Clinic",
		Description:  "My computer will not start after the update",
	}
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	if !apperrors.HasCode(err, code) {
		t.Fatalf("expected %s, got %v", code, err)
	}
}

type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *eventRecorder) handle(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *eventRecorder) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

var errForcedAbort = errors.New("forced abort")

// abortingStore runs every transaction body for real against the wrapped
// store, then throws the writes away and reports a conflict.
type abortingStore struct {
	docstore.Store
	mu       sync.Mutex
	attempts int
}

func (s *abortingStore) RunTransaction(ctx context.Context, fn docstore.TxFunc) error {
	s.mu.Lock()
	s.attempts++
	s.mu.Unlock()
	err := s.Store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		if err := fn(ctx, tx); err != nil {
			return err
		}
		return errForcedAbort
	})
	if errors.Is(err, errForcedAbort) {
		return docstore.ErrConflict
	}
	return err
}

// failingCreateStore fails every ticket creation inside a transaction.
type failingCreateStore struct {
	docstore.Store
}

type failingCreateTx struct {
	docstore.Tx
}

func (tx failingCreateTx) Create(string, docstore.Fields) (docstore.Ref, error) {
	return docstore.Ref{}, errors.New("disk full")
}

func (s failingCreateStore) RunTransaction(ctx context.Context, fn docstore.TxFunc) error {
	return s.Store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		return fn(ctx, failingCreateTx{Tx: tx})
	})
}

// mapCache is an in-process cache.Cache for lookup tests.
type mapCache struct {
	mu   sync.Mutex
	data map[string]string
}

func newMapCache() *mapCache {
	return &mapCache{data: make(map[string]string)}
}

func (c *mapCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *mapCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}
