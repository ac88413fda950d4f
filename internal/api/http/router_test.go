package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/tdhs/helpdesk-service/internal/ai"
	"github.com/tdhs/helpdesk-service/internal/api/http/handlers"
	"github.com/tdhs/helpdesk-service/internal/auth"
	"github.com/tdhs/helpdesk-service/internal/config"
	"github.com/tdhs/helpdesk-service/internal/docstore"
	"github.com/tdhs/helpdesk-service/internal/domain"
	"github.com/tdhs/helpdesk-service/internal/events"
	"github.com/tdhs/helpdesk-service/internal/observability"
	"github.com/tdhs/helpdesk-service/internal/repository"
	"github.com/tdhs/helpdesk-service/internal/service"
)

type testEnv struct {
	app     *fiber.App
	store   docstore.Store
	authSvc *service.AuthService
	metrics *observability.Metrics
}

// conflictStore reports a lost race on every transaction without writing.
type conflictStore struct {
	docstore.Store
}

func (conflictStore) RunTransaction(context.Context, docstore.TxFunc) error {
	return docstore.ErrConflict
}

func newTestEnv(t *testing.T, store docstore.Store, generator ai.TextGenerator) *testEnv {
	t.Helper()
	cfg := config.Config{
		App:     config.AppConfig{Name: "helpdesk-service", Version: "test"},
		Tickets: config.TicketConfig{Prefix: "TDHS", CounterKey: "tickets", MaxAttempts: 3, RetryBackoffMS: 1},
		Auth: config.AuthConfig{
			Provider:              config.AuthProviderLocal,
			JWTSecret:             "test-secret",
			AccessTokenTTLMinutes: 5,
			BcryptCost:            bcrypt.MinCost,
		},
	}
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	counters := repository.NewCounterRepository(store)
	tickets := repository.NewTicketRepository(store)
	users := repository.NewUserRepository(store)

	allocator := service.NewTicketAllocator(cfg.Tickets, service.AllocatorDependencies{
		Store: store, CounterRepo: counters, TicketRepo: tickets, Logger: logger, Metrics: metrics,
	})
	submission := service.NewSubmissionService(allocator, dispatcher, logger)
	lookup := service.NewLookupService(cfg.Lookup, service.LookupDependencies{TicketRepo: tickets, UserRepo: users, Logger: logger})
	workflow := service.NewWorkflowService(service.WorkflowDependencies{
		Store: store, TicketRepo: tickets, UserRepo: users, Dispatcher: dispatcher, Logger: logger,
	})
	diagnosis := service.NewDiagnosisService(tickets, generator, logger)
	authSvc := service.NewAuthService(cfg, users)

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, 0)
	RegisterRoutes(app, RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, store, nil),
		Public: handlers.NewPublicTicketsHandler(submission, lookup),
		StaffTickets: handlers.NewStaffTicketsHandler(handlers.StaffTicketsDependencies{
			Submission: submission, Lookup: lookup, Workflow: workflow, Diagnosis: diagnosis,
		}),
		Users:          handlers.NewUsersHandler(authSvc, service.NewStaffService(users, nil, logger), lookup),
		AuthMiddleware: auth.NewAuthMiddleware(authSvc.TokenManager(), users),
		LocalLogin:     true,
	})
	return &testEnv{app: app, store: store, authSvc: authSvc, metrics: metrics}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := e.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	out := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, path, raw, err)
		}
	}
	return resp.StatusCode, out
}

func (e *testEnv) staffToken(t *testing.T, role domain.Role, email string) (string, string) {
	t.Helper()
	user, err := e.authSvc.CreateStaffUser(context.Background(), service.CreateStaffInput{
		Name: string(role) + " user", Email: email, Role: role, Password: "staff-password",
	})
	if err != nil {
		t.Fatalf("create staff: %v", err)
	}
	status, body := e.do(t, fiber.MethodPost, "/auth/login", "", map[string]string{
		"email": email, "password": "staff-password",
	})
	if status != fiber.StatusOK {
		t.Fatalf("login: %d %v", status, body)
	}
	data := body["data"].(map[string]any)
	return data["auth"].(map[string]any)["token"].(string), user.ID
}

func submission() map[string]string {
	return map[string]string{
		"persal_number": "12345678",
		"first_name":    "Naledi",
		"last_name":     "Dlamini",
		"email":         "naledi@example.org",
		"cellphone":     "0821234567",
		"job_title":     "Clerk",
		"location":      "Ward 3",
		"district":      "Sub-District 1",
		"facility_name": "Central Clinic",
		"description":   "Printer in ward 3 is not printing",
	}
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func TestPublicSubmitAndTrack(t *testing.T) {
	env := newTestEnv(t, docstore.NewMemoryStore(), nil)

	status, body := env.do(t, fiber.MethodPost, "/public/tickets", "", submission())
	if status != fiber.StatusCreated {
		t.Fatalf("expected 201, got %d %v", status, body)
	}
	data := body["data"].(map[string]any)
	if data["ticket_number"] != "TDHS-1" || data["document_id"] == "" {
		t.Fatalf("unexpected response %v", data)
	}

	status, body = env.do(t, fiber.MethodGet, "/public/tickets/TDHS-1", "", nil)
	if status != fiber.StatusOK {
		t.Fatalf("expected 200, got %d %v", status, body)
	}
	view := body["data"].(map[string]any)
	if view["status"] != "Open" || view["title"] != "Printer in ward 3 is not printing" {
		t.Fatalf("unexpected tracking view %v", view)
	}
	if _, leaked := view["submitted_by"]; leaked {
		t.Fatalf("tracking view exposes submitter: %v", view)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	invalid := submission()
	invalid["description"] = "too short"

	corrupt := docstore.NewMemoryStore()
	if err := corrupt.RunTransaction(context.Background(), func(_ context.Context, tx docstore.Tx) error {
		return tx.Set(docstore.NewRef(repository.CountersCollection, "tickets"), docstore.Fields{"count": "many"})
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	closed := docstore.NewMemoryStore()
	closed.Close()

	tests := []struct {
		name   string
		store  docstore.Store
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"invalid input", docstore.NewMemoryStore(), fiber.MethodPost, "/public/tickets", invalid, fiber.StatusBadRequest, "INVALID_INPUT"},
		{"unknown ticket", docstore.NewMemoryStore(), fiber.MethodGet, "/public/tickets/TDHS-999", nil, fiber.StatusNotFound, "NOT_FOUND"},
		{"allocation exhausted", conflictStore{Store: docstore.NewMemoryStore()}, fiber.MethodPost, "/public/tickets", submission(), fiber.StatusServiceUnavailable, "ALLOCATION_EXHAUSTED"},
		{"store unavailable", closed, fiber.MethodPost, "/public/tickets", submission(), fiber.StatusServiceUnavailable, "STORE_UNAVAILABLE"},
		{"internal error", corrupt, fiber.MethodPost, "/public/tickets", submission(), fiber.StatusInternalServerError, "INTERNAL_ERROR"},
		{"missing token", docstore.NewMemoryStore(), fiber.MethodGet, "/staff/tickets", nil, fiber.StatusUnauthorized, "UNAUTHORIZED"},
		{"unknown route", docstore.NewMemoryStore(), fiber.MethodGet, "/nope", nil, fiber.StatusNotFound, "NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, tt.store, nil)
			status, body := env.do(t, tt.method, tt.path, "", tt.body)
			if status != tt.status || errorCode(body) != tt.code {
				t.Fatalf("expected %d %s, got %d %v", tt.status, tt.code, status, body)
			}
			if tt.code == "INTERNAL_ERROR" {
				msg := body["error"].(map[string]any)["message"].(string)
				if strings.Contains(msg, "counter") {
					t.Fatalf("internal detail leaked: %q", msg)
				}
			}
		})
	}
}

func TestMalformedBody(t *testing.T) {
	env := newTestEnv(t, docstore.NewMemoryStore(), nil)
	req := httptest.NewRequest(fiber.MethodPost, "/public/tickets", strings.NewReader("{not json"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := env.app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestStaffWorkflowOverHTTP(t *testing.T) {
	env := newTestEnv(t, docstore.NewMemoryStore(), ai.MockGenerator{})
	deskToken, _ := env.staffToken(t, domain.RoleHelpDesk, "desk@example.org")
	techToken, techID := env.staffToken(t, domain.RoleTechnician, "tech@example.org")
	supToken, _ := env.staffToken(t, domain.RoleSupervisor, "sup@example.org")

	status, body := env.do(t, fiber.MethodPost, "/staff/tickets", deskToken, submission())
	if status != fiber.StatusCreated {
		t.Fatalf("log ticket: %d %v", status, body)
	}
	id := body["data"].(map[string]any)["document_id"].(string)

	status, body = env.do(t, fiber.MethodPost, "/staff/tickets", techToken, submission())
	if status != fiber.StatusForbidden {
		t.Fatalf("technician logged a call: %d %v", status, body)
	}

	status, body = env.do(t, fiber.MethodPost, "/staff/tickets/"+id+"/assign", deskToken, map[string]string{
		"technician_id": techID, "priority": "High",
	})
	if status != fiber.StatusOK || body["data"].(map[string]any)["status"] != "In Progress" {
		t.Fatalf("assign: %d %v", status, body)
	}

	status, body = env.do(t, fiber.MethodGet, "/staff/overview", deskToken, nil)
	overview, _ := body["data"].(map[string]any)
	if status != fiber.StatusOK || overview["active"] != float64(1) || overview["high_priority"] != float64(1) {
		t.Fatalf("overview: %d %v", status, body)
	}
	_, body = env.do(t, fiber.MethodGet, "/staff/overview", supToken, nil)
	if body["data"].(map[string]any)["active"] != float64(0) {
		t.Fatalf("supervisor overview counted another assignee's ticket: %v", body)
	}

	status, body = env.do(t, fiber.MethodPost, "/staff/tickets/"+id+"/close", supToken, nil)
	if status != fiber.StatusConflict || errorCode(body) != "CONFLICT" {
		t.Fatalf("expected 409 closing an in-progress ticket, got %d %v", status, body)
	}

	status, body = env.do(t, fiber.MethodPost, "/staff/tickets/"+id+"/diagnose", techToken, nil)
	if status != fiber.StatusOK {
		t.Fatalf("diagnose: %d %v", status, body)
	}
	if body["data"].(map[string]any)["potential_diagnosis"] == "" {
		t.Fatalf("empty diagnosis %v", body)
	}

	status, body = env.do(t, fiber.MethodPost, "/staff/tickets/"+id+"/resolve", techToken, map[string]string{
		"comment": "Cleared the queue and reinstalled the driver",
	})
	if status != fiber.StatusOK || body["data"].(map[string]any)["status"] != "Resolved" {
		t.Fatalf("resolve: %d %v", status, body)
	}

	status, body = env.do(t, fiber.MethodGet, "/staff/tickets/"+id, techToken, nil)
	if status != fiber.StatusOK {
		t.Fatalf("detail: %d %v", status, body)
	}
	detail := body["data"].(map[string]any)
	assignedTo := detail["assigned_to"].(map[string]any)
	if assignedTo["id"] != techID || detail["logged_by_id"] == "" {
		t.Fatalf("unexpected detail %v", detail)
	}

	status, body = env.do(t, fiber.MethodGet, "/staff/tickets?status=Resolved", techToken, nil)
	if status != fiber.StatusOK || len(body["data"].([]any)) != 1 {
		t.Fatalf("list: %d %v", status, body)
	}

	status, body = env.do(t, fiber.MethodPost, "/staff/users/resolve", deskToken, map[string]any{
		"ids": []string{techID, "ghost"},
	})
	if status != fiber.StatusOK {
		t.Fatalf("resolve users: %d %v", status, body)
	}
	refs := body["data"].(map[string]any)
	if refs["ghost"].(map[string]any)["name"] != "Unknown" {
		t.Fatalf("expected Unknown for ghost, got %v", refs["ghost"])
	}

	status, _ = env.do(t, fiber.MethodDelete, "/staff/tickets/"+id, supToken, nil)
	if status != fiber.StatusForbidden {
		t.Fatalf("supervisor deleted a ticket: %d", status)
	}
}

func TestDiagnoseWithoutGenerator(t *testing.T) {
	env := newTestEnv(t, docstore.NewMemoryStore(), nil)
	adminToken, _ := env.staffToken(t, domain.RoleAdmin, "admin@example.org")
	_, body := env.do(t, fiber.MethodPost, "/public/tickets", "", submission())
	id := body["data"].(map[string]any)["document_id"].(string)

	status, body := env.do(t, fiber.MethodPost, "/staff/tickets/"+id+"/diagnose", adminToken, nil)
	if status != fiber.StatusServiceUnavailable || errorCode(body) != "SERVICE_UNAVAILABLE" {
		t.Fatalf("expected 503, got %d %v", status, body)
	}
}

func TestStaffUserAdministration(t *testing.T) {
	env := newTestEnv(t, docstore.NewMemoryStore(), nil)
	adminToken, _ := env.staffToken(t, domain.RoleAdmin, "admin@example.org")
	deskToken, _ := env.staffToken(t, domain.RoleHelpDesk, "desk@example.org")

	newUser := map[string]string{"name": "Thabo", "email": "thabo@example.org", "role": "Technician"}
	status, _ := env.do(t, fiber.MethodPost, "/staff/users", deskToken, newUser)
	if status != fiber.StatusForbidden {
		t.Fatalf("help desk created a user: %d", status)
	}
	status, body := env.do(t, fiber.MethodPost, "/staff/users", adminToken, newUser)
	if status != fiber.StatusCreated {
		t.Fatalf("create: %d %v", status, body)
	}
	if _, leaked := body["data"].(map[string]any)["passwordHash"]; leaked {
		t.Fatalf("password hash leaked: %v", body)
	}

	status, body = env.do(t, fiber.MethodGet, "/staff/users?role=Technician", deskToken, nil)
	if status != fiber.StatusOK || len(body["data"].([]any)) != 1 {
		t.Fatalf("list technicians: %d %v", status, body)
	}

	status, body = env.do(t, fiber.MethodPost, "/auth/login", "", map[string]string{"email": "admin@example.org", "password": "wrong"})
	if status != fiber.StatusUnauthorized || errorCode(body) != "UNAUTHORIZED" {
		t.Fatalf("expected 401, got %d %v", status, body)
	}
}

func TestStaffUserMaintenance(t *testing.T) {
	env := newTestEnv(t, docstore.NewMemoryStore(), nil)
	adminToken, adminID := env.staffToken(t, domain.RoleAdmin, "admin@example.org")
	deskToken, _ := env.staffToken(t, domain.RoleHelpDesk, "desk@example.org")
	techToken, techID := env.staffToken(t, domain.RoleTechnician, "tech@example.org")

	status, _ := env.do(t, fiber.MethodPatch, "/staff/users/"+techID, deskToken, map[string]any{"availability": "On Leave"})
	if status != fiber.StatusForbidden {
		t.Fatalf("help desk edited a user: %d", status)
	}
	status, body := env.do(t, fiber.MethodPatch, "/staff/users/"+techID, adminToken, map[string]any{"availability": "Away"})
	if status != fiber.StatusBadRequest || errorCode(body) != "INVALID_INPUT" {
		t.Fatalf("expected 400 for unknown availability, got %d %v", status, body)
	}

	status, body = env.do(t, fiber.MethodPatch, "/staff/users/"+techID, adminToken, map[string]any{
		"name": "Thabo Mokoena", "availability": "On Leave",
	})
	data, _ := body["data"].(map[string]any)
	if status != fiber.StatusOK || data["availability"] != "On Leave" || data["name"] != "Thabo Mokoena" {
		t.Fatalf("update: %d %v", status, body)
	}

	_, body = env.do(t, fiber.MethodPost, "/staff/tickets", deskToken, submission())
	ticketID := body["data"].(map[string]any)["document_id"].(string)
	status, body = env.do(t, fiber.MethodPost, "/staff/tickets/"+ticketID+"/assign", deskToken, map[string]string{
		"technician_id": techID, "priority": "High",
	})
	if status != fiber.StatusBadRequest {
		t.Fatalf("assigned a technician on leave: %d %v", status, body)
	}

	status, body = env.do(t, fiber.MethodPatch, "/staff/users/"+techID, adminToken, map[string]any{"disabled": true})
	if status != fiber.StatusOK {
		t.Fatalf("disable: %d %v", status, body)
	}
	status, _ = env.do(t, fiber.MethodGet, "/staff/me", techToken, nil)
	if status != fiber.StatusForbidden {
		t.Fatalf("disabled user still signed in: %d", status)
	}

	status, body = env.do(t, fiber.MethodPatch, "/staff/users/"+adminID, adminToken, map[string]any{"disabled": true})
	if status != fiber.StatusForbidden || errorCode(body) != "FORBIDDEN" {
		t.Fatalf("expected 403 disabling an admin, got %d %v", status, body)
	}
	status, _ = env.do(t, fiber.MethodDelete, "/staff/users/"+adminID, adminToken, nil)
	if status != fiber.StatusForbidden {
		t.Fatalf("expected 403 deleting an admin, got %d", status)
	}

	status, _ = env.do(t, fiber.MethodDelete, "/staff/users/"+techID, adminToken, nil)
	if status != fiber.StatusNoContent {
		t.Fatalf("delete: %d", status)
	}
	status, body = env.do(t, fiber.MethodDelete, "/staff/users/"+techID, adminToken, nil)
	if status != fiber.StatusNotFound || errorCode(body) != "NOT_FOUND" {
		t.Fatalf("expected 404 deleting twice, got %d %v", status, body)
	}
	status, body = env.do(t, fiber.MethodPatch, "/staff/users/ghost", adminToken, map[string]any{"name": "Ghost"})
	if status != fiber.StatusNotFound {
		t.Fatalf("expected 404 for unknown user, got %d %v", status, body)
	}
}

func TestHealthEndpoints(t *testing.T) {
	store := docstore.NewMemoryStore()
	env := newTestEnv(t, store, nil)

	status, body := env.do(t, fiber.MethodGet, "/health/live", "", nil)
	if status != fiber.StatusOK || body["status"] != "alive" {
		t.Fatalf("live: %d %v", status, body)
	}
	status, body = env.do(t, fiber.MethodGet, "/health/ready", "", nil)
	if status != fiber.StatusOK || body["dependencies"].(map[string]any)["cache"] != "disabled" {
		t.Fatalf("ready: %d %v", status, body)
	}

	store.Close()
	status, _ = env.do(t, fiber.MethodGet, "/health/ready", "", nil)
	if status != fiber.StatusServiceUnavailable {
		t.Fatalf("expected 503 once the store is closed, got %d", status)
	}
}
