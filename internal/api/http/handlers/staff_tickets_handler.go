package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/tdhs/helpdesk-service/internal/api/dto"
	"github.com/tdhs/helpdesk-service/internal/auth"
	"github.com/tdhs/helpdesk-service/internal/domain"
	"github.com/tdhs/helpdesk-service/internal/repository"
	"github.com/tdhs/helpdesk-service/internal/service"
	apperrors "github.com/tdhs/helpdesk-service/pkg/util/errorutil"
)

const maxPageSize = 100

// StaffTicketsHandler handles the authenticated ticket endpoints.
type StaffTicketsHandler struct {
	submission *service.SubmissionService
	lookup     *service.LookupService
	workflow   *service.WorkflowService
	diagnosis  *service.DiagnosisService
}

// StaffTicketsDependencies bundles services for staff ticket routes.
type StaffTicketsDependencies struct {
	Submission *service.SubmissionService
	Lookup     *service.LookupService
	Workflow   *service.WorkflowService
	Diagnosis  *service.DiagnosisService
}

// NewStaffTicketsHandler constructs handler.
func NewStaffTicketsHandler(deps StaffTicketsDependencies) *StaffTicketsHandler {
	return &StaffTicketsHandler{
		submission: deps.Submission,
		lookup:     deps.Lookup,
		workflow:   deps.Workflow,
		diagnosis:  deps.Diagnosis,
	}
}

// ListTickets GET /staff/tickets.
func (h *StaffTicketsHandler) ListTickets(c *fiber.Ctx) error {
	principal, err := staffPrincipal(c)
	if err != nil {
		return err
	}
	tickets, err := h.lookup.ListTickets(c.UserContext(), principal, parseTicketFilter(c))
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, dto.NewTicketSummary(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Overview GET /staff/overview.
func (h *StaffTicketsHandler) Overview(c *fiber.Ctx) error {
	principal, err := staffPrincipal(c)
	if err != nil {
		return err
	}
	o, err := h.lookup.Overview(c.UserContext(), principal)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TicketOverviewResponse{
		Active:        o.Active,
		HighPriority:  o.HighPriority,
		Escalated:     o.Escalated,
		ResolvedToday: o.ResolvedToday,
	}})
}

// GetTicket GET /staff/tickets/:id.
func (h *StaffTicketsHandler) GetTicket(c *fiber.Ctx) error {
	principal, err := staffPrincipal(c)
	if err != nil {
		return err
	}
	view, err := h.lookup.TicketDetail(c.UserContext(), principal, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketDetail(view)})
}

// LogTicket POST /staff/tickets records a call on the submitter's behalf.
func (h *StaffTicketsHandler) LogTicket(c *fiber.Ctx) error {
	principal, err := staffPrincipal(c)
	if err != nil {
		return err
	}
	var req service.SubmitTicketInput
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	req.LoggedByID = principal.UserID

	res, err := h.submission.SubmitTicket(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data": dto.SubmitTicketResponse{TicketNumber: res.TicketNumber, DocumentID: res.DocumentID},
	})
}

// Assign POST /staff/tickets/:id/assign.
func (h *StaffTicketsHandler) Assign(c *fiber.Ctx) error {
	principal, err := staffPrincipal(c)
	if err != nil {
		return err
	}
	var req service.AssignInput
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.workflow.Assign(c.UserContext(), principal, c.Params("id"), req)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketSummary(ticket)})
}

// Escalate POST /staff/tickets/:id/escalate.
func (h *StaffTicketsHandler) Escalate(c *fiber.Ctx) error {
	principal, err := staffPrincipal(c)
	if err != nil {
		return err
	}
	var req service.EscalateInput
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.workflow.Escalate(c.UserContext(), principal, c.Params("id"), req)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketSummary(ticket)})
}

// Resolve POST /staff/tickets/:id/resolve.
func (h *StaffTicketsHandler) Resolve(c *fiber.Ctx) error {
	principal, err := staffPrincipal(c)
	if err != nil {
		return err
	}
	var req service.ResolveInput
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.workflow.Resolve(c.UserContext(), principal, c.Params("id"), req)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketSummary(ticket)})
}

// Close POST /staff/tickets/:id/close.
func (h *StaffTicketsHandler) Close(c *fiber.Ctx) error {
	principal, err := staffPrincipal(c)
	if err != nil {
		return err
	}
	ticket, err := h.workflow.Close(c.UserContext(), principal, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketSummary(ticket)})
}

// Delete DELETE /staff/tickets/:id.
func (h *StaffTicketsHandler) Delete(c *fiber.Ctx) error {
	principal, err := staffPrincipal(c)
	if err != nil {
		return err
	}
	if err := h.workflow.Delete(c.UserContext(), principal, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// Diagnose POST /staff/tickets/:id/diagnose.
func (h *StaffTicketsHandler) Diagnose(c *fiber.Ctx) error {
	principal, err := staffPrincipal(c)
	if err != nil {
		return err
	}
	d, err := h.diagnosis.Diagnose(c.UserContext(), principal, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.DiagnosisResponse{
		PotentialDiagnosis: d.PotentialDiagnosis,
		SuggestedSteps:     d.SuggestedSteps,
	}})
}

func staffPrincipal(c *fiber.Ctx) (domain.Principal, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return domain.Principal{}, apperrors.NewUnauthorized("authentication required")
	}
	return principal, nil
}

func parseTicketFilter(c *fiber.Ctx) repository.TicketFilter {
	filter := repository.TicketFilter{
		Status:       domain.TicketStatus(c.Query("status")),
		AssignedToID: c.Query("assigned_to"),
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := min(parseInt(c.Query("page_size"), 20), maxPageSize)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter
}

func parseInt(val string, defaultVal int) int {
	if val == "" {
		return defaultVal
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return defaultVal
	}
	return parsed
}
