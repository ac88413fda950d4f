package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/tdhs/helpdesk-service/internal/api/dto"
	"github.com/tdhs/helpdesk-service/internal/service"
	apperrors "github.com/tdhs/helpdesk-service/pkg/util/errorutil"
)

// PublicTicketsHandler serves unauthenticated submission and tracking.
type PublicTicketsHandler struct {
	submission *service.SubmissionService
	lookup     *service.LookupService
}

// NewPublicTicketsHandler constructs handler.
func NewPublicTicketsHandler(submission *service.SubmissionService, lookup *service.LookupService) *PublicTicketsHandler {
	return &PublicTicketsHandler{submission: submission, lookup: lookup}
}

// Submit handles POST /public/tickets.
func (h *PublicTicketsHandler) Submit(c *fiber.Ctx) error {
	var req service.SubmitTicketInput
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	req.LoggedByID = ""

	res, err := h.submission.SubmitTicket(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data": dto.SubmitTicketResponse{TicketNumber: res.TicketNumber, DocumentID: res.DocumentID},
	})
}

// Track handles GET /public/tickets/:number.
func (h *PublicTicketsHandler) Track(c *fiber.Ctx) error {
	view, err := h.lookup.TrackTicket(c.UserContext(), c.Params("number"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTrackingResponse(view)})
}
