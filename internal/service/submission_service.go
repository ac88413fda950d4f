package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/tdhs/helpdesk-service/internal/domain"
	"github.com/tdhs/helpdesk-service/internal/events"
)

// MinDescriptionRunes is the shortest accepted issue description.
const MinDescriptionRunes = 10

// SubmitTicketInput is the public submission payload.
type SubmitTicketInput struct {
	PersalNumber string `json:"persal_number" validate:"required,utf8"`
	FirstName    string `json:"first_name" validate:"required,utf8"`
	LastName     string `json:"last_name" validate:"required,utf8"`
	Email        string `json:"email" validate:"required,utf8,email"`
	Cellphone    string `json:"cellphone" validate:"required,utf8"`
	JobTitle     string `json:"job_title" validate:"required,utf8"`
	Location     string `json:"location" validate:"required,utf8"`
	District     string `json:"district" validate:"required,utf8"`
	FacilityName string `json:"facility_name" validate:"required,utf8"`
	Description  string `json:"description" validate:"required,utf8,min=10"`
	// LoggedByID is set when a staff member logs the call on someone's behalf.
	LoggedByID string `json:"-"`
}

// SubmitResult is returned for a committed submission.
type SubmitResult struct {
	TicketNumber string
	DocumentID   string
	Ticket       *domain.Ticket
}

// Allocator reserves a number and stores the ticket built for it.
type Allocator interface {
	Allocate(ctx context.Context, build BuildFunc) (*domain.Ticket, error)
}

// SubmissionService is the public entry point for new tickets.
type SubmissionService struct {
	allocator  Allocator
	dispatcher events.Dispatcher
	validate   *validator.Validate
	logger     *zap.Logger
}

// NewSubmissionService constructs the service.
func NewSubmissionService(allocator Allocator, dispatcher events.Dispatcher, logger *zap.Logger) *SubmissionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubmissionService{
		allocator:  allocator,
		dispatcher: dispatcher,
		validate:   newValidator(),
		logger:     logger,
	}
}

// SubmitTicket validates input, then allocates a number and stores the ticket
// atomically. Failures leave neither a counter increment nor a ticket behind.
// A committed ticket is never rolled back, even if ctx is cancelled afterwards.
func (s *SubmissionService) SubmitTicket(ctx context.Context, input SubmitTicketInput) (*SubmitResult, error) {
	input = normalizeSubmission(input)
	if err := s.validate.Struct(input); err != nil {
		return nil, validationError("invalid submission", err)
	}

	sub := domain.Submission{
		Submitter: domain.Submitter{
			PersalNumber: input.PersalNumber,
			FirstName:    input.FirstName,
			LastName:     input.LastName,
			Email:        input.Email,
			Cellphone:    input.Cellphone,
			JobTitle:     input.JobTitle,
			Location:     input.Location,
			District:     input.District,
			FacilityName: input.FacilityName,
		},
		Description: input.Description,
		LoggedByID:  input.LoggedByID,
	}

	ticket, err := s.allocator.Allocate(ctx, func(number string, now time.Time) *domain.Ticket {
		return BuildTicket(sub, number, now)
	})
	if err != nil {
		return nil, err
	}

	s.publishCreated(context.WithoutCancel(ctx), ticket)
	return &SubmitResult{TicketNumber: ticket.TicketNumber, DocumentID: ticket.ID, Ticket: ticket}, nil
}

func (s *SubmissionService) publishCreated(ctx context.Context, ticket *domain.Ticket) {
	if s.dispatcher == nil {
		return
	}
	actor := events.Actor{UserID: ticket.LoggedByID}
	payload := events.TicketCreatedPayload{
		Title:         ticket.Title,
		SubmitterName: ticket.SubmittedBy.FullName(),
		Facility:      ticket.SubmittedBy.FacilityName,
		District:      ticket.SubmittedBy.District,
	}
	if err := s.dispatcher.Publish(ctx, events.NewEvent(events.EventTicketCreated, ticket, actor, payload)); err != nil {
		s.logger.Warn("publish ticket_created failed", zap.String("ticket_number", ticket.TicketNumber), zap.Error(err))
	}
}

func normalizeSubmission(in SubmitTicketInput) SubmitTicketInput {
	in.PersalNumber = strings.TrimSpace(in.PersalNumber)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.TrimSpace(in.Email)
	in.Cellphone = strings.TrimSpace(in.Cellphone)
	in.JobTitle = strings.TrimSpace(in.JobTitle)
	in.Location = strings.TrimSpace(in.Location)
	in.District = strings.TrimSpace(in.District)
	in.FacilityName = strings.TrimSpace(in.FacilityName)
	in.Description = strings.TrimSpace(in.Description)
	in.LoggedByID = strings.TrimSpace(in.LoggedByID)
	return in
}
