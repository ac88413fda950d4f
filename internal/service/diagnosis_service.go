package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/tdhs/helpdesk-service/internal/ai"
	"github.com/tdhs/helpdesk-service/internal/docstore"
	"github.com/tdhs/helpdesk-service/internal/domain"
	"github.com/tdhs/helpdesk-service/internal/repository"
	apperrors "github.com/tdhs/helpdesk-service/pkg/util/errorutil"
)

const diagnosisSystemPrompt = `You are an expert IT support technician with years of experience in a corporate environment.
Analyze the user's description of the problem and give a preliminary diagnosis and a set of actionable steps for a junior technician to follow.
Focus on common issues related to software, hardware, networking and user accounts. Be clear, concise and practical.
Respond with a JSON object: {"potentialDiagnosis": string, "suggestedSteps": [string]}.`

// Diagnosis is a generated first opinion on a ticket.
type Diagnosis struct {
	PotentialDiagnosis string   `json:"potentialDiagnosis"`
	SuggestedSteps     []string `json:"suggestedSteps"`
}

// DiagnosisService asks a text generator for a preliminary diagnosis.
type DiagnosisService struct {
	tickets   repository.TicketRepository
	generator ai.TextGenerator
	logger    *zap.Logger
}

// NewDiagnosisService constructs the service. A nil generator disables it.
func NewDiagnosisService(tickets repository.TicketRepository, generator ai.TextGenerator, logger *zap.Logger) *DiagnosisService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DiagnosisService{tickets: tickets, generator: generator, logger: logger}
}

// Diagnose generates a diagnosis for an open piece of work.
func (s *DiagnosisService) Diagnose(ctx context.Context, actor domain.Principal, ticketID string) (*Diagnosis, error) {
	if s.generator == nil {
		return nil, apperrors.NewServiceUnavailable("diagnosis assistant is not configured")
	}
	if !actor.HasRole(domain.RoleTechnician, domain.RoleSupervisor, domain.RoleAdmin) {
		return nil, apperrors.NewForbidden("role cannot request diagnoses")
	}

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"id": ticketID})
		}
		return nil, storeError(err)
	}
	if !canSee(actor, ticket) {
		return nil, apperrors.NewForbidden("ticket is not assigned to you")
	}
	if ticket.Status == domain.TicketStatusResolved || ticket.Status == domain.TicketStatusClosed {
		return nil, apperrors.NewConflict("ticket is already finished", map[string]any{"status": ticket.Status})
	}

	prompt := fmt.Sprintf("Ticket Description:\n%q\n\nProvide your diagnosis and suggested troubleshooting steps.", ticket.Description)
	raw, err := s.generator.GenerateJSON(ctx, diagnosisSystemPrompt, prompt)
	if err != nil {
		s.logger.Error("diagnosis generation failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
		return nil, apperrors.NewServiceUnavailable("diagnosis assistant unavailable")
	}

	var out Diagnosis
	if err := json.Unmarshal([]byte(raw), &out); err != nil || strings.TrimSpace(out.PotentialDiagnosis) == "" {
		s.logger.Error("diagnosis response malformed", zap.String("ticket_id", ticket.ID), zap.Error(err))
		return nil, apperrors.NewServiceUnavailable("diagnosis assistant returned an unusable answer")
	}
	if out.SuggestedSteps == nil {
		out.SuggestedSteps = []string{}
	}
	return &out, nil
}
