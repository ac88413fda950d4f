package service

import (
	"fmt"
	"time"

	"github.com/tdhs/helpdesk-service/internal/domain"
)

// TitleMaxRunes bounds the derived ticket title.
const TitleMaxRunes = 50

const titleEllipsis = "…"

// FormatTicketNumber renders the human-readable number for sequence value n.
func FormatTicketNumber(prefix string, n int64) string {
	return fmt.Sprintf("%s-%d", prefix, n)
}

// TruncateTitle returns the first TitleMaxRunes characters of description,
// followed by an ellipsis when anything was cut.
func TruncateTitle(description string) string {
	runes := []rune(description)
	if len(runes) <= TitleMaxRunes {
		return description
	}
	return string(runes[:TitleMaxRunes]) + titleEllipsis
}

// BuildTicket assembles a new ticket for an allocated number. The result is
// always Open with no priority or escalation level, and both timestamps set
// to now.
func BuildTicket(sub domain.Submission, number string, now time.Time) *domain.Ticket {
	return &domain.Ticket{
		TicketNumber: number,
		Title:        TruncateTitle(sub.Description),
		Description:  sub.Description,
		Status:       domain.TicketStatusOpen,
		Category:     domain.DefaultCategory,
		SubmittedBy:  sub.Submitter,
		LoggedByID:   sub.LoggedByID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
