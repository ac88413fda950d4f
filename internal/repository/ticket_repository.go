package repository

import (
	"context"
	"sort"

	"github.com/tdhs/helpdesk-service/internal/docstore"
	"github.com/tdhs/helpdesk-service/internal/domain"
)

// TicketsCollection holds ticket documents keyed by generated ids.
const TicketsCollection = "tickets"

// TicketFilter captures dashboard listing parameters.
type TicketFilter struct {
	Status       domain.TicketStatus
	AssignedToID string
	Limit        int
	Offset       int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Insert(tx docstore.Tx, ticket *domain.Ticket) error
	Save(tx docstore.Tx, ticket *domain.Ticket) error
	Remove(tx docstore.Tx, id string) error
	GetForUpdate(ctx context.Context, tx docstore.Tx, id string) (*domain.Ticket, error)
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	FindByNumber(ctx context.Context, number string) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
}

type ticketRepository struct {
	store docstore.Store
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(store docstore.Store) TicketRepository {
	return &ticketRepository{store: store}
}

// Insert buffers a new ticket document and sets ticket.ID to its generated id.
func (r *ticketRepository) Insert(tx docstore.Tx, ticket *domain.Ticket) error {
	fields, err := docstore.Encode(ticket)
	if err != nil {
		return err
	}
	ref, err := tx.Create(TicketsCollection, fields)
	if err != nil {
		return err
	}
	ticket.ID = ref.ID
	return nil
}

func (r *ticketRepository) Save(tx docstore.Tx, ticket *domain.Ticket) error {
	fields, err := docstore.Encode(ticket)
	if err != nil {
		return err
	}
	return tx.Set(docstore.NewRef(TicketsCollection, ticket.ID), fields)
}

func (r *ticketRepository) Remove(tx docstore.Tx, id string) error {
	return tx.Delete(docstore.NewRef(TicketsCollection, id))
}

func (r *ticketRepository) GetForUpdate(ctx context.Context, tx docstore.Tx, id string) (*domain.Ticket, error) {
	doc, err := tx.Get(ctx, docstore.NewRef(TicketsCollection, id))
	if err != nil {
		return nil, err
	}
	return decodeTicket(*doc)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	doc, err := r.store.Get(ctx, docstore.NewRef(TicketsCollection, id))
	if err != nil {
		return nil, err
	}
	return decodeTicket(*doc)
}

// FindByNumber returns the ticket whose ticketNumber equals number exactly.
func (r *ticketRepository) FindByNumber(ctx context.Context, number string) (*domain.Ticket, error) {
	docs, err := r.store.Query(ctx, docstore.Query{
		Collection: TicketsCollection,
		Where:      []docstore.Filter{{Field: "ticketNumber", Value: number}},
		Limit:      1,
	})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, docstore.ErrNotFound
	}
	return decodeTicket(docs[0])
}

// List returns tickets newest first.
func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	q := docstore.Query{Collection: TicketsCollection}
	if filter.Status != "" {
		q.Where = append(q.Where, docstore.Filter{Field: "status", Value: string(filter.Status)})
	}
	if filter.AssignedToID != "" {
		q.Where = append(q.Where, docstore.Filter{Field: "assignedToId", Value: filter.AssignedToID})
	}
	docs, err := r.store.Query(ctx, q)
	if err != nil {
		return nil, err
	}

	tickets := make([]domain.Ticket, 0, len(docs))
	for _, doc := range docs {
		t, err := decodeTicket(doc)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, *t)
	}
	sort.SliceStable(tickets, func(i, j int) bool {
		if tickets[i].CreatedAt.Equal(tickets[j].CreatedAt) {
			return ticketNumberLess(tickets[j].TicketNumber, tickets[i].TicketNumber)
		}
		return tickets[i].CreatedAt.After(tickets[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(tickets) {
			return []domain.Ticket{}, nil
		}
		tickets = tickets[filter.Offset:]
	}
	if filter.Limit > 0 && len(tickets) > filter.Limit {
		tickets = tickets[:filter.Limit]
	}
	return tickets, nil
}

// ticketNumberLess orders numbers sharing a prefix by their numeric suffix:
// TDHS-9 sorts before TDHS-10.
func ticketNumberLess(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}

func decodeTicket(doc docstore.Document) (*domain.Ticket, error) {
	var t domain.Ticket
	if err := docstore.Decode(doc.Fields, &t); err != nil {
		return nil, err
	}
	t.ID = doc.Ref.ID
	return &t, nil
}
