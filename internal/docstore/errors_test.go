package docstore

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestMapPostgresError(t *testing.T) {
	other := &pgconn.PgError{Code: "22001"}
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"nil", nil, nil},
		{"unique violation", &pgconn.PgError{Code: "23505"}, ErrConflict},
		{"serialization failure", &pgconn.PgError{Code: "40001"}, ErrConflict},
		{"deadlock", fmt.Errorf("commit: %w", &pgconn.PgError{Code: "40P01"}), ErrConflict},
		{"connection exception", &pgconn.PgError{Code: "08006"}, ErrUnavailable},
		{"too many connections", &pgconn.PgError{Code: "53300"}, ErrUnavailable},
		{"admin shutdown", &pgconn.PgError{Code: "57P01"}, ErrUnavailable},
		{"dial failure", errors.New("dial tcp 127.0.0.1:5432: connection refused"), ErrUnavailable},
		{"cancelled", context.Canceled, context.Canceled},
		{"deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), context.DeadlineExceeded},
		{"other server error", other, other},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapPostgresError(tt.err)
			if tt.want == nil {
				if got != nil {
					t.Fatalf("expected nil, got %v", got)
				}
				return
			}
			if !errors.Is(got, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestMapFirestoreError(t *testing.T) {
	internal := status.Error(codes.Internal, "backend error")
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"nil", nil, nil},
		{"aborted", status.Error(codes.Aborted, "too much contention"), ErrConflict},
		{"already exists", status.Error(codes.AlreadyExists, "document exists"), ErrConflict},
		{"failed precondition", status.Error(codes.FailedPrecondition, "stale read"), ErrConflict},
		{"not found", status.Error(codes.NotFound, "no document"), ErrNotFound},
		{"unavailable", status.Error(codes.Unavailable, "connection reset"), ErrUnavailable},
		{"deadline exceeded", status.Error(codes.DeadlineExceeded, "timeout"), ErrUnavailable},
		{"quota", status.Error(codes.ResourceExhausted, "quota"), ErrUnavailable},
		{"already mapped", fmt.Errorf("get: %w", ErrNotFound), ErrNotFound},
		{"internal", internal, internal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapFirestoreError(tt.err)
			if tt.want == nil {
				if got != nil {
					t.Fatalf("expected nil, got %v", got)
				}
				return
			}
			if !errors.Is(got, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}
