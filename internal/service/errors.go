package service

import (
	"context"
	"errors"

	"github.com/tdhs/helpdesk-service/internal/docstore"
	apperrors "github.com/tdhs/helpdesk-service/pkg/util/errorutil"
)

// storeError maps a docstore failure to the error returned to callers.
func storeError(err error) error {
	var domainErr *apperrors.DomainError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &domainErr):
		return err
	case errors.Is(err, docstore.ErrUnavailable),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewStoreUnavailable(err)
	case errors.Is(err, docstore.ErrConflict):
		return apperrors.NewConflict("ticket was modified concurrently, please retry", nil)
	}
	return apperrors.NewInternalError(err)
}
