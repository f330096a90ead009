package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirasaad/creditcore/pkg/domain/credit"
	"gorm.io/gorm"
)

// MapGormErrorToDomain converts GORM errors to domain errors.
// Anything that is not a known domain condition is wrapped as a storage failure,
// which callers treat as retryable.
func MapGormErrorToDomain(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, credit.ErrStorageFailure):
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return credit.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return credit.ErrDuplicateOperation
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: timed out: %w", credit.ErrStorageFailure, err)
	}
	return fmt.Errorf("%w: %w", credit.ErrStorageFailure, err)
}

// WrapError runs a GORM operation and maps its error.
func WrapError(op func() error) error {
	return MapGormErrorToDomain(op())
}
