package services

import (
	"context"
	"errors"
	"fmt"

	apperrors "github.com/charlesng35/bookshelf/pkg/errors"
)

var (
	// ErrBookNotFound indicates the requested book does not exist.
	ErrBookNotFound = errors.New("book service: book not found")
)

// bookNotFound builds the NotFound signal for a missing book. It matches both
// apperrors.ErrNotFound and ErrBookNotFound under errors.Is.
func bookNotFound(id string) error {
	return apperrors.NotFound("Book", id).WithInternal(fmt.Errorf("%w: %s", ErrBookNotFound, id))
}

func ensuredContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
