package grid

import (
	"errors"
	"fmt"

	"github.com/alfredjeanlab/gridpanel/internal/filter"
	"github.com/alfredjeanlab/gridpanel/internal/layout"
	"github.com/alfredjeanlab/gridpanel/internal/model"
	"github.com/alfredjeanlab/gridpanel/internal/query"
)

var (
	// ErrNotConfigured is returned when an endpoint is called on a grid that
	// was not configured to allow it.
	ErrNotConfigured = layout.ErrNotConfigured

	// ErrUnsupported is returned when the grid's entity lacks a capability
	// the endpoint needs, such as a position column for move_rows.
	ErrUnsupported = errors.New("unsupported by entity")

	// ErrUnknownEndpoint is returned by Call for names it does not dispatch.
	ErrUnknownEndpoint = errors.New("unknown endpoint")

	// ErrUnknownGrid is returned by the registry for ids it does not hold.
	ErrUnknownGrid = errors.New("unknown grid")
)

// InputError indicates invalid request parameters.
// Transport layers map this to 400 / InvalidArgument.
type InputError string

func (e InputError) Error() string { return string(e) }

func inputErrorf(format string, args ...any) error {
	return InputError(fmt.Sprintf(format, args...))
}

// asInputError turns errors caused by client input into an InputError and
// returns anything else unchanged.
func asInputError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, query.ErrInvalidParams),
		errors.Is(err, filter.ErrInvalid),
		errors.Is(err, model.ErrColumnIndex),
		errors.Is(err, layout.ErrInvalidWidth),
		errors.Is(err, model.ErrUnknownField):
		return InputError(err.Error())
	}
	var ae *model.AssignmentError
	if errors.As(err, &ae) {
		return InputError(ae.Error())
	}
	return err
}
