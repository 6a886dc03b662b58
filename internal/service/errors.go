package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/slatrack/backend/internal/db"
)

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrMisconfigured = errors.New("config invalid")

	// ErrChainLimit - supersession traversal hit maxChainHops; the chain is
	// corrupted (cyclic) or longer than supported
	ErrChainLimit = errors.New("replacement chain limit reached")
)

var validate = validator.New()

// validateRequest runs struct tag validation and folds failures into
// ErrInvalidInput with the offending fields listed.
func validateRequest(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(fields, ", "))
	}
	return fmt.Errorf("%w: %v", ErrInvalidInput, err)
}

// notFound maps a missing row to ErrNotFound and passes other errors through.
func notFound(err error, what string, id int64) error {
	if db.IsNoRows(err) {
		return fmt.Errorf("%w: %s %d", ErrNotFound, what, id)
	}
	return err
}
