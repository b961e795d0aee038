// Package errors defines the domain error types surfaced by the
// consolidation and itinerary engines.
package errors

import (
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"

	"github.com/harborline/keel/pkg/models"
)

// ValidationError reports invalid input detected before any persistence call
// is attempted. It is never partially applied.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(msg string) *ValidationError {
	return &ValidationError{Message: msg}
}

func NewValidationErrorf(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// WithField attaches the offending field name.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("field '%s': %s", e.Field, e.Message)
	}
	return e.Message
}

func (e *ValidationError) ToHTTPError() *httperror.HTTPError {
	herr := httperror.NewHTTPError(http.StatusBadRequest, e.Message)
	if e.Field != "" {
		herr = herr.AddMetaValue("field", e.Field)
	}
	return herr
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	_, ok := err.(*ValidationError)
	return ok
}

// PartialFailure reports a multi-step workflow that succeeded for some
// carriers and failed for others. The succeeded steps are committed and are
// not rolled back; the caller decides whether to retry with a reduced set.
type PartialFailure struct {
	Step     string
	Outcomes []models.CloneOutcome
}

func NewPartialFailure(step string, outcomes []models.CloneOutcome) *PartialFailure {
	return &PartialFailure{Step: step, Outcomes: outcomes}
}

func (e *PartialFailure) Error() string {
	succeeded, failed := 0, 0
	for _, o := range e.Outcomes {
		if o.Succeeded {
			succeeded++
		} else {
			failed++
		}
	}
	return fmt.Sprintf("%s partially failed: %d carriers succeeded, %d failed", e.Step, succeeded, failed)
}

func (e *PartialFailure) ToHTTPError() *httperror.HTTPError {
	return httperror.NewHTTPError(http.StatusConflict, e.Error()).
		AddMetaValue("step", e.Step).
		AddMetaValue("outcomes", e.Outcomes)
}

// IsPartialFailure reports whether err is a PartialFailure.
func IsPartialFailure(err error) bool {
	_, ok := err.(*PartialFailure)
	return ok
}

// StepError wraps a persistence collaborator failure with the step that
// issued it, so callers can tell exactly which create/update/delete call was
// rejected. The underlying error is propagated verbatim and never retried.
type StepError struct {
	Step string
	Err  error
}

func WrapStep(step string, err error) *StepError {
	return &StepError{Step: step, Err: err}
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
