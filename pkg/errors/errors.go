package errors

import (
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
)

// ValidationError rejects malformed input before any state mutation
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(msg string) *ValidationError {
	return &ValidationError{Message: msg}
}

// NewValidationErrorf creates a new ValidationError with a formatted message
func NewValidationErrorf(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("field '%s': %s", e.Field, e.Message)
	}
	return e.Message
}

func (e *ValidationError) AddField(field string) *ValidationError {
	e.Field = field
	return e
}

func (e *ValidationError) ToHTTPError() *httperror.HTTPError {
	return httperror.NewHTTPError(http.StatusBadRequest, e.Error()).AddMetaValue("field", e.Field)
}

func IsValidationError(err error) bool {
	_, ok := err.(*ValidationError)
	return ok
}

// NotFoundError surfaces a missing relationship, event or insight. Not
// retryable. Missing derived state is not an error and never uses this
// type; absence there means "not yet computed".
type NotFoundError struct {
	Resource string
	ID       string
}

func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	return fmt.Sprintf("%s '%s' not found", e.Resource, e.ID)
}

func (e *NotFoundError) ToHTTPError() *httperror.HTTPError {
	return httperror.NewHTTPError(http.StatusNotFound, e.Error()).AddMetaValue("resource", e.Resource).AddMetaValue("id", e.ID)
}

func IsNotFoundError(err error) bool {
	_, ok := err.(*NotFoundError)
	return ok
}

// InconsistentStateError means a cached score record claims to be newer
// than the latest event it summarizes, so something bypassed the write
// path. Recovery is a full recomputation from raw events, never a guess.
type InconsistentStateError struct {
	RelationshipID string
	CachedAt       time.Time
	LatestEventAt  time.Time
}

func NewInconsistentStateError(relationshipID string, cachedAt, latestEventAt time.Time) *InconsistentStateError {
	return &InconsistentStateError{
		RelationshipID: relationshipID,
		CachedAt:       cachedAt,
		LatestEventAt:  latestEventAt,
	}
}

func (e *InconsistentStateError) Error() string {
	return fmt.Sprintf("score record for relationship '%s' is newer (%s) than its latest event (%s)",
		e.RelationshipID, e.CachedAt.Format(time.RFC3339), e.LatestEventAt.Format(time.RFC3339))
}

func (e *InconsistentStateError) ToHTTPError() *httperror.HTTPError {
	return httperror.NewHTTPError(http.StatusConflict, e.Error()).AddMetaValue("relationship_id", e.RelationshipID)
}

func IsInconsistentStateError(err error) bool {
	_, ok := err.(*InconsistentStateError)
	return ok
}
