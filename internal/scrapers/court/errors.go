package court

import (
	"errors"
	"fmt"
)

// ErrNotFound is matched by every NotFoundError.
var ErrNotFound = errors.New("case not found")

// NotFoundError means the site explicitly reported no records, or every
// strategy came back empty.
type NotFoundError struct {
	Reason string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("case not found: %s", e.Reason)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ExtractionError means the page loaded but the expected table structure is
// missing entirely.
type ExtractionError struct {
	Reason string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract results: %s", e.Reason)
}

type InvalidQueryError struct {
	Field  string
	Reason string
}

func (e *InvalidQueryError) Error() string {
	return fmt.Sprintf("invalid query: %s %s", e.Field, e.Reason)
}
