package engine

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUndefinedArithmetic is returned by the checked arithmetic helpers when an
// operation has no finite result (division by zero, a negative share count,
// a non-positive root base). Callers turn it into an absent value.
var ErrUndefinedArithmetic = errors.New("undefined arithmetic")

// MissingFieldError reports required columns that are not present in an input table.
// It is fatal to the batch being loaded.
type MissingFieldError struct {
	Table   string
	Columns []string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s: missing required columns: %s", e.Table, strings.Join(e.Columns, ", "))
}

// IsMissingField reports whether err is or wraps a MissingFieldError.
func IsMissingField(err error) bool {
	var mf *MissingFieldError
	return errors.As(err, &mf)
}

// RowError describes a row whose evaluation failed unexpectedly.
// The row is kept in the output with every derived field absent.
type RowError struct {
	Index int
	Name  string
	Cause error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d (%s): %v", e.Index, e.Name, e.Cause)
}

func (e *RowError) Unwrap() error {
	return e.Cause
}
