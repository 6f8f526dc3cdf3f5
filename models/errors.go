package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingColumn matches every *MissingColumnError via errors.Is.
var ErrMissingColumn = errors.New("required column not found")

// MissingColumnError reports a required column that could not be located.
type MissingColumnError struct {
	Table      string
	Column     string
	Candidates []string
	Available  []string
}

func (e *MissingColumnError) Error() string {
	msg := fmt.Sprintf("%s: missing %q column", e.Table, e.Column)
	if len(e.Candidates) > 0 {
		msg += fmt.Sprintf(" (looked for %s)", strings.Join(e.Candidates, ", "))
	}
	if len(e.Available) > 0 {
		msg += fmt.Sprintf("; columns: %s", strings.Join(e.Available, ", "))
	}
	return msg
}

func (e *MissingColumnError) Is(target error) bool {
	return target == ErrMissingColumn
}
