package services

import "errors"

// ErrMissingBase is returned when the base table file does not exist.
var ErrMissingBase = errors.New("base table not found")
