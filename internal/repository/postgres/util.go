package postgres

import "errors"

// ErrNotFound is the package-wide sentinel for single-row lookups that
// matched nothing.
var ErrNotFound = errors.New("not found")
