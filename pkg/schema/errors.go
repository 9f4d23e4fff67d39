package schema

import "errors"

// ErrInvalidSchema is the sentinel for every construction-time schema
// defect: a sealed interface with a non-record variant, a malformed
// enum registration, and so on. Callers compare with errors.Is.
var ErrInvalidSchema = errors.New("pickle: invalid schema")

// ErrUnregistered marks a discovered interface or enum type for which
// the caller never supplied the facts reflection cannot derive on its
// own (see Registry). It always wraps into ErrInvalidSchema.
var ErrUnregistered = errors.New("pickle: type not registered")
