package rate

import "errors"

// ErrBackendUnavailable indicates the guard's backing store is unreachable.
// Callers fail closed on it.
var ErrBackendUnavailable = errors.New("rate: backend unavailable")
