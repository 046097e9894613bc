package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, caches and service
// clients return these (optionally wrapped) so services can translate them
// into domain errors.
//
//   - ErrNotFound: task or activity does not exist in the store
//   - ErrConflict: a row with the same identity already exists
//   - ErrUnavailable: a downstream service or the bus cannot be reached
//   - ErrClosed: the resource was closed while the call was in flight
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
	ErrClosed      = errors.New("closed")
)
