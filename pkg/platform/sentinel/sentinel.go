package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Member tables, identity directories
// and email relays return these (optionally wrapped) so services can translate
// them into domain errors:
//   - ErrNotFound: no matching item (empty index, unknown member id, unknown identity)
//   - ErrConflict: a conditional write lost because the key already exists
//   - ErrUnavailable: the backing service is temporarily unreachable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
)
