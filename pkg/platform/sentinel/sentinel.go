package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into domain errors with stable
// codes without knowing which backend produced them.
//
// These represent factual states about stored rows, not validation failures:
//   - ErrNotFound: no live row matches under the caller's tenant scope. A row
//     owned by a different tenant is reported the same way; scope mismatch
//     must never be distinguishable from absence.
//   - ErrVersionConflict: a conditional update matched the row but not the
//     expected version. The caller must re-read and retry.
//   - ErrDuplicateKey: a uniqueness constraint rejected the insert. For
//     idempotency receipts this means another request with the same key won
//     the race and its stored response should be replayed.
var (
	ErrNotFound        = errors.New("not found")
	ErrVersionConflict = errors.New("version conflict")
	ErrDuplicateKey    = errors.New("duplicate key")
)
