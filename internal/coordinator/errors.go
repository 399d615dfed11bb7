package coordinator

import "github.com/fentz26/drover/internal/store"

// Sentinel errors for coordinator operations. The submit preconditions are
// enforced inside the store transaction; these aliases keep callers of the
// service decoupled from the persistence package.
var (
	ErrCommandNotFound = store.ErrCommandNotFound
	ErrNotRunning      = store.ErrNotRunning
	ErrAgentMismatch   = store.ErrAgentMismatch
)
