package anchor

import (
	"fmt"

	"github.com/roach88/anchor/internal/registry"
)

// statusOf returns the lifecycle state of rec, untracked for nil.
func statusOf(rec *registry.FileRecord) registry.Status {
	if rec == nil {
		return registry.StatusUntracked
	}
	return rec.Status
}

// checkTransition rejects lifecycle moves outside the state machine.
func checkTransition(from, to registry.Status) error {
	if !isAllowedTransition(from, to) {
		return fmt.Errorf("disallowed transition %s -> %s", from, to)
	}
	return nil
}

func isAllowedTransition(from, to registry.Status) bool {
	switch from {
	case registry.StatusUntracked:
		return to == registry.StatusPending || to == registry.StatusFailed
	case registry.StatusPending:
		return to == registry.StatusPending || to == registry.StatusConfirmed || to == registry.StatusFailed
	case registry.StatusConfirmed:
		return to == registry.StatusPending
	case registry.StatusFailed:
		return to == registry.StatusPending || to == registry.StatusFailed
	default:
		return false
	}
}
