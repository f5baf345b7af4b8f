package engine

import (
	"context"
	"fmt"

	"github.com/kozaktomas/visagium/internal/database"
)

// DeleteIdentity removes every encoding of id together with its enrollment
// photos and returns how many encodings were removed. The id and the name
// must each be present in the store, not necessarily on the same record.
func (e *Engine) DeleteIdentity(ctx context.Context, id, name string) (int, error) {
	id, name, err := cleanInput(id, name)
	if err != nil {
		return 0, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.expireIdle()
	if e.active != nil && e.active.identity.ID == id {
		return 0, fmt.Errorf("%w: %s", ErrRegistrationActive, id)
	}

	records := e.store.Records()
	if !database.HasID(records, id) || !database.HasName(records, name) {
		e.log.Warn("identity not found", "id", id, "name", name)
		return 0, fmt.Errorf("%w: %s (%s)", ErrNotFound, name, id)
	}

	if e.gateway != nil {
		if err := e.gateway.DeleteEmployee(ctx, id); err != nil {
			e.metrics.RecordSyncFailure("delete")
			e.log.Error("remote delete failed, identity kept", "id", id, "name", name, "error", err)
			return 0, fmt.Errorf("%w: %w", ErrSyncFailure, err)
		}
	}

	removed, err := e.store.RemoveIdentity(ctx, id)
	if err != nil {
		e.log.Error("identity deleted remotely but not locally", "id", id, "error", err)
		return 0, fmt.Errorf("remove encodings: %w", err)
	}
	if removed == 0 {
		e.log.Error("no encodings removed for a present identity", "id", id)
		return 0, fmt.Errorf("%w: no rows removed for id %s", ErrStoreCorruption, id)
	}
	e.rebuildIndex()

	if e.artifacts != nil {
		if err := e.artifacts.RemoveIdentity(id); err != nil {
			e.log.Warn("failed to remove enrollment photos", "id", id, "error", err)
		}
	}

	e.log.Info("identity deleted", "id", id, "name", name, "encodings", removed)
	return removed, nil
}
