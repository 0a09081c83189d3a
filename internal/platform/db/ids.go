package db

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/signalworks/storefront/internal/shared"
)

// CheckID rejects ids that are not UUIDs as not found, so malformed path
// parameters never reach a uuid column cast.
func CheckID(entity, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%s %s: %w", entity, id, shared.ErrNotFound)
	}
	return nil
}
