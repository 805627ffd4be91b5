package history

import (
	"fmt"

	"github.com/google/uuid"
)

// EventIDPrefix marks identifiers minted by the fact history writer
const EventIDPrefix = "fh-"

// IDGenerator mints globally unique event identifiers
type IDGenerator interface {
	NewEventID() (string, error)
}

// UUIDv7Generator produces "fh-<uuidv7>" identifiers. UUIDv7 embeds a
// millisecond timestamp plus a per-process sequence, so IDs sort in
// generation order and do not collide across concurrent writers.
type UUIDv7Generator struct{}

// NewEventID implements IDGenerator
func (UUIDv7Generator) NewEventID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate event id: %w", err)
	}
	return EventIDPrefix + id.String(), nil
}
