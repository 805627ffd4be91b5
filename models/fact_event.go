package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// PipelineTrace records which resolution stages ran before an event was emitted
type PipelineTrace struct {
	SlotMatching     bool `json:"slot_matching"`
	SemanticMatching bool `json:"semantic_matching"`
	LLMResolution    bool `json:"llm_resolution"`
}

// Value implements driver.Valuer, storing the trace as JSON text
func (p PipelineTrace) Value() (driver.Value, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner
func (p *PipelineTrace) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("cannot scan %T into PipelineTrace", src)
	}
	return json.Unmarshal(data, p)
}

// FactEvent is one immutable entry of the fact revision audit trail.
// Events are only ever inserted or removed as a whole, never edited.
type FactEvent struct {
	Key            int64          `json:"storage_key" db:"id"` // assigned by the storage adapter
	EventID        string         `json:"event_id" db:"event_id"`
	FactID         string         `json:"fact_id" db:"fact_id"`
	MemorySpaceID  string         `json:"memory_space_id" db:"memory_space_id"`
	Action         Action         `json:"action" db:"action"`
	OldValue       *string        `json:"old_value,omitempty" db:"old_value"`
	NewValue       *string        `json:"new_value,omitempty" db:"new_value"`
	Supersedes     *string        `json:"supersedes,omitempty" db:"supersedes"`
	SupersededBy   *string        `json:"superseded_by,omitempty" db:"superseded_by"`
	Reason         *string        `json:"reason,omitempty" db:"reason"`
	Confidence     *float64       `json:"confidence,omitempty" db:"confidence"` // pipeline scale, not clamped
	Pipeline       *PipelineTrace `json:"pipeline,omitempty" db:"pipeline"`
	UserID         *string        `json:"user_id,omitempty" db:"user_id"`
	ParticipantID  *string        `json:"participant_id,omitempty" db:"participant_id"`
	ConversationID *string        `json:"conversation_id,omitempty" db:"conversation_id"`
	Timestamp      int64          `json:"timestamp" db:"timestamp"` // epoch milliseconds
}

// TableName returns the table name for the FactEvent model
func (FactEvent) TableName() string {
	return "fact_history"
}

// NewFactEvent creates a FactEvent for the given fact, space and action.
// EventID and Timestamp are left for the writer to assign.
func NewFactEvent(factID, memorySpaceID string, action Action) (*FactEvent, error) {
	if !action.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAction, uint8(action))
	}
	return &FactEvent{
		FactID:        factID,
		MemorySpaceID: memorySpaceID,
		Action:        action,
	}, nil
}

// WithValues sets the before/after snapshots
func (e *FactEvent) WithValues(oldValue, newValue *string) *FactEvent {
	e.OldValue = oldValue
	e.NewValue = newValue
	return e
}

// WithSupersession sets the backward and forward lineage links
func (e *FactEvent) WithSupersession(supersedes, supersededBy *string) *FactEvent {
	e.Supersedes = supersedes
	e.SupersededBy = supersededBy
	return e
}

// WithResolution sets the reason, confidence and pipeline trace
func (e *FactEvent) WithResolution(reason *string, confidence *float64, pipeline *PipelineTrace) *FactEvent {
	e.Reason = reason
	e.Confidence = confidence
	e.Pipeline = pipeline
	return e
}

// WithProvenance sets who or what triggered the event
func (e *FactEvent) WithProvenance(userID, participantID, conversationID *string) *FactEvent {
	e.UserID = userID
	e.ParticipantID = participantID
	e.ConversationID = conversationID
	return e
}

// Actors returns the distinct non-empty participant and user identifiers on the event
func (e *FactEvent) Actors() []string {
	var actors []string
	if e.ParticipantID != nil && *e.ParticipantID != "" {
		actors = append(actors, *e.ParticipantID)
	}
	if e.UserID != nil && *e.UserID != "" && (len(actors) == 0 || actors[0] != *e.UserID) {
		actors = append(actors, *e.UserID)
	}
	return actors
}
