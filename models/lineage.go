package models

// SupersessionLink is one step in the lineage of a fact, oldest first.
// The tail link is the requested fact itself with no SupersededBy.
type SupersessionLink struct {
	FactID       string  `json:"fact_id"`
	SupersededBy *string `json:"superseded_by"`
	Timestamp    int64   `json:"timestamp"`
	Reason       *string `json:"reason,omitempty"`
	Current      bool    `json:"current"`
}

// ActionCounts holds exact per-action counts over a filtered event set
type ActionCounts struct {
	Create    int `json:"CREATE"`
	Update    int `json:"UPDATE"`
	Supersede int `json:"SUPERSEDE"`
	Delete    int `json:"DELETE"`
	Total     int `json:"total"`
}

// Add counts one event of the given action
func (c *ActionCounts) Add(action Action) {
	switch action {
	case ActionCreate:
		c.Create++
	case ActionUpdate:
		c.Update++
	case ActionSupersede:
		c.Supersede++
	case ActionDelete:
		c.Delete++
	default:
		return
	}
	c.Total++
}

// ActivitySummary describes how active a memory space was over a recent window
type ActivitySummary struct {
	MemorySpaceID       string       `json:"memory_space_id"`
	Timeframe           string       `json:"timeframe"`
	WindowStart         int64        `json:"window_start"`
	WindowEnd           int64        `json:"window_end"`
	WindowStartRFC3339  string       `json:"window_start_rfc3339"`
	WindowEndRFC3339    string       `json:"window_end_rfc3339"`
	TotalEvents         int          `json:"total_events"`
	ActionCounts        ActionCounts `json:"action_counts"`
	UniqueFactsModified int          `json:"unique_facts_modified"`
	ActiveParticipants  int          `json:"active_participants"`
}
