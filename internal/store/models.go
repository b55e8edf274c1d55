package store

import "time"

// ConversationLog is one chat turn. Rows are immutable once written; the only
// deletion path is the bulk ClearLogs.
type ConversationLog struct {
	ID               int64     `json:"id"`
	ConversationID   string    `json:"conversation_id"`
	Timestamp        time.Time `json:"timestamp"`
	Mode             string    `json:"mode"`     // "normal" or "tutor"
	Question         string    `json:"question"` // the raw user question, never the full prompt
	Answer           string    `json:"answer"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	PromptCost       float64   `json:"prompt_cost"`
	CompletionCost   float64   `json:"completion_cost"`
	TotalCost        float64   `json:"total_cost"`
}

// LogFilter bounds a log query by timestamp. Both bounds are inclusive; a nil
// bound is unfiltered.
type LogFilter struct {
	Start *time.Time
	End   *time.Time
}

// Stats aggregates log rows. TotalConversations counts rows, not distinct
// conversation IDs: a session with N turns contributes N.
type Stats struct {
	TotalConversations int
	TotalTokens        int
	TotalCost          float64
	CountByMode        map[string]int
}
