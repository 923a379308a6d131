package models

import (
	"time"
)

// EventType names a published state change.
type EventType string

const (
	TableJoined          EventType = "table.joined"
	TableLeft            EventType = "table.left"
	HelpRequestCreated   EventType = "help_request.created"
	HelpRequestCompleted EventType = "help_request.completed"
)

// Event is published after a state change has been applied.
type Event struct {
	ID            string    `json:"id"`
	Type          EventType `json:"type"`
	ParticipantID string    `json:"participant_id,omitempty"`
	Label         string    `json:"label,omitempty"`
	RequestID     string    `json:"request_id,omitempty"`
	Description   string    `json:"description,omitempty"`
	At            time.Time `json:"at"`
}

// EventRecord archived event row
type EventRecord struct {
	ID            uint      `json:"-" gorm:"primaryKey"`
	EventID       string    `json:"id" gorm:"size:36;uniqueIndex;not null"`
	Type          EventType `json:"type" gorm:"size:32;index;not null"`
	ParticipantID string    `json:"participant_id" gorm:"size:32;index"`
	Label         string    `json:"label" gorm:"size:64"`
	RequestID     string    `json:"request_id" gorm:"size:16;index"`
	Description   string    `json:"description" gorm:"type:text"`
	At            time.Time `json:"at" gorm:"index"`
}

// TableName gorm table name
func (EventRecord) TableName() string {
	return "event_history"
}

// NewEventRecord converts an event into its archive row.
func NewEventRecord(e Event) EventRecord {
	return EventRecord{
		EventID:       e.ID,
		Type:          e.Type,
		ParticipantID: e.ParticipantID,
		Label:         e.Label,
		RequestID:     e.RequestID,
		Description:   e.Description,
		At:            e.At,
	}
}
