package models

import (
	"time"
)

// Alert is a webhook notification raised for an ERROR diagnostic entry
type Alert struct {
	ID        string     `json:"id"`
	EntryID   string     `json:"entry_id"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	Category  string     `json:"category"`
	Target    string     `json:"target"` // webhook URL
	Status    string     `json:"status"` // pending, sent, failed
	Attempts  int        `json:"attempts"`
	CreatedAt time.Time  `json:"created_at"`
	SentAt    *time.Time `json:"sent_at,omitempty"`
	Error     *string    `json:"error,omitempty"`
}
