// Package session delivers parsed items: it instantiates a declaration
// context per candidate session, binds submitted responses and runs response
// processing, persisting variable snapshots between attempts.
package session

import "encoding/json"

// Snapshot is a persisted variable set: identifier to PCI-encoded value.
type Snapshot map[string]json.RawMessage

// Session is one candidate's delivery of one item.
type Session struct {
	ID               string   `json:"id"`
	ItemID           string   `json:"item_id"`
	Candidate        string   `json:"candidate"`
	Templates        Snapshot `json:"templates,omitempty"`
	Responses        Snapshot `json:"responses,omitempty"`
	Outcomes         Snapshot `json:"outcomes,omitempty"`
	Correct          Snapshot `json:"correct_responses,omitempty"`
	NumAttempts      int      `json:"num_attempts"`
	CompletionStatus string   `json:"completion_status"`
	CreatedAt        int64    `json:"created_at"`
	UpdatedAt        int64    `json:"updated_at"`
}

// Item is a stored item document.
type Item struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	XML       []byte `json:"-"`
	CreatedAt int64  `json:"created_at"`
}
