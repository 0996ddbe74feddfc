package model

import "time"

// Suggestion is a crowd-submitted pointer to a channel or feed worth
// monitoring. Stored verbatim for operator review; the pipeline never acts on
// suggestions automatically.
type Suggestion struct {
	ID        string    `json:"id"`
	Platform  string    `json:"platform"`
	Handle    string    `json:"handle"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
