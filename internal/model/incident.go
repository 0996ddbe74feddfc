package model

import (
	"fmt"
	"strings"
	"time"
)

// IncidentType classifies an incident record.
type IncidentType string

const (
	IncidentProtest IncidentType = "protest"
	IncidentArrest  IncidentType = "arrest"
	IncidentInjury  IncidentType = "injury"
	IncidentDeath   IncidentType = "death"
	IncidentOther   IncidentType = "other"
)

// ParseIncidentType normalizes a free-form type string. Unknown values map to
// IncidentOther with an error so callers can decide whether to reject.
func ParseIncidentType(raw string) (IncidentType, error) {
	switch IncidentType(strings.ToLower(strings.TrimSpace(raw))) {
	case IncidentProtest:
		return IncidentProtest, nil
	case IncidentArrest:
		return IncidentArrest, nil
	case IncidentInjury:
		return IncidentInjury, nil
	case IncidentDeath:
		return IncidentDeath, nil
	case IncidentOther:
		return IncidentOther, nil
	default:
		return IncidentOther, fmt.Errorf("unknown incident type %q", raw)
	}
}

// Reporter origins for stored incidents.
const (
	ReportedByCrowdsource = "crowdsource"
	ReportedByOfficial    = "official"
)

// IncidentCandidate is an extractor output: a structured incident guess pulled
// from article text, location still unresolved. Ephemeral.
type IncidentCandidate struct {
	Type            IncidentType `json:"type"`
	Title           string       `json:"title"`
	Description     string       `json:"description,omitempty"`
	LocationText    string       `json:"location_text"`
	Timestamp       time.Time    `json:"timestamp"`
	Confidence      int          `json:"confidence"`
	Keywords        []string     `json:"keywords,omitempty"`
	SourceArticleID string       `json:"source_article_id,omitempty"`
}

// Incident is a persisted incident with resolved coordinates. Every stored
// incident has valid (lat, lon): candidates that fail geocoding or fall below
// the confidence floor are dropped before persistence. Mutations are limited
// to the upvote counter and the verification flag.
type Incident struct {
	ID              string       `json:"id"`
	Type            IncidentType `json:"type"`
	Title           string       `json:"title"`
	Description     string       `json:"description,omitempty"`
	Lat             float64      `json:"lat"`
	Lon             float64      `json:"lon"`
	Address         string       `json:"address,omitempty"`
	Timestamp       time.Time    `json:"timestamp"`
	Confidence      int          `json:"confidence"`
	Keywords        []string     `json:"keywords,omitempty"`
	SourceArticleID string       `json:"source_article_id,omitempty"`
	Verified        bool         `json:"verified"`
	ReportedBy      string       `json:"reported_by"`
	Upvotes         int          `json:"upvotes"`
	CreatedAt       time.Time    `json:"created_at"`
}
