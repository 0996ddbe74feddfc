// Package extract turns stored articles into incident candidates using
// keyword rules. Candidates carry a confidence score; the refresh pipeline
// decides which ones are worth keeping.
package extract

import (
	"regexp"
	"strings"

	"groundwire/internal/dedup"
	"groundwire/internal/model"
)

const (
	confidencePerHit   = 20
	locationBoost      = 15
	confidenceCeiling  = 95
	descriptionMaxRune = 280
)

// Extractor pulls incident candidates out of an article. An empty result
// means the article does not describe an incident, which is the common case.
type Extractor interface {
	Extract(article model.Article) []model.IncidentCandidate
}

// typeRule maps one incident type to its trigger keywords. Keywords are
// matched against normalized text, so they must be lowercase.
type typeRule struct {
	incidentType model.IncidentType
	keywords     []string
}

// Rules are ordered by severity. The first rule with any hit classifies the
// article, so a report of deaths at a protest files as a death, not a protest.
var defaultRules = []typeRule{
	{model.IncidentDeath, []string{"killed", "shot dead", "death toll", "deaths", "fatalities", "casualties"}},
	{model.IncidentInjury, []string{"injured", "wounded", "hospitalized", "beaten", "tear gas"}},
	{model.IncidentArrest, []string{"arrested", "detained", "detention", "taken into custody", "mass arrests"}},
	{model.IncidentProtest, []string{"protest", "demonstration", "rally", "strike", "march", "sit-in"}},
}

// locationPattern captures a capitalized place phrase after a locative
// preposition, e.g. "near Azadi Square" or "in Tehran".
var locationPattern = regexp.MustCompile(`(?:^|[\s(])(?i:in|at|near)\s+(\p{Lu}[\p{L}']*(?:\s+\p{Lu}[\p{L}']*){0,3})`)

// Keyword is the rule-based Extractor implementation.
type Keyword struct {
	rules []typeRule
}

func NewKeyword() *Keyword {
	return &Keyword{rules: defaultRules}
}

// Extract classifies the article against the rule table. At most one
// candidate comes back per article, for the most severe matching type.
func (k *Keyword) Extract(article model.Article) []model.IncidentCandidate {
	title := strings.TrimSpace(article.Title)
	if title == "" {
		return nil
	}

	raw := joinText(article.Title, article.Summary, article.Body)
	normalized := dedup.NormalizeText(raw)
	if normalized == "" {
		return nil
	}

	for _, rule := range k.rules {
		matched := matchedKeywords(normalized, rule.keywords)
		if len(matched) == 0 {
			continue
		}

		location := extractLocation(raw)
		confidence := len(matched) * confidencePerHit
		if location != "" {
			confidence += locationBoost
		}
		if confidence > confidenceCeiling {
			confidence = confidenceCeiling
		}

		timestamp := article.PublishedAt
		if timestamp.IsZero() {
			timestamp = article.CreatedAt
		}

		return []model.IncidentCandidate{{
			Type:            rule.incidentType,
			Title:           title,
			Description:     describe(article),
			LocationText:    location,
			Timestamp:       timestamp,
			Confidence:      confidence,
			Keywords:        matched,
			SourceArticleID: article.ID,
		}}
	}
	return nil
}

func matchedKeywords(normalized string, keywords []string) []string {
	var matched []string
	for _, kw := range keywords {
		if strings.Contains(normalized, kw) {
			matched = append(matched, kw)
		}
	}
	return matched
}

// extractLocation returns the first locative phrase found in the raw text.
// Raw text keeps its casing: the pattern leans on capitalized place names.
func extractLocation(raw string) string {
	match := locationPattern.FindStringSubmatch(raw)
	if len(match) < 2 {
		return ""
	}
	return strings.TrimSpace(match[1])
}

func describe(article model.Article) string {
	description := strings.TrimSpace(article.Summary)
	if description == "" {
		description = strings.TrimSpace(article.Body)
	}
	runes := []rune(description)
	if len(runes) > descriptionMaxRune {
		description = string(runes[:descriptionMaxRune])
	}
	return description
}

func joinText(parts ...string) string {
	var kept []string
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			kept = append(kept, trimmed)
		}
	}
	return strings.Join(kept, "\n")
}
