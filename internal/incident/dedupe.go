// Package incident holds the incident-level duplicate rules and the
// interactive submission service. Article-level dedup catches repeated
// coverage; this layer catches repeated reports of the same physical event.
package incident

import (
	"fmt"
	"math"
	"time"

	"github.com/agnivade/levenshtein"

	"groundwire/internal/dedup"
	"groundwire/internal/model"
)

const (
	// duplicateWindow bounds how far apart in time two reports of the same
	// event may be.
	duplicateWindow = 24 * time.Hour
	// duplicateRadiusKm bounds how far apart two reports may sit, roughly a
	// city block.
	duplicateRadiusKm = 0.1
	// titleSimilarityFloor is the minimum edit-distance title similarity for
	// a duplicate classification.
	titleSimilarityFloor = 0.7

	earthRadiusKm = 6371.0
)

// DuplicateCheck is the outcome of comparing a candidate against the stored
// incidents. A duplicate is an expected, first-class outcome carrying enough
// detail for the reporter to reword and retry.
type DuplicateCheck struct {
	IsDuplicate bool    `json:"is_duplicate"`
	MatchedID   string  `json:"matched_id,omitempty"`
	Reason      string  `json:"reason,omitempty"`
	Similarity  float64 `json:"similarity,omitempty"`
}

// CheckDuplicate scans existing incidents for one that describes the same
// event: same type, within 24 hours, within ~100 m, and a title similarity of
// at least 0.7. The first qualifying match wins; there is no best-match
// search.
func CheckDuplicate(candidate model.Incident, existing []model.Incident) DuplicateCheck {
	for _, other := range existing {
		if other.Type != candidate.Type {
			continue
		}
		if !withinWindow(candidate.Timestamp, other.Timestamp, duplicateWindow) {
			continue
		}

		distanceKm := haversineKm(candidate.Lat, candidate.Lon, other.Lat, other.Lon)
		if distanceKm > duplicateRadiusKm {
			continue
		}

		similarity := titleSimilarity(candidate.Title, other.Title)
		if similarity < titleSimilarityFloor {
			continue
		}

		return DuplicateCheck{
			IsDuplicate: true,
			MatchedID:   other.ID,
			Similarity:  similarity,
			Reason: fmt.Sprintf("a %s incident with a matching title was already reported %.0f m away within 24 hours",
				candidate.Type, distanceKm*1000),
		}
	}
	return DuplicateCheck{}
}

// RemoveExactDuplicates strips incidents sharing an identity, keeping the
// first occurrence in order. Re-reads of the same stored rows are idempotent.
func RemoveExactDuplicates(incidents []model.Incident) []model.Incident {
	if len(incidents) == 0 {
		return incidents
	}

	seen := make(map[string]struct{}, len(incidents))
	unique := make([]model.Incident, 0, len(incidents))
	for _, inc := range incidents {
		if _, dup := seen[inc.ID]; dup {
			continue
		}
		seen[inc.ID] = struct{}{}
		unique = append(unique, inc)
	}
	return unique
}

// GroupSimilarIncidents clusters incidents for presentation: each incident
// joins the first group whose lead member it would be classified a duplicate
// of. Grouping is a display aggregation and plays no part in storage
// correctness.
func GroupSimilarIncidents(incidents []model.Incident) [][]model.Incident {
	groups := make([][]model.Incident, 0, len(incidents))
	for _, inc := range incidents {
		placed := false
		for gi, group := range groups {
			if sameEvent(inc, group[0]) {
				groups[gi] = append(group, inc)
				placed = true
				break
			}
		}
		if !placed {
			groups = append(groups, []model.Incident{inc})
		}
	}
	return groups
}

func sameEvent(a, b model.Incident) bool {
	if a.Type != b.Type {
		return false
	}
	if !withinWindow(a.Timestamp, b.Timestamp, duplicateWindow) {
		return false
	}
	if haversineKm(a.Lat, a.Lon, b.Lat, b.Lon) > duplicateRadiusKm {
		return false
	}
	return titleSimilarity(a.Title, b.Title) >= titleSimilarityFloor
}

func withinWindow(a, b time.Time, window time.Duration) bool {
	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}
	return diff <= window
}

// haversineKm is the great-circle distance between two coordinates.
func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLon := toRadians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

func toRadians(degrees float64) float64 {
	return degrees * math.Pi / 180
}

// titleSimilarity is 1 - editDistance/maxLength over normalized titles.
// Two empty titles are identical; one empty title matches nothing.
func titleSimilarity(a, b string) float64 {
	left := dedup.NormalizeText(a)
	right := dedup.NormalizeText(b)
	if left == right {
		return 1.0
	}

	maxLen := len([]rune(left))
	if l := len([]rune(right)); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 {
		return 1.0
	}

	distance := levenshtein.ComputeDistance(left, right)
	return 1 - float64(distance)/float64(maxLen)
}
