package incident

import (
	"testing"
	"time"

	"groundwire/internal/model"
)

var dedupeBase = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func makeIncident(id string, typ model.IncidentType, title string, lat, lon float64, ts time.Time) model.Incident {
	return model.Incident{
		ID:        id,
		Type:      typ,
		Title:     title,
		Lat:       lat,
		Lon:       lon,
		Timestamp: ts,
	}
}

func TestCheckDuplicate_NearbySameEventMatches(t *testing.T) {
	t.Parallel()

	existing := []model.Incident{
		makeIncident("inc-1", model.IncidentProtest, "Protest at Azadi Square", 35.6997, 51.3380, dedupeBase),
	}
	// Roughly 45 meters north, one hour later, reworded title.
	candidate := makeIncident("inc-2", model.IncidentProtest, "protest near azadi square", 35.7001, 51.3380, dedupeBase.Add(time.Hour))

	check := CheckDuplicate(candidate, existing)
	if !check.IsDuplicate {
		t.Fatalf("expected duplicate, got %+v", check)
	}
	if check.MatchedID != "inc-1" {
		t.Fatalf("matched id = %q, want %q", check.MatchedID, "inc-1")
	}
	if check.Similarity < titleSimilarityFloor || check.Similarity > 1 {
		t.Fatalf("similarity = %f, want within [%f, 1]", check.Similarity, titleSimilarityFloor)
	}
	if check.Reason == "" {
		t.Fatal("expected a human-readable reason")
	}
}

func TestCheckDuplicate_TwoKilometersApartIsDistinct(t *testing.T) {
	t.Parallel()

	existing := []model.Incident{
		makeIncident("inc-1", model.IncidentProtest, "Protest at Azadi Square", 35.6997, 51.3380, dedupeBase),
	}
	candidate := makeIncident("inc-2", model.IncidentProtest, "protest near azadi square", 35.7177, 51.3380, dedupeBase.Add(time.Hour))

	if check := CheckDuplicate(candidate, existing); check.IsDuplicate {
		t.Fatalf("expected distinct incident, got match on %q", check.MatchedID)
	}
}

func TestCheckDuplicate_DifferentTypeIsDistinct(t *testing.T) {
	t.Parallel()

	existing := []model.Incident{
		makeIncident("inc-1", model.IncidentArrest, "Protest at Azadi Square", 35.6997, 51.3380, dedupeBase),
	}
	candidate := makeIncident("inc-2", model.IncidentProtest, "Protest at Azadi Square", 35.6997, 51.3380, dedupeBase)

	if check := CheckDuplicate(candidate, existing); check.IsDuplicate {
		t.Fatalf("expected distinct incident, got match on %q", check.MatchedID)
	}
}

func TestCheckDuplicate_OutsideWindowIsDistinct(t *testing.T) {
	t.Parallel()

	existing := []model.Incident{
		makeIncident("inc-1", model.IncidentProtest, "Protest at Azadi Square", 35.6997, 51.3380, dedupeBase),
	}
	candidate := makeIncident("inc-2", model.IncidentProtest, "Protest at Azadi Square", 35.6997, 51.3380, dedupeBase.Add(25*time.Hour))

	if check := CheckDuplicate(candidate, existing); check.IsDuplicate {
		t.Fatalf("expected distinct incident, got match on %q", check.MatchedID)
	}
}

func TestCheckDuplicate_DissimilarTitleIsDistinct(t *testing.T) {
	t.Parallel()

	existing := []model.Incident{
		makeIncident("inc-1", model.IncidentProtest, "Internet blackout reported downtown", 35.6997, 51.3380, dedupeBase),
	}
	candidate := makeIncident("inc-2", model.IncidentProtest, "Protest at Azadi Square", 35.6997, 51.3380, dedupeBase)

	if check := CheckDuplicate(candidate, existing); check.IsDuplicate {
		t.Fatalf("expected distinct incident, got match on %q", check.MatchedID)
	}
}

func TestCheckDuplicate_FirstMatchWins(t *testing.T) {
	t.Parallel()

	existing := []model.Incident{
		makeIncident("inc-1", model.IncidentProtest, "Protest at Azadi Square", 35.6997, 51.3380, dedupeBase),
		makeIncident("inc-2", model.IncidentProtest, "Protest at Azadi Square", 35.6997, 51.3380, dedupeBase),
	}
	candidate := makeIncident("inc-3", model.IncidentProtest, "Protest at Azadi Square", 35.6997, 51.3380, dedupeBase.Add(time.Hour))

	check := CheckDuplicate(candidate, existing)
	if !check.IsDuplicate {
		t.Fatalf("expected duplicate, got %+v", check)
	}
	if check.MatchedID != "inc-1" {
		t.Fatalf("matched id = %q, want first match %q", check.MatchedID, "inc-1")
	}
}

func TestRemoveExactDuplicates_DropsRepeatedIDs(t *testing.T) {
	t.Parallel()

	incidents := []model.Incident{
		makeIncident("a", model.IncidentProtest, "first", 0, 0, dedupeBase),
		makeIncident("b", model.IncidentArrest, "second", 0, 0, dedupeBase),
		makeIncident("a", model.IncidentProtest, "first again", 0, 0, dedupeBase),
		makeIncident("c", model.IncidentOther, "third", 0, 0, dedupeBase),
	}

	unique := RemoveExactDuplicates(incidents)
	if len(unique) != 3 {
		t.Fatalf("got %d incidents, want 3", len(unique))
	}
	for i, want := range []string{"a", "b", "c"} {
		if unique[i].ID != want {
			t.Fatalf("unique[%d].ID = %q, want %q", i, unique[i].ID, want)
		}
	}
	if unique[0].Title != "first" {
		t.Fatalf("kept title = %q, want the first occurrence", unique[0].Title)
	}
}

func TestGroupSimilarIncidents_ClustersSameEvent(t *testing.T) {
	t.Parallel()

	incidents := []model.Incident{
		makeIncident("a", model.IncidentProtest, "Protest at Azadi Square", 35.6997, 51.3380, dedupeBase),
		makeIncident("b", model.IncidentDeath, "Casualty confirmed in Sanandaj", 35.3219, 46.9862, dedupeBase),
		makeIncident("c", model.IncidentProtest, "protest near azadi square", 35.7001, 51.3380, dedupeBase.Add(time.Hour)),
	}

	groups := GroupSimilarIncidents(incidents)
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}
	if len(groups[0]) != 2 {
		t.Fatalf("first group has %d incidents, want 2", len(groups[0]))
	}
	if groups[0][0].ID != "a" || groups[0][1].ID != "c" {
		t.Fatalf("first group = [%q, %q], want [a, c]", groups[0][0].ID, groups[0][1].ID)
	}
	if groups[1][0].ID != "b" {
		t.Fatalf("second group lead = %q, want b", groups[1][0].ID)
	}
}

func TestHaversineKm_OneDegreeOfLatitude(t *testing.T) {
	t.Parallel()

	got := haversineKm(35, 51, 36, 51)
	if got < 111 || got > 111.4 {
		t.Fatalf("one degree of latitude = %f km, want about 111.2", got)
	}
}

func TestTitleSimilarity_NormalizesBeforeComparing(t *testing.T) {
	t.Parallel()

	if sim := titleSimilarity("  PROTEST  at Azadi   Square ", "protest at azadi square"); sim != 1 {
		t.Fatalf("similarity = %f, want 1", sim)
	}
	if sim := titleSimilarity("", ""); sim != 1 {
		t.Fatalf("empty titles similarity = %f, want 1", sim)
	}
}
