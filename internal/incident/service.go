package incident

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"groundwire/internal/geocode"
	"groundwire/internal/globaltime"
	"groundwire/internal/model"
)

// ErrLocationNotFound is returned when a submission's location text cannot be
// resolved to coordinates.
var ErrLocationNotFound = errors.New("location could not be resolved")

// DuplicateError rejects a submission that matches an existing incident. It
// carries the match so the caller can show the reporter what it collided with.
type DuplicateError struct {
	MatchedID  string
	Similarity float64
	Reason     string
}

func (e *DuplicateError) Error() string {
	return e.Reason
}

// Store is the persistence surface the service needs.
type Store interface {
	Save(ctx context.Context, incident model.Incident) error
	GetAll(ctx context.Context) ([]model.Incident, error)
	GetRecent(ctx context.Context, hoursBack int) ([]model.Incident, error)
	Upvote(ctx context.Context, id string) (int, error)
	SetVerified(ctx context.Context, id string, verified bool) error
}

// Submission is one user-reported incident before validation.
type Submission struct {
	Type         string
	Title        string
	Description  string
	LocationText string
	Lat          *float64
	Lon          *float64
	Timestamp    time.Time
}

// Service handles the interactive incident path: crowdsourced submissions,
// reads, upvotes, and verification. Pipeline-extracted incidents do not pass
// through here; they ride on article-level dedup instead.
type Service struct {
	store    Store
	geocoder geocode.Resolver
	logger   zerolog.Logger
}

func NewService(store Store, geocoder geocode.Resolver, logger zerolog.Logger) *Service {
	return &Service{
		store:    store,
		geocoder: geocoder,
		logger:   logger,
	}
}

// Submit validates, geolocates, duplicate-checks, and persists one
// crowdsourced incident. A duplicate match comes back as *DuplicateError.
func (s *Service) Submit(ctx context.Context, sub Submission) (model.Incident, error) {
	title := strings.TrimSpace(sub.Title)
	if title == "" {
		return model.Incident{}, fmt.Errorf("title is required")
	}

	incidentType, err := model.ParseIncidentType(sub.Type)
	if err != nil {
		incidentType = model.IncidentOther
	}

	timestamp := sub.Timestamp
	if timestamp.IsZero() {
		timestamp = globaltime.UTC()
	}

	lat, lon, address, err := s.resolveCoordinates(ctx, sub)
	if err != nil {
		return model.Incident{}, err
	}

	candidate := model.Incident{
		ID:          uuid.NewString(),
		Type:        incidentType,
		Title:       title,
		Description: strings.TrimSpace(sub.Description),
		Lat:         lat,
		Lon:         lon,
		Address:     address,
		Timestamp:   timestamp,
		Confidence:  100,
		ReportedBy:  model.ReportedByCrowdsource,
		CreatedAt:   globaltime.UTC(),
	}

	// 48 hours of history covers the +/- 24 hour duplicate window for
	// reports filed up to a day after the event.
	existing, err := s.store.GetRecent(ctx, 48)
	if err != nil {
		return model.Incident{}, fmt.Errorf("load recent incidents: %w", err)
	}

	if check := CheckDuplicate(candidate, existing); check.IsDuplicate {
		s.logger.Info().
			Str("matched_id", check.MatchedID).
			Float64("similarity", check.Similarity).
			Msg("rejecting duplicate incident submission")
		return model.Incident{}, &DuplicateError{
			MatchedID:  check.MatchedID,
			Similarity: check.Similarity,
			Reason:     check.Reason,
		}
	}

	if err := s.store.Save(ctx, candidate); err != nil {
		return model.Incident{}, fmt.Errorf("save incident: %w", err)
	}

	s.logger.Info().
		Str("incident_id", candidate.ID).
		Str("type", string(candidate.Type)).
		Msg("incident submitted")
	return candidate, nil
}

func (s *Service) resolveCoordinates(ctx context.Context, sub Submission) (float64, float64, string, error) {
	address := strings.TrimSpace(sub.LocationText)

	if sub.Lat != nil && sub.Lon != nil {
		lat, lon := *sub.Lat, *sub.Lon
		if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
			return 0, 0, "", fmt.Errorf("coordinates out of range: (%f, %f)", lat, lon)
		}
		return lat, lon, address, nil
	}

	if address == "" {
		return 0, 0, "", fmt.Errorf("either coordinates or a location description is required")
	}

	location, err := s.geocoder.Resolve(ctx, address)
	if err != nil {
		return 0, 0, "", fmt.Errorf("geocode location: %w", err)
	}
	if location == nil {
		return 0, 0, "", ErrLocationNotFound
	}

	if location.Address != "" {
		address = location.Address
	}
	return location.Lat, location.Lon, address, nil
}

// List returns stored incidents, exact-identity duplicates stripped, newest
// first as the store orders them. hoursBack <= 0 returns everything;
// typeFilter narrows to one incident type when set.
func (s *Service) List(ctx context.Context, hoursBack int, typeFilter string) ([]model.Incident, error) {
	incidents, err := s.load(ctx, hoursBack)
	if err != nil {
		return nil, err
	}

	incidents = RemoveExactDuplicates(incidents)
	if strings.TrimSpace(typeFilter) == "" {
		return incidents, nil
	}

	wanted, err := model.ParseIncidentType(typeFilter)
	if err != nil {
		return nil, fmt.Errorf("invalid type filter: %w", err)
	}

	filtered := make([]model.Incident, 0, len(incidents))
	for _, inc := range incidents {
		if inc.Type == wanted {
			filtered = append(filtered, inc)
		}
	}
	return filtered, nil
}

// Grouped returns the similarity-clustered presentation view.
func (s *Service) Grouped(ctx context.Context, hoursBack int) ([][]model.Incident, error) {
	incidents, err := s.load(ctx, hoursBack)
	if err != nil {
		return nil, err
	}
	return GroupSimilarIncidents(RemoveExactDuplicates(incidents)), nil
}

func (s *Service) load(ctx context.Context, hoursBack int) ([]model.Incident, error) {
	if hoursBack <= 0 {
		incidents, err := s.store.GetAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("load incidents: %w", err)
		}
		return incidents, nil
	}

	incidents, err := s.store.GetRecent(ctx, hoursBack)
	if err != nil {
		return nil, fmt.Errorf("load recent incidents: %w", err)
	}
	return incidents, nil
}

// Upvote increments the incident's counter and returns the new value.
func (s *Service) Upvote(ctx context.Context, id string) (int, error) {
	count, err := s.store.Upvote(ctx, id)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Verify flips the verification flag on a stored incident.
func (s *Service) Verify(ctx context.Context, id string, verified bool) error {
	return s.store.SetVerified(ctx, id, verified)
}
