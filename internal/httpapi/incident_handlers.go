package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"groundwire/internal/db"
	"groundwire/internal/incident"
	"groundwire/internal/model"
)

const (
	defaultIncidentWindowHours = 24
	maxIncidentWindowHours     = 720
)

type incidentItem struct {
	IncidentID      string    `json:"incident_id"`
	Type            string    `json:"type"`
	Title           string    `json:"title"`
	Description     string    `json:"description,omitempty"`
	Lat             float64   `json:"lat"`
	Lon             float64   `json:"lon"`
	Address         string    `json:"address,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
	Confidence      int       `json:"confidence"`
	Keywords        []string  `json:"keywords,omitempty"`
	SourceArticleID string    `json:"source_article_id,omitempty"`
	Verified        bool      `json:"verified"`
	ReportedBy      string    `json:"reported_by"`
	Upvotes         int       `json:"upvotes"`
	CreatedAt       time.Time `json:"created_at"`
}

type incidentGroup struct {
	Incidents []incidentItem `json:"incidents"`
	Count     int            `json:"count"`
}

type submitIncidentRequest struct {
	Type         string     `json:"type"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	LocationText string     `json:"location_text"`
	Lat          *float64   `json:"lat"`
	Lon          *float64   `json:"lon"`
	Timestamp    *time.Time `json:"timestamp"`
}

type verifyIncidentRequest struct {
	Verified *bool `json:"verified"`
}

func buildIncidentItem(inc model.Incident) incidentItem {
	return incidentItem{
		IncidentID:      inc.ID,
		Type:            string(inc.Type),
		Title:           inc.Title,
		Description:     inc.Description,
		Lat:             inc.Lat,
		Lon:             inc.Lon,
		Address:         inc.Address,
		Timestamp:       inc.Timestamp.UTC(),
		Confidence:      inc.Confidence,
		Keywords:        inc.Keywords,
		SourceArticleID: inc.SourceArticleID,
		Verified:        inc.Verified,
		ReportedBy:      inc.ReportedBy,
		Upvotes:         inc.Upvotes,
		CreatedAt:       inc.CreatedAt.UTC(),
	}
}

func (s *Server) handleIncidents(c echo.Context) error {
	if s.incidents == nil {
		return internalError(c, "Incident reporting is not available")
	}

	hours, err := parsePositiveInt(c.QueryParam("hours"), defaultIncidentWindowHours, 1, maxIncidentWindowHours)
	if err != nil {
		return failValidation(c, map[string]string{"hours": err.Error()})
	}

	typeFilter := strings.TrimSpace(c.QueryParam("type"))
	if typeFilter != "" {
		if _, parseErr := model.ParseIncidentType(typeFilter); parseErr != nil {
			return failValidation(c, map[string]string{"type": "must be one of protest, arrest, injury, death, other"})
		}
	}

	incidents, err := s.incidents.List(c.Request().Context(), hours, typeFilter)
	if err != nil {
		s.logger.Error().Err(err).Int("hours", hours).Str("type", typeFilter).Msg("list incidents failed")
		return internalError(c, "Failed to load incidents")
	}

	items := make([]incidentItem, 0, len(incidents))
	for _, inc := range incidents {
		items = append(items, buildIncidentItem(inc))
	}

	return success(c, map[string]any{
		"items":        items,
		"window_hours": hours,
		"count":        len(items),
	})
}

func (s *Server) handleIncidentsGrouped(c echo.Context) error {
	if s.incidents == nil {
		return internalError(c, "Incident reporting is not available")
	}

	hours, err := parsePositiveInt(c.QueryParam("hours"), defaultIncidentWindowHours, 1, maxIncidentWindowHours)
	if err != nil {
		return failValidation(c, map[string]string{"hours": err.Error()})
	}

	grouped, err := s.incidents.Grouped(c.Request().Context(), hours)
	if err != nil {
		s.logger.Error().Err(err).Int("hours", hours).Msg("group incidents failed")
		return internalError(c, "Failed to load incident groups")
	}

	groups := make([]incidentGroup, 0, len(grouped))
	for _, group := range grouped {
		items := make([]incidentItem, 0, len(group))
		for _, inc := range group {
			items = append(items, buildIncidentItem(inc))
		}
		groups = append(groups, incidentGroup{Incidents: items, Count: len(items)})
	}

	return success(c, map[string]any{
		"groups":       groups,
		"window_hours": hours,
		"group_count":  len(groups),
	})
}

func (s *Server) handleSubmitIncident(c echo.Context) error {
	if s.incidents == nil {
		return internalError(c, "Incident reporting is not available")
	}

	var req submitIncidentRequest
	if err := decodeJSONBody(c, &req); err != nil {
		return failValidation(c, map[string]string{"body": err.Error()})
	}

	fieldErrors := map[string]string{}
	if strings.TrimSpace(req.Title) == "" {
		fieldErrors["title"] = "is required"
	}
	if strings.TrimSpace(req.Type) != "" {
		if _, err := model.ParseIncidentType(req.Type); err != nil {
			fieldErrors["type"] = "must be one of protest, arrest, injury, death, other"
		}
	}
	hasLat := req.Lat != nil
	hasLon := req.Lon != nil
	switch {
	case hasLat != hasLon:
		fieldErrors["lat"] = "lat and lon must be provided together"
	case hasLat && hasLon:
		if *req.Lat < -90 || *req.Lat > 90 {
			fieldErrors["lat"] = "must be between -90 and 90"
		}
		if *req.Lon < -180 || *req.Lon > 180 {
			fieldErrors["lon"] = "must be between -180 and 180"
		}
	case strings.TrimSpace(req.LocationText) == "":
		fieldErrors["location_text"] = "is required when coordinates are not provided"
	}
	if len(fieldErrors) > 0 {
		return failValidation(c, fieldErrors)
	}

	sub := incident.Submission{
		Type:         req.Type,
		Title:        req.Title,
		Description:  req.Description,
		LocationText: req.LocationText,
		Lat:          req.Lat,
		Lon:          req.Lon,
	}
	if req.Timestamp != nil {
		sub.Timestamp = req.Timestamp.UTC()
	}

	saved, err := s.incidents.Submit(c.Request().Context(), sub)
	if err != nil {
		var dup *incident.DuplicateError
		if errors.As(err, &dup) {
			return failConflict(c, "Duplicate incident report", map[string]any{
				"matched_id": dup.MatchedID,
				"similarity": dup.Similarity,
				"reason":     dup.Reason,
			})
		}
		if errors.Is(err, incident.ErrLocationNotFound) {
			return failValidation(c, map[string]string{"location_text": "could not be resolved to coordinates"})
		}
		s.logger.Error().Err(err).Msg("incident submission failed")
		return internalError(c, "Failed to save incident report")
	}

	return successWithStatus(c, http.StatusCreated, buildIncidentItem(saved))
}

func (s *Server) handleUpvoteIncident(c echo.Context) error {
	if s.incidents == nil {
		return internalError(c, "Incident reporting is not available")
	}

	incidentID := strings.TrimSpace(c.Param("incident_id"))
	if incidentID == "" {
		return failValidation(c, map[string]string{"incident_id": "is required"})
	}
	if !isUUID(incidentID) {
		return failValidation(c, map[string]string{"incident_id": "must be a UUID"})
	}

	upvotes, err := s.incidents.Upvote(c.Request().Context(), incidentID)
	if err != nil {
		if errors.Is(err, db.ErrNoRows) {
			return failNotFound(c, "Incident not found")
		}
		s.logger.Error().Err(err).Str("incident_id", incidentID).Msg("upvote incident failed")
		return internalError(c, "Failed to upvote incident")
	}

	return success(c, map[string]any{
		"incident_id": incidentID,
		"upvotes":     upvotes,
	})
}

func (s *Server) handleVerifyIncident(c echo.Context) error {
	if s.incidents == nil {
		return internalError(c, "Incident reporting is not available")
	}

	incidentID := strings.TrimSpace(c.Param("incident_id"))
	if incidentID == "" {
		return failValidation(c, map[string]string{"incident_id": "is required"})
	}
	if !isUUID(incidentID) {
		return failValidation(c, map[string]string{"incident_id": "must be a UUID"})
	}

	var req verifyIncidentRequest
	if err := decodeJSONBody(c, &req); err != nil {
		return failValidation(c, map[string]string{"body": err.Error()})
	}
	if req.Verified == nil {
		return failValidation(c, map[string]string{"verified": "is required"})
	}

	if err := s.incidents.Verify(c.Request().Context(), incidentID, *req.Verified); err != nil {
		if errors.Is(err, db.ErrNoRows) {
			return failNotFound(c, "Incident not found")
		}
		s.logger.Error().Err(err).Str("incident_id", incidentID).Msg("verify incident failed")
		return internalError(c, "Failed to update incident verification")
	}

	return success(c, map[string]any{
		"incident_id": incidentID,
		"verified":    *req.Verified,
	})
}
