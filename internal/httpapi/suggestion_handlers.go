package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"groundwire/internal/globaltime"
	"groundwire/internal/model"
)

const (
	defaultSuggestionLimit = 50
	maxSuggestionLimit     = 500
)

type submitSuggestionRequest struct {
	Platform string `json:"platform"`
	Handle   string `json:"handle"`
	Note     string `json:"note"`
}

type suggestionItem struct {
	SuggestionID string    `json:"suggestion_id"`
	Platform     string    `json:"platform"`
	Handle       string    `json:"handle"`
	Note         string    `json:"note,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func buildSuggestionItem(suggestion model.Suggestion) suggestionItem {
	return suggestionItem{
		SuggestionID: suggestion.ID,
		Platform:     suggestion.Platform,
		Handle:       suggestion.Handle,
		Note:         suggestion.Note,
		CreatedAt:    suggestion.CreatedAt.UTC(),
	}
}

func (s *Server) handleSubmitSuggestion(c echo.Context) error {
	if s.suggestions == nil {
		return internalError(c, "Suggestions are not available")
	}

	var req submitSuggestionRequest
	if err := decodeJSONBody(c, &req); err != nil {
		return failValidation(c, map[string]string{"body": err.Error()})
	}

	fieldErrors := map[string]string{}
	if strings.TrimSpace(req.Platform) == "" {
		fieldErrors["platform"] = "is required"
	}
	if strings.TrimSpace(req.Handle) == "" {
		fieldErrors["handle"] = "is required"
	}
	if len(fieldErrors) > 0 {
		return failValidation(c, fieldErrors)
	}

	suggestion := model.Suggestion{
		ID:        uuid.NewString(),
		Platform:  strings.TrimSpace(req.Platform),
		Handle:    strings.TrimSpace(req.Handle),
		Note:      strings.TrimSpace(req.Note),
		CreatedAt: globaltime.UTC(),
	}

	if err := s.suggestions.Save(c.Request().Context(), suggestion); err != nil {
		s.logger.Error().Err(err).Str("platform", suggestion.Platform).Msg("save suggestion failed")
		return internalError(c, "Failed to save suggestion")
	}

	s.logger.Info().
		Str("suggestion_id", suggestion.ID).
		Str("platform", suggestion.Platform).
		Msg("channel suggestion recorded")

	return successWithStatus(c, http.StatusCreated, buildSuggestionItem(suggestion))
}

func (s *Server) handleListSuggestions(c echo.Context) error {
	if s.suggestions == nil {
		return internalError(c, "Suggestions are not available")
	}

	limit, err := parsePositiveInt(c.QueryParam("limit"), defaultSuggestionLimit, 1, maxSuggestionLimit)
	if err != nil {
		return failValidation(c, map[string]string{"limit": err.Error()})
	}

	suggestions, err := s.suggestions.List(c.Request().Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("list suggestions failed")
		return internalError(c, "Failed to load suggestions")
	}

	items := make([]suggestionItem, 0, len(suggestions))
	for _, suggestion := range suggestions {
		items = append(items, buildSuggestionItem(suggestion))
	}

	return success(c, map[string]any{
		"items": items,
		"count": len(items),
	})
}
