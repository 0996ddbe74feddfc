package httpapi

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/labstack/echo/v4"

	"groundwire/internal/db"
	"groundwire/internal/reader"
)

const (
	defaultPreviewMaxChars = 1000
	minPreviewMaxChars     = 200
	maxPreviewMaxChars     = 4000
)

type articlePreview struct {
	ArticleID    string  `json:"article_id"`
	PreviewText  string  `json:"preview_text"`
	Source       string  `json:"source"`
	CharCount    int     `json:"char_count"`
	Truncated    bool    `json:"truncated"`
	PreviewError *string `json:"preview_error,omitempty"`
}

func (s *Server) handleArticlePreview(c echo.Context) error {
	if s.articles == nil {
		return internalError(c, "Articles are not available")
	}

	articleID := strings.TrimSpace(c.Param("article_id"))
	if articleID == "" {
		return failValidation(c, map[string]string{"article_id": "is required"})
	}
	if !isUUID(articleID) {
		return failValidation(c, map[string]string{"article_id": "must be a UUID"})
	}

	maxChars, err := parsePositiveInt(
		c.QueryParam("max_chars"),
		defaultPreviewMaxChars,
		minPreviewMaxChars,
		maxPreviewMaxChars,
	)
	if err != nil {
		return failValidation(c, map[string]string{"max_chars": err.Error()})
	}

	article, err := s.articles.GetByID(c.Request().Context(), articleID)
	if err != nil {
		if errors.Is(err, db.ErrNoRows) {
			return failNotFound(c, "Article not found")
		}
		s.logger.Error().Err(err).Str("article_id", articleID).Msg("query article for preview failed")
		return internalError(c, "Failed to load article preview")
	}

	previewRaw, source, previewErr := reader.PreviewFor(c.Request().Context(), *article, reader.FetchOptions{})
	previewText, truncated := reader.TruncateText(previewRaw, maxChars)

	resp := articlePreview{
		ArticleID:   article.ID,
		PreviewText: previewText,
		Source:      source,
		CharCount:   utf8.RuneCountInString(previewText),
		Truncated:   truncated,
	}
	if previewErr != nil {
		msg := previewErr.Error()
		resp.PreviewError = &msg
		s.logger.Warn().
			Err(previewErr).
			Str("article_id", article.ID).
			Str("source", source).
			Msg("reader preview fallback used")
	}

	return success(c, resp)
}
