package httpapi

import (
	"errors"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"groundwire/internal/db"
	"groundwire/internal/model"
)

const (
	defaultArticleWindowHours = 24
	maxArticleWindowHours     = 168
	defaultArticleLimit       = 50
	maxArticleLimit           = 200
	defaultSearchLimit        = 25
	maxSearchLimit            = 200
)

type articleItem struct {
	ArticleID   string     `json:"article_id"`
	Title       string     `json:"title"`
	Summary     string     `json:"summary,omitempty"`
	BodyText    string     `json:"body_text,omitempty"`
	SourceName  string     `json:"source_name"`
	SourceURL   string     `json:"source_url,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	TopicTags   []string   `json:"topic_tags,omitempty"`
	ContentHash string     `json:"content_hash"`
	Language    string     `json:"language,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func buildArticleItem(article model.Article, includeBody bool) articleItem {
	item := articleItem{
		ArticleID:   article.ID,
		Title:       article.Title,
		Summary:     article.Summary,
		SourceName:  article.SourceName,
		SourceURL:   article.SourceURL,
		TopicTags:   article.TopicTags,
		ContentHash: article.ContentHash,
		Language:    article.Language,
		CreatedAt:   article.CreatedAt.UTC(),
	}
	if !article.PublishedAt.IsZero() {
		published := article.PublishedAt.UTC()
		item.PublishedAt = &published
	}
	if includeBody {
		item.BodyText = article.Body
	}
	return item
}

func (s *Server) handleArticles(c echo.Context) error {
	if s.articles == nil {
		return internalError(c, "Articles are not available")
	}

	hours, err := parsePositiveInt(c.QueryParam("hours"), defaultArticleWindowHours, 1, maxArticleWindowHours)
	if err != nil {
		return failValidation(c, map[string]string{"hours": err.Error()})
	}
	limit, err := parsePositiveInt(c.QueryParam("limit"), defaultArticleLimit, 1, maxArticleLimit)
	if err != nil {
		return failValidation(c, map[string]string{"limit": err.Error()})
	}

	articles, err := s.articles.GetRecent(c.Request().Context(), hours)
	if err != nil {
		s.logger.Error().Err(err).Int("hours", hours).Msg("query recent articles failed")
		return internalError(c, "Failed to load articles")
	}
	if len(articles) > limit {
		articles = articles[:limit]
	}

	items := make([]articleItem, 0, len(articles))
	for _, article := range articles {
		items = append(items, buildArticleItem(article, false))
	}

	return success(c, map[string]any{
		"items":        items,
		"window_hours": hours,
		"count":        len(items),
	})
}

func (s *Server) handleArticleDetail(c echo.Context) error {
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

	article, err := s.articles.GetByID(c.Request().Context(), articleID)
	if err != nil {
		if errors.Is(err, db.ErrNoRows) {
			return failNotFound(c, "Article not found")
		}
		s.logger.Error().Err(err).Str("article_id", articleID).Msg("query article failed")
		return internalError(c, "Failed to load article")
	}

	return success(c, buildArticleItem(*article, true))
}

func (s *Server) handleSearch(c echo.Context) error {
	if s.articles == nil {
		return internalError(c, "Articles are not available")
	}

	query := strings.TrimSpace(c.QueryParam("q"))
	if query == "" {
		return failValidation(c, map[string]string{"q": "is required"})
	}
	limit, err := parsePositiveInt(c.QueryParam("limit"), defaultSearchLimit, 1, maxSearchLimit)
	if err != nil {
		return failValidation(c, map[string]string{"limit": err.Error()})
	}

	articles, err := s.articles.Search(c.Request().Context(), query, limit)
	if err != nil {
		s.logger.Error().Err(err).Str("query", query).Msg("article search failed")
		return internalError(c, "Failed to search articles")
	}

	items := make([]articleItem, 0, len(articles))
	for _, article := range articles {
		items = append(items, buildArticleItem(article, false))
	}

	return success(c, map[string]any{
		"items": items,
		"query": query,
		"limit": limit,
		"count": len(items),
	})
}
