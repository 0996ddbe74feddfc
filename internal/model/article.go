package model

import "time"

// SignatureLength is the fixed MinHash signature width. Persisted signatures
// with any other length are treated as corrupt and excluded from similarity
// comparison.
const SignatureLength = 128

// RawItem is one fetched item as a source adapter returns it. Raw items live
// for a single refresh cycle and are never persisted directly.
type RawItem struct {
	Title       string    `json:"title"`
	Summary     string    `json:"summary,omitempty"`
	Body        string    `json:"body,omitempty"`
	SourceName  string    `json:"source_name"`
	SourceURL   string    `json:"source_url,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	TopicTags   []string  `json:"topic_tags,omitempty"`
}

// Article is a raw item that survived deduplication. The id is opaque and
// source-independent; ContentHash is a pure function of the normalized text,
// so two articles with identical normalized text share a hash regardless of
// source. Articles are immutable after creation and removed only by age-based
// retention cleanup.
type Article struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Summary     string    `json:"summary,omitempty"`
	Body        string    `json:"body,omitempty"`
	SourceName  string    `json:"source_name"`
	SourceURL   string    `json:"source_url,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	TopicTags   []string  `json:"topic_tags,omitempty"`
	ContentHash string    `json:"content_hash"`
	Signature   []uint32  `json:"signature,omitempty"`
	Language    string    `json:"language,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// HasValidSignature reports whether the article's signature matches the fixed
// width expected by the similarity pipeline.
func (a Article) HasValidSignature() bool {
	return len(a.Signature) == SignatureLength
}
