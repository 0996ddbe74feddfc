package db

import (
	"encoding/json"
	"time"
)

// ArticleRow maps wire.articles.
type ArticleRow struct {
	ArticleID   int64           `gorm:"column:article_id;primaryKey;autoIncrement"`
	ArticleUUID string          `gorm:"column:article_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	Title       string          `gorm:"column:title;type:text;not null"`
	Summary     string          `gorm:"column:summary;type:text;not null;default:''"`
	BodyText    string          `gorm:"column:body_text;type:text;not null;default:''"`
	SourceName  string          `gorm:"column:source_name;type:text;not null"`
	SourceURL   string          `gorm:"column:source_url;type:text;not null;default:''"`
	PublishedAt *time.Time      `gorm:"column:published_at;type:timestamptz"`
	TopicTags   json.RawMessage `gorm:"column:topic_tags;type:jsonb"`
	ContentHash string          `gorm:"column:content_hash;type:text;not null;unique"`
	Signature   json.RawMessage `gorm:"column:signature;type:jsonb;not null"`
	Language    string          `gorm:"column:language;type:text;not null;default:''"`
	CreatedAt   time.Time       `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (ArticleRow) TableName() string { return "wire.articles" }

// IncidentRow maps wire.incidents.
type IncidentRow struct {
	IncidentID        int64           `gorm:"column:incident_id;primaryKey;autoIncrement"`
	IncidentUUID      string          `gorm:"column:incident_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	IncidentType      string          `gorm:"column:incident_type;type:text;not null"`
	Title             string          `gorm:"column:title;type:text;not null"`
	Description       string          `gorm:"column:description;type:text;not null;default:''"`
	Lat               float64         `gorm:"column:lat;type:double precision;not null"`
	Lon               float64         `gorm:"column:lon;type:double precision;not null"`
	Address           string          `gorm:"column:address;type:text;not null;default:''"`
	OccurredAt        time.Time       `gorm:"column:occurred_at;type:timestamptz;not null"`
	Confidence        int             `gorm:"column:confidence;type:integer;not null;default:0"`
	Keywords          json.RawMessage `gorm:"column:keywords;type:jsonb"`
	SourceArticleUUID *string         `gorm:"column:source_article_uuid;type:uuid"`
	Verified          bool            `gorm:"column:verified;type:boolean;not null;default:false"`
	ReportedBy        string          `gorm:"column:reported_by;type:text;not null"`
	Upvotes           int             `gorm:"column:upvotes;type:integer;not null;default:0"`
	CreatedAt         time.Time       `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (IncidentRow) TableName() string { return "wire.incidents" }

// SuggestionRow maps wire.suggestions.
type SuggestionRow struct {
	SuggestionID   int64     `gorm:"column:suggestion_id;primaryKey;autoIncrement"`
	SuggestionUUID string    `gorm:"column:suggestion_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	Platform       string    `gorm:"column:platform;type:text;not null"`
	Handle         string    `gorm:"column:handle;type:text;not null"`
	Note           string    `gorm:"column:note;type:text;not null;default:''"`
	CreatedAt      time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (SuggestionRow) TableName() string { return "wire.suggestions" }

// RefreshRunRow maps wire.refresh_runs.
type RefreshRunRow struct {
	RunID              int64      `gorm:"column:run_id;primaryKey;autoIncrement"`
	RefreshRunUUID     string     `gorm:"column:refresh_run_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	Status             string     `gorm:"column:status;type:wire.refresh_run_status;not null;default:running"`
	StartedAt          time.Time  `gorm:"column:started_at;type:timestamptz;not null;default:now()"`
	FinishedAt         *time.Time `gorm:"column:finished_at;type:timestamptz"`
	ArticlesAdded      int        `gorm:"column:articles_added;type:integer;not null;default:0"`
	ArticlesTotal      int        `gorm:"column:articles_total;type:integer;not null;default:0"`
	IncidentsExtracted int        `gorm:"column:incidents_extracted;type:integer;not null;default:0"`
	SourcesFailed      int        `gorm:"column:sources_failed;type:integer;not null;default:0"`
	ErrorMessage       *string    `gorm:"column:error_message;type:text"`
	CreatedAt          time.Time  `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt          time.Time  `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (RefreshRunRow) TableName() string { return "wire.refresh_runs" }

func autoMigrateModels() []any {
	return []any{
		&ArticleRow{},
		&IncidentRow{},
		&SuggestionRow{},
		&RefreshRunRow{},
	}
}
