// Package content provides role-gated CRUD over articles and editions.
package content

import (
	"time"

	"github.com/gazette-cms/gazette/internal/shared"
)

// Article is a piece of newsletter content, optionally placed in an edition.
type Article struct {
	ID        int64     `json:"id"`
	EditionID *int64    `json:"edition_id,omitempty"`
	Title     string    `json:"title"`
	Slug      string    `json:"slug"`
	Body      string    `json:"body"`
	AuthorID  int64     `json:"author_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Edition is one numbered issue of the newsletter.
type Edition struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	IssueNumber int        `json:"issue_number"`
	Summary     string     `json:"summary"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
	CreatedBy   int64      `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ArticleFilters narrows article listings.
type ArticleFilters struct {
	Search    string
	EditionID int64
	Page      int
	Limit     int
}

// ListFilters pages edition listings.
type ListFilters struct {
	Page  int
	Limit int
}

var (
	// ErrArticleNotFound is returned for unknown article ids.
	ErrArticleNotFound = shared.NewKindError(shared.ErrNotFound, "article not found")
	// ErrEditionNotFound is returned for unknown edition ids.
	ErrEditionNotFound = shared.NewKindError(shared.ErrNotFound, "edition not found")
	// ErrSlugTaken indicates another article already uses the slug.
	ErrSlugTaken = shared.NewKindError(shared.ErrConflict, "slug already in use")
	// ErrSlugRequired indicates no slug was given and none could be derived.
	ErrSlugRequired = shared.NewKindError(shared.ErrInvalidInput, "slug required")
	// ErrIssueTaken indicates another edition already uses the issue number.
	ErrIssueTaken = shared.NewKindError(shared.ErrConflict, "issue number already in use")
)
