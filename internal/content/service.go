package content

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/gazette-cms/gazette/internal/rbac"
	"github.com/gazette-cms/gazette/internal/shared"
)

// AuditRecorder persists audit entries. *shared.AuditLogger satisfies it.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service implements article and edition management. Callers are expected
// to have passed the route gate; the service records who acted.
type Service struct {
	repo   Repository
	audit  AuditRecorder
	logger *slog.Logger
}

// NewService constructs a Service. audit may be nil.
func NewService(repo Repository, audit AuditRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{repo: repo, audit: audit, logger: logger}
}

// ListArticles returns a page of articles and pagination metadata.
func (s *Service) ListArticles(ctx context.Context, filters ArticleFilters) ([]Article, shared.Pagination, error) {
	articles, total, err := s.repo.ListArticles(ctx, filters)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return articles, shared.NewPagination(filters.Page, filters.Limit, total), nil
}

// GetArticle returns one article.
func (s *Service) GetArticle(ctx context.Context, id int64) (Article, error) {
	return s.repo.GetArticle(ctx, id)
}

// CreateArticle stores a new article authored by actor. An empty slug is
// derived from the title.
func (s *Service) CreateArticle(ctx context.Context, actor rbac.Principal, in ArticleInput) (Article, error) {
	slug, err := slugOrTitle(in.Slug, in.Title)
	if err != nil {
		return Article{}, err
	}
	if err := s.checkEdition(ctx, in.EditionID); err != nil {
		return Article{}, err
	}
	a, err := s.repo.CreateArticle(ctx, Article{
		EditionID: in.EditionID,
		Title:     in.Title,
		Slug:      slug,
		Body:      in.Body,
		AuthorID:  actor.ID,
	})
	if err != nil {
		return Article{}, err
	}
	s.record(ctx, actor, shared.AuditActionCreate, "article", a.ID)
	return a, nil
}

// UpdateArticle replaces the writable fields of article id.
func (s *Service) UpdateArticle(ctx context.Context, actor rbac.Principal, id int64, in ArticleInput) (Article, error) {
	slug, err := slugOrTitle(in.Slug, in.Title)
	if err != nil {
		return Article{}, err
	}
	current, err := s.repo.GetArticle(ctx, id)
	if err != nil {
		return Article{}, err
	}
	if err := s.checkEdition(ctx, in.EditionID); err != nil {
		return Article{}, err
	}
	current.EditionID = in.EditionID
	current.Title = in.Title
	current.Slug = slug
	current.Body = in.Body
	a, err := s.repo.UpdateArticle(ctx, current)
	if err != nil {
		return Article{}, err
	}
	s.record(ctx, actor, shared.AuditActionUpdate, "article", id)
	return a, nil
}

// DeleteArticle removes article id.
func (s *Service) DeleteArticle(ctx context.Context, actor rbac.Principal, id int64) error {
	if err := s.repo.DeleteArticle(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actor, shared.AuditActionDelete, "article", id)
	return nil
}

// ListEditions returns a page of editions, newest issue first.
func (s *Service) ListEditions(ctx context.Context, filters ListFilters) ([]Edition, shared.Pagination, error) {
	editions, total, err := s.repo.ListEditions(ctx, filters)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return editions, shared.NewPagination(filters.Page, filters.Limit, total), nil
}

// GetEdition returns one edition.
func (s *Service) GetEdition(ctx context.Context, id int64) (Edition, error) {
	return s.repo.GetEdition(ctx, id)
}

// CreateEdition stores a new edition created by actor.
func (s *Service) CreateEdition(ctx context.Context, actor rbac.Principal, in EditionInput) (Edition, error) {
	e, err := s.repo.CreateEdition(ctx, Edition{
		Title:       in.Title,
		IssueNumber: in.IssueNumber,
		Summary:     in.Summary,
		ScheduledAt: in.ScheduledAt,
		CreatedBy:   actor.ID,
	})
	if err != nil {
		return Edition{}, err
	}
	s.record(ctx, actor, shared.AuditActionCreate, "edition", e.ID)
	return e, nil
}

// UpdateEdition replaces the writable fields of edition id.
func (s *Service) UpdateEdition(ctx context.Context, actor rbac.Principal, id int64, in EditionInput) (Edition, error) {
	current, err := s.repo.GetEdition(ctx, id)
	if err != nil {
		return Edition{}, err
	}
	current.Title = in.Title
	current.IssueNumber = in.IssueNumber
	current.Summary = in.Summary
	current.ScheduledAt = in.ScheduledAt
	e, err := s.repo.UpdateEdition(ctx, current)
	if err != nil {
		return Edition{}, err
	}
	s.record(ctx, actor, shared.AuditActionUpdate, "edition", id)
	return e, nil
}

// DeleteEdition removes edition id; its articles become unassigned.
func (s *Service) DeleteEdition(ctx context.Context, actor rbac.Principal, id int64) error {
	if err := s.repo.DeleteEdition(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actor, shared.AuditActionDelete, "edition", id)
	return nil
}

func (s *Service) checkEdition(ctx context.Context, id *int64) error {
	if id == nil {
		return nil
	}
	_, err := s.repo.GetEdition(ctx, *id)
	return err
}

func (s *Service) record(ctx context.Context, actor rbac.Principal, action, entity string, id int64) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   entity,
		EntityID: strconv.FormatInt(id, 10),
		Meta:     map[string]any{"role": actor.Role},
	})
	if err != nil {
		s.logger.Warn("audit record failed", slog.String("entity", entity), slog.Any("error", err))
	}
}

func slugOrTitle(slug, title string) (string, error) {
	if slug == "" {
		slug = Slugify(title)
	}
	if slug == "" {
		return "", ErrSlugRequired
	}
	return slug, nil
}
