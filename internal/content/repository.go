package content

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/gazette-cms/gazette/internal/platform/db"
)

const (
	articleSlugConstraint  = "articles_slug_key"
	editionIssueConstraint = "editions_issue_number_key"
	editionFKConstraint    = "articles_edition_id_fkey"
	foreignKeyViolation    = "23503"
)

// Repository persists articles and editions.
type Repository interface {
	ListArticles(ctx context.Context, filters ArticleFilters) ([]Article, int, error)
	GetArticle(ctx context.Context, id int64) (Article, error)
	CreateArticle(ctx context.Context, a Article) (Article, error)
	UpdateArticle(ctx context.Context, a Article) (Article, error)
	DeleteArticle(ctx context.Context, id int64) error

	ListEditions(ctx context.Context, filters ListFilters) ([]Edition, int, error)
	GetEdition(ctx context.Context, id int64) (Edition, error)
	CreateEdition(ctx context.Context, e Edition) (Edition, error)
	UpdateEdition(ctx context.Context, e Edition) (Edition, error)
	DeleteEdition(ctx context.Context, id int64) error
}

// Querier is the subset of pgxpool.Pool the repository needs.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type repository struct {
	db  Querier
	now func() time.Time
}

// NewRepository constructs a PostgreSQL backed Repository.
func NewRepository(q Querier) Repository {
	return &repository{db: q, now: time.Now}
}

const articleColumns = `id, edition_id, title, slug, body, author_id, created_at, updated_at`

func (r *repository) ListArticles(ctx context.Context, filters ArticleFilters) ([]Article, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	if filters.Search != "" {
		args = append(args, "%"+filters.Search+"%")
		where += ` AND title ILIKE $` + strconv.Itoa(len(args))
	}
	if filters.EditionID > 0 {
		args = append(args, filters.EditionID)
		where += ` AND edition_id = $` + strconv.Itoa(len(args))
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM articles`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + articleColumns + ` FROM articles` + where + ` ORDER BY created_at DESC, id DESC`
	query, args = paginate(query, args, filters.Page, filters.Limit)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var articles []Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, 0, err
		}
		articles = append(articles, a)
	}
	return articles, total, rows.Err()
}

func (r *repository) GetArticle(ctx context.Context, id int64) (Article, error) {
	a, err := scanArticle(r.db.QueryRow(ctx, `SELECT `+articleColumns+` FROM articles WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Article{}, ErrArticleNotFound
	}
	return a, err
}

func (r *repository) CreateArticle(ctx context.Context, a Article) (Article, error) {
	now := r.now().UTC()
	err := r.db.QueryRow(ctx, `INSERT INTO articles (edition_id, title, slug, body, author_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6) RETURNING id`,
		a.EditionID, a.Title, a.Slug, a.Body, a.AuthorID, now).Scan(&a.ID)
	if err != nil {
		return Article{}, articleWriteError(err)
	}
	a.CreatedAt, a.UpdatedAt = now, now
	return a, nil
}

func (r *repository) UpdateArticle(ctx context.Context, a Article) (Article, error) {
	now := r.now().UTC()
	tag, err := r.db.Exec(ctx, `UPDATE articles SET edition_id = $1, title = $2, slug = $3, body = $4, updated_at = $5 WHERE id = $6`,
		a.EditionID, a.Title, a.Slug, a.Body, now, a.ID)
	if err != nil {
		return Article{}, articleWriteError(err)
	}
	if tag.RowsAffected() == 0 {
		return Article{}, ErrArticleNotFound
	}
	a.UpdatedAt = now
	return a, nil
}

func (r *repository) DeleteArticle(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM articles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrArticleNotFound
	}
	return nil
}

const editionColumns = `id, title, issue_number, summary, scheduled_at, created_by, created_at, updated_at`

func (r *repository) ListEditions(ctx context.Context, filters ListFilters) ([]Edition, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM editions`).Scan(&total); err != nil {
		return nil, 0, err
	}
	query, args := paginate(`SELECT `+editionColumns+` FROM editions ORDER BY issue_number DESC`, nil, filters.Page, filters.Limit)
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var editions []Edition
	for rows.Next() {
		e, err := scanEdition(rows)
		if err != nil {
			return nil, 0, err
		}
		editions = append(editions, e)
	}
	return editions, total, rows.Err()
}

func (r *repository) GetEdition(ctx context.Context, id int64) (Edition, error) {
	e, err := scanEdition(r.db.QueryRow(ctx, `SELECT `+editionColumns+` FROM editions WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Edition{}, ErrEditionNotFound
	}
	return e, err
}

func (r *repository) CreateEdition(ctx context.Context, e Edition) (Edition, error) {
	now := r.now().UTC()
	err := r.db.QueryRow(ctx, `INSERT INTO editions (title, issue_number, summary, scheduled_at, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6) RETURNING id`,
		e.Title, e.IssueNumber, e.Summary, e.ScheduledAt, e.CreatedBy, now).Scan(&e.ID)
	if err != nil {
		return Edition{}, editionWriteError(err)
	}
	e.CreatedAt, e.UpdatedAt = now, now
	return e, nil
}

func (r *repository) UpdateEdition(ctx context.Context, e Edition) (Edition, error) {
	now := r.now().UTC()
	tag, err := r.db.Exec(ctx, `UPDATE editions SET title = $1, issue_number = $2, summary = $3, scheduled_at = $4, updated_at = $5 WHERE id = $6`,
		e.Title, e.IssueNumber, e.Summary, e.ScheduledAt, now, e.ID)
	if err != nil {
		return Edition{}, editionWriteError(err)
	}
	if tag.RowsAffected() == 0 {
		return Edition{}, ErrEditionNotFound
	}
	e.UpdatedAt = now
	return e, nil
}

func (r *repository) DeleteEdition(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM editions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrEditionNotFound
	}
	return nil
}

func paginate(query string, args []any, page, limit int) (string, []any) {
	if limit <= 0 {
		return query, args
	}
	if page <= 0 {
		page = 1
	}
	args = append(args, limit, (page-1)*limit)
	return query + ` LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args)), args
}

func scanArticle(row pgx.Row) (Article, error) {
	var a Article
	err := row.Scan(&a.ID, &a.EditionID, &a.Title, &a.Slug, &a.Body, &a.AuthorID, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func scanEdition(row pgx.Row) (Edition, error) {
	var e Edition
	err := row.Scan(&e.ID, &e.Title, &e.IssueNumber, &e.Summary, &e.ScheduledAt, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

func articleWriteError(err error) error {
	if db.IsUniqueViolation(err, articleSlugConstraint) {
		return ErrSlugTaken
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation && pgErr.ConstraintName == editionFKConstraint {
		return ErrEditionNotFound
	}
	return err
}

func editionWriteError(err error) error {
	if db.IsUniqueViolation(err, editionIssueConstraint) {
		return ErrIssueTaken
	}
	return err
}
