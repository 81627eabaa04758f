package content

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gazette-cms/gazette/internal/shared"
)

type memRepo struct {
	mu       sync.Mutex
	nextID   int64
	articles map[int64]Article
	editions map[int64]Edition
}

func newMemRepo() *memRepo {
	return &memRepo{articles: map[int64]Article{}, editions: map[int64]Edition{}}
}

func (m *memRepo) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memRepo) ListArticles(_ context.Context, f ArticleFilters) ([]Article, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Article
	for _, a := range m.articles {
		if f.Search != "" && !strings.Contains(strings.ToLower(a.Title), strings.ToLower(f.Search)) {
			continue
		}
		if f.EditionID != 0 && (a.EditionID == nil || *a.EditionID != f.EditionID) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return pageOf(out, f.Page, f.Limit), len(out), nil
}

func (m *memRepo) GetArticle(_ context.Context, id int64) (Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.articles[id]
	if !ok {
		return Article{}, ErrArticleNotFound
	}
	return a, nil
}

func (m *memRepo) slugTaken(slug string, except int64) bool {
	for _, a := range m.articles {
		if a.Slug == slug && a.ID != except {
			return true
		}
	}
	return false
}

func (m *memRepo) CreateArticle(_ context.Context, a Article) (Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.slugTaken(a.Slug, 0) {
		return Article{}, ErrSlugTaken
	}
	a.ID = m.id()
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	m.articles[a.ID] = a
	return a, nil
}

func (m *memRepo) UpdateArticle(_ context.Context, a Article) (Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.articles[a.ID]; !ok {
		return Article{}, ErrArticleNotFound
	}
	if m.slugTaken(a.Slug, a.ID) {
		return Article{}, ErrSlugTaken
	}
	a.UpdatedAt = time.Now()
	m.articles[a.ID] = a
	return a, nil
}

func (m *memRepo) DeleteArticle(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.articles[id]; !ok {
		return ErrArticleNotFound
	}
	delete(m.articles, id)
	return nil
}

func (m *memRepo) ListEditions(_ context.Context, f ListFilters) ([]Edition, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Edition, 0, len(m.editions))
	for _, e := range m.editions {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssueNumber > out[j].IssueNumber })
	return pageOf(out, f.Page, f.Limit), len(out), nil
}

func (m *memRepo) GetEdition(_ context.Context, id int64) (Edition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.editions[id]
	if !ok {
		return Edition{}, ErrEditionNotFound
	}
	return e, nil
}

func (m *memRepo) issueTaken(n int, except int64) bool {
	for _, e := range m.editions {
		if e.IssueNumber == n && e.ID != except {
			return true
		}
	}
	return false
}

func (m *memRepo) CreateEdition(_ context.Context, e Edition) (Edition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.issueTaken(e.IssueNumber, 0) {
		return Edition{}, ErrIssueTaken
	}
	e.ID = m.id()
	e.CreatedAt = time.Now()
	e.UpdatedAt = e.CreatedAt
	m.editions[e.ID] = e
	return e, nil
}

func (m *memRepo) UpdateEdition(_ context.Context, e Edition) (Edition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.editions[e.ID]; !ok {
		return Edition{}, ErrEditionNotFound
	}
	if m.issueTaken(e.IssueNumber, e.ID) {
		return Edition{}, ErrIssueTaken
	}
	e.UpdatedAt = time.Now()
	m.editions[e.ID] = e
	return e, nil
}

func (m *memRepo) DeleteEdition(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.editions[id]; !ok {
		return ErrEditionNotFound
	}
	delete(m.editions, id)
	for aid, a := range m.articles {
		if a.EditionID != nil && *a.EditionID == id {
			a.EditionID = nil
			m.articles[aid] = a
		}
	}
	return nil
}

func pageOf[T any](items []T, page, limit int) []T {
	p := shared.PageRequest{Page: page, PerPage: limit}
	if p.Page <= 0 {
		p.Page = 1
	}
	if p.PerPage <= 0 {
		p.PerPage = 20
	}
	start := p.Offset()
	if start >= len(items) {
		return nil
	}
	end := start + p.PerPage
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

type auditSpy struct {
	mu      sync.Mutex
	entries []shared.AuditLog
}

func (a *auditSpy) Record(_ context.Context, log shared.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, log)
	return nil
}
