package content

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gazette-cms/gazette/internal/accounts"
	"github.com/gazette-cms/gazette/internal/rbac"
	"github.com/gazette-cms/gazette/internal/shared"
)

var editor = rbac.Principal{ID: 7, Role: accounts.RoleEditor}

func TestCreateArticleDerivesSlug(t *testing.T) {
	audit := &auditSpy{}
	svc := NewService(newMemRepo(), audit, nil)

	a, err := svc.CreateArticle(context.Background(), editor, ArticleInput{Title: "Hello, World! 2026"})
	require.NoError(t, err)
	require.Equal(t, "hello-world-2026", a.Slug)
	require.Equal(t, int64(7), a.AuthorID)

	require.Len(t, audit.entries, 1)
	require.Equal(t, shared.AuditActionCreate, audit.entries[0].Action)
	require.Equal(t, "article", audit.entries[0].Entity)

	_, err = svc.CreateArticle(context.Background(), editor, ArticleInput{Title: "Hello world 2026"})
	require.ErrorIs(t, err, ErrSlugTaken)
	require.True(t, errors.Is(err, shared.ErrConflict))

	_, err = svc.CreateArticle(context.Background(), editor, ArticleInput{Title: "!!!"})
	require.ErrorIs(t, err, ErrSlugRequired)
}

func TestArticleRequiresExistingEdition(t *testing.T) {
	svc := NewService(newMemRepo(), nil, nil)
	missing := int64(99)
	_, err := svc.CreateArticle(context.Background(), editor, ArticleInput{Title: "x", EditionID: &missing})
	require.ErrorIs(t, err, ErrEditionNotFound)
}

func TestDeleteEditionUnassignsArticles(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemRepo(), nil, nil)
	publisher := rbac.Principal{ID: 3, Role: accounts.RolePublisher}

	e, err := svc.CreateEdition(ctx, publisher, EditionInput{Title: "Issue 1", IssueNumber: 1})
	require.NoError(t, err)
	a, err := svc.CreateArticle(ctx, editor, ArticleInput{Title: "Lead", EditionID: &e.ID})
	require.NoError(t, err)

	_, err = svc.CreateEdition(ctx, publisher, EditionInput{Title: "Dup", IssueNumber: 1})
	require.ErrorIs(t, err, ErrIssueTaken)

	require.NoError(t, svc.DeleteEdition(ctx, publisher, e.ID))
	got, err := svc.GetArticle(ctx, a.ID)
	require.NoError(t, err)
	require.Nil(t, got.EditionID)

	require.ErrorIs(t, svc.DeleteEdition(ctx, publisher, e.ID), shared.ErrNotFound)
}

func TestUpdateArticle(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemRepo(), nil, nil)
	a, err := svc.CreateArticle(ctx, editor, ArticleInput{Title: "Draft"})
	require.NoError(t, err)

	got, err := svc.UpdateArticle(ctx, editor, a.ID, ArticleInput{Title: "Final", Slug: "final-cut", Body: "text"})
	require.NoError(t, err)
	require.Equal(t, "final-cut", got.Slug)
	require.Equal(t, "text", got.Body)

	_, err = svc.UpdateArticle(ctx, editor, 404, ArticleInput{Title: "x"})
	require.ErrorIs(t, err, ErrArticleNotFound)
}

func TestListArticlesPaginates(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemRepo(), nil, nil)
	for _, title := range []string{"alpha one", "alpha two", "beta"} {
		_, err := svc.CreateArticle(ctx, editor, ArticleInput{Title: title})
		require.NoError(t, err)
	}
	items, page, err := svc.ListArticles(ctx, ArticleFilters{Search: "alpha", Page: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, 2, page.Total)
	require.Equal(t, 2, page.TotalPages)
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Hello World":         "hello-world",
		"  --Trim me--  ":     "trim-me",
		"Café au lait":        "cafe-au-lait",
		"Über Alles":          "uber-alles",
		"Ñandú":               "nandu",
		"Smørrebrød":          "smrrebrd",
		"Issue #42: Releases": "issue-42-releases",
		"":                    "",
	}
	for in, want := range cases {
		require.Equal(t, want, Slugify(in), in)
	}
	require.True(t, isSlug("already-a-slug"))
	require.False(t, isSlug("Not A Slug"))
	require.False(t, isSlug("trailing-"))
}
