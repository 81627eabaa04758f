package content

import (
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/gazette-cms/gazette/internal/platform/httpx"
)

const maxSlugLength = 120

// ArticleInput is the writable part of an article.
type ArticleInput struct {
	Title     string `json:"title" validate:"required,max=200"`
	Slug      string `json:"slug" validate:"omitempty,max=120,slug"`
	Body      string `json:"body" validate:"max=200000"`
	EditionID *int64 `json:"edition_id" validate:"omitempty,gt=0"`
}

// EditionInput is the writable part of an edition.
type EditionInput struct {
	Title       string     `json:"title" validate:"required,max=200"`
	IssueNumber int        `json:"issue_number" validate:"required,gt=0"`
	Summary     string     `json:"summary" validate:"max=2000"`
	ScheduledAt *time.Time `json:"scheduled_at"`
}

// Slugify folds accents, lower-cases s and joins its letter and digit runs
// with dashes. Letters without an ASCII base form are dropped.
func Slugify(s string) string {
	folded, _, err := transform.String(foldAccents(), s)
	if err != nil {
		folded = s
	}
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if len(out) > maxSlugLength {
		out = strings.TrimSuffix(out[:maxSlugLength], "-")
	}
	return out
}

// foldAccents strips combining marks after canonical decomposition. A
// transformer holds state, so each call builds a fresh chain.
func foldAccents() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

func isSlug(s string) bool {
	return s != "" && Slugify(s) == s
}

func newValidator() *validator.Validate {
	v := httpx.NewValidator()
	_ = v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return isSlug(fl.Field().String())
	})
	return v
}
