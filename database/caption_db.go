package database

import (
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/camden-git/captionsys/models"
)

const (
	DefaultSearchLimit = 50
	MaxSearchLimit     = 500
)

// Caption search orders
const (
	SortDateDesc    = "date_desc"
	SortDateAsc     = "date_asc"
	SortFilenameAsc = "filename_asc"
	SortFilenameNat = "filename_nat"
)

const DefaultSortOrder = SortDateDesc

// orderClauses maps a sort order to its ORDER BY terms; id breaks ties so paging is stable
var orderClauses = map[string][]string{
	SortDateDesc:    {"uploaded_at DESC", "id DESC"},
	SortDateAsc:     {"uploaded_at ASC", "id ASC"},
	SortFilenameAsc: {"original_filename ASC", "id ASC"},
	SortFilenameNat: {"original_filename ASC", "id ASC"},
}

func IsValidSortOrder(order string) bool {
	_, ok := orderClauses[order]
	return ok
}

// CaptionFilter narrows a caption search. Zero values mean "no filter".
type CaptionFilter struct {
	Query    string
	From     *time.Time // inclusive
	To       *time.Time // exclusive
	Language models.Language
	Sort     string
	Limit    int
}

var captionColumns = []string{
	"id", "image", "original_filename",
	"caption_en", "caption_es", "caption_fr", "caption_de", "caption_hi", "caption_zh",
	"uploaded_at", "file_size", "image_width", "image_height",
	"checksum", "content_type", "camera_make", "camera_model", "taken_at", "caption_source",
}

// escapeLike escapes the LIKE wildcards in user input; used together with ESCAPE '\'
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// BuildCaptionSearchQuery builds the SELECT for a caption search.
// Natural filename order cannot be expressed in SQLite, so for SortFilenameNat rows come
// back ordered by filename and the caller is expected to re-sort them.
func BuildCaptionSearchQuery(filter CaptionFilter) (string, []interface{}, error) {
	builder := psql.Select(captionColumns...).From(models.CaptionedImage{}.TableName())

	if q := strings.TrimSpace(filter.Query); q != "" {
		pattern := "%" + escapeLike(q) + "%"
		builder = builder.Where(sq.Or{
			sq.Expr(`original_filename LIKE ? ESCAPE '\'`, pattern),
			sq.Expr(`caption_en LIKE ? ESCAPE '\'`, pattern),
		})
	}
	if filter.From != nil {
		builder = builder.Where(sq.GtOrEq{"uploaded_at": filter.From.UTC()})
	}
	if filter.To != nil {
		builder = builder.Where(sq.Lt{"uploaded_at": filter.To.UTC()})
	}
	if filter.Language != "" && filter.Language != models.LanguageEnglish {
		if !filter.Language.IsSupported() {
			return "", nil, fmt.Errorf("unsupported language filter %q", filter.Language)
		}
		builder = builder.Where(sq.NotEq{"caption_" + string(filter.Language): nil})
	}

	sortOrder := filter.Sort
	if sortOrder == "" {
		sortOrder = DefaultSortOrder
	}
	clauses, ok := orderClauses[sortOrder]
	if !ok {
		return "", nil, fmt.Errorf("invalid sort order %q", filter.Sort)
	}
	builder = builder.OrderBy(clauses...)

	// natural order is applied after the fetch, so the cap is applied by the caller
	if sortOrder != SortFilenameNat {
		builder = builder.Limit(uint64(ClampSearchLimit(filter.Limit)))
	}

	sqlStr, args, err := builder.ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("failed to build caption search query: %w", err)
	}
	return sqlStr, args, nil
}

// ClampSearchLimit returns the effective limit applied to a search.
func ClampSearchLimit(limit int) int {
	if limit <= 0 {
		return DefaultSearchLimit
	}
	if limit > MaxSearchLimit {
		return MaxSearchLimit
	}
	return limit
}
