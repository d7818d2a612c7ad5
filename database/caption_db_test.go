package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camden-git/captionsys/models"
)

func TestBuildCaptionSearchQuery_Defaults(t *testing.T) {
	sqlStr, args, err := BuildCaptionSearchQuery(CaptionFilter{})
	require.NoError(t, err)

	assert.Contains(t, sqlStr, "FROM captioned_images")
	assert.Contains(t, sqlStr, "ORDER BY uploaded_at DESC, id DESC")
	assert.Contains(t, sqlStr, "LIMIT 50")
	assert.NotContains(t, sqlStr, "WHERE")
	assert.Empty(t, args)
}

func TestBuildCaptionSearchQuery_Filters(t *testing.T) {
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)

	sqlStr, args, err := BuildCaptionSearchQuery(CaptionFilter{
		Query:    "50%_off",
		From:     &from,
		To:       &to,
		Language: models.LanguageFrench,
		Sort:     SortDateAsc,
		Limit:    10000,
	})
	require.NoError(t, err)

	assert.Contains(t, sqlStr, "original_filename LIKE ?")
	assert.Contains(t, sqlStr, "caption_en LIKE ?")
	assert.Contains(t, sqlStr, "uploaded_at >= ?")
	assert.Contains(t, sqlStr, "uploaded_at < ?")
	assert.Contains(t, sqlStr, "caption_fr IS NOT NULL")
	assert.Contains(t, sqlStr, "ORDER BY uploaded_at ASC, id ASC")
	assert.Contains(t, sqlStr, "LIMIT 500")

	require.Len(t, args, 4)
	assert.Equal(t, `%50\%\_off%`, args[0])
	assert.Equal(t, `%50\%\_off%`, args[1])
	assert.Equal(t, from, args[2])
	assert.Equal(t, to, args[3])
}

func TestBuildCaptionSearchQuery_NaturalSortHasNoLimit(t *testing.T) {
	sqlStr, _, err := BuildCaptionSearchQuery(CaptionFilter{Sort: SortFilenameNat, Limit: 5})
	require.NoError(t, err)
	assert.Contains(t, sqlStr, "ORDER BY original_filename ASC")
	assert.NotContains(t, sqlStr, "LIMIT")
}

func TestBuildCaptionSearchQuery_EnglishLanguageIsNotAFilter(t *testing.T) {
	sqlStr, _, err := BuildCaptionSearchQuery(CaptionFilter{Language: models.LanguageEnglish})
	require.NoError(t, err)
	assert.NotContains(t, sqlStr, "IS NOT NULL")
}

func TestBuildCaptionSearchQuery_Rejects(t *testing.T) {
	_, _, err := BuildCaptionSearchQuery(CaptionFilter{Sort: "random"})
	assert.Error(t, err)

	_, _, err = BuildCaptionSearchQuery(CaptionFilter{Language: "xx"})
	assert.Error(t, err)
}

func TestClampSearchLimit(t *testing.T) {
	assert.Equal(t, DefaultSearchLimit, ClampSearchLimit(0))
	assert.Equal(t, DefaultSearchLimit, ClampSearchLimit(-3))
	assert.Equal(t, 7, ClampSearchLimit(7))
	assert.Equal(t, MaxSearchLimit, ClampSearchLimit(MaxSearchLimit+1))
}

func TestIsValidSortOrder(t *testing.T) {
	for _, order := range []string{SortDateDesc, SortDateAsc, SortFilenameAsc, SortFilenameNat} {
		assert.True(t, IsValidSortOrder(order), order)
	}
	assert.False(t, IsValidSortOrder("size_desc"))
}
