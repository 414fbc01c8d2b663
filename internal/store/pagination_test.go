package store

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
)

func TestParsePageQueryDefaults(t *testing.T) {
	q := ParsePageQuery(url.Values{})

	assert.Equal(t, 0, q.Page)
	assert.Equal(t, 10, q.Size)
	assert.Equal(t, "id", q.SortBy)
	assert.Equal(t, "asc", q.Direction)
	assert.False(t, q.All)
}

func TestParsePageQueryValues(t *testing.T) {
	q := ParsePageQuery(url.Values{
		"page":      {"3"},
		"size":      {"25"},
		"sortBy":    {"name"},
		"direction": {"desc"},
		"all":       {"true"},
	})

	assert.Equal(t, 3, q.Page)
	assert.Equal(t, 25, q.Size)
	assert.Equal(t, "name", q.SortBy)
	assert.Equal(t, "desc", q.Direction)
	assert.True(t, q.All)
}

func TestParsePageQueryIgnoresInvalidNumbers(t *testing.T) {
	q := ParsePageQuery(url.Values{
		"page": {"-1"},
		"size": {"zero"},
		"all":  {"maybe"},
	})

	assert.Equal(t, 0, q.Page)
	assert.Equal(t, 10, q.Size)
	assert.False(t, q.All)
}

func TestPageQueryOffset(t *testing.T) {
	q := PageQuery{Page: 4, Size: 10}
	assert.Equal(t, int64(40), q.Offset())
}

func TestPageQuerySortMapsIDToUnderscore(t *testing.T) {
	q := PageQuery{SortBy: "id", Direction: "asc"}
	assert.Equal(t, bson.D{{Key: "_id", Value: 1}}, q.Sort())

	q = PageQuery{SortBy: "name", Direction: "DESC"}
	assert.Equal(t, bson.D{{Key: "name", Value: -1}}, q.Sort())
}

func TestNewPageTotals(t *testing.T) {
	page := NewPage([]Role{{ID: 1}, {ID: 2}}, PageQuery{Page: 0, Size: 2}, 5)

	assert.Len(t, page.Content, 2)
	assert.Equal(t, int64(5), page.TotalElements)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 2, page.Size)
}

func TestNewPageEmptyContentIsNotNull(t *testing.T) {
	page := NewPage[Role](nil, PageQuery{Size: 10}, 0)

	assert.NotNil(t, page.Content)
	assert.Empty(t, page.Content)
	assert.Equal(t, 0, page.TotalPages)
}

func TestNewUnpagedPage(t *testing.T) {
	page := NewUnpagedPage([]Role{{ID: 1}, {ID: 2}, {ID: 3}})

	assert.Equal(t, 0, page.Page)
	assert.Equal(t, 3, page.Size)
	assert.Equal(t, int64(3), page.TotalElements)
	assert.Equal(t, 1, page.TotalPages)
}
