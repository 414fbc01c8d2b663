package store

import (
	"net/url"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

// PageQuery holds pagination, sorting, and the all-flag parsed from the
// request query string. Pages are zero-based.
type PageQuery struct {
	Page      int
	Size      int
	SortBy    string
	Direction string
	All       bool
}

// Page is the response envelope for paginated listings. When the all-flag is
// set the whole collection comes back as a single unpaginated page.
type Page[T any] struct {
	Content       []T   `json:"content"`
	Page          int   `json:"page"`
	Size          int   `json:"size"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
}

// ParsePageQuery parses ?page=&size=&sortBy=&direction=&all= with the same
// defaults the API documents: page 0, size 10, sorted by id ascending.
// Invalid numbers fall back to the defaults rather than erroring.
func ParsePageQuery(q url.Values) PageQuery {
	p := PageQuery{
		Page:      0,
		Size:      10,
		SortBy:    "id",
		Direction: "asc",
	}

	if v := strings.TrimSpace(q.Get("page")); v != "" {
		if page, err := strconv.Atoi(v); err == nil && page >= 0 {
			p.Page = page
		}
	}
	if v := strings.TrimSpace(q.Get("size")); v != "" {
		if size, err := strconv.Atoi(v); err == nil && size > 0 {
			p.Size = size
		}
	}
	if v := strings.TrimSpace(q.Get("sortBy")); v != "" {
		p.SortBy = v
	}
	if v := strings.TrimSpace(q.Get("direction")); v != "" {
		p.Direction = v
	}
	if v := strings.TrimSpace(q.Get("all")); v != "" {
		if all, err := strconv.ParseBool(v); err == nil {
			p.All = all
		}
	}
	return p
}

func (p PageQuery) Offset() int64 {
	return int64(p.Page) * int64(p.Size)
}

// Sort builds the mongo sort document for the query. Field names go through
// mapSortField; direction "desc" (any case) sorts descending, everything
// else ascending.
func (p PageQuery) Sort() bson.D {
	order := 1
	if strings.EqualFold(p.Direction, "desc") {
		order = -1
	}
	return bson.D{{Key: mapSortField(p.SortBy), Value: order}}
}

// mapSortField translates the public sort key to the stored field name. The
// public "id" is the document _id; unrecognized keys pass through as-is.
func mapSortField(sortBy string) string {
	if sortBy == "id" {
		return "_id"
	}
	return sortBy
}

// NewPage assembles a page envelope from one fetched slice plus the total
// collection (or filter) count.
func NewPage[T any](content []T, q PageQuery, total int64) *Page[T] {
	if content == nil {
		content = []T{}
	}
	totalPages := 0
	if q.Size > 0 {
		totalPages = int((total + int64(q.Size) - 1) / int64(q.Size))
	}
	return &Page[T]{
		Content:       content,
		Page:          q.Page,
		Size:          q.Size,
		TotalElements: total,
		TotalPages:    totalPages,
	}
}

// NewUnpagedPage wraps the complete result set for all=true listings: one
// page whose size and total both equal the set size.
func NewUnpagedPage[T any](content []T) *Page[T] {
	if content == nil {
		content = []T{}
	}
	return &Page[T]{
		Content:       content,
		Page:          0,
		Size:          len(content),
		TotalElements: int64(len(content)),
		TotalPages:    1,
	}
}
