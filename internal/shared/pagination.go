package shared

import (
	"math"
	"net/http"
	"strconv"
	"strings"
)

// Default and maximum page sizes for listings.
const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page       int
	PerPage    int
	Total      int
	TotalPages int
}

// NewPagination computes pagination metadata.
func NewPagination(page, perPage, total int) Pagination {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	if page <= 0 {
		page = 1
	}
	totalPages := int(math.Ceil(float64(total) / float64(perPage)))
	return Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
}

// Offset returns the number of rows to skip.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// HasPrev reports whether a previous page exists.
func (p Pagination) HasPrev() bool { return p.Page > 1 }

// HasNext reports whether a next page exists.
func (p Pagination) HasNext() bool { return p.Page < p.TotalPages }

// PrevPage returns the previous page number.
func (p Pagination) PrevPage() int { return p.Page - 1 }

// NextPage returns the next page number.
func (p Pagination) NextPage() int { return p.Page + 1 }

// ListParams are the query parameters shared by every listing.
type ListParams struct {
	Search  string
	Page    int
	PerPage int
	SortBy  string
	SortDir string
}

// ParseListParams reads q, page, limit, sort and dir from the query string.
func ParseListParams(r *http.Request, defaultSort string) ListParams {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("limit"))
	p := NewPagination(page, perPage, 0)
	sortBy := strings.TrimSpace(q.Get("sort"))
	if sortBy == "" {
		sortBy = defaultSort
	}
	dir := strings.ToLower(q.Get("dir"))
	if dir != "desc" {
		dir = "asc"
	}
	return ListParams{
		Search:  strings.TrimSpace(q.Get("q")),
		Page:    p.Page,
		PerPage: p.PerPage,
		SortBy:  sortBy,
		SortDir: dir,
	}
}

// Offset returns the number of rows to skip.
func (p ListParams) Offset() int {
	return NewPagination(p.Page, p.PerPage, 0).Offset()
}

// OptionalBool parses "true"/"false"; anything else yields nil.
func OptionalBool(raw string) *bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "oui":
		v := true
		return &v
	case "false", "0", "non":
		v := false
		return &v
	}
	return nil
}
