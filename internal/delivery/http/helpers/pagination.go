package helpers

import (
	"net/http"
	"strconv"

	"reconned/internal/domain"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// ParsePagination reads ?page and ?page_size. Missing, malformed or
// non-positive values fall back to the defaults; page_size is capped.
func ParsePagination(r *http.Request) domain.PaginationParams {
	q := r.URL.Query()
	params := domain.PaginationParams{
		Page:     positiveQueryInt(q.Get("page"), DefaultPage),
		PageSize: positiveQueryInt(q.Get("page_size"), DefaultPageSize),
	}
	params.PageSize = min(params.PageSize, MaxPageSize)
	return params
}

func positiveQueryInt(raw string, fallback int) int {
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return fallback
	}
	return v
}

// PaginationMeta accompanies every paginated list.
// swagger:model PaginationMeta
type PaginationMeta struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewPaginatedData wraps one page of items with its metadata.
func NewPaginatedData(items any, params domain.PaginationParams, total int) PaginatedData {
	return PaginatedData{
		Items: items,
		Pagination: PaginationMeta{
			Page:       params.Page,
			PageSize:   params.PageSize,
			Total:      total,
			TotalPages: params.TotalPages(total),
		},
	}
}
