package shared

import (
	"net/http"
	"strconv"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

type Pagination struct {
	Page   int
	Limit  int
	Offset int
}

// ParsePagination reads page (1-based) and limit from the query string.
// Bad or out-of-range values fall back to the defaults; limit is capped at maxLimit.
func ParsePagination(r *http.Request, defaultLimit, maxLimit int) Pagination {
	page := 1
	limit := defaultLimit
	if raw := r.URL.Query().Get("page"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			page = v
		}
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}
	if maxLimit > 0 && limit > maxLimit {
		limit = maxLimit
	}
	return Pagination{Page: page, Limit: limit, Offset: (page - 1) * limit}
}

func SetTotalCount(w http.ResponseWriter, total int) {
	w.Header().Set("X-Total-Count", strconv.Itoa(total))
}
