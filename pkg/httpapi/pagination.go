package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

type Page struct {
	Skip  int
	Limit int
}

// ParsePage reads skip and limit from the query string. limit must be in
// 1..maxLimit and defaults to defaultLimit; skip must not be negative.
func ParsePage(r *http.Request, defaultLimit, maxLimit int) (Page, error) {
	p := Page{Limit: defaultLimit}
	q := r.URL.Query()
	if v := strings.TrimSpace(q.Get("skip")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return Page{}, fmt.Errorf("skip must be a non-negative integer")
		}
		p.Skip = n
	}
	if v := strings.TrimSpace(q.Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxLimit {
			return Page{}, fmt.Errorf("limit must be between 1 and %d", maxLimit)
		}
		p.Limit = n
	}
	return p, nil
}

// Paginated is the list response shape.
type Paginated[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
	Skip  int   `json:"skip"`
	Limit int   `json:"limit"`
}
