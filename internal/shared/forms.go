package shared

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

// DateLayout is the HTML date input format.
const DateLayout = "2006-01-02"

// IDParam parses a positive int64 route parameter. Invalid values yield
// ErrNotFound so handlers answer 404.
func IDParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrNotFound
	}
	return id, nil
}

// FormInt64 parses an integer form value, ignoring spaces used as digit
// grouping. Invalid input yields 0.
func FormInt64(r *http.Request, key string) int64 {
	raw := strings.NewReplacer(" ", "", "\u00a0", "", "\u202f", "").Replace(r.PostFormValue(key))
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// FormBool reads an HTML checkbox.
func FormBool(r *http.Request, key string) bool {
	switch strings.ToLower(r.PostFormValue(key)) {
	case "on", "true", "1", "oui":
		return true
	}
	return false
}

// FormDate parses a date input; empty or invalid input yields the zero time.
func FormDate(r *http.Request, key string) time.Time {
	t, err := time.Parse(DateLayout, strings.TrimSpace(r.PostFormValue(key)))
	if err != nil {
		return time.Time{}
	}
	return t
}

// FormIDs parses every positive integer submitted under key, keeping order and
// dropping duplicates.
func FormIDs(r *http.Request, key string) []int64 {
	seen := make(map[int64]struct{})
	var ids []int64
	for _, raw := range r.PostForm[key] {
		id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil || id <= 0 {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

// QueryInt64 parses an integer query parameter; invalid input yields 0.
func QueryInt64(r *http.Request, key string) int64 {
	n, _ := strconv.ParseInt(r.URL.Query().Get(key), 10, 64)
	return n
}
