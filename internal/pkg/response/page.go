package response

import (
	"net/http"
	"strconv"
)

const maxPageLimit = 100

// PageParams reads limit/offset query parameters.
// Missing or invalid values fall back to defaultLimit and 0.
func PageParams(r *http.Request, defaultLimit int) (limit, offset int) {
	limit = defaultLimit
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}
