package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"arbor/internal/httputil"
)

// PathParam extracts a path parameter, writing a 400 and returning
// ok=false when it is missing.
func PathParam(w http.ResponseWriter, r *http.Request, name, label string) (string, bool) {
	value := r.PathValue(name)
	if value == "" {
		httputil.RespondError(w, http.StatusBadRequest, fmt.Sprintf("%s is required", label))
		return "", false
	}
	return value, true
}

// queryFloat parses an optional float query parameter, falling back to
// def when absent or malformed.
func queryFloat(r *http.Request, name string, def float64) float64 {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return v
}
