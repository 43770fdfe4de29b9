package versioning

import (
	"encoding/json"
	"net/http"
)

// VersionHeader carries the served API version on every response.
const VersionHeader = "X-API-Version"

// RequestedVersionHeader lets clients pin the API version they expect.
const RequestedVersionHeader = "X-API-Requested-Version"

// Middleware stamps responses with the current API version and rejects
// requests that pin an incompatible version.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(VersionHeader, CurrentVersion.String())

		if requested := r.Header.Get(RequestedVersionHeader); requested != "" {
			v, err := Parse(requested)
			if err != nil || !IsCompatible(v) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusNotAcceptable)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"error":     "unsupported API version",
					"requested": requested,
					"current":   CurrentVersion.String(),
				})
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}
