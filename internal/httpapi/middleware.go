package httpapi

import (
	"crypto/subtle"
	"log"
	"net/http"
	"time"
)

func loggingMiddleware(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now().UTC()
		next.ServeHTTP(w, r)
		logger.Printf("%s %s from=%s dur=%s", r.Method, r.URL.Path, r.RemoteAddr, time.Since(start))
	})
}

// requireKey guards a handler with a pre-issued shared key carried in
// the given header. An empty configured key disables the check (dev).
func requireKey(header, key string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if key != "" {
			supplied := r.Header.Get(header)
			if subtle.ConstantTimeCompare([]byte(supplied), []byte(key)) != 1 {
				writeError(w, http.StatusForbidden, "forbidden", "invalid or missing API key")
				return
			}
		}
		next(w, r)
	}
}

// requireAnyKey accepts either the operator key or the bridge key, for
// endpoints callable by both humans and controllers.
func requireAnyKey(apiKey, bridgeKey string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if apiKey == "" && bridgeKey == "" {
			next(w, r)
			return
		}
		op := subtle.ConstantTimeCompare([]byte(r.Header.Get("X-Api-Key")), []byte(apiKey)) == 1 && apiKey != ""
		br := subtle.ConstantTimeCompare([]byte(r.Header.Get("X-Bridge-Key")), []byte(bridgeKey)) == 1 && bridgeKey != ""
		if !op && !br {
			writeError(w, http.StatusForbidden, "forbidden", "invalid or missing API key")
			return
		}
		next(w, r)
	}
}
