package httpserver

import (
	"net/http"
	"time"
)

// New constructs an http.Server with sane timeouts. The handler timeout
// middleware governs per-request deadlines; these guard the connection level.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
