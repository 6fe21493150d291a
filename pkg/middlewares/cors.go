package middlewares

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

type CorsMw struct {
	h http.Handler
}

// CorsOptions allows browsers on the given origins to use the status API.
// No origins means same-origin only.
func CorsOptions(origins []string, debug bool) cors.Options {
	return cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPut, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", "X-Correlation-ID"},
		ExposedHeaders: []string{"X-Txn-ID", "X-Correlation-ID"},
		MaxAge:         600,
		Debug:          debug,
	}
}

func NewCorsMw(opts cors.Options) mux.MiddlewareFunc {
	c := cors.New(opts)

	return func(next http.Handler) http.Handler {
		return &CorsMw{h: c.Handler(next)}
	}
}

// Preflight requests are answered here without reaching the router's
// handlers, so this should be the first Middleware in the chain
func (mw *CorsMw) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	mw.h.ServeHTTP(rw, r)
}
