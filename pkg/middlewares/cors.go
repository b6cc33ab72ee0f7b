package middlewares

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// CorsMw answers browser pre-flight requests and decorates the rest
type CorsMw struct {
	c    *cors.Cors
	next http.Handler
}

func NewCorsMw(opts cors.Options) mux.MiddlewareFunc {
	c := cors.New(opts)

	return func(next http.Handler) http.Handler {
		return &CorsMw{c: c, next: next}
	}
}

// NewCors wraps a whole router, so pre-flight requests never reach route
// matching
func NewCors(opts cors.Options, next http.Handler) *CorsMw {
	return &CorsMw{c: cors.New(opts), next: next}
}

// CorsOptions allows the given origins to call the device API with a
// bearer token
func CorsOptions(origins []string) cors.Options {
	return cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodHead, http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id", "X-Txn-ID"},
	}
}

func (mw *CorsMw) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	mw.c.ServeHTTP(rw, r, mw.next.ServeHTTP)
}
