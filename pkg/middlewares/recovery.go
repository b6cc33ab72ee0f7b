package middlewares

import (
	"net/http"
	"runtime/debug"

	"github.com/gorilla/mux"

	"github.com/jake-scott/alice-bridge/internal/pkg/logging"
)

// headerTracker notes whether the response was started, after which a
// 500 can no longer be sent
type headerTracker struct {
	http.ResponseWriter
	started bool
}

func (w *headerTracker) WriteHeader(status int) {
	w.started = true
	w.ResponseWriter.WriteHeader(status)
}

func (w *headerTracker) Write(b []byte) (int, error) {
	w.started = true
	return w.ResponseWriter.Write(b)
}

type RecoveryMw struct {
	next http.Handler
}

func NewRecoveryMw() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return NewRecovery(next)
	}
}

func NewRecovery(next http.Handler) *RecoveryMw {
	return &RecoveryMw{next: next}
}

// ServeHTTP turns a handler panic into a 500 response when nothing was
// written yet
func (mw *RecoveryMw) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	tracker := &headerTracker{ResponseWriter: rw}

	defer func() {
		err := recover()
		if err == nil {
			return
		}

		logging.Logger(r.Context()).
			WithField("reqid", RequestID(r.Context())).
			WithField("path", r.URL.Path).
			Errorf("caught panic: %v : %s", err, debug.Stack())

		if tracker.started {
			return
		}
		http.Error(rw, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}()

	mw.next.ServeHTTP(tracker, r)
}
