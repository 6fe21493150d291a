package middlewares

import (
	"net/http"
	"runtime/debug"

	"github.com/gorilla/mux"

	"github.com/jake-scott/blink-homekit/internal/pkg/logging"
)

type RecoveryMw struct {
	next http.Handler
}

func NewRecoveryMw() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return &RecoveryMw{next: next}
	}
}

// A panicking handler gets a 500 and the bridge keeps serving the accessory
// hosts
func (mw *RecoveryMw) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	defer func() {
		if err := recover(); err != nil {
			if err == http.ErrAbortHandler {
				panic(err)
			}
			logging.Logger(r.Context()).Errorf("caught panic: %v : %s", err, debug.Stack())

			http.Error(rw, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
	}()

	mw.next.ServeHTTP(rw, r)
}
