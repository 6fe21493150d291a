package middlewares

import (
	"net/http"
	"regexp"

	"github.com/gorilla/mux"

	"github.com/jake-scott/blink-homekit/internal/pkg/logging"
)

var correlationIDRegexp = regexp.MustCompile(`^[\w-]{3,40}$`)

const badCorrelationID = "<Bad_Correlation_Id>"

// CorrelationMw echoes the caller's correlation ID and, when it is well
// formed, uses it as the transaction ID so the caller can find the log
// lines for a request, including the Blink commands it caused.
type CorrelationMw struct {
	headerName string
	next       http.Handler
}

func NewCorrelationMw(headerName string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return NewCorrelation(headerName, next)
	}
}

func NewCorrelation(headerName string, next http.Handler) *CorrelationMw {
	return &CorrelationMw{headerName: http.CanonicalHeaderKey(headerName), next: next}
}

func (mw *CorrelationMw) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	id, ok := mw.validateID(r)
	if ok {
		rw.Header().Set(mw.headerName, id)

		if id != badCorrelationID {
			logging.Logger(r.Context()).Debugf("correlation ID %s", id)
			r = r.WithContext(logging.WithTxnID(r.Context(), id))
		}
	}

	mw.next.ServeHTTP(rw, r)
}

func (mw *CorrelationMw) validateID(r *http.Request) (string, bool) {
	ids, ok := r.Header[mw.headerName]
	if !ok || len(ids) == 0 {
		return "", false
	}

	if correlationIDRegexp.MatchString(ids[0]) {
		return ids[0], true
	}

	return badCorrelationID, true
}
