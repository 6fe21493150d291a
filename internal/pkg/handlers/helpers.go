package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	oaerrors "github.com/go-openapi/errors"
	"github.com/go-openapi/runtime/middleware/header"
	"github.com/go-openapi/strfmt"
	"github.com/pkg/errors"

	"github.com/jake-scott/blink-homekit/internal/pkg/accessory"
	"github.com/jake-scott/blink-homekit/internal/pkg/blink"
	"github.com/jake-scott/blink-homekit/internal/pkg/logging"
)

// For request validation routines
var formats strfmt.Registry

func init() {
	// Default validators
	formats = strfmt.NewFormats()
}

type errorResponse struct {
	Error string `json:"error"`
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	if r.Header.Get("Content-Type") != "" {
		value, _ := header.ParseValueAndParams(r.Header, "Content-Type")
		if value != "application/json" {
			return fmt.Errorf("expected JSON request, got %s", value)
		}
	}

	// 100kb max body
	reader := http.MaxBytesReader(w, r.Body, 100*1024)
	dec := json.NewDecoder(reader)
	dec.UseNumber()

	if err := dec.Decode(&dst); err != nil {
		return err
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("request body must only contain a single JSON object")
	}

	return nil
}

func sendJSONResponse(w http.ResponseWriter, r *http.Request, status int, d interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	enc := json.NewEncoder(w)
	if err := enc.Encode(d); err != nil {
		logging.Logger(r.Context()).WithError(err).Error("sending json response")
	}
}

// statusFor maps an error from the device layer to an HTTP status.  Anything
// not recognised as a caller mistake is treated as a failure talking to Blink.
func statusFor(err error) int {
	switch {
	case errors.Is(err, blink.ErrNotFound), errors.Is(err, accessory.ErrUnknownCharacteristic):
		return http.StatusNotFound
	case errors.Is(err, accessory.ErrInvalidValue), errors.Is(err, accessory.ErrReadOnly):
		return http.StatusBadRequest
	}

	if _, ok := errors.Cause(err).(oaerrors.Error); ok {
		return http.StatusBadRequest
	}

	return http.StatusBadGateway
}

func sendErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusBadGateway {
		logging.Logger(r.Context()).WithError(err).Error("querying Blink API")
	} else {
		logging.Logger(r.Context()).WithError(err).Info("rejected request")
	}

	sendJSONResponse(w, r, status, errorResponse{Error: err.Error()})
}
