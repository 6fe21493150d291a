package handlers

import (
	"time"

	oaerrors "github.com/go-openapi/errors"
	"github.com/go-openapi/strfmt"
	"github.com/go-openapi/validate"

	"github.com/jake-scott/blink-homekit/internal/pkg/accessory"
	"github.com/jake-scott/blink-homekit/internal/pkg/blink"
)

const canonicalIDPattern = `^Blink:Network:\d+(:Camera:\d+)?$`

// CharacteristicWrite is the body of a characteristic PUT
type CharacteristicWrite struct {
	Value interface{} `json:"value"`
}

// Validate validates this characteristic write
func (m *CharacteristicWrite) Validate(formats strfmt.Registry) error {
	var res []error

	// false and 0 are real values so only absence is an error
	if m.Value == nil {
		res = append(res, oaerrors.Required("value", "body", m.Value))
	}

	if len(res) > 0 {
		return oaerrors.CompositeValidationError(res...)
	}
	return nil
}

func validateDeviceID(id string) error {
	if err := validate.Pattern("id", "path", id, canonicalIDPattern); err != nil {
		return err
	}
	return nil
}

// Device is one accessory with the values of its characteristics.  Values
// that could not be read are reported in Errors instead.
type Device struct {
	ID              string                                   `json:"id"`
	Kind            accessory.Kind                           `json:"kind"`
	Name            string                                   `json:"name"`
	Manufacturer    string                                   `json:"manufacturer"`
	Model           string                                   `json:"model"`
	Serial          string                                   `json:"serial"`
	Firmware        string                                   `json:"firmware"`
	Characteristics map[accessory.Characteristic]interface{} `json:"characteristics"`
	Writable        []accessory.Characteristic               `json:"writable"`
	Error           string                                   `json:"error,omitempty"`
}

// RefreshResult is returned after a forced refresh
type RefreshResult struct {
	Generation uint64          `json:"generation"`
	FetchedAt  strfmt.DateTime `json:"fetched_at"`
	Networks   int             `json:"networks"`
	Cameras    int             `json:"cameras"`
}

// Health is the liveness report
type Health struct {
	Status     string          `json:"status"`
	Generation uint64          `json:"generation"`
	FetchedAt  strfmt.DateTime `json:"fetched_at,omitempty"`
	Age        string          `json:"age,omitempty"`
}

func newRefreshResult(snap *blink.AccountSnapshot) RefreshResult {
	return RefreshResult{
		Generation: snap.Generation,
		FetchedAt:  strfmt.DateTime(snap.FetchedAt),
		Networks:   len(snap.Networks),
		Cameras:    len(snap.Cameras),
	}
}

func newHealth(snap *blink.AccountSnapshot, now time.Time) Health {
	if snap.Generation == 0 {
		return Health{Status: "starting"}
	}

	return Health{
		Status:     "ok",
		Generation: snap.Generation,
		FetchedAt:  strfmt.DateTime(snap.FetchedAt),
		Age:        now.Sub(snap.FetchedAt).Round(time.Second).String(),
	}
}
