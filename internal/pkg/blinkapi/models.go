package blinkapi

import (
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/go-openapi/swag"
)

// Homescreen is the full account payload: every network, sync module and
// camera in one document
type Homescreen struct {
	Networks    []*Network    `json:"networks"`
	SyncModules []*SyncModule `json:"sync_modules"`
	Cameras     []*Camera     `json:"cameras"`
}

type Network struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Armed     bool            `json:"armed"`
	UpdatedAt strfmt.DateTime `json:"updated_at"`
	CreatedAt strfmt.DateTime `json:"created_at"`
}

type SyncModule struct {
	ID              int64           `json:"id"`
	NetworkID       int64           `json:"network_id"`
	Name            string          `json:"name"`
	Serial          string          `json:"serial"`
	FirmwareVersion string          `json:"fw_version"`
	Type            string          `json:"type"`
	Status          string          `json:"status"`
	UpdatedAt       strfmt.DateTime `json:"updated_at"`
}

type Signals struct {
	LFR     int64   `json:"lfr"`
	Wifi    int64   `json:"wifi"`
	Temp    float64 `json:"temp"`
	Battery int64   `json:"battery"`
}

type Camera struct {
	ID              int64           `json:"id"`
	NetworkID       int64           `json:"network_id"`
	Name            string          `json:"name"`
	Serial          string          `json:"serial"`
	FirmwareVersion string          `json:"fw_version"`
	Type            string          `json:"type"`
	Enabled         bool            `json:"enabled"`
	Thumbnail       string          `json:"thumbnail"`
	Status          string          `json:"status"`
	Battery         string          `json:"battery"`
	UpdatedAt       strfmt.DateTime `json:"updated_at"`
	Signals         Signals         `json:"signals"`
}

// Command is an asynchronous operation accepted by a network.  It is
// polled until Complete is true.
type Command struct {
	ID            int64  `json:"id"`
	NetworkID     int64  `json:"network_id"`
	Complete      bool   `json:"complete"`
	State         string `json:"state_condition"`
	StatusMessage string `json:"status_msg"`
}

// CameraStatus is the detailed per-camera status.  Older firmware omits
// some of the readings, so they are optional.
type CameraStatus struct {
	CameraID       int64   `json:"camera_id"`
	BatteryVoltage *int64  `json:"battery_voltage"`
	WifiStrength   *int64  `json:"wifi_strength"`
	Temperature    *int64  `json:"temperature"`
	LightSensor    *int64  `json:"light_sensor_ch0"`
	MAC            *string `json:"mac"`
	IPAddress      *string `json:"ipv"`
}

type cameraStatusResponse struct {
	CameraStatus *CameraStatus `json:"camera_status"`
}

func (s *CameraStatus) Voltage() int64 {
	if s == nil {
		return 0
	}
	return swag.Int64Value(s.BatteryVoltage)
}

func (s *CameraStatus) Wifi() int64 {
	if s == nil {
		return 0
	}
	return swag.Int64Value(s.WifiStrength)
}

type Media struct {
	ID        int64           `json:"id"`
	DeviceID  int64           `json:"device_id"`
	NetworkID int64           `json:"network_id"`
	Thumbnail string          `json:"thumbnail"`
	Deleted   bool            `json:"deleted"`
	CreatedAt strfmt.DateTime `json:"created_at"`
	UpdatedAt strfmt.DateTime `json:"updated_at"`
}

type MediaChanges struct {
	Limit int64    `json:"limit"`
	Media []*Media `json:"media"`
}

type tierInfo struct {
	Tier      string `json:"tier"`
	AccountID int64  `json:"account_id"`
}

// Time converts a wire timestamp, treating the zero and epoch values that
// the API uses for "never" as the zero time
func Time(dt strfmt.DateTime) time.Time {
	t := time.Time(dt)
	if t.Unix() <= 0 {
		return time.Time{}
	}
	return t
}
