package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jake-scott/blink-homekit/internal/pkg/accessory"
	"github.com/jake-scott/blink-homekit/internal/pkg/blink"
	"github.com/jake-scott/blink-homekit/internal/pkg/blinkapi"
	"github.com/jake-scott/blink-homekit/mocks"
)

var testNow = time.Date(2023, 6, 15, 15, 0, 0, 0, time.UTC)

func newServer(t *testing.T, initialize bool) (*mux.Router, *mocks.FakeBlinkClient, *blink.Store) {
	client := mocks.FakeNewBlinkClient(mocks.FakeHomescreen(testNow))
	client.PollsToComplete = 1

	s := blink.NewStore(client, nil, blink.Config{
		CommandPollInterval: time.Millisecond,
		Now:                 func() time.Time { return testNow },
	})

	var tables []*accessory.Table
	if initialize {
		_, err := s.Initialize(context.Background())
		require.NoError(t, err)
		tables = accessory.ForStore(s, accessory.Options{}, nil)
	}

	h := NewStatusHandler(s, tables)
	h.now = func() time.Time { return testNow.Add(time.Second * 5) }

	r := mux.NewRouter()
	h.Register(r)
	return r, client, s
}

func do(r http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestListDevices(t *testing.T) {
	r, _, _ := newServer(t, true)

	rec := do(r, http.MethodGet, "/devices", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var devices []Device
	decode(t, rec, &devices)
	require.Len(t, devices, 5)

	home := devices[0]
	assert.Equal(t, "Blink:Network:1", home.ID)
	assert.Equal(t, accessory.KindSecuritySystem, home.Kind)
	assert.Equal(t, "Blink Home", home.Name)
	assert.Equal(t, float64(0), home.Characteristics[accessory.SecuritySystemCurrentState])
	assert.Contains(t, home.Writable, accessory.SecuritySystemTargetState)
	assert.NotContains(t, home.Writable, accessory.SecuritySystemCurrentState)
}

func TestGetDevice(t *testing.T) {
	r, _, _ := newServer(t, true)

	rec := do(r, http.MethodGet, "/devices/Blink:Network:1:Camera:10", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var d Device
	decode(t, rec, &d)
	assert.Equal(t, accessory.KindCamera, d.Kind)
	assert.Equal(t, 20.0, d.Characteristics[accessory.CurrentTemperature])
	assert.Equal(t, true, d.Characteristics[accessory.PrivacyOn])
	assert.Empty(t, d.Error)
}

func TestGetDeviceErrors(t *testing.T) {
	r, _, _ := newServer(t, true)

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/devices/Blink:Network:9", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/devices/thermostat", "").Code)
}

func TestWriteCharacteristic(t *testing.T) {
	r, _, _ := newServer(t, true)

	rec := do(r, http.MethodPut, "/devices/Blink:Network:1:Camera:10/characteristics/PrivacyOn", `{"value": false}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var d Device
	decode(t, rec, &d)
	assert.Equal(t, false, d.Characteristics[accessory.PrivacyOn])
}

func TestWriteTargetStateArms(t *testing.T) {
	r, client, _ := newServer(t, true)

	rec := do(r, http.MethodPut, "/devices/Blink:Network:1/characteristics/SecuritySystemTargetState", `{"value": 1}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, client.Calls("ArmNetwork"))

	var d Device
	decode(t, rec, &d)
	assert.Equal(t, float64(1), d.Characteristics[accessory.SecuritySystemCurrentState])
}

func TestWriteCharacteristicErrors(t *testing.T) {
	r, client, _ := newServer(t, true)
	path := "/devices/Blink:Network:1:Camera:10/characteristics/"

	tests := []struct {
		name   string
		target string
		body   string
		status int
	}{
		{"missing value", path + "PrivacyOn", `{}`, http.StatusBadRequest},
		{"not json", path + "PrivacyOn", `value=true`, http.StatusBadRequest},
		{"two objects", path + "PrivacyOn", `{"value": true}{"value": false}`, http.StatusBadRequest},
		{"bad value", path + "PrivacyOn", `{"value": [1]}`, http.StatusBadRequest},
		{"read only", path + "BatteryLevel", `{"value": 50}`, http.StatusBadRequest},
		{"unknown characteristic", path + "LightOn", `{"value": true}`, http.StatusNotFound},
		{"unknown device", "/devices/Blink:Network:1:Camera:99/characteristics/PrivacyOn", `{"value": true}`, http.StatusNotFound},
		{"target out of range", "/devices/Blink:Network:1/characteristics/SecuritySystemTargetState", `{"value": 4}`, http.StatusBadRequest},
		{"night arm", "/devices/Blink:Network:1/characteristics/SecuritySystemTargetState", `{"value": 2}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(r, http.MethodPut, tt.target, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}

	assert.Equal(t, 0, client.Calls("ArmNetwork"))
}

func TestSnapshot(t *testing.T) {
	r, _, _ := newServer(t, true)

	rec := do(r, http.MethodGet, "/cameras/Blink:Network:1:Camera:10/snapshot", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, blink.PrivacyImage(), rec.Body.Bytes())

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/cameras/Blink:Network:1/snapshot", "").Code)
}

func TestRefresh(t *testing.T) {
	r, client, _ := newServer(t, true)

	rec := do(r, http.MethodPost, "/refresh", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var res RefreshResult
	decode(t, rec, &res)
	assert.Equal(t, uint64(2), res.Generation)
	assert.Equal(t, 2, res.Networks)
	assert.Equal(t, 3, res.Cameras)

	client.SnapshotErr = &blinkapi.APIError{StatusCode: http.StatusServiceUnavailable, Body: "maintenance"}
	assert.Equal(t, http.StatusBadGateway, do(r, http.MethodPost, "/refresh", "").Code)
}

func TestHealth(t *testing.T) {
	r, _, s := newServer(t, false)

	assert.Equal(t, http.StatusServiceUnavailable, do(r, http.MethodGet, "/healthz", "").Code)

	_, err := s.Refresh(context.Background())
	require.NoError(t, err)

	rec := do(r, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var hl Health
	decode(t, rec, &hl)
	assert.Equal(t, "ok", hl.Status)
	assert.Equal(t, "5s", hl.Age)
}
