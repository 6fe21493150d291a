package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/jake-scott/blink-homekit/internal/pkg/accessory"
	"github.com/jake-scott/blink-homekit/internal/pkg/blink"
	"github.com/jake-scott/blink-homekit/internal/pkg/logging"
	"github.com/jake-scott/blink-homekit/internal/pkg/metrics"
)

/*
 *  Local status and control API over the same capability tables the
 *  accessory hosts use
 */

type StatusHandler struct {
	store  *blink.Store
	tables map[string]*accessory.Table
	order  []string
	now    func() time.Time
}

func NewStatusHandler(store *blink.Store, tables []*accessory.Table) *StatusHandler {
	h := &StatusHandler{
		store:  store,
		tables: make(map[string]*accessory.Table, len(tables)),
		now:    time.Now,
	}
	for _, t := range tables {
		h.tables[t.ID] = t
		h.order = append(h.order, t.ID)
	}

	return h
}

// Register adds the API routes to r
func (h *StatusHandler) Register(r *mux.Router) {
	r.HandleFunc("/devices", h.listDevices).Methods(http.MethodGet)
	r.HandleFunc("/devices/{id}", h.getDevice).Methods(http.MethodGet)
	r.HandleFunc("/devices/{id}/characteristics/{characteristic}", h.writeCharacteristic).Methods(http.MethodPut)
	r.HandleFunc("/cameras/{id}/snapshot", h.snapshot).Methods(http.MethodGet)
	r.HandleFunc("/refresh", h.refresh).Methods(http.MethodPost)
	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
}

func (h *StatusHandler) table(id string) (*accessory.Table, error) {
	if err := validateDeviceID(id); err != nil {
		return nil, err
	}

	// excluded devices have no table and are not served
	t, ok := h.tables[id]
	if !ok {
		return nil, errors.Wrapf(blink.ErrNotFound, "%s", id)
	}
	return t, nil
}

func (h *StatusHandler) device(r *http.Request, t *accessory.Table) Device {
	info := t.Info()
	d := Device{
		ID:           t.ID,
		Kind:         t.Kind,
		Name:         t.Name(),
		Manufacturer: info.Manufacturer,
		Model:        info.Model,
		Serial:       info.Serial,
		Firmware:     info.Firmware,
		Writable:     []accessory.Characteristic{},
	}

	values, err := t.ReadAll(logging.WithDevice(r.Context(), t.ID))
	d.Characteristics = values
	if err != nil {
		d.Error = err.Error()
	}

	for _, id := range t.IDs() {
		if t.Writable(id) {
			d.Writable = append(d.Writable, id)
		}
	}

	return d
}

func (h *StatusHandler) listDevices(w http.ResponseWriter, r *http.Request) {
	devices := make([]Device, 0, len(h.order))
	for _, id := range h.order {
		devices = append(devices, h.device(r, h.tables[id]))
	}

	sendJSONResponse(w, r, http.StatusOK, devices)
}

func (h *StatusHandler) getDevice(w http.ResponseWriter, r *http.Request) {
	t, err := h.table(mux.Vars(r)["id"])
	if err != nil {
		sendErrorResponse(w, r, err)
		return
	}

	sendJSONResponse(w, r, http.StatusOK, h.device(r, t))
}

func (h *StatusHandler) writeCharacteristic(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ctxLogger := logging.Logger(r.Context())

	t, err := h.table(vars["id"])
	if err != nil {
		sendErrorResponse(w, r, err)
		return
	}

	var req CharacteristicWrite
	if err := decodeJSONBody(w, r, &req); err != nil {
		ctxLogger.WithError(err).Errorf("decoding JSON")
		sendJSONResponse(w, r, http.StatusBadRequest, errorResponse{Error: "unable to parse JSON"})
		return
	}

	if err := req.Validate(formats); err != nil {
		ctxLogger.WithError(err).Errorf("request validation failure")
		sendErrorResponse(w, r, err)
		return
	}

	characteristic := accessory.Characteristic(vars["characteristic"])
	ctx := logging.WithDevice(r.Context(), t.ID)
	if logging.TxnID(ctx) == "" {
		ctx = logging.WithTxnID(ctx, uuid.New().String())
	}

	err = t.Write(ctx, characteristic, req.Value)
	metrics.CharacteristicWrites.WithLabelValues("http", string(characteristic), metrics.Result(err)).Inc()
	if err != nil {
		sendErrorResponse(w, r, err)
		return
	}

	sendJSONResponse(w, r, http.StatusOK, h.device(r, t))
}

func (h *StatusHandler) snapshot(w http.ResponseWriter, r *http.Request) {
	t, err := h.table(mux.Vars(r)["id"])
	if err != nil {
		sendErrorResponse(w, r, err)
		return
	}

	cam, ok := t.Device().(*blink.Camera)
	if !ok {
		sendErrorResponse(w, r, blink.ErrNotFound)
		return
	}

	data, err := cam.Thumbnail(logging.WithDevice(r.Context(), t.ID))
	if err != nil {
		sendErrorResponse(w, r, err)
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write(data); err != nil {
		logging.Logger(r.Context()).WithError(err).Error("sending snapshot")
	}
}

func (h *StatusHandler) refresh(w http.ResponseWriter, r *http.Request) {
	snap, err := h.store.ForceRefresh(r.Context())
	if err != nil {
		sendErrorResponse(w, r, err)
		return
	}

	sendJSONResponse(w, r, http.StatusOK, newRefreshResult(snap))
}

func (h *StatusHandler) health(w http.ResponseWriter, r *http.Request) {
	hl := newHealth(h.store.Snapshot(), h.now())

	status := http.StatusOK
	if hl.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	sendJSONResponse(w, r, status, hl)
}
