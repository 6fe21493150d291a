package blink

import (
	"context"
	_ "embed"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/jake-scott/blink-homekit/internal/pkg/blinkapi"
	"github.com/jake-scott/blink-homekit/internal/pkg/logging"
	"github.com/jake-scott/blink-homekit/internal/pkg/metrics"
)

//go:embed privacy.png
var privacyImage []byte

// PrivacyImage is the placeholder served instead of a thumbnail while a
// camera is in privacy mode
func PrivacyImage() []byte {
	return privacyImage
}

// Device is the part common to network and camera facades
type Device interface {
	ID() int64
	CanonicalID() string
	Name() string
	Info() AccessoryInfo
}

// AccessoryInfo is the identification shown to accessory hosts
type AccessoryInfo struct {
	Name         string
	Manufacturer string
	Model        string
	Serial       string
	Firmware     string
}

// Store holds the current account snapshot and the facades built from it
type Store struct {
	client    blinkapi.Client
	overrides OverrideStore
	waiter    *CommandWaiter
	cfg       Config

	mu          sync.RWMutex
	current     *AccountSnapshot
	generation  uint64
	initialized bool
	networks    []*Network
	cameras     []*Camera
	byID        map[string]Device
	listeners   []func(*AccountSnapshot)
}

func NewStore(client blinkapi.Client, overrides OverrideStore, cfg Config) *Store {
	cfg = cfg.withDefaults()
	if overrides == nil {
		overrides = NewMemoryOverrides()
	}

	return &Store{
		client:    client,
		overrides: overrides,
		waiter:    NewCommandWaiter(client, cfg.CommandPollInterval),
		cfg:       cfg,
		current:   link(nil),
		byID:      make(map[string]Device),
	}
}

func (s *Store) Config() Config {
	return s.cfg
}

// Snapshot is the current account snapshot, never nil
func (s *Store) Snapshot() *AccountSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Generation increases each time a snapshot is published
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// OnRefresh registers fn to be called with every new snapshot
func (s *Store) OnRefresh(fn func(*AccountSnapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Refresh fetches the homescreen, allowing a cached copy no older than the
// status polling interval, and publishes it as the current snapshot
func (s *Store) Refresh(ctx context.Context) (*AccountSnapshot, error) {
	hs, err := s.client.AccountSnapshot(ctx, s.cfg.StatusPollingInterval)
	metrics.Refreshes.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		return nil, errors.Wrap(err, "refreshing account snapshot")
	}

	snap := link(hs)
	snap.FetchedAt = s.cfg.Now()

	s.mu.Lock()
	s.generation++
	snap.Generation = s.generation
	s.current = snap
	if s.initialized {
		s.logUnknownLocked(ctx, snap)
	}
	listeners := make([]func(*AccountSnapshot), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	logging.Logger(ctx).Debugf("account snapshot %d: %d networks, %d cameras", snap.Generation, len(snap.Networks), len(snap.Cameras))

	for _, fn := range listeners {
		fn(snap)
	}

	return snap, nil
}

// ForceRefresh bypasses the client cache with an uncached fetch before
// refreshing
func (s *Store) ForceRefresh(ctx context.Context) (*AccountSnapshot, error) {
	if _, err := s.client.AccountSnapshot(ctx, 0); err != nil {
		metrics.Refreshes.WithLabelValues(metrics.Result(err)).Inc()
		return nil, errors.Wrap(err, "force refreshing account snapshot")
	}

	return s.Refresh(ctx)
}

// Initialize refreshes once and builds a facade per network and camera.
// Later calls refresh and return the facades built the first time.
func (s *Store) Initialize(ctx context.Context) ([]Device, error) {
	snap, err := s.Refresh(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		for _, ni := range snap.Networks {
			n := newNetwork(s, ni.ID)
			if _, dup := s.byID[n.CanonicalID()]; dup {
				continue
			}
			s.networks = append(s.networks, n)
			s.byID[n.CanonicalID()] = n
		}
		for _, ci := range snap.Cameras {
			c := newCamera(s, ci.NetworkID, ci.ID)
			if _, dup := s.byID[c.CanonicalID()]; dup {
				continue
			}
			s.cameras = append(s.cameras, c)
			s.byID[c.CanonicalID()] = c
		}
		s.initialized = true

		logging.Logger(ctx).Infof("initialised %d networks and %d cameras", len(s.networks), len(s.cameras))
	}

	return s.devicesLocked(), nil
}

func (s *Store) devicesLocked() []Device {
	devices := make([]Device, 0, len(s.networks)+len(s.cameras))
	for _, n := range s.networks {
		devices = append(devices, n)
	}
	for _, c := range s.cameras {
		devices = append(devices, c)
	}
	return devices
}

// Devices returns the facades, networks first
func (s *Store) Devices() []Device {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.devicesLocked()
}

func (s *Store) Networks() []*Network {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*Network(nil), s.networks...)
}

func (s *Store) Cameras() []*Camera {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*Camera(nil), s.cameras...)
}

// Device looks up a facade by canonical ID
func (s *Store) Device(canonicalID string) (Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.byID[canonicalID]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "%s", canonicalID)
	}
	return d, nil
}

// devices added to the account after startup are not exposed until restart
func (s *Store) logUnknownLocked(ctx context.Context, snap *AccountSnapshot) {
	for _, ni := range snap.Networks {
		if _, ok := s.byID[NetworkCanonicalID(ni.ID)]; !ok {
			logging.Logger(ctx).Infof("ignoring new network %d (%s) until restart", ni.ID, ni.Name)
		}
	}
	for _, ci := range snap.Cameras {
		if _, ok := s.byID[CameraCanonicalID(ci.NetworkID, ci.ID)]; !ok {
			logging.Logger(ctx).Infof("ignoring new camera %d (%s) until restart", ci.ID, ci.Name)
		}
	}
}

func (s *Store) now() time.Time {
	return s.cfg.Now()
}

// SetArmedState arms or disarms a network, waits for the command and then
// force refreshes
func (s *Store) SetArmedState(ctx context.Context, networkID int64, arm bool) error {
	var cmd *blinkapi.Command
	var err error
	if arm {
		cmd, err = s.client.ArmNetwork(ctx, networkID)
	} else {
		cmd, err = s.client.DisarmNetwork(ctx, networkID)
	}
	if err != nil {
		return errors.Wrapf(err, "setting network %d armed=%t", networkID, arm)
	}

	return s.waitAndRefresh(ctx, cmd)
}

// SetCameraMotion enables or disables motion detection on a camera
func (s *Store) SetCameraMotion(ctx context.Context, networkID, cameraID int64, enabled bool) error {
	var cmd *blinkapi.Command
	var err error
	if enabled {
		cmd, err = s.client.EnableCameraMotion(ctx, networkID, cameraID)
	} else {
		cmd, err = s.client.DisableCameraMotion(ctx, networkID, cameraID)
	}
	if err != nil {
		return errors.Wrapf(err, "setting camera %d motion enabled=%t", cameraID, enabled)
	}

	return s.waitAndRefresh(ctx, cmd)
}

// RefreshCameraThumbnail asks the camera for a new thumbnail
func (s *Store) RefreshCameraThumbnail(ctx context.Context, networkID, cameraID int64) error {
	if networkID == 0 || cameraID == 0 {
		return nil
	}

	cmd, err := s.client.UpdateCameraThumbnail(ctx, networkID, cameraID)
	if err != nil {
		return errors.Wrapf(err, "refreshing thumbnail of camera %d", cameraID)
	}

	return s.waitAndRefresh(ctx, cmd)
}

func (s *Store) waitAndRefresh(ctx context.Context, cmd *blinkapi.Command) error {
	if _, err := s.waiter.WaitAll(ctx, cmd); err != nil {
		return err
	}

	_, err := s.ForceRefresh(ctx)
	return err
}

func (s *Store) CameraStatus(ctx context.Context, networkID, cameraID int64, maxAge time.Duration) (*blinkapi.CameraStatus, error) {
	st, err := s.client.CameraStatus(ctx, networkID, cameraID, maxAge)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching status of camera %d", cameraID)
	}
	return st, nil
}

func (s *Store) FetchBinary(ctx context.Context, path string) ([]byte, error) {
	data, err := s.client.FetchBinary(ctx, path)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching %s", path)
	}
	return data, nil
}

func (s *Store) loadOverrides(ctx context.Context, canonicalID string) (Overrides, error) {
	o, err := s.overrides.Load(ctx, canonicalID)
	if err != nil {
		return Overrides{}, errors.Wrapf(err, "loading overrides for %s", canonicalID)
	}
	return o, nil
}

func (s *Store) saveOverrides(ctx context.Context, canonicalID string, o Overrides) error {
	return errors.Wrapf(s.overrides.Save(ctx, canonicalID, o), "saving overrides for %s", canonicalID)
}
