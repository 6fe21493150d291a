package blink

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/jake-scott/blink-homekit/internal/pkg/blinkapi"
	"github.com/jake-scott/blink-homekit/internal/pkg/logging"
)

// Camera is the facade for one camera.  The detailed status and media list
// are fetched on first use and kept until the next snapshot.
type Camera struct {
	store     *Store
	networkID int64
	id        int64

	mu        sync.Mutex
	status    *blinkapi.CameraStatus
	statusGen uint64
	media     []*blinkapi.Media
	mediaGen  uint64

	// single entry thumbnail cache
	thumbID   string
	thumbData []byte

	omu sync.Mutex
}

func newCamera(s *Store, networkID, id int64) *Camera {
	return &Camera{store: s, networkID: networkID, id: id}
}

func (c *Camera) ID() int64 {
	return c.id
}

func (c *Camera) NetworkID() int64 {
	return c.networkID
}

func (c *Camera) CanonicalID() string {
	return CameraCanonicalID(c.networkID, c.id)
}

// Snapshot is the camera in the current snapshot, nil if it has gone
func (c *Camera) Snapshot() *CameraInfo {
	return c.store.Snapshot().Camera(c.id)
}

func (c *Camera) Name() string {
	if info := c.Snapshot(); info != nil {
		return "Blink " + info.Name
	}
	return "Blink"
}

func (c *Camera) Info() AccessoryInfo {
	ai := AccessoryInfo{
		Name:         c.Name(),
		Manufacturer: "Blink",
		Model:        "Unknown",
		Serial:       "None",
		Firmware:     "Unknown",
	}

	info := c.Snapshot()
	if info == nil {
		return ai
	}
	if info.Type != "" {
		ai.Model = info.Type
	}
	if info.Serial != "" {
		ai.Serial = info.Serial
	}
	if info.FirmwareVersion != "" {
		ai.Firmware = info.FirmwareVersion
	}
	return ai
}

func (c *Camera) networkArmed(info *CameraInfo) bool {
	return info != nil && info.Network != nil && info.Network.Armed
}

// Temperature in Celsius
func (c *Camera) Temperature() float64 {
	info := c.Snapshot()
	if info == nil {
		return 0
	}
	return FahrenheitToCelsius(info.Signals.Temp)
}

func (c *Camera) cameraStatus(ctx context.Context) (*blinkapi.CameraStatus, error) {
	gen := c.store.Generation()

	c.mu.Lock()
	if c.status != nil && c.statusGen == gen {
		st := c.status
		c.mu.Unlock()
		return st, nil
	}
	c.mu.Unlock()

	st, err := c.store.CameraStatus(ctx, c.networkID, c.id, BatteryTTL)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.status = st
	c.statusGen = gen
	c.mu.Unlock()

	return st, nil
}

// Battery is the battery level as a percentage
func (c *Camera) Battery(ctx context.Context) (int, error) {
	st, err := c.cameraStatus(ctx)
	if err != nil {
		return 0, err
	}
	return BatteryPercent(st.Voltage()), nil
}

// WifiStrength is the signal strength from the detailed status
func (c *Camera) WifiStrength(ctx context.Context) (int64, error) {
	st, err := c.cameraStatus(ctx)
	if err != nil {
		return 0, err
	}
	return st.Wifi(), nil
}

// LowBattery is taken from the coarse battery signal, 0 to 3
func (c *Camera) LowBattery() bool {
	info := c.Snapshot()
	return info != nil && info.Signals.Battery < 2
}

// MotionDetected is inferred: while armed, from a minute before the
// network was last updated until 90 seconds before the camera was
func (c *Camera) MotionDetected() bool {
	info := c.Snapshot()
	if !c.networkArmed(info) {
		return false
	}

	now := c.store.now()
	start := blinkapi.Time(info.Network.UpdatedAt).Add(-motionTriggerStartDelay)
	end := blinkapi.Time(info.UpdatedAt).Add(-motionTriggerDecayEnd)

	return !now.Before(start) && !now.After(end)
}

func (c *Camera) MotionActive() bool {
	info := c.Snapshot()
	return info != nil && info.Enabled && c.networkArmed(info)
}

// Enabled is whether motion detection is on
func (c *Camera) Enabled() bool {
	info := c.Snapshot()
	return info != nil && info.Enabled
}

func (c *Camera) SetEnabled(ctx context.Context, enabled bool) error {
	if c.Enabled() == enabled {
		return nil
	}

	logging.Logger(ctx).Infof("setting %s motion detection enabled=%t", c.Name(), enabled)
	return c.store.SetCameraMotion(ctx, c.networkID, c.id, enabled)
}

// PrivacyMode is held locally, never sent to Blink.  It is on until
// turned off.
func (c *Camera) PrivacyMode(ctx context.Context) (bool, error) {
	o, err := c.store.loadOverrides(ctx, c.CanonicalID())
	if err != nil {
		return true, err
	}
	return o.IsPrivate(), nil
}

func (c *Camera) SetPrivacyMode(ctx context.Context, private bool) error {
	c.omu.Lock()
	defer c.omu.Unlock()

	o, err := c.store.loadOverrides(ctx, c.CanonicalID())
	if err != nil {
		return err
	}
	o.PrivacyMode = &private
	return c.store.saveOverrides(ctx, c.CanonicalID(), o)
}

func (c *Camera) RefreshThumbnail(ctx context.Context) error {
	return c.store.RefreshCameraThumbnail(ctx, c.networkID, c.id)
}

// Media is the saved media for this camera, fetched once per snapshot
func (c *Camera) Media(ctx context.Context) ([]*blinkapi.Media, error) {
	gen := c.store.Generation()

	c.mu.Lock()
	if c.media != nil && c.mediaGen == gen {
		m := c.media
		c.mu.Unlock()
		return m, nil
	}
	c.mu.Unlock()

	all, err := c.store.SavedMedia(ctx)
	if err != nil {
		return nil, err
	}

	mine := make([]*blinkapi.Media, 0)
	for _, m := range all {
		if m.DeviceID == c.id {
			mine = append(mine, m)
		}
	}

	c.mu.Lock()
	c.media = mine
	c.mediaGen = gen
	c.mu.Unlock()

	return mine, nil
}

// Thumbnail returns the latest image from the camera.  A thumbnail older
// than the TTL is refreshed on the camera first.  The privacy placeholder
// is returned instead while disarmed in privacy mode.
func (c *Camera) Thumbnail(ctx context.Context) ([]byte, error) {
	info := c.Snapshot()
	if !c.networkArmed(info) {
		private, err := c.PrivacyMode(ctx)
		if err != nil {
			return nil, err
		}
		if private {
			return PrivacyImage(), nil
		}
	}

	media, err := c.Media(ctx)
	if err != nil {
		return nil, err
	}

	var thumbnail string
	entry := newestMedia(media)
	if entry != nil {
		thumbnail = entry.Thumbnail
	}

	ttl := c.store.cfg.thumbnailTTL()
	if entry == nil || c.store.now().Sub(blinkapi.Time(entry.CreatedAt)) > ttl {
		logging.Logger(ctx).Debugf("thumbnail for %s older than %s, refreshing", c.Name(), ttl)
		if err := c.RefreshThumbnail(ctx); err != nil {
			return nil, err
		}
		if info := c.Snapshot(); info != nil {
			thumbnail = info.Thumbnail
		}
	}

	return c.fetchThumbnail(ctx, thumbnail)
}

// LatestThumbnail is the image for the thumbnail in the current snapshot.
// Unlike Thumbnail it never asks the camera for a new one.
func (c *Camera) LatestThumbnail(ctx context.Context) ([]byte, error) {
	info := c.Snapshot()
	if !c.networkArmed(info) {
		private, err := c.PrivacyMode(ctx)
		if err != nil {
			return nil, err
		}
		if private {
			return PrivacyImage(), nil
		}
	}

	var thumbnail string
	if info != nil {
		thumbnail = info.Thumbnail
	}
	return c.fetchThumbnail(ctx, thumbnail)
}

func (c *Camera) fetchThumbnail(ctx context.Context, thumbnail string) ([]byte, error) {
	if thumbnail == "" {
		return nil, errors.Errorf("no thumbnail for camera %d", c.id)
	}

	c.mu.Lock()
	if c.thumbID == thumbnail {
		data := c.thumbData
		c.mu.Unlock()
		return data, nil
	}
	c.mu.Unlock()

	data, err := c.store.FetchBinary(ctx, thumbnail+".jpg")
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.thumbID = thumbnail
	c.thumbData = data
	c.mu.Unlock()

	return data, nil
}
