package homekit

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"path/filepath"
	"strings"
	"sync"

	"github.com/brutella/hc"
	hcaccessory "github.com/brutella/hc/accessory"
	hclog "github.com/brutella/hc/log"
	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/jake-scott/blink-homekit/internal/pkg/accessory"
	"github.com/jake-scott/blink-homekit/internal/pkg/blink"
	"github.com/jake-scott/blink-homekit/internal/pkg/logging"
)

// Config for the HAP transports
type Config struct {
	// eight digit setup code shared by the bridge and the cameras
	Pin         string `validate:"required,len=8,numeric,homekitpin"`
	StoragePath string `validate:"required"`
}

// ValidPin rejects the setup codes HomeKit refuses to pair with
func ValidPin(pin string) bool {
	switch pin {
	case "", "12345678", "87654321":
		return false
	}
	return strings.Count(pin, pin[:1]) != len(pin)
}

// Thumbnailer is a device that can produce a still image
type Thumbnailer interface {
	Thumbnail(ctx context.Context) ([]byte, error)
}

// Bridge publishes the capability tables over HAP.  Security systems sit
// behind one bridge accessory; every camera needs its own transport to
// answer snapshot requests.
type Bridge struct {
	cfg    Config
	binder *binder

	bridge   *hcaccessory.Bridge
	systems  []*SecuritySystem
	cameras  []*Camera
	snappers []Thumbnailer

	mu         sync.Mutex
	transports []hc.Transport
}

// New builds the HAP accessories for tables.  Nothing is published until
// Start.
func New(ctx context.Context, cfg Config, tables []*accessory.Table) *Bridge {
	b := &Bridge{
		cfg:    cfg,
		binder: &binder{ctx: ctx},
		bridge: hcaccessory.NewBridge(hcaccessory.Info{
			Name:         "Blink",
			Manufacturer: "Blink",
			Model:        "Bridge",
			ID:           1,
		}),
	}

	for _, t := range tables {
		switch t.Kind {
		case accessory.KindSecuritySystem:
			b.systems = append(b.systems, b.binder.securitySystem(t))
		case accessory.KindCamera:
			b.cameras = append(b.cameras, b.binder.camera(t))
			snapper, _ := t.Device().(Thumbnailer)
			b.snappers = append(b.snappers, snapper)
		}
	}

	logging.Logger(ctx).Debugf("built %d security systems and %d cameras with %d bindings",
		len(b.systems), len(b.cameras), len(b.binder.bindings))

	return b
}

// Refresh pushes every bound value to subscribed controllers
func (b *Bridge) Refresh(ctx context.Context) {
	for _, bd := range b.binder.bindings {
		bd.push(ctx)
	}
}

// Snapshot returns the camera image scaled to fit width x height
func Snapshot(ctx context.Context, cam Thumbnailer, width, height uint) (*image.Image, error) {
	data, err := cam.Thumbnail(ctx)
	if err != nil {
		return nil, err
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "decoding thumbnail")
	}

	if width > 0 && height > 0 {
		img = imaging.Fit(img, int(width), int(height), imaging.Lanczos)
	}
	return &img, nil
}

// Start publishes the bridge and one transport per camera, and pushes new
// values after every store refresh.  It returns once the transports are
// running; Stop shuts them down.
func (b *Bridge) Start(ctx context.Context, store *blink.Store) error {
	if logrus.IsLevelEnabled(logrus.DebugLevel) {
		hclog.Debug.Enable()
	}

	systems := make([]*hcaccessory.Accessory, 0, len(b.systems))
	for _, s := range b.systems {
		systems = append(systems, s.Accessory)
	}

	bridge, err := hc.NewIPTransport(hc.Config{
		Pin:         b.cfg.Pin,
		StoragePath: filepath.Join(b.cfg.StoragePath, "bridge"),
	}, b.bridge.Accessory, systems...)
	if err != nil {
		return errors.Wrap(err, "creating HAP transport for the bridge")
	}
	b.transports = append(b.transports, bridge)

	for i, cam := range b.cameras {
		t, err := hc.NewIPTransport(hc.Config{
			Pin:         b.cfg.Pin,
			StoragePath: filepath.Join(b.cfg.StoragePath, fmt.Sprintf("camera-%x", cam.ID)),
		}, cam.Accessory)
		if err != nil {
			return errors.Wrapf(err, "creating HAP transport for %s", cam.Info.Name.GetValue())
		}

		snapper := b.snappers[i]
		name := cam.Info.Name.GetValue()
		t.CameraSnapshotReq = func(width, height uint) (*image.Image, error) {
			if snapper == nil {
				return nil, errors.Errorf("%s cannot take snapshots", name)
			}
			img, err := Snapshot(ctx, snapper, width, height)
			if err != nil {
				logging.Logger(ctx).WithError(err).Errorf("snapshot for %s", name)
			}
			return img, err
		}

		b.transports = append(b.transports, t)
	}

	store.OnRefresh(func(*blink.AccountSnapshot) {
		b.Refresh(ctx)
	})

	b.mu.Lock()
	for _, t := range b.transports {
		go t.Start()
	}
	b.mu.Unlock()

	logging.Logger(ctx).Infof("publishing %d HomeKit transports", len(b.transports))

	return nil
}

// Stop waits for every transport to shut down
func (b *Bridge) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, t := range b.transports {
		<-t.Stop()
	}
	b.transports = nil
}
