package accessory

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/go-openapi/swag"
	"github.com/pkg/errors"

	"github.com/jake-scott/blink-homekit/internal/pkg/blink"
	"github.com/jake-scott/blink-homekit/internal/pkg/logging"
)

// Kind is the accessory category a table describes
type Kind string

const (
	KindSecuritySystem Kind = "security-system"
	KindCamera         Kind = "camera"
)

// Characteristic identifies one value exposed by an accessory
type Characteristic string

const (
	SecuritySystemCurrentState Characteristic = "SecuritySystemCurrentState"
	SecuritySystemTargetState  Characteristic = "SecuritySystemTargetState"
	OccupiedOn                 Characteristic = "OccupiedOn"

	CameraActive            Characteristic = "CameraActive"
	EventSnapshotsActive    Characteristic = "EventSnapshotsActive"
	PeriodicSnapshotsActive Characteristic = "PeriodicSnapshotsActive"
	MicrophoneMute          Characteristic = "MicrophoneMute"
	BatteryLevel            Characteristic = "BatteryLevel"
	ChargingState           Characteristic = "ChargingState"
	StatusLowBattery        Characteristic = "StatusLowBattery"
	MotionActivatedOn       Characteristic = "MotionActivatedOn"
	CurrentTemperature      Characteristic = "CurrentTemperature"
	TemperatureSensorActive Characteristic = "TemperatureSensorActive"
	MotionDetected          Characteristic = "MotionDetected"
	MotionSensorActive      Characteristic = "MotionSensorActive"
	PrivacyOn               Characteristic = "PrivacyOn"
	WifiStrength            Characteristic = "WifiStrength"
)

// HomeKit enumeration values
const (
	ChargingStateNotChargeable = 2

	BatteryLevelNormal = 0
	BatteryLevelLow    = 1
)

var (
	ErrUnknownCharacteristic = errors.New("unknown characteristic")
	ErrReadOnly              = errors.New("characteristic is read only")
	ErrInvalidValue          = errors.New("invalid characteristic value")
)

// Options are the presentation switches from the configuration
type Options struct {
	HideAwayModeSwitch bool
	HidePrivacySwitch  bool
}

type readFunc func(ctx context.Context) (interface{}, error)
type writeFunc func(ctx context.Context, v interface{}) error

type capability struct {
	desc  string
	read  readFunc
	write writeFunc
}

// Table maps characteristic IDs to the facade getters and setters backing
// them.  Hosts only ever talk to a device through its table.
type Table struct {
	ID   string
	Kind Kind

	device blink.Device
	caps   map[Characteristic]*capability
	order  []Characteristic

	mu   sync.Mutex
	last map[Characteristic]interface{}
}

func newTable(kind Kind, d blink.Device) *Table {
	return &Table{
		ID:     d.CanonicalID(),
		Kind:   kind,
		device: d,
		caps:   make(map[Characteristic]*capability),
		last:   make(map[Characteristic]interface{}),
	}
}

func (t *Table) add(id Characteristic, desc string, read readFunc, write writeFunc) {
	if _, ok := t.caps[id]; !ok {
		t.order = append(t.order, id)
	}
	t.caps[id] = &capability{desc: desc, read: read, write: write}
}

func constant(v interface{}) readFunc {
	return func(context.Context) (interface{}, error) {
		return v, nil
	}
}

func (t *Table) Name() string {
	return t.device.Name()
}

func (t *Table) Info() blink.AccessoryInfo {
	return t.device.Info()
}

func (t *Table) Device() blink.Device {
	return t.device
}

// IDs lists the characteristics in the order they were bound
func (t *Table) IDs() []Characteristic {
	return append([]Characteristic(nil), t.order...)
}

func (t *Table) Has(id Characteristic) bool {
	_, ok := t.caps[id]
	return ok
}

func (t *Table) Writable(id Characteristic) bool {
	c, ok := t.caps[id]
	return ok && c.write != nil
}

func (t *Table) lookup(id Characteristic) (*capability, error) {
	c, ok := t.caps[id]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownCharacteristic, "%s on %s", id, t.ID)
	}
	return c, nil
}

// Read returns the current value of a characteristic.  A value different
// from the last one read is logged.
func (t *Table) Read(ctx context.Context, id Characteristic) (interface{}, error) {
	c, err := t.lookup(id)
	if err != nil {
		return nil, err
	}

	v, err := c.read(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s for %s", c.desc, t.Name())
	}

	t.mu.Lock()
	prev, seen := t.last[id]
	t.last[id] = v
	t.mu.Unlock()

	if !seen || !reflect.DeepEqual(prev, v) {
		logging.Logger(ctx).Infof("%s for %s is: %v", c.desc, t.Name(), v)
	}

	return v, nil
}

// ReadAll reads every characteristic.  Failed reads are left out and the
// first error is returned alongside the values that could be read.
func (t *Table) ReadAll(ctx context.Context) (map[Characteristic]interface{}, error) {
	values := make(map[Characteristic]interface{}, len(t.order))
	var first error
	for _, id := range t.order {
		v, err := t.Read(ctx, id)
		if err != nil {
			if first == nil {
				first = err
			}
			continue
		}
		values[id] = v
	}
	return values, first
}

// Write converts v to the characteristic's type and calls the setter
func (t *Table) Write(ctx context.Context, id Characteristic, v interface{}) error {
	c, err := t.lookup(id)
	if err != nil {
		return err
	}
	if c.write == nil {
		return errors.Wrapf(ErrReadOnly, "%s on %s", id, t.ID)
	}

	logging.Logger(ctx).Debugf("setting %s for %s to %v", c.desc, t.Name(), v)
	if err := c.write(ctx, v); err != nil {
		return errors.Wrapf(err, "setting %s for %s", c.desc, t.Name())
	}

	return nil
}

// TargetStates are the security system targets a Blink network can take.
// Blink has no night mode.
var TargetStates = []blink.SecurityState{blink.StayArm, blink.AwayArm, blink.Disarmed}

func ValidTargetState(i int) bool {
	for _, st := range TargetStates {
		if i == int(st) {
			return true
		}
	}
	return false
}

// ForNetwork binds the security system panel and the occupied switch
func ForNetwork(n *blink.Network, opts Options) *Table {
	t := newTable(KindSecuritySystem, n)

	t.add(SecuritySystemCurrentState, "Armed (Current)", func(ctx context.Context) (interface{}, error) {
		st, err := n.ArmedState(ctx)
		return int(st), err
	}, nil)

	t.add(SecuritySystemTargetState, "Armed (Target)", func(ctx context.Context) (interface{}, error) {
		st, err := n.ArmedState(ctx)
		// the target cannot be triggered
		if st == blink.AlarmTriggered {
			st = blink.AwayArm
		}
		return int(st), err
	}, func(ctx context.Context, v interface{}) error {
		i, err := toInt(v)
		if err != nil {
			return err
		}
		if !ValidTargetState(i) {
			return errors.Wrapf(ErrInvalidValue, "target state %d", i)
		}
		return n.SetTargetArmed(ctx, blink.SecurityState(i))
	})

	if !opts.HideAwayModeSwitch {
		t.add(OccupiedOn, "Occupied Mode", func(ctx context.Context) (interface{}, error) {
			return n.Occupied(ctx)
		}, func(ctx context.Context, v interface{}) error {
			b, err := toBool(v)
			if err != nil {
				return err
			}
			return n.SetOccupied(ctx, b)
		})
	}

	return t
}

// ForCamera binds the operating mode, microphone, battery, switches and
// sensors of a camera
func ForCamera(c *blink.Camera, opts Options) *Table {
	t := newTable(KindCamera, c)

	enabled := func(context.Context) (interface{}, error) {
		return c.Enabled(), nil
	}
	setEnabled := func(ctx context.Context, v interface{}) error {
		b, err := toBool(v)
		if err != nil {
			return err
		}
		return c.SetEnabled(ctx, b)
	}
	privacy := func(ctx context.Context) (interface{}, error) {
		return c.PrivacyMode(ctx)
	}
	setPrivacy := func(ctx context.Context, v interface{}) error {
		b, err := toBool(v)
		if err != nil {
			return err
		}
		return c.SetPrivacyMode(ctx, b)
	}

	t.add(CameraActive, "Camera Active", enabled, setEnabled)
	t.add(EventSnapshotsActive, "Event Snapshots", enabled, setEnabled)
	t.add(PeriodicSnapshotsActive, "Privacy Mode", privacy, setPrivacy)

	t.add(MicrophoneMute, "Microphone", constant(false), nil)

	t.add(BatteryLevel, "Battery Level", func(ctx context.Context) (interface{}, error) {
		return c.Battery(ctx)
	}, nil)
	t.add(ChargingState, "Battery State", constant(ChargingStateNotChargeable), nil)
	t.add(StatusLowBattery, "Battery LowBattery", func(context.Context) (interface{}, error) {
		if c.LowBattery() {
			return BatteryLevelLow, nil
		}
		return BatteryLevelNormal, nil
	}, nil)

	t.add(MotionActivatedOn, "Enabled", enabled, setEnabled)

	t.add(CurrentTemperature, "Temperature", func(context.Context) (interface{}, error) {
		return c.Temperature(), nil
	}, nil)
	t.add(TemperatureSensorActive, "Temperature Sensor Active", constant(true), nil)

	t.add(MotionDetected, "Motion", func(context.Context) (interface{}, error) {
		return c.MotionDetected(), nil
	}, nil)
	t.add(MotionSensorActive, "Motion Sensor Active", func(context.Context) (interface{}, error) {
		return c.MotionActive(), nil
	}, nil)

	t.add(WifiStrength, "Wifi Strength", func(ctx context.Context) (interface{}, error) {
		return c.WifiStrength(ctx)
	}, nil)

	if !opts.HidePrivacySwitch {
		t.add(PrivacyOn, "Privacy Mode", privacy, setPrivacy)
	}

	return t
}

// ForStore builds a table per facade, networks first, leaving out devices
// the filter excludes
func ForStore(s *blink.Store, opts Options, filter *Filter) []*Table {
	tables := make([]*Table, 0)
	for _, n := range s.Networks() {
		if filter.Excluded(n) {
			continue
		}
		tables = append(tables, ForNetwork(n, opts))
	}
	for _, c := range s.Cameras() {
		if filter.Excluded(c) {
			continue
		}
		tables = append(tables, ForCamera(c, opts))
	}
	return tables
}

func toBool(v interface{}) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		r, err := swag.ConvertBool(b)
		if err != nil {
			return false, errors.Wrapf(ErrInvalidValue, "%q is not a boolean", b)
		}
		return r, nil
	}

	i, err := toInt(v)
	if err != nil {
		return false, errors.Wrapf(ErrInvalidValue, "%v is not a boolean", v)
	}
	return i != 0, nil
}

func toInt(v interface{}) (int, error) {
	switch i := v.(type) {
	case int:
		return i, nil
	case int8:
		return int(i), nil
	case int16:
		return int(i), nil
	case int32:
		return int(i), nil
	case int64:
		return int(i), nil
	case uint8:
		return int(i), nil
	case uint16:
		return int(i), nil
	case uint32:
		return int(i), nil
	case float32:
		return int(i), nil
	case float64:
		if i != float64(int(i)) {
			return 0, errors.Wrapf(ErrInvalidValue, "%v is not an integer", i)
		}
		return int(i), nil
	case string:
		r, err := swag.ConvertInt64(i)
		if err != nil {
			return 0, errors.Wrapf(ErrInvalidValue, "%q is not an integer", i)
		}
		return int(r), nil
	case fmt.Stringer:
		return toInt(i.String())
	}

	return 0, errors.Wrapf(ErrInvalidValue, "%v (%T) is not an integer", v, v)
}
