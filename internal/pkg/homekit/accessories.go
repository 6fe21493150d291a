package homekit

import (
	"context"
	"hash/fnv"
	"net"

	hcaccessory "github.com/brutella/hc/accessory"
	"github.com/brutella/hc/characteristic"
	"github.com/brutella/hc/service"

	"github.com/jake-scott/blink-homekit/internal/pkg/accessory"
	"github.com/jake-scott/blink-homekit/internal/pkg/blink"
	"github.com/jake-scott/blink-homekit/internal/pkg/logging"
	"github.com/jake-scott/blink-homekit/internal/pkg/metrics"
)

// binding ties one HomeKit characteristic to a capability table entry
type binding struct {
	table *accessory.Table
	id    accessory.Characteristic
	c     *characteristic.Characteristic
}

// accessoryID is stable across restarts so paired controllers keep their
// room and scene assignments
func accessoryID(canonicalID string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(canonicalID))
	// 1 is the bridge
	return h.Sum64() | 2
}

func accessoryInfo(t *accessory.Table) hcaccessory.Info {
	info := t.Info()
	return hcaccessory.Info{
		ID:               accessoryID(t.ID),
		Name:             info.Name,
		Manufacturer:     info.Manufacturer,
		Model:            info.Model,
		SerialNumber:     info.Serial,
		FirmwareRevision: info.Firmware,
	}
}

// coerce converts a table value to what the characteristic format expects
func coerce(format string, v interface{}) interface{} {
	switch format {
	case characteristic.FormatUInt8, characteristic.FormatInt32, characteristic.FormatUInt16, characteristic.FormatUInt32:
		if b, ok := v.(bool); ok {
			if b {
				return 1
			}
			return 0
		}
		if i, ok := v.(int64); ok {
			return int(i)
		}
	case characteristic.FormatBool:
		if i, ok := v.(int); ok {
			return i != 0
		}
	}
	return v
}

// bind hooks up reads, and writes when the table allows them.  Returns
// nil when the table does not carry id.
func bind(ctx context.Context, t *accessory.Table, id accessory.Characteristic, c *characteristic.Characteristic) *binding {
	if !t.Has(id) {
		return nil
	}

	b := &binding{table: t, id: id, c: c}

	c.OnValueGet(func() interface{} {
		v, err := t.Read(ctx, id)
		if err != nil {
			logging.Logger(ctx).WithError(err).Warnf("reading %s of %s, keeping last value", id, t.Name())
			return c.Value
		}
		return coerce(c.Format, v)
	})

	if t.Writable(id) {
		c.OnValueUpdateFromConn(func(conn net.Conn, _ *characteristic.Characteristic, newValue, _ interface{}) {
			host := "unknown"
			if conn != nil {
				host = conn.RemoteAddr().String()
			}
			err := t.Write(ctx, id, newValue)
			metrics.CharacteristicWrites.WithLabelValues("homekit", string(id), metrics.Result(err)).Inc()
			if err != nil {
				logging.Logger(ctx).WithError(err).Errorf("write of %s from %s failed", id, host)
			}
		})
	}

	return b
}

// push re-reads the value and notifies subscribed controllers
func (b *binding) push(ctx context.Context) {
	v, err := b.table.Read(ctx, b.id)
	if err != nil {
		logging.Logger(ctx).WithError(err).Warnf("refreshing %s of %s", b.id, b.table.Name())
		return
	}
	b.c.UpdateValue(coerce(b.c.Format, v))
}

type binder struct {
	ctx      context.Context
	bindings []*binding
}

func (bd *binder) bind(t *accessory.Table, id accessory.Characteristic, c *characteristic.Characteristic) {
	if b := bind(bd.ctx, t, id, c); b != nil {
		bd.bindings = append(bd.bindings, b)
	}
}

func namedSwitch(name string) *service.Switch {
	sw := service.NewSwitch()
	n := characteristic.NewName()
	n.SetValue(name)
	sw.AddCharacteristic(n.Characteristic)
	return sw
}

func statusActive(svc *service.Service) *characteristic.StatusActive {
	sa := characteristic.NewStatusActive()
	svc.AddCharacteristic(sa.Characteristic)
	return sa
}

// SecuritySystem is a network panel with its optional occupied switch
type SecuritySystem struct {
	*hcaccessory.Accessory

	SecuritySystem *service.SecuritySystem
	Occupied       *service.Switch
}

func (bd *binder) securitySystem(t *accessory.Table) *SecuritySystem {
	acc := SecuritySystem{}
	acc.Accessory = hcaccessory.New(accessoryInfo(t), hcaccessory.TypeSecuritySystem)

	acc.SecuritySystem = service.NewSecuritySystem()
	acc.AddService(acc.SecuritySystem.Service)
	bd.bind(t, accessory.SecuritySystemCurrentState, acc.SecuritySystem.SecuritySystemCurrentState.Characteristic)
	bd.bind(t, accessory.SecuritySystemTargetState, acc.SecuritySystem.SecuritySystemTargetState.Characteristic)
	// triggered is a current state only and there is no night mode
	target := acc.SecuritySystem.SecuritySystemTargetState
	target.MaxValue = int(blink.Disarmed)
	target.ValidVals = targetStateValues()

	if t.Has(accessory.OccupiedOn) {
		acc.Occupied = namedSwitch("Occupied")
		acc.AddService(acc.Occupied.Service)
		bd.bind(t, accessory.OccupiedOn, acc.Occupied.On.Characteristic)
	}

	return &acc
}

// Camera carries every camera service apart from streaming
type Camera struct {
	*hcaccessory.Camera

	OperatingMode   *CameraOperatingMode
	Microphone      *service.Microphone
	Battery         *service.BatteryService
	MotionActivated *service.Switch
	Temperature     *service.TemperatureSensor
	Motion          *service.MotionSensor
	Privacy         *service.Switch
}

func (bd *binder) camera(t *accessory.Table) *Camera {
	acc := Camera{}
	acc.Camera = hcaccessory.NewCamera(accessoryInfo(t))

	acc.OperatingMode = NewCameraOperatingMode()
	acc.AddService(acc.OperatingMode.Service)
	bd.bind(t, accessory.CameraActive, acc.OperatingMode.HomeKitCameraActive.Characteristic)
	bd.bind(t, accessory.EventSnapshotsActive, acc.OperatingMode.EventSnapshotsActive.Characteristic)
	bd.bind(t, accessory.PeriodicSnapshotsActive, acc.OperatingMode.PeriodicSnapshotsActive.Characteristic)

	acc.Microphone = service.NewMicrophone()
	acc.AddService(acc.Microphone.Service)
	bd.bind(t, accessory.MicrophoneMute, acc.Microphone.Mute.Characteristic)

	acc.Battery = service.NewBatteryService()
	acc.AddService(acc.Battery.Service)
	bd.bind(t, accessory.BatteryLevel, acc.Battery.BatteryLevel.Characteristic)
	bd.bind(t, accessory.ChargingState, acc.Battery.ChargingState.Characteristic)
	bd.bind(t, accessory.StatusLowBattery, acc.Battery.StatusLowBattery.Characteristic)

	acc.MotionActivated = namedSwitch("Motion Activated")
	acc.AddService(acc.MotionActivated.Service)
	bd.bind(t, accessory.MotionActivatedOn, acc.MotionActivated.On.Characteristic)

	acc.Temperature = service.NewTemperatureSensor()
	acc.AddService(acc.Temperature.Service)
	bd.bind(t, accessory.CurrentTemperature, acc.Temperature.CurrentTemperature.Characteristic)
	bd.bind(t, accessory.TemperatureSensorActive, statusActive(acc.Temperature.Service).Characteristic)

	acc.Motion = service.NewMotionSensor()
	acc.AddService(acc.Motion.Service)
	bd.bind(t, accessory.MotionDetected, acc.Motion.MotionDetected.Characteristic)
	bd.bind(t, accessory.MotionSensorActive, statusActive(acc.Motion.Service).Characteristic)

	if t.Has(accessory.PrivacyOn) {
		acc.Privacy = namedSwitch("Privacy Mode")
		acc.AddService(acc.Privacy.Service)
		bd.bind(t, accessory.PrivacyOn, acc.Privacy.On.Characteristic)
	}

	return &acc
}

func targetStateValues() []int {
	vals := make([]int, 0, len(accessory.TargetStates))
	for _, st := range accessory.TargetStates {
		vals = append(vals, int(st))
	}
	return vals
}
