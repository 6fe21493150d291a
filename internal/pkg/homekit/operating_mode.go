package homekit

import (
	"github.com/brutella/hc/characteristic"
	"github.com/brutella/hc/service"
)

// HomeKit types hc does not define
const (
	TypeCameraOperatingMode     = "21A"
	TypeHomeKitCameraActive     = "21B"
	TypeEventSnapshotsActive    = "223"
	TypePeriodicSnapshotsActive = "225"
)

// CameraOperatingMode lets the Home app turn a camera and its snapshots
// on and off
type CameraOperatingMode struct {
	*service.Service

	HomeKitCameraActive     *characteristic.Int
	EventSnapshotsActive    *characteristic.Int
	PeriodicSnapshotsActive *characteristic.Int
}

func newToggle(typ, description string) *characteristic.Int {
	c := characteristic.NewInt(typ)
	c.Format = characteristic.FormatUInt8
	c.Perms = []string{characteristic.PermRead, characteristic.PermWrite, characteristic.PermEvents}
	c.Description = description
	c.MinValue = 0
	c.MaxValue = 1
	c.SetValue(1)
	return c
}

func NewCameraOperatingMode() *CameraOperatingMode {
	svc := CameraOperatingMode{}
	svc.Service = service.New(TypeCameraOperatingMode)

	svc.HomeKitCameraActive = newToggle(TypeHomeKitCameraActive, "HomeKit Camera Active")
	svc.AddCharacteristic(svc.HomeKitCameraActive.Characteristic)

	svc.EventSnapshotsActive = newToggle(TypeEventSnapshotsActive, "Event Snapshots Active")
	svc.AddCharacteristic(svc.EventSnapshotsActive.Characteristic)

	svc.PeriodicSnapshotsActive = newToggle(TypePeriodicSnapshotsActive, "Periodic Snapshots Active")
	svc.AddCharacteristic(svc.PeriodicSnapshotsActive.Characteristic)

	return &svc
}
