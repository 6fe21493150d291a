package blink

import (
	"context"
	"sync"

	"github.com/jake-scott/blink-homekit/internal/pkg/blinkapi"
	"github.com/jake-scott/blink-homekit/internal/pkg/logging"
)

// SecurityState uses the HomeKit security system numbering for both the
// current and target state
type SecurityState int

const (
	StayArm SecurityState = iota
	AwayArm
	NightArm
	Disarmed
	AlarmTriggered
)

func (s SecurityState) String() string {
	switch s {
	case StayArm:
		return "stay-arm"
	case AwayArm:
		return "away-arm"
	case NightArm:
		return "night-arm"
	case Disarmed:
		return "disarmed"
	case AlarmTriggered:
		return "alarm-triggered"
	}
	return "unknown"
}

// Network is the facade for a network and its sync module
type Network struct {
	store *Store
	id    int64

	// serialises override read-modify-write
	omu sync.Mutex
}

func newNetwork(s *Store, id int64) *Network {
	return &Network{store: s, id: id}
}

func (n *Network) ID() int64 {
	return n.id
}

func (n *Network) CanonicalID() string {
	return NetworkCanonicalID(n.id)
}

// Snapshot is the network in the current snapshot, nil if it has gone
func (n *Network) Snapshot() *NetworkInfo {
	return n.store.Snapshot().Network(n.id)
}

func (n *Network) Name() string {
	if info := n.Snapshot(); info != nil {
		return "Blink " + info.Name
	}
	return "Blink"
}

func (n *Network) Info() AccessoryInfo {
	ai := AccessoryInfo{
		Name:         n.Name(),
		Manufacturer: "Blink",
		Model:        "Unknown",
		Serial:       "None",
		Firmware:     "Unknown",
	}

	info := n.Snapshot()
	if info == nil || info.SyncModule == nil {
		return ai
	}

	sm := info.SyncModule
	if sm.Type != "" {
		ai.Model = sm.Type
	}
	if sm.Serial != "" {
		ai.Serial = sm.Serial
	}
	if sm.FirmwareVersion != "" {
		ai.Firmware = sm.FirmwareVersion
	}
	return ai
}

func (n *Network) Armed() bool {
	info := n.Snapshot()
	return info != nil && info.Armed
}

// ArmedState is AlarmTriggered when the network and one of its cameras
// were both updated in the last 90 seconds while armed, AwayArm when
// otherwise armed, and when not armed Disarmed if forced off or StayArm.
func (n *Network) ArmedState(ctx context.Context) (SecurityState, error) {
	info := n.Snapshot()
	if info != nil && info.Armed {
		threshold := n.store.now().Add(-alarmWindow)
		if blinkapi.Time(info.UpdatedAt).After(threshold) {
			for _, c := range info.Cameras {
				if blinkapi.Time(c.UpdatedAt).After(threshold) {
					return AlarmTriggered, nil
				}
			}
		}
		return AwayArm, nil
	}

	o, err := n.store.loadOverrides(ctx, n.CanonicalID())
	if err != nil {
		return StayArm, err
	}
	if o.ForceOff {
		return Disarmed, nil
	}
	return StayArm, nil
}

// SetTargetArmed arms or disarms the network when the away state differs
// from the target, then records whether the target was a disarm
func (n *Network) SetTargetArmed(ctx context.Context, target SecurityState) error {
	away := target == AwayArm
	if n.Armed() != away {
		logging.Logger(ctx).Infof("setting %s armed=%t", n.Name(), away)
		if err := n.store.SetArmedState(ctx, n.id, away); err != nil {
			return err
		}
	}

	return n.updateOverrides(ctx, func(o *Overrides) {
		o.ForceOff = target == Disarmed
	})
}

// Occupied is the away mode switch, on unless it has been turned off
func (n *Network) Occupied(ctx context.Context) (bool, error) {
	o, err := n.store.loadOverrides(ctx, n.CanonicalID())
	if err != nil {
		return true, err
	}
	return o.IsOccupied(), nil
}

// SetOccupied records the switch and, unless the network is forced off,
// stay-arms when occupied and away-arms when not
func (n *Network) SetOccupied(ctx context.Context, occupied bool) error {
	var forceOff bool
	err := n.updateOverrides(ctx, func(o *Overrides) {
		o.Occupied = &occupied
		forceOff = o.ForceOff
	})
	if err != nil {
		return err
	}

	if forceOff {
		return nil
	}

	target := AwayArm
	if occupied {
		target = StayArm
	}
	return n.SetTargetArmed(ctx, target)
}

func (n *Network) updateOverrides(ctx context.Context, fn func(*Overrides)) error {
	n.omu.Lock()
	defer n.omu.Unlock()

	o, err := n.store.loadOverrides(ctx, n.CanonicalID())
	if err != nil {
		return err
	}
	fn(&o)
	return n.store.saveOverrides(ctx, n.CanonicalID(), o)
}
