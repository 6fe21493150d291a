package blink

import (
	"time"

	"github.com/jake-scott/blink-homekit/internal/pkg/blinkapi"
)

// NetworkInfo is a network from the homescreen together with its sync
// module and cameras
type NetworkInfo struct {
	*blinkapi.Network
	SyncModule *blinkapi.SyncModule
	Cameras    []*CameraInfo
}

// CameraInfo is a camera from the homescreen with a link back to the
// network that owns it.  Network is nil when the camera's network is not
// in the same snapshot.
type CameraInfo struct {
	*blinkapi.Camera
	Network *NetworkInfo
}

// AccountSnapshot is one homescreen fetch after cross linking.  It is
// never modified after it has been published by the store.
type AccountSnapshot struct {
	Networks    []*NetworkInfo
	Cameras     []*CameraInfo
	SyncModules []*blinkapi.SyncModule

	Generation uint64
	FetchedAt  time.Time

	networks map[int64]*NetworkInfo
	cameras  map[int64]*CameraInfo
}

func (s *AccountSnapshot) Network(id int64) *NetworkInfo {
	if s == nil {
		return nil
	}
	return s.networks[id]
}

func (s *AccountSnapshot) Camera(id int64) *CameraInfo {
	if s == nil {
		return nil
	}
	return s.cameras[id]
}

// link builds the cross referenced snapshot.  The wire objects are shared,
// not modified.  Where IDs repeat the first entry wins.
func link(hs *blinkapi.Homescreen) *AccountSnapshot {
	snap := &AccountSnapshot{
		networks: make(map[int64]*NetworkInfo),
		cameras:  make(map[int64]*CameraInfo),
	}
	if hs == nil {
		return snap
	}

	for _, sm := range hs.SyncModules {
		if sm != nil {
			snap.SyncModules = append(snap.SyncModules, sm)
		}
	}

	for _, n := range hs.Networks {
		if n == nil {
			continue
		}

		ni := &NetworkInfo{Network: n}
		for _, sm := range snap.SyncModules {
			if sm.NetworkID == n.ID {
				ni.SyncModule = sm
				break
			}
		}

		snap.Networks = append(snap.Networks, ni)
		if _, ok := snap.networks[n.ID]; !ok {
			snap.networks[n.ID] = ni
		}
	}

	for _, c := range hs.Cameras {
		if c == nil {
			continue
		}

		ci := &CameraInfo{Camera: c, Network: snap.networks[c.NetworkID]}
		if ci.Network != nil {
			ci.Network.Cameras = append(ci.Network.Cameras, ci)
		}

		snap.Cameras = append(snap.Cameras, ci)
		if _, ok := snap.cameras[c.ID]; !ok {
			snap.cameras[c.ID] = ci
		}
	}

	return snap
}
