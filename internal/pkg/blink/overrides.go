package blink

import (
	"context"
	"fmt"
	"sync"
)

// Overrides is the locally held state of an accessory.  It is not part of
// any snapshot and has to survive restarts.
type Overrides struct {
	// ForceOff reports the network as disarmed rather than stay-armed
	ForceOff bool `json:"force_off"`

	// unset means on
	Occupied    *bool `json:"occupied,omitempty"`
	PrivacyMode *bool `json:"privacy_mode,omitempty"`
}

func (o Overrides) IsOccupied() bool {
	if o.Occupied == nil {
		return true
	}
	return *o.Occupied
}

func (o Overrides) IsPrivate() bool {
	if o.PrivacyMode == nil {
		return true
	}
	return *o.PrivacyMode
}

// OverrideStore persists Overrides keyed by accessory canonical ID.  Load
// of an unknown ID returns the zero Overrides.
type OverrideStore interface {
	Load(ctx context.Context, canonicalID string) (Overrides, error)
	Save(ctx context.Context, canonicalID string, o Overrides) error
}

func NetworkCanonicalID(networkID int64) string {
	return fmt.Sprintf("Blink:Network:%d", networkID)
}

func CameraCanonicalID(networkID, cameraID int64) string {
	return fmt.Sprintf("Blink:Network:%d:Camera:%d", networkID, cameraID)
}

// MemoryOverrides keeps overrides for the life of the process
type MemoryOverrides struct {
	mu    sync.Mutex
	items map[string]Overrides
}

func NewMemoryOverrides() *MemoryOverrides {
	return &MemoryOverrides{items: make(map[string]Overrides)}
}

func (m *MemoryOverrides) Load(_ context.Context, canonicalID string) (Overrides, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items[canonicalID], nil
}

func (m *MemoryOverrides) Save(_ context.Context, canonicalID string, o Overrides) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[canonicalID] = o
	return nil
}
