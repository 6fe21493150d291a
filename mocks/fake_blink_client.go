//go:build !release

package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jake-scott/blink-homekit/internal/pkg/blinkapi"
)

// FakeBlinkClient is an in-memory Blink account.  Commands complete after
// PollsToComplete status polls.
type FakeBlinkClient struct {
	mu sync.Mutex

	Homescreen      *blinkapi.Homescreen
	Statuses        map[int64]*blinkapi.CameraStatus
	Media           []*blinkapi.Media
	Images          map[string][]byte
	PollsToComplete int

	// errors returned by the matching calls when set
	SnapshotErr error
	StatusErr   error
	CommandErr  error

	// OnThumbnail runs, with the lock held, when a thumbnail update is
	// requested so tests can change f.Homescreen the way the camera would
	OnThumbnail func(f *FakeBlinkClient, networkID, cameraID int64)

	nextCommand int64
	polls       map[int64]int
	calls       map[string]int
	maxAges     []time.Duration
}

func FakeNewBlinkClient(hs *blinkapi.Homescreen) *FakeBlinkClient {
	return &FakeBlinkClient{
		Homescreen: hs,
		Statuses:   make(map[int64]*blinkapi.CameraStatus),
		Images:     make(map[string][]byte),
		polls:      make(map[int64]int),
		calls:      make(map[string]int),
	}
}

func (f *FakeBlinkClient) record(name string) {
	f.calls[name]++
}

// Calls is the number of times the named method was called
func (f *FakeBlinkClient) Calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

// MaxAges are the staleness hints passed to AccountSnapshot, in order
func (f *FakeBlinkClient) MaxAges() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.maxAges...)
}

// Update changes the account under the lock
func (f *FakeBlinkClient) Update(fn func(hs *blinkapi.Homescreen)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f.Homescreen)
}

func (f *FakeBlinkClient) WithTimeout(time.Duration) blinkapi.Client {
	return f
}

func (f *FakeBlinkClient) Login(context.Context, blinkapi.Credentials) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("Login")
	return nil
}

func (f *FakeBlinkClient) VerifyPIN(context.Context, blinkapi.Credentials, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("VerifyPIN")
	return nil
}

func (f *FakeBlinkClient) AccountSnapshot(_ context.Context, maxAge time.Duration) (*blinkapi.Homescreen, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("AccountSnapshot")
	f.maxAges = append(f.maxAges, maxAge)

	if f.SnapshotErr != nil {
		return nil, f.SnapshotErr
	}

	return copyHomescreen(f.Homescreen), nil
}

func (f *FakeBlinkClient) CommandStatus(_ context.Context, networkID, commandID int64) (*blinkapi.Command, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CommandStatus")

	if f.StatusErr != nil {
		return nil, f.StatusErr
	}

	f.polls[commandID]++
	return &blinkapi.Command{
		ID:        commandID,
		NetworkID: networkID,
		Complete:  f.polls[commandID] >= f.PollsToComplete,
	}, nil
}

// Polls is the number of status polls seen for a command
func (f *FakeBlinkClient) Polls(commandID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.polls[commandID]
}

func (f *FakeBlinkClient) command(name string, networkID int64) (*blinkapi.Command, error) {
	f.record(name)
	if f.CommandErr != nil {
		return nil, f.CommandErr
	}

	f.nextCommand++
	return &blinkapi.Command{ID: f.nextCommand, NetworkID: networkID}, nil
}

func (f *FakeBlinkClient) setArmed(networkID int64, armed bool) {
	for _, n := range f.Homescreen.Networks {
		if n.ID == networkID {
			n.Armed = armed
		}
	}
}

func (f *FakeBlinkClient) setEnabled(cameraID int64, enabled bool) {
	for _, c := range f.Homescreen.Cameras {
		if c.ID == cameraID {
			c.Enabled = enabled
		}
	}
}

func (f *FakeBlinkClient) ArmNetwork(_ context.Context, networkID int64) (*blinkapi.Command, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setArmed(networkID, true)
	return f.command("ArmNetwork", networkID)
}

func (f *FakeBlinkClient) DisarmNetwork(_ context.Context, networkID int64) (*blinkapi.Command, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setArmed(networkID, false)
	return f.command("DisarmNetwork", networkID)
}

func (f *FakeBlinkClient) EnableCameraMotion(_ context.Context, networkID, cameraID int64) (*blinkapi.Command, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setEnabled(cameraID, true)
	return f.command("EnableCameraMotion", networkID)
}

func (f *FakeBlinkClient) DisableCameraMotion(_ context.Context, networkID, cameraID int64) (*blinkapi.Command, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setEnabled(cameraID, false)
	return f.command("DisableCameraMotion", networkID)
}

func (f *FakeBlinkClient) UpdateCameraThumbnail(_ context.Context, networkID, cameraID int64) (*blinkapi.Command, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.OnThumbnail != nil {
		f.OnThumbnail(f, networkID, cameraID)
	}
	return f.command("UpdateCameraThumbnail", networkID)
}

func (f *FakeBlinkClient) CameraStatus(_ context.Context, _, cameraID int64, _ time.Duration) (*blinkapi.CameraStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CameraStatus")

	if st, ok := f.Statuses[cameraID]; ok {
		return st, nil
	}
	return &blinkapi.CameraStatus{CameraID: cameraID}, nil
}

func (f *FakeBlinkClient) MediaChanges(context.Context) (*blinkapi.MediaChanges, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("MediaChanges")

	return &blinkapi.MediaChanges{Media: append([]*blinkapi.Media(nil), f.Media...)}, nil
}

func (f *FakeBlinkClient) FetchBinary(_ context.Context, path string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("FetchBinary")

	data, ok := f.Images[path]
	if !ok {
		return nil, &blinkapi.APIError{StatusCode: 404, Body: fmt.Sprintf("no image %s", path)}
	}
	return data, nil
}

// copyHomescreen hands out objects that later fake commands do not touch,
// as a real client would
func copyHomescreen(hs *blinkapi.Homescreen) *blinkapi.Homescreen {
	out := &blinkapi.Homescreen{}
	for _, n := range hs.Networks {
		cp := *n
		out.Networks = append(out.Networks, &cp)
	}
	for _, sm := range hs.SyncModules {
		cp := *sm
		out.SyncModules = append(out.SyncModules, &cp)
	}
	for _, c := range hs.Cameras {
		cp := *c
		out.Cameras = append(out.Cameras, &cp)
	}
	return out
}
