package blink

import (
	"context"
	"testing"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/stretchr/testify/require"

	"github.com/jake-scott/blink-homekit/internal/pkg/blinkapi"
	"github.com/jake-scott/blink-homekit/mocks"
)

var testNow = time.Date(2023, 6, 15, 15, 0, 0, 0, time.UTC)

func ago(d time.Duration) strfmt.DateTime {
	return strfmt.DateTime(testNow.Add(-d))
}

// two networks, the first with two cameras
func fixture() *blinkapi.Homescreen {
	return &blinkapi.Homescreen{
		Networks: []*blinkapi.Network{
			{ID: 1, Name: "Home", UpdatedAt: ago(time.Hour)},
			{ID: 2, Name: "Cabin", UpdatedAt: ago(time.Hour)},
		},
		SyncModules: []*blinkapi.SyncModule{
			{ID: 100, NetworkID: 1, Serial: "SM-1", FirmwareVersion: "4.1.2", Type: "sm2"},
			{ID: 200, NetworkID: 2, Serial: "SM-2"},
		},
		Cameras: []*blinkapi.Camera{
			{
				ID: 10, NetworkID: 1, Name: "Door", Serial: "CAM-10", Enabled: true,
				Thumbnail: "/media/thumb/door_2023_06_15__14_30",
				UpdatedAt: ago(time.Hour),
				Signals:   blinkapi.Signals{Temp: 68, Battery: 3},
			},
			{
				ID: 11, NetworkID: 1, Name: "Yard", Serial: "CAM-11", Enabled: false,
				Thumbnail: "/media/thumb/yard",
				UpdatedAt: ago(time.Hour),
				Signals:   blinkapi.Signals{Temp: 50, Battery: 1},
			},
			{
				ID: 20, NetworkID: 2, Name: "Porch", Serial: "CAM-20", Enabled: true,
				UpdatedAt: ago(time.Hour),
			},
		},
	}
}

func testConfig() Config {
	return Config{
		CommandPollInterval: time.Millisecond,
		Now:                 func() time.Time { return testNow },
	}
}

func newTestStore(t *testing.T, hs *blinkapi.Homescreen, cfg Config) (*Store, *mocks.FakeBlinkClient) {
	client := mocks.FakeNewBlinkClient(hs)
	client.PollsToComplete = 1

	s := NewStore(client, NewMemoryOverrides(), cfg)
	_, err := s.Initialize(context.Background())
	require.NoError(t, err)

	return s, client
}

func networkFacade(t *testing.T, s *Store, id int64) *Network {
	d, err := s.Device(NetworkCanonicalID(id))
	require.NoError(t, err)
	return d.(*Network)
}

func cameraFacade(t *testing.T, s *Store, networkID, id int64) *Camera {
	d, err := s.Device(CameraCanonicalID(networkID, id))
	require.NoError(t, err)
	return d.(*Camera)
}
