//go:build !release

package mocks

import (
	"time"

	"github.com/go-openapi/strfmt"

	"github.com/jake-scott/blink-homekit/internal/pkg/blinkapi"
)

// FakeHomescreen is a small account as it looked at now: network 1 "Home"
// with cameras 10 "Door" and 11 "Yard", network 2 "Cabin" with camera 20
// "Porch".  Everything was last updated an hour earlier and nothing is
// armed.
func FakeHomescreen(now time.Time) *blinkapi.Homescreen {
	hourAgo := strfmt.DateTime(now.Add(-time.Hour))

	return &blinkapi.Homescreen{
		Networks: []*blinkapi.Network{
			{ID: 1, Name: "Home", UpdatedAt: hourAgo},
			{ID: 2, Name: "Cabin", UpdatedAt: hourAgo},
		},
		SyncModules: []*blinkapi.SyncModule{
			{ID: 100, NetworkID: 1, Serial: "SM-1", FirmwareVersion: "4.1.2", Type: "sm2"},
			{ID: 200, NetworkID: 2, Serial: "SM-2"},
		},
		Cameras: []*blinkapi.Camera{
			{
				ID: 10, NetworkID: 1, Name: "Door", Serial: "CAM-10", Enabled: true,
				Thumbnail: "/media/thumb/door",
				UpdatedAt: hourAgo,
				Signals:   blinkapi.Signals{Temp: 68, Battery: 3, Wifi: 4},
			},
			{
				ID: 11, NetworkID: 1, Name: "Yard", Serial: "CAM-11",
				Thumbnail: "/media/thumb/yard",
				UpdatedAt: hourAgo,
				Signals:   blinkapi.Signals{Temp: 50, Battery: 1, Wifi: 2},
			},
			{
				ID: 20, NetworkID: 2, Name: "Porch", Serial: "CAM-20", Enabled: true,
				UpdatedAt: hourAgo,
			},
		},
	}
}
