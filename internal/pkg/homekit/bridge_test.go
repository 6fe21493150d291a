package homekit

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/brutella/hc/characteristic"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jake-scott/blink-homekit/internal/pkg/accessory"
	"github.com/jake-scott/blink-homekit/internal/pkg/blink"
	"github.com/jake-scott/blink-homekit/mocks"
)

var testNow = time.Date(2023, 6, 15, 15, 0, 0, 0, time.UTC)

func newStore(t *testing.T) *blink.Store {
	client := mocks.FakeNewBlinkClient(mocks.FakeHomescreen(testNow))
	client.PollsToComplete = 1

	s := blink.NewStore(client, nil, blink.Config{
		CommandPollInterval: time.Millisecond,
		Now:                 func() time.Time { return testNow },
	})
	_, err := s.Initialize(context.Background())
	require.NoError(t, err)
	return s
}

type fakeCamera struct {
	data []byte
}

func (f fakeCamera) Thumbnail(context.Context) ([]byte, error) {
	return f.data, nil
}

func TestSnapshotFits(t *testing.T) {
	src := imaging.New(640, 360, color.White)
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, src, imaging.JPEG))

	img, err := Snapshot(context.Background(), fakeCamera{buf.Bytes()}, 320, 320)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 320, 180), (*img).Bounds())

	img, err = Snapshot(context.Background(), fakeCamera{buf.Bytes()}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 640, (*img).Bounds().Dx())
}

func TestSnapshotPrivacyImage(t *testing.T) {
	img, err := Snapshot(context.Background(), fakeCamera{blink.PrivacyImage()}, 1280, 720)
	require.NoError(t, err)
	assert.NotNil(t, *img)
}

func TestSnapshotBadImage(t *testing.T) {
	_, err := Snapshot(context.Background(), fakeCamera{[]byte("not an image")}, 10, 10)
	assert.Error(t, err)
}

func TestCoerce(t *testing.T) {
	assert.Equal(t, 1, coerce(characteristic.FormatUInt8, true))
	assert.Equal(t, 0, coerce(characteristic.FormatUInt8, false))
	assert.Equal(t, -60, coerce(characteristic.FormatInt32, int64(-60)))
	assert.Equal(t, true, coerce(characteristic.FormatBool, 1))
	assert.Equal(t, 20.5, coerce(characteristic.FormatFloat, 20.5))
}

func TestAccessoryIDStable(t *testing.T) {
	a := accessoryID("Blink:Network:1")
	assert.Equal(t, a, accessoryID("Blink:Network:1"))
	assert.NotEqual(t, a, accessoryID("Blink:Network:2"))
	assert.NotEqual(t, uint64(1), a)
}

func TestNewBindsTables(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	tables := accessory.ForStore(s, accessory.Options{HidePrivacySwitch: true}, nil)
	b := New(ctx, Config{Pin: "00102003", StoragePath: t.TempDir()}, tables)

	require.Len(t, b.systems, 2)
	require.Len(t, b.cameras, 3)
	assert.NotNil(t, b.systems[0].Occupied)
	assert.Nil(t, b.cameras[0].Privacy)
	for _, snapper := range b.snappers {
		assert.NotNil(t, snapper)
	}

	b.Refresh(ctx)

	door := b.cameras[0]
	assert.Equal(t, "Blink Door", door.Info.Name.GetValue())
	assert.Equal(t, "CAM-10", door.Info.SerialNumber.GetValue())
	assert.Equal(t, 20.0, door.Temperature.CurrentTemperature.GetValue())
	assert.Equal(t, 1, door.OperatingMode.HomeKitCameraActive.GetValue())
	assert.Equal(t, 1, door.OperatingMode.PeriodicSnapshotsActive.GetValue())
	assert.Equal(t, true, door.MotionActivated.On.GetValue())
	assert.Equal(t, 2, door.Battery.ChargingState.GetValue())

	yard := b.cameras[1]
	assert.Equal(t, 0, yard.OperatingMode.HomeKitCameraActive.GetValue())
	assert.Equal(t, 1, yard.Battery.StatusLowBattery.GetValue())

	home := b.systems[0]
	assert.Equal(t, int(blink.StayArm), home.SecuritySystem.SecuritySystemCurrentState.GetValue())
	assert.Equal(t, true, home.Occupied.On.GetValue())
	assert.Equal(t, []int{0, 1, 3}, home.SecuritySystem.SecuritySystemTargetState.ValidVals)
}

func TestValidPin(t *testing.T) {
	assert.True(t, ValidPin("03145154"))
	assert.False(t, ValidPin("11111111"))
	assert.False(t, ValidPin("12345678"))
	assert.False(t, ValidPin(""))
}
