package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-openapi/swag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"gopkg.in/yaml.v3"

	"github.com/jake-scott/blink-homekit/internal/pkg/accessory"
	"github.com/jake-scott/blink-homekit/internal/pkg/blink"
	"github.com/jake-scott/blink-homekit/internal/pkg/mqtt"
	"github.com/jake-scott/blink-homekit/internal/pkg/session"
	"github.com/jake-scott/blink-homekit/mocks"
)

func testConfig() *viper.Viper {
	v := viper.New()
	v.Set("blink.session-file", "/tmp/session.json")
	v.Set("blink.api-timeout", "30s")
	v.Set("camera-status-polling-seconds", 30)
	v.Set("homekit.pin", "0314-5154")
	v.Set("homekit.storage-path", "/tmp/hk")
	v.Set("http.port", 8080)
	v.Set("overrides.database", "/tmp/blink.db")
	return v
}

func TestLoadBridgeOptions(t *testing.T) {
	v := testConfig()
	v.Set("hide-privacy-switch", true)
	v.Set("homekit.exclude", []string{"Blink Garage"})

	opts, err := loadBridgeOptions(v)
	require.NoError(t, err)

	assert.Equal(t, "03145154", opts.HomeKit.Pin)
	assert.Equal(t, time.Second*30, opts.pollInterval())
	assert.Equal(t, time.Second*30, opts.storeConfig().StatusPollingInterval)
	assert.True(t, opts.Accessory.HidePrivacySwitch)
	assert.Equal(t, []string{"Blink Garage"}, opts.Exclude)
	assert.Nil(t, opts.MQTT)
}

func TestLoadBridgeOptionsInvalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  interface{}
		want string
	}{
		{"short pin", "homekit.pin", "1234", "Pin"},
		{"trivial pin", "homekit.pin", "11111111", "homekitpin"},
		{"poll interval", "camera-status-polling-seconds", 0, "PollSeconds"},
		{"port", "http.port", 70000, "HTTPPort"},
		{"no database", "overrides.database", "", "overrides.database"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := testConfig()
			v.Set(tt.key, tt.val)

			_, err := loadBridgeOptions(v)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadBridgeOptionsMQTT(t *testing.T) {
	v := testConfig()
	v.Set("mqtt.enabled", true)
	v.Set("mqtt.broker", "tcp://broker:1883")
	v.Set("mqtt.topic-prefix", "blink")

	_, err := loadBridgeOptions(v)
	require.Error(t, err, "discovery prefix missing")
	assert.Contains(t, err.Error(), "DiscoveryPrefix")

	v.Set("mqtt.discovery-prefix", "homeassistant")
	opts, err := loadBridgeOptions(v)
	require.NoError(t, err)
	require.NotNil(t, opts.MQTT)
	assert.Equal(t, "tcp://broker:1883", opts.MQTT.Broker)
	assert.Equal(t, mqtt.DefaultImageDistance, opts.MQTT.ImageDistance)
}

func TestLoadBridgeOptionsImageDistance(t *testing.T) {
	v := testConfig()
	v.Set("mqtt.enabled", true)
	v.Set("mqtt.broker", "tcp://broker:1883")
	v.Set("mqtt.topic-prefix", "blink")
	v.Set("mqtt.discovery-prefix", "homeassistant")

	v.Set("mqtt.image-distance", 12)
	opts, err := loadBridgeOptions(v)
	require.NoError(t, err)
	assert.Equal(t, 12, opts.MQTT.ImageDistance)

	v.Set("mqtt.image-distance", 0)
	_, err = loadBridgeOptions(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ImageDistance")
}

func TestOpenStoreExpiredSession(t *testing.T) {
	ctx := context.Background()
	fileName := filepath.Join(t.TempDir(), "session.json")

	_, err := openStore(ctx, fileName, time.Second, nil, blink.Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "login")

	state, err := session.LoadOrNew(fileName)
	require.NoError(t, err)
	require.NoError(t, state.SetToken(&oauth2.Token{AccessToken: "access", Expiry: time.Now().Add(-time.Hour)}))

	_, err = openStore(ctx, fileName, time.Second, nil, blink.Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
}

func TestOrphanedOverrides(t *testing.T) {
	ctx := context.Background()
	client := mocks.FakeNewBlinkClient(mocks.FakeHomescreen(time.Now()))
	store := blink.NewStore(client, nil, blink.Config{})
	_, err := store.Initialize(ctx)
	require.NoError(t, err)

	all := map[string]blink.Overrides{
		blink.NetworkCanonicalID(1):    {ForceOff: true},
		blink.CameraCanonicalID(1, 10): {PrivacyMode: swag.Bool(false)},
		blink.CameraCanonicalID(3, 30): {},
		blink.NetworkCanonicalID(9):    {Occupied: swag.Bool(false)},
	}
	assert.Equal(t, []string{"Blink:Network:3:Camera:30", "Blink:Network:9"}, orphanedOverrides(store, all))
}

func TestNoPersistNeedsNoDatabase(t *testing.T) {
	v := testConfig()
	v.Set("overrides.database", "")
	v.Set("overrides.no-persist", true)

	opts, err := loadBridgeOptions(v)
	require.NoError(t, err)
	assert.True(t, opts.NoPersist)
}

func TestPromptPIN(t *testing.T) {
	var out bytes.Buffer
	pin, err := promptPIN(strings.NewReader(" 123456 \n"), &out)
	require.NoError(t, err)
	assert.Equal(t, "123456", pin)
	assert.Contains(t, out.String(), "PIN")

	_, err = promptPIN(strings.NewReader("\n"), &out)
	assert.Error(t, err)
}

var testRows = []deviceRow{
	{
		ID:   "Blink:Network:1",
		Kind: accessory.KindSecuritySystem,
		Name: "Blink Home",
		Characteristics: map[string]interface{}{
			"SecuritySystemCurrentState": 3,
			"OccupiedOn":                 true,
		},
	},
}

func TestWriteDevicesTable(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, writeDevices(&out, testRows, ""))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.Contains(t, lines[1], "OccupiedOn=true SecuritySystemCurrentState=3")
}

func TestWriteDevicesYAML(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, writeDevices(&out, testRows, "yaml"))

	var rows []deviceRow
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "Blink Home", rows[0].Name)
	assert.Equal(t, 3, rows[0].Characteristics["SecuritySystemCurrentState"])
}

func TestVersion(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, doVersion(&out))
	assert.True(t, strings.HasPrefix(out.String(), "blink-homekit version "))
}
