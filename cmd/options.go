package cmd

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/go-playground/validator.v9"

	"github.com/jake-scott/blink-homekit/internal/pkg/accessory"
	"github.com/jake-scott/blink-homekit/internal/pkg/blink"
	"github.com/jake-scott/blink-homekit/internal/pkg/homekit"
	"github.com/jake-scott/blink-homekit/internal/pkg/mqtt"
)

// bridgeOptions is the validated view of the configuration used by the
// bridge command
type bridgeOptions struct {
	SessionFile string        `validate:"required"`
	APITimeout  time.Duration `validate:"gt=0"`

	PollSeconds                int `validate:"gte=1"`
	AvoidThumbnailBatteryDrain bool

	Accessory accessory.Options
	Exclude   []string

	HomeKit homekit.Config

	// nil unless enabled
	MQTT *mqtt.Config

	HTTPPort        int `validate:"gte=0,lte=65535"`
	CorsOrigins     []string
	GracefulTimeout time.Duration `validate:"gte=0"`
	ReadTimeout     time.Duration `validate:"gte=0"`
	WriteTimeout    time.Duration `validate:"gte=0"`
	LogRequests     bool

	Database  string
	NoPersist bool
}

func newValidator() *validator.Validate {
	v := validator.New()
	errPanic(v.RegisterValidation("homekitpin", func(fl validator.FieldLevel) bool {
		return homekit.ValidPin(fl.Field().String())
	}))
	return v
}

// validationError turns validator failures into one readable error naming
// each bad field
func validationError(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, e.Namespace()+" fails "+e.Tag())
	}
	return errors.Errorf("invalid configuration: %s", strings.Join(msgs, ", "))
}

func loadBridgeOptions(cfg *viper.Viper) (*bridgeOptions, error) {
	opts := &bridgeOptions{
		SessionFile:                cfg.GetString("blink.session-file"),
		APITimeout:                 cfg.GetDuration("blink.api-timeout"),
		PollSeconds:                cfg.GetInt("camera-status-polling-seconds"),
		AvoidThumbnailBatteryDrain: cfg.GetBool("avoid-thumbnail-battery-drain"),
		Accessory: accessory.Options{
			HideAwayModeSwitch: cfg.GetBool("hide-away-mode-switch"),
			HidePrivacySwitch:  cfg.GetBool("hide-privacy-switch"),
		},
		Exclude: cfg.GetStringSlice("homekit.exclude"),
		HomeKit: homekit.Config{
			Pin:         strings.ReplaceAll(cfg.GetString("homekit.pin"), "-", ""),
			StoragePath: cfg.GetString("homekit.storage-path"),
		},
		HTTPPort:        cfg.GetInt("http.port"),
		CorsOrigins:     cfg.GetStringSlice("http.cors-origins"),
		GracefulTimeout: cfg.GetDuration("http.graceful-timeout"),
		ReadTimeout:     cfg.GetDuration("http.read-timeout"),
		WriteTimeout:    cfg.GetDuration("http.write-timeout"),
		LogRequests:     cfg.GetBool("logging.log-requests"),
		Database:        cfg.GetString("overrides.database"),
		NoPersist:       cfg.GetBool("overrides.no-persist"),
	}

	if cfg.GetBool("mqtt.enabled") {
		distance := mqtt.DefaultImageDistance
		if cfg.IsSet("mqtt.image-distance") {
			distance = cfg.GetInt("mqtt.image-distance")
		}

		opts.MQTT = &mqtt.Config{
			Broker:          cfg.GetString("mqtt.broker"),
			Username:        cfg.GetString("mqtt.username"),
			Password:        cfg.GetString("mqtt.password"),
			ClientID:        cfg.GetString("mqtt.client-id"),
			TopicPrefix:     cfg.GetString("mqtt.topic-prefix"),
			DiscoveryPrefix: cfg.GetString("mqtt.discovery-prefix"),
			ImageDistance:   distance,
		}
	}

	if err := newValidator().Struct(opts); err != nil {
		return nil, validationError(err)
	}
	if !opts.NoPersist && opts.Database == "" {
		return nil, errors.New("invalid configuration: overrides.database is required unless overrides.no-persist is set")
	}

	return opts, nil
}

func (o *bridgeOptions) storeConfig() blink.Config {
	return blink.Config{
		StatusPollingInterval:      time.Duration(o.PollSeconds) * time.Second,
		AvoidThumbnailBatteryDrain: o.AvoidThumbnailBatteryDrain,
	}
}

func (o *bridgeOptions) pollInterval() time.Duration {
	return time.Duration(o.PollSeconds) * time.Second
}
