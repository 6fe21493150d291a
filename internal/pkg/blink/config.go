package blink

import "time"

const (
	DefaultStatusPollingInterval = time.Second * 30
	DefaultCommandPollInterval   = time.Millisecond * 250

	ThumbnailTTLDefault = time.Minute
	ThumbnailTTLMax     = time.Minute * 10
	BatteryTTL          = time.Minute * 60

	// how long after an update the network and its cameras are considered
	// to be reporting an alarm
	alarmWindow = time.Second * 90

	motionTriggerStartDelay = time.Second * 60
	motionTriggerDecayEnd   = time.Second * 90
)

// Config is handed to the store at construction and shared with every
// facade it creates
type Config struct {
	// staleness hint for account snapshots
	StatusPollingInterval time.Duration

	// extend the thumbnail TTL to ThumbnailTTLMax
	AvoidThumbnailBatteryDrain bool

	CommandPollInterval time.Duration

	// Now is the clock, overridden in tests
	Now func() time.Time
}

func (c Config) withDefaults() Config {
	if c.StatusPollingInterval <= 0 {
		c.StatusPollingInterval = DefaultStatusPollingInterval
	}
	if c.CommandPollInterval <= 0 {
		c.CommandPollInterval = DefaultCommandPollInterval
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

func (c Config) thumbnailTTL() time.Duration {
	if c.AvoidThumbnailBatteryDrain {
		return ThumbnailTTLMax
	}
	return ThumbnailTTLDefault
}
