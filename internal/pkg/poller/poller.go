package poller

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/robfig/cron.v2"

	"github.com/jake-scott/blink-homekit/internal/pkg/blink"
	"github.com/jake-scott/blink-homekit/internal/pkg/logging"
)

// Refresher is what gets polled, normally the device store
type Refresher interface {
	Refresh(ctx context.Context) (*blink.AccountSnapshot, error)
}

// Poller refreshes the device store on a fixed interval
type Poller struct {
	refresher Refresher
	interval  time.Duration

	cron    *cron.Cron
	running int32
}

func New(r Refresher, interval time.Duration) *Poller {
	if interval < time.Second {
		interval = time.Second
	}

	return &Poller{
		refresher: r,
		interval:  interval,
		cron:      cron.New(),
	}
}

// Start schedules the refresh job.  Failed refreshes are logged and the
// job keeps running.
func (p *Poller) Start(ctx context.Context) error {
	spec := fmt.Sprintf("@every %s", p.interval)
	if _, err := p.cron.AddFunc(spec, func() { p.Poll(ctx) }); err != nil {
		return errors.Wrapf(err, "scheduling refresh %q", spec)
	}

	p.cron.Start()
	logging.Logger(ctx).Infof("polling Blink every %s", p.interval)

	return nil
}

func (p *Poller) Stop() {
	p.cron.Stop()
}

// Poll refreshes once, unless the previous refresh is still running
func (p *Poller) Poll(ctx context.Context) {
	if !atomic.CompareAndSwapInt32(&p.running, 0, 1) {
		logging.Logger(ctx).Debug("previous refresh still running, skipping")
		return
	}
	defer atomic.StoreInt32(&p.running, 0)

	if _, err := p.refresher.Refresh(ctx); err != nil {
		logging.Logger(ctx).WithError(err).Warn("periodic refresh failed")
	}
}
