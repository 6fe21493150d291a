package blink

import (
	"context"
	"sync"
	"time"

	"github.com/korovkin/limiter"
	"github.com/pkg/errors"

	"github.com/jake-scott/blink-homekit/internal/pkg/blinkapi"
	"github.com/jake-scott/blink-homekit/internal/pkg/logging"
	"github.com/jake-scott/blink-homekit/internal/pkg/metrics"
)

// CommandWaiter polls asynchronous network commands until they complete
type CommandWaiter struct {
	client   blinkapi.Client
	interval time.Duration
}

func NewCommandWaiter(client blinkapi.Client, interval time.Duration) *CommandWaiter {
	if interval <= 0 {
		interval = DefaultCommandPollInterval
	}

	return &CommandWaiter{
		client:   client,
		interval: interval,
	}
}

// Wait polls the command until it reports completion and returns its final
// status.  A zero network or command ID is a no-op.  There is no timeout:
// only ctx ends a wait for a command that never completes.
func (w *CommandWaiter) Wait(ctx context.Context, networkID, commandID int64) (*blinkapi.Command, error) {
	if networkID == 0 || commandID == 0 {
		return nil, nil
	}

	start := time.Now()
	defer func() {
		metrics.CommandWaitSeconds.Observe(time.Since(start).Seconds())
	}()

	for {
		metrics.CommandPolls.Inc()

		cmd, err := w.client.CommandStatus(ctx, networkID, commandID)
		if err != nil {
			return nil, errors.Wrapf(err, "waiting for command %d on network %d", commandID, networkID)
		}

		if cmd.Complete {
			logging.Logger(ctx).Debugf("command %d on network %d complete after %s", commandID, networkID, time.Since(start))
			return cmd, nil
		}

		timer := time.NewTimer(w.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, errors.Wrapf(ctx.Err(), "waiting for command %d on network %d", commandID, networkID)
		case <-timer.C:
		}
	}
}

// WaitAll waits for every command concurrently, one poll loop each.  The
// results are in the order of cmds, with nil for nil commands.  The first
// error seen is returned once all loops have finished.
func (w *CommandWaiter) WaitAll(ctx context.Context, cmds ...*blinkapi.Command) ([]*blinkapi.Command, error) {
	results := make([]*blinkapi.Command, len(cmds))

	pending := 0
	for _, cmd := range cmds {
		if cmd != nil {
			pending++
		}
	}
	if pending == 0 {
		return results, nil
	}

	var mu sync.Mutex
	var firstErr error

	limit := limiter.NewConcurrencyLimiter(pending)
	for i, cmd := range cmds {
		if cmd == nil {
			continue
		}

		i, cmd := i, cmd
		limit.Execute(func() {
			done, err := w.Wait(ctx, cmd.NetworkID, cmd.ID)

			mu.Lock()
			defer mu.Unlock()
			results[i] = done
			if err != nil && firstErr == nil {
				firstErr = err
			}
		})
	}
	limit.Wait()

	return results, firstErr
}
