package blink

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jake-scott/blink-homekit/internal/pkg/blinkapi"
	"github.com/jake-scott/blink-homekit/mocks"
)

func TestWaitSkipsMissingIDs(t *testing.T) {
	client := mocks.FakeNewBlinkClient(fixture())
	w := NewCommandWaiter(client, time.Millisecond)

	cmd, err := w.Wait(context.Background(), 0, 5)
	assert.NoError(t, err)
	assert.Nil(t, cmd)

	cmd, err = w.Wait(context.Background(), 1, 0)
	assert.NoError(t, err)
	assert.Nil(t, cmd)

	assert.Equal(t, 0, client.Calls("CommandStatus"))
}

func TestWaitPollsUntilComplete(t *testing.T) {
	client := mocks.FakeNewBlinkClient(fixture())
	client.PollsToComplete = 3
	w := NewCommandWaiter(client, time.Millisecond)

	cmd, err := w.Wait(context.Background(), 1, 7)
	require.NoError(t, err)
	assert.True(t, cmd.Complete)
	assert.Equal(t, int64(7), cmd.ID)
	assert.Equal(t, 3, client.Polls(7))
}

func TestWaitCompletesOnFirstPoll(t *testing.T) {
	client := mocks.FakeNewBlinkClient(fixture())
	client.PollsToComplete = 1
	w := NewCommandWaiter(client, time.Hour)

	cmd, err := w.Wait(context.Background(), 1, 8)
	require.NoError(t, err)
	assert.True(t, cmd.Complete)
	assert.Equal(t, 1, client.Polls(8))
}

func TestWaitReturnsStatusError(t *testing.T) {
	boom := errors.New("boom")
	client := mocks.FakeNewBlinkClient(fixture())
	client.StatusErr = boom
	w := NewCommandWaiter(client, time.Millisecond)

	_, err := w.Wait(context.Background(), 1, 7)
	require.Error(t, err)
	assert.Equal(t, boom, errors.Cause(err))
	assert.Equal(t, 1, client.Calls("CommandStatus"))
}

func TestWaitStopsOnContext(t *testing.T) {
	client := mocks.FakeNewBlinkClient(fixture())
	client.PollsToComplete = 1 << 30
	w := NewCommandWaiter(client, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond*20)
	defer cancel()

	_, err := w.Wait(ctx, 1, 7)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.GreaterOrEqual(t, client.Polls(7), 1)
}

func TestWaitAll(t *testing.T) {
	client := mocks.FakeNewBlinkClient(fixture())
	client.PollsToComplete = 2
	w := NewCommandWaiter(client, time.Millisecond)

	cmds := []*blinkapi.Command{
		{ID: 1, NetworkID: 1},
		nil,
		{ID: 2, NetworkID: 2},
	}

	results, err := w.WaitAll(context.Background(), cmds...)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Nil(t, results[1])
	assert.True(t, results[0].Complete)
	assert.True(t, results[2].Complete)
	assert.Equal(t, int64(2), results[2].NetworkID)
	assert.Equal(t, 2, client.Polls(1))
	assert.Equal(t, 2, client.Polls(2))
}

func TestWaitAllNothingToDo(t *testing.T) {
	client := mocks.FakeNewBlinkClient(fixture())
	w := NewCommandWaiter(client, time.Millisecond)

	results, err := w.WaitAll(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, results)

	results, err = w.WaitAll(context.Background(), nil)
	assert.NoError(t, err)
	assert.Equal(t, []*blinkapi.Command{nil}, results)

	assert.Equal(t, 0, client.Calls("CommandStatus"))
}

func TestWaitAllReturnsError(t *testing.T) {
	client := mocks.FakeNewBlinkClient(fixture())
	client.StatusErr = errors.New("unavailable")
	w := NewCommandWaiter(client, time.Millisecond)

	_, err := w.WaitAll(context.Background(), &blinkapi.Command{ID: 1, NetworkID: 1}, &blinkapi.Command{ID: 2, NetworkID: 1})
	require.Error(t, err)
	assert.Equal(t, "unavailable", errors.Cause(err).Error())
}
