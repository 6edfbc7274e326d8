package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/spooky-finn/go-polymarket-session/provider/clob"
	"github.com/stretchr/testify/assert"
)

type fakeHeartbeatAPI struct {
	mu    sync.Mutex
	ids   []string
	reply func(id string) (string, error)
}

func (f *fakeHeartbeatAPI) Heartbeat(ctx context.Context, id string) (string, error) {
	f.mu.Lock()
	f.ids = append(f.ids, id)
	reply := f.reply
	f.mu.Unlock()

	if reply != nil {
		return reply(id)
	}
	return fmt.Sprintf("hb-%d", len(f.ids)), nil
}

func (f *fakeHeartbeatAPI) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ids)
}

func (f *fakeHeartbeatAPI) firstID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ids[0]
}

func TestKeeper_FirstBeatIsImmediate(t *testing.T) {
	api := &fakeHeartbeatAPI{}
	keeper := NewKeeper(api, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go keeper.Run(ctx)

	assert.Eventually(t, func() bool { return api.calls() == 1 }, time.Second, 5*time.Millisecond,
		"the first signal must not wait a full interval")
	assert.Equal(t, "", api.firstID(), "the first beat requests a fresh id")
	assert.Eventually(t, func() bool { return keeper.ID() == "hb-1" }, time.Second, 5*time.Millisecond)
}

func TestKeeper_BeatsOnEveryTickUntilCancelled(t *testing.T) {
	api := &fakeHeartbeatAPI{}
	keeper := NewKeeper(api, 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	go keeper.Run(ctx)

	assert.Eventually(t, func() bool { return api.calls() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()

	assert.Eventually(t, func() bool { return keeper.ID() == "" }, time.Second, 5*time.Millisecond,
		"the id is cleared entirely when the loop stops")

	settled := api.calls()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, settled, api.calls(), "no beats after cancellation")
}

func TestKeeper_AdoptsCorrectedID(t *testing.T) {
	api := &fakeHeartbeatAPI{
		reply: func(id string) (string, error) {
			return "", &clob.HeartbeatError{StatusCode: 400, CorrectedID: "hb-expected"}
		},
	}
	keeper := NewKeeper(api, time.Hour)

	keeper.beat(context.Background())
	assert.Equal(t, "hb-expected", keeper.ID(), "a corrected id is a resync signal, not a failure")
}

func TestKeeper_ResetsOnUncorrectableFailure(t *testing.T) {
	api := &fakeHeartbeatAPI{
		reply: func(id string) (string, error) {
			if len(id) == 0 {
				return "hb-fresh", nil
			}
			return "", errors.New("gateway timeout")
		},
	}
	keeper := NewKeeper(api, time.Hour)

	keeper.beat(context.Background())
	assert.Equal(t, "hb-fresh", keeper.ID())

	keeper.beat(context.Background())
	assert.Equal(t, "", keeper.ID(), "an uncorrectable failure requests a fresh id next tick")
}

func TestResyncOnCorrectedID(t *testing.T) {
	corrected, ok := ResyncOnCorrectedID(&clob.HeartbeatError{CorrectedID: "hb-9"})
	assert.True(t, ok)
	assert.Equal(t, "hb-9", corrected)

	wrapped := fmt.Errorf("beat failed: %w", &clob.HeartbeatError{CorrectedID: "hb-9"})
	corrected, ok = ResyncOnCorrectedID(wrapped)
	assert.True(t, ok)
	assert.Equal(t, "hb-9", corrected)

	_, ok = ResyncOnCorrectedID(errors.New("gateway timeout"))
	assert.False(t, ok)

	_, ok = ResyncOnCorrectedID(&clob.HeartbeatError{StatusCode: 400})
	assert.False(t, ok, "a rejection without a corrected id is a plain failure")
}
