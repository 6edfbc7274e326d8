package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/spooky-finn/go-polymarket-session/domain/interfaces"
	promclient "github.com/spooky-finn/go-polymarket-session/infrastructure/prometheus"
	"github.com/spooky-finn/go-polymarket-session/provider/clob"
)

// The server cancels resting orders after 10s without a heartbeat; beating
// every 5s tolerates one missed tick.
const DefaultHeartbeatInterval = 5 * time.Second

// ResyncOnCorrectedID is the heartbeat recovery policy: when the server
// rejects our id but tells us the one it expected, adopt it instead of
// treating the rejection as a failure.
func ResyncOnCorrectedID(err error) (string, bool) {
	var hbErr *clob.HeartbeatError
	if errors.As(err, &hbErr) && hbErr.CorrectedID != "" {
		return hbErr.CorrectedID, true
	}
	return "", false
}

// Keeper keeps resting limit orders alive on the exchange. Heartbeat
// failures are transient and self-correcting, so the loop never stops on
// error; it stops only when the context is cancelled (session ended or
// client handle rotated).
type Keeper struct {
	api      interfaces.HeartbeatAPI
	interval time.Duration

	mu sync.Mutex
	id string
}

func NewKeeper(api interfaces.HeartbeatAPI, interval time.Duration) *Keeper {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	return &Keeper{api: api, interval: interval}
}

// Run beats immediately, then on every interval tick until ctx is
// cancelled. On exit the id is cleared entirely.
func (k *Keeper) Run(ctx context.Context) {
	k.beat(ctx)

	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			k.setID("")
			return
		case <-ticker.C:
			k.beat(ctx)
		}
	}
}

// ID returns the current heartbeat id; empty means the next beat requests
// a fresh one.
func (k *Keeper) ID() string {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.id
}

func (k *Keeper) beat(ctx context.Context) {
	next, err := k.api.Heartbeat(ctx, k.ID())
	if err == nil {
		k.setID(next)
		promclient.HeartbeatsSent.WithLabelValues("ok").Inc()
		return
	}

	if corrected, ok := ResyncOnCorrectedID(err); ok {
		k.setID(corrected)
		promclient.HeartbeatsSent.WithLabelValues("resync").Inc()
		return
	}

	k.setID("")
	promclient.HeartbeatsSent.WithLabelValues("fail").Inc()
	logger.Printf("heartbeat failed, requesting fresh id next tick: %s", err)
}

func (k *Keeper) setID(id string) {
	k.mu.Lock()
	k.id = id
	k.mu.Unlock()
}
