package usecase

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/gammazero/deque"
	"github.com/spooky-finn/go-polymarket-session/config"
	"github.com/spooky-finn/go-polymarket-session/domain"
	"github.com/spooky-finn/go-polymarket-session/domain/interfaces"
	"github.com/spooky-finn/go-polymarket-session/provider/clob"
	"github.com/spooky-finn/go-polymarket-session/session"
)

var logger = log.New(log.Writer(), "[usecase] ", log.LstdFlags)

const userQueuePollInterval = 100 * time.Millisecond

// TradingSessionUseCase owns the live engine for one signer: the bootstrap
// manager, the heartbeat keeper, the authenticated user channel and any
// tick-size subscriptions. Everything it owns is created explicitly and
// torn down by Close or EndSession; there are no module-level handles.
type TradingSessionUseCase struct {
	conf        *config.Config
	store       domain.SessionStore
	signer      domain.Signer
	invalidator domain.CacheInvalidator

	syncAPI   *clob.SyncAPI
	streamAPI *clob.StreamAPI
	manager   *session.Manager

	mu              sync.Mutex
	current         *domain.TradingSession
	orders          *OrderUseCase
	heartbeatCancel context.CancelFunc

	userSub   *interfaces.Subscription[*clob.UserEvent]
	userQueue deque.Deque[*clob.UserEvent]
	userDone  chan struct{}

	tickSubs  map[string]*interfaces.Subscription[*clob.TickSizeChange]
	tickSizes map[string]string
}

func NewTradingSessionUseCase(conf *config.Config, sessionStore domain.SessionStore, signer domain.Signer, invalidator domain.CacheInvalidator) *TradingSessionUseCase {
	if invalidator == nil {
		invalidator = domain.InvalidatorFunc(func(string) {})
	}

	syncAPI := clob.NewSyncAPI(conf.ClobRestEndpoint, conf.RelayerEndpoint, conf.RequestTimeout)
	uc := &TradingSessionUseCase{
		conf:        conf,
		store:       sessionStore,
		signer:      signer,
		invalidator: invalidator,
		syncAPI:     syncAPI,
		streamAPI:   clob.NewStreamAPI(conf.ClobWssEndpoint, conf.KeepAliveInterval, conf.ReconnectDelay),
		tickSubs:    make(map[string]*interfaces.Subscription[*clob.TickSizeChange]),
		tickSizes:   make(map[string]string),
	}
	uc.manager = session.NewManager(sessionStore, syncAPI, signer, func() error {
		// The handle must reflect the current signer; stale credentials are
		// reinstalled from the checkpoint once the pass completes.
		syncAPI.SetCredentials(nil)
		return nil
	})
	return uc
}

// StartSession bootstraps the trading session for the signer's account and,
// once complete, activates the heartbeat keeper and the authenticated user
// channel. Safe to call again after a failure: completed checkpoints are
// not redone.
func (uc *TradingSessionUseCase) StartSession(ctx context.Context) (*domain.TradingSession, error) {
	accountID := uc.signer.Address()

	// Handles from a previous pass go down before the client handle is
	// rotated: a live keeper must never observe credentials mid-rotation.
	uc.mu.Lock()
	uc.stopHeartbeatLocked()
	uc.stopUserChannelLocked()
	uc.mu.Unlock()

	sess, err := uc.manager.Initialize(ctx, accountID)
	if err != nil {
		return nil, err
	}

	uc.syncAPI.SetCredentials(sess.Credentials)

	uc.mu.Lock()
	defer uc.mu.Unlock()

	uc.stopHeartbeatLocked()
	uc.stopUserChannelLocked()

	hbCtx, cancel := context.WithCancel(context.Background())
	uc.heartbeatCancel = cancel
	keeper := session.NewKeeper(uc.syncAPI, uc.conf.HeartbeatInterval)
	go keeper.Run(hbCtx)

	if err := uc.startUserChannelLocked(sess.Credentials); err != nil {
		logger.Printf("user channel unavailable, continuing without it: %s", err)
	}

	uc.current = sess
	uc.orders = NewOrderUseCase(uc.syncAPI, uc.signer, accountID, uc.invalidator)
	return sess, nil
}

// Orders returns the order command layer, or nil until a session is
// complete.
func (uc *TradingSessionUseCase) Orders() *OrderUseCase {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return uc.orders
}

// Step exposes the transient bootstrap step for the signer's account.
func (uc *TradingSessionUseCase) Step() domain.SessionStep {
	return uc.manager.Step(uc.signer.Address())
}

// WatchTickSize opens a tick-size subscription for a token. The local tick
// size is authoritative state owned by this usecase and updated in event
// arrival order.
func (uc *TradingSessionUseCase) WatchTickSize(tokenID string) error {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	if _, ok := uc.tickSubs[tokenID]; ok {
		return nil
	}

	sub, err := uc.streamAPI.TickSizeStream(tokenID)
	if err != nil {
		return err
	}
	uc.tickSubs[tokenID] = sub

	go func() {
		for event := range sub.Stream {
			uc.mu.Lock()
			uc.tickSizes[tokenID] = event.NewTickSize
			uc.mu.Unlock()
		}
	}()
	return nil
}

// UnwatchTickSize tears down the subscription for a token; any pending
// reconnect no-ops.
func (uc *TradingSessionUseCase) UnwatchTickSize(tokenID string) {
	uc.mu.Lock()
	sub, ok := uc.tickSubs[tokenID]
	delete(uc.tickSubs, tokenID)
	delete(uc.tickSizes, tokenID)
	uc.mu.Unlock()

	if ok {
		sub.Unsubscribe()
	}
}

// TickSize returns the last observed tick size for a watched token.
func (uc *TradingSessionUseCase) TickSize(tokenID string) (string, bool) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	size, ok := uc.tickSizes[tokenID]
	return size, ok
}

// EndSession clears the persisted checkpoint and tears down every live
// handle. The next StartSession runs a full re-bootstrap.
func (uc *TradingSessionUseCase) EndSession(ctx context.Context) error {
	uc.Close()
	return uc.manager.EndSession(ctx, uc.signer.Address())
}

// Close tears down the heartbeat and all channels but keeps the persisted
// checkpoint, so the next StartSession resumes without redoing steps.
func (uc *TradingSessionUseCase) Close() {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	uc.stopHeartbeatLocked()
	uc.stopUserChannelLocked()

	for tokenID, sub := range uc.tickSubs {
		sub.Unsubscribe()
		delete(uc.tickSubs, tokenID)
		delete(uc.tickSizes, tokenID)
	}

	uc.syncAPI.SetCredentials(nil)
	uc.current = nil
	uc.orders = nil
}

func (uc *TradingSessionUseCase) startUserChannelLocked(creds *domain.Credentials) error {
	sub, err := uc.streamAPI.UserStream(creds)
	if err != nil {
		return err
	}

	uc.userSub = sub
	uc.userDone = make(chan struct{})

	go uc.userQueueWriter(sub, uc.userDone)
	go uc.userQueueReader(uc.userDone)
	return nil
}

// userQueueWriter drains the socket in arrival order; processing is
// decoupled behind the queue so a slow invalidation never backs up reads.
func (uc *TradingSessionUseCase) userQueueWriter(sub *interfaces.Subscription[*clob.UserEvent], done chan struct{}) {
	for {
		select {
		case <-done:
			return
		case event, ok := <-sub.Stream:
			if !ok {
				return
			}
			uc.mu.Lock()
			uc.userQueue.PushBack(event)
			uc.mu.Unlock()
		}
	}
}

func (uc *TradingSessionUseCase) userQueueReader(done chan struct{}) {
	for {
		select {
		case <-done:
			return
		default:
		}

		uc.mu.Lock()
		if uc.userQueue.Len() == 0 {
			uc.mu.Unlock()
			time.Sleep(userQueuePollInterval)
			continue
		}
		event := uc.userQueue.PopFront()
		uc.mu.Unlock()

		uc.applyUserEvent(event)
	}
}

// applyUserEvent only invalidates dependent caches; it never mutates the
// order or position data itself, so the refetch path stays independently
// testable.
func (uc *TradingSessionUseCase) applyUserEvent(event *clob.UserEvent) {
	switch event.EventType {
	case clob.EventOrder:
		uc.invalidator.Invalidate(domain.CacheActiveOrders)
	case clob.EventTrade:
		uc.invalidator.Invalidate(domain.CacheActiveOrders)
		uc.invalidator.Invalidate(domain.CachePositions)
	}
}

func (uc *TradingSessionUseCase) stopHeartbeatLocked() {
	if uc.heartbeatCancel != nil {
		uc.heartbeatCancel()
		uc.heartbeatCancel = nil
	}
}

func (uc *TradingSessionUseCase) stopUserChannelLocked() {
	if uc.userDone != nil {
		close(uc.userDone)
		uc.userDone = nil
	}
	if uc.userSub != nil {
		uc.userSub.Unsubscribe()
		uc.userSub = nil
	}
	uc.userQueue = deque.Deque[*clob.UserEvent]{}
}
