package usecase

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spooky-finn/go-polymarket-session/config"
	"github.com/spooky-finn/go-polymarket-session/domain"
	"github.com/spooky-finn/go-polymarket-session/provider/clob"
	"github.com/spooky-finn/go-polymarket-session/store"
	"github.com/stretchr/testify/assert"
)

func newTickServer(t *testing.T, frames ...string) string {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		for _, frame := range frames {
			conn.WriteMessage(websocket.TextMessage, []byte(frame))
		}

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(server.Close)

	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func newTestEngine(t *testing.T, wssEndpoint string, invalidator domain.CacheInvalidator) *TradingSessionUseCase {
	conf := &config.Config{
		ClobWssEndpoint:   wssEndpoint,
		HeartbeatInterval: time.Hour,
		KeepAliveInterval: 50 * time.Millisecond,
		ReconnectDelay:    20 * time.Millisecond,
		RequestTimeout:    time.Second,
	}
	engine := NewTradingSessionUseCase(conf, store.NewMemoryStore(), &fakeSigner{}, invalidator)
	t.Cleanup(engine.Close)
	return engine
}

func TestApplyUserEvent_InvalidationMapping(t *testing.T) {
	invalidator := &recordingInvalidator{}
	engine := newTestEngine(t, "wss://unused", invalidator)

	engine.applyUserEvent(&clob.UserEvent{EventType: clob.EventOrder})
	assert.Equal(t, []string{domain.CacheActiveOrders}, invalidator.keys,
		"an order update touches only the order list")

	engine.applyUserEvent(&clob.UserEvent{EventType: clob.EventTrade})
	assert.Equal(t,
		[]string{domain.CacheActiveOrders, domain.CacheActiveOrders, domain.CachePositions},
		invalidator.keys, "a trade touches orders and exposure")
}

func TestWatchTickSize_UpdatesAuthoritativeCache(t *testing.T) {
	url := newTickServer(t,
		`{"event_type":"tick_size_change","asset_id":"7132","old_tick_size":"0.01","new_tick_size":"0.001"}`,
	)
	engine := newTestEngine(t, url, &recordingInvalidator{})

	_, ok := engine.TickSize("7132")
	assert.False(t, ok, "no tick size before the token is watched")

	assert.NoError(t, engine.WatchTickSize("7132"))
	assert.NoError(t, engine.WatchTickSize("7132"), "watching twice is a no-op")

	assert.Eventually(t, func() bool {
		size, ok := engine.TickSize("7132")
		return ok && size == "0.001"
	}, 2*time.Second, 10*time.Millisecond)

	engine.UnwatchTickSize("7132")
	_, ok = engine.TickSize("7132")
	assert.False(t, ok, "unwatch drops the cached size")
}

func TestEngine_PreSessionAndClose(t *testing.T) {
	url := newTickServer(t,
		`{"event_type":"tick_size_change","asset_id":"7132","new_tick_size":"0.01"}`,
	)
	engine := newTestEngine(t, url, &recordingInvalidator{})

	assert.Nil(t, engine.Orders(), "no order layer before a session completes")
	assert.Equal(t, domain.StepIdle, engine.Step())

	assert.NoError(t, engine.WatchTickSize("7132"))
	assert.Eventually(t, func() bool {
		_, ok := engine.TickSize("7132")
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	engine.Close()

	_, ok := engine.TickSize("7132")
	assert.False(t, ok, "teardown drops every watched tick size")
	assert.Nil(t, engine.Orders())
}
