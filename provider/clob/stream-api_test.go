package clob

import (
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spooky-finn/go-polymarket-session/domain"
	"github.com/stretchr/testify/assert"
)

func TestTickSizeStream_FiltersMalformedAndNonNumeric(t *testing.T) {
	url, _ := newWsServer(t, func(conn *websocket.Conn) {
		defer conn.Close()

		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}

		conn.WriteMessage(websocket.TextMessage, []byte(`this is not json`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"event_type":"tick_size_change","asset_id":"7132","new_tick_size":"abc"}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"event_type":"last_trade_price","price":"0.55"}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"event_type":"tick_size_change","asset_id":"7132","old_tick_size":"0.01","new_tick_size":"0.001"}`))

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	api := NewStreamAPI(url, 50*time.Millisecond, 20*time.Millisecond)
	sub, err := api.TickSizeStream("7132")
	assert.NoError(t, err)
	defer sub.Unsubscribe()

	select {
	case event := <-sub.Stream:
		// Everything before the well-formed numeric change was dropped.
		assert.Equal(t, "0.001", event.NewTickSize)
		assert.Equal(t, "0.01", event.OldTickSize)
	case <-time.After(2 * time.Second):
		t.Fatal("tick size event was not delivered")
	}
}

func TestTickSizeStream_UnsubscribeReleasesUnreadForwarder(t *testing.T) {
	url, _ := newWsServer(t, func(conn *websocket.Conn) {
		defer conn.Close()

		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		conn.WriteMessage(websocket.TextMessage, []byte(`{"event_type":"tick_size_change","asset_id":"7132","new_tick_size":"0.001"}`))

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	api := NewStreamAPI(url, 50*time.Millisecond, 20*time.Millisecond)
	sub, err := api.TickSizeStream("7132")
	assert.NoError(t, err)

	// Nobody reads the typed stream, so the forwarder is left holding the
	// event when the subscription is torn down.
	time.Sleep(100 * time.Millisecond)
	sub.Unsubscribe()

	assert.Eventually(t, func() bool {
		select {
		case _, open := <-sub.Stream:
			return !open
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond, "typed stream must close after teardown")
}

func TestUserStream_RefusesInsecureEndpoint(t *testing.T) {
	api := NewStreamAPI("ws://clob.example.com/ws", 50*time.Millisecond, 20*time.Millisecond)

	_, err := api.UserStream(testCreds)
	assert.ErrorIs(t, err, ErrInsecureEndpoint)
}

func TestUserStream_RequiresCompleteCredentials(t *testing.T) {
	api := NewStreamAPI("wss://clob.example.com/ws", 50*time.Millisecond, 20*time.Millisecond)

	_, err := api.UserStream(&domain.Credentials{Key: "k"})
	assert.ErrorIs(t, err, ErrNoCredentials)
}

func TestParseUserEvent(t *testing.T) {
	order := parseUserEvent([]byte(`{"event_type":"order","id":"o-1","side":"BUY","price":"0.4"}`))
	assert.NotNil(t, order)
	assert.Equal(t, EventOrder, order.EventType)
	assert.Equal(t, "o-1", order.Order.ID)
	assert.Nil(t, order.Trade)

	trade := parseUserEvent([]byte(`{"event_type":"trade","trade_id":"t-1","status":"MATCHED"}`))
	assert.NotNil(t, trade)
	assert.Equal(t, EventTrade, trade.EventType)
	assert.Equal(t, "t-1", trade.Trade.TradeID)
	assert.Nil(t, trade.Order)

	assert.Nil(t, parseUserEvent([]byte(`{"event_type":"something_else"}`)))
	assert.Nil(t, parseUserEvent([]byte(`garbage`)))
}
