package clob

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/spooky-finn/go-polymarket-session/domain"
	"github.com/spooky-finn/go-polymarket-session/domain/interfaces"
)

var ErrInsecureEndpoint = errors.New("refusing to send credentials over an unencrypted channel")

// StreamAPI opens typed real-time subscriptions over the raw stream
// client: the public tick-size channel and the authenticated order/trade
// channel. One socket per subscription.
type StreamAPI struct {
	wssEndpoint    string
	keepAlive      time.Duration
	reconnectDelay time.Duration
}

func NewStreamAPI(wssEndpoint string, keepAlive, reconnectDelay time.Duration) *StreamAPI {
	return &StreamAPI{
		wssEndpoint:    wssEndpoint,
		keepAlive:      keepAlive,
		reconnectDelay: reconnectDelay,
	}
}

// TickSizeStream subscribes to tick-size changes for one token. Malformed
// frames and frames with a non-numeric new_tick_size are dropped.
func (s *StreamAPI) TickSizeStream(tokenID string) (*interfaces.Subscription[*TickSizeChange], error) {
	sub := SubscribeMessage{Type: "market", AssetsIDs: []string{tokenID}}
	client := NewStreamClient(s.wssEndpoint+"/market", sub, "market:"+tokenID, s.keepAlive, s.reconnectDelay)
	if err := client.Connect(); err != nil {
		return nil, err
	}

	raw := client.Subscription()
	out := make(chan *TickSizeChange)

	go func() {
		defer close(out)

		for msg := range raw.Stream {
			envelope := EventEnvelope{}
			if err := json.Unmarshal(msg, &envelope); err != nil {
				continue
			}
			if envelope.EventType != EventTickSizeChange {
				continue
			}

			event := &TickSizeChange{}
			if err := json.Unmarshal(msg, event); err != nil {
				continue
			}
			if _, err := strconv.ParseFloat(event.NewTickSize, 64); err != nil {
				logger.Printf("dropping tick_size_change with non-numeric size %q", event.NewTickSize)
				continue
			}
			select {
			case out <- event:
			case <-client.Done():
				return
			}
		}
	}()

	return &interfaces.Subscription[*TickSizeChange]{
		Stream:      out,
		Topic:       raw.Topic,
		Unsubscribe: raw.Unsubscribe,
	}, nil
}

// UserStream subscribes to the account-wide order/trade stream. The
// credential triple rides in the subscription frame, so the endpoint must
// be encrypted.
func (s *StreamAPI) UserStream(creds *domain.Credentials) (*interfaces.Subscription[*UserEvent], error) {
	if !creds.Complete() {
		return nil, ErrNoCredentials
	}
	if !strings.HasPrefix(s.wssEndpoint, "wss://") {
		return nil, ErrInsecureEndpoint
	}

	sub := SubscribeMessage{
		Type: "user",
		Auth: &WssAuth{
			APIKey:     creds.Key,
			Secret:     creds.Secret,
			Passphrase: creds.Passphrase,
		},
	}
	client := NewStreamClient(s.wssEndpoint+"/user", sub, "user", s.keepAlive, s.reconnectDelay)
	if err := client.Connect(); err != nil {
		return nil, err
	}

	raw := client.Subscription()
	out := make(chan *UserEvent)

	go func() {
		defer close(out)

		for msg := range raw.Stream {
			event := parseUserEvent(msg)
			if event == nil {
				continue
			}
			select {
			case out <- event:
			case <-client.Done():
				return
			}
		}
	}()

	return &interfaces.Subscription[*UserEvent]{
		Stream:      out,
		Topic:       raw.Topic,
		Unsubscribe: raw.Unsubscribe,
	}, nil
}

func parseUserEvent(msg []byte) *UserEvent {
	envelope := EventEnvelope{}
	if err := json.Unmarshal(msg, &envelope); err != nil {
		return nil
	}

	switch envelope.EventType {
	case EventOrder:
		order := &OrderUpdate{}
		if err := json.Unmarshal(msg, order); err != nil {
			return nil
		}
		return &UserEvent{EventType: EventOrder, Order: order}
	case EventTrade:
		trade := &TradeNotification{}
		if err := json.Unmarshal(msg, trade); err != nil {
			return nil
		}
		return &UserEvent{EventType: EventTrade, Trade: trade}
	default:
		return nil
	}
}
