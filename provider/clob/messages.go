package clob

// Outbound subscription frame. Type is "market" for the tick-size channel
// and "user" for the authenticated order/trade stream. Auth must only ever
// be sent over an encrypted socket.
type SubscribeMessage struct {
	Type      string   `json:"type"`
	AssetsIDs []string `json:"assets_ids,omitempty"`
	Markets   []string `json:"markets,omitempty"`
	Auth      *WssAuth `json:"auth,omitempty"`
}

type WssAuth struct {
	APIKey     string `json:"apiKey"`
	Secret     string `json:"secret"`
	Passphrase string `json:"passphrase"`
}

// EventEnvelope carries only the discriminator; the payload is re-parsed
// by the typed stream once the event type is known.
type EventEnvelope struct {
	EventType string `json:"event_type"`
}

const (
	EventTickSizeChange = "tick_size_change"
	EventOrder          = "order"
	EventTrade          = "trade"
)

type TickSizeChange struct {
	EventType   string `json:"event_type"`
	AssetID     string `json:"asset_id"`
	Market      string `json:"market"`
	OldTickSize string `json:"old_tick_size"`
	NewTickSize string `json:"new_tick_size"`
	Timestamp   string `json:"timestamp"`
}

type OrderUpdate struct {
	EventType       string   `json:"event_type"`
	ID              string   `json:"id"`
	Market          string   `json:"market"`
	AssetID         string   `json:"asset_id"`
	Type            string   `json:"type"`
	Side            string   `json:"side"`
	Price           string   `json:"price"`
	Size            string   `json:"size"`
	SizeMatched     string   `json:"size_matched"`
	OriginalSize    string   `json:"original_size"`
	Outcome         string   `json:"outcome"`
	Owner           string   `json:"owner"`
	AssociateTrades []string `json:"associate_trades"`
	Timestamp       string   `json:"timestamp"`
}

type TradeNotification struct {
	EventType    string `json:"event_type"`
	ID           string `json:"id"`
	Market       string `json:"market"`
	AssetID      string `json:"asset_id"`
	TakerOrderID string `json:"taker_order_id"`
	Side         string `json:"side"`
	Price        string `json:"price"`
	Size         string `json:"size"`
	Status       string `json:"status"`
	Outcome      string `json:"outcome"`
	Owner        string `json:"owner"`
	MatchTime    string `json:"matchtime"`
	Timestamp    string `json:"timestamp"`
	TradeID      string `json:"trade_id"`
}

// UserEvent is one event from the authenticated stream. Exactly one of
// Order and Trade is set, matching the EventType discriminator.
type UserEvent struct {
	EventType string
	Order     *OrderUpdate
	Trade     *TradeNotification
}
