package protocol

import "encoding/json"

// Inbound events.
const (
	EventSubscribe   = "subscribe"
	EventUnsubscribe = "unsubscribe"
	EventPing        = "ping"
)

// Outbound events.
const (
	EventPriceUpdate     = "price-update"
	EventPriceUpdateBulk = "price-update-bulk"
	EventPong            = "pong"
	EventSubscribed      = "subscribed"
	EventUnsubscribed    = "unsubscribed"
	EventError           = "error"
)

// SymbolList decodes either a single symbol ("BTC") or a list
// (["BTC","ETH"]).
type SymbolList []string

func (s *SymbolList) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var one string
		if err := json.Unmarshal(b, &one); err != nil {
			return err
		}
		*s = SymbolList{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return err
	}
	*s = SymbolList(many)
	return nil
}

type Inbound struct {
	Event   string     `json:"event"`
	Symbols SymbolList `json:"symbols,omitempty"`
	TS      int64      `json:"ts,omitempty"` // client timestamp echoed in pong
}

type Outbound struct {
	Event   string      `json:"event"`
	Data    interface{} `json:"data,omitempty"`
	Symbols []string    `json:"symbols,omitempty"`
	TS      int64       `json:"ts,omitempty"`
	Message string      `json:"message,omitempty"`
}
