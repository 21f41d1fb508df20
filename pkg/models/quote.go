package models

import "encoding/json"

// PriceFact is a single ingested price observation for a symbol.
type PriceFact struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Timestamp int64   `json:"timestamp"` // unix micro
	Volume24h float64 `json:"volume_24h"`
	MarketCap float64 `json:"market_cap"`
	SeqID     int64   `json:"seq_id"` // monotonic counter per symbol
}

// PriceFactView is what clients see: the fact plus the 24h change
// percentage computed against the hourly-rebased reference price.
type PriceFactView struct {
	PriceFact
	Change24h float64 `json:"change_24h"`
}

// Envelope is the frame exchanged between server instances over the
// broadcast channel. Origin lets an instance skip its own messages.
type Envelope struct {
	Origin  string          `json:"origin"`
	Payload json.RawMessage `json:"payload"`
}
