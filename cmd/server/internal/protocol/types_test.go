package protocol_test

import (
	"encoding/json"
	"testing"

	"quotestream/cmd/server/internal/protocol"
)

func TestInbound_SingleSymbolForm(t *testing.T) {
	var req protocol.Inbound
	if err := json.Unmarshal([]byte(`{"event":"subscribe","symbols":"BTC"}`), &req); err != nil {
		t.Fatal(err)
	}
	if len(req.Symbols) != 1 || req.Symbols[0] != "BTC" {
		t.Errorf("expected [BTC], got %v", req.Symbols)
	}
}

func TestInbound_ListForm(t *testing.T) {
	var req protocol.Inbound
	if err := json.Unmarshal([]byte(`{"event":"unsubscribe","symbols":["BTC","ETH"]}`), &req); err != nil {
		t.Fatal(err)
	}
	if len(req.Symbols) != 2 || req.Symbols[1] != "ETH" {
		t.Errorf("expected [BTC ETH], got %v", req.Symbols)
	}
}

func TestInbound_MalformedSymbols(t *testing.T) {
	var req protocol.Inbound
	if err := json.Unmarshal([]byte(`{"event":"subscribe","symbols":42}`), &req); err == nil {
		t.Error("numeric symbols payload should fail to decode")
	}
}
