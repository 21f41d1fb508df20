// Package hub tracks which connections want which symbols and fans
// staged facts out to them on the broadcast tick.
package hub

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"quotestream/cmd/server/internal/market"
	"quotestream/cmd/server/internal/protocol"
	"quotestream/cmd/server/internal/ratelimit"
)

// ClientInterface is one connected client channel.
type ClientInterface interface {
	ID() string
	SendJSON(v interface{})
	SendBytes(b []byte)
	Close()
}

// Hub is the subscription registry: per-symbol rooms plus the implicit
// all-symbols room every connection joins on register.
type Hub struct {
	mu         sync.RWMutex
	rooms      map[string]map[ClientInterface]bool
	all        map[ClientInterface]bool
	clientSubs map[ClientInterface]map[string]bool

	known   map[string]bool
	store   *market.StateStore
	limiter *ratelimit.Limiter
	logger  *zap.Logger
}

func NewHub(store *market.StateStore, limiter *ratelimit.Limiter, known map[string]bool, logger *zap.Logger) *Hub {
	return &Hub{
		rooms:      make(map[string]map[ClientInterface]bool),
		all:        make(map[ClientInterface]bool),
		clientSubs: make(map[ClientInterface]map[string]bool),
		known:      known,
		store:      store,
		limiter:    limiter,
		logger:     logger,
	}
}

// Register joins the client to the all-symbols room and immediately
// sends the full current snapshot.
func (h *Hub) Register(client ClientInterface) {
	h.mu.Lock()
	h.all[client] = true
	h.clientSubs[client] = make(map[string]bool)
	h.mu.Unlock()

	client.SendJSON(protocol.Outbound{
		Event: protocol.EventPriceUpdateBulk,
		Data:  h.store.Snapshot(),
	})
}

// Unregister removes every membership and the connection's limiter
// state, then closes the client.
func (h *Hub) Unregister(client ClientInterface) {
	h.mu.Lock()
	if subs, ok := h.clientSubs[client]; ok {
		for sym := range subs {
			delete(h.rooms[sym], client)
			if len(h.rooms[sym]) == 0 {
				delete(h.rooms, sym)
			}
		}
		delete(h.clientSubs, client)
	}
	delete(h.all, client)
	h.mu.Unlock()

	h.limiter.Forget(client.ID())
	client.Close()
	h.logger.Debug("connection closed", zap.String("conn", client.ID()))
}

// HandleEvent dispatches one inbound control message.
func (h *Hub) HandleEvent(client ClientInterface, req protocol.Inbound) {
	switch req.Event {
	case protocol.EventSubscribe:
		if h.limiter.Check(client.ID()) {
			h.sendError(client, "rate limit exceeded")
			return
		}
		h.subscribe(client, req.Symbols)
	case protocol.EventUnsubscribe:
		if h.limiter.Check(client.ID()) {
			h.sendError(client, "rate limit exceeded")
			return
		}
		h.unsubscribe(client, req.Symbols)
	case protocol.EventPing:
		// Rate-limited pings are dropped silently so abusive traffic
		// is not amplified with error responses.
		if h.limiter.Check(client.ID()) {
			return
		}
		client.SendJSON(protocol.Outbound{Event: protocol.EventPong, TS: req.TS})
	default:
		h.sendError(client, "unknown event: "+req.Event)
	}
}

func (h *Hub) subscribe(client ClientInterface, symbols []string) {
	h.mu.Lock()

	accepted := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		// Unknown symbols are silently ignored, not an error.
		if !h.known[sym] {
			continue
		}
		if h.clientSubs[client] == nil {
			h.clientSubs[client] = make(map[string]bool)
		}
		if h.clientSubs[client][sym] {
			continue
		}
		h.clientSubs[client][sym] = true
		if h.rooms[sym] == nil {
			h.rooms[sym] = make(map[ClientInterface]bool)
		}
		h.rooms[sym][client] = true
		accepted = append(accepted, sym)
	}
	h.mu.Unlock()

	client.SendJSON(protocol.Outbound{Event: protocol.EventSubscribed, Symbols: accepted})
}

func (h *Hub) unsubscribe(client ClientInterface, symbols []string) {
	h.mu.Lock()

	removed := make([]string, 0, len(symbols))
	if subs, ok := h.clientSubs[client]; ok {
		for _, sym := range symbols {
			// Absence is a no-op; repeated unsubscribe never errors.
			if !subs[sym] {
				continue
			}
			delete(subs, sym)
			delete(h.rooms[sym], client)
			if len(h.rooms[sym]) == 0 {
				delete(h.rooms, sym)
			}
			removed = append(removed, sym)
		}
	}
	h.mu.Unlock()

	client.SendJSON(protocol.Outbound{Event: protocol.EventUnsubscribed, Symbols: removed})
}

// BroadcastSymbol sends payload to every member of the symbol's room.
func (h *Hub) BroadcastSymbol(symbol string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.rooms[symbol] {
		client.SendBytes(payload)
	}
}

// BroadcastAll sends payload to every connected client.
func (h *Hub) BroadcastAll(payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.all {
		client.SendBytes(payload)
	}
}

// Connections reports the number of registered clients.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.all)
}

func (h *Hub) sendError(client ClientInterface, msg string) {
	client.SendJSON(protocol.Outbound{Event: protocol.EventError, Message: msg})
}

func mustMarshal(v interface{}) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}
