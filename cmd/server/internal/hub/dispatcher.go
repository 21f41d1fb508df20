package hub

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"quotestream/cmd/server/internal/cache"
	"quotestream/cmd/server/internal/market"
	"quotestream/cmd/server/internal/protocol"
	"quotestream/pkg/models"
)

const (
	symbolChannelPrefix = "quotes.sym."
	bulkChannel         = "quotes.all"
	mirrorPattern       = "quotes.*"
)

// Dispatcher owns the broadcast tick. On each tick it drains the
// debounce buffer, writes the batch through the cache, fans it out to
// local rooms, and mirrors it to peer instances over the broadcast
// channel. It is the Sink for both ingestion variants: the generator
// publishes batches directly, the queue consumer stages facts for the
// next tick.
type Dispatcher struct {
	hub        *Hub
	cache      *cache.Cache
	buffer     *market.Buffer
	store      *market.StateStore
	instanceID string
	interval   time.Duration
	logger     *zap.Logger
}

func NewDispatcher(h *Hub, c *cache.Cache, buffer *market.Buffer, store *market.StateStore, instanceID string, interval time.Duration, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		hub:        h,
		cache:      c,
		buffer:     buffer,
		store:      store,
		instanceID: instanceID,
		interval:   interval,
		logger:     logger,
	}
}

// Stage buffers a fact for the next broadcast tick (queue path).
func (d *Dispatcher) Stage(fact models.PriceFact) {
	d.buffer.Stage(fact)
}

// PublishBatch dispatches a batch immediately (generator path).
func (d *Dispatcher) PublishBatch(ctx context.Context, facts []models.PriceFact) {
	d.dispatch(ctx, facts)
}

// Run drives the broadcast tick and the cross-instance mirror until
// ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	go d.runMirror(ctx)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if facts := d.buffer.Drain(); len(facts) > 0 {
				d.dispatch(ctx, facts)
			}
		}
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, facts []models.PriceFact) {
	views := make([]models.PriceFactView, 0, len(facts))
	entries := make(map[string]string, len(facts))

	for _, fact := range facts {
		view, ok := d.store.View(fact.Symbol)
		if !ok {
			d.logger.Warn("staged fact for unknown symbol", zap.String("symbol", fact.Symbol))
			continue
		}
		views = append(views, view)

		payload, err := json.Marshal(view)
		if err != nil {
			continue
		}
		entries[cache.Key(fact.Symbol)] = string(payload)
	}
	if len(views) == 0 {
		return
	}

	d.cache.MultiSet(ctx, entries)

	for _, view := range views {
		payload := mustMarshal(protocol.Outbound{Event: protocol.EventPriceUpdate, Data: view})
		d.hub.BroadcastSymbol(view.Symbol, payload)
		d.mirror(ctx, symbolChannelPrefix+view.Symbol, payload)
	}

	bulk := mustMarshal(protocol.Outbound{Event: protocol.EventPriceUpdateBulk, Data: views})
	d.hub.BroadcastAll(bulk)
	d.mirror(ctx, bulkChannel, bulk)
}

// mirror publishes an already-encoded outbound frame to peer
// instances. Best effort: with the cache backend down, updates stay
// local.
func (d *Dispatcher) mirror(ctx context.Context, channel string, payload []byte) {
	env := mustMarshal(models.Envelope{Origin: d.instanceID, Payload: payload})
	if env == nil {
		return
	}
	d.cache.Publish(ctx, channel, env)
}

// runMirror applies peer instances' broadcasts to local rooms so a
// client connected here still sees facts ingested elsewhere.
func (d *Dispatcher) runMirror(ctx context.Context) {
	d.cache.RunPubSub(ctx, mirrorPattern, func(channel, payload string) {
		var env models.Envelope
		if err := json.Unmarshal([]byte(payload), &env); err != nil {
			d.logger.Warn("malformed mirror envelope", zap.Error(err))
			return
		}
		if env.Origin == d.instanceID {
			return
		}

		switch {
		case channel == bulkChannel:
			d.hub.BroadcastAll(env.Payload)
		case strings.HasPrefix(channel, symbolChannelPrefix):
			d.hub.BroadcastSymbol(strings.TrimPrefix(channel, symbolChannelPrefix), env.Payload)
		}
	})
}
