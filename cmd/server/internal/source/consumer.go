package source

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"quotestream/cmd/server/internal/market"
	"quotestream/pkg/models"
)

// QueueReader is the slice of kafka.Reader the consumer uses. Fetch
// plus explicit commit gives ack semantics: a commit acknowledges, a
// commit without applying drops the message with no redelivery.
type QueueReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// QueueConsumer applies facts delivered by the durable queue to the
// state store and stages them for the next broadcast tick. A broker
// disconnect mid-session ends the strategy; there is no runtime
// failover to the generator.
type QueueConsumer struct {
	reader  QueueReader
	store   *market.StateStore
	sink    Sink
	logger  *zap.Logger
	lastSeq map[string]int64
	dropped int64
}

func NewQueueConsumer(reader QueueReader, store *market.StateStore, sink Sink, logger *zap.Logger) *QueueConsumer {
	return &QueueConsumer{
		reader:  reader,
		store:   store,
		sink:    sink,
		logger:  logger,
		lastSeq: make(map[string]int64),
	}
}

func (qc *QueueConsumer) Name() string { return "queue" }

// Dropped reports how many poison messages were discarded.
func (qc *QueueConsumer) Dropped() int64 { return qc.dropped }

func (qc *QueueConsumer) Run(ctx context.Context) error {
	qc.logger.Info("queue consumer started")
	defer qc.reader.Close()

	for {
		msg, err := qc.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}

		var fact models.PriceFact
		if err := json.Unmarshal(msg.Value, &fact); err != nil {
			// Poison message: drop without requeue so it is never
			// redelivered.
			qc.dropped++
			qc.logger.Warn("dropping unparseable queue message",
				zap.String("key", string(msg.Key)), zap.Error(err))
			qc.commit(ctx, msg)
			continue
		}

		if fact.Price <= 0 {
			qc.dropped++
			qc.logger.Warn("dropping fact with non-positive price",
				zap.String("symbol", fact.Symbol), zap.Float64("price", fact.Price))
			qc.commit(ctx, msg)
			continue
		}

		// Duplicate delivery: already applied, just acknowledge.
		if fact.SeqID != 0 && fact.SeqID <= qc.lastSeq[fact.Symbol] {
			qc.commit(ctx, msg)
			continue
		}

		if !qc.store.ApplyFact(fact) {
			qc.logger.Warn("fact for unknown symbol ignored", zap.String("symbol", fact.Symbol))
			qc.commit(ctx, msg)
			continue
		}

		qc.lastSeq[fact.Symbol] = fact.SeqID
		qc.sink.Stage(fact)
		qc.commit(ctx, msg)
	}
}

func (qc *QueueConsumer) commit(ctx context.Context, msg kafka.Message) {
	if err := qc.reader.CommitMessages(ctx, msg); err != nil {
		qc.logger.Error("commit failed", zap.Error(err))
	}
}
