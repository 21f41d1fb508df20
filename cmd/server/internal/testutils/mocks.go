package testutils

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"quotestream/cmd/server/internal/protocol"
	"quotestream/pkg/models"
)

// MockClient simulates a connected websocket client
type MockClient struct {
	IDVal    string
	Messages []protocol.Outbound // Stores decoded JSON messages
	RawBytes []string            // Stores raw bytes
	Closed   bool
	Mu       sync.Mutex
}

func NewMockClient(id string) *MockClient {
	return &MockClient{IDVal: id, Messages: make([]protocol.Outbound, 0)}
}

func (m *MockClient) ID() string { return m.IDVal }

func (m *MockClient) Close() {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Closed = true
}

func (m *MockClient) SendJSON(v interface{}) {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	if resp, ok := v.(protocol.Outbound); ok {
		m.Messages = append(m.Messages, resp)
	}
}

func (m *MockClient) SendBytes(b []byte) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.RawBytes = append(m.RawBytes, string(b))
}

func (m *MockClient) LastEvent() string {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if len(m.Messages) == 0 {
		return ""
	}
	return m.Messages[len(m.Messages)-1].Event
}

func (m *MockClient) EventCount(event string) int {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	n := 0
	for _, msg := range m.Messages {
		if msg.Event == event {
			n++
		}
	}
	return n
}

// MockClock is a manually advanced clock.
type MockClock struct {
	Mu          sync.Mutex
	CurrentTime time.Time
}

func (c *MockClock) Now() time.Time {
	c.Mu.Lock()
	defer c.Mu.Unlock()
	return c.CurrentTime
}

func (c *MockClock) Advance(d time.Duration) {
	c.Mu.Lock()
	defer c.Mu.Unlock()
	c.CurrentTime = c.CurrentTime.Add(d)
}

// MockRand always returns a fixed value.
type MockRand struct {
	ValFloat float64
}

func (r *MockRand) Float64() float64 { return r.ValFloat }

// MockSink records what the source produced.
type MockSink struct {
	Mu      sync.Mutex
	Batches [][]models.PriceFact
	Staged  []models.PriceFact
}

func (s *MockSink) PublishBatch(ctx context.Context, facts []models.PriceFact) {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	batch := make([]models.PriceFact, len(facts))
	copy(batch, facts)
	s.Batches = append(s.Batches, batch)
}

func (s *MockSink) Stage(fact models.PriceFact) {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	s.Staged = append(s.Staged, fact)
}

// MockQueueReader replays a fixed message sequence, then blocks until
// the context ends.
type MockQueueReader struct {
	Messages []kafka.Message
	FetchErr error // returned once the sequence is exhausted, instead of blocking

	Mu      sync.Mutex
	next    int
	Commits int
	Closed  bool
}

func (r *MockQueueReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.Mu.Lock()
	if r.next < len(r.Messages) {
		msg := r.Messages[r.next]
		r.next++
		r.Mu.Unlock()
		return msg, nil
	}
	err := r.FetchErr
	r.Mu.Unlock()

	if err != nil {
		return kafka.Message{}, err
	}
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *MockQueueReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	r.Commits += len(msgs)
	return nil
}

func (r *MockQueueReader) Close() error {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	r.Closed = true
	return nil
}
