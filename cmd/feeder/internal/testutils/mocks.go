package testutils

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"quotestream/cmd/feeder/internal/feeder"
)

type MockKafkaWriter struct {
	Mu       sync.Mutex
	Messages []kafka.Message
}

func (w *MockKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.Mu.Lock()
	defer w.Mu.Unlock()
	w.Messages = append(w.Messages, msgs...)
	return nil
}

func (w *MockKafkaWriter) Close() error { return nil }

type MockClock struct {
	Mu          sync.Mutex
	CurrentTime time.Time
}

func (c *MockClock) Now() time.Time {
	c.Mu.Lock()
	defer c.Mu.Unlock()
	return c.CurrentTime
}

// Sleep advances time instantly so tests run hot.
func (c *MockClock) Sleep(d time.Duration) {
	c.Mu.Lock()
	defer c.Mu.Unlock()
	c.CurrentTime = c.CurrentTime.Add(d)
}

type MockRand struct {
	ValInt   int
	ValFloat float64
}

func (r *MockRand) Intn(n int) int   { return r.ValInt % n }
func (r *MockRand) Float64() float64 { return r.ValFloat }

// MockKafkaConn spies on topic administration calls.
type MockKafkaConn struct {
	Mu            sync.Mutex
	CreatedTopics []string
}

func (c *MockKafkaConn) Controller() (kafka.Broker, error) {
	return kafka.Broker{Host: "controller", Port: 9092}, nil
}

func (c *MockKafkaConn) Close() error { return nil }

func (c *MockKafkaConn) CreateTopics(topics ...kafka.TopicConfig) error {
	c.Mu.Lock()
	defer c.Mu.Unlock()
	for _, topic := range topics {
		c.CreatedTopics = append(c.CreatedTopics, topic.Topic)
	}
	return nil
}

func (c *MockKafkaConn) ReadPartitions(topics ...string) ([]kafka.Partition, error) {
	return []kafka.Partition{{ID: 0}}, nil
}

type MockKafkaDialer struct {
	ConnSpy *MockKafkaConn
}

func (d *MockKafkaDialer) DialContext(ctx context.Context, network, address string) (feeder.KafkaConn, error) {
	if d.ConnSpy == nil {
		d.ConnSpy = &MockKafkaConn{}
	}
	return d.ConnSpy, nil
}
