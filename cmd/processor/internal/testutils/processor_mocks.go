package testutils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
)

type MockKafkaReader struct {
	Messages []kafka.Message
	Index    int
	Mu       sync.Mutex
	// Closed simulates a closed connection or end of stream
	Closed bool
}

func (m *MockKafkaReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	if m.Closed {
		return kafka.Message{}, io.EOF
	}

	if m.Index >= len(m.Messages) {
		// DeadlineExceeded is a clean way to stop the processor loop in tests
		return kafka.Message{}, context.DeadlineExceeded
	}

	msg := m.Messages[m.Index]
	m.Index++
	return msg, nil
}

func (m *MockKafkaReader) Close() error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Closed = true
	return nil
}

// MockPipeline records issued commands and applies staged SETs to the
// owning client's store on Exec, so reads observe committed writes.
type MockPipeline struct {
	redis.Pipeliner // Embed interface to satisfy the full surface

	client       *MockRedisClient
	staged       map[string]string
	ExecCount    int
	ExecFails    int // fail this many upcoming Execs
	RecordedCmds []string
	Published    map[string][]string // channel -> payloads
	Mu           sync.Mutex
}

func (m *MockPipeline) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.RecordedCmds = append(m.RecordedCmds, "SET "+key)
	m.staged[key] = asString(value)
	return redis.NewStatusCmd(ctx)
}

func (m *MockPipeline) ZAdd(ctx context.Context, key string, members ...redis.Z) *redis.IntCmd {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	for _, z := range members {
		m.RecordedCmds = append(m.RecordedCmds, fmt.Sprintf("ZADD %s %v", key, z.Member))
	}
	return redis.NewIntCmd(ctx)
}

func (m *MockPipeline) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.RecordedCmds = append(m.RecordedCmds, "PUBLISH "+channel)
	m.Published[channel] = append(m.Published[channel], asString(message))
	return redis.NewIntCmd(ctx)
}

func (m *MockPipeline) Exec(ctx context.Context) ([]redis.Cmder, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.ExecCount++
	if m.ExecFails > 0 {
		m.ExecFails--
		// A failed MULTI/EXEC discards everything it staged
		m.staged = make(map[string]string)
		return nil, errors.New("exec failed")
	}
	if m.client != nil {
		m.client.Mu.Lock()
		for k, v := range m.staged {
			m.client.Store[k] = v
		}
		m.client.Mu.Unlock()
	}
	m.staged = make(map[string]string)
	return nil, nil
}

type MockRedisClient struct {
	PipelineSpy *MockPipeline
	Store       map[string]string
	Mu          sync.Mutex
}

func NewMockRedisClient() *MockRedisClient {
	c := &MockRedisClient{Store: make(map[string]string)}
	c.PipelineSpy = &MockPipeline{
		client:    c,
		staged:    make(map[string]string),
		Published: make(map[string][]string),
	}
	return c
}

func (m *MockRedisClient) TxPipeline() redis.Pipeliner {
	return m.PipelineSpy
}

func (m *MockRedisClient) Get(ctx context.Context, key string) *redis.StringCmd {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	val, ok := m.Store[key]
	if !ok {
		cmd := redis.NewStringCmd(ctx)
		cmd.SetErr(redis.Nil)
		return cmd
	}
	return redis.NewStringResult(val, nil)
}

func (m *MockRedisClient) Ping(ctx context.Context) *redis.StatusCmd {
	return redis.NewStatusCmd(ctx)
}

func (m *MockRedisClient) Close() error { return nil }

func asString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return fmt.Sprintf("%v", v)
	}
}
