package consumer

import (
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
)

func TestReaderConfig(t *testing.T) {
	c := &Consumer{
		brokers:     []string{"k1:9092"},
		groupID:     "engine",
		topic:       "connector.events",
		maxWait:     _defaultMaxWait,
		startOffset: kafka.FirstOffset,
	}

	cfg := c.readerConfig()
	assert.Equal(t, []string{"k1:9092"}, cfg.Brokers)
	assert.Equal(t, "engine", cfg.GroupID)
	assert.Equal(t, "connector.events", cfg.Topic)
	assert.Equal(t, 1, cfg.MinBytes)
	assert.Equal(t, _defaultMaxWait, cfg.MaxWait)
	assert.Equal(t, kafka.FirstOffset, cfg.StartOffset)
	assert.Zero(t, cfg.CommitInterval)
}

func TestOptions(t *testing.T) {
	c := &Consumer{}
	for _, opt := range []Option{ConnAttempts(2), ConnTimeout(time.Millisecond), MaxWait(time.Second), StartOffset(kafka.LastOffset)} {
		opt(c)
	}

	assert.Equal(t, 2, c.connAttempts)
	assert.Equal(t, time.Millisecond, c.connTimeout)
	assert.Equal(t, time.Second, c.readerConfig().MaxWait)
	assert.Equal(t, kafka.LastOffset, c.readerConfig().StartOffset)
}
