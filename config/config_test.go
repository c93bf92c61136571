package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	t.Setenv("L2BOOK_CONFIG", "")
	c, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "btc_orderbook_updates.csv", c.Feed.Path)
	assert.Equal(t, 2, c.Feed.TickDigits)
	assert.Equal(t, 4096, c.Engine.ChannelCapacity)
	assert.True(t, c.Consumer.LogUpdates)
	assert.Equal(t, "info", c.Logging.Level)
	assert.Equal(t, "BTC/USDT", c.Kafka.Key)
	assert.Equal(t, int64(64<<20), c.Journal.SegmentSize)
	assert.Equal(t, 50, c.History.Keep)
	assert.Empty(t, c.Kafka.Brokers)
}

func TestYAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "l2book.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
feed:
  path: other.csv
engine:
  channel_capacity: 1024
consumer:
  log_updates: false
kafka:
  brokers: [localhost:9092]
  topic: l2book.top
`), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "other.csv", c.Feed.Path)
	assert.Equal(t, 1024, c.Engine.ChannelCapacity)
	assert.False(t, c.Consumer.LogUpdates)
	assert.Equal(t, []string{"localhost:9092"}, c.Kafka.Brokers)
	assert.Equal(t, "l2book.top", c.Kafka.Topic)
	// untouched keys keep their defaults
	assert.Equal(t, 2, c.Feed.TickDigits)
}

func TestConfigPathFromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: debug\n"), 0o644))
	t.Setenv("L2BOOK_CONFIG", path)

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "debug", c.Logging.Level)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("L2BOOK_CONFIG", "")
	t.Setenv("L2BOOK_FEED_PATH", "env.csv")
	t.Setenv("L2BOOK_CHANNEL_CAPACITY", "8")
	t.Setenv("L2BOOK_LOG_UPDATES", "false")
	t.Setenv("L2BOOK_PIN_THREADS", "1")
	t.Setenv("L2BOOK_KAFKA_BROKERS", "a:9092, b:9092,")
	t.Setenv("L2BOOK_KAFKA_TOPIC", "top")
	t.Setenv("L2BOOK_KAFKA_KEY", "ETH/USDT")
	t.Setenv("L2BOOK_SEGMENT_SIZE", "1048576")
	t.Setenv("L2BOOK_HISTORY_KEEP", "3")

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "env.csv", c.Feed.Path)
	assert.Equal(t, 8, c.Engine.ChannelCapacity)
	assert.False(t, c.Consumer.LogUpdates)
	assert.True(t, c.Engine.PinThreads)
	assert.Equal(t, []string{"a:9092", "b:9092"}, c.Kafka.Brokers)
	assert.Equal(t, "ETH/USDT", c.Kafka.Key)
	assert.Equal(t, int64(1<<20), c.Journal.SegmentSize)
	assert.Equal(t, 3, c.History.Keep)
}

// --- Edge Cases ---

func TestBadEnvNumber(t *testing.T) {
	t.Setenv("L2BOOK_CONFIG", "")
	t.Setenv("L2BOOK_CHANNEL_CAPACITY", "lots")
	_, err := Load("")
	assert.Error(t, err)
}

func TestBadEnvSegmentSize(t *testing.T) {
	t.Setenv("L2BOOK_CONFIG", "")
	t.Setenv("L2BOOK_SEGMENT_SIZE", "64MiB")
	_, err := Load("")
	assert.Error(t, err)
}

func TestMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero capacity", func(c *Config) { c.Engine.ChannelCapacity = 0 }},
		{"negative capacity", func(c *Config) { c.Engine.ChannelCapacity = -1 }},
		{"tick digits too large", func(c *Config) { c.Feed.TickDigits = 9 }},
		{"negative tick digits", func(c *Config) { c.Feed.TickDigits = -1 }},
		{"brokers without topic", func(c *Config) { c.Kafka.Brokers = []string{"x:1"} }},
		{"negative segment size", func(c *Config) { c.Journal.SegmentSize = -1 }},
		{"negative history keep", func(c *Config) { c.History.Keep = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
	assert.NoError(t, Default().Validate())
}
