package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Feed struct {
		Path       string `yaml:"path"`
		TickDigits int    `yaml:"tick_digits"`
	} `yaml:"feed"`
	Engine struct {
		ChannelCapacity int  `yaml:"channel_capacity"`
		PinThreads      bool `yaml:"pin_threads"`
	} `yaml:"engine"`
	Consumer struct {
		LogUpdates bool `yaml:"log_updates"`
	} `yaml:"consumer"`
	Logging struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"logging"`
	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
	Kafka struct {
		Brokers []string `yaml:"brokers"`
		Topic   string   `yaml:"topic"`
		Key     string   `yaml:"key"`
	} `yaml:"kafka"`
	Journal struct {
		RecordDir   string `yaml:"record_dir"`
		SegmentSize int64  `yaml:"segment_size"`
	} `yaml:"journal"`
	History struct {
		Dir string `yaml:"dir"`
		// Keep is how many past runs are retained. Zero keeps all.
		Keep int `yaml:"keep"`
	} `yaml:"history"`
}

func defaultConfig() Config {
	var c Config
	c.Feed.Path = "btc_orderbook_updates.csv"
	c.Feed.TickDigits = 2
	c.Engine.ChannelCapacity = 4096
	c.Engine.PinThreads = false
	c.Consumer.LogUpdates = true
	c.Logging.Level = "info"
	c.Logging.Pretty = false
	c.Kafka.Key = "BTC/USDT"
	c.Journal.SegmentSize = 64 << 20
	c.History.Keep = 50
	return c
}

// Default returns the built-in configuration.
func Default() Config { return defaultConfig() }

// Load layers a YAML file (path, or $L2BOOK_CONFIG when path is empty) and
// then L2BOOK_* environment variables over the defaults.
func Load(path string) (Config, error) {
	c := defaultConfig()
	if path == "" {
		path = os.Getenv("L2BOOK_CONFIG")
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return c, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return c, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := applyEnv(&c); err != nil {
		return c, err
	}
	return c, c.Validate()
}

func applyEnv(c *Config) error {
	if v := os.Getenv("L2BOOK_FEED_PATH"); v != "" {
		c.Feed.Path = v
	}
	if v := os.Getenv("L2BOOK_TICK_DIGITS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: L2BOOK_TICK_DIGITS: %w", err)
		}
		c.Feed.TickDigits = n
	}
	if v := os.Getenv("L2BOOK_CHANNEL_CAPACITY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: L2BOOK_CHANNEL_CAPACITY: %w", err)
		}
		c.Engine.ChannelCapacity = n
	}
	if v := os.Getenv("L2BOOK_PIN_THREADS"); v != "" {
		c.Engine.PinThreads = truthy(v)
	}
	if v := os.Getenv("L2BOOK_LOG_UPDATES"); v != "" {
		c.Consumer.LogUpdates = truthy(v)
	}
	if v := os.Getenv("L2BOOK_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("L2BOOK_LOG_PRETTY"); v != "" {
		c.Logging.Pretty = truthy(v)
	}
	if v := os.Getenv("L2BOOK_METRICS_ADDR"); v != "" {
		c.Metrics.Addr = v
	}
	if v := os.Getenv("L2BOOK_KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitCSV(v)
	}
	if v := os.Getenv("L2BOOK_KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("L2BOOK_KAFKA_KEY"); v != "" {
		c.Kafka.Key = v
	}
	if v := os.Getenv("L2BOOK_RECORD_DIR"); v != "" {
		c.Journal.RecordDir = v
	}
	if v := os.Getenv("L2BOOK_HISTORY_DIR"); v != "" {
		c.History.Dir = v
	}
	if v := os.Getenv("L2BOOK_SEGMENT_SIZE"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("config: L2BOOK_SEGMENT_SIZE: %w", err)
		}
		c.Journal.SegmentSize = n
	}
	if v := os.Getenv("L2BOOK_HISTORY_KEEP"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: L2BOOK_HISTORY_KEEP: %w", err)
		}
		c.History.Keep = n
	}
	return nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Engine.ChannelCapacity <= 0 {
		errs = append(errs, fmt.Errorf("engine.channel_capacity must be positive, got %d", c.Engine.ChannelCapacity))
	}
	if c.Feed.TickDigits < 0 || c.Feed.TickDigits > 8 {
		errs = append(errs, fmt.Errorf("feed.tick_digits must be in [0,8], got %d", c.Feed.TickDigits))
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		errs = append(errs, errors.New("kafka.topic is required when kafka.brokers is set"))
	}
	if c.Journal.SegmentSize < 0 {
		errs = append(errs, fmt.Errorf("journal.segment_size must not be negative, got %d", c.Journal.SegmentSize))
	}
	if c.History.Keep < 0 {
		errs = append(errs, fmt.Errorf("history.keep must not be negative, got %d", c.History.Keep))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

func truthy(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
