package internal

import (
	"fmt"
	"time"
)

type Config struct {
	Host      string `env:"HOST,default=0.0.0.0"`
	Port      int    `env:"PORT,default=8080"`
	LogLevel  string `env:"LOG_LEVEL,default=INFO"`
	JWTSecret string `env:"JWT_SECRET,required=true"`

	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,default=168h"`
	BadgerFilepath    string        `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath     string        `env:"BLUGE_FILEPATH,required=true"`

	BufferSize           int           `env:"BUFFER_SIZE,default=1024"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=256"`
	SinkTimeout          time.Duration `env:"SINK_TIMEOUT,default=2s"`
	MetricInterval       time.Duration `env:"METRIC_INTERVAL,default=15s"`
	CharReplacement      string        `env:"CHARACTER_REPLACEMENT,default=*"`

	WriteWait      time.Duration `env:"WS_WRITE_WAIT,default=10s"`
	PongWait       time.Duration `env:"WS_PONG_WAIT,default=60s"`
	PingPeriod     time.Duration `env:"WS_PING_PERIOD,default=54s"`
	MaxMessageSize int64         `env:"WS_MAX_MESSAGE_SIZE,default=16384"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
	DebugInspect    bool          `env:"DEBUG_INSPECT,default=false"`
}

func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate catches settings that would only fail later at runtime.
func (c Config) Validate() error {
	if len(c.JWTSecret) < 16 {
		return fmt.Errorf("JWT_SECRET must be at least 16 characters")
	}
	if c.PingPeriod >= c.PongWait {
		return fmt.Errorf("WS_PING_PERIOD (%s) must be shorter than WS_PONG_WAIT (%s)", c.PingPeriod, c.PongWait)
	}
	if c.ConnectionBufferSize <= 0 || c.BufferSize <= 0 {
		return fmt.Errorf("BUFFER_SIZE and CONNECTION_BUFFER_SIZE must be positive")
	}
	if c.MetricInterval <= 0 {
		return fmt.Errorf("METRIC_INTERVAL must be positive")
	}
	_, err := CharacterRune(c.CharReplacement)
	return err
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
