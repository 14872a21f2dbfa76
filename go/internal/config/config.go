package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds every setting of the poker server
type Config struct {
	Port           string   `yaml:"port"`
	APISecret      string   `yaml:"api_secret"`
	LogLevel       string   `yaml:"log_level"`
	LogFormat      string   `yaml:"log_format"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	StaticDir      string   `yaml:"static_dir"`

	WebSocket WebSocketConfig `yaml:"websocket"`
	NATS      NATSConfig      `yaml:"nats"`
}

// WebSocketConfig holds game connection settings
type WebSocketConfig struct {
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	PingInterval   time.Duration `yaml:"ping_interval"`
	MaxMessageSize int64         `yaml:"max_message_size"`
	HubBufferSize  int           `yaml:"hub_buffer_size"`
	RateLimit      float64       `yaml:"rate_limit"`
	RateBurst      int           `yaml:"rate_burst"`
}

// NATSConfig holds event mirroring settings. An empty URL disables mirroring.
type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// Default returns the configuration used when nothing is set
func Default() Config {
	return Config{
		Port:           "3000",
		LogLevel:       "info",
		LogFormat:      "console",
		AllowedOrigins: []string{"*"},
		WebSocket: WebSocketConfig{
			WriteTimeout:   10 * time.Second,
			ReadTimeout:    60 * time.Second,
			PingInterval:   30 * time.Second,
			MaxMessageSize: 16 << 20,
			HubBufferSize:  100,
			RateLimit:      0,
			RateBurst:      40,
		},
		NATS: NATSConfig{
			SubjectPrefix: "poker.games",
		},
	}
}

// Load builds the configuration from, in increasing priority: defaults, the
// YAML file named by CONFIG_FILE, a .env file and the process environment.
func Load() (Config, error) {
	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("could not load .env file: %w", err)
	}

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports settings that cannot work
func (c Config) Validate() error {
	port, err := strconv.Atoi(c.Port)
	if err != nil || port <= 0 || port > 65535 {
		return fmt.Errorf("invalid port %q", c.Port)
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("invalid log format %q", c.LogFormat)
	}
	if c.WebSocket.PingInterval <= 0 {
		return fmt.Errorf("websocket ping interval must be positive")
	}
	if c.WebSocket.ReadTimeout <= c.WebSocket.PingInterval {
		return fmt.Errorf("websocket read timeout (%s) must exceed ping interval (%s)",
			c.WebSocket.ReadTimeout, c.WebSocket.PingInterval)
	}
	if c.WebSocket.WriteTimeout <= 0 {
		return fmt.Errorf("websocket write timeout must be positive")
	}
	if c.WebSocket.MaxMessageSize <= 0 {
		return fmt.Errorf("websocket max message size must be positive")
	}
	if c.WebSocket.HubBufferSize <= 0 {
		return fmt.Errorf("hub buffer size must be positive")
	}
	if c.WebSocket.RateLimit < 0 {
		return fmt.Errorf("websocket rate limit must not be negative")
	}
	return nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.APISecret = getEnv("API_SECRET", cfg.APISecret)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)
	cfg.StaticDir = getEnv("STATIC_DIR", cfg.StaticDir)
	cfg.NATS.URL = getEnv("NATS_URL", cfg.NATS.URL)
	cfg.NATS.SubjectPrefix = getEnv("NATS_SUBJECT_PREFIX", cfg.NATS.SubjectPrefix)

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = splitList(origins)
	}

	var err error
	ws := &cfg.WebSocket
	if ws.WriteTimeout, err = getEnvAsDuration("WS_WRITE_TIMEOUT", ws.WriteTimeout); err != nil {
		return err
	}
	if ws.ReadTimeout, err = getEnvAsDuration("WS_READ_TIMEOUT", ws.ReadTimeout); err != nil {
		return err
	}
	if ws.PingInterval, err = getEnvAsDuration("WS_PING_INTERVAL", ws.PingInterval); err != nil {
		return err
	}
	if ws.MaxMessageSize, err = getEnvAsInt64("WS_MAX_MESSAGE_SIZE", ws.MaxMessageSize); err != nil {
		return err
	}
	hubBuffer, err := getEnvAsInt64("HUB_BUFFER_SIZE", int64(ws.HubBufferSize))
	if err != nil {
		return err
	}
	ws.HubBufferSize = int(hubBuffer)
	if ws.RateLimit, err = getEnvAsFloat("WS_RATE_LIMIT", ws.RateLimit); err != nil {
		return err
	}
	burst, err := getEnvAsInt64("WS_RATE_BURST", int64(ws.RateBurst))
	if err != nil {
		return err
	}
	ws.RateBurst = int(burst)
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getEnvAsInt64(key string, defaultValue int64) (int64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvAsFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
