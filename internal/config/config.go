package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	DevelopmentAPIURL = "http://localhost:8000"
	DefaultTimeout    = 60 * time.Second
	DefaultSileroPath = "./internal/files/silero_vad.onnx"
)

var ErrMissingAPIURL = errors.New("API_URL must be set in production")

type Config struct {
	Env     string
	APIURL  string
	Timeout time.Duration

	Dev     bool
	LogPath string

	// Speech
	SpeechAPIKey    string
	SileroModelPath string
	InputDevice     int
}

// Overrides carries values from command line flags. Nil fields fall back to
// the environment.
type Overrides struct {
	Env             *string
	APIURL          *string
	Timeout         *time.Duration
	Dev             *bool
	LogPath         *string
	SileroModelPath *string
	InputDevice     *int
}

// Load reads .env (if present), the environment and then flag overrides.
func Load(o Overrides) (*Config, error) {
	// a missing .env is normal
	_ = godotenv.Load()

	timeout, err := getEnvAsDurationOrDefault("REQUEST_TIMEOUT", DefaultTimeout)
	if err != nil {
		return nil, err
	}
	inputDevice, err := getEnvAsIntOrDefault("INPUT_DEVICE", -1)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Env:             getEnvOrDefault("APP_ENV", EnvDevelopment),
		APIURL:          os.Getenv("API_URL"),
		Timeout:         timeout,
		Dev:             getEnvAsBool("DEV"),
		LogPath:         os.Getenv("LOG_PATH"),
		SpeechAPIKey:    os.Getenv("API_KEY"),
		SileroModelPath: getEnvOrDefault("SILERO_MODEL_PATH", DefaultSileroPath),
		InputDevice:     inputDevice,
	}

	o.apply(cfg)

	if cfg.APIURL == "" {
		if cfg.Env == EnvProduction {
			return nil, ErrMissingAPIURL
		}
		cfg.APIURL = DevelopmentAPIURL
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (o Overrides) apply(cfg *Config) {
	if o.Env != nil {
		cfg.Env = *o.Env
	}
	if o.APIURL != nil {
		cfg.APIURL = *o.APIURL
	}
	if o.Timeout != nil {
		cfg.Timeout = *o.Timeout
	}
	if o.Dev != nil {
		cfg.Dev = *o.Dev
	}
	if o.LogPath != nil {
		cfg.LogPath = *o.LogPath
	}
	if o.SileroModelPath != nil {
		cfg.SileroModelPath = *o.SileroModelPath
	}
	if o.InputDevice != nil {
		cfg.InputDevice = *o.InputDevice
	}
}

func (c *Config) Validate() error {
	switch c.Env {
	case EnvDevelopment, EnvProduction:
	default:
		return fmt.Errorf("unknown environment %q", c.Env)
	}

	u, err := url.Parse(c.APIURL)
	if err != nil {
		return fmt.Errorf("invalid API URL %q: %w", c.APIURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid API URL %q: scheme must be http or https", c.APIURL)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid API URL %q: missing host", c.APIURL)
	}

	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %s", c.Timeout)
	}
	return nil
}

// VoiceEnabled reports whether dictation can reach the speech API.
func (c *Config) VoiceEnabled() bool {
	return c.SpeechAPIKey != ""
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsBool(key string) bool {
	val, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && val
}

func getEnvAsIntOrDefault(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvAsDurationOrDefault(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
