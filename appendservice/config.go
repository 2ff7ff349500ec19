package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

// Config is read from the environment.
type Config struct {
	ReturnMode string `mapstructure:"RETURN_MODE"`
	Addr       string `mapstructure:"ADDR"`

	SourceURL string `mapstructure:"SOURCE_URL"`

	CDNPrefix  string        `mapstructure:"CDN_PREFIX"`
	GCSBucket  string        `mapstructure:"GCS_BUCKET"`
	GCSPrefix  string        `mapstructure:"GCS_PREFIX"`
	StorageTTL time.Duration `mapstructure:"STORAGE_TTL"`

	HMACKey     string        `mapstructure:"HMAC_KEY"`
	HMACTimeout time.Duration `mapstructure:"HMAC_TIMEOUT"`

	CacheSizeMB int64         `mapstructure:"CACHE_SIZE_MB"`
	CacheTTL    time.Duration `mapstructure:"CACHE_TTL"`

	SentryDSN string `mapstructure:"SENTRY_DSN"`
}

func defaultConfig() Config {
	return Config{
		ReturnMode:  "direct",
		Addr:        "127.0.0.1:8000",
		SourceURL:   "https://download.mozilla.org/",
		StorageTTL:  60 * time.Minute,
		HMACTimeout: 10 * time.Minute,
		CacheSizeMB: 1000,
		CacheTTL:    5 * time.Minute,
	}
}

// loadConfig decodes KEY=value pairs as found in os.Environ over the
// defaults. Empty values keep the default.
func loadConfig(environ []string) (*Config, error) {
	raw := make(map[string]interface{})
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || v == "" {
			continue
		}
		raw[k] = v
	}

	cfg := defaultConfig()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Result:           &cfg,
	})
	if err != nil {
		return nil, errors.Wrap(err, "NewDecoder")
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, errors.Wrap(err, "Decode")
	}

	switch cfg.ReturnMode {
	case "redirect":
		if cfg.GCSBucket == "" {
			return nil, errors.New("GCS_BUCKET is required in redirect mode")
		}
		if cfg.CDNPrefix == "" {
			cfg.CDNPrefix = fmt.Sprintf("https://storage.googleapis.com/%s/", cfg.GCSBucket)
		}
	default:
		cfg.ReturnMode = "direct"
	}

	if cfg.CacheSizeMB <= 0 {
		return nil, errors.Errorf("CACHE_SIZE_MB must be positive, got %d", cfg.CacheSizeMB)
	}

	return &cfg, nil
}
