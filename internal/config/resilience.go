package config

import (
	"time"

	"journal_backend/internal/failure"
	"journal_backend/internal/retry"

	"github.com/caarlos0/env/v11"
)

// ResilienceConfig bounds the remote workbook calls. Reads and writes get
// separate timeouts; retries stay off unless REMOTE_MAX_RETRIES says otherwise.
type ResilienceConfig struct {
	Read    retry.Config
	Write   retry.Config
	Resolve retry.Config
}

type resilienceEnv struct {
	ReadTimeout    time.Duration `env:"REMOTE_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout   time.Duration `env:"REMOTE_WRITE_TIMEOUT" envDefault:"20s"`
	ResolveTimeout time.Duration `env:"REMOTE_RESOLVE_TIMEOUT" envDefault:"15s"`
	MaxRetries     int           `env:"REMOTE_MAX_RETRIES" envDefault:"0"`
	BaseDelay      time.Duration `env:"REMOTE_RETRY_BASE_DELAY" envDefault:"1s"`
	MaxDelay       time.Duration `env:"REMOTE_RETRY_MAX_DELAY" envDefault:"10s"`
}

func LoadResilience() (ResilienceConfig, error) {
	var raw resilienceEnv
	if err := env.Parse(&raw); err != nil {
		return ResilienceConfig{}, err
	}
	if raw.MaxRetries < 0 {
		raw.MaxRetries = 0
	}
	build := func(timeout time.Duration) retry.Config {
		return retry.Config{
			MaxRetries: raw.MaxRetries,
			BaseDelay:  raw.BaseDelay,
			MaxDelay:   raw.MaxDelay,
			Timeout:    timeout,
			Permanent:  failure.Permanent,
		}
	}
	return ResilienceConfig{
		Read:    build(raw.ReadTimeout),
		Write:   build(raw.WriteTimeout),
		Resolve: build(raw.ResolveTimeout),
	}, nil
}
