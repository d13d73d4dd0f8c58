package engine

import (
	"errors"
	"time"
)

// Config holds all pipeline configuration, injected from main.
// Immutable after construction; components copy what they need.
type Config struct {
	// Fetching
	FetchTimeout time.Duration
	MinBodyBytes int // 200 responses smaller than this are treated as blocked
	JitterMin    time.Duration
	JitterMax    time.Duration

	// Proxy pool
	ProxyURLs          []string
	ProxyProviderURL   string // rotation endpoint returning one address per line
	ProxyFailThreshold int
	ProxyCooldownBase  time.Duration
	ProxyCooldownMax   time.Duration

	// Challenge solver
	CaptchaAPIKey  string
	CaptchaAPIBase string

	// Page cache
	RedisURL        string
	CacheTTL        time.Duration
	CacheMaxEntries int

	// Orchestration
	Workers              int
	RetryBudget          int
	MaxEpisodesPerSource int

	// Storage
	DatabasePath string
}

// Validate checks settings that would make a run meaningless.
// Missing proxy or captcha credentials are NOT errors: the pipeline
// degrades to proxy-less, challenge-unsolved operation.
func (c Config) Validate() error {
	if c.Workers <= 0 {
		return errors.New("config: workers must be positive")
	}
	if c.RetryBudget < 0 {
		return errors.New("config: retry budget must be non-negative")
	}
	if c.DatabasePath == "" {
		return errors.New("config: database path is required")
	}
	if c.JitterMax < c.JitterMin {
		return errors.New("config: jitter max below jitter min")
	}
	return nil
}
