package engine

import (
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	valid := Config{
		Workers:      4,
		RetryBudget:  2,
		DatabasePath: "scenes.db",
		JitterMin:    time.Second,
		JitterMax:    2 * time.Second,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero workers", func(c *Config) { c.Workers = 0 }},
		{"negative retry budget", func(c *Config) { c.RetryBudget = -1 }},
		{"missing database path", func(c *Config) { c.DatabasePath = "" }},
		{"inverted jitter", func(c *Config) { c.JitterMax = c.JitterMin / 2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			if err := c.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestConfigDegradedModesAreValid(t *testing.T) {
	// No proxies, no captcha key, no redis: still a runnable config.
	c := Config{Workers: 1, DatabasePath: "scenes.db"}
	if err := c.Validate(); err != nil {
		t.Errorf("degraded config rejected: %v", err)
	}
}
