package config

import (
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	tests := []struct {
		name   string
		check  func(*Config) bool
		expect string
	}{
		{
			name:   "default mode is api",
			check:  func(c *Config) bool { return c.Mode == "api" },
			expect: "api",
		},
		{
			name:   "default port is 8080",
			check:  func(c *Config) bool { return c.Port == 8080 },
			expect: "8080",
		},
		{
			name:   "default log format is json",
			check:  func(c *Config) bool { return c.LogFormat == "json" },
			expect: "json",
		},
		{
			name:   "default collection interval",
			check:  func(c *Config) bool { return c.CollectionInterval == 1800 },
			expect: "1800",
		},
		{
			name:   "default batch size",
			check:  func(c *Config) bool { return c.BatchSize == 2000 },
			expect: "2000",
		},
		{
			name:   "default max pages per collection",
			check:  func(c *Config) bool { return c.MaxPagesPerCollection == 50 },
			expect: "50",
		},
		{
			name:   "auto collection enabled by default",
			check:  func(c *Config) bool { return !c.DisableAutoCollection },
			expect: "false",
		},
		{
			name:   "listen addr format",
			check:  func(c *Config) bool { return c.ListenAddr() == "0.0.0.0:8080" },
			expect: "0.0.0.0:8080",
		},
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.check(cfg) {
				t.Errorf("expected %s", tt.expect)
			}
		})
	}
}
