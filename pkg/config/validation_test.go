package config

import (
	"strings"
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults",
			mutate: func(*Config) {},
		},
		{
			name:    "unknown log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "Format",
		},
		{
			name:    "unknown origin type",
			mutate:  func(c *Config) { c.Origin.Type = "ftp" },
			wantErr: "Type",
		},
		{
			name:    "missing base url",
			mutate:  func(c *Config) { delete(c.Origin.HTTP, "base_url") },
			wantErr: "base_url",
		},
		{
			name:    "negative workers",
			mutate:  func(c *Config) { c.Workers.Size = -1 },
			wantErr: "Size",
		},
		{
			name:    "unknown readonly policy",
			mutate:  func(c *Config) { c.Filesystem.ReadonlyPolicy = "never" },
			wantErr: "ReadonlyPolicy",
		},
		{
			name: "poll longer than timeout",
			mutate: func(c *Config) {
				c.Filesystem.WaitTimeout = time.Millisecond
				c.Filesystem.PollInterval = time.Second
			},
			wantErr: "poll_interval",
		},
		{
			name:    "negative max file size",
			mutate:  func(c *Config) { c.Filesystem.MaxFileSize = -1 },
			wantErr: "MaxFileSize",
		},
		{
			name:    "metrics port out of range",
			mutate:  func(c *Config) { c.Metrics.Port = 70000 },
			wantErr: "Port",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Expected valid config, got: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got: %v", tt.wantErr, err)
			}
		})
	}
}
