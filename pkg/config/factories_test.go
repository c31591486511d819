package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/marmos91/httpmemfs/pkg/filter"
	"github.com/marmos91/httpmemfs/pkg/origin"
)

func TestCreateOrigin_HTTP(t *testing.T) {
	o, err := CreateOrigin(&OriginConfig{
		Type: "http",
		HTTP: map[string]any{
			"base_url":       "http://example.com/files/",
			"header_timeout": "2s",
			"max_retries":    "2", // env vars arrive as strings
			"headers":        map[string]any{"Authorization": "Bearer x"},
		},
	})
	if err != nil {
		t.Fatalf("CreateOrigin failed: %v", err)
	}

	if _, ok := o.(*origin.HTTP); !ok {
		t.Fatalf("Expected *origin.HTTP, got %T", o)
	}
	u, err := o.Resolve(`\a\b.txt`)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if u != "http://example.com/files/a/b.txt" {
		t.Errorf("Unexpected URL: %s", u)
	}
}

func TestCreateOrigin_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  OriginConfig
	}{
		{"unknown type", OriginConfig{Type: "ftp"}},
		{"missing base url", OriginConfig{Type: "http", HTTP: map[string]any{}}},
		{"bad duration", OriginConfig{Type: "http", HTTP: map[string]any{
			"base_url":       "http://example.com/",
			"header_timeout": "soon",
		}}},
		{"negative retries", OriginConfig{Type: "http", HTTP: map[string]any{
			"base_url":    "http://example.com/",
			"max_retries": -1,
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := CreateOrigin(&tt.cfg); err == nil {
				t.Fatal("Expected error")
			}
		})
	}
}

func TestCreateFilter(t *testing.T) {
	m, err := CreateFilter(&FilterConfig{Enabled: false, Type: "glob"})
	if err != nil || m != nil {
		t.Fatalf("Disabled filter must be nil, got %v, %v", m, err)
	}

	m, err = CreateFilter(&FilterConfig{
		Enabled: true,
		Type:    "glob",
		Glob: map[string]any{
			"ignore":      []any{"*.tmp", "desktop.ini"},
			"whitelist":   "keep.tmp",
			"ignore_case": true,
		},
	})
	if err != nil {
		t.Fatalf("CreateFilter failed: %v", err)
	}

	if got := m.Match(`\a\X.TMP`, false); got != filter.Ignore {
		t.Errorf("Expected ignore, got %v", got)
	}
	if got := m.Match(`\keep.tmp`, false); got != filter.Whitelist {
		t.Errorf("Expected whitelist, got %v", got)
	}

	if _, err := CreateFilter(&FilterConfig{Enabled: true, Type: "regex"}); err == nil {
		t.Error("Expected error for unknown filter type")
	}
}

func TestCreateFilesystem_Seeded(t *testing.T) {
	seed := filepath.Join(t.TempDir(), "tree.yaml")
	tree := "- name: docs/\n  children:\n    - name: a.txt\n- name: index.html\n"
	if err := os.WriteFile(seed, []byte(tree), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := GetDefaultConfig()
	cfg.Filesystem.SeedPath = seed
	cfg.Filesystem.VolumeName = "SEEDED"
	cfg.Filter.Enabled = true

	o, err := CreateOrigin(&cfg.Origin)
	if err != nil {
		t.Fatal(err)
	}
	pool, err := CreatePool(&cfg.Workers, nil)
	if err != nil {
		t.Fatal(err)
	}

	fs, err := CreateFilesystem(cfg, o, pool, nil)
	if err != nil {
		t.Fatalf("CreateFilesystem failed: %v", err)
	}
	defer func() { _ = fs.Shutdown(context.Background()) }()

	if n := fs.Root().Len(); n != 2 {
		t.Errorf("Expected 2 seeded root entries, got %d", n)
	}
	if name := fs.VolumeInfo().Name; name != "SEEDED" {
		t.Errorf("Expected volume name SEEDED, got %q", name)
	}
}

func TestCreateFilesystem_BadSeed(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Filesystem.SeedPath = filepath.Join(t.TempDir(), "missing.yaml")

	o, err := CreateOrigin(&cfg.Origin)
	if err != nil {
		t.Fatal(err)
	}
	pool, err := CreatePool(&cfg.Workers, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Close()

	_, err = CreateFilesystem(cfg, o, pool, nil)
	if err == nil || !strings.Contains(err.Error(), "seed") {
		t.Fatalf("Expected seed error, got %v", err)
	}
}

func TestCreatePool_Invalid(t *testing.T) {
	if _, err := CreatePool(&WorkersConfig{Size: 0}, nil); err == nil {
		t.Fatal("Expected error for zero-sized pool")
	}
}

func TestInitializeMetrics_Disabled(t *testing.T) {
	res := InitializeMetrics(GetDefaultConfig(), nil)
	if res.Server != nil || res.Filesystem != nil || res.Pool != nil {
		t.Errorf("Expected no metrics components when disabled, got %+v", res)
	}
}
