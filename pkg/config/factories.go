package config

import (
	"fmt"

	"github.com/marmos91/httpmemfs/internal/logger"
	"github.com/marmos91/httpmemfs/pkg/filter"
	"github.com/marmos91/httpmemfs/pkg/origin"
	"github.com/marmos91/httpmemfs/pkg/vfs"
	"github.com/marmos91/httpmemfs/pkg/workerpool"
	"github.com/mitchellh/mapstructure"
)

// decodeSection decodes a type-specific configuration map into out.
//
// Input is weakly typed because values from environment variables and CLI
// flags arrive as strings.
func decodeSection(options map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(options)
}

// CreateOrigin creates the remote origin based on configuration.
//
// Supported types:
//   - "http": Uses pkg/origin (HTTP GET fetch-through)
func CreateOrigin(cfg *OriginConfig) (origin.Origin, error) {
	switch cfg.Type {
	case "http":
		return createHTTPOrigin(cfg.HTTP)
	default:
		return nil, fmt.Errorf("unknown origin type: %q", cfg.Type)
	}
}

func createHTTPOrigin(options map[string]any) (origin.Origin, error) {
	var httpCfg origin.HTTPConfig
	if err := decodeSection(options, &httpCfg); err != nil {
		return nil, fmt.Errorf("failed to decode http origin config: %w", err)
	}

	if err := validate.Struct(httpCfg); err != nil {
		return nil, fmt.Errorf("http origin: %w", formatValidationError(err))
	}

	o, err := origin.NewHTTP(httpCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create http origin: %w", err)
	}
	return o, nil
}

// CreateFilter creates the ignore-pattern predicate. It returns nil, nil
// when filtering is disabled.
//
// Supported types:
//   - "glob": Uses pkg/filter (gitignore-style glob patterns)
func CreateFilter(cfg *FilterConfig) (filter.Matcher, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	switch cfg.Type {
	case "glob":
		var globCfg filter.GlobConfig
		if err := decodeSection(cfg.Glob, &globCfg); err != nil {
			return nil, fmt.Errorf("failed to decode glob filter config: %w", err)
		}
		g, err := filter.NewGlob(globCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create glob filter: %w", err)
		}
		return g, nil
	default:
		return nil, fmt.Errorf("unknown filter type: %q", cfg.Type)
	}
}

// CreatePool creates the download worker pool. m may be nil.
func CreatePool(cfg *WorkersConfig, m workerpool.Metrics) (*workerpool.Pool, error) {
	pool, err := workerpool.New(workerpool.Options{
		Size:      cfg.Size,
		QueueSize: cfg.QueueSize,
		Name:      "downloads",
		Metrics:   m,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	return pool, nil
}

// CreateFilesystem builds the engine from cfg and seeds it from
// filesystem.seed_path when set. The pool is owned by the caller and is
// drained by Filesystem.Shutdown.
func CreateFilesystem(cfg *Config, o origin.Origin, pool *workerpool.Pool, m vfs.Metrics) (*vfs.Filesystem, error) {
	match, err := CreateFilter(&cfg.Filter)
	if err != nil {
		return nil, err
	}

	fs, err := vfs.New(vfs.Options{
		Origin:         o,
		Pool:           pool,
		Filter:         match,
		WaitTimeout:    cfg.Filesystem.WaitTimeout,
		PollInterval:   cfg.Filesystem.PollInterval,
		ReadonlyPolicy: vfs.ReadonlyPolicy(cfg.Filesystem.ReadonlyPolicy),
		VolumeName:     cfg.Filesystem.VolumeName,
		MaxFileSize:    cfg.Filesystem.MaxFileSize,
		Metrics:        m,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create filesystem: %w", err)
	}

	if cfg.Filesystem.SeedPath != "" {
		tree, err := vfs.LoadDirTree(cfg.Filesystem.SeedPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load seed tree: %w", err)
		}
		if err := fs.Seed(tree); err != nil {
			return nil, fmt.Errorf("failed to seed filesystem: %w", err)
		}
		logger.Info("Seeded filesystem from %s", cfg.Filesystem.SeedPath)
	}

	return fs, nil
}
