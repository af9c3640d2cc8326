package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/ritzau/pomreactor/pkg/builder"
	"github.com/ritzau/pomreactor/pkg/modelbuilder"
	"github.com/ritzau/pomreactor/pkg/repository"
)

// FileName is the optional configuration file read from the working directory
const FileName = "pomreactor.toml"

const envPrefix = "POMREACTOR_"

// Config holds all configuration for the application
type Config struct {
	Basedir             string   `koanf:"basedir"`
	Files               []string `koanf:"file"`
	Recursive           bool     `koanf:"recursive"`
	LocalRepository     string   `koanf:"local-repository"`
	RemoteRepositories  []string `koanf:"remote-repositories"`
	RepositoryMerging   string   `koanf:"repository-merging"`
	ResolveDependencies bool     `koanf:"resolve-dependencies"`
	ProcessPlugins      bool     `koanf:"process-plugins"`
	ValidationLevel     string   `koanf:"validation-level"`
	ParentPolicy        string   `koanf:"parent-policy"`
	ActiveProfiles      []string `koanf:"active-profiles"`
	InactiveProfiles    []string `koanf:"inactive-profiles"`
	Offline             bool     `koanf:"offline"`
	ModelCacheSize      int      `koanf:"model-cache-size"`
	Format              string   `koanf:"format"`
	Port                int      `koanf:"port"`
	WatchQuietMs        int      `koanf:"watch-quiet-ms"`
	Verbosity           string   `koanf:"verbosity"`
	VerboseCnt          int      `koanf:"verbose"`
}

// Load loads configuration from defaults, config file, environment variables, and flags.
// Priority: Flags > Env > Config File > Defaults
func Load(f *pflag.FlagSet) (*Config, error) {
	return load(f, FileName)
}

func load(f *pflag.FlagSet, configFile string) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	defaults := map[string]interface{}{
		"basedir":              ".",
		"recursive":            true,
		"repository-merging":   "pom_dominant",
		"process-plugins":      true,
		"validation-level":     "strict",
		"parent-policy":        "lenient",
		"model-cache-size":     builder.DefaultModelCacheSize,
		"format":               "text",
		"port":                 8080,
		"watch-quiet-ms":       300,
		"verbosity":            "",
		"verbose":              0,
		"resolve-dependencies": false,
		"offline":              false,
	}
	if err := k.Load(makeMapProvider(defaults), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config File (optional)
	// We ignore errors here as the file might not exist
	_ = k.Load(file.Provider(configFile), toml.Parser())

	// 3. Environment Variables
	// Prefix: POMREACTOR_ (e.g., POMREACTOR_PARENT_POLICY=strict)
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(
			strings.TrimPrefix(s, envPrefix)), "_", "-")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags
	if f != nil {
		if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// Unmarshal into struct
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Files = splitList(cfg.Files)
	cfg.RemoteRepositories = splitList(cfg.RemoteRepositories)
	cfg.ActiveProfiles = splitList(cfg.ActiveProfiles)
	cfg.InactiveProfiles = splitList(cfg.InactiveProfiles)
	return &cfg, nil
}

// splitList splits comma-separated entries, as env vars carry lists
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// LogLevel maps verbosity to a log level. An explicit verbosity wins over
// the -v count.
func (c *Config) LogLevel() (slog.Level, error) {
	switch strings.ToLower(c.Verbosity) {
	case "":
	case "error":
		return slog.LevelError, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	default:
		return 0, fmt.Errorf("unknown verbosity %q", c.Verbosity)
	}
	switch {
	case c.VerboseCnt >= 1:
		return slog.LevelDebug, nil
	default:
		return slog.LevelInfo, nil
	}
}

// BuildingRequest maps the configuration onto a project building request
func (c *Config) BuildingRequest() (*builder.Request, error) {
	req := builder.NewRequest()

	level, err := modelbuilder.ParseValidationLevel(c.ValidationLevel)
	if err != nil {
		return nil, err
	}
	req.ValidationLevel = level
	req.ProcessPlugins = c.ProcessPlugins
	req.ResolveDependencies = c.ResolveDependencies
	req.Offline = c.Offline
	req.DisableModelCache = c.ModelCacheSize <= 0

	if req.RepositoryMerging, err = builder.ParseRepositoryMerging(c.RepositoryMerging); err != nil {
		return nil, err
	}
	if req.ParentPolicy, err = builder.ParseParentPolicy(c.ParentPolicy); err != nil {
		return nil, err
	}

	req.LocalRepository = c.LocalRepository
	if req.LocalRepository == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to locate the local repository: %w", err)
		}
		req.LocalRepository = filepath.Join(home, ".m2", "repository")
	}

	for _, spec := range c.RemoteRepositories {
		id, url, ok := strings.Cut(spec, "=")
		if !ok || id == "" || url == "" {
			return nil, fmt.Errorf("invalid remote repository %q, expected id=url", spec)
		}
		req.RemoteRepositories = append(req.RemoteRepositories, repository.NewRemoteRepository(id, url))
	}

	req.ActiveProfileIDs = c.ActiveProfiles
	req.InactiveProfileIDs = c.InactiveProfiles
	return req, nil
}

// NewBuilder creates a project builder over the local repository system
// with the configured model cache
func (c *Config) NewBuilder() (*builder.DefaultBuilder, error) {
	b := builder.NewDefaultBuilder(repository.NewLocalSystem())
	if c.ModelCacheSize > 0 && c.ModelCacheSize != builder.DefaultModelCacheSize {
		cache, err := modelbuilder.NewLRUCache(c.ModelCacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create model cache: %w", err)
		}
		b.SetModelCache(cache)
	}
	return b, nil
}

// Helper to use map as a provider
type mapProvider struct {
	m map[string]interface{}
}

func makeMapProvider(m map[string]interface{}) *mapProvider {
	return &mapProvider{m: m}
}

func (p *mapProvider) Read() (map[string]interface{}, error) {
	return p.m, nil
}

func (p *mapProvider) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("not implemented")
}
