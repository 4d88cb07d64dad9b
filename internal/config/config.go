// Package config loads the palette configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the configuration file looked up when none is given.
const DefaultPath = "palette.yaml"

// Recency backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
)

// Config is the root of palette.yaml.
type Config struct {
	Log       LogConfig       `yaml:"log"`
	Commands  string          `yaml:"commands"`
	Templates string          `yaml:"templates"`
	MCP       MCPConfig       `yaml:"mcp"`
	Execution ExecutionConfig `yaml:"execution"`
	Recency   RecencyConfig   `yaml:"recency"`
	Server    ServerConfig    `yaml:"server"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type MCPConfig struct {
	Servers []MCPServer `yaml:"servers"`
}

// MCPServer is one prompt provider. Exactly one of Command or URL is set.
type MCPServer struct {
	ID      string   `yaml:"id"`
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
	Env     []string `yaml:"env"`
	URL     string   `yaml:"url"`
}

// ExecutionConfig points at an execution endpoint served by `palette serve`.
type ExecutionConfig struct {
	Endpoint string `yaml:"endpoint"`
	// ListCommands also registers the endpoint's command list as a source.
	ListCommands bool `yaml:"list_commands"`
}

// RecencyConfig selects where recent usage is kept. Options are backend specific
// and decoded by FileOptions or RedisOptions.
type RecencyConfig struct {
	Backend string         `yaml:"backend"`
	Options map[string]any `yaml:"options"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

// FileOptions configure the file recency backend.
type FileOptions struct {
	Path string `mapstructure:"path"`
}

// RedisOptions configure the redis recency backend.
type RedisOptions struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	Name     string        `mapstructure:"name"`
	TTL      time.Duration `mapstructure:"ttl"`
	// Lock serializes recency writes across processes.
	Lock bool `mapstructure:"lock"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Log:       LogConfig{Level: "info"},
		Commands:  "commands.yaml",
		Templates: "prompts",
		Recency:   RecencyConfig{Backend: BackendFile},
		Server:    ServerConfig{Port: 8080},
	}
}

// Load reads path on top of Default and applies PALETTE_* overrides.
// A missing file at DefaultPath is not an error; any other missing file is.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && filepath.Base(path) == DefaultPath:
	default:
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// ApplyEnv overrides fields from the environment.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	set := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	set("PALETTE_LOG_LEVEL", &c.Log.Level)
	set("PALETTE_COMMANDS", &c.Commands)
	set("PALETTE_TEMPLATES", &c.Templates)
	set("PALETTE_EXECUTION_ENDPOINT", &c.Execution.Endpoint)
	set("PALETTE_RECENCY_BACKEND", &c.Recency.Backend)

	if v := getenv("PALETTE_REDIS_ADDR"); v != "" && c.Recency.Backend == BackendRedis {
		c.option("addr", v)
	}
	if v := getenv("PALETTE_RECENCY_PATH"); v != "" && c.Recency.Backend == BackendFile {
		c.option("path", v)
	}
	if v := getenv("PALETTE_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PALETTE_PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}
	return nil
}

func (c *Config) option(key string, v any) {
	if c.Recency.Options == nil {
		c.Recency.Options = map[string]any{}
	}
	c.Recency.Options[key] = v
}

// Validate reports configuration mistakes that would only surface later.
func (c Config) Validate() error {
	var errs []error
	switch c.Recency.Backend {
	case "", BackendMemory, BackendFile, BackendRedis:
	default:
		errs = append(errs, fmt.Errorf("unknown recency backend %q", c.Recency.Backend))
	}

	seen := make(map[string]bool, len(c.MCP.Servers))
	for i, s := range c.MCP.Servers {
		switch {
		case s.ID == "":
			errs = append(errs, fmt.Errorf("mcp server #%d has no id", i))
		case strings.ContainsAny(s.ID, " .§"):
			errs = append(errs, fmt.Errorf("mcp server id %q must not contain spaces, dots or §", s.ID))
		case seen[s.ID]:
			errs = append(errs, fmt.Errorf("duplicate mcp server id %q", s.ID))
		}
		seen[s.ID] = true
		if (s.Command == "") == (s.URL == "") {
			errs = append(errs, fmt.Errorf("mcp server %q needs exactly one of command or url", s.ID))
		}
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid server port %d", c.Server.Port))
	}
	return errors.Join(errs...)
}

// Resolve makes relative file paths relative to dir.
func (c *Config) Resolve(dir string) {
	if dir == "" {
		return
	}
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	c.Commands = abs(c.Commands)
	c.Templates = abs(c.Templates)
	if c.Recency.Backend == BackendFile {
		if opts, err := c.Recency.FileOptions(); err == nil {
			c.option("path", abs(opts.Path))
		}
	}
}

// FileOptions decodes the recency options for the file backend.
func (c RecencyConfig) FileOptions() (FileOptions, error) {
	opts := FileOptions{Path: filepath.Join(".palette", "recent.json")}
	if err := decode(c.Options, &opts); err != nil {
		return FileOptions{}, err
	}
	return opts, nil
}

// RedisOptions decodes the recency options for the redis backend.
func (c RecencyConfig) RedisOptions() (RedisOptions, error) {
	opts := RedisOptions{Addr: "localhost:6379"}
	if err := decode(c.Options, &opts); err != nil {
		return RedisOptions{}, err
	}
	return opts, nil
}

func decode(input map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(input); err != nil {
		return fmt.Errorf("invalid recency options: %w", err)
	}
	return nil
}
