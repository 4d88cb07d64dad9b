package cli

import (
	"path/filepath"

	"github.com/aretw0/palette/internal/config"
)

// RunOptions contains the configuration shared by every command.
type RunOptions struct {
	ConfigPath string
	Dir        string
	Debug      bool
	Headless   bool
}

// configPath returns the explicit --config or palette.yaml inside --dir.
func (o RunOptions) configPath() string {
	if o.ConfigPath != "" {
		return o.ConfigPath
	}
	return filepath.Join(o.Dir, config.DefaultPath)
}

// LoadConfig reads the configuration and makes its paths relative to --dir.
func LoadConfig(opts RunOptions) (config.Config, error) {
	cfg, err := config.Load(opts.configPath())
	if err != nil {
		return config.Config{}, err
	}
	cfg.Resolve(opts.Dir)
	return cfg, nil
}
