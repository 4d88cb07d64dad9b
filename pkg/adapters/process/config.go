package process

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/palette/pkg/domain"
	"gopkg.in/yaml.v3"
)

// CommandConfig declares one allow-listed process command.
type CommandConfig struct {
	Name        string            `yaml:"name" json:"name" mapstructure:"name"`
	Command     string            `yaml:"command" json:"command" mapstructure:"command"`
	Args        []string          `yaml:"args" json:"args" mapstructure:"args"`
	Environment map[string]string `yaml:"env" json:"env" mapstructure:"env"`
	Title       string            `yaml:"title" json:"title" mapstructure:"title"`
	Description string            `yaml:"description" json:"description" mapstructure:"description"`
	Arguments   []domain.Argument `yaml:"arguments" json:"arguments" mapstructure:"arguments"`
}

// ConfigFile represents the structure of commands.yaml.
type ConfigFile struct {
	Commands []CommandConfig `yaml:"commands" json:"commands"`
}

// LoadCommands reads a configuration file (YAML or JSON). A missing file means no commands.
func LoadCommands(path string) ([]CommandConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read commands config: %w", err)
	}

	var cfg ConfigFile
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	out := make([]CommandConfig, 0, len(cfg.Commands))
	for _, c := range cfg.Commands {
		if c.Name == "" || c.Command == "" {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}
