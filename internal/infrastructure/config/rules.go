package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"

	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/network/rules"
)

// RuleFile is the on-disk rule list. Rules are matched in file order.
type RuleFile struct {
	Rules []rules.RuleConfig `toml:"rules" yaml:"rules" json:"rules"`
}

// LoadRules reads rule configurations from path. The format is chosen by
// extension: .toml, .yaml, .yml or .json.
func LoadRules(path string) ([]rules.RuleConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	return ParseRules(filepath.Ext(path), data)
}

// ParseRules decodes a rule file in the format named by ext.
func ParseRules(ext string, data []byte) ([]rules.RuleConfig, error) {
	var file RuleFile
	var err error

	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "toml":
		err = toml.Unmarshal(data, &file)
	case "yaml", "yml":
		err = yaml.Unmarshal(data, &file)
	case "json":
		err = sonic.Unmarshal(data, &file)
	default:
		return nil, fmt.Errorf("unsupported rules format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}

	if _, err := rules.Compile(rules.Options{}, file.Rules); err != nil {
		return nil, fmt.Errorf("invalid rules: %w", err)
	}
	return file.Rules, nil
}

// Rules compiles the configured rule list, falling back to the built-in
// defaults when no rules file is set.
func (n NetworkConfig) Rules() (*rules.Rules, error) {
	cfgs := rules.DefaultConfigs()
	if n.RulesFile != "" {
		loaded, err := LoadRules(n.RulesFile)
		if err != nil {
			return nil, err
		}
		cfgs = loaded
	}
	return rules.Compile(rules.Options{}, cfgs)
}
