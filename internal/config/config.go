package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/peterebden/sql-perf-linter/internal/analyzer"
	"github.com/peterebden/sql-perf-linter/internal/operation"
)

// FileName is the name of the config file.
const FileName = "sqlperflint.yaml"

// FileNameAlt is the alternate name of the config file.
const FileNameAlt = "sqlperflint.yml"

// Config is the on-disk configuration shape.
type Config struct {
	Rules         RulesConfig `koanf:"rules"`
	LockThreshold string      `koanf:"lock-threshold"`
}

// RulesConfig selects and regrades rules.
type RulesConfig struct {
	Enabled  []string          `koanf:"enabled"`
	Disabled []string          `koanf:"disabled"`
	Severity map[string]string `koanf:"severity"`
}

// defaults is the baseline every load starts from.
var defaults = map[string]any{
	"lock-threshold": analyzer.DefaultLockThreshold.String(),
}

// Load reads the config file at path. An empty path searches the current
// directory and its ancestors; finding nothing is not an error and yields
// the defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, err
	}

	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		path = findConfigFile(wd)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading %s: %w", path, err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// AnalyzerConfig validates the loaded values and converts them to the
// analyzer's terms.
func (c *Config) AnalyzerConfig() (analyzer.Config, error) {
	out := analyzer.Config{
		EnabledRules:  c.Rules.Enabled,
		DisabledRules: c.Rules.Disabled,
	}
	if len(c.Rules.Severity) > 0 {
		out.SeverityOverrides = make(map[string]analyzer.Severity, len(c.Rules.Severity))
		for id, name := range c.Rules.Severity {
			sev, ok := analyzer.ParseSeverity(name)
			if !ok {
				return analyzer.Config{}, fmt.Errorf("rule %s: unknown severity %q", id, name)
			}
			out.SeverityOverrides[id] = sev
		}
	}
	if c.LockThreshold != "" {
		mode, ok := operation.ParseLockMode(c.LockThreshold)
		if !ok {
			return analyzer.Config{}, fmt.Errorf("unknown lock threshold %q", c.LockThreshold)
		}
		out.LockThreshold = mode
	}
	return out, nil
}

// findConfigFile walks up from dir looking for a config file. Returns empty
// string if none exists.
func findConfigFile(dir string) string {
	for {
		for _, name := range []string{FileName, FileNameAlt} {
			p := filepath.Join(dir, name)
			if _, err := os.Stat(p); err == nil {
				return p
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
