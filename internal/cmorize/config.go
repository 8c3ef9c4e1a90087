package cmorize

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// Attributes are the dataset-level settings written as global attributes.
type Attributes struct {
	DatasetID     string `toml:"dataset_id"`
	ProjectID     string `toml:"project_id"`
	Tier          int    `toml:"tier"`
	Version       string `toml:"version"`
	ModelingRealm string `toml:"modeling_realm"`
	Source        string `toml:"source"`
	Reference     string `toml:"reference"`
	// Comment may contain {year}, replaced with the current year.
	Comment string `toml:"comment"`
}

// VariableConfig tells where to find one CMOR variable in the raw files.
type VariableConfig struct {
	MIP  string `toml:"mip"`
	Raw  string `toml:"raw"`
	File string `toml:"file"`
}

// Config is the CMORizer configuration file.
type Config struct {
	Attributes Attributes                `toml:"attributes"`
	Variables  map[string]VariableConfig `toml:"variables"`
}

// LoadConfig decodes and validates a TOML configuration file.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("decode cmorizer config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("cmorizer config %s: unknown key %s", path, undecoded[0])
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("cmorizer config %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate checks that every attribute used in file names is set and every
// variable has a known definition.
func (c *Config) Validate() error {
	a := c.Attributes
	var missing []string
	for name, v := range map[string]string{
		"dataset_id":     a.DatasetID,
		"project_id":     a.ProjectID,
		"version":        a.Version,
		"modeling_realm": a.ModelingRealm,
	} {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("attributes.%s is required", strings.Join(missing, ", attributes."))
	}
	if len(c.Variables) == 0 {
		return errors.New("no variables configured")
	}
	for _, short := range c.ShortNames() {
		v := c.Variables[short]
		if _, ok := Definition(short); !ok {
			return fmt.Errorf("variables.%s: %w", short, ErrUnknownVariable)
		}
		if v.MIP == "" || v.Raw == "" || v.File == "" {
			return fmt.Errorf("variables.%s: mip, raw and file are required", short)
		}
	}
	return nil
}

// ShortNames returns the configured variables in sorted order.
func (c *Config) ShortNames() []string {
	names := make([]string, 0, len(c.Variables))
	for k := range c.Variables {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
