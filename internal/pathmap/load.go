package pathmap

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

type ruleFile struct {
	Rules []RuleSpec `yaml:"rules" toml:"rules"`
}

// LoadRules reads a rule table from a YAML (.yaml, .yml) or TOML (.toml)
// file with a top-level "rules" list. Unknown keys are rejected.
func LoadRules(path string) ([]RuleSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule file %s: %w", path, err)
	}
	return ParseRules(filepath.Ext(path), data)
}

// ParseRules decodes rule data; ext selects the format.
func ParseRules(ext string, data []byte) ([]RuleSpec, error) {
	var file ruleFile

	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse yaml rules: %w", err)
		}
	case ".toml":
		md, err := toml.Decode(string(data), &file)
		if err != nil {
			return nil, fmt.Errorf("parse toml rules: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, fmt.Errorf("parse toml rules: unknown keys %s", strings.Join(keys, ", "))
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	return file.Rules, nil
}
