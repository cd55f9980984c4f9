package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/smartcharge/core/consumer"
)

// parserFor picks the koanf parser matching the extension of path.
func parserFor(path string) (koanf.Parser, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".json":
		return json.Parser(), nil
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
}

// loadConsumersFile reads the consumers list of a standalone YAML or JSON
// file, decoded like the main configuration.
func loadConsumersFile(path string) ([]consumer.Config, error) {
	parser, err := parserFor(path)
	if err != nil {
		return nil, fmt.Errorf("consumers file %s: %w", path, err)
	}
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, fmt.Errorf("consumers file %s: %w", path, err)
	}
	var content struct {
		Consumers []consumer.Config `json:"consumers"`
	}
	if err := k.UnmarshalWithConf("", &content, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, fmt.Errorf("consumers file %s: %w", path, err)
	}
	return content.Consumers, nil
}
