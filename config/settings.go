package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/surajsub/temporal-powerbi-refresh/models"
	"gopkg.in/yaml.v3"
)

// LoadSettings reads the environment settings file. Files ending in .yaml or
// .yml are parsed as YAML, everything else as JSON.
func LoadSettings(path string) (models.EnvironmentSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file %s: %w", path, err)
	}

	var settings models.EnvironmentSettings
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &settings)
	default:
		err = json.Unmarshal(data, &settings)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse settings file %s: %w", path, err)
	}
	return settings, nil
}
