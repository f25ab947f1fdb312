package main

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"arked/internal/grid"
	"arked/internal/store"
)

// Config collects everything the editor needs to open a session: where the
// records live, how import headers map to columns, and UI preferences. Flags
// override file values field by field.
type Config struct {
	Database string `yaml:"database"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Table    string `yaml:"table"`

	// MappingFile points at a YAML file of import header aliases.
	MappingFile string `yaml:"mapping"`
	// ImportFile, when set, runs an import right after startup.
	ImportFile string `yaml:"-"`

	VimMode bool `yaml:"vim_mode"`
}

// configFilePath is the optional per-user config, next to settings.json.
func configFilePath() (string, error) {
	dir, err := getConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// LoadConfig reads the user config file if present. A missing file is not an
// error; flags fill in the rest.
func LoadConfig() (*Config, error) {
	cfg := &Config{Table: "languoid"}
	path, err := configFilePath()
	if err != nil {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("could not read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("could not parse %s: %w", path, err)
	}
	if cfg.Table == "" {
		cfg.Table = "languoid"
	}
	return cfg, nil
}

// StoreConfig translates the editor config into a store connection config.
func (c *Config) StoreConfig() store.Config {
	return store.Config{
		Driver:   store.DetectDriver(c.Database),
		Database: c.Database,
		Host:     c.Host,
		Port:     c.Port,
		Username: c.Username,
		Password: c.Password,
		Table:    c.Table,
	}
}

// languoidColumns is the editing schema: one row per languoid, keyed by
// glottocode, with the parent link and macroareas held as references.
func languoidColumns() []grid.Column {
	return []grid.Column{
		{ID: store.IDColumn, Title: "ID", Type: grid.TypeReadOnly},
		{ID: "glottocode", Title: "Glottocode", Type: grid.TypeText, NaturalKey: true, Unique: true},
		{ID: "name", Title: "Name", Type: grid.TypeText, Required: true},
		{ID: "level", Title: "Level", Type: grid.TypeSelect, Options: []string{"family", "language", "dialect"}},
		{ID: "parent", Title: "Parent", Type: grid.TypeReference, RefTarget: "languoid"},
		{ID: "iso639", Title: "ISO 639-3", Type: grid.TypeText, Unique: true},
		{ID: "latitude", Title: "Latitude", Type: grid.TypeDecimal, Min: -90, Max: 90, HasBounds: true},
		{ID: "longitude", Title: "Longitude", Type: grid.TypeDecimal, Min: -180, Max: 180, HasBounds: true},
		{ID: "macroareas", Title: "Macroareas", Type: grid.TypeMultiReference, RefTarget: "macroarea"},
		{ID: "aka", Title: "Also known as", Type: grid.TypeStringList},
		{ID: "active", Title: "Active", Type: grid.TypeBool},
		{ID: store.UpdatedColumn, Title: "Updated", Type: grid.TypeReadOnly},
	}
}
