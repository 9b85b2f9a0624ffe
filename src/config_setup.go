package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultDirWorkers  = 5  // directory recursion is I/O bound
	defaultCopyWorkers = 8  // filesystem-mutating fan-out stays modest
	defaultStatWorkers = 24 // stat/probe calls are cheap, run wider
)

// ConfigFile represents the YAML configuration
type ConfigFile struct {
	DestinationPath   string `yaml:"destination_path"`
	CreateDateFolders bool   `yaml:"create_date_folders"`
	DirWorkers        int    `yaml:"dir_workers"`
	CopyWorkers       int    `yaml:"copy_workers"`
	StatWorkers       int    `yaml:"stat_workers"`
	CacheTTLMinutes   int    `yaml:"cache_ttl_minutes"`
}

// getConfigPath returns the path to the config file
func getConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mediawrangler.yaml"
	}
	return filepath.Join(home, ".mediawrangler.yaml")
}

// loadConfigFile loads configuration from the YAML file if one exists
func loadConfigFile() (*ConfigFile, error) {
	data, err := os.ReadFile(getConfigPath())
	if err != nil {
		if os.IsNotExist(err) {
			return &ConfigFile{}, nil
		}
		return nil, err
	}

	var cfg ConfigFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", getConfigPath(), err)
	}
	return &cfg, nil
}

// saveConfigFile writes configuration back to the YAML file
func saveConfigFile(cfg *ConfigFile) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(getConfigPath(), data, 0644)
}

// configFileFrom captures the effective settings in file form so they can be
// written back as the new defaults
func configFileFrom(cfg *Config) *ConfigFile {
	return &ConfigFile{
		DestinationPath:   cfg.DestinationPath,
		CreateDateFolders: cfg.CreateDateFolders,
		DirWorkers:        cfg.DirWorkers,
		CopyWorkers:       cfg.CopyWorkers,
		StatWorkers:       cfg.StatWorkers,
		CacheTTLMinutes:   int(cfg.CacheTTL / time.Minute),
	}
}

// buildConfig merges file values with defaults
func buildConfig(file *ConfigFile) *Config {
	cfg := &Config{
		DestinationPath:   file.DestinationPath,
		CreateDateFolders: file.CreateDateFolders,
		DirWorkers:        file.DirWorkers,
		CopyWorkers:       file.CopyWorkers,
		StatWorkers:       file.StatWorkers,
		CacheTTL:          time.Duration(file.CacheTTLMinutes) * time.Minute,
	}
	if cfg.DirWorkers < 1 {
		cfg.DirWorkers = defaultDirWorkers
	}
	if cfg.CopyWorkers < 1 {
		cfg.CopyWorkers = defaultCopyWorkers
	}
	if cfg.StatWorkers < 1 {
		cfg.StatWorkers = defaultStatWorkers
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultAnalysisTTL
	}
	return cfg
}
