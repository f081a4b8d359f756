package main

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the fiberio-demo CLI's configuration file shape, loaded via
// LoadConfigFile. Workers and MaxTimeout mirror Options fiberio.NewIOManager
// accepts; Port and Timeout set the demo's listening port and how long serve
// waits for a connection.
type Config struct {
	Workers    int           `yaml:"workers"`
	Port       int           `yaml:"port"`
	MaxTimeout time.Duration `yaml:"max_timeout"`
	Timeout    time.Duration `yaml:"timeout"`
}

func defaultConfig() *Config {
	return &Config{
		Workers:    2,
		Port:       0,
		MaxTimeout: 5 * time.Second,
		Timeout:    2 * time.Second,
	}
}

// LoadConfigFile reads a YAML config file, overlaying it onto the defaults.
// A missing path is not an error; it just returns the defaults.
func LoadConfigFile(path string) (*Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
