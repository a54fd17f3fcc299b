package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/giantswarm/kopkit/pkg/logging"
)

const (
	userConfigDir  = ".config/kopkit"
	configFileName = "config.yaml"
)

var yamlLinePattern = regexp.MustCompile(`line (\d+)`)

// GetDefaultConfigPath returns ~/.config/kopkit.
func GetDefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine user config directory: %w", err)
	}
	return filepath.Join(homeDir, userConfigDir), nil
}

// LoadConfig loads config.yaml from configPath on top of the defaults.
func LoadConfig(configPath string) (Config, error) {
	configFilePath := filepath.Join(configPath, configFileName)
	config := GetDefaultConfig()

	data, err := os.ReadFile(configFilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Info("ConfigLoader", "No config.yaml found at %s, using defaults", configFilePath)
			return config, nil
		}
		return Config{}, NewConfigurationError(configFilePath, ErrorTypeIO, err.Error())
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		cerr := NewConfigurationError(configFilePath, ErrorTypeParse, err.Error())
		cerr.LineNumber = lineOf(err)
		cerr.Suggestions = []string{"Check the YAML syntax and that durations use Go notation such as 5s or 15m"}
		return Config{}, cerr
	}

	if config.Debug {
		config.LogLevel = "debug"
	}

	if verrs := Validate(config); verrs.HasErrors() {
		cerr := NewConfigurationError(configFilePath, ErrorTypeValidation, "invalid configuration")
		cerr.Details = verrs.Error()
		return Config{}, cerr
	}

	config.Operator = config.Operator.Default()

	config.Schema = resolveSchemaPaths(configPath, config.Schema)

	logging.Info("ConfigLoader", "Loaded configuration from %s", configFilePath)
	return config, nil
}

func resolveSchemaPaths(base string, s SchemaConfig) SchemaConfig {
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}

	s.OpenAPI = resolve(s.OpenAPI)
	crds := make([]string, 0, len(s.CRDs))
	for _, p := range s.CRDs {
		crds = append(crds, resolve(p))
	}
	if len(crds) > 0 {
		s.CRDs = crds
	}
	return s
}

func lineOf(err error) int {
	m := yamlLinePattern.FindStringSubmatch(err.Error())
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}
