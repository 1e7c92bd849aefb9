package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	flowerrors "github.com/alexisbeaulieu97/flowcheck/pkg/errors"
)

var yamlLineRegex = regexp.MustCompile(`line (\d+)`)

// LookupEnv matches os.LookupEnv and lets tests supply a fake environment.
type LookupEnv func(key string) (string, bool)

// Load builds a configuration from defaults, the optional YAML file at path,
// and the environment. Validation is left to the caller, which applies flag
// overrides first.
func Load(path string, env LookupEnv) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, flowerrors.NewParseError(path, 0, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, flowerrors.NewParseError(path, extractLine(err), err)
		}
	}

	if env == nil {
		env = os.LookupEnv
	}
	applyEnv(&cfg, env)
	return &cfg, nil
}

func applyEnv(cfg *Config, env LookupEnv) {
	if v, ok := nonEmpty(env, "DATASET_PATH"); ok && cfg.Dataset == "" {
		cfg.Dataset = v
	}
	if v, ok := nonEmpty(env, "OPENAI_KEY"); ok {
		cfg.Agent.APIKey = v
	} else if v, ok := nonEmpty(env, "OPENAI_API_KEY"); ok {
		cfg.Agent.APIKey = v
	}
	if v, ok := nonEmpty(env, "OPENAI_BASE_URL"); ok {
		cfg.Agent.BaseURL = v
	}
	if v, ok := nonEmpty(env, "DETECTOR_SERVICE_URL"); ok {
		cfg.Services.DetectorURL = v
	}
	if v, ok := nonEmpty(env, "OCR_SERVICE_URL"); ok {
		cfg.Services.OCRURL = v
	}
}

func nonEmpty(env LookupEnv, key string) (string, bool) {
	v, ok := env(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func extractLine(err error) int {
	if err == nil {
		return 0
	}

	matches := yamlLineRegex.FindStringSubmatch(err.Error())
	if len(matches) != 2 {
		return 0
	}

	var line int
	if _, scanErr := fmt.Sscanf(matches[1], "%d", &line); scanErr != nil {
		return 0
	}

	return line
}
