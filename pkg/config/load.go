package config

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/alphadata/pkg/errors"
)

// Load reads a YAML file over the defaults, substitutes ${VAR} references and
// validates the result.
func Load(filePath string) (*Config, error) {
	cfg := Default()
	if err := Decode(filePath, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid configuration").
			WithDetail("path", filePath)
	}
	return cfg, nil
}

// Decode loads a YAML file into out with environment substitution.
func Decode(filePath string, out interface{}) error {
	data, err := os.ReadFile(filePath) //nolint:gosec // G304: path comes from the operator
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to read config file").
			WithDetail("path", filePath)
	}

	content := substituteEnvVars(string(data))
	if err := yaml.Unmarshal([]byte(content), out); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse YAML").
			WithDetail("path", filePath)
	}
	return nil
}

// Save writes a configuration to a YAML file
func Save(filePath string, cfg interface{}) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to marshal YAML")
	}
	if err := os.WriteFile(filePath, data, 0o644); err != nil { //nolint:gosec
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write config file").
			WithDetail("path", filePath)
	}
	return nil
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values.
// ${VAR_NAME:-fallback} uses fallback when VAR_NAME is unset or empty.
func substituteEnvVars(content string) string {
	var b strings.Builder
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		name, fallback, hasFallback := strings.Cut(content[start+2:end], ":-")
		value := os.Getenv(name)
		if value == "" && hasFallback {
			value = fallback
		}
		b.WriteString(content[:start])
		b.WriteString(value)
		content = content[end+1:]
	}
	b.WriteString(content)
	return b.String()
}
