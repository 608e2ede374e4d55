package config

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rowforge/rowforge/pkg/errors"
)

// Load reads a YAML file into out. ${VAR} references are substituted from
// the environment before parsing, so job files can reference connection
// strings without embedding credentials.
func Load(filePath string, out interface{}) error {
	data, err := os.ReadFile(filePath) //nolint:gosec // G304: path comes from the operator
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to read config file").
			WithDetail("path", filePath)
	}

	content := substituteEnvVars(string(data))

	if err := yaml.Unmarshal([]byte(content), out); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse config file").
			WithDetail("path", filePath)
	}
	return nil
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values.
// Unset variables substitute as empty strings.
func substituteEnvVars(content string) string {
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

		varName := content[start+2 : end]
		content = content[:start] + os.Getenv(varName) + content[end+1:]
	}
	return content
}
