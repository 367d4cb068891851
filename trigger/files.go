package trigger

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
)

// ConfigEnvVar names the environment variable holding the path of an
// optional YAML file overlaid on the embedded defaults.
const ConfigEnvVar = "CJOTRIGGER_CONFIG"

//go:embed defaults.yaml
var defaultsYAML []byte

type ConfigFile struct {
	Name   string
	Reader io.Reader
	Length int
}

// DefaultsConfigFile returns the embedded defaults.
func DefaultsConfigFile() ConfigFile {
	return ConfigFile{
		Name:   "defaults.yaml",
		Reader: bytes.NewReader(defaultsYAML),
		Length: len(defaultsYAML),
	}
}

// MustFindConfigFile reads the named config file from disk.
func MustFindConfigFile(name string) (ConfigFile, error) {
	var result ConfigFile
	b, err := os.ReadFile(name)
	if err == nil {
		result.Name = name
		result.Reader = bytes.NewReader(b)
		result.Length = len(b)
	}
	return result, err
}

// LoadConfig loads the embedded defaults, overlays the file at path (if any)
// and validates the result. References like ${DATAVERSE_URL:""} are expanded
// from the process environment.
func LoadConfig(path string) (Config, error) {
	return loadConfig(path, os.LookupEnv)
}

// LoadConfigFromEnvironment is LoadConfig using the path named by CJOTRIGGER_CONFIG.
func LoadConfigFromEnvironment() (Config, error) {
	return LoadConfig(os.Getenv(ConfigEnvVar))
}

func loadConfig(path string, lookup func(string) (string, bool)) (Config, error) {
	sources := []ConfigFile{DefaultsConfigFile()}
	if path != "" {
		f, err := MustFindConfigFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file %w", err)
		}
		sources = append(sources, f)
	}
	result, err := YAMLConfigUnmarshaler{LookupEnv: lookup}.Unmarshal(sources...)
	if err != nil {
		return result, fmt.Errorf("failed to load config %w", err)
	}
	if err := result.Validate(); err != nil {
		return result, fmt.Errorf("invalid config: %w", err)
	}
	return result, nil
}
