package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const DefaultEnvFile = ".env"

type Config struct {
	ApiBaseUrl  string `mapstructure:"api_base_url"`
	ApiTimeout  int    `mapstructure:"api_timeout"`
	Environment string `mapstructure:"environment"`
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	Transport   string `mapstructure:"transport"`
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"`

	AssistantApiKey        string `mapstructure:"assistant_api_key"`
	AssistantBaseUrl       string `mapstructure:"assistant_base_url"`
	AssistantModel         string `mapstructure:"assistant_model"`
	AssistantMaxIterations int    `mapstructure:"assistant_max_iterations"`
	AssistantTimeout       int    `mapstructure:"assistant_timeout"`
}

// envKeys maps config keys to the environment variables that override them.
var envKeys = map[string]string{
	"api_base_url":             "API_BASE_URL",
	"api_timeout":              "API_TIMEOUT",
	"environment":              "ENVIRONMENT",
	"host":                     "HOST",
	"port":                     "MCP_PORT",
	"transport":                "MCP_TRANSPORT",
	"log_level":                "LOG_LEVEL",
	"log_format":               "LOG_FORMAT",
	"assistant_api_key":        "ASSISTANT_API_KEY",
	"assistant_base_url":       "ASSISTANT_BASE_URL",
	"assistant_model":          "ASSISTANT_MODEL",
	"assistant_max_iterations": "ASSISTANT_MAX_ITERATIONS",
	"assistant_timeout":        "ASSISTANT_TIMEOUT",
}

func LoadConfig() (*Config, error) {
	return LoadFrom(DefaultEnvFile)
}

// LoadFrom resolves the configuration from defaults, an optional dotenv file
// and the process environment, in increasing order of precedence. A missing
// envFile is not an error.
func LoadFrom(envFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("api_base_url", "http://localhost:8080/api/v1")
	v.SetDefault("api_timeout", 30)
	v.SetDefault("environment", "dev")
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 3000)
	v.SetDefault("transport", "http")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("assistant_base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("assistant_model", "google/gemini-2.5-pro")
	v.SetDefault("assistant_max_iterations", 10)
	v.SetDefault("assistant_timeout", 120)

	if envFile != "" {
		if err := mergeEnvFile(v, envFile); err != nil {
			return nil, err
		}
	}

	for key, env := range envKeys {
		if err := v.BindEnv(key, env); err != nil {
			return nil, err
		}
	}
	for key, value := range foldedEnv(os.Environ()) {
		v.Set(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return &cfg, nil
}

// mergeEnvFile loads a dotenv file into the config layer. Keys are matched
// case-insensitively against both config keys and their env variable names.
func mergeEnvFile(v *viper.Viper, path string) error {
	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: reading %s: %w", path, err)
	}

	byEnv := configKeysByEnv()
	settings := make(map[string]any, len(values))
	for name, value := range values {
		key := strings.ToLower(name)
		if k, ok := byEnv[strings.ToUpper(name)]; ok {
			key = k
		}
		settings[key] = value
	}

	return v.MergeConfigMap(settings)
}

// foldedEnv returns config values set through environment variables whose
// names differ only in case from the bound ones, e.g. api_timeout. A
// non-empty variable with the exact bound name wins.
func foldedEnv(environ []string) map[string]string {
	byEnv := configKeysByEnv()
	out := map[string]string{}
	for _, entry := range environ {
		name, value, ok := strings.Cut(entry, "=")
		if !ok || value == "" {
			continue
		}
		upper := strings.ToUpper(name)
		key, bound := byEnv[upper]
		if !bound || name == upper || os.Getenv(upper) != "" {
			continue
		}
		out[key] = value
	}
	return out
}

func configKeysByEnv() map[string]string {
	byEnv := make(map[string]string, len(envKeys))
	for key, env := range envKeys {
		byEnv[env] = key
	}
	return byEnv
}

func (c *Config) Timeout() time.Duration {
	return time.Duration(c.ApiTimeout) * time.Second
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
