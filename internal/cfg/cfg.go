package cfg

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"review-sentiment/internal/common"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

type Settings struct {
	Port            int
	ModelPath       string
	VocabPath       string
	RegistryPath    string
	StaticDir       string
	CORSOrigins     []string
	RateLimitRPS    float64
	RateLimitBurst  int
	MaxTextLength   int
	RequestTimeout  time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	LogLevel        string
	LogPretty       bool
	ServiceVersion  string
}

type ConfigFile struct {
	Server struct {
		Port            int      `yaml:"port"`
		StaticDir       string   `yaml:"staticDir"`
		CORSOrigins     []string `yaml:"corsOrigins"`
		MaxTextLength   int      `yaml:"maxTextLength"`
		RequestTimeout  string   `yaml:"requestTimeout"`
		ReadTimeout     string   `yaml:"readTimeout"`
		WriteTimeout    string   `yaml:"writeTimeout"`
		ShutdownTimeout string   `yaml:"shutdownTimeout"`
	} `yaml:"server"`

	Model struct {
		ModelPath    string `yaml:"modelPath"`
		VocabPath    string `yaml:"vocabPath"`
		RegistryPath string `yaml:"registryPath"`
	} `yaml:"model"`

	RateLimit struct {
		RPS   float64 `yaml:"rps"`
		Burst int     `yaml:"burst"`
	} `yaml:"rateLimit"`

	Logging struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"logging"`

	Service struct {
		Version string `yaml:"version"`
	} `yaml:"service"`
}

// Load reads settings from CONFIG_FILE when set, otherwise from the
// environment. A .env file in the working directory is applied first and
// never overrides variables that are already set.
func Load() (Settings, error) {
	if err := loadDotEnv(common.DefaultDotEnvFile); err != nil {
		return Settings{}, err
	}

	// Try to load from YAML file first
	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath)
	}

	// Fallback to environment variables
	return loadFromEnv()
}

func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	log.Debug().Str("path", path).Msg("Loaded environment file")
	return nil
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	requestTimeout, err := parseDurationOrDefault(config.Server.RequestTimeout, 5*time.Second)
	if err != nil {
		return Settings{}, fmt.Errorf("server.requestTimeout: %w", err)
	}
	readTimeout, err := parseDurationOrDefault(config.Server.ReadTimeout, 10*time.Second)
	if err != nil {
		return Settings{}, fmt.Errorf("server.readTimeout: %w", err)
	}
	writeTimeout, err := parseDurationOrDefault(config.Server.WriteTimeout, 10*time.Second)
	if err != nil {
		return Settings{}, fmt.Errorf("server.writeTimeout: %w", err)
	}
	shutdownTimeout, err := parseDurationOrDefault(config.Server.ShutdownTimeout, 15*time.Second)
	if err != nil {
		return Settings{}, fmt.Errorf("server.shutdownTimeout: %w", err)
	}

	// Environment variables override the file
	settings := Settings{
		Port:            getIntFromEnvOrConfig(common.EnvPort, config.Server.Port, common.DefaultPort),
		ModelPath:       getEnvOrDefault(common.EnvModelPath, orDefault(config.Model.ModelPath, common.DefaultModelPath)),
		VocabPath:       getEnvOrDefault(common.EnvVocabPath, orDefault(config.Model.VocabPath, common.DefaultVocabPath)),
		RegistryPath:    getEnvOrDefault(common.EnvRegistryPath, config.Model.RegistryPath),
		StaticDir:       getEnvOrDefault(common.EnvStaticDir, config.Server.StaticDir),
		CORSOrigins:     getListFromEnvOrConfig(common.EnvCORSOrigins, config.Server.CORSOrigins, []string{common.DefaultCORSOrigin}),
		RateLimitRPS:    getFloatFromEnvOrConfig(common.EnvRateLimitRPS, config.RateLimit.RPS, common.DefaultRateLimitRPS),
		RateLimitBurst:  getIntFromEnvOrConfig(common.EnvRateLimitBurst, config.RateLimit.Burst, common.DefaultRateLimitBurst),
		MaxTextLength:   getIntFromEnvOrConfig(common.EnvMaxTextLength, config.Server.MaxTextLength, common.DefaultMaxTextLength),
		RequestTimeout:  getDurationOrDefault(common.EnvRequestTimeout, requestTimeout),
		ReadTimeout:     getDurationOrDefault(common.EnvReadTimeout, readTimeout),
		WriteTimeout:    getDurationOrDefault(common.EnvWriteTimeout, writeTimeout),
		ShutdownTimeout: getDurationOrDefault(common.EnvShutdownTimeout, shutdownTimeout),
		LogLevel:        getEnvOrDefault(common.EnvLogLevel, orDefault(config.Logging.Level, common.DefaultLogLevel)),
		LogPretty:       getBoolOrDefault(common.EnvLogPretty, config.Logging.Pretty),
		ServiceVersion:  getEnvOrDefault(common.EnvServiceVersion, orDefault(config.Service.Version, common.DefaultServiceVersion)),
	}

	// Validate configuration
	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		Port:            getIntOrDefault(common.EnvPort, common.DefaultPort),
		ModelPath:       getEnvOrDefault(common.EnvModelPath, common.DefaultModelPath),
		VocabPath:       getEnvOrDefault(common.EnvVocabPath, common.DefaultVocabPath),
		RegistryPath:    os.Getenv(common.EnvRegistryPath), // optional
		StaticDir:       os.Getenv(common.EnvStaticDir),    // optional, embedded assets otherwise
		CORSOrigins:     splitOrDefault(os.Getenv(common.EnvCORSOrigins), []string{common.DefaultCORSOrigin}),
		RateLimitRPS:    getFloatOrDefault(common.EnvRateLimitRPS, common.DefaultRateLimitRPS),
		RateLimitBurst:  getIntOrDefault(common.EnvRateLimitBurst, common.DefaultRateLimitBurst),
		MaxTextLength:   getIntOrDefault(common.EnvMaxTextLength, common.DefaultMaxTextLength),
		RequestTimeout:  getDurationOrDefault(common.EnvRequestTimeout, 5*time.Second),
		ReadTimeout:     getDurationOrDefault(common.EnvReadTimeout, 10*time.Second),
		WriteTimeout:    getDurationOrDefault(common.EnvWriteTimeout, 10*time.Second),
		ShutdownTimeout: getDurationOrDefault(common.EnvShutdownTimeout, 15*time.Second),
		LogLevel:        getEnvOrDefault(common.EnvLogLevel, common.DefaultLogLevel),
		LogPretty:       getBoolOrDefault(common.EnvLogPretty, false),
		ServiceVersion:  getEnvOrDefault(common.EnvServiceVersion, common.DefaultServiceVersion),
	}

	// Validate configuration
	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

// Addr is the listen address for the HTTP server.
func (s *Settings) Addr() string {
	return ":" + strconv.Itoa(s.Port)
}

func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func parseDurationOrDefault(v string, def time.Duration) (time.Duration, error) {
	if v == "" {
		return def, nil
	}
	return time.ParseDuration(v)
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		log.Warn().Str("key", key).Str("value", v).Msg("Ignoring invalid duration")
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
		log.Warn().Str("key", key).Str("value", v).Msg("Ignoring invalid integer")
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		log.Warn().Str("key", key).Str("value", v).Msg("Ignoring invalid number")
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func splitOrDefault(v string, def []string) []string {
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

func getListFromEnvOrConfig(key string, configValue, def []string) []string {
	if env := os.Getenv(key); env != "" {
		return splitOrDefault(env, def)
	}
	if len(configValue) > 0 {
		return configValue
	}
	return def
}

func getIntFromEnvOrConfig(key string, configValue, def int) int {
	if configValue != 0 {
		def = configValue
	}
	return getIntOrDefault(key, def)
}

func getFloatFromEnvOrConfig(key string, configValue, def float64) float64 {
	if configValue != 0 {
		def = configValue
	}
	return getFloatOrDefault(key, def)
}

// validateSettings performs validation of configuration values
func validateSettings(settings *Settings) error {
	if settings.Port < common.MinPort || settings.Port > common.MaxPort {
		return fmt.Errorf("port must be between %d and %d, got %d", common.MinPort, common.MaxPort, settings.Port)
	}

	// Artifacts come from the registry when one is configured
	if settings.RegistryPath == "" {
		if settings.ModelPath == "" {
			return fmt.Errorf("model path cannot be empty")
		}
		if settings.VocabPath == "" {
			return fmt.Errorf("vocabulary path cannot be empty")
		}
	}

	if len(settings.CORSOrigins) == 0 {
		return fmt.Errorf("at least one CORS origin must be specified")
	}

	if settings.RateLimitRPS <= 0 || settings.RateLimitRPS > common.MaxRateLimitRPS {
		return fmt.Errorf("rate limit must be between 0 and %.0f requests per second, got %f", common.MaxRateLimitRPS, settings.RateLimitRPS)
	}
	if settings.RateLimitBurst < 1 || settings.RateLimitBurst > common.MaxRateLimitBurst {
		return fmt.Errorf("rate limit burst must be between 1 and %d, got %d", common.MaxRateLimitBurst, settings.RateLimitBurst)
	}
	if settings.MaxTextLength < common.MinTextLength || settings.MaxTextLength > common.MaxTextLengthCap {
		return fmt.Errorf("max text length must be between %d and %d, got %d", common.MinTextLength, common.MaxTextLengthCap, settings.MaxTextLength)
	}

	// Validate time durations
	if settings.RequestTimeout < 100*time.Millisecond || settings.RequestTimeout > time.Minute {
		return fmt.Errorf("request timeout must be between 100ms and 1m, got %v", settings.RequestTimeout)
	}
	if settings.ReadTimeout < time.Second || settings.ReadTimeout > 5*time.Minute {
		return fmt.Errorf("read timeout must be between 1s and 5m, got %v", settings.ReadTimeout)
	}
	if settings.WriteTimeout < time.Second || settings.WriteTimeout > 5*time.Minute {
		return fmt.Errorf("write timeout must be between 1s and 5m, got %v", settings.WriteTimeout)
	}
	if settings.ShutdownTimeout < time.Second || settings.ShutdownTimeout > 5*time.Minute {
		return fmt.Errorf("shutdown timeout must be between 1s and 5m, got %v", settings.ShutdownTimeout)
	}

	switch strings.ToLower(settings.LogLevel) {
	case "trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled":
	default:
		return fmt.Errorf("unknown log level %q", settings.LogLevel)
	}

	return nil
}
