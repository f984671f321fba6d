package cfg

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"review-sentiment/internal/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allEnvKeys = []string{
	common.EnvConfigFile, common.EnvPort, common.EnvModelPath, common.EnvVocabPath,
	common.EnvRegistryPath, common.EnvStaticDir, common.EnvCORSOrigins,
	common.EnvRateLimitRPS, common.EnvRateLimitBurst, common.EnvMaxTextLength,
	common.EnvRequestTimeout, common.EnvReadTimeout, common.EnvWriteTimeout,
	common.EnvShutdownTimeout, common.EnvLogLevel, common.EnvLogPretty,
	common.EnvServiceVersion,
}

// clearTestEnv blanks every key Load reads; t.Setenv restores them afterwards.
func clearTestEnv(t *testing.T) {
	t.Helper()
	for _, key := range allEnvKeys {
		t.Setenv(key, "")
	}
}

func TestLoadFromEnv(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		wantErr  string
		validate func(t *testing.T, settings Settings)
	}{
		{
			name: "defaults",
			validate: func(t *testing.T, s Settings) {
				assert.Equal(t, common.DefaultPort, s.Port)
				assert.Equal(t, ":8000", s.Addr())
				assert.Equal(t, common.DefaultModelPath, s.ModelPath)
				assert.Equal(t, common.DefaultVocabPath, s.VocabPath)
				assert.Empty(t, s.RegistryPath)
				assert.Empty(t, s.StaticDir)
				assert.Equal(t, []string{"*"}, s.CORSOrigins)
				assert.Equal(t, 10.0, s.RateLimitRPS)
				assert.Equal(t, 20, s.RateLimitBurst)
				assert.Equal(t, 5000, s.MaxTextLength)
				assert.Equal(t, 5*time.Second, s.RequestTimeout)
				assert.Equal(t, 10*time.Second, s.ReadTimeout)
				assert.Equal(t, 10*time.Second, s.WriteTimeout)
				assert.Equal(t, 15*time.Second, s.ShutdownTimeout)
				assert.Equal(t, "info", s.LogLevel)
				assert.False(t, s.LogPretty)
				assert.Equal(t, "1.0.0", s.ServiceVersion)
			},
		},
		{
			name: "custom values",
			envVars: map[string]string{
				common.EnvPort:            "9090",
				common.EnvModelPath:       "/srv/model.json",
				common.EnvVocabPath:       "/srv/tokenizer.json",
				common.EnvCORSOrigins:     "https://a.example, https://b.example",
				common.EnvRateLimitRPS:    "2.5",
				common.EnvRateLimitBurst:  "5",
				common.EnvMaxTextLength:   "280",
				common.EnvRequestTimeout:  "2s",
				common.EnvShutdownTimeout: "30s",
				common.EnvLogLevel:        "debug",
				common.EnvLogPretty:       "true",
				common.EnvServiceVersion:  "2.1.0",
			},
			validate: func(t *testing.T, s Settings) {
				assert.Equal(t, 9090, s.Port)
				assert.Equal(t, "/srv/model.json", s.ModelPath)
				assert.Equal(t, "/srv/tokenizer.json", s.VocabPath)
				assert.Equal(t, []string{"https://a.example", "https://b.example"}, s.CORSOrigins)
				assert.Equal(t, 2.5, s.RateLimitRPS)
				assert.Equal(t, 5, s.RateLimitBurst)
				assert.Equal(t, 280, s.MaxTextLength)
				assert.Equal(t, 2*time.Second, s.RequestTimeout)
				assert.Equal(t, 30*time.Second, s.ShutdownTimeout)
				assert.Equal(t, "debug", s.LogLevel)
				assert.True(t, s.LogPretty)
				assert.Equal(t, "2.1.0", s.ServiceVersion)
			},
		},
		{
			name:    "invalid values fall back to defaults",
			envVars: map[string]string{common.EnvPort: "not-a-port", common.EnvRequestTimeout: "soon"},
			validate: func(t *testing.T, s Settings) {
				assert.Equal(t, common.DefaultPort, s.Port)
				assert.Equal(t, 5*time.Second, s.RequestTimeout)
			},
		},
		{
			name:    "port out of range",
			envVars: map[string]string{common.EnvPort: "70000"},
			wantErr: "port must be between",
		},
		{
			name:    "zero rate limit",
			envVars: map[string]string{common.EnvRateLimitRPS: "0"},
			wantErr: "rate limit must be between",
		},
		{
			name:    "max text shorter than minimum",
			envVars: map[string]string{common.EnvMaxTextLength: "3"},
			wantErr: "max text length",
		},
		{
			name:    "unknown log level",
			envVars: map[string]string{common.EnvLogLevel: "loud"},
			wantErr: "unknown log level",
		},
		{
			name:    "registry replaces artifact paths",
			envVars: map[string]string{common.EnvRegistryPath: "/var/lib/sentiment/registry.db"},
			validate: func(t *testing.T, s Settings) {
				assert.Equal(t, "/var/lib/sentiment/registry.db", s.RegistryPath)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearTestEnv(t)
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			settings, err := Load()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.validate(t, settings)
		})
	}
}

func TestLoadFromYAML(t *testing.T) {
	const configYAML = `
server:
  port: 8080
  staticDir: /srv/web
  corsOrigins: ["https://reviews.example"]
  maxTextLength: 1000
  requestTimeout: 3s
  readTimeout: 20s
model:
  modelPath: /models/model.json
  vocabPath: /models/tokenizer.json
rateLimit:
  rps: 4
  burst: 8
logging:
  level: warn
  pretty: true
service:
  version: 3.0.0
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	t.Run("file values", func(t *testing.T) {
		clearTestEnv(t)
		t.Setenv(common.EnvConfigFile, path)

		s, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 8080, s.Port)
		assert.Equal(t, "/srv/web", s.StaticDir)
		assert.Equal(t, []string{"https://reviews.example"}, s.CORSOrigins)
		assert.Equal(t, 1000, s.MaxTextLength)
		assert.Equal(t, 3*time.Second, s.RequestTimeout)
		assert.Equal(t, 20*time.Second, s.ReadTimeout)
		assert.Equal(t, 10*time.Second, s.WriteTimeout)
		assert.Equal(t, "/models/model.json", s.ModelPath)
		assert.Equal(t, "/models/tokenizer.json", s.VocabPath)
		assert.Equal(t, 4.0, s.RateLimitRPS)
		assert.Equal(t, 8, s.RateLimitBurst)
		assert.Equal(t, "warn", s.LogLevel)
		assert.True(t, s.LogPretty)
		assert.Equal(t, "3.0.0", s.ServiceVersion)
	})

	t.Run("env overrides file", func(t *testing.T) {
		clearTestEnv(t)
		t.Setenv(common.EnvConfigFile, path)
		t.Setenv(common.EnvPort, "9999")
		t.Setenv(common.EnvModelPath, "/override/model.json")
		t.Setenv(common.EnvRateLimitBurst, "50")

		s, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 9999, s.Port)
		assert.Equal(t, "/override/model.json", s.ModelPath)
		assert.Equal(t, 50, s.RateLimitBurst)
		assert.Equal(t, "/models/tokenizer.json", s.VocabPath)
	})

	t.Run("missing file", func(t *testing.T) {
		clearTestEnv(t)
		t.Setenv(common.EnvConfigFile, filepath.Join(t.TempDir(), "missing.yaml"))

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read config file")
	})

	t.Run("invalid yaml", func(t *testing.T) {
		clearTestEnv(t)
		bad := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(bad, []byte("server: [unclosed"), 0o600))
		t.Setenv(common.EnvConfigFile, bad)

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse config file")
	})

	t.Run("invalid duration", func(t *testing.T) {
		clearTestEnv(t)
		bad := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(bad, []byte("server:\n  readTimeout: later\n"), 0o600))
		t.Setenv(common.EnvConfigFile, bad)

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "server.readTimeout")
	})
}

func TestLoadDotEnv(t *testing.T) {
	clearTestEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("SERVICE_VERSION=from-dotenv\n"), 0o600))

	require.NoError(t, loadDotEnv(filepath.Join(dir, "absent.env")))

	// an empty value counts as set, so clear it for godotenv to apply
	require.NoError(t, os.Unsetenv(common.EnvServiceVersion))
	require.NoError(t, loadDotEnv(path))
	assert.Equal(t, "from-dotenv", os.Getenv(common.EnvServiceVersion))

	t.Setenv(common.EnvServiceVersion, "from-env")
	require.NoError(t, loadDotEnv(path))
	assert.Equal(t, "from-env", os.Getenv(common.EnvServiceVersion))
}

func createValidSettings() *Settings {
	return &Settings{
		Port:            8000,
		ModelPath:       "model.json",
		VocabPath:       "tokenizer.json",
		CORSOrigins:     []string{"*"},
		RateLimitRPS:    10,
		RateLimitBurst:  20,
		MaxTextLength:   5000,
		RequestTimeout:  5 * time.Second,
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    10 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		LogLevel:        "info",
		ServiceVersion:  "1.0.0",
	}
}

func TestValidateSettings(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s *Settings)
		wantErr string
	}{
		{"valid", func(*Settings) {}, ""},
		{"zero port", func(s *Settings) { s.Port = 0 }, "port must be between"},
		{"empty model path", func(s *Settings) { s.ModelPath = "" }, "model path cannot be empty"},
		{"empty vocab path", func(s *Settings) { s.VocabPath = "" }, "vocabulary path cannot be empty"},
		{"registry without paths", func(s *Settings) {
			s.ModelPath, s.VocabPath, s.RegistryPath = "", "", "registry.db"
		}, ""},
		{"no cors origins", func(s *Settings) { s.CORSOrigins = nil }, "CORS origin"},
		{"negative burst", func(s *Settings) { s.RateLimitBurst = -1 }, "burst"},
		{"huge text limit", func(s *Settings) { s.MaxTextLength = 1 << 20 }, "max text length"},
		{"tiny request timeout", func(s *Settings) { s.RequestTimeout = time.Millisecond }, "request timeout"},
		{"zero read timeout", func(s *Settings) { s.ReadTimeout = 0 }, "read timeout"},
		{"long write timeout", func(s *Settings) { s.WriteTimeout = time.Hour }, "write timeout"},
		{"zero shutdown timeout", func(s *Settings) { s.ShutdownTimeout = 0 }, "shutdown timeout"},
		{"mixed case log level", func(s *Settings) { s.LogLevel = "DEBUG" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := createValidSettings()
			tt.mutate(s)
			err := validateSettings(s)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
