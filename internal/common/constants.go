package common

// Environment variable keys
const (
	EnvConfigFile      = "CONFIG_FILE"
	EnvPort            = "PORT"
	EnvModelPath       = "MODEL_PATH"
	EnvVocabPath       = "VOCAB_PATH"
	EnvRegistryPath    = "REGISTRY_PATH"
	EnvStaticDir       = "STATIC_DIR"
	EnvCORSOrigins     = "CORS_ORIGINS"
	EnvRateLimitRPS    = "RATE_LIMIT_RPS"
	EnvRateLimitBurst  = "RATE_LIMIT_BURST"
	EnvMaxTextLength   = "MAX_TEXT_LENGTH"
	EnvRequestTimeout  = "REQUEST_TIMEOUT"
	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"
	EnvLogLevel        = "LOG_LEVEL"
	EnvLogPretty       = "LOG_PRETTY"
	EnvServiceVersion  = "SERVICE_VERSION"
	EnvServerURL       = "SENTIMENT_SERVER"
)

// Configuration defaults
const (
	DefaultPort           = 8000
	DefaultModelPath      = "models/model.json"
	DefaultVocabPath      = "models/tokenizer.json"
	DefaultCORSOrigin     = "*"
	DefaultRateLimitRPS   = 10.0
	DefaultRateLimitBurst = 20
	DefaultMaxTextLength  = 5000
	DefaultLogLevel       = "info"
	DefaultServiceVersion = "1.0.0"
	DefaultServiceBaseURL = "http://localhost:8000"
	DefaultDocsPath       = "/docs"
	DefaultServiceMessage = "Roblox Sentiment Analysis API is running!"
	DefaultDotEnvFile     = ".env"
	DefaultRegistryPath   = "models/registry.db"
)

// Input validation
const (
	// MinTextLength is the shortest accepted review after trimming, in characters.
	MinTextLength = 5

	ErrMsgTextTooShort = "Text terlalu pendek atau kosong"
	ErrMsgTextTooLong  = "Text terlalu panjang"
	ErrMsgInvalidBody  = "Request body must be JSON with a text field"
)

// Validation limits
const (
	MinPort           = 1
	MaxPort           = 65535
	MaxRateLimitRPS   = 10000.0
	MaxRateLimitBurst = 100000
	MaxTextLengthCap  = 100000
)
