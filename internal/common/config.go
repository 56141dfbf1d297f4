package common

import (
	"errors"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/joseph-ayodele/medimage2report/constants"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	OCR      OCRConfig
	LLM      LLMConfig
	Queue    QueueConfig
	Ingest   IngestConfig
	Log      LogConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string // "postgres" | "sqlite"
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
	AutoMigrate      bool
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr string
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Engine        string // "tesseract" | "vision"
	Pdftoppm      string
	Tesseract     string
	TessdataDir   string
	Language      string
	DPI           int
	MaxPages      int
	Workers       int
	Contrast      float64
	PSM           int
	OEM           int

	VisionProject   string
	VisionCredsJSON string
	VisionCredsFile string
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	Provider    string // default provider selector
	Timeout     time.Duration
	Temperature float32
	Locales     []string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	GeminiProject   string
	GeminiLocation  string
	GeminiModel     string
	GeminiCredsFile string

	OllamaURL   string
	OllamaModel string
}

// QueueConfig sizes the background processing pool.
type QueueConfig struct {
	Workers    int
	Size       int
	JobTimeout time.Duration
}

// IngestConfig configures folder ingestion.
type IngestConfig struct {
	WatchDir string
	OwnerID  string
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string // debug | info | warn | error
	Format string // text | json
}

// LoadDotEnv loads variables from path (or ./.env) without overriding the environment.
// A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:           getEnv("DB_DRIVER", "postgres"),
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 2),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
			AutoMigrate:      getEnvAsBool("DB_AUTO_MIGRATE", true),
		},
		Server: ServerConfig{
			GRPCAddr: getEnv("GRPC_ADDR", ":8080"),
		},
		OCR: OCRConfig{
			Engine:        getEnv("OCR_ENGINE", constants.EngineTesseract),
			Pdftoppm:      getEnv("PDFTOPPM_BIN", "pdftoppm"),
			Tesseract:     getEnv("TESSERACT_BIN", "tesseract"),
			TessdataDir:   getEnv("TESSDATA_PREFIX", ""),
			Language:      getEnv("OCR_LANGUAGE", constants.DefaultOCRLanguage),
			DPI:           getEnvAsInt("OCR_DPI", constants.DefaultDPI),
			MaxPages:      getEnvAsInt("OCR_MAX_PAGES", 0),
			Workers:       getEnvAsInt("OCR_WORKERS", 4),
			Contrast:      getEnvAsFloat64("OCR_CONTRAST", constants.DefaultContrast),
			PSM:           getEnvAsInt("OCR_PSM", 0),
			OEM:           getEnvAsInt("OCR_OEM", 0),
			VisionProject: getEnv("GOOGLE_CLOUD_PROJECT", ""),

			VisionCredsJSON: getEnv("GOOGLE_CREDENTIALS", ""),
			VisionCredsFile: getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
		},
		LLM: LLMConfig{
			Provider:        getEnv("LLM_PROVIDER", constants.ProviderOpenAI),
			Timeout:         getEnvAsDuration("LLM_TIMEOUT", 60*time.Second),
			Temperature:     getEnvAsFloat32("LLM_TEMPERATURE", 0.2),
			Locales:         getEnvAsList("REPORT_LOCALES", []string{"en", "de"}),
			OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", ""),
			OpenAIModel:     getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			GeminiProject:   getEnv("GOOGLE_CLOUD_PROJECT", ""),
			GeminiLocation:  getEnv("GOOGLE_CLOUD_LOCATION", "us-central1"),
			GeminiModel:     getEnv("GEMINI_MODEL", "gemini-1.5-pro"),
			GeminiCredsFile: getEnv("GEMINI_CREDENTIALS_FILE", ""),
			OllamaURL:       getEnv("OLLAMA_URL", "http://localhost:11434"),
			OllamaModel:     getEnv("OLLAMA_MODEL", "qwen2.5:1.5b"),
		},
		Queue: QueueConfig{
			Workers:    getEnvAsInt("QUEUE_WORKERS", 4),
			Size:       getEnvAsInt("QUEUE_SIZE", 256),
			JobTimeout: getEnvAsDuration("QUEUE_JOB_TIMEOUT", 5*time.Minute),
		},
		Ingest: IngestConfig{
			WatchDir: getEnv("INGEST_WATCH_DIR", ""),
			OwnerID:  getEnv("INGEST_OWNER_ID", "inbox"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated value, dropping blanks.
func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, p := range strings.Split(value, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

var reReportLocale = regexp.MustCompile(`^` + constants.LocalePattern + `$`)

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return NewAppError("CONFIG_ERROR", "DB_DRIVER must be postgres or sqlite", ErrInvalidInput)
	}
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.Server.GRPCAddr == "" {
		return NewAppError("CONFIG_ERROR", "GRPC_ADDR is required", ErrInvalidInput)
	}
	switch c.OCR.Engine {
	case constants.EngineTesseract:
	case constants.EngineVision:
		if c.OCR.VisionProject == "" {
			return NewAppError("CONFIG_ERROR", "GOOGLE_CLOUD_PROJECT is required for the vision OCR engine", ErrInvalidInput)
		}
	default:
		return NewAppError("CONFIG_ERROR", "OCR_ENGINE must be tesseract or vision", ErrInvalidInput)
	}
	switch c.LLM.Provider {
	case constants.ProviderOpenAI:
		if c.LLM.OpenAIAPIKey == "" {
			return NewAppError("CONFIG_ERROR", "OPENAI_API_KEY is required", ErrInvalidInput)
		}
	case constants.ProviderGemini:
		if c.LLM.GeminiProject == "" {
			return NewAppError("CONFIG_ERROR", "GOOGLE_CLOUD_PROJECT is required for gemini", ErrInvalidInput)
		}
	case constants.ProviderOllama:
		if c.LLM.OllamaURL == "" {
			return NewAppError("CONFIG_ERROR", "OLLAMA_URL is required", ErrInvalidInput)
		}
	default:
		return NewAppError("CONFIG_ERROR", "LLM_PROVIDER must be openai, gemini or ollama", ErrInvalidInput)
	}
	if c.LLM.Timeout <= 0 {
		return NewAppError("CONFIG_ERROR", "LLM_TIMEOUT must be positive", ErrInvalidInput)
	}
	for _, l := range c.LLM.Locales {
		norm := strings.ReplaceAll(strings.ToLower(l), "_", "-")
		if !reReportLocale.MatchString(norm) {
			return NewAppError("CONFIG_ERROR", "REPORT_LOCALES entry "+strconv.Quote(l)+" is not a locale code", ErrInvalidInput)
		}
	}
	return nil
}
