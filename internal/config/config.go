package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port            string        `validate:"required,numeric"`
	UploadDir       string        `validate:"required"`
	UploadMaxBytes  int64         `validate:"gt=0"`
	DBPath          string        `validate:"required"`
	DefaultProvider string        `validate:"required"`
	CORSOrigins     []string      `validate:"dive,required"`
	ShutdownTimeout time.Duration `validate:"gt=0"`

	LogLevel  string `validate:"oneof=trace debug info warn error"`
	LogFormat string `validate:"oneof=console json"`

	OpenAI OpenAIConfig
	Google GoogleConfig
	Local  LocalConfig
	FPT    FPTConfig
}

type OpenAIConfig struct {
	APIKey  string
	Model   string        `validate:"required"`
	BaseURL string        `validate:"omitempty,url"`
	Timeout time.Duration `validate:"gt=0"`
}

// GoogleConfig holds the managed recognition settings. KeyData can be an
// API key, a path to a service account JSON file or the JSON itself.
type GoogleConfig struct {
	KeyData   string
	ProjectID string
	Language  string `validate:"required"`
	URL       string `validate:"omitempty,url"`
}

type LocalConfig struct {
	URL     string        `validate:"required,url"`
	Timeout time.Duration `validate:"gt=0"`
}

type FPTConfig struct {
	APIKey string
	URL    string `validate:"required,url"`
}

const defaultCORSOrigins = "http://localhost:5173,https://speech-transcriber-frontend.vercel.app"

// Load loads configuration from the environment, reading a .env file
// from the working directory first when one exists. Provider credentials
// are not required here; each backend checks its own on first use.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		Port:            v.GetString("PORT"),
		UploadDir:       v.GetString("UPLOAD_DIR"),
		UploadMaxBytes:  v.GetInt64("UPLOAD_MAX_BYTES"),
		DBPath:          v.GetString("DB_PATH"),
		DefaultProvider: strings.ToLower(strings.TrimSpace(v.GetString("TRANSCRIBE_PROVIDER"))),
		CORSOrigins:     splitList(v.GetString("CORS_ORIGINS")),
		ShutdownTimeout: v.GetDuration("SHUTDOWN_TIMEOUT"),
		LogLevel:        strings.ToLower(v.GetString("LOG_LEVEL")),
		LogFormat:       strings.ToLower(v.GetString("LOG_FORMAT")),
		OpenAI: OpenAIConfig{
			APIKey:  v.GetString("OPENAI_API_KEY"),
			Model:   v.GetString("OPENAI_MODEL"),
			BaseURL: v.GetString("OPENAI_BASE_URL"),
			Timeout: v.GetDuration("OPENAI_TIMEOUT"),
		},
		Google: GoogleConfig{
			KeyData:   v.GetString("GOOGLE_STT_KEY_FILE"),
			ProjectID: v.GetString("GOOGLE_STT_PROJECT_ID"),
			Language:  v.GetString("GOOGLE_STT_LANGUAGE"),
			URL:       v.GetString("GOOGLE_STT_URL"),
		},
		Local: LocalConfig{
			URL:     strings.TrimRight(v.GetString("LOCAL_WHISPER_URL"), "/"),
			Timeout: v.GetDuration("LOCAL_WHISPER_TIMEOUT"),
		},
		FPT: FPTConfig{
			APIKey: v.GetString("FPT_AI_API_KEY"),
			URL:    v.GetString("FPT_AI_STT_URL"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "5000")
	v.SetDefault("UPLOAD_DIR", "./uploads")
	v.SetDefault("UPLOAD_MAX_BYTES", 100<<20)
	v.SetDefault("DB_PATH", "./data/transcriptions.db")
	v.SetDefault("TRANSCRIBE_PROVIDER", "local")
	v.SetDefault("CORS_ORIGINS", defaultCORSOrigins)
	v.SetDefault("SHUTDOWN_TIMEOUT", "10s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")

	v.SetDefault("OPENAI_MODEL", "whisper-1")
	v.SetDefault("OPENAI_TIMEOUT", "20s")
	v.SetDefault("GOOGLE_STT_LANGUAGE", "en-US")
	v.SetDefault("LOCAL_WHISPER_URL", "http://127.0.0.1:7860")
	v.SetDefault("LOCAL_WHISPER_TIMEOUT", "120s")
	v.SetDefault("FPT_AI_STT_URL", "https://api.fpt.ai/hmi/asr/v1")
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
