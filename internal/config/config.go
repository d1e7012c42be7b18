package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultIAMTokenURL    = "https://iam.cloud.ibm.com/identity/token"
	DefaultPort           = "8080"
	DefaultMaxUploadBytes = 10 << 20

	defaultHTTPTimeoutSeconds   = 30
	defaultNotifyTimeoutSeconds = 30
)

// Config is built once at startup and treated as read-only afterwards.
type Config struct {
	APIKey      string
	APIKeyParam string
	ProjectID   string
	ModelID     string
	Endpoint    string
	IAMTokenURL string

	HTTPTimeout   time.Duration
	NotifyMode    string
	NotifyTimeout time.Duration

	DeliveryLogTable    string
	SESConfigurationSet string

	MaxUploadBytes int64
	Port           string

	LogLevel  string
	LogFormat string
	LogFile   string
}

// SecretGetter resolves a named secret, e.g. from SSM Parameter Store.
type SecretGetter interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// Load reads environment variables, optionally from a .env file if present.
func Load() Config {
	// Try to load .env if it exists; ignore error if file not found
	_ = godotenv.Load()

	return Config{
		APIKey:              os.Getenv("WATSONX_APIKEY"),
		APIKeyParam:         os.Getenv("WATSONX_APIKEY_PARAM"),
		ProjectID:           os.Getenv("WATSONX_PROJECT_ID"),
		ModelID:             os.Getenv("WATSONX_MODEL_ID"),
		Endpoint:            strings.TrimRight(os.Getenv("WATSONX_ENDPOINT"), "/"),
		IAMTokenURL:         getEnv("IAM_TOKEN_URL", DefaultIAMTokenURL),
		HTTPTimeout:         time.Duration(getEnvInt("HTTP_TIMEOUT_SECONDS", defaultHTTPTimeoutSeconds)) * time.Second,
		NotifyMode:          strings.ToLower(getEnv("NOTIFY_MODE", "async")),
		NotifyTimeout:       time.Duration(getEnvInt("NOTIFY_TIMEOUT_SECONDS", defaultNotifyTimeoutSeconds)) * time.Second,
		DeliveryLogTable:    os.Getenv("DELIVERY_LOG_TABLE"),
		SESConfigurationSet: os.Getenv("SES_CONFIGURATION_SET"),
		MaxUploadBytes:      int64(getEnvInt("MAX_UPLOAD_BYTES", DefaultMaxUploadBytes)),
		Port:                getEnv("PORT", DefaultPort),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		LogFormat:           getEnv("LOG_FORMAT", "json"),
		LogFile:             os.Getenv("LOG_FILE"),
	}
}

// Validate reports every missing or malformed setting at once.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.APIKey) == "" && strings.TrimSpace(c.APIKeyParam) == "" {
		errs = append(errs, errors.New("one of WATSONX_APIKEY or WATSONX_APIKEY_PARAM is required"))
	}
	required := []struct{ key, val string }{
		{"WATSONX_PROJECT_ID", c.ProjectID},
		{"WATSONX_MODEL_ID", c.ModelID},
		{"WATSONX_ENDPOINT", c.Endpoint},
	}
	for _, r := range required {
		if strings.TrimSpace(r.val) == "" {
			errs = append(errs, fmt.Errorf("%s is required", r.key))
		}
	}
	if c.NotifyMode != "async" && c.NotifyMode != "sync" {
		errs = append(errs, fmt.Errorf("NOTIFY_MODE must be async or sync, got %q", c.NotifyMode))
	}
	if c.HTTPTimeout <= 0 {
		errs = append(errs, errors.New("HTTP_TIMEOUT_SECONDS must be positive"))
	}
	if c.NotifyTimeout <= 0 {
		errs = append(errs, errors.New("NOTIFY_TIMEOUT_SECONDS must be positive"))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_BYTES must be positive"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// ResolveAPIKey returns the inline API key, or fetches it by parameter name
// when only WATSONX_APIKEY_PARAM is set.
func (c Config) ResolveAPIKey(ctx context.Context, secrets SecretGetter) (string, error) {
	if key := strings.TrimSpace(c.APIKey); key != "" {
		return key, nil
	}
	if strings.TrimSpace(c.APIKeyParam) == "" {
		return "", errors.New("config: no API key configured")
	}
	if secrets == nil {
		return "", errors.New("config: secret getter must not be nil")
	}
	key, err := secrets.GetSecret(ctx, c.APIKeyParam)
	if err != nil {
		return "", fmt.Errorf("config: resolve api key: %w", err)
	}
	return key, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
