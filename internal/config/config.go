package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	DriverS3    = "s3"
	DriverLocal = "local"

	DefaultGroup = "defaultBucket"
)

type Config struct {
	Port           string
	AppBaseURL     string
	AllowedOrigins []string
	LogLevel       string
	LogFormat      string

	StorageDriver     string
	S3Endpoint        string
	S3Region          string
	S3Bucket          string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3UsePathStyle    bool
	PublicBaseURL     string
	LocalStorageDir   string

	DefaultGroup   string
	MaxUploadBytes int64
	UploadTempDir  string

	JWTSecret      string
	RateLimitRPS   float64
	RateLimitBurst int
}

func Load() *Config {
	// Try to load .env file from the parent directory first, then the working directory
	godotenv.Load(filepath.Join("..", ".env"))
	godotenv.Load(".env")

	appBaseURL := getEnv("APP_BASE_URL", "http://localhost:3000")

	return &Config{
		Port:           getEnv("PORT", "8080"),
		AppBaseURL:     appBaseURL,
		AllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", appBaseURL)),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "console"),

		StorageDriver:     strings.ToLower(getEnv("STORAGE_DRIVER", DriverS3)),
		S3Endpoint:        getEnv("S3_ENDPOINT", ""),
		S3Region:          getEnv("S3_REGION", "auto"),
		S3Bucket:          getEnv("S3_BUCKET", "media"),
		S3AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
		S3SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
		S3UsePathStyle:    getEnvBool("S3_USE_PATH_STYLE", true),
		PublicBaseURL:     getEnv("MEDIA_PUBLIC_BASE_URL", ""),
		LocalStorageDir:   getEnv("LOCAL_STORAGE_DIR", "./data/media"),

		DefaultGroup:   getEnv("DEFAULT_GROUP", DefaultGroup),
		MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_BYTES", 30*1024*1024)),
		UploadTempDir:  getEnv("UPLOAD_TEMP_DIR", os.TempDir()),

		JWTSecret:      strings.TrimSpace(getEnv("AUTH_JWT_SECRET", "")),
		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 10),
	}
}

// Validate reports the first setting that keeps the service from starting.
func (c *Config) Validate() error {
	switch c.StorageDriver {
	case DriverS3:
		if c.S3AccessKeyID == "" || c.S3SecretAccessKey == "" {
			return errors.New("S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY are required")
		}
		if c.S3Bucket == "" {
			return errors.New("S3_BUCKET is required")
		}
	case DriverLocal:
		if c.PublicBaseURL == "" {
			return errors.New("MEDIA_PUBLIC_BASE_URL is required for the local driver")
		}
	default:
		return errors.New("STORAGE_DRIVER must be one of: s3, local")
	}
	if _, ok := CleanGroup(c.DefaultGroup); !ok {
		return fmt.Errorf("DEFAULT_GROUP %q is not a valid group label", c.DefaultGroup)
	}
	if c.MaxUploadBytes <= 0 {
		return errors.New("MAX_UPLOAD_BYTES must be positive")
	}
	if c.JWTSecret != "" && len(c.JWTSecret) < 32 {
		return errors.New("AUTH_JWT_SECRET must be at least 32 characters")
	}
	return nil
}

// CleanGroup trims surrounding space and slashes from a group label and
// reports whether the result is a usable key prefix. Nested labels such as
// "a/b" are fine; empty, "." and ".." segments and backslashes are not.
func CleanGroup(label string) (string, bool) {
	g := strings.Trim(strings.TrimSpace(label), "/")
	if g == "" || strings.Contains(g, `\`) {
		return g, false
	}
	for _, seg := range strings.Split(g, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return g, false
		}
	}
	return g, true
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
