package infra

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"photopipe/internal/enhance"
)

// Backend and provider names accepted by LoadConfig.
const (
	StorageFilesystem = "filesystem"
	StorageS3         = "s3"

	VisionStatic      = "static"
	VisionRekognition = "rekognition"

	CaptionStatic  = "static"
	CaptionBedrock = "bedrock"
	CaptionOpenAI  = "openai"

	RecordMemory   = "memory"
	RecordPostgres = "postgres"
	RecordDynamoDB = "dynamodb"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv              string
	Port                string
	HTTPReadTimeout     time.Duration
	HTTPWriteTimeout    time.Duration
	HTTPIdleTimeout     time.Duration
	RateLimitPerMin     int
	MaxRequestBodyBytes int64
	CORSAllowedOrigins  []string

	StorageBackend    string
	StoragePath       string
	StorageBaseURL    string
	StorageSigningKey string
	OriginalBucket    string
	EnhancedBucket    string
	OriginalURLTTL    time.Duration
	EnhancedURLTTL    time.Duration

	AWSRegion         string
	AWSConnectTimeout time.Duration
	AWSReadTimeout    time.Duration
	AWSMaxAttempts    int

	VisionProvider      string
	LabelsMax           int
	LabelsMinConfidence float64

	CaptionProvider string
	BedrockModelID  string
	BedrockRegion   string
	OpenAIAPIKey    string
	OpenAIModel     string
	OpenAIBaseURL   string

	RecordBackend string
	DatabaseURL   string
	DynamoDBTable string

	EnhanceAlgorithm    enhance.Algorithm
	EnhanceMaxDimension int

	GeoIPDBPath   string
	DefaultUserID string
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	port := getEnv("PORT", "8080")
	cfg := &Config{
		AppEnv:              AppEnv(),
		Port:                port,
		HTTPReadTimeout:     time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:    time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 60)),
		HTTPIdleTimeout:     time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:     getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		MaxRequestBodyBytes: int64(getEnvInt("MAX_REQUEST_BODY_BYTES", 15<<20)),
		CORSAllowedOrigins:  splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),

		StorageBackend:    strings.ToLower(getEnv("STORAGE_BACKEND", StorageFilesystem)),
		StoragePath:       getEnv("STORAGE_PATH", "./storage"),
		StorageBaseURL:    getEnv("STORAGE_BASE_URL", fmt.Sprintf("http://localhost:%s/static", port)),
		StorageSigningKey: os.Getenv("STORAGE_SIGNING_KEY"),
		OriginalBucket:    getEnv("ORIGINAL_BUCKET", "pictures-rekog-bucket"),
		EnhancedBucket:    getEnv("ENHANCED_BUCKET", "enhanced-pictures-rekog-bucket"),
		OriginalURLTTL:    time.Second * time.Duration(getEnvInt("ORIGINAL_URL_TTL_SECONDS", 24*3600)),
		EnhancedURLTTL:    time.Second * time.Duration(getEnvInt("ENHANCED_URL_TTL_SECONDS", 12*3600)),

		AWSRegion:         getEnv("AWS_REGION", "us-east-1"),
		AWSConnectTimeout: time.Second * time.Duration(getEnvInt("AWS_CONNECT_TIMEOUT_SECONDS", 10)),
		AWSReadTimeout:    time.Second * time.Duration(getEnvInt("AWS_READ_TIMEOUT_SECONDS", 60)),
		AWSMaxAttempts:    getEnvInt("AWS_MAX_ATTEMPTS", 2),

		VisionProvider:      strings.ToLower(getEnv("VISION_PROVIDER", VisionStatic)),
		LabelsMax:           getEnvInt("LABELS_MAX", 10),
		LabelsMinConfidence: getEnvFloat("LABELS_MIN_CONFIDENCE", 75),

		CaptionProvider: strings.ToLower(getEnv("CAPTION_PROVIDER", CaptionStatic)),
		BedrockModelID:  getEnv("BEDROCK_MODEL_ID", "us.deepseek.r1-v1:0"),
		BedrockRegion:   getEnv("BEDROCK_REGION", "us-east-2"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:     getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),

		RecordBackend: strings.ToLower(getEnv("RECORD_BACKEND", RecordMemory)),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		DynamoDBTable: getEnv("DYNAMODB_TABLE", "rekognitionImagesTable"),

		EnhanceMaxDimension: getEnvInt("ENHANCE_MAX_DIMENSION", enhance.DefaultMaxDimension),

		GeoIPDBPath:   os.Getenv("GEOIP_DB_PATH"),
		DefaultUserID: getEnv("DEFAULT_USER_ID", "anonymous"),
	}

	alg, err := enhance.ParseAlgorithm(getEnv("ENHANCE_ALGORITHM", string(enhance.ContrastGamma)))
	if err != nil {
		return nil, fmt.Errorf("ENHANCE_ALGORITHM: %w", err)
	}
	cfg.EnhanceAlgorithm = alg

	if err := oneOf("STORAGE_BACKEND", cfg.StorageBackend, StorageFilesystem, StorageS3); err != nil {
		return nil, err
	}
	if err := oneOf("VISION_PROVIDER", cfg.VisionProvider, VisionStatic, VisionRekognition); err != nil {
		return nil, err
	}
	if err := oneOf("CAPTION_PROVIDER", cfg.CaptionProvider, CaptionStatic, CaptionBedrock, CaptionOpenAI); err != nil {
		return nil, err
	}
	if err := oneOf("RECORD_BACKEND", cfg.RecordBackend, RecordMemory, RecordPostgres, RecordDynamoDB); err != nil {
		return nil, err
	}

	if cfg.RecordBackend == RecordPostgres && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required when RECORD_BACKEND=%s", RecordPostgres)
	}
	if cfg.StorageBackend == StorageFilesystem {
		if _, err := url.Parse(cfg.StorageBaseURL); err != nil {
			return nil, fmt.Errorf("STORAGE_BASE_URL: %w", err)
		}
	}
	if cfg.OriginalBucket == "" || cfg.EnhancedBucket == "" {
		return nil, fmt.Errorf("ORIGINAL_BUCKET and ENHANCED_BUCKET are required")
	}
	if cfg.LabelsMax <= 0 {
		return nil, fmt.Errorf("LABELS_MAX must be > 0 (got %d)", cfg.LabelsMax)
	}
	if cfg.MaxRequestBodyBytes <= 0 {
		return nil, fmt.Errorf("MAX_REQUEST_BODY_BYTES must be > 0 (got %d)", cfg.MaxRequestBodyBytes)
	}

	return cfg, nil
}

// IsDevelopment reports whether the service runs with development defaults.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func oneOf(key, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%s: unsupported value %q (want one of %s)", key, value, strings.Join(allowed, ", "))
}

// AppEnv reports APP_ENV, defaulting to development. Entry points use it to
// build the logger before the rest of the configuration is validated.
func AppEnv() string {
	return getEnv("APP_ENV", "development")
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
