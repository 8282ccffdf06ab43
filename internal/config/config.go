package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/riskibarqy/matchup-parser/internal/platform/logging"
)

// Config stores runtime configuration for the service.
type Config struct {
	AppEnv                      string
	ServiceName                 string
	ServiceVersion              string
	HTTPAddr                    string
	ReadTimeout                 time.Duration
	WriteTimeout                time.Duration
	CORSAllowedOrigins          []string
	MaxUploadBytes              int64
	RedisURL                    string
	HistoryCapacity             int
	ParserSkipBadRecords        bool
	VisionBaseURL               string
	VisionAPIKey                string
	VisionModel                 string
	VisionTimeout               time.Duration
	VisionMaxRetries            int
	VisionMaxTokens             int
	VisionCircuitEnabled        bool
	VisionCircuitFailureCount   int
	VisionCircuitOpenTimeout    time.Duration
	VisionCircuitHalfOpenMaxReq int
	PprofEnabled                bool
	PprofAddr                   string
	UptraceEnabled              bool
	UptraceDSN                  string
	PyroscopeEnabled            bool
	PyroscopeServerAddress      string
	PyroscopeAppName            string
	PyroscopeAuthToken          string
	PyroscopeBasicAuthUser      string
	PyroscopeBasicAuthPassword  string
	PyroscopeUploadRate         time.Duration
	LogLevel                    logging.Level
}

func Load() (Config, error) {
	appEnv, err := parseAppEnv(getEnv("APP_ENV", EnvDev))
	if err != nil {
		return Config{}, err
	}

	maxUploadBytes, err := getEnvAsInt("APP_MAX_UPLOAD_BYTES", 8<<20)
	if err != nil {
		return Config{}, fmt.Errorf("parse APP_MAX_UPLOAD_BYTES: %w", err)
	}
	if maxUploadBytes <= 0 {
		return Config{}, fmt.Errorf("APP_MAX_UPLOAD_BYTES must be > 0")
	}

	historyCapacity, err := getEnvAsInt("HISTORY_CAPACITY", 5)
	if err != nil {
		return Config{}, fmt.Errorf("parse HISTORY_CAPACITY: %w", err)
	}
	if historyCapacity < 1 {
		return Config{}, fmt.Errorf("HISTORY_CAPACITY must be >= 1")
	}

	parserSkipBadRecords, err := strconv.ParseBool(getEnv("PARSER_SKIP_BAD_RECORDS", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PARSER_SKIP_BAD_RECORDS: %w", err)
	}

	visionTimeout, err := time.ParseDuration(getEnv("VISION_TIMEOUT", "60s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse VISION_TIMEOUT: %w", err)
	}
	if visionTimeout <= 0 {
		return Config{}, fmt.Errorf("VISION_TIMEOUT must be > 0")
	}
	visionMaxRetries, err := getEnvAsInt("VISION_MAX_RETRIES", 2)
	if err != nil {
		return Config{}, fmt.Errorf("parse VISION_MAX_RETRIES: %w", err)
	}
	if visionMaxRetries < 0 {
		return Config{}, fmt.Errorf("VISION_MAX_RETRIES must be >= 0")
	}
	visionMaxTokens, err := getEnvAsInt("VISION_MAX_TOKENS", 0)
	if err != nil {
		return Config{}, fmt.Errorf("parse VISION_MAX_TOKENS: %w", err)
	}
	if visionMaxTokens < 0 {
		return Config{}, fmt.Errorf("VISION_MAX_TOKENS must be >= 0")
	}
	visionCircuitEnabled, err := strconv.ParseBool(getEnv("VISION_CIRCUIT_ENABLED", "true"))
	if err != nil {
		return Config{}, fmt.Errorf("parse VISION_CIRCUIT_ENABLED: %w", err)
	}
	visionCircuitFailureCount, err := getEnvAsInt("VISION_CIRCUIT_FAILURE_COUNT", 5)
	if err != nil {
		return Config{}, fmt.Errorf("parse VISION_CIRCUIT_FAILURE_COUNT: %w", err)
	}
	if visionCircuitFailureCount < 1 {
		return Config{}, fmt.Errorf("VISION_CIRCUIT_FAILURE_COUNT must be >= 1")
	}
	visionCircuitOpenTimeout, err := time.ParseDuration(getEnv("VISION_CIRCUIT_OPEN_TIMEOUT", "15s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse VISION_CIRCUIT_OPEN_TIMEOUT: %w", err)
	}
	if visionCircuitOpenTimeout <= 0 {
		return Config{}, fmt.Errorf("VISION_CIRCUIT_OPEN_TIMEOUT must be > 0")
	}
	visionCircuitHalfOpenMaxReq, err := getEnvAsInt("VISION_CIRCUIT_HALF_OPEN_MAX_REQ", 2)
	if err != nil {
		return Config{}, fmt.Errorf("parse VISION_CIRCUIT_HALF_OPEN_MAX_REQ: %w", err)
	}
	if visionCircuitHalfOpenMaxReq < 1 {
		return Config{}, fmt.Errorf("VISION_CIRCUIT_HALF_OPEN_MAX_REQ must be >= 1")
	}
	visionAPIKey := strings.TrimSpace(getEnv("VISION_API_KEY", ""))
	if visionAPIKey == "" {
		return Config{}, fmt.Errorf("VISION_API_KEY is required")
	}

	uptraceEnabled, err := strconv.ParseBool(getEnv("UPTRACE_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse UPTRACE_ENABLED: %w", err)
	}
	uptraceDSN := strings.TrimSpace(getEnv("UPTRACE_DSN", ""))
	if uptraceDSN == "" {
		uptraceDSN = parseUptraceDSNFromOTLPHeaders(getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""))
	}
	if uptraceEnabled && uptraceDSN == "" {
		return Config{}, fmt.Errorf("UPTRACE_DSN is required when UPTRACE_ENABLED=true")
	}

	pprofEnabled, err := strconv.ParseBool(getEnv("PPROF_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PPROF_ENABLED: %w", err)
	}
	pprofAddr := strings.TrimSpace(getEnv("PPROF_ADDR", ":6060"))
	if pprofEnabled && pprofAddr == "" {
		return Config{}, fmt.Errorf("PPROF_ADDR is required when PPROF_ENABLED=true")
	}

	pyroscopeEnabled, err := strconv.ParseBool(getEnv("PYROSCOPE_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PYROSCOPE_ENABLED: %w", err)
	}
	pyroscopeServerAddress := strings.TrimSpace(getEnv("PYROSCOPE_SERVER_ADDRESS", ""))
	if pyroscopeEnabled && pyroscopeServerAddress == "" {
		return Config{}, fmt.Errorf("PYROSCOPE_SERVER_ADDRESS is required when PYROSCOPE_ENABLED=true")
	}
	pyroscopeUploadRate, err := time.ParseDuration(getEnv("PYROSCOPE_UPLOAD_RATE", "15s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PYROSCOPE_UPLOAD_RATE: %w", err)
	}
	if pyroscopeUploadRate <= 0 {
		return Config{}, fmt.Errorf("PYROSCOPE_UPLOAD_RATE must be > 0")
	}

	// Vision calls can take a while, so the write timeout leaves room for
	// the upstream round trip plus retries.
	readTimeout, err := time.ParseDuration(getEnv("APP_READ_TIMEOUT", "30s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse APP_READ_TIMEOUT: %w", err)
	}
	writeTimeout, err := time.ParseDuration(getEnv("APP_WRITE_TIMEOUT", "120s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse APP_WRITE_TIMEOUT: %w", err)
	}

	cfg := Config{
		AppEnv:                      appEnv,
		ServiceName:                 getEnv("APP_SERVICE_NAME", "matchup-parser-api"),
		ServiceVersion:              getEnv("APP_SERVICE_VERSION", "dev"),
		HTTPAddr:                    getEnv("APP_HTTP_ADDR", ":8080"),
		ReadTimeout:                 readTimeout,
		WriteTimeout:                writeTimeout,
		CORSAllowedOrigins:          splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		MaxUploadBytes:              int64(maxUploadBytes),
		RedisURL:                    strings.TrimSpace(getEnv("REDIS_URL", "")),
		HistoryCapacity:             historyCapacity,
		ParserSkipBadRecords:        parserSkipBadRecords,
		VisionBaseURL:               strings.TrimSpace(getEnv("VISION_BASE_URL", "https://api.openai.com/v1")),
		VisionAPIKey:                visionAPIKey,
		VisionModel:                 strings.TrimSpace(getEnv("VISION_MODEL", "gpt-4o-mini")),
		VisionTimeout:               visionTimeout,
		VisionMaxRetries:            visionMaxRetries,
		VisionMaxTokens:             visionMaxTokens,
		VisionCircuitEnabled:        visionCircuitEnabled,
		VisionCircuitFailureCount:   visionCircuitFailureCount,
		VisionCircuitOpenTimeout:    visionCircuitOpenTimeout,
		VisionCircuitHalfOpenMaxReq: visionCircuitHalfOpenMaxReq,
		PprofEnabled:                pprofEnabled,
		PprofAddr:                   pprofAddr,
		UptraceEnabled:              uptraceEnabled,
		UptraceDSN:                  uptraceDSN,
		PyroscopeEnabled:            pyroscopeEnabled,
		PyroscopeServerAddress:      pyroscopeServerAddress,
		PyroscopeAuthToken:          strings.TrimSpace(getEnv("PYROSCOPE_AUTH_TOKEN", "")),
		PyroscopeBasicAuthUser:      strings.TrimSpace(getEnv("PYROSCOPE_BASIC_AUTH_USER", "")),
		PyroscopeBasicAuthPassword:  strings.TrimSpace(getEnv("PYROSCOPE_BASIC_AUTH_PASSWORD", "")),
		PyroscopeUploadRate:         pyroscopeUploadRate,
		LogLevel:                    parseLogLevel(getEnv("APP_LOG_LEVEL", "info")),
	}
	cfg.PyroscopeAppName = strings.TrimSpace(getEnv("PYROSCOPE_APP_NAME", cfg.ServiceName))
	if cfg.PyroscopeEnabled && cfg.PyroscopeAppName == "" {
		return Config{}, fmt.Errorf("PYROSCOPE_APP_NAME cannot be empty when PYROSCOPE_ENABLED=true")
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		return Config{}, fmt.Errorf("CORS_ALLOWED_ORIGINS cannot be empty")
	}

	return cfg, nil
}

func parseLogLevel(v string) logging.Level {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "debug":
		return logging.LevelDebug
	case "warn", "warning":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return fallback
	}

	return value
}

func getEnvAsInt(key string, fallback int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}

	out, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}

	return out, nil
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		item := strings.TrimSpace(part)
		if item == "" {
			continue
		}
		out = append(out, item)
	}

	return out
}

func parseUptraceDSNFromOTLPHeaders(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	items := strings.Split(raw, ",")
	for _, item := range items {
		parts := strings.SplitN(strings.TrimSpace(item), "=", 2)
		if len(parts) != 2 {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(parts[0]), "uptrace-dsn") {
			value := strings.TrimSpace(parts[1])
			return strings.Trim(value, "\"'")
		}
	}

	return ""
}

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

func parseAppEnv(v string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(v))
	switch value {
	case EnvDev, EnvStage, EnvProd:
		return value, nil
	default:
		return "", fmt.Errorf("invalid APP_ENV %q: valid values are %s, %s, %s", v, EnvDev, EnvStage, EnvProd)
	}
}
