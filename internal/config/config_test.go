package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/riskibarqy/matchup-parser/internal/platform/logging"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("VISION_API_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, ":8080", cfg.HTTPAddr)
	require.Equal(t, 5, cfg.HistoryCapacity)
	require.Equal(t, int64(8<<20), cfg.MaxUploadBytes)
	require.Equal(t, "gpt-4o-mini", cfg.VisionModel)
	require.Empty(t, cfg.RedisURL)
	require.False(t, cfg.ParserSkipBadRecords)
	require.Equal(t, logging.LevelInfo, cfg.LogLevel)
}

func TestLoadRequiresVisionAPIKey(t *testing.T) {
	t.Setenv("VISION_API_KEY", "")

	_, err := Load()
	require.ErrorContains(t, err, "VISION_API_KEY")
}

func TestLoadRejectsInvalidHistoryCapacity(t *testing.T) {
	t.Setenv("VISION_API_KEY", "sk-test")
	t.Setenv("HISTORY_CAPACITY", "0")

	_, err := Load()
	require.ErrorContains(t, err, "HISTORY_CAPACITY")
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("VISION_API_KEY", "sk-test")
	t.Setenv("APP_ENV", "prod")
	t.Setenv("HISTORY_CAPACITY", "9")
	t.Setenv("PARSER_SKIP_BAD_RECORDS", "true")
	t.Setenv("VISION_TIMEOUT", "45s")
	t.Setenv("APP_LOG_LEVEL", "debug")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, EnvProd, cfg.AppEnv)
	require.Equal(t, 9, cfg.HistoryCapacity)
	require.True(t, cfg.ParserSkipBadRecords)
	require.Equal(t, 45*time.Second, cfg.VisionTimeout)
	require.Equal(t, logging.LevelDebug, cfg.LogLevel)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
}

func TestParseUptraceDSNFromOTLPHeaders(t *testing.T) {
	got := parseUptraceDSNFromOTLPHeaders(`uptrace-dsn="https://token@uptrace.dev/1",other=x`)
	require.Equal(t, "https://token@uptrace.dev/1", got)
	require.Empty(t, parseUptraceDSNFromOTLPHeaders("foo=bar"))
}
