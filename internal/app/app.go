package app

import (
	"fmt"
	"net/http"

	"github.com/riskibarqy/matchup-parser/external/vision"
	"github.com/riskibarqy/matchup-parser/internal/config"
	"github.com/riskibarqy/matchup-parser/internal/domain/matchup"
	"github.com/riskibarqy/matchup-parser/internal/infrastructure/kv/memory"
	"github.com/riskibarqy/matchup-parser/internal/infrastructure/kv/redis"
	"github.com/riskibarqy/matchup-parser/internal/infrastructure/repository/kvstore"
	"github.com/riskibarqy/matchup-parser/internal/interfaces/httpapi"
	"github.com/riskibarqy/matchup-parser/internal/platform/id"
	"github.com/riskibarqy/matchup-parser/internal/platform/kv"
	"github.com/riskibarqy/matchup-parser/internal/platform/logging"
	"github.com/riskibarqy/matchup-parser/internal/platform/resilience"
	"github.com/riskibarqy/matchup-parser/internal/usecase"
)

// NewHTTPServer wires the full dependency graph and returns the server
// plus a cleanup func that releases the history store.
func NewHTTPServer(cfg config.Config, logger *logging.Logger) (*http.Server, func() error, error) {
	if logger == nil {
		logger = logging.Default()
	}

	store, closeStore, err := newHistoryStore(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	historyRepo := kvstore.NewHistoryRepository(store, cfg.HistoryCapacity)

	visionClient := vision.NewClient(vision.ClientConfig{
		BaseURL:    cfg.VisionBaseURL,
		APIKey:     cfg.VisionAPIKey,
		Model:      cfg.VisionModel,
		Timeout:    cfg.VisionTimeout,
		MaxRetries: cfg.VisionMaxRetries,
		MaxTokens:  cfg.VisionMaxTokens,
		Logger:     logger,
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Enabled:      cfg.VisionCircuitEnabled,
			FailureLimit: cfg.VisionCircuitFailureCount,
			CoolDown:     cfg.VisionCircuitOpenTimeout,
			ProbeBudget:  cfg.VisionCircuitHalfOpenMaxReq,
		},
	})

	parseSvc := usecase.NewParseService(
		visionClient,
		historyRepo,
		id.NewSortableGenerator(),
		matchup.NormalizeOptions{SkipBadRecords: cfg.ParserSkipBadRecords},
		logger,
	)
	historySvc := usecase.NewHistoryService(historyRepo)

	handler := httpapi.NewHandler(parseSvc, historySvc, cfg.MaxUploadBytes, logger)
	router := httpapi.NewRouter(handler, logger, cfg.CORSAllowedOrigins)

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	if server.Addr == "" {
		_ = closeStore()
		return nil, nil, fmt.Errorf("http server addr cannot be empty")
	}

	return server, closeStore, nil
}

func newHistoryStore(cfg config.Config, logger *logging.Logger) (kv.Store, func() error, error) {
	if cfg.RedisURL == "" {
		logger.Info("history store using in-memory backend", "reason", "REDIS_URL empty")
		return memory.NewStore(), func() error { return nil }, nil
	}

	store, err := redis.Open(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("open redis store: %w", err)
	}
	logger.Info("history store using redis backend")

	return store, store.Close, nil
}
