// Package vision calls an OpenAI-compatible chat-completions endpoint
// with a screenshot attached as a base64 data URL and returns the raw
// model text. Everything the model returns is untrusted; parsing lives
// in the domain layer.
package vision

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"

	"github.com/riskibarqy/matchup-parser/internal/platform/logging"
	"github.com/riskibarqy/matchup-parser/internal/platform/resilience"
	"github.com/riskibarqy/matchup-parser/internal/usecase"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o-mini"

	systemPrompt = `You read fantasy football matchup screenshots. Extract every matchup visible.
Rules:
- The large bold numbers next to each team are the FINAL SCORES.
- The team names are the prominent names, usually rendered in blue.
- Respond with STRICT JSON only, no prose, no markdown fences.
- Shape: {"matchups":[{"homeTeam":string,"homeScore":number,"awayTeam":string,"awayScore":number}],"week":number,"weekSource":"image"}
- Include "week" and "weekSource":"image" ONLY if a week number is clearly visible in the screenshot itself. Otherwise omit both fields.
- Never guess scores. Never invent teams.`

	userPrompt = "Extract all matchups from this screenshot."
)

var bearerTokenRegex = regexp.MustCompile(`Bearer\s+[^\s"']+`)
var errVisionTransient = crerr.New("vision transient failure")

type ClientConfig struct {
	HTTPClient     *http.Client
	BaseURL        string
	APIKey         string
	Model          string
	Timeout        time.Duration
	MaxRetries     int
	MaxTokens      int
	Logger         *logging.Logger
	CircuitBreaker resilience.CircuitBreakerConfig
}

type Client struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	model          string
	maxRetries     int
	maxTokens      int
	logger         *logging.Logger
	breaker        *resilience.CircuitBreaker
	circuitEnabled bool
	flight         resilience.SingleFlight
}

func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if httpClient.Timeout <= 0 {
		httpClient.Timeout = 60 * time.Second
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	breakerCfg := resilience.NormalizeCircuitBreakerConfig(cfg.CircuitBreaker)

	return &Client{
		httpClient:     httpClient,
		baseURL:        baseURL,
		apiKey:         strings.TrimSpace(cfg.APIKey),
		model:          model,
		maxRetries:     maxInt(cfg.MaxRetries, 0),
		maxTokens:      cfg.MaxTokens,
		logger:         logger,
		breaker:        resilience.NewCircuitBreaker(breakerCfg.FailureLimit, breakerCfg.CoolDown, breakerCfg.ProbeBudget),
		circuitEnabled: breakerCfg.Enabled,
	}
}

// ExtractMatchups sends the screenshot through the chat-completions API
// and returns the model's text verbatim. Identical concurrent uploads
// collapse into one upstream call.
func (c *Client) ExtractMatchups(ctx context.Context, imageDataURL string) (string, error) {
	if c.circuitEnabled {
		if err := c.breaker.Allow(); err != nil {
			c.logger.WarnContext(ctx, "vision circuit breaker rejected request", "state", c.breaker.State())
			return "", fmt.Errorf("%w: vision model is temporarily unavailable", usecase.ErrUpstreamUnavailable)
		}
	}

	payload, err := c.buildRequestBody(imageDataURL)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256([]byte(imageDataURL))
	key := hex.EncodeToString(sum[:])

	out, err, _ := c.flight.Do(key, func() (any, error) {
		text, reqErr := c.executeRequest(ctx, payload)
		if c.circuitEnabled {
			if reqErr != nil && crerr.Is(reqErr, errVisionTransient) {
				c.breaker.RecordFailure()
			} else {
				c.breaker.RecordSuccess()
			}
		}
		return text, reqErr
	})
	if err != nil {
		return "", crerr.Mark(err, usecase.ErrUpstreamUnavailable)
	}

	text, ok := out.(string)
	if !ok {
		return "", fmt.Errorf("unexpected response payload type %T", out)
	}
	return text, nil
}

func (c *Client) buildRequestBody(imageDataURL string) ([]byte, error) {
	req := chatRequest{
		Model:       c.model,
		Temperature: 0,
		MaxTokens:   c.maxTokens,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: []contentPart{
				{Type: "text", Text: userPrompt},
				{Type: "image_url", ImageURL: &imageURLPart{URL: imageDataURL}},
			}},
		},
	}

	payload, err := sonic.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}
	return payload, nil
}

func (c *Client) executeRequest(ctx context.Context, payload []byte) (string, error) {
	fullURL := c.baseURL + "/chat/completions"

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, bytes.NewReader(payload))
		if err != nil {
			return "", fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("content-type", "application/json")
		req.Header.Set("accept", "application/json")
		req.Header.Set("authorization", "Bearer "+c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%w: send request: %s", errVisionTransient, c.sanitize(err.Error()))
		} else {
			raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
			_ = resp.Body.Close()
			switch {
			case readErr != nil:
				lastErr = fmt.Errorf("%w: read response body: %v", errVisionTransient, readErr)
			case resp.StatusCode >= 200 && resp.StatusCode < 300:
				return decodeChatResponse(raw)
			case isRetryableStatus(resp.StatusCode):
				lastErr = fmt.Errorf("%w: model status=%d body=%s", errVisionTransient, resp.StatusCode, abbreviateBody(raw))
			default:
				return "", fmt.Errorf("model status=%d body=%s", resp.StatusCode, abbreviateBody(raw))
			}
		}

		if attempt == c.maxRetries {
			break
		}
		backoff := time.Duration(attempt+1) * time.Second
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("vision request failed")
	}
	c.logger.WarnContext(ctx, "vision request failed", "url", fullURL, "error", lastErr)
	return "", lastErr
}

func decodeChatResponse(raw []byte) (string, error) {
	var decoded chatResponse
	if err := sonic.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("decode model payload: %w", err)
	}
	if decoded.Error != nil && decoded.Error.Message != "" {
		return "", fmt.Errorf("model error: %s", decoded.Error.Message)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("model returned no choices")
	}
	return decoded.Choices[0].Message.Content, nil
}

func (c *Client) sanitize(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	if c.apiKey != "" {
		value = strings.ReplaceAll(value, c.apiKey, "REDACTED")
	}
	return bearerTokenRegex.ReplaceAllString(value, "Bearer REDACTED")
}

func isRetryableStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func abbreviateBody(raw []byte) string {
	const limit = 300
	body := strings.TrimSpace(string(raw))
	if len(body) > limit {
		return body[:limit] + "..."
	}
	return body
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

type chatRequest struct {
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Messages    []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *imageURLPart `json:"image_url,omitempty"`
}

type imageURLPart struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}
