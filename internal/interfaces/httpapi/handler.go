package httpapi

import (
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"

	"github.com/riskibarqy/matchup-parser/internal/domain/history"
	"github.com/riskibarqy/matchup-parser/internal/domain/matchup"
	"github.com/riskibarqy/matchup-parser/internal/platform/logging"
	"github.com/riskibarqy/matchup-parser/internal/usecase"
)

const defaultMaxUploadBytes = 8 << 20

type Handler struct {
	parseService   *usecase.ParseService
	historyService *usecase.HistoryService
	maxUploadBytes int64
	logger         *logging.Logger
	validator      *validator.Validate
}

func NewHandler(
	parseService *usecase.ParseService,
	historyService *usecase.HistoryService,
	maxUploadBytes int64,
	logger *logging.Logger,
) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}

	return &Handler{
		parseService:   parseService,
		historyService: historyService,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
		validator:      validator.New(),
	}
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.Healthz")
	defer span.End()

	writeSuccess(ctx, w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) KVHealth(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.KVHealth")
	defer span.End()

	if err := h.historyService.Ping(ctx); err != nil {
		h.logger.ErrorContext(ctx, "kv health probe failed", "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, map[string]bool{"ok": true})
}

type parseMatchupsRequest struct {
	ImageDataURL string `json:"imageDataUrl" validate:"required"`
	Filename     string `json:"filename"`
	Week         *int   `json:"week" validate:"omitempty,min=1"`
}

// ParseMatchups accepts a screenshot either as a JSON body carrying a
// base64 data URL or as a multipart upload with a "file" part, runs the
// extraction pipeline, and returns the normalized snapshot.
func (h *Handler) ParseMatchups(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ParseMatchups")
	defer span.End()

	input, err := h.readParseInput(w, r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	result, err := h.parseService.Parse(ctx, input)
	if err != nil {
		h.logger.WarnContext(ctx, "parse matchups failed", "filename", input.Filename, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, result)
}

func (h *Handler) readParseInput(w http.ResponseWriter, r *http.Request) (usecase.ParseInput, error) {
	contentType := strings.ToLower(strings.TrimSpace(r.Header.Get("Content-Type")))
	if strings.HasPrefix(contentType, "multipart/form-data") {
		return h.readMultipartInput(r)
	}

	var req parseMatchupsRequest
	body := http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := sonic.ConfigDefault.NewDecoder(body).Decode(&req); err != nil {
		return usecase.ParseInput{}, fmt.Errorf("%w: decode request body: %v", usecase.ErrInvalidInput, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return usecase.ParseInput{}, fmt.Errorf("%w: %v", usecase.ErrInvalidInput, err)
	}

	return usecase.ParseInput{
		ImageDataURL: req.ImageDataURL,
		Filename:     strings.TrimSpace(req.Filename),
		WeekHint:     req.Week,
	}, nil
}

func (h *Handler) readMultipartInput(r *http.Request) (usecase.ParseInput, error) {
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		return usecase.ParseInput{}, fmt.Errorf("%w: parse multipart form: %v", usecase.ErrInvalidInput, err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return usecase.ParseInput{}, fmt.Errorf("%w: file part is required", usecase.ErrInvalidInput)
	}
	defer func() { _ = file.Close() }()

	raw, err := io.ReadAll(io.LimitReader(file, h.maxUploadBytes+1))
	if err != nil {
		return usecase.ParseInput{}, fmt.Errorf("%w: read upload: %v", usecase.ErrInvalidInput, err)
	}
	if int64(len(raw)) > h.maxUploadBytes {
		return usecase.ParseInput{}, fmt.Errorf("%w: upload exceeds %d bytes", usecase.ErrInvalidInput, h.maxUploadBytes)
	}

	mimeType := strings.TrimSpace(header.Header.Get("Content-Type"))
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(raw)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return usecase.ParseInput{}, fmt.Errorf("%w: upload must be an image, got %s", usecase.ErrInvalidInput, mimeType)
	}

	var weekHint *int
	if value := strings.TrimSpace(r.FormValue("week")); value != "" {
		week, err := strconv.Atoi(value)
		if err != nil || week < 1 {
			return usecase.ParseInput{}, fmt.Errorf("%w: week field must be a positive integer", usecase.ErrInvalidInput)
		}
		weekHint = &week
	}

	return usecase.ParseInput{
		ImageDataURL: "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(raw),
		Filename:     strings.TrimSpace(header.Filename),
		WeekHint:     weekHint,
	}, nil
}

type historyListResponse struct {
	Items []history.Summary `json:"items"`
}

func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListHistory")
	defer span.End()

	var week *int
	if value := strings.TrimSpace(r.URL.Query().Get("week")); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			writeError(ctx, w, fmt.Errorf("%w: week query must be an integer", usecase.ErrInvalidInput))
			return
		}
		week = &parsed
	}

	items, err := h.historyService.List(ctx, week)
	if err != nil {
		h.logger.ErrorContext(ctx, "list history failed", "error", err)
		writeError(ctx, w, err)
		return
	}
	if items == nil {
		items = []history.Summary{}
	}

	writeSuccess(ctx, w, http.StatusOK, historyListResponse{Items: items})
}

type historyEntryDTO struct {
	ID       string                  `json:"id"`
	Week     int                     `json:"week"`
	Label    string                  `json:"label"`
	SavedAt  time.Time               `json:"savedAt"`
	Matchups []matchup.MatchupRecord `json:"matchups"`
	Meta     matchup.Meta            `json:"meta"`
}

func (h *Handler) GetHistoryEntry(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetHistoryEntry")
	defer span.End()

	entryID := r.PathValue("entryID")
	entry, err := h.historyService.Get(ctx, entryID)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, historyEntryDTO{
		ID:       entry.ID,
		Week:     entry.Week,
		Label:    entry.Label,
		SavedAt:  entry.SavedAt,
		Matchups: entry.Snapshot.Matchups,
		Meta:     entry.Snapshot.Meta,
	})
}

func (h *Handler) DeleteHistoryEntry(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.DeleteHistoryEntry")
	defer span.End()

	entryID := r.PathValue("entryID")
	if err := h.historyService.Delete(ctx, entryID); err != nil {
		h.logger.ErrorContext(ctx, "delete history entry failed", "entry_id", entryID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) ClearWeekHistory(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ClearWeekHistory")
	defer span.End()

	week, err := strconv.Atoi(r.PathValue("week"))
	if err != nil {
		writeError(ctx, w, fmt.Errorf("%w: week path segment must be an integer", usecase.ErrInvalidInput))
		return
	}

	deletedKey, err := h.historyService.ClearWeek(ctx, week)
	if err != nil {
		h.logger.ErrorContext(ctx, "clear week history failed", "week", week, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, map[string]any{"ok": true, "deleted": deletedKey})
}
