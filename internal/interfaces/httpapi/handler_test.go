package httpapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"reflect"
	"strings"
	"testing"

	sonic "github.com/bytedance/sonic"

	"github.com/riskibarqy/matchup-parser/internal/domain/matchup"
	"github.com/riskibarqy/matchup-parser/internal/infrastructure/kv/memory"
	"github.com/riskibarqy/matchup-parser/internal/infrastructure/repository/kvstore"
	"github.com/riskibarqy/matchup-parser/internal/platform/id"
	"github.com/riskibarqy/matchup-parser/internal/platform/logging"
	"github.com/riskibarqy/matchup-parser/internal/usecase"
)

const modelReply = `{"matchups":[{"homeTeam":"Alpha","homeScore":100,"awayTeam":"Beta","awayScore":85}]}`

type stubVision struct {
	response string
	err      error
}

func (v *stubVision) ExtractMatchups(context.Context, string) (string, error) {
	return v.response, v.err
}

func newTestRouter(vision usecase.VisionClient) http.Handler {
	repo := kvstore.NewHistoryRepository(memory.NewStore(), 5)
	parseService := usecase.NewParseService(vision, repo, id.NewSortableGenerator(), matchup.NormalizeOptions{}, logging.NewNop())
	historyService := usecase.NewHistoryService(repo)
	handler := NewHandler(parseService, historyService, 0, logging.NewNop())
	return NewRouter(handler, logging.NewNop(), nil)
}

func doJSON(t *testing.T, router http.Handler, method, target string, payload any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		raw, err := sonic.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		if err := sonic.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("unmarshal response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, decoded
}

const testImageDataURL = "data:image/png;base64,aGVsbG8="

func TestParseMatchups_EndToEndWithHistory(t *testing.T) {
	router := newTestRouter(&stubVision{response: modelReply})

	rec, body := doJSON(t, router, http.MethodPost, "/api/parse-matchups", map[string]any{
		"imageDataUrl": testImageDataURL,
		"filename":     "Week 3 scores.png",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}

	if got, _ := body["week"].(float64); got != 3 {
		t.Fatalf("week = %v, want 3", body["week"])
	}
	meta, _ := body["meta"].(map[string]any)
	if got, _ := meta["weekSource"].(string); got != "filename" {
		t.Fatalf("weekSource = %v", meta["weekSource"])
	}
	saved, ok := body["saved"].(map[string]any)
	if !ok {
		t.Fatalf("expected saved ref, got %v", body["saved"])
	}
	entryID, _ := saved["id"].(string)
	if entryID == "" {
		t.Fatalf("saved.id missing: %v", saved)
	}
	if got, _ := body["tsv"].(string); got != "Alpha\t100.00\nBeta\t85.00" {
		t.Fatalf("tsv = %q", got)
	}

	rec, body = doJSON(t, router, http.MethodGet, "/api/history?week=3", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	items, _ := body["items"].([]any)
	if len(items) != 1 {
		t.Fatalf("expected one history item, got %v", body["items"])
	}

	rec, body = doJSON(t, router, http.MethodGet, "/api/history/"+entryID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	matchups, _ := body["matchups"].([]any)
	if len(matchups) != 1 {
		t.Fatalf("expected snapshot matchups, got %v", body["matchups"])
	}

	rec, body = doJSON(t, router, http.MethodDelete, "/api/history/"+entryID, nil)
	if rec.Code != http.StatusOK || body["ok"] != true {
		t.Fatalf("delete status = %d body=%v", rec.Code, body)
	}

	// Idempotent: a second delete still succeeds.
	rec, _ = doJSON(t, router, http.MethodDelete, "/api/history/"+entryID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("second delete status = %d", rec.Code)
	}

	rec, _ = doJSON(t, router, http.MethodGet, "/api/history/"+entryID, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestParseMatchups_MultipartMatchesDataURL(t *testing.T) {
	router := newTestRouter(&stubVision{response: modelReply})

	imageBytes := []byte("not-a-real-png-but-close-enough")

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	partHeader := textproto.MIMEHeader{}
	partHeader.Set("Content-Disposition", `form-data; name="file"; filename="week 4.png"`)
	partHeader.Set("Content-Type", "image/png")
	part, err := writer.CreatePart(partHeader)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(imageBytes); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/parse-matchups", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("multipart status = %d body=%s", rec.Code, rec.Body.String())
	}

	var multipartBody map[string]any
	if err := sonic.Unmarshal(rec.Body.Bytes(), &multipartBody); err != nil {
		t.Fatalf("unmarshal multipart response: %v", err)
	}

	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(imageBytes)
	recJSON, jsonBody := doJSON(t, router, http.MethodPost, "/api/parse-matchups", map[string]any{
		"imageDataUrl": dataURL,
		"filename":     "week 4.png",
	})
	if recJSON.Code != http.StatusOK {
		t.Fatalf("json status = %d", recJSON.Code)
	}

	if !reflect.DeepEqual(multipartBody["matchups"], jsonBody["matchups"]) {
		t.Fatalf("multipart and data-url matchups differ:\n%v\n%v", multipartBody["matchups"], jsonBody["matchups"])
	}
	if multipartBody["week"] != jsonBody["week"] {
		t.Fatalf("weeks differ: %v vs %v", multipartBody["week"], jsonBody["week"])
	}
}

func TestParseMatchups_ExtractionFailureReturns502WithRaw(t *testing.T) {
	router := newTestRouter(&stubVision{response: "sorry, the image is unreadable"})

	rec, body := doJSON(t, router, http.MethodPost, "/api/parse-matchups", map[string]any{
		"imageDataUrl": testImageDataURL,
	})
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	if got, _ := body["raw"].(string); got != "sorry, the image is unreadable" {
		t.Fatalf("raw = %q", got)
	}
}

func TestParseMatchups_MissingImageReturns400(t *testing.T) {
	router := newTestRouter(&stubVision{response: modelReply})

	rec, body := doJSON(t, router, http.MethodPost, "/api/parse-matchups", map[string]any{
		"filename": "week 1.png",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if msg, _ := body["error"].(string); !strings.Contains(msg, "invalid input") {
		t.Fatalf("unexpected error message %q", msg)
	}
}

func TestClearWeekHistory(t *testing.T) {
	router := newTestRouter(&stubVision{response: modelReply})

	rec, body := doJSON(t, router, http.MethodPost, "/api/parse-matchups", map[string]any{
		"imageDataUrl": testImageDataURL,
		"week":         6,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("parse status = %d", rec.Code)
	}
	saved, _ := body["saved"].(map[string]any)
	entryID, _ := saved["id"].(string)
	if entryID == "" {
		t.Fatalf("expected saved entry, got %v", body["saved"])
	}

	rec, body = doJSON(t, router, http.MethodDelete, "/api/weeks/6/history", nil)
	if rec.Code != http.StatusOK || body["ok"] != true {
		t.Fatalf("clear status = %d body=%v", rec.Code, body)
	}
	if got, _ := body["deleted"].(string); got != "mp:week:6:versions" {
		t.Fatalf("deleted = %q", got)
	}

	rec, _ = doJSON(t, router, http.MethodGet, "/api/history/"+entryID, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after clear, got %d", rec.Code)
	}
}

func TestKVHealth(t *testing.T) {
	router := newTestRouter(&stubVision{response: modelReply})

	rec, body := doJSON(t, router, http.MethodGet, "/api/kv/health", nil)
	if rec.Code != http.StatusOK || body["ok"] != true {
		t.Fatalf("status = %d body=%v", rec.Code, body)
	}
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(&stubVision{response: modelReply})

	rec, body := doJSON(t, router, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got, _ := body["status"].(string); got != "ok" {
		t.Fatalf("body = %v", body)
	}
}
