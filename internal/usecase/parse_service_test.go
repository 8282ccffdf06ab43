package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/riskibarqy/matchup-parser/internal/domain/history"
	"github.com/riskibarqy/matchup-parser/internal/domain/matchup"
	"github.com/riskibarqy/matchup-parser/internal/platform/logging"
)

const testImage = "data:image/png;base64,aGVsbG8="

type stubVision struct {
	response string
	err      error
}

func (v *stubVision) ExtractMatchups(context.Context, string) (string, error) {
	return v.response, v.err
}

type fakeHistoryRepo struct {
	appended  []history.Entry
	appendErr error
}

func (f *fakeHistoryRepo) Append(_ context.Context, entry history.Entry) ([]string, error) {
	if f.appendErr != nil {
		return nil, f.appendErr
	}
	f.appended = append(f.appended, entry)
	return nil, nil
}

func (f *fakeHistoryRepo) ListByWeek(context.Context, int) ([]history.Entry, error) {
	return nil, nil
}

func (f *fakeHistoryRepo) ListAll(context.Context) ([]history.Entry, error) { return nil, nil }

func (f *fakeHistoryRepo) Get(_ context.Context, id string) (history.Entry, error) {
	return history.Entry{}, fmt.Errorf("%w: history entry %s", ErrNotFound, id)
}

func (f *fakeHistoryRepo) Delete(context.Context, string) error { return nil }

func (f *fakeHistoryRepo) ClearWeek(_ context.Context, week int) (string, error) {
	return fmt.Sprintf("mp:week:%d:versions", week), nil
}

func (f *fakeHistoryRepo) Ping(context.Context) error { return nil }

type stubIDs struct{ n int }

func (g *stubIDs) NewID() (string, error) {
	g.n++
	return fmt.Sprintf("entry-%03d", g.n), nil
}

func newTestParseService(vision VisionClient, repo history.Repository) *ParseService {
	return NewParseService(vision, repo, &stubIDs{}, matchup.NormalizeOptions{}, logging.NewNop())
}

func TestParseService_ProseWeekWithoutProvenanceStaysNil(t *testing.T) {
	vision := &stubVision{
		response: "Week 2\n```json\n{\"matchups\":[{\"homeTeam\":\"Alpha\",\"homeScore\":100,\"awayTeam\":\"Beta\",\"awayScore\":85}]}\n```",
	}
	repo := &fakeHistoryRepo{}
	svc := newTestParseService(vision, repo)

	result, err := svc.Parse(context.Background(), ParseInput{ImageDataURL: testImage})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if result.Week != nil {
		t.Fatalf("expected nil week, got %d", *result.Week)
	}
	if result.Meta.WeekSource != matchup.WeekSourceUnknown {
		t.Fatalf("expected unknown week source, got %q", result.Meta.WeekSource)
	}
	if result.Saved != nil {
		t.Fatalf("expected no history write without a week")
	}
	if len(repo.appended) != 0 {
		t.Fatalf("repo must not receive entries without a week")
	}

	if len(result.Matchups) != 1 {
		t.Fatalf("expected one matchup, got %d", len(result.Matchups))
	}
	m := result.Matchups[0]
	if m.Winner != "Alpha" || m.Diff != 15 {
		t.Fatalf("unexpected normalization: winner=%q diff=%v", m.Winner, m.Diff)
	}
	if result.TSV != "Alpha\t100.00\nBeta\t85.00" {
		t.Fatalf("unexpected tsv %q", result.TSV)
	}
}

func TestParseService_FilenameWinsOverManualHint(t *testing.T) {
	vision := &stubVision{response: `{"matchups":[]}`}
	repo := &fakeHistoryRepo{}
	svc := newTestParseService(vision, repo)

	hint := 3
	result, err := svc.Parse(context.Background(), ParseInput{
		ImageDataURL: testImage,
		Filename:     "Week 5 screenshot.png",
		WeekHint:     &hint,
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if result.Week == nil || *result.Week != 5 {
		t.Fatalf("expected week 5, got %v", result.Week)
	}
	if result.Meta.WeekSource != matchup.WeekSourceFilename {
		t.Fatalf("expected filename source, got %q", result.Meta.WeekSource)
	}
	if result.Saved == nil {
		t.Fatalf("expected a history write when the week resolved")
	}
	if len(repo.appended) != 1 || repo.appended[0].Week != 5 {
		t.Fatalf("unexpected repo state: %#v", repo.appended)
	}
	if repo.appended[0].Label == "" {
		t.Fatalf("expected a recency label on the stored entry")
	}
}

func TestParseService_StoreFailureIsBestEffort(t *testing.T) {
	vision := &stubVision{response: `{"matchups":[]}`}
	repo := &fakeHistoryRepo{appendErr: fmt.Errorf("%w: kv down", ErrStoreUnavailable)}
	svc := newTestParseService(vision, repo)

	hint := 4
	result, err := svc.Parse(context.Background(), ParseInput{ImageDataURL: testImage, WeekHint: &hint})
	if err != nil {
		t.Fatalf("persistence failure must not fail the parse: %v", err)
	}
	if result.Saved != nil {
		t.Fatalf("expected saved to be nil after store failure")
	}
	if result.Week == nil || *result.Week != 4 {
		t.Fatalf("expected week 4 from manual hint, got %v", result.Week)
	}
}

func TestParseService_InputValidation(t *testing.T) {
	svc := newTestParseService(&stubVision{response: `{"matchups":[]}`}, &fakeHistoryRepo{})
	badHint := 0

	tests := []struct {
		name  string
		input ParseInput
	}{
		{"missing payload", ParseInput{}},
		{"not an image", ParseInput{ImageDataURL: "data:text/plain;base64,aGk="}},
		{"not base64", ParseInput{ImageDataURL: "data:image/png,plain"}},
		{"bad week hint", ParseInput{ImageDataURL: testImage, WeekHint: &badHint}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Parse(context.Background(), tt.input); !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestParseService_UpstreamFailurePropagates(t *testing.T) {
	vision := &stubVision{err: fmt.Errorf("%w: status 429", ErrUpstreamUnavailable)}
	svc := newTestParseService(vision, &fakeHistoryRepo{})

	_, err := svc.Parse(context.Background(), ParseInput{ImageDataURL: testImage})
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestParseService_ExtractionFailureCarriesRawText(t *testing.T) {
	vision := &stubVision{response: "I could not read the scoreboard."}
	svc := newTestParseService(vision, &fakeHistoryRepo{})

	_, err := svc.Parse(context.Background(), ParseInput{ImageDataURL: testImage})
	if !errors.Is(err, matchup.ErrExtractionFailed) {
		t.Fatalf("expected ErrExtractionFailed, got %v", err)
	}
	raw, ok := matchup.RawText(err)
	if !ok || raw != vision.response {
		t.Fatalf("expected raw model text attached, got %q ok=%v", raw, ok)
	}
}
