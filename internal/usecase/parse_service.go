package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/riskibarqy/matchup-parser/internal/domain/history"
	"github.com/riskibarqy/matchup-parser/internal/domain/matchup"
	"github.com/riskibarqy/matchup-parser/internal/platform/id"
	"github.com/riskibarqy/matchup-parser/internal/platform/logging"
)

// VisionClient invokes the external vision model with a screenshot and
// returns its raw text response. The response is untrusted input.
type VisionClient interface {
	ExtractMatchups(ctx context.Context, imageDataURL string) (string, error)
}

type ParseInput struct {
	ImageDataURL string
	Filename     string
	WeekHint     *int
}

type ParseMeta struct {
	WeekSource string    `json:"weekSource"`
	SavedAt    time.Time `json:"savedAt"`
}

// SavedRef points at the history entry a parse produced. It is nil when
// no week resolved or persistence failed.
type SavedRef struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

type ParseResult struct {
	Week     *int                    `json:"week"`
	Matchups []matchup.MatchupRecord `json:"matchups"`
	Meta     ParseMeta               `json:"meta"`
	Saved    *SavedRef               `json:"saved"`
	TSV      string                  `json:"tsv"`
}

type ParseService struct {
	vision      VisionClient
	historyRepo history.Repository
	ids         id.Generator
	normalize   matchup.NormalizeOptions
	logger      *logging.Logger
	now         func() time.Time
}

func NewParseService(
	vision VisionClient,
	historyRepo history.Repository,
	ids id.Generator,
	normalize matchup.NormalizeOptions,
	logger *logging.Logger,
) *ParseService {
	if logger == nil {
		logger = logging.Default()
	}
	return &ParseService{
		vision:      vision,
		historyRepo: historyRepo,
		ids:         ids,
		normalize:   normalize,
		logger:      logger,
		now:         time.Now,
	}
}

// Parse runs the full pipeline: validate the image payload, invoke the
// vision model once, extract and normalize the matchups, resolve the
// week, and append to history best-effort. A history write failure does
// not fail the request; the result just carries Saved == nil.
func (s *ParseService) Parse(ctx context.Context, input ParseInput) (ParseResult, error) {
	if err := validateParseInput(input); err != nil {
		return ParseResult{}, err
	}

	raw, err := s.vision.ExtractMatchups(ctx, input.ImageDataURL)
	if err != nil {
		return ParseResult{}, fmt.Errorf("invoke vision model: %w", err)
	}

	candidate, err := matchup.Extract(raw)
	if err != nil {
		return ParseResult{}, err
	}

	records, err := matchup.Normalize(candidate, s.normalize)
	if err != nil {
		return ParseResult{}, matchup.WithRawText(err, raw)
	}

	week, weekSource := matchup.ResolveWeek(input.Filename, candidate, input.WeekHint)
	savedAt := s.now().UTC()

	result := ParseResult{
		Week:     week,
		Matchups: records,
		Meta:     ParseMeta{WeekSource: weekSource, SavedAt: savedAt},
		TSV:      matchup.RenderTSV(records),
	}

	if week != nil {
		result.Saved = s.persistSnapshot(ctx, *week, records, weekSource, savedAt)
	}

	return result, nil
}

func (s *ParseService) persistSnapshot(
	ctx context.Context,
	week int,
	records []matchup.MatchupRecord,
	weekSource string,
	savedAt time.Time,
) *SavedRef {
	entryID, err := s.ids.NewID()
	if err != nil {
		s.logger.WarnContext(ctx, "skip history write, id generation failed", "error", err)
		return nil
	}

	entry := history.Entry{
		ID:      entryID,
		Week:    week,
		Label:   history.NewLabel(week, savedAt),
		SavedAt: savedAt,
		Snapshot: matchup.WeekSnapshot{
			Week:     &week,
			Matchups: records,
			SavedAt:  savedAt,
			Meta:     matchup.Meta{WeekSource: weekSource},
		},
	}

	evicted, err := s.historyRepo.Append(ctx, entry)
	if err != nil {
		s.logger.WarnContext(ctx, "history write failed, returning unsaved result",
			"week", week, "error", err)
		return nil
	}
	if len(evicted) > 0 {
		s.logger.DebugContext(ctx, "history entries evicted", "week", week, "count", len(evicted))
	}

	return &SavedRef{ID: entry.ID, Label: entry.Label}
}

func validateParseInput(input ParseInput) error {
	dataURL := strings.TrimSpace(input.ImageDataURL)
	if dataURL == "" {
		return fmt.Errorf("%w: image payload is required", ErrInvalidInput)
	}
	if !strings.HasPrefix(dataURL, "data:image/") {
		return fmt.Errorf("%w: payload must declare an image content type", ErrInvalidInput)
	}
	if !strings.Contains(dataURL, ";base64,") {
		return fmt.Errorf("%w: image payload must be base64 encoded", ErrInvalidInput)
	}
	if input.WeekHint != nil && *input.WeekHint < 1 {
		return fmt.Errorf("%w: week hint must be >= 1", ErrInvalidInput)
	}
	return nil
}
