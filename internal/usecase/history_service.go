package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/riskibarqy/matchup-parser/internal/domain/history"
)

type HistoryService struct {
	repo history.Repository
}

func NewHistoryService(repo history.Repository) *HistoryService {
	return &HistoryService{repo: repo}
}

// List returns entry summaries newest first, for one week or globally.
func (s *HistoryService) List(ctx context.Context, week *int) ([]history.Summary, error) {
	if week != nil && *week < 1 {
		return nil, fmt.Errorf("%w: week must be >= 1", ErrInvalidInput)
	}

	var (
		entries []history.Entry
		err     error
	)
	if week != nil {
		entries, err = s.repo.ListByWeek(ctx, *week)
	} else {
		entries, err = s.repo.ListAll(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}

	summaries := make([]history.Summary, 0, len(entries))
	for _, entry := range entries {
		summaries = append(summaries, entry.Summary())
	}
	return summaries, nil
}

func (s *HistoryService) Get(ctx context.Context, entryID string) (history.Entry, error) {
	entryID = strings.TrimSpace(entryID)
	if entryID == "" {
		return history.Entry{}, fmt.Errorf("%w: entry id is required", ErrInvalidInput)
	}

	entry, err := s.repo.Get(ctx, entryID)
	if err != nil {
		return history.Entry{}, fmt.Errorf("get history entry: %w", err)
	}
	return entry, nil
}

// Delete is idempotent; deleting an absent id succeeds.
func (s *HistoryService) Delete(ctx context.Context, entryID string) error {
	entryID = strings.TrimSpace(entryID)
	if entryID == "" {
		return fmt.Errorf("%w: entry id is required", ErrInvalidInput)
	}

	if err := s.repo.Delete(ctx, entryID); err != nil {
		return fmt.Errorf("delete history entry: %w", err)
	}
	return nil
}

// ClearWeek drops a week's entire version list and returns the deleted
// index key.
func (s *HistoryService) ClearWeek(ctx context.Context, week int) (string, error) {
	if week < 1 {
		return "", fmt.Errorf("%w: week must be >= 1", ErrInvalidInput)
	}

	deletedKey, err := s.repo.ClearWeek(ctx, week)
	if err != nil {
		return "", fmt.Errorf("clear week history: %w", err)
	}
	return deletedKey, nil
}

func (s *HistoryService) Ping(ctx context.Context) error {
	if err := s.repo.Ping(ctx); err != nil {
		return fmt.Errorf("kv health probe: %w", err)
	}
	return nil
}
