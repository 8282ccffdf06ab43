// Package kvstore layers the bounded per-week version history on top of
// the flat key-value contract. Every mutation is a whole-value
// read-modify-write; concurrent writers race last-write-wins.
package kvstore

import (
	"context"
	"fmt"
	"sort"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/sourcegraph/conc/pool"

	"github.com/riskibarqy/matchup-parser/internal/domain/history"
	"github.com/riskibarqy/matchup-parser/internal/platform/kv"
	"github.com/riskibarqy/matchup-parser/internal/usecase"
)

const (
	entryKeyPrefix = "mp:version:"
	weeksIndexKey  = "mp:weeks"
	healthProbeKey = "mp:health:probe"
)

func entryKey(id string) string { return entryKeyPrefix + id }

func weekIndexKey(week int) string { return fmt.Sprintf("mp:week:%d:versions", week) }

type HistoryRepository struct {
	store    kv.Store
	capacity int
}

func NewHistoryRepository(store kv.Store, capacity int) *HistoryRepository {
	if capacity < 1 {
		capacity = history.DefaultCapacity
	}
	return &HistoryRepository{store: store, capacity: capacity}
}

// Append writes the entry, prepends its id to the week's index and
// evicts from the tail past capacity. Evicted entry keys are deleted so
// evicted ids become unreachable by Get.
func (r *HistoryRepository) Append(ctx context.Context, entry history.Entry) ([]string, error) {
	payload, err := sonic.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("marshal history entry: %w", err)
	}

	if err := r.store.Set(ctx, entryKey(entry.ID), payload); err != nil {
		return nil, crerr.Mark(err, usecase.ErrStoreUnavailable)
	}

	ids, err := r.readWeekIndex(ctx, entry.Week)
	if err != nil {
		return nil, err
	}

	ids = append([]string{entry.ID}, ids...)
	var evicted []string
	if len(ids) > r.capacity {
		evicted = ids[r.capacity:]
		ids = ids[:r.capacity]
	}

	for _, id := range evicted {
		if err := r.store.Delete(ctx, entryKey(id)); err != nil {
			return nil, crerr.Mark(err, usecase.ErrStoreUnavailable)
		}
	}

	if err := r.writeWeekIndex(ctx, entry.Week, ids); err != nil {
		return nil, err
	}
	if err := r.addWeekToIndex(ctx, entry.Week); err != nil {
		return nil, err
	}

	return evicted, nil
}

func (r *HistoryRepository) ListByWeek(ctx context.Context, week int) ([]history.Entry, error) {
	ids, err := r.readWeekIndex(ctx, week)
	if err != nil {
		return nil, err
	}
	return r.hydrate(ctx, ids)
}

func (r *HistoryRepository) ListAll(ctx context.Context) ([]history.Entry, error) {
	weeks, err := r.readWeeksIndex(ctx)
	if err != nil {
		return nil, err
	}

	var all []history.Entry
	for _, week := range weeks {
		entries, err := r.ListByWeek(ctx, week)
		if err != nil {
			return nil, err
		}
		all = append(all, entries...)
	}

	// Ids carry a creation-time prefix, so newest first is a reverse
	// lexical sort.
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	return all, nil
}

func (r *HistoryRepository) Get(ctx context.Context, id string) (history.Entry, error) {
	entry, ok, err := r.readEntry(ctx, id)
	if err != nil {
		return history.Entry{}, err
	}
	if !ok {
		return history.Entry{}, fmt.Errorf("%w: history entry %s", usecase.ErrNotFound, id)
	}
	return entry, nil
}

// Delete removes one entry and its index reference. A missing id is not
// an error.
func (r *HistoryRepository) Delete(ctx context.Context, id string) error {
	entry, ok, err := r.readEntry(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	if err := r.store.Delete(ctx, entryKey(id)); err != nil {
		return crerr.Mark(err, usecase.ErrStoreUnavailable)
	}

	ids, err := r.readWeekIndex(ctx, entry.Week)
	if err != nil {
		return err
	}
	kept := ids[:0]
	for _, existing := range ids {
		if existing != id {
			kept = append(kept, existing)
		}
	}
	return r.writeWeekIndex(ctx, entry.Week, kept)
}

// ClearWeek drops a week's index and every entry it references, and
// returns the deleted index key.
func (r *HistoryRepository) ClearWeek(ctx context.Context, week int) (string, error) {
	ids, err := r.readWeekIndex(ctx, week)
	if err != nil {
		return "", err
	}

	for _, id := range ids {
		if err := r.store.Delete(ctx, entryKey(id)); err != nil {
			return "", crerr.Mark(err, usecase.ErrStoreUnavailable)
		}
	}

	indexKey := weekIndexKey(week)
	if err := r.store.Delete(ctx, indexKey); err != nil {
		return "", crerr.Mark(err, usecase.ErrStoreUnavailable)
	}
	if err := r.removeWeekFromIndex(ctx, week); err != nil {
		return "", err
	}

	return indexKey, nil
}

// Ping round-trips a probe key through the backing store.
func (r *HistoryRepository) Ping(ctx context.Context) error {
	if err := r.store.Set(ctx, healthProbeKey, []byte("ok")); err != nil {
		return crerr.Mark(err, usecase.ErrStoreUnavailable)
	}
	value, ok, err := r.store.Get(ctx, healthProbeKey)
	if err != nil {
		return crerr.Mark(err, usecase.ErrStoreUnavailable)
	}
	if !ok || string(value) != "ok" {
		return fmt.Errorf("%w: probe key did not round-trip", usecase.ErrStoreUnavailable)
	}
	return r.store.Delete(ctx, healthProbeKey)
}

func (r *HistoryRepository) hydrate(ctx context.Context, ids []string) ([]history.Entry, error) {
	found := make([]*history.Entry, len(ids))

	p := pool.New().WithErrors().WithContext(ctx)
	for i, id := range ids {
		p.Go(func(ctx context.Context) error {
			entry, ok, err := r.readEntry(ctx, id)
			if err != nil {
				return err
			}
			if ok {
				found[i] = &entry
			}
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}

	// Index order is newest first already; drop ids whose entries were
	// deleted out from under the index.
	entries := make([]history.Entry, 0, len(ids))
	for _, entry := range found {
		if entry != nil {
			entries = append(entries, *entry)
		}
	}
	return entries, nil
}

func (r *HistoryRepository) readEntry(ctx context.Context, id string) (history.Entry, bool, error) {
	payload, ok, err := r.store.Get(ctx, entryKey(id))
	if err != nil {
		return history.Entry{}, false, crerr.Mark(err, usecase.ErrStoreUnavailable)
	}
	if !ok {
		return history.Entry{}, false, nil
	}

	var entry history.Entry
	if err := sonic.Unmarshal(payload, &entry); err != nil {
		return history.Entry{}, false, fmt.Errorf("unmarshal history entry %s: %w", id, err)
	}
	return entry, true, nil
}

func (r *HistoryRepository) readWeekIndex(ctx context.Context, week int) ([]string, error) {
	payload, ok, err := r.store.Get(ctx, weekIndexKey(week))
	if err != nil {
		return nil, crerr.Mark(err, usecase.ErrStoreUnavailable)
	}
	if !ok {
		return nil, nil
	}

	var ids []string
	if err := sonic.Unmarshal(payload, &ids); err != nil {
		return nil, fmt.Errorf("unmarshal week %d index: %w", week, err)
	}
	return ids, nil
}

func (r *HistoryRepository) writeWeekIndex(ctx context.Context, week int, ids []string) error {
	if len(ids) == 0 {
		if err := r.store.Delete(ctx, weekIndexKey(week)); err != nil {
			return crerr.Mark(err, usecase.ErrStoreUnavailable)
		}
		return r.removeWeekFromIndex(ctx, week)
	}

	payload, err := sonic.Marshal(ids)
	if err != nil {
		return fmt.Errorf("marshal week %d index: %w", week, err)
	}
	if err := r.store.Set(ctx, weekIndexKey(week), payload); err != nil {
		return crerr.Mark(err, usecase.ErrStoreUnavailable)
	}
	return nil
}

func (r *HistoryRepository) readWeeksIndex(ctx context.Context) ([]int, error) {
	payload, ok, err := r.store.Get(ctx, weeksIndexKey)
	if err != nil {
		return nil, crerr.Mark(err, usecase.ErrStoreUnavailable)
	}
	if !ok {
		return nil, nil
	}

	var weeks []int
	if err := sonic.Unmarshal(payload, &weeks); err != nil {
		return nil, fmt.Errorf("unmarshal weeks index: %w", err)
	}
	return weeks, nil
}

func (r *HistoryRepository) addWeekToIndex(ctx context.Context, week int) error {
	weeks, err := r.readWeeksIndex(ctx)
	if err != nil {
		return err
	}
	for _, existing := range weeks {
		if existing == week {
			return nil
		}
	}
	weeks = append(weeks, week)
	sort.Ints(weeks)
	return r.writeWeeksIndex(ctx, weeks)
}

func (r *HistoryRepository) removeWeekFromIndex(ctx context.Context, week int) error {
	weeks, err := r.readWeeksIndex(ctx)
	if err != nil {
		return err
	}
	kept := weeks[:0]
	for _, existing := range weeks {
		if existing != week {
			kept = append(kept, existing)
		}
	}
	return r.writeWeeksIndex(ctx, kept)
}

func (r *HistoryRepository) writeWeeksIndex(ctx context.Context, weeks []int) error {
	if len(weeks) == 0 {
		if err := r.store.Delete(ctx, weeksIndexKey); err != nil {
			return crerr.Mark(err, usecase.ErrStoreUnavailable)
		}
		return nil
	}

	payload, err := sonic.Marshal(weeks)
	if err != nil {
		return fmt.Errorf("marshal weeks index: %w", err)
	}
	if err := r.store.Set(ctx, weeksIndexKey, payload); err != nil {
		return crerr.Mark(err, usecase.ErrStoreUnavailable)
	}
	return nil
}
