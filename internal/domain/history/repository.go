package history

import "context"

// DefaultCapacity is the bounded window of versions kept per week.
const DefaultCapacity = 5

// Repository is the bounded, newest-first version store. Append evicts
// from the tail once a week's list exceeds the configured capacity and
// reports the evicted ids. Delete is idempotent. Implementations layer
// this on a flat key-value store with whole-value read-modify-write;
// concurrent writers race last-write-wins.
type Repository interface {
	Append(ctx context.Context, entry Entry) (evicted []string, err error)
	ListByWeek(ctx context.Context, week int) ([]Entry, error)
	ListAll(ctx context.Context) ([]Entry, error)
	Get(ctx context.Context, id string) (Entry, error)
	Delete(ctx context.Context, id string) error
	ClearWeek(ctx context.Context, week int) (deletedKey string, err error)
	Ping(ctx context.Context) error
}
