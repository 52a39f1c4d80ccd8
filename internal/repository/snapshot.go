package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/jmehdipour/leadsync/internal/model"
)

const (
	KeyRecords    = "data"
	KeyPullState  = "state"
	KeyClientSeen = "last-client-access"
)

// SnapshotRepository reads and fully rewrites the three documents the
// reporting side keeps: the record snapshot, the pull state and the
// consumer's delta cursor. Lock serializes a snapshot save against a delta
// read that advances the cursor.
type SnapshotRepository interface {
	sync.Locker
	LoadRecords(ctx context.Context) ([]model.Record, int, error)
	SaveRecords(ctx context.Context, records []model.Record) error
	LoadPullState(ctx context.Context) (model.PullState, error)
	SavePullState(ctx context.Context, at time.Time) error
	LoadAccess(ctx context.Context) (model.AccessState, error)
	SaveAccess(ctx context.Context, at time.Time) error
}

type SnapshotRepositoryImpl struct {
	kv KV
	mu sync.Mutex
}

var _ SnapshotRepository = (*SnapshotRepositoryImpl)(nil)

func NewSnapshotRepository(kv KV) *SnapshotRepositoryImpl {
	return &SnapshotRepositoryImpl{kv: kv}
}

func (r *SnapshotRepositoryImpl) Lock()   { r.mu.Lock() }
func (r *SnapshotRepositoryImpl) Unlock() { r.mu.Unlock() }

func (r *SnapshotRepositoryImpl) load(ctx context.Context, key string, out any) (int, error) {
	b, err := r.kv.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", key, err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return 0, fmt.Errorf("decode %s: %w", key, err)
	}
	return len(b), nil
}

func (r *SnapshotRepositoryImpl) save(ctx context.Context, key string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := r.kv.Put(ctx, key, b); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// LoadRecords returns the snapshot and its stored size in bytes. A missing
// snapshot is empty, not an error.
func (r *SnapshotRepositoryImpl) LoadRecords(ctx context.Context) ([]model.Record, int, error) {
	var recs []model.Record
	n, err := r.load(ctx, KeyRecords, &recs)
	if err != nil {
		return nil, 0, err
	}
	if recs == nil {
		recs = []model.Record{}
	}
	return recs, n, nil
}

func (r *SnapshotRepositoryImpl) SaveRecords(ctx context.Context, records []model.Record) error {
	if records == nil {
		records = []model.Record{}
	}
	return r.save(ctx, KeyRecords, records)
}

func (r *SnapshotRepositoryImpl) LoadPullState(ctx context.Context) (model.PullState, error) {
	var st model.PullState
	_, err := r.load(ctx, KeyPullState, &st)
	return st, err
}

func (r *SnapshotRepositoryImpl) SavePullState(ctx context.Context, at time.Time) error {
	at = at.UTC()
	return r.save(ctx, KeyPullState, model.PullState{LastFetch: &at})
}

func (r *SnapshotRepositoryImpl) LoadAccess(ctx context.Context) (model.AccessState, error) {
	var st model.AccessState
	_, err := r.load(ctx, KeyClientSeen, &st)
	return st, err
}

func (r *SnapshotRepositoryImpl) SaveAccess(ctx context.Context, at time.Time) error {
	at = at.UTC()
	return r.save(ctx, KeyClientSeen, model.AccessState{LastClientFetch: &at})
}
