package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmehdipour/leadsync/internal/model"
)

func strptr(s string) *string { return &s }

func backends(t *testing.T) map[string]KV {
	t.Helper()

	fkv, err := NewFileKV(filepath.Join(t.TempDir(), "data"))
	if err != nil {
		t.Fatal(err)
	}
	bkv, err := OpenBadger("")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = bkv.Close() })

	return map[string]KV{"file": fkv, "badger": bkv}
}

func TestKVGetPut(t *testing.T) {
	ctx := context.Background()
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := kv.Get(ctx, "state"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("Get(missing) error = %v, want ErrNotFound", err)
			}
			if err := kv.Put(ctx, "state", []byte(`{"a":1}`)); err != nil {
				t.Fatalf("Put() error = %v", err)
			}
			if err := kv.Put(ctx, "state", []byte(`{"a":2}`)); err != nil {
				t.Fatalf("Put() overwrite error = %v", err)
			}
			got, err := kv.Get(ctx, "state")
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if string(got) != `{"a":2}` {
				t.Errorf("Get() = %s, want the last write", got)
			}
			if err := kv.Put(ctx, "../escape", nil); err == nil {
				t.Error("Put() with path traversal key succeeded")
			}
		})
	}
}

func TestFileKVLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	kv, err := NewFileKV(dir)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := kv.Put(context.Background(), "data", []byte("[]")); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "data.json" {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("dir entries = %v, want [data.json]", names)
	}
}

func TestSnapshotRepository(t *testing.T) {
	ctx := context.Background()
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			repo := NewSnapshotRepository(kv)

			recs, size, err := repo.LoadRecords(ctx)
			if err != nil || len(recs) != 0 || size != 0 {
				t.Fatalf("LoadRecords() on empty store = (%v, %d, %v)", recs, size, err)
			}
			st, err := repo.LoadAccess(ctx)
			if err != nil || st.LastClientFetch != nil {
				t.Fatalf("LoadAccess() on empty store = (%+v, %v)", st, err)
			}

			at := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
			in := []model.Record{{
				CustomerID:       "1001",
				RegistrationDate: "2025-04-01",
				TrackingCode:     strptr("tc"),
				PL:               12.5,
				Email:            strptr("hash"),
				ModifiedAt:       at,
			}}
			if err := repo.SaveRecords(ctx, in); err != nil {
				t.Fatalf("SaveRecords() error = %v", err)
			}
			if err := repo.SavePullState(ctx, at); err != nil {
				t.Fatal(err)
			}
			if err := repo.SaveAccess(ctx, at.Add(time.Minute)); err != nil {
				t.Fatal(err)
			}

			recs, size, err = repo.LoadRecords(ctx)
			if err != nil {
				t.Fatalf("LoadRecords() error = %v", err)
			}
			if size == 0 {
				t.Error("LoadRecords() size = 0, want stored byte count")
			}
			if len(recs) != 1 || recs[0].CustomerID != "1001" || !recs[0].ModifiedAt.Equal(at) || *recs[0].Email != "hash" {
				t.Errorf("LoadRecords() = %+v", recs)
			}

			ps, err := repo.LoadPullState(ctx)
			if err != nil || ps.LastFetch == nil || !ps.LastFetch.Equal(at) {
				t.Errorf("LoadPullState() = (%+v, %v)", ps, err)
			}
			as, err := repo.LoadAccess(ctx)
			if err != nil || as.LastClientFetch == nil || !as.LastClientFetch.Equal(at.Add(time.Minute)) {
				t.Errorf("LoadAccess() = (%+v, %v)", as, err)
			}
		})
	}
}

func TestSnapshotRepositoryCorruptDocument(t *testing.T) {
	kv, err := NewFileKV(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := kv.Put(context.Background(), KeyRecords, []byte("{not json")); err != nil {
		t.Fatal(err)
	}
	if _, _, err := NewSnapshotRepository(kv).LoadRecords(context.Background()); err == nil {
		t.Error("LoadRecords() on corrupt snapshot error = nil, want error")
	}
}
