package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/jmehdipour/leadsync/internal/model"
	"github.com/jmehdipour/leadsync/internal/repository"
	"github.com/prometheus/client_golang/prometheus"
)

const secret = "s3cret"

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestServer(t *testing.T, recs []model.Record) (*Server, *repository.SnapshotRepositoryImpl, *clock) {
	t.Helper()
	kv, err := repository.NewFileKV(filepath.Join(t.TempDir(), "data"))
	if err != nil {
		t.Fatal(err)
	}
	store := repository.NewSnapshotRepository(kv)
	if recs != nil {
		if err := store.SaveRecords(context.Background(), recs); err != nil {
			t.Fatal(err)
		}
	}
	clk := &clock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	srv := NewServer(Opts{
		APIKey:          secret,
		Store:           store,
		Gatherer:        prometheus.NewRegistry(),
		IntervalMinutes: 15,
		AffiliateID:     "77",
		Credentials:     3,
		Now:             clk.now,
	})
	return srv, store, clk
}

func get(t *testing.T, srv *Server, path, key string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeReport(t *testing.T, rec *httptest.ResponseRecorder) reportResponse {
	t.Helper()
	var out reportResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
	return out
}

func TestSharedSecret(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)

	tests := []struct {
		name string
		key  string
		want int
	}{
		{name: "missing", key: "", want: http.StatusForbidden},
		{name: "wrong", key: "nope", want: http.StatusForbidden},
		{name: "right", key: secret, want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, path := range []string{"/reports/full", "/health", "/meta", "/metrics"} {
				rec := get(t, srv, path, tt.key)
				if rec.Code != tt.want {
					t.Errorf("GET %s = %d, want %d", path, rec.Code, tt.want)
				}
				if tt.want == http.StatusForbidden && rec.Body.String() != "{\"error\":\"Forbidden\"}\n" {
					t.Errorf("body = %q", rec.Body.String())
				}
			}
		})
	}
}

func TestSharedSecretUnconfiguredRefusesAll(t *testing.T) {
	srv := NewServer(Opts{Gatherer: prometheus.NewRegistry()})
	if rec := get(t, srv, "/health", ""); rec.Code != http.StatusForbidden {
		t.Errorf("GET /health = %d, want 403", rec.Code)
	}
}

func TestDeltaReportConsumesOnce(t *testing.T) {
	t0 := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	srv, store, clk := newTestServer(t, []model.Record{
		{CustomerID: "1", ModifiedAt: t0},
		{CustomerID: "2", ModifiedAt: t0.Add(time.Hour)},
	})

	first := get(t, srv, "/reports", secret)
	if first.Code != http.StatusOK {
		t.Fatalf("first call = %d", first.Code)
	}
	if got := decodeReport(t, first); got.Count != 2 || len(got.Records) != 2 {
		t.Errorf("first call = %+v, want both records", got)
	}
	if first.Header().Get("Last-Modified") == "" {
		t.Error("Last-Modified not set")
	}

	second := decodeReport(t, get(t, srv, "/reports", secret))
	if second.Count != 0 || len(second.Records) != 0 {
		t.Errorf("second call = %+v, want no records", second)
	}

	as, _ := store.LoadAccess(context.Background())
	if as.LastClientFetch == nil || !as.LastClientFetch.Equal(clk.t) {
		t.Errorf("cursor = %v, want %v", as.LastClientFetch, clk.t)
	}

	// A later pipeline write shows up on the next poll only.
	clk.t = clk.t.Add(time.Minute)
	recs, _, _ := store.LoadRecords(context.Background())
	recs[0].ModifiedAt = clk.t
	_ = store.SaveRecords(context.Background(), recs)
	clk.t = clk.t.Add(time.Minute)

	third := decodeReport(t, get(t, srv, "/reports", secret))
	if third.Count != 1 || third.Records[0].CustomerID != "1" {
		t.Errorf("third call = %+v, want record 1", third)
	}
}

func TestMockDoesNotMoveCursor(t *testing.T) {
	srv, store, _ := newTestServer(t, []model.Record{{CustomerID: "1", ModifiedAt: time.Unix(1, 0).UTC()}})

	delta := decodeReport(t, get(t, srv, "/reports?mock=true", secret))
	if delta.Count != 5 || delta.Records[0].CustomerID != "fake_1" {
		t.Errorf("mock delta = %d records", delta.Count)
	}
	full := decodeReport(t, get(t, srv, "/reports/full?mock=true", secret))
	if full.Count != 10 {
		t.Errorf("mock full = %d records, want 10", full.Count)
	}

	as, _ := store.LoadAccess(context.Background())
	if as.LastClientFetch != nil {
		t.Errorf("cursor moved by mock call: %v", as.LastClientFetch)
	}
	if real := decodeReport(t, get(t, srv, "/reports", secret)); real.Count != 1 {
		t.Errorf("real delta after mock = %d, want 1", real.Count)
	}
}

func TestFullReportDoesNotMoveCursor(t *testing.T) {
	srv, store, _ := newTestServer(t, []model.Record{{CustomerID: "1", ModifiedAt: time.Unix(1, 0).UTC()}})

	for range 2 {
		if got := decodeReport(t, get(t, srv, "/reports/full", secret)); got.Count != 1 {
			t.Errorf("full = %d records, want 1", got.Count)
		}
	}
	if as, _ := store.LoadAccess(context.Background()); as.LastClientFetch != nil {
		t.Error("full report moved the cursor")
	}
}

func TestHealthAndMeta(t *testing.T) {
	t0 := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	srv, store, clk := newTestServer(t, []model.Record{
		{CustomerID: "1", ModifiedAt: t0},
		{CustomerID: "2", ModifiedAt: t0.Add(time.Hour)},
	})
	_ = store.SavePullState(context.Background(), t0.Add(2*time.Hour))
	clk.t = clk.t.Add(90 * time.Second)

	var h healthResponse
	if err := json.Unmarshal(get(t, srv, "/health", secret).Body.Bytes(), &h); err != nil {
		t.Fatal(err)
	}
	if h.Status != "ok" || h.LastClientFetch != nil || h.LastBrokerUpdate == nil || !h.LastBrokerUpdate.Equal(t0.Add(2*time.Hour)) {
		t.Errorf("health = %+v", h)
	}

	var m metaResponse
	if err := json.Unmarshal(get(t, srv, "/meta", secret).Body.Bytes(), &m); err != nil {
		t.Fatal(err)
	}
	if m.Version != "1.0.0" || m.RecordCount != 2 || m.IntervalMinutes != 15 || m.AffiliateID != "77" || m.Timezone != "UTC" || m.Credentials != 3 {
		t.Errorf("meta = %+v", m)
	}
	if m.LastUpdateDetected == nil || !m.LastUpdateDetected.Equal(t0.Add(time.Hour)) {
		t.Errorf("lastUpdateDetected = %v", m.LastUpdateDetected)
	}
	if m.FileSizeKB <= 0 || m.UptimeSeconds != 90 {
		t.Errorf("fileSizeKB = %v, uptime = %d", m.FileSizeKB, m.UptimeSeconds)
	}
}

func TestDeltaReportWaitsForSnapshotSave(t *testing.T) {
	srv, store, clk := newTestServer(t, nil)
	ctx := context.Background()

	store.Lock()
	done := make(chan *httptest.ResponseRecorder, 1)
	go func() { done <- get(t, srv, "/reports", secret) }()

	select {
	case <-done:
		t.Fatal("delta served while the snapshot was being saved")
	case <-time.After(50 * time.Millisecond):
	}
	if err := store.SaveRecords(ctx, []model.Record{{CustomerID: "9", ModifiedAt: clk.t.Add(-time.Minute)}}); err != nil {
		t.Fatal(err)
	}
	store.Unlock()

	rec := <-done
	if got := decodeReport(t, rec); got.Count != 1 || got.Records[0].CustomerID != "9" {
		t.Errorf("delta = %+v, want the record saved under the lock", got)
	}
}

type brokenStore struct{ repository.SnapshotRepository }

func (brokenStore) Lock()   {}
func (brokenStore) Unlock() {}

func (brokenStore) LoadRecords(context.Context) ([]model.Record, int, error) {
	return nil, 0, context.DeadlineExceeded
}

func (brokenStore) LoadAccess(context.Context) (model.AccessState, error) {
	return model.AccessState{}, nil
}

func TestStoreFailureIs500(t *testing.T) {
	srv := NewServer(Opts{APIKey: secret, Store: brokenStore{}, Gatherer: prometheus.NewRegistry()})
	for _, path := range []string{"/reports", "/reports/full"} {
		rec := get(t, srv, path, secret)
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("GET %s = %d, want 500", path, rec.Code)
		}
		if rec.Body.String() != "{\"error\":\"Unable to load data\"}\n" {
			t.Errorf("GET %s body = %q", path, rec.Body.String())
		}
	}
}
