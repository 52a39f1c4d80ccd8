package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/jmehdipour/leadsync/internal/enrich"
	"github.com/jmehdipour/leadsync/internal/metrics"
	"github.com/jmehdipour/leadsync/internal/model"
	"github.com/jmehdipour/leadsync/internal/repository"
	"github.com/jmehdipour/leadsync/internal/util"
	"go.uber.org/zap"
)

var ReportStart = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

// Source is the affiliate admin API.
type Source interface {
	Authenticate(ctx context.Context) (string, error)
	RegistrationReport(ctx context.Context, token string, start, end time.Time) ([]json.RawMessage, error)
}

type Opts struct {
	Source   Source
	Store    repository.SnapshotRepository
	Resolver enrich.Resolver
	// Cache is consulted after the hashes already in the snapshot. Nil means
	// the snapshot is the only cache.
	Cache         enrich.Cache
	Sinks         []ChangeSink
	ProgressEvery int
	Logger        *zap.Logger
	Now           func() time.Time
}

// Service runs the pull pipeline: report, validation, enrichment, merge and
// persistence.
type Service struct {
	src           Source
	store         repository.SnapshotRepository
	resolver      enrich.Resolver
	cache         enrich.Cache
	sinks         []ChangeSink
	progressEvery int
	validate      *validator.Validate
	log           *zap.Logger
	now           func() time.Time
}

func New(opts Opts) *Service {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		src:           opts.Source,
		store:         opts.Store,
		resolver:      opts.Resolver,
		cache:         opts.Cache,
		sinks:         opts.Sinks,
		progressEvery: opts.ProgressEvery,
		validate:      newValidator(),
		log:           opts.Logger,
		now:           opts.Now,
	}
}

// Result describes one completed run.
type Result struct {
	RunID   string
	Rows    int
	Valid   int
	Records int
	Changed int
	Enrich  enrich.Stats
}

// FetchAndStore performs one full pull. Any error before the snapshot is
// saved leaves the stored state untouched.
func (s *Service) FetchAndStore(ctx context.Context) (Result, error) {
	res := Result{RunID: util.NewRunID()}
	log := s.log.With(zap.String("run_id", res.RunID))
	now := s.now().UTC()

	token, err := s.src.Authenticate(ctx)
	if err != nil {
		return res, err
	}
	rows, err := s.src.RegistrationReport(ctx, token, ReportStart, now)
	if err != nil {
		return res, err
	}
	res.Rows = len(rows)

	valid := Normalize(s.validate, rows, log)
	res.Valid = len(valid)

	existing, _, err := s.store.LoadRecords(ctx)
	if err != nil {
		return res, fmt.Errorf("load snapshot: %w", err)
	}

	ids := make([]string, len(valid))
	for i, r := range valid {
		ids[i] = r.UserID.String()
	}
	hashes, st := enrich.NewPipeline(s.resolver, s.runCache(existing), s.progressEvery, log).Enrich(ctx, ids)
	res.Enrich = st
	if err := ctx.Err(); err != nil {
		return res, err
	}

	incoming := make([]model.Record, len(valid))
	for i, r := range valid {
		incoming[i] = BuildRecord(r, hashes[ids[i]])
	}

	changed, err := s.commit(ctx, existing, incoming, &res)
	if err != nil {
		return res, err
	}
	metrics.RecordsChangedTotal.Add(float64(len(changed)))

	s.publish(ctx, log, res.RunID, changed)

	log.Info("pull finished",
		zap.Int("rows", res.Rows),
		zap.Int("valid", res.Valid),
		zap.Int("records", res.Records),
		zap.Int("changed", res.Changed),
	)
	return res, nil
}

// commit merges and saves the snapshot while holding the store lock, so a
// delta read cannot move the access cursor between stamping and saving. The
// stamp is taken after enrichment and always lands after the cursor.
func (s *Service) commit(ctx context.Context, existing, incoming []model.Record, res *Result) ([]model.Record, error) {
	s.store.Lock()
	defer s.store.Unlock()

	access, err := s.store.LoadAccess(ctx)
	if err != nil {
		return nil, fmt.Errorf("load access state: %w", err)
	}
	stamp := s.now().UTC().Truncate(time.Millisecond)
	if c := access.LastClientFetch; c != nil && !stamp.After(*c) {
		stamp = c.UTC().Truncate(time.Millisecond).Add(time.Millisecond)
	}

	merged, changed := Merge(existing, incoming, stamp)
	res.Records, res.Changed = len(merged), len(changed)

	if err := s.store.SaveRecords(ctx, merged); err != nil {
		return nil, fmt.Errorf("save snapshot: %w", err)
	}
	if err := s.store.SavePullState(ctx, stamp); err != nil {
		return nil, fmt.Errorf("save pull state: %w", err)
	}
	return changed, nil
}

func (s *Service) runCache(existing []model.Record) enrich.Cache {
	seeded := enrich.NewMemoryCache()
	seeded.Seed(existing)
	if s.cache == nil {
		return seeded
	}
	return enrich.Layered{seeded, s.cache}
}

func (s *Service) publish(ctx context.Context, log *zap.Logger, runID string, changed []model.Record) {
	if len(changed) == 0 {
		return
	}
	for _, sink := range s.sinks {
		if err := sink.Publish(ctx, runID, changed); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			log.Warn("change sink failed", zap.String("sink", sink.Name()), zap.Int("changed", len(changed)), zap.Error(err))
		}
	}
}
