package enrich

import (
	"context"
	"sync/atomic"

	"github.com/jmehdipour/leadsync/internal/metrics"
	"github.com/jmehdipour/leadsync/internal/util"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Resolver is satisfied by *Fetcher.
type Resolver interface {
	Resolve(ctx context.Context, id string) (string, bool, error)
}

// Stats summarizes one Enrich call.
type Stats struct {
	Total    int // distinct identifiers
	Cached   int
	Resolved int
	Missing  int
	Failed   int
}

type Pipeline struct {
	resolver      Resolver
	cache         Cache
	progressEvery int
	log           *zap.Logger
}

func NewPipeline(resolver Resolver, cache Cache, progressEvery int, log *zap.Logger) *Pipeline {
	if progressEvery <= 0 {
		progressEvery = 10
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{resolver: resolver, cache: cache, progressEvery: progressEvery, log: log}
}

type outcome struct {
	email string
	found bool
	err   error
}

// Enrich returns the email hash of every identifier, nil where none could be
// resolved. Cache hits cost no request; each distinct uncached identifier is
// resolved once, all of them concurrently.
func (p *Pipeline) Enrich(ctx context.Context, ids []string) (map[string]*string, Stats) {
	hashes := make(map[string]*string, len(ids))
	var pending []string

	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, seen := hashes[id]; seen {
			continue
		}
		hashes[id] = nil

		h, ok, err := p.cache.Get(ctx, id)
		if err != nil {
			p.log.Warn("enrichment cache read failed", zap.String("identifier", id), zap.Error(err))
		}
		if ok {
			metrics.EmailCacheTotal.WithLabelValues("hit").Inc()
			hashes[id] = &h
			continue
		}
		metrics.EmailCacheTotal.WithLabelValues("miss").Inc()
		pending = append(pending, id)
	}

	st := Stats{Total: len(hashes), Cached: len(hashes) - len(pending)}
	p.log.Info("enrichment started", zap.Int("identifiers", st.Total), zap.Int("cached", st.Cached), zap.Int("to_fetch", len(pending)))

	results := make([]outcome, len(pending))
	var (
		g    errgroup.Group
		done atomic.Int64
	)
	for i, id := range pending {
		g.Go(func() error {
			email, found, err := p.resolver.Resolve(ctx, id)
			results[i] = outcome{email: email, found: found, err: err}

			if n := done.Add(1); n%int64(p.progressEvery) == 0 {
				p.log.Info("enrichment progress", zap.Int64("done", n), zap.Int("total", len(pending)))
			}
			return nil
		})
	}
	_ = g.Wait()

	for i, id := range pending {
		res := results[i]
		switch {
		case res.err != nil:
			st.Failed++
			p.log.Warn("email resolution abandoned", zap.String("identifier", id), zap.Error(res.err))
		case !res.found:
			st.Missing++
		default:
			st.Resolved++
			h := util.Pseudonymize(res.email)
			hashes[id] = &h
			if err := p.cache.Put(ctx, id, h); err != nil {
				p.log.Warn("enrichment cache write failed", zap.String("identifier", id), zap.Error(err))
			}
		}
	}

	p.log.Info("enrichment finished",
		zap.Int("identifiers", st.Total),
		zap.Int("cached", st.Cached),
		zap.Int("resolved", st.Resolved),
		zap.Int("missing", st.Missing),
		zap.Int("failed", st.Failed),
	)
	return hashes, st
}
