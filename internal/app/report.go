package app

import (
	"errors"
	"strings"

	"github.com/jmehdipour/leadsync/internal/affiliate"
	"github.com/jmehdipour/leadsync/internal/config"
	"github.com/jmehdipour/leadsync/internal/db"
	"github.com/jmehdipour/leadsync/internal/dispatcher"
	"github.com/jmehdipour/leadsync/internal/enrich"
	"github.com/jmehdipour/leadsync/internal/kafka"
	"github.com/jmehdipour/leadsync/internal/repository"
	"github.com/jmehdipour/leadsync/internal/service/report"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// LookupURL is enrich.lookup_url, or the CRM email endpoint when unset.
func LookupURL(cfg config.Config) string {
	if cfg.Enrich.LookupURL != "" {
		return cfg.Enrich.LookupURL
	}
	return strings.TrimRight(cfg.CRM.BaseURL, "/") + "/email-by-id"
}

// ReportService wires the pull pipeline. The returned cleanup closes the
// optional sinks.
func ReportService(cfg config.Config, store repository.SnapshotRepository, rdb *redis.Client, log *zap.Logger) (*report.Service, func(), error) {
	admin := affiliate.NewAdmin(affiliate.AdminOpts{
		BaseURL:     cfg.Affiliate.BaseURL,
		AdminURL:    cfg.Affiliate.AdminURL,
		Username:    cfg.Affiliate.Username,
		Password:    cfg.Affiliate.Password,
		AffiliateID: cfg.Affiliate.AffiliateID,
		Timeout:     cfg.Affiliate.Timeout,
		Breaker:     Breaker(cfg),
	})

	pool, err := dispatcher.NewPool(cfg.Enrich.Credentials, dispatcher.PoolOpts{
		Capacity: cfg.Enrich.Capacity,
		Window:   cfg.Enrich.Window,
	})
	switch {
	case errors.Is(err, dispatcher.ErrNoCredentials):
		log.Warn("no lookup credentials configured, emails will not be enriched")
	case err != nil:
		return nil, nil, err
	}

	resolver := enrich.NewFetcher(pool, enrich.NewHTTPLookup(LookupURL(cfg), cfg.CRM.APIKey, cfg.Enrich.Timeout), enrich.FetcherOpts{
		Policy: enrich.CooldownPolicy{
			Base:       cfg.Enrich.Cooldown,
			Multiplier: cfg.Enrich.CooldownMultiplier,
			Max:        cfg.Enrich.MaxCooldown,
			Jitter:     cfg.Enrich.CooldownJitter,
			MaxRetries: cfg.Enrich.MaxCooldownRetries,
		},
		AcquireTimeout: cfg.Enrich.AcquireTimeout,
		Logger:         log.Named("enrich"),
	})

	var cache enrich.Cache
	if cfg.Enrich.Cache == "redis" {
		if rdb == nil {
			return nil, nil, errors.New("enrich.cache=redis needs redis.addr")
		}
		cache = enrich.NewRedisCache(rdb, cfg.Enrich.CacheKey)
	}

	var (
		sinks   []report.ChangeSink
		closers []func() error
	)
	if cfg.ClickHouse.DSN != "" {
		ch, err := db.OpenClickHouse(cfg.ClickHouse)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, ch.Close)
		sinks = append(sinks, report.ChangeLogSink{Repo: repository.NewCHChangeLogRepository(ch)})
	}
	if len(cfg.Kafka.Brokers) > 0 {
		pub := kafka.NewPublisherFromConfig(kafka.Config{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			BatchTimeout: cfg.Kafka.BatchTimeout,
		})
		closers = append(closers, pub.Close)
		sinks = append(sinks, pub)
	}
	cleanup := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				log.Warn("close sink", zap.Error(err))
			}
		}
	}

	svc := report.New(report.Opts{
		Source:        admin,
		Store:         store,
		Resolver:      resolver,
		Cache:         cache,
		Sinks:         sinks,
		ProgressEvery: cfg.Enrich.ProgressEvery,
		Logger:        log.Named("report"),
	})
	return svc, cleanup, nil
}
