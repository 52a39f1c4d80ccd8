package report

import (
	"context"

	"github.com/jmehdipour/leadsync/internal/model"
	"github.com/jmehdipour/leadsync/internal/repository"
)

// ChangeSink receives the records a run created or changed, after the
// snapshot was saved.
type ChangeSink interface {
	Name() string
	Publish(ctx context.Context, runID string, changed []model.Record) error
}

// ChangeLogSink appends changes to the ClickHouse change log.
type ChangeLogSink struct {
	Repo repository.ChangeLogRepository
}

func (s ChangeLogSink) Name() string { return "clickhouse" }

func (s ChangeLogSink) Publish(ctx context.Context, runID string, changed []model.Record) error {
	return s.Repo.InsertChanges(ctx, runID, changed)
}
