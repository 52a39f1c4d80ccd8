package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmehdipour/leadsync/internal/model"
	"github.com/jmoiron/sqlx"
)

// ChangeLogRepository appends every new or changed record of a pull run to
// ClickHouse, one row per change.
type ChangeLogRepository interface {
	InsertChanges(ctx context.Context, runID string, changed []model.Record) error
}

type chChangeLogRepository struct {
	ch *sqlx.DB // ClickHouse connection
}

func NewCHChangeLogRepository(ch *sqlx.DB) ChangeLogRepository {
	return &chChangeLogRepository{ch: ch}
}

// InsertChanges sends the rows as one batch: clickhouse-go buffers the
// prepared statement inside the transaction and flushes on commit.
func (r *chChangeLogRepository) InsertChanges(ctx context.Context, runID string, changed []model.Record) error {
	if len(changed) == 0 {
		return nil
	}

	tx, err := r.ch.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO leadsync.record_changes
		    (run_id, customer_id, registration_date, tracking_code, qualification_date,
		     lot_amount, first_deposit, net_deposit, commission, pl, withdrawals,
		     email_hash, modified_at)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	defer stmt.Close()

	for _, rec := range changed {
		if _, err := stmt.ExecContext(ctx,
			runID,
			rec.CustomerID,
			rec.RegistrationDate,
			deref(rec.TrackingCode),
			deref(rec.QualificationDate),
			rec.LotAmount,
			rec.FirstDeposit,
			rec.NetDeposit,
			rec.Commission,
			rec.PL,
			rec.Withdrawals,
			deref(rec.Email),
			rec.ModifiedAt.UTC().Truncate(time.Millisecond),
		); err != nil {
			return fmt.Errorf("append %s: %w", rec.CustomerID, err)
		}
	}

	return tx.Commit()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
