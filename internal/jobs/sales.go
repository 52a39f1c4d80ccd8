package jobs

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"
)

// Sales writes each client's first deposit amount onto the sales boards.
type Sales struct {
	Boards  BoardAPI
	CRM     LeadSource
	Targets []Target
	Logger  *zap.Logger
}

func (j *Sales) Name() string { return "sales" }

func (j *Sales) Run(ctx context.Context) error {
	var errs []error
	for _, t := range j.Targets {
		if err := j.syncBoard(ctx, t); err != nil {
			j.Logger.Error("board sync failed", zap.String("job", j.Name()), zap.String("board", t.Name), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", t.Name, err))
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return errors.Join(errs...)
}

func (j *Sales) syncBoard(ctx context.Context, t Target) error {
	log := j.Logger.With(zap.String("job", j.Name()), zap.String("board", t.Name))

	b, err := j.Boards.BoardState(ctx, t.BoardID)
	if err != nil {
		return err
	}
	crmCol := b.ColumnFold("crm login")
	ftdCol := b.ColumnFold("ftd amount/challenge")
	if crmCol == nil || ftdCol == nil {
		return fmt.Errorf("board %s is missing the CRM Login or FTD AMOUNT/Challenge column", t.BoardID)
	}

	items := b.ItemsBy(crmCol.ID)
	ids := numericIDs(items)
	if len(ids) == 0 {
		return nil
	}

	txs, err := j.CRM.TransactionsByUserIDs(ctx, ids)
	if err != nil {
		return err
	}

	updated := 0
	for _, tx := range txs {
		if tx.User == nil || tx.User.ID == 0 {
			continue
		}
		item, ok := items[strconv.FormatInt(tx.User.ID, 10)]
		if !ok {
			continue
		}
		err := j.Boards.ChangeColumnValue(ctx, t.BoardID, item.ID, ftdCol.ID, numberText(tx.Amount.Float()))
		countWrite(j.Name(), err)
		if err != nil {
			log.Error("failed to update FTD amount", zap.Int64("crm_id", tx.User.ID), zap.Error(err))
			continue
		}
		updated++
	}
	log.Info("board synced", zap.Int("transactions", len(txs)), zap.Int("updated", updated))
	return nil
}
