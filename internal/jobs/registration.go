package jobs

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"
)

// Registration refreshes KYC, status, declined and FTD columns of every
// item on the configured boards from the CRM.
type Registration struct {
	Boards  BoardAPI
	CRM     LeadSource
	Targets []Target
	Logger  *zap.Logger
}

func (j *Registration) Name() string { return "registration" }

func (j *Registration) Run(ctx context.Context) error {
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

func (j *Registration) syncBoard(ctx context.Context, t Target) error {
	log := j.Logger.With(zap.String("job", j.Name()), zap.String("board", t.Name))

	b, err := j.Boards.BoardState(ctx, t.BoardID)
	if err != nil {
		return err
	}
	crmCol := b.ColumnFold("crm login")
	if crmCol == nil {
		log.Warn("CRM Login column not found")
		return nil
	}

	items := b.ItemsBy(crmCol.ID)
	ids := numericIDs(items)
	if len(ids) == 0 {
		log.Info("no CRM ids on board")
		return nil
	}

	leads, err := j.CRM.LeadsByIDs(ctx, ids)
	if err != nil {
		return err
	}

	kycCol := b.ColumnContaining("kyc")
	statusCol := b.ColumnContaining("status")
	declinedCol := b.ColumnContaining("declined")
	ftdCol := b.ColumnContaining("ftd amount")

	updated := 0
	for _, lead := range leads {
		item, ok := items[strconv.FormatInt(lead.ID, 10)]
		if !ok {
			continue
		}

		cv := columnValues{}
		kyc := lead.KYCPercent.String()
		if kycCol != nil {
			cv.set(kycCol.ID, map[string]int{"index": kycUpdateIndex(kyc)})
		}
		if declinedCol != nil {
			cv.set(declinedCol.ID, lead.TotalDeclined.Float())
		}
		if ftdCol != nil {
			cv.set(ftdCol.ID, lead.FTDAmount.Float())
		}
		if statusCol != nil {
			if idx, ok := overallStatusIndex(kyc, lead.Status != ""); ok {
				cv.set(statusCol.ID, map[string]int{"index": idx})
			}
		}
		if len(cv) == 0 {
			continue
		}

		err := j.Boards.ChangeColumnValues(ctx, t.BoardID, item.ID, cv)
		countWrite(j.Name(), err)
		if err != nil {
			log.Error("failed to update item", zap.Int64("crm_id", lead.ID), zap.String("item_id", item.ID), zap.Error(err))
			continue
		}
		updated++
	}
	log.Info("board synced", zap.Int("items", len(items)), zap.Int("updated", updated))
	return nil
}
