package jobs

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/jmehdipour/leadsync/internal/board"
	"github.com/jmehdipour/leadsync/internal/model"
	"go.uber.org/zap"
)

const (
	epochSince      = "1970-01-01T00:00:00Z"
	lastCheckLayout = "2006-01-02T15:04:05.000Z"
)

type retentionState struct {
	LastCheck string `json:"lastCheck"`
}

func retentionKey(boardID string) string { return "retention-" + boardID }

// Retention refreshes deposit and withdrawal totals on the retention boards
// and logs activity onto each board's transaction board.
type Retention struct {
	Boards         BoardAPI
	CRM            LeadSource
	State          *State
	Targets        []Target
	ExcludedGroups []string
	Logger         *zap.Logger
	Now            func() time.Time
}

func (j *Retention) Name() string { return "retention" }

func (j *Retention) now() time.Time {
	if j.Now != nil {
		return j.Now().UTC()
	}
	return time.Now().UTC()
}

func (j *Retention) Run(ctx context.Context) error {
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

func (j *Retention) syncBoard(ctx context.Context, t Target) error {
	log := j.Logger.With(zap.String("job", j.Name()), zap.String("board", t.Name))

	var st retentionState
	if err := j.State.Load(ctx, retentionKey(t.BoardID), &st); err != nil {
		return err
	}
	started := j.now()

	b, err := j.Boards.BoardState(ctx, t.BoardID)
	if err != nil {
		return err
	}
	var txBoard *board.Board
	if t.TransactionBoardID != "" {
		if txBoard, err = j.Boards.BoardState(ctx, t.TransactionBoardID); err != nil {
			return err
		}
	}

	crmID := b.ColumnID("CRM Login")
	assignedID := b.ColumnID("Retention Assigned")

	var queries []model.TotalsQuery
	items := map[int64]board.Item{}
	for _, it := range b.Items {
		if slices.Contains(j.ExcludedGroups, it.GroupTitle()) {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimSpace(it.Text(crmID)), 10, 64)
		if err != nil {
			continue
		}
		since := epochSince
		switch {
		case st.LastCheck != "":
			since = st.LastCheck
		case it.Text(assignedID) != "":
			since = it.Text(assignedID) + "T00:00:00Z"
		}
		queries = append(queries, model.TotalsQuery{CRMID: id, Since: since})
		items[id] = it
	}
	log.Info("requesting totals", zap.Int("clients", len(queries)), zap.String("last_check", st.LastCheck))

	totals, err := j.CRM.Totals(ctx, queries)
	if err != nil {
		return err
	}

	for _, tot := range totals {
		it, ok := items[tot.UserID]
		if !ok {
			continue
		}
		j.updateTotals(ctx, log, b, it, tot)
		if txBoard != nil && (tot.TotalDeposit > 0 || tot.TotalWD > 0) {
			_, err := j.Boards.CreateItem(ctx, txBoard.ID, it.Name, transactionColumns(txBoard, tot, started))
			countWrite(j.Name(), err)
			if err != nil {
				log.Error("failed to create transaction item", zap.Int64("crm_id", tot.UserID), zap.Error(err))
			}
		}
	}

	next := retentionState{LastCheck: started.Format(lastCheckLayout)}
	if err := j.State.Save(ctx, retentionKey(t.BoardID), next); err != nil {
		return fmt.Errorf("save retention state: %w", err)
	}
	log.Info("board synced", zap.Int("totals", len(totals)), zap.String("next_since", next.LastCheck))
	return nil
}

func (j *Retention) updateTotals(ctx context.Context, log *zap.Logger, b *board.Board, it board.Item, tot model.Totals) {
	updates := []struct {
		title string
		value model.Number
	}{
		{"Total Deposit", tot.TotalDeposit},
		{"Total WD", tot.TotalWD},
		{"Total Deposit Declined", tot.TotalDepositDeclined},
		{"Total WD Declined", tot.TotalWDDeclined},
	}
	for _, u := range updates {
		colID := b.ColumnID(u.title)
		if colID == "" {
			continue
		}
		err := j.Boards.ChangeColumnValue(ctx, b.ID, it.ID, colID, numberText(u.value.Float()))
		countWrite(j.Name(), err)
		if err != nil {
			log.Error("failed to update column", zap.Int64("crm_id", tot.UserID), zap.String("column", u.title), zap.Error(err))
		}
	}
}

func transactionColumns(b *board.Board, tot model.Totals, at time.Time) map[string]any {
	cv := columnValues{}
	cv.set(b.ColumnID("Login CRM"), strconv.FormatInt(tot.UserID, 10))
	cv.set(b.ColumnID("Deposit Amount"), fmt.Sprintf("%.2f", tot.TotalDeposit.Float()))
	cv.set(b.ColumnID("Withdrawal Amount"), fmt.Sprintf("%.2f", tot.TotalWD.Float()))
	cv.set(b.ColumnID("Transaction Date"), map[string]string{"date": at.Format("2006-01-02")})
	return cv
}
