package jobs

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jmehdipour/leadsync/internal/board"
	"github.com/jmehdipour/leadsync/internal/model"
	"github.com/jmehdipour/leadsync/internal/util"
	"go.uber.org/zap"
)

const intakeStateKey = "intake-last-processed"

type intakeState struct {
	LastProcessedDate string `json:"lastProcessedDate"`
}

// Intake copies newly registered CRM leads onto the New Leads board, or the
// self-deposit board when the lead already tried to deposit.
type Intake struct {
	Boards        BoardAPI
	CRM           LeadSource
	Partners      AffiliateDirectory
	State         *State
	NewLeadsBoard string
	NCSelfBoard   string
	Logger        *zap.Logger
}

func (j *Intake) Name() string { return "intake" }

func (j *Intake) Run(ctx context.Context) error {
	log := j.Logger.With(zap.String("job", j.Name()))

	var st intakeState
	if err := j.State.Load(ctx, intakeStateKey, &st); err != nil {
		return err
	}

	leads, err := j.CRM.Leads(ctx, st.LastProcessedDate)
	if err != nil {
		return err
	}
	if len(leads) == 0 {
		log.Info("no new registrations since last check", zap.String("since", st.LastProcessedDate))
		return nil
	}

	newLeads, err := j.Boards.BoardState(ctx, j.NewLeadsBoard)
	if err != nil {
		return err
	}
	ncSelf, err := j.Boards.BoardState(ctx, j.NCSelfBoard)
	if err != nil {
		return err
	}

	existing := map[string]bool{}
	for _, b := range []*board.Board{newLeads, ncSelf} {
		for id := range b.ItemsBy(b.ColumnID("CRM Login")) {
			existing[id] = true
		}
	}

	affiliates, err := j.Partners.AffiliateList(ctx)
	if err != nil {
		log.Warn("affiliate list unavailable, labels fall back to ids", zap.Error(err))
		affiliates = map[string]string{}
	}

	var added []string
	firstFailed := ""
	for _, lead := range leads {
		userID := strconv.FormatInt(lead.ID, 10)
		if existing[userID] {
			log.Debug("skipping existing user", zap.String("user_id", userID))
			continue
		}

		target := newLeads
		if lead.Deposited() {
			target = ncSelf
		}

		label := j.affiliateLabel(ctx, userID, affiliates)
		_, err := j.Boards.CreateItem(ctx, target.ID, displayName(lead), leadColumns(lead, target, userID, label))
		countWrite(j.Name(), err)
		if err != nil {
			log.Error("failed to add user", zap.String("user_id", userID), zap.String("board", target.ID), zap.Error(err))
			if firstFailed == "" || laterDate(firstFailed, lead.RegistrationDate) {
				firstFailed = lead.RegistrationDate
			}
			continue
		}
		existing[userID] = true
		added = append(added, lead.RegistrationDate)
		log.Info("added user", zap.String("user_id", userID), zap.String("board", target.ID))
	}

	latest := nextCursor(st.LastProcessedDate, added, firstFailed)

	if latest != st.LastProcessedDate {
		if err := j.State.Save(ctx, intakeStateKey, intakeState{LastProcessedDate: latest}); err != nil {
			return fmt.Errorf("save intake state: %w", err)
		}
	}
	log.Info("intake finished", zap.Int("added", len(added)), zap.String("last_processed", latest))
	return nil
}

func (j *Intake) affiliateLabel(ctx context.Context, userID string, names map[string]string) string {
	id := j.Partners.Registration(ctx, userID).AffiliateID
	if id == "" {
		return ""
	}
	name, ok := names[id]
	if !ok || name == "" {
		name = "ID " + id
	}
	return fmt.Sprintf("%s (%s)", name, id)
}

// nextCursor returns the latest added registration date that stays strictly
// before firstFailed, so a lead whose create failed is fetched again next run.
func nextCursor(current string, added []string, firstFailed string) string {
	latest := current
	for _, d := range added {
		if !laterDate(d, latest) {
			continue
		}
		if firstFailed != "" && !laterDate(firstFailed, d) {
			continue
		}
		latest = d
	}
	return latest
}

// laterDate reports whether candidate is a registration date after current.
func laterDate(candidate, current string) bool {
	if candidate == "" {
		return false
	}
	if current == "" {
		return true
	}
	c, ok1 := model.ParseISODate(candidate)
	p, ok2 := model.ParseISODate(current)
	if !ok1 || !ok2 {
		return candidate > current
	}
	return c.After(p)
}

func leadColumns(l model.Lead, b *board.Board, userID, affiliateLabel string) map[string]any {
	cv := columnValues{}
	cv.set(b.ColumnID("CRM Login"), userID)
	cv.set(b.ColumnID("Name"), displayName(l))
	if l.Email != "" {
		cv.set(b.ColumnID("Email"), emailValue(l.Email))
	}
	if phone := util.NormalizePhone(l.Phone); phone != "" {
		country := l.Country
		if country == "" {
			country = "US"
		}
		cv.set(b.ColumnID("Phone"), map[string]string{"phone": phone, "countryShortName": country})
	}
	cv.set(b.ColumnID("Date of Birth"), dateValue(l.BirthDate))
	cv.set(b.ColumnID("Adress"), l.Address)
	cv.set(b.ColumnID("Country"), l.Country)
	cv.set(b.ColumnID("Registration Date"), dateValue(l.RegistrationDate))
	if kyc := b.Column("KYC %"); kyc != nil {
		cv.set(kyc.ID, map[string]int{"index": kycColumnIndex(l.KYCPercent.String(), kyc)})
	}
	cv.set(b.ColumnID("Total Declined"), numberText(l.TotalDeclined.Float()))
	cv.set(b.ColumnID("FTD AMOUNT/Challenge"), numberText(l.FTDAmount.Float()))
	cv.set(b.ColumnID("FTD/Challenge Date"), dateValue(l.FTDDate))
	cv.set(b.ColumnID("Affiliate Name"), affiliateLabel)
	if tried := b.Column("Tried Deposit"); tried != nil {
		cv.set(tried.ID, checkboxValue(tried.Type, bool(l.TriedDeposit)))
	}
	return cv
}

func checkboxValue(colType string, v bool) any {
	if colType == "checkbox" {
		if !v {
			return nil
		}
		return map[string]string{"checked": "true"}
	}
	return strconv.FormatBool(v)
}
