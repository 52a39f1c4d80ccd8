package report

import (
	"math"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/jmehdipour/leadsync/internal/model"
	"github.com/jmehdipour/leadsync/internal/util"
	"go.uber.org/zap"
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
		_, ok := model.ParseISODate(fl.Field().String())
		return ok
	})
	return v
}

// NetDeposit is the first deposit less whatever was withdrawn beyond the
// realized profit.
func NetDeposit(firstDeposit, withdrawals, pl float64) float64 {
	excess := math.Max(0, withdrawals-math.Max(0, pl))
	return firstDeposit - excess
}

// Normalize decodes and validates each report row on its own. Rows that do
// not decode or validate are logged and dropped.
func Normalize(v *validator.Validate, rows []json.RawMessage, log *zap.Logger) []model.RawRegistration {
	out := make([]model.RawRegistration, 0, len(rows))
	for i, raw := range rows {
		var r model.RawRegistration
		if err := json.Unmarshal(raw, &r); err != nil {
			log.Error("report row rejected", zap.Int("row", i), zap.String("reason", "decode"), zap.Error(err))
			continue
		}
		blankToNil(&r.FirstDepositDate)
		blankToNil(&r.QualificationDate)

		if err := v.Struct(r); err != nil {
			log.Error("report row rejected",
				zap.Int("row", i),
				zap.String("user_id", r.UserID.String()),
				zap.String("reason", "validation"),
				zap.Error(err),
			)
			continue
		}
		out = append(out, r)
	}
	return out
}

func blankToNil(s **string) {
	if *s != nil && strings.TrimSpace(**s) == "" {
		*s = nil
	}
}

// BuildRecord maps a validated row onto the stored shape. ModifiedAt is left
// for Merge to decide.
func BuildRecord(r model.RawRegistration, emailHash *string) model.Record {
	return model.Record{
		CustomerID:        r.UserID.String(),
		RegistrationDate:  r.RegistrationDate,
		TrackingCode:      r.Tracking(),
		QualificationDate: r.QualificationDate,
		LotAmount:         r.Lots.Float(),
		FirstDeposit:      r.FirstDeposit.Float(),
		FirstDepositDate:  r.FirstDepositDate,
		NetDeposit:        NetDeposit(r.FirstDeposit.Float(), r.Withdrawals.Float(), r.PL.Float()),
		CustomerNameHash:  util.Pseudonymize(r.CustomerName.String()),
		Commission:        r.Commissions.Float(),
		PL:                r.PL.Float(),
		Withdrawals:       r.Withdrawals.Float(),
		Email:             emailHash,
	}
}
