package report

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/jmehdipour/leadsync/internal/model"
	"github.com/jmehdipour/leadsync/internal/util"
)

func round2(f float64) float64 { return math.Round(f*100) / 100 }

// Placeholder returns n generated records with ids fake_1..fake_n, all
// stamped with now. Amounts are random.
func Placeholder(n int, now time.Time) []model.Record {
	now = now.UTC().Truncate(time.Millisecond)
	ts := now.Format(time.RFC3339Nano)

	out := make([]model.Record, 0, n)
	for i := 1; i <= n; i++ {
		tracking := fmt.Sprintf("TRACK%d", i)
		email := util.Pseudonymize(fmt.Sprintf("test.user%d@example.com", i))
		qd, fdd := ts, ts
		out = append(out, model.Record{
			CustomerID:        fmt.Sprintf("fake_%d", i),
			RegistrationDate:  ts,
			TrackingCode:      &tracking,
			QualificationDate: &qd,
			LotAmount:         round2(rand.Float64() * 100),
			FirstDeposit:      round2(rand.Float64() * 1000),
			FirstDepositDate:  &fdd,
			NetDeposit:        round2(rand.Float64() * 500),
			CustomerNameHash:  util.Pseudonymize(fmt.Sprintf("Customer_%d", i)),
			Commission:        round2(rand.Float64() * 100),
			Email:             &email,
			ModifiedAt:        now,
		})
	}
	return out
}
