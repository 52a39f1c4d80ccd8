package report

import (
	"time"

	"github.com/jmehdipour/leadsync/internal/model"
)

// changed reports whether any field that drives modifiedAt differs.
func changed(prev, next model.Record) bool {
	return prev.PL != next.PL ||
		prev.Withdrawals != next.Withdrawals ||
		prev.Commission != next.Commission ||
		!equalStr(prev.QualificationDate, next.QualificationDate) ||
		prev.LotAmount != next.LotAmount
}

func equalStr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Merge folds incoming into existing and returns the new snapshot together
// with the records whose modifiedAt was set to now.
//
// The result is the union of both sets keyed by CustomerID: prior order is
// kept and new identifiers are appended in incoming order. Nothing is
// removed. An incoming record replaces its predecessor, but inherits the
// prior modifiedAt unless it is new or a tracked field moved, and inherits
// the prior email hash when it carries none.
func Merge(existing, incoming []model.Record, now time.Time) (merged, changedRecs []model.Record) {
	now = now.UTC().Truncate(time.Millisecond)

	merged = make([]model.Record, len(existing), len(existing)+len(incoming))
	copy(merged, existing)

	pos := make(map[string]int, len(existing)+len(incoming))
	for i, r := range merged {
		pos[r.CustomerID] = i
	}

	for _, next := range incoming {
		i, ok := pos[next.CustomerID]
		if !ok {
			next.ModifiedAt = now
			pos[next.CustomerID] = len(merged)
			merged = append(merged, next)
			changedRecs = append(changedRecs, next)
			continue
		}

		prev := merged[i]
		if next.Email == nil {
			next.Email = prev.Email
		}
		if changed(prev, next) {
			next.ModifiedAt = now
			changedRecs = append(changedRecs, next)
		} else {
			next.ModifiedAt = prev.ModifiedAt
		}
		merged[i] = next
	}
	return merged, changedRecs
}
