// Package jobs keeps the sales boards in step with the CRM: intake of new
// leads, registration status, retention totals and first deposits.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/jmehdipour/leadsync/internal/affiliate"
	"github.com/jmehdipour/leadsync/internal/board"
	"github.com/jmehdipour/leadsync/internal/crm"
	"github.com/jmehdipour/leadsync/internal/metrics"
	"github.com/jmehdipour/leadsync/internal/model"
	"github.com/jmehdipour/leadsync/internal/repository"
)

// BoardAPI is the part of the board client the jobs use.
type BoardAPI interface {
	BoardState(ctx context.Context, boardID string) (*board.Board, error)
	CreateItem(ctx context.Context, boardID, name string, values map[string]any) (string, error)
	ChangeColumnValues(ctx context.Context, boardID, itemID string, values map[string]any) error
	ChangeColumnValue(ctx context.Context, boardID, itemID, columnID, value string) error
}

// LeadSource is the CRM export API.
type LeadSource interface {
	Leads(ctx context.Context, since string) ([]model.Lead, error)
	LeadsByIDs(ctx context.Context, ids []int64) ([]model.Lead, error)
	TransactionsByUserIDs(ctx context.Context, ids []int64) ([]model.Transaction, error)
	Totals(ctx context.Context, clients []model.TotalsQuery) ([]model.Totals, error)
}

// AffiliateDirectory is the partner API.
type AffiliateDirectory interface {
	AffiliateList(ctx context.Context) (map[string]string, error)
	Registration(ctx context.Context, userID string) affiliate.RegistrationRow
}

var (
	_ BoardAPI           = (*board.Client)(nil)
	_ LeadSource         = (*crm.Client)(nil)
	_ AffiliateDirectory = (*affiliate.Partners)(nil)
)

// Target is one configured board.
type Target struct {
	Name               string
	BoardID            string
	TransactionBoardID string
}

// State persists small per-job JSON documents in the snapshot store.
type State struct {
	kv repository.KV
}

func NewState(kv repository.KV) *State { return &State{kv: kv} }

// Load decodes key into out; a missing key leaves out untouched.
func (s *State) Load(ctx context.Context, key string, out any) error {
	b, err := s.kv.Get(ctx, key)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load %s: %w", key, err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (s *State) Save(ctx context.Context, key string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return s.kv.Put(ctx, key, b)
}

func countWrite(job string, err error) {
	result := "ok"
	if err != nil {
		result = "failed"
	}
	metrics.BoardWritesTotal.WithLabelValues(job, result).Inc()
}

// numericIDs keeps the keys that parse as CRM ids.
func numericIDs[V any](m map[string]V) []int64 {
	out := make([]int64, 0, len(m))
	for k := range m {
		if id, err := strconv.ParseInt(k, 10, 64); err == nil {
			out = append(out, id)
		}
	}
	return out
}
