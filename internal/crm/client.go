package crm

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jmehdipour/leadsync/internal/model"
	"github.com/jmehdipour/leadsync/internal/upstream"
)

type Opts struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Breaker *upstream.Breaker
}

// Client reads the backend CRM export API. Every endpoint is read-only.
type Client struct {
	c *upstream.Client
}

func New(opts Opts) *Client {
	return &Client{c: upstream.New(upstream.Opts{
		Name:    "crm",
		BaseURL: opts.BaseURL,
		Timeout: opts.Timeout,
		Headers: map[string]string{"X-API-KEY": opts.APIKey},
		Breaker: opts.Breaker,
	})}
}

// Leads returns the leads registered after since. An empty since returns
// every lead.
func (c *Client) Leads(ctx context.Context, since string) ([]model.Lead, error) {
	var q url.Values
	if since != "" {
		q = url.Values{"since": {since}}
	}
	var out []model.Lead
	if err := c.c.GetJSON(ctx, "all", q, &out); err != nil {
		return nil, fmt.Errorf("crm leads: %w", err)
	}
	return out, nil
}

func (c *Client) LeadsByIDs(ctx context.Context, ids []int64) ([]model.Lead, error) {
	var out []model.Lead
	if err := c.c.PostJSON(ctx, "by-ids", ids, &out); err != nil {
		return nil, fmt.Errorf("crm leads by ids: %w", err)
	}
	return out, nil
}

// TransactionsByUserIDs returns the first-deposit transaction of each user
// that has one.
func (c *Client) TransactionsByUserIDs(ctx context.Context, ids []int64) ([]model.Transaction, error) {
	var out []model.Transaction
	if err := c.c.PostJSON(ctx, "transactions-by-user-ids", ids, &out); err != nil {
		return nil, fmt.Errorf("crm transactions: %w", err)
	}
	return out, nil
}

// Totals aggregates deposits and withdrawals per client since each client's
// own point in time.
func (c *Client) Totals(ctx context.Context, clients []model.TotalsQuery) ([]model.Totals, error) {
	if len(clients) == 0 {
		return nil, nil
	}
	in := struct {
		Clients []model.TotalsQuery `json:"clients"`
	}{Clients: clients}

	var out []model.Totals
	if err := c.c.PostJSON(ctx, "totals", in, &out); err != nil {
		return nil, fmt.Errorf("crm totals: %w", err)
	}
	return out, nil
}
