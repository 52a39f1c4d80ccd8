package affiliate

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jmehdipour/leadsync/internal/model"
	"github.com/jmehdipour/leadsync/internal/upstream"
	"go.uber.org/zap"
)

type PartnersOpts struct {
	BaseURL      string
	Username     string
	Password     string
	UserIDPrefix string
	Timeout      time.Duration
	Breaker      *upstream.Breaker
	Logger       *zap.Logger
}

// Partners is the partner API: affiliate directory and per-user
// registration lookups.
type Partners struct {
	c        *upstream.Client
	username string
	password string
	prefix   string
	log      *zap.Logger
}

func NewPartners(opts PartnersOpts) *Partners {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Partners{
		c: upstream.New(upstream.Opts{
			Name:    "partners",
			BaseURL: opts.BaseURL,
			Timeout: opts.Timeout,
			Breaker: opts.Breaker,
		}),
		username: opts.Username,
		password: opts.Password,
		prefix:   opts.UserIDPrefix,
		log:      opts.Logger,
	}
}

func (p *Partners) query(command string) url.Values {
	q := url.Values{}
	q.Set("api_username", p.username)
	q.Set("api_password", p.password)
	q.Set("command", command)
	return q
}

type affiliateEntry struct {
	AffiliateID model.FlexString `json:"AffiliateID"`
	FirstName   string           `json:"FirstName"`
	LastName    string           `json:"LastName"`
}

// AffiliateList maps affiliate id to "First Last".
func (p *Partners) AffiliateList(ctx context.Context) (map[string]string, error) {
	q := p.query("affiliatelist")
	q.Set("json", "1")

	var list []affiliateEntry
	if err := p.c.GetJSON(ctx, "", q, &list); err != nil {
		return nil, fmt.Errorf("affiliate list: %w", err)
	}
	out := make(map[string]string, len(list))
	for _, a := range list {
		out[a.AffiliateID.String()] = strings.TrimSpace(a.FirstName + " " + a.LastName)
	}
	return out, nil
}

// RegistrationRow is the part of a partner registration we read.
type RegistrationRow struct {
	AffiliateID string `xml:"affiliateID"`
	UserID      string `xml:"userID"`
	Country     string `xml:"country"`
	Registered  string `xml:"registrationDate"`
}

type registrationDoc struct {
	Row *RegistrationRow `xml:"row"`
}

// Registration looks up one user. Lookups never fail the caller: an empty
// answer or any error yields an empty row, and errors are logged.
func (p *Partners) Registration(ctx context.Context, userID string) RegistrationRow {
	q := p.query("registrations")
	q.Set("userid", p.prefix+userID)

	body, err := p.c.Get(ctx, "", q)
	if err != nil {
		p.log.Error("registration lookup failed", zap.String("user_id", userID), zap.Error(err))
		return RegistrationRow{}
	}
	row, err := parseRegistration(body)
	if err != nil {
		p.log.Error("registration decode failed", zap.String("user_id", userID), zap.Error(err))
		return RegistrationRow{}
	}
	return row
}

// parseRegistration accepts either a bare <row> or a document wrapping one.
func parseRegistration(body []byte) (RegistrationRow, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || string(trimmed) == "<></>" {
		return RegistrationRow{}, nil
	}

	var doc registrationDoc
	if err := xml.Unmarshal(trimmed, &doc); err != nil {
		return RegistrationRow{}, err
	}
	if doc.Row != nil {
		return *doc.Row, nil
	}

	var row RegistrationRow
	if err := xml.Unmarshal(trimmed, &row); err != nil {
		return RegistrationRow{}, err
	}
	return row, nil
}
