package affiliate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	"github.com/jmehdipour/leadsync/internal/upstream"
)

// ReportDateLayout is the date format the registration report expects.
const ReportDateLayout = "01/02/2006"

var ErrNoToken = errors.New("affiliate: authentication returned no token")

// AdminOpts configures the affiliate admin reporting API.
type AdminOpts struct {
	BaseURL     string
	AdminURL    string
	Username    string
	Password    string
	AffiliateID string
	Timeout     time.Duration
	Breaker     *upstream.Breaker
}

// Admin talks to the affiliate admin API: token authentication and the
// registration report.
type Admin struct {
	c           *upstream.Client
	adminURL    string
	username    string
	password    string
	affiliateID string
}

func NewAdmin(opts AdminOpts) *Admin {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Admin{
		c: upstream.New(upstream.Opts{
			Name:    "affiliate-admin",
			BaseURL: opts.BaseURL,
			Timeout: opts.Timeout,
			Headers: map[string]string{"admin_url": opts.AdminURL},
			Breaker: opts.Breaker,
		}),
		adminURL:    opts.AdminURL,
		username:    opts.Username,
		password:    opts.Password,
		affiliateID: opts.AffiliateID,
	}
}

func (a *Admin) AffiliateID() string { return a.affiliateID }

// Authenticate exchanges the configured credentials for a bearer token.
func (a *Admin) Authenticate(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("user", a.username)
	form.Set("url", a.adminURL)
	form.Set("pass", a.password)

	var out struct {
		Token string `json:"token"`
	}
	query := url.Values{"command": {"authenticate"}}
	if err := a.c.PostForm(ctx, "", query, form, nil, &out); err != nil {
		return "", fmt.Errorf("authenticate: %w", err)
	}
	if out.Token == "" {
		return "", ErrNoToken
	}
	return out.Token, nil
}

// RegistrationReport returns the raw report rows registered between start
// and end. Rows are left undecoded so one malformed row cannot fail the
// whole report.
func (a *Admin) RegistrationReport(ctx context.Context, token string, start, end time.Time) ([]json.RawMessage, error) {
	q := url.Values{}
	q.Set("command", "processregreport")
	q.Set("daterange", "registrationdate")
	q.Set("startDate", start.Format(ReportDateLayout))
	q.Set("endDate", end.Format(ReportDateLayout))
	q.Set("BTA", "true")
	q.Set("TrackingCode", "true")
	q.Set("QualificationDate", "true")
	q.Set("json", "1")
	if a.affiliateID != "" {
		q.Set("filter-affiliate", a.affiliateID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.c.URL("", q), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	body, err := a.c.Do(req)
	if err != nil {
		return nil, fmt.Errorf("registration report: %w", err)
	}

	var out struct {
		Registrations []json.RawMessage `json:"Registrations"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("registration report: decode: %w", err)
	}
	return out.Registrations, nil
}
