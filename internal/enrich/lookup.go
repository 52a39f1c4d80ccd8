// Package enrich resolves customer identifiers to email addresses through the
// CRM lookup endpoint, rotating over rate limited credentials, and attaches
// the pseudonymized result to report records.
package enrich

import (
	"context"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/goccy/go-json"
	"github.com/jmehdipour/leadsync/internal/dispatcher"
	"github.com/jmehdipour/leadsync/internal/upstream"
)

// Outcome classifies one lookup attempt against one credential.
type Outcome int

const (
	Found       Outcome = iota // 2xx with an email
	Absent                     // 2xx without a record
	RateLimited                // 429, or no local permit in time
	Transient                  // 5xx
	Fatal                      // any other status or transport failure
)

func (o Outcome) String() string {
	switch o {
	case Found:
		return "found"
	case Absent:
		return "absent"
	case RateLimited:
		return "rate_limited"
	case Transient:
		return "transient"
	default:
		return "fatal"
	}
}

// Result is the outcome of a single attempt. Email is set only for Found.
type Result struct {
	Outcome Outcome
	Email   string
	Status  int
	Err     error
}

// Lookup performs exactly one request with the given credential.
type Lookup interface {
	Lookup(ctx context.Context, cred *dispatcher.Credential, id string) Result
}

// HTTPLookup queries GET <url>?user_id=<id>.
type HTTPLookup struct {
	client *upstream.Client
}

// NewHTTPLookup builds the lookup client. apiKey, when set, is sent as
// X-API-KEY alongside the per-credential bearer token.
func NewHTTPLookup(lookupURL, apiKey string, timeout time.Duration) *HTTPLookup {
	return &HTTPLookup{client: upstream.New(upstream.Opts{
		Name:    "email-lookup",
		BaseURL: lookupURL,
		Timeout: timeout,
		Headers: map[string]string{"X-API-KEY": apiKey},
	})}
}

type lookupResponse struct {
	Data []struct {
		Email string `json:"email"`
	} `json:"data"`
}

func (l *HTTPLookup) Lookup(ctx context.Context, cred *dispatcher.Credential, id string) Result {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.client.URL("", url.Values{"user_id": {id}}), nil)
	if err != nil {
		return Result{Outcome: Fatal, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+cred.Token)
	req.Header.Set("Accept", "application/json")

	body, err := l.client.Do(req)
	if err != nil {
		code := upstream.StatusCode(err)
		switch {
		case code == http.StatusTooManyRequests:
			return Result{Outcome: RateLimited, Status: code, Err: err}
		case code >= 500:
			return Result{Outcome: Transient, Status: code, Err: err}
		default:
			return Result{Outcome: Fatal, Status: code, Err: err}
		}
	}

	var payload lookupResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return Result{Outcome: Absent, Status: http.StatusOK, Err: err}
	}
	if len(payload.Data) == 0 || payload.Data[0].Email == "" {
		return Result{Outcome: Absent, Status: http.StatusOK}
	}
	return Result{Outcome: Found, Status: http.StatusOK, Email: payload.Data[0].Email}
}

var trailingDigits = regexp.MustCompile(`^.*?(\d+)$`)

// CleanID reduces a prefixed identifier such as "raisefx-1001" to its
// trailing digits. Identifiers without trailing digits pass through.
func CleanID(id string) string {
	return trailingDigits.ReplaceAllString(id, "$1")
}
