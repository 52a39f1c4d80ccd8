package dispatcher

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmehdipour/leadsync/internal/ratelimit"
)

var ErrNoCredentials = errors.New("no credentials configured")

// Credential is one API key with its own limiter. Token is never logged;
// Name identifies the credential in logs and metrics.
type Credential struct {
	Name    string
	Token   string
	Limiter *ratelimit.Limiter
}

// Pool is the fixed, ordered set of credentials and the cursor rotating
// over them.
type Pool struct {
	creds []*Credential
	*RoundRobin
}

type PoolOpts struct {
	Capacity int           // requests per window, default 60
	Window   time.Duration // default 1m
	Start    int           // initial cursor
}

// NewPool builds one credential per non-empty token, in order.
func NewPool(tokens []string, opts PoolOpts) (*Pool, error) {
	creds := make([]*Credential, 0, len(tokens))
	for _, tok := range tokens {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		creds = append(creds, &Credential{
			Name:    fmt.Sprintf("cred-%d", len(creds)),
			Token:   tok,
			Limiter: ratelimit.New(opts.Capacity, opts.Window),
		})
	}
	if len(creds) == 0 {
		return nil, ErrNoCredentials
	}
	return &Pool{creds: creds, RoundRobin: NewRoundRobin(len(creds), opts.Start)}, nil
}

func (p *Pool) At(idx int) *Credential { return p.creds[idx] }

// Stats returns the limiter view of every credential in pool order.
func (p *Pool) Stats() []ratelimit.Stats {
	out := make([]ratelimit.Stats, len(p.creds))
	for i, c := range p.creds {
		out[i] = c.Limiter.Stats()
	}
	return out
}
