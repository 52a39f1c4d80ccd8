package enrich

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"

	"github.com/jmehdipour/leadsync/internal/dispatcher"
	"github.com/jmehdipour/leadsync/internal/metrics"
	"go.uber.org/zap"
)

// ErrCooldownExhausted is returned when every credential stayed rate limited
// through MaxRetries cooldowns.
var ErrCooldownExhausted = errors.New("enrich: all credentials still rate limited after cooldown retries")

// CooldownPolicy controls the global pause taken when a whole pass over the
// credentials was answered with 429.
type CooldownPolicy struct {
	Base       time.Duration // first pause, default 60s
	Multiplier float64       // growth per consecutive cooldown, <=1 keeps it fixed
	Max        time.Duration // ceiling for grown pauses, 0 = no ceiling
	Jitter     float64       // +/- fraction applied to each pause, 0..1
	MaxRetries int           // 0 = retry forever
}

func DefaultCooldownPolicy() CooldownPolicy {
	return CooldownPolicy{Base: time.Minute, Multiplier: 1}
}

// Delay returns the pause before retry number n (0-based).
func (p CooldownPolicy) Delay(n int) time.Duration {
	base := p.Base
	if base <= 0 {
		base = time.Minute
	}
	d := float64(base)
	if p.Multiplier > 1 {
		d *= math.Pow(p.Multiplier, float64(n))
	}
	if p.Max > 0 && d > float64(p.Max) {
		d = float64(p.Max)
	}
	if p.Jitter > 0 {
		j := math.Min(p.Jitter, 1)
		d += d * j * (2*rand.Float64() - 1)
	}
	return time.Duration(d)
}

// Fetcher resolves one identifier to an email, walking the credential pool.
type Fetcher struct {
	pool           *dispatcher.Pool
	lookup         Lookup
	policy         CooldownPolicy
	acquireTimeout time.Duration
	log            *zap.Logger
}

type FetcherOpts struct {
	Policy CooldownPolicy
	// AcquireTimeout bounds the wait for one credential's permit; 0 waits
	// as long as the caller's context allows.
	AcquireTimeout time.Duration
	Logger         *zap.Logger
}

func NewFetcher(pool *dispatcher.Pool, lookup Lookup, opts FetcherOpts) *Fetcher {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Policy.Base <= 0 {
		opts.Policy = DefaultCooldownPolicy()
	}
	return &Fetcher{
		pool:           pool,
		lookup:         lookup,
		policy:         opts.Policy,
		acquireTimeout: opts.AcquireTimeout,
		log:            opts.Logger,
	}
}

// Resolve returns the email for id and whether one was found. A returned
// error means the resolution was abandoned (context ended, cooldown budget
// spent); callers treat it like not found.
func (f *Fetcher) Resolve(ctx context.Context, id string) (string, bool, error) {
	if f.pool == nil || f.pool.Len() == 0 {
		return "", false, dispatcher.ErrNoCredentials
	}
	clean := CleanID(id)
	log := f.log.With(zap.String("identifier", clean))

	for cooldowns := 0; ; cooldowns++ {
		res, allLimited := f.pass(ctx, clean, log)
		if err := ctx.Err(); err != nil {
			return "", false, err
		}
		if res != nil {
			if res.Outcome == Found {
				return res.Email, true, nil
			}
			return "", false, nil
		}

		if !allLimited {
			f.pool.Exhausted()
			log.Warn("all credentials failed, giving up on identifier")
			return "", false, nil
		}

		if f.policy.MaxRetries > 0 && cooldowns >= f.policy.MaxRetries {
			f.pool.Exhausted()
			return "", false, ErrCooldownExhausted
		}

		wait := f.policy.Delay(cooldowns)
		metrics.CooldownsTotal.Inc()
		log.Warn("all credentials rate limited, cooling down", zap.Duration("wait", wait), zap.Int("cooldown", cooldowns+1))

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return "", false, ctx.Err()
		case <-t.C:
		}
	}
}

// pass tries every credential once from the cursor. It returns the terminal
// result if one was reached, and whether every attempt was rate limited.
func (f *Fetcher) pass(ctx context.Context, id string, log *zap.Logger) (*Result, bool) {
	allLimited := true
	for idx := range f.pool.Candidates() {
		cred := f.pool.At(idx)
		res := f.attempt(ctx, cred, id)
		metrics.EmailLookupsTotal.WithLabelValues(res.Outcome.String()).Inc()

		if ctx.Err() != nil {
			return nil, false
		}

		switch res.Outcome {
		case Found, Absent:
			f.pool.Succeeded(idx)
			return &res, false
		case RateLimited:
			log.Debug("credential rate limited", zap.String("credential", cred.Name))
		case Transient:
			allLimited = false
			log.Warn("email lookup failed, trying next credential",
				zap.String("credential", cred.Name), zap.Int("status", res.Status), zap.Error(res.Err))
		default:
			log.Error("email lookup rejected", zap.String("credential", cred.Name), zap.Int("status", res.Status), zap.Error(res.Err))
			return &res, false
		}
	}
	return nil, allLimited
}

func (f *Fetcher) attempt(ctx context.Context, cred *dispatcher.Credential, id string) Result {
	actx, cancel := ctx, context.CancelFunc(func() {})
	if f.acquireTimeout > 0 {
		actx, cancel = context.WithTimeout(ctx, f.acquireTimeout)
	}
	release, err := cred.Limiter.Acquire(actx)
	cancel()
	if err != nil {
		return Result{Outcome: RateLimited, Err: err}
	}
	defer release()

	return f.lookup.Lookup(ctx, cred, id)
}
