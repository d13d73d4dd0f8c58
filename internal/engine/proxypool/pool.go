// Package proxypool tracks network egress identities and their health.
//
// Records are never deleted: a proxy that keeps failing is pushed into an
// exponentially growing cooldown and stops being selected, but stays in the
// pool in case it recovers.
package proxypool

import (
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"
)

const (
	healthAlpha   = 0.3  // EMA smoothing factor
	initialHealth = 0.5  // neutral prior for fresh records
	minWeight     = 0.05 // even near-dead proxies keep a tiny selection chance
)

// Config controls failure handling.
type Config struct {
	FailThreshold int           // consecutive failures before cooldown
	CooldownBase  time.Duration // first cooldown duration
	CooldownMax   time.Duration // cap for the doubling cooldown
}

type record struct {
	addr           string
	consecFails    int
	successes      int64
	failures       int64
	health         float64
	cooldownUntil  time.Time
	cooldownCycles int
}

// Handle is an acquired proxy. Callers must pass it back to Report exactly
// once per fetch attempt.
type Handle struct {
	Addr string
	rec  *record
}

// Pool is safe for concurrent Acquire/Report from many workers. All state
// mutation is serialized behind one mutex.
type Pool struct {
	mu   sync.Mutex
	cfg  Config
	recs []*record
	now  func() time.Time
}

// New creates a pool seeded with the given proxy addresses.
func New(cfg Config, addrs []string) *Pool {
	if cfg.FailThreshold <= 0 {
		cfg.FailThreshold = 3
	}
	if cfg.CooldownBase <= 0 {
		cfg.CooldownBase = 30 * time.Second
	}
	if cfg.CooldownMax <= 0 {
		cfg.CooldownMax = 15 * time.Minute
	}
	p := &Pool{cfg: cfg, now: time.Now}
	for _, a := range addrs {
		p.Add(a)
	}
	return p
}

// Add registers a proxy address, ignoring duplicates.
func (p *Pool) Add(addr string) {
	if addr == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, r := range p.recs {
		if r.addr == addr {
			return
		}
	}
	p.recs = append(p.recs, &record{addr: addr, health: initialHealth})
}

// Size returns the total number of records, cooling or not.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.recs)
}

// Acquire picks a proxy by weighted random over health scores among records
// not in cooldown. Returns false when nothing is eligible; that is a
// transient condition, not an error, so callers wait or go proxy-less.
func (p *Pool) Acquire() (*Handle, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	var eligible []*record
	total := 0.0
	for _, r := range p.recs {
		if now.Before(r.cooldownUntil) {
			continue
		}
		eligible = append(eligible, r)
		total += max(r.health, minWeight)
	}
	if len(eligible) == 0 {
		return nil, false
	}

	pick := rand.Float64() * total
	for _, r := range eligible {
		pick -= max(r.health, minWeight)
		if pick <= 0 {
			return &Handle{Addr: r.addr, rec: r}, true
		}
	}
	r := eligible[len(eligible)-1]
	return &Handle{Addr: r.addr, rec: r}, true
}

// Report records the outcome of one fetch attempt through the handle's
// proxy. The health score is an exponential moving average: successes pull
// it toward 1, failures decay it toward 0. FailThreshold consecutive
// failures start a cooldown whose duration doubles per consecutive cycle.
func (p *Pool) Report(h *Handle, success bool) {
	if h == nil || h.rec == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	r := h.rec
	if success {
		r.successes++
		r.consecFails = 0
		r.cooldownCycles = 0
		r.health = r.health*(1-healthAlpha) + healthAlpha
		return
	}

	r.failures++
	r.consecFails++
	r.health = r.health * (1 - healthAlpha)

	if r.consecFails >= p.cfg.FailThreshold {
		d := p.cfg.CooldownBase << r.cooldownCycles
		if d > p.cfg.CooldownMax || d <= 0 {
			d = p.cfg.CooldownMax
		}
		r.cooldownUntil = p.now().Add(d)
		r.cooldownCycles++
		r.consecFails = 0
		slog.Debug("proxypool: cooldown",
			slog.String("proxy", r.addr),
			slog.Duration("for", d),
			slog.Int("cycle", r.cooldownCycles),
		)
	}
}

// Stats returns cumulative success/failure counts across all records.
func (p *Pool) Stats() (successes, failures int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, r := range p.recs {
		successes += r.successes
		failures += r.failures
	}
	return
}
