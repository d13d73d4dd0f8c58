package proxypool

import (
	"sync"
	"testing"
	"time"
)

func TestAddDedupes(t *testing.T) {
	p := New(Config{}, []string{"http://a:8080", "http://a:8080", "http://b:8080", ""})
	if got := p.Size(); got != 2 {
		t.Errorf("Size() = %d, want 2", got)
	}
}

func TestAcquireEmptyPool(t *testing.T) {
	p := New(Config{}, nil)
	if h, ok := p.Acquire(); ok || h != nil {
		t.Errorf("Acquire() on empty pool = (%v, %v), want (nil, false)", h, ok)
	}
}

func TestCooldownExcludesProxy(t *testing.T) {
	p := New(Config{FailThreshold: 2, CooldownBase: 30 * time.Second, CooldownMax: 15 * time.Minute}, []string{"http://only:8080"})
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return clock }

	h, ok := p.Acquire()
	if !ok {
		t.Fatal("expected a proxy")
	}
	p.Report(h, false)
	p.Report(h, false) // second consecutive failure hits the threshold

	if _, ok := p.Acquire(); ok {
		t.Fatal("proxy should be cooling down")
	}

	clock = clock.Add(31 * time.Second)
	if _, ok := p.Acquire(); !ok {
		t.Fatal("proxy should be eligible again after cooldown expires")
	}
}

func TestCooldownDoublesAndCaps(t *testing.T) {
	cfg := Config{FailThreshold: 1, CooldownBase: 10 * time.Second, CooldownMax: 25 * time.Second}
	p := New(cfg, []string{"http://only:8080"})
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return clock }

	rec := p.recs[0]
	h := &Handle{Addr: rec.addr, rec: rec}

	p.Report(h, false) // cycle 0: 10s
	if want := clock.Add(10 * time.Second); !rec.cooldownUntil.Equal(want) {
		t.Errorf("first cooldown until %v, want %v", rec.cooldownUntil, want)
	}
	p.Report(h, false) // cycle 1: 20s
	if want := clock.Add(20 * time.Second); !rec.cooldownUntil.Equal(want) {
		t.Errorf("second cooldown until %v, want %v", rec.cooldownUntil, want)
	}
	p.Report(h, false) // cycle 2: 40s, capped to 25s
	if want := clock.Add(25 * time.Second); !rec.cooldownUntil.Equal(want) {
		t.Errorf("capped cooldown until %v, want %v", rec.cooldownUntil, want)
	}
}

func TestSuccessResetsFailureState(t *testing.T) {
	p := New(Config{FailThreshold: 3}, []string{"http://only:8080"})
	rec := p.recs[0]
	h := &Handle{Addr: rec.addr, rec: rec}

	p.Report(h, false)
	p.Report(h, false)
	p.Report(h, true)
	p.Report(h, false)
	p.Report(h, false)

	if !rec.cooldownUntil.IsZero() {
		t.Error("success should reset the consecutive failure streak")
	}
	if s, f := p.Stats(); s != 1 || f != 4 {
		t.Errorf("Stats() = (%d, %d), want (1, 4)", s, f)
	}
}

func TestHealthMovesWithOutcomes(t *testing.T) {
	p := New(Config{FailThreshold: 100}, []string{"http://only:8080"})
	rec := p.recs[0]
	h := &Handle{Addr: rec.addr, rec: rec}

	for range 10 {
		p.Report(h, true)
	}
	if rec.health <= 0.9 {
		t.Errorf("health after 10 successes = %.3f, want > 0.9", rec.health)
	}
	for range 10 {
		p.Report(h, false)
	}
	if rec.health >= 0.1 {
		t.Errorf("health after 10 failures = %.3f, want < 0.1", rec.health)
	}
}

func TestConcurrentAcquireReport(t *testing.T) {
	p := New(Config{FailThreshold: 3}, []string{"http://a:8080", "http://b:8080", "http://c:8080"})

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, ok := p.Acquire()
			if !ok {
				return
			}
			p.Report(h, i%2 == 0)
		}(i)
	}
	wg.Wait()

	if s, f := p.Stats(); s+f == 0 {
		t.Error("expected some reported outcomes")
	}
}

func TestReportNilHandle(t *testing.T) {
	p := New(Config{}, []string{"http://a:8080"})
	p.Report(nil, true) // must not panic
	p.Report(&Handle{}, false)
}
