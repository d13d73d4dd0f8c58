package engine

import "sync/atomic"

// Metrics tracks operational counters across the pipeline.
var metrics struct {
	FetchRequests    atomic.Int64
	FetchErrors      atomic.Int64
	Challenges       atomic.Int64
	ChallengesSolved atomic.Int64
	Blocked          atomic.Int64
	ProxyEmpty       atomic.Int64
	SolverCalls      atomic.Int64
	SolverFailures   atomic.Int64
}

func IncrProxyEmpty()   { metrics.ProxyEmpty.Add(1) }
func IncrSolverCall()   { metrics.SolverCalls.Add(1) }
func IncrSolverFailed() { metrics.SolverFailures.Add(1) }

// GetMetrics returns a snapshot of all counters including cache stats.
func GetMetrics() map[string]int64 {
	hits, misses := CacheStats()
	return map[string]int64{
		"fetch_requests":    metrics.FetchRequests.Load(),
		"fetch_errors":      metrics.FetchErrors.Load(),
		"challenges":        metrics.Challenges.Load(),
		"challenges_solved": metrics.ChallengesSolved.Load(),
		"blocked":           metrics.Blocked.Load(),
		"proxy_empty":       metrics.ProxyEmpty.Load(),
		"solver_calls":      metrics.SolverCalls.Load(),
		"solver_failures":   metrics.SolverFailures.Load(),
		"cache_hits":        hits,
		"cache_misses":      misses,
	}
}
