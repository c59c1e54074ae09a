package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Dispatcher coordinates multi-engine fetching with staged escalation.
// The fastest engine starts first; heavier engines join the race after
// their escalation delay unless someone already won. A shared rate
// limiter paces all dispatches against the site regardless of which
// engine ends up doing the work.
type Dispatcher struct {
	engines          []Engine
	escalationDelays []time.Duration
	memory           *KindMemory
	throttle         *rate.Limiter
}

// NewDispatcher creates a Dispatcher. engines[i] starts after
// escalationDelays[i] from the race beginning; the first delay should
// be 0. rps is the sustained site-wide fetch rate.
func NewDispatcher(engines []Engine, escalationDelays []time.Duration, memory *KindMemory, rps float64) *Dispatcher {
	delays := make([]time.Duration, len(engines))
	copy(delays, escalationDelays)
	if rps <= 0 {
		rps = 1
	}
	return &Dispatcher{
		engines:          engines,
		escalationDelays: delays,
		memory:           memory,
		throttle:         rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// Fetch waits out the politeness throttle and then runs the engine race
// for the request, returning the first successful result. If every
// engine fails it returns the last error.
func (d *Dispatcher) Fetch(ctx context.Context, req *Request) (*Result, error) {
	if err := d.throttle.Wait(ctx); err != nil {
		return nil, err
	}

	// A remembered engine for this page kind skips the race entirely.
	if remembered := d.memory.Get(req.Kind); remembered != "" {
		for _, eng := range d.engines {
			if eng.Name() != remembered {
				continue
			}
			slog.Debug("page kind memory hit", "kind", req.Kind, "engine", remembered)
			result, err := eng.Fetch(ctx, req)
			if err == nil {
				return result, nil
			}
			slog.Info("remembered engine failed, running full race",
				"kind", req.Kind, "engine", remembered, "error", err)
			d.memory.Delete(req.Kind)
			break
		}
	}

	return d.race(ctx, req)
}

// race runs all engines with staged delays and returns the first
// success.
func (d *Dispatcher) race(ctx context.Context, req *Request) (*Result, error) {
	type raceResult struct {
		result *Result
		err    error
	}

	raceCtx, raceCancel := context.WithCancel(ctx)
	defer raceCancel()

	results := make(chan raceResult, len(d.engines))
	var wg sync.WaitGroup

	for i, eng := range d.engines {
		delay := d.escalationDelays[i]
		wg.Add(1)
		go func(e Engine, startDelay time.Duration) {
			defer wg.Done()

			if startDelay > 0 {
				select {
				case <-raceCtx.Done():
					return
				case <-time.After(startDelay):
				}
			}
			select {
			case <-raceCtx.Done():
				return
			default:
			}

			slog.Debug("engine starting", "engine", e.Name(), "url", req.URL)
			result, err := e.Fetch(raceCtx, req)
			if err != nil {
				slog.Debug("engine failed", "engine", e.Name(), "url", req.URL, "error", err)
			}
			results <- raceResult{result: result, err: err}
		}(eng, delay)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var lastErr error
	for rr := range results {
		if rr.err != nil {
			lastErr = rr.err
			continue
		}
		// First success wins; cancel the rest.
		raceCancel()
		slog.Info("engine won race", "engine", rr.result.Engine, "url", req.URL)
		d.memory.Set(req.Kind, rr.result.Engine)
		return rr.result, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("dispatcher: all engines failed for %s", req.URL)
	}
	return nil, lastErr
}
