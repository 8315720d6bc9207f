package collect

import (
	"context"
	"log/slog"
	"sync"

	"github.com/entropybeacon/entropybeacon/internal/retry"
)

// Result is the outcome of collecting one source.
type Result struct {
	Source    string
	Essential bool
	Payload   []byte
	Err       error
}

// Collector fetches a fixed set of sources.
type Collector struct {
	sources []Source
	policy  retry.Policy
	logger  *slog.Logger
}

func NewCollector(sources []Source, policy retry.Policy, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		sources: sources,
		policy:  policy,
		logger:  logger.With("component", "collect.Collector"),
	}
}

// Collect fetches every source concurrently, each under its own retry
// loop. Results are returned in source order; nothing is dropped.
func (c *Collector) Collect(ctx context.Context) []Result {
	results := make([]Result, len(c.sources))
	var wg sync.WaitGroup
	for i, src := range c.sources {
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()
			payload, err := retry.Do(ctx, c.policy, "collect "+src.Name(), c.logger, src.Fetch)
			results[i] = Result{
				Source:    src.Name(),
				Essential: src.Essential(),
				Payload:   payload,
				Err:       err,
			}
			if err == nil {
				c.logger.Debug("collected source", "source", src.Name(), "bytes", len(payload))
			}
		}(i, src)
	}
	wg.Wait()
	return results
}

// Partition splits results into successes and failures, keeping order.
func Partition(results []Result) (succeeded, failed []Result) {
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, r)
			continue
		}
		succeeded = append(succeeded, r)
	}
	return succeeded, failed
}

// EssentialFailure returns the first failed essential result, if any.
func EssentialFailure(results []Result) (Result, bool) {
	for _, r := range results {
		if r.Err != nil && r.Essential {
			return r, true
		}
	}
	return Result{}, false
}
