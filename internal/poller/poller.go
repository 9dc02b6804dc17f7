// Package poller waits for worker artifacts to appear in the results
// directory.
package poller

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"adbridge/internal/domain"
	"adbridge/internal/metrics"
)

const (
	// DefaultInterval is the delay between existence checks.
	DefaultInterval = 2 * time.Second
	// DefaultSettle is how long a result must stay unchanged before it is
	// handed back.
	DefaultSettle = 500 * time.Millisecond
)

// ResultSource is the read side of the job store.
type ResultSource interface {
	PollResult(jobID string, kind domain.ResultKind) (*domain.Result, bool, error)
	ResultsDir() string
}

// Poller blocks a request until its result arrives, the deadline passes or
// the request context ends.
type Poller struct {
	// Settle is the quiet period a result file must survive with the same
	// size and modification time. Workers may write results in several
	// chunks; zero accepts the first non-empty read.
	Settle time.Duration

	source   ResultSource
	logger   zerolog.Logger
	notifier *notifier
}

// New builds a Poller reading from source.
func New(source ResultSource, logger zerolog.Logger) *Poller {
	return &Poller{Settle: DefaultSettle, source: source, logger: logger, notifier: newNotifier()}
}

// Watch subscribes to results directory events until ctx ends so waits can
// wake up as soon as a file lands. The interval checks keep running either
// way; an error here only means waits fall back to pure polling.
func (p *Poller) Watch(ctx context.Context) error {
	return p.notifier.watch(ctx, p.source.ResultsDir(), p.logger)
}

// AwaitResult checks for the job's artifact immediately and then on every
// interval tick (or watch event) until it shows up. domain.ErrTimeout is
// returned only once at least timeout has elapsed. The filesystem is never
// written to.
func (p *Poller) AwaitResult(ctx context.Context, jobID string, kind domain.ResultKind, timeout, interval time.Duration) (*domain.Result, error) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	start := time.Now()

	wake, unsubscribe := p.notifier.subscribe(domain.ResultFileName(jobID, kind))
	defer unsubscribe()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	checks := metrics.ResultChecks.WithLabelValues(string(kind))
	var lastErr error
	for {
		res, ok, err := p.source.PollResult(jobID, kind)
		checks.Inc()
		if ok && err == nil {
			ok, err = p.settled(ctx, res)
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrCanceled, ctx.Err())
		}
		switch {
		case err != nil:
			// Shared drives hiccup; keep trying until the deadline.
			lastErr = err
			p.logger.Warn().Err(err).Str("job_id", jobID).Msg("poller: result check failed")
		case ok:
			return res, nil
		}

		if time.Since(start) >= timeout {
			if lastErr != nil {
				return nil, fmt.Errorf("%w after %s (last error: %v)", domain.ErrTimeout, timeout, lastErr)
			}
			return nil, fmt.Errorf("%w after %s", domain.ErrTimeout, timeout)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", domain.ErrCanceled, ctx.Err())
		case <-deadline.C:
		case <-ticker.C:
		case <-wake:
			metrics.WatchWakeups.Inc()
		}
	}
}

// settled reports whether res still matches the file on disk after the
// settle period: same size as the bytes read, and neither size nor
// modification time moved in between. A file that is still growing is
// reported as not ready.
func (p *Poller) settled(ctx context.Context, res *domain.Result) (bool, error) {
	if p.Settle <= 0 {
		return true, nil
	}
	path := filepath.Join(p.source.ResultsDir(), domain.ResultFileName(res.JobID, res.Kind))
	before, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	if before.Size() != int64(len(res.Data)) {
		p.logger.Debug().Str("job_id", res.JobID).Int64("size", before.Size()).Msg("poller: result still being written")
		return false, nil
	}

	t := time.NewTimer(p.Settle)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false, nil
	case <-t.C:
	}

	after, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	if after.Size() != before.Size() || !after.ModTime().Equal(before.ModTime()) {
		p.logger.Debug().Str("job_id", res.JobID).Int64("size", after.Size()).Msg("poller: result still being written")
		return false, nil
	}
	return true, nil
}
