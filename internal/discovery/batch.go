package discovery

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/contact-finder/internal/aggregate"
	"github.com/sells-group/contact-finder/internal/model"
	"github.com/sells-group/contact-finder/internal/source"
	"github.com/sells-group/contact-finder/internal/store"
)

// Runner discovers the emails of one organization. *Orchestrator is the
// production implementation.
type Runner interface {
	Run(ctx context.Context, org model.Organization) model.Result
}

// BatchOptions controls a Batch.
type BatchOptions struct {
	// MaxConcurrent is the number of organizations processed at once.
	MaxConcurrent int
	// Deadline bounds the whole batch. Zero means no limit.
	Deadline time.Duration
	// Resume skips organizations the sink already holds.
	Resume bool
	// OnResult, when set, sees every recorded result.
	OnResult func(model.Result)
}

// Summary describes a finished batch.
type Summary struct {
	Total     int                  `json:"total"`
	Processed int                  `json:"processed"`
	Skipped   int                  `json:"skipped"`
	Found     int                  `json:"found"`
	NotFound  int                  `json:"not_found"`
	Failed    int                  `json:"failed"`
	Cancelled int                  `json:"cancelled"`
	ByMethod  map[model.Method]int `json:"by_method"`
	Emails    []string             `json:"emails"`
	Elapsed   time.Duration        `json:"elapsed"`
}

// Batch drives a Runner over a record source and records each result in a
// sink.
type Batch struct {
	runner Runner
	sink   store.Sink
	opts   BatchOptions
}

// NewBatch creates a Batch.
func NewBatch(runner Runner, sink store.Sink, opts BatchOptions) *Batch {
	if opts.MaxConcurrent < 1 {
		opts.MaxConcurrent = 1
	}
	return &Batch{runner: runner, sink: sink, opts: opts}
}

// Run processes every record of src. Empty names, names repeated within the
// run and (with Resume) names already in the sink are skipped. A failed
// organization is recorded with method none and the batch continues; a sink
// error stops the batch. Results cut short by cancellation or the deadline
// are not recorded, so a resumed run retries them.
func (b *Batch) Run(ctx context.Context, src source.Source) (Summary, error) {
	start := time.Now()
	if b.opts.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.opts.Deadline)
		defer cancel()
	}

	done := map[string]bool{}
	if b.opts.Resume {
		var err error
		done, err = b.sink.Recorded(ctx)
		if err != nil {
			return Summary{}, eris.Wrap(err, "discovery: load recorded organizations")
		}
		zap.L().Info("discovery: resuming", zap.Int("recorded", len(done)))
	}

	var (
		mu      sync.Mutex
		sum     = Summary{ByMethod: make(map[model.Method]int)}
		emails  = &aggregate.Set{}
		started atomic.Int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.MaxConcurrent)

	recs, errs := src.Records(gctx)
	seen := make(map[string]struct{})
	for org := range recs {
		sum.Total++
		org.Name = strings.TrimSpace(org.Name)
		if skip := b.skipReason(org, seen, done); skip != "" {
			sum.Skipped++
			zap.L().Debug("discovery: skipping organization",
				zap.String("org", org.Name), zap.String("reason", skip))
			continue
		}
		seen[org.Name] = struct{}{}
		if gctx.Err() != nil {
			break
		}

		g.Go(func() error {
			n := started.Add(1)
			res := b.runner.Run(gctx, org)

			if res.Err != nil && isCancellation(res.Err) {
				mu.Lock()
				sum.Cancelled++
				mu.Unlock()
				return nil
			}

			rec := org
			if res.Website != "" {
				rec.Website = res.Website
			}
			if err := b.sink.Record(gctx, rec, res.Emails, res.Method); err != nil {
				return eris.Wrapf(err, "discovery: record %q", org.Name)
			}

			mu.Lock()
			sum.Processed++
			sum.ByMethod[res.Method]++
			switch {
			case res.Err != nil:
				sum.Failed++
			case res.Found():
				sum.Found++
			default:
				sum.NotFound++
			}
			mu.Unlock()
			emails.Add(res.Emails...)

			fields := []zap.Field{
				zap.Int64("n", n),
				zap.String("org", org.Name),
				zap.String("method", string(res.Method)),
				zap.Int("emails", len(res.Emails)),
			}
			if res.Err != nil {
				zap.L().Warn("discovery: organization failed", append(fields, zap.Error(res.Err))...)
			} else {
				zap.L().Info("discovery: organization done", fields...)
			}
			if b.opts.OnResult != nil {
				b.opts.OnResult(res)
			}
			return nil
		})
	}

	werr := g.Wait()
	srcErr := <-errs

	sum.Emails = emails.Sorted()
	sum.Elapsed = time.Since(start)
	zap.L().Info("discovery: batch complete",
		zap.Int("total", sum.Total),
		zap.Int("processed", sum.Processed),
		zap.Int("found", sum.Found),
		zap.Int("skipped", sum.Skipped),
		zap.Int("cancelled", sum.Cancelled),
		zap.Int("unique_emails", len(sum.Emails)),
		zap.Duration("elapsed", sum.Elapsed),
	)

	if werr != nil {
		return sum, werr
	}
	if err := ctx.Err(); err != nil {
		return sum, eris.Wrap(err, "discovery: batch interrupted")
	}
	if srcErr != nil {
		return sum, eris.Wrap(srcErr, "discovery: read records")
	}
	return sum, nil
}

func (b *Batch) skipReason(org model.Organization, seen map[string]struct{}, done map[string]bool) string {
	if org.Name == "" {
		return "empty name"
	}
	if _, dup := seen[org.Name]; dup {
		return "duplicate"
	}
	if done[org.Name] {
		return "already recorded"
	}
	return ""
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
