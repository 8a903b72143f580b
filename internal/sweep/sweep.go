// Package sweep drives the rule miner across threshold sweep points.
//
// Two drivers share one evaluation path. The grid driver walks the Cartesian
// product of support, confidence and lift lists; the sensitivity driver walks
// a single support axis at fixed confidence and lift and adds descriptive
// statistics and co-occurrence clustering per point.
//
// Candidate rules are generated once per support value at a permissive base
// threshold and then filtered per point, so every point owns its own rule set.
// A point whose generation fails degrades to zero rules and is reported as a
// PointError; it never aborts the sweep.
package sweep

import (
	"context"
	"fmt"
	"math"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/rewired-gh/rulesweep/internal/logger"
	"github.com/rewired-gh/rulesweep/internal/miner"
	"github.com/rewired-gh/rulesweep/internal/models"
	"github.com/rewired-gh/rulesweep/internal/summary"
)

// Miner mines one shared, read-only transaction matrix. Implementations must
// be safe for concurrent use when Options.Workers is greater than one.
type Miner interface {
	MineFrequentItemsets(minSupport float64) models.Itemsets
	GenerateRules(itemsets models.Itemsets, metric miner.Metric, minThreshold float64) miner.Generation
}

// PointError represents a per-point failure that degraded the point to zero rules
type PointError struct {
	Point string
	Err   error
}

func (e PointError) Error() string {
	return fmt.Sprintf("sweep point %s degraded: %v", e.Point, e.Err)
}

func (e PointError) Unwrap() error { return e.Err }

// Options configures a Driver.
type Options struct {
	// Workers is the number of support values evaluated concurrently.
	Workers int
	// Metric and GenerationThreshold select the permissive base threshold
	// candidate rules are generated at.
	Metric              miner.Metric
	GenerationThreshold float64
}

// Driver runs sweeps against one miner and writes artifacts with one writer.
type Driver struct {
	miner  Miner
	writer *summary.Writer
	opts   Options
}

// New creates a Driver.
func New(m Miner, w *summary.Writer, opts Options) *Driver {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Metric == "" {
		opts.Metric = miner.MetricLift
	}
	return &Driver{miner: m, writer: w, opts: opts}
}

// Result is the outcome of one driver invocation.
type Result[R models.Record] struct {
	Table *summary.Table[R]
	// Degraded lists the points whose generation failed, in point order.
	Degraded []PointError
	// Rules holds the rule artifact path of every point, in point order.
	Rules []string
	// Summary holds the persisted summary paths (CSV, then XLSX if enabled).
	Summary []string
	// Details holds full statistics and clusters per point in summary order.
	// Only sensitivity sweeps fill it.
	Details []summary.PointDetail
}

// candidates is the unfiltered rule set of one support value.
type candidates struct {
	frequentItems    int
	frequentItemsets int
	rules            models.RuleSet
	err              error
}

// generate mines at support and derives candidate rules at the base threshold.
// A failed generation yields an empty rule set and a non-nil err.
func (d *Driver) generate(support float64) candidates {
	sets := d.miner.MineFrequentItemsets(support)
	c := candidates{rules: models.RuleSet{}}
	c.frequentItems, c.frequentItemsets = sets.CountBySize()
	for i := range sets {
		if err := sets[i].Validate(); err != nil {
			c.err = eris.Wrapf(err, "invalid itemset %v", sets[i].Items)
			return c
		}
	}

	gen := d.miner.GenerateRules(sets, d.opts.Metric, d.opts.GenerationThreshold)
	if err := gen.Err(); err != nil {
		c.err = err
		return c
	}
	for i := range gen.Rules {
		if err := gen.Rules[i].Validate(); err != nil {
			c.err = eris.Wrapf(err, "invalid rule %q", gen.Rules[i].Description())
			return c
		}
	}
	c.rules = gen.Rules
	return c
}

// forEach calls fn for every index in [0, n). With more than one worker the
// calls run concurrently; fn must store its result by index.
func (d *Driver) forEach(ctx context.Context, n int, fn func(i int) error) error {
	if d.opts.Workers <= 1 {
		for i := 0; i < n; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(i); err != nil {
				return err
			}
		}
		return nil
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(d.opts.Workers)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			return fn(i)
		})
	}
	return g.Wait()
}

// evaluation is the per-point work shared by both drivers.
type evaluation struct {
	point    string
	rules    models.RuleSet
	artifact string
	degraded *PointError
}

// evaluate filters candidates for one point and persists its top rules. The
// artifact is written even when no rule survives.
func (d *Driver) evaluate(point string, c candidates, minSupport, minConfidence, minLift float64, topN int) (evaluation, error) {
	ev := evaluation{point: point}
	if c.err != nil {
		logger.Warn("Point %s degraded to zero rules: %v", point, c.err)
		ev.degraded = &PointError{Point: point, Err: c.err}
	}

	ev.rules = miner.Filter(c.rules, minSupport, minConfidence, minLift)
	path, err := d.writer.WriteRules(point, miner.Top(ev.rules, topN))
	if err != nil {
		return ev, eris.Wrapf(err, "sweep: point %s", point)
	}
	ev.artifact = path

	logger.Info("Point %s: %d frequent items, %d frequent itemsets, %d rules after filter",
		point, c.frequentItems, c.frequentItemsets, len(ev.rules))
	return ev, nil
}

// collect gathers artifacts and degraded points in point order.
func collect[R models.Record](res *Result[R], evs []evaluation) {
	for _, ev := range evs {
		res.Rules = append(res.Rules, ev.artifact)
		if ev.degraded != nil {
			res.Degraded = append(res.Degraded, *ev.degraded)
		}
	}
}

func validateThresholds(name string, values []float64, lo, hi float64) error {
	if len(values) == 0 {
		return eris.Errorf("sweep: %s must not be empty", name)
	}
	for _, v := range values {
		if math.IsNaN(v) || v < lo || v > hi {
			return eris.Errorf("sweep: %s value %v outside [%v, %v]", name, v, lo, hi)
		}
	}
	return nil
}
