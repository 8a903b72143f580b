package sweep

import (
	"context"
	"math"

	"github.com/rotisserie/eris"

	"github.com/rewired-gh/rulesweep/internal/logger"
	"github.com/rewired-gh/rulesweep/internal/models"
	"github.com/rewired-gh/rulesweep/internal/summary"
)

// GridSummaryName is the summary file stem of a grid sweep.
const GridSummaryName = "apriori_experiment_summary"

// DefaultGridTopN is the number of rules kept per grid artifact.
const DefaultGridTopN = 20

// GridParams are the threshold lists of a grid sweep.
type GridParams struct {
	Supports    []float64
	Confidences []float64
	Lifts       []float64
	TopN        int
}

// Validate checks that all lists are non-empty and in range
func (p GridParams) Validate() error {
	if err := validateThresholds("supports", p.Supports, 0, 1); err != nil {
		return err
	}
	if err := validateThresholds("confidences", p.Confidences, 0, 1); err != nil {
		return err
	}
	if err := validateThresholds("lifts", p.Lifts, 0, math.Inf(1)); err != nil {
		return err
	}
	if p.TopN < 0 {
		return eris.New("sweep: top_n must not be negative")
	}
	return nil
}

// Points returns the number of combinations the grid evaluates.
func (p GridParams) Points() int {
	return len(p.Supports) * len(p.Confidences) * len(p.Lifts)
}

// GridPoint names the artifact of one grid combination, e.g. "s0p025_c0p2_l1p0".
func GridPoint(support, confidence, lift float64) string {
	return summary.PointName("scl", support, confidence, lift)
}

// RunGrid evaluates every (support, confidence, lift) combination in Cartesian
// order, support outermost and lift innermost. Each combination gets a rule
// artifact and one summary row; the summary is persisted once at the end.
func (d *Driver) RunGrid(ctx context.Context, p GridParams) (*Result[models.GridRecord], error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.TopN == 0 {
		p.TopN = DefaultGridTopN
	}

	nc, nl := len(p.Confidences), len(p.Lifts)
	perSupport := nc * nl
	records := make([]models.GridRecord, p.Points())
	evs := make([]evaluation, p.Points())

	logger.Info("Starting grid sweep: %d supports x %d confidences x %d lifts", len(p.Supports), nc, nl)

	// one job per support value: candidates are generated once and filtered per (confidence, lift)
	err := d.forEach(ctx, len(p.Supports), func(si int) error {
		s := p.Supports[si]
		c := d.generate(s)
		for ci, conf := range p.Confidences {
			for li, lift := range p.Lifts {
				idx := si*perSupport + ci*nl + li
				ev, err := d.evaluate(GridPoint(s, conf, lift), c, s, conf, lift, p.TopN)
				if err != nil {
					return err
				}
				evs[idx] = ev
				records[idx] = models.GridRecord{
					MinSupport:       s,
					MinConfidence:    conf,
					MinLift:          lift,
					FrequentItems:    c.frequentItems,
					FrequentItemsets: c.frequentItemsets,
					RulesAfterFilter: len(ev.rules),
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "sweep: grid")
	}

	res := &Result[models.GridRecord]{Table: summary.NewTable[models.GridRecord]()}
	for i := range records {
		if err := records[i].Validate(); err != nil {
			return nil, eris.Wrapf(err, "sweep: summary row of %s", evs[i].point)
		}
		res.Table.Append(records[i])
	}
	collect(res, evs)

	paths, err := res.Table.Persist(d.writer, GridSummaryName)
	if err != nil {
		return nil, eris.Wrap(err, "sweep: grid summary")
	}
	res.Summary = paths

	logger.Info("Grid sweep complete: %d points, %d degraded", res.Table.Len(), len(res.Degraded))
	return res, nil
}
