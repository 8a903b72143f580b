package sweep

import (
	"context"
	"math"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/rewired-gh/rulesweep/internal/cooccur"
	"github.com/rewired-gh/rulesweep/internal/logger"
	"github.com/rewired-gh/rulesweep/internal/models"
	"github.com/rewired-gh/rulesweep/internal/stats"
	"github.com/rewired-gh/rulesweep/internal/summary"
)

// SensitivitySummaryName is the summary file stem of a sensitivity sweep.
const SensitivitySummaryName = "parameter_sensitivity_summary"

// DefaultSensitivityTopN is the number of rules kept per sensitivity artifact.
const DefaultSensitivityTopN = 50

// SensitivityParams describe a single support axis at fixed confidence and lift.
type SensitivityParams struct {
	Supports      []float64
	MinConfidence float64
	MinLift       float64
	TopN          int
}

// Validate checks the support list and the fixed thresholds
func (p SensitivityParams) Validate() error {
	if err := validateThresholds("supports", p.Supports, 0, 1); err != nil {
		return err
	}
	if math.IsNaN(p.MinConfidence) || p.MinConfidence < 0 || p.MinConfidence > 1 {
		return eris.Errorf("sweep: min_confidence %v outside [0, 1]", p.MinConfidence)
	}
	if math.IsNaN(p.MinLift) || p.MinLift < 0 {
		return eris.Errorf("sweep: min_lift %v must be non-negative", p.MinLift)
	}
	if p.TopN < 0 {
		return eris.New("sweep: top_n must not be negative")
	}
	return nil
}

// SensitivityPoint names the artifact of one support value, e.g. "s0p015".
func SensitivityPoint(support float64) string {
	return summary.PointName("s", support)
}

// RuleStats holds descriptive statistics over the metrics of a rule set.
type RuleStats struct {
	Support    stats.Summary `json:"support" yaml:"support"`
	Confidence stats.Summary `json:"confidence" yaml:"confidence"`
	Lift       stats.Summary `json:"lift" yaml:"lift"`
}

// DescribeRules computes statistics independently over the support,
// confidence and lift columns. An empty rule set yields undefined statistics.
func DescribeRules(rules models.RuleSet) RuleStats {
	return RuleStats{
		Support:    stats.Describe(rules.Supports()),
		Confidence: stats.Describe(rules.Confidences()),
		Lift:       stats.Describe(rules.Lifts()),
	}
}

// RunSensitivity evaluates each support value at the fixed confidence and
// lift. Each point is summarized with rule statistics and the clustering of
// its co-occurrence graph. The summary is sorted ascending by support and
// persisted once at the end.
func (d *Driver) RunSensitivity(ctx context.Context, p SensitivityParams) (*Result[models.SensitivityRecord], error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.TopN == 0 {
		p.TopN = DefaultSensitivityTopN
	}

	records := make([]models.SensitivityRecord, len(p.Supports))
	details := make([]summary.PointDetail, len(p.Supports))
	evs := make([]evaluation, len(p.Supports))

	logger.Info("Starting sensitivity sweep: %d supports at confidence %v, lift %v",
		len(p.Supports), p.MinConfidence, p.MinLift)

	err := d.forEach(ctx, len(p.Supports), func(i int) error {
		s := p.Supports[i]
		c := d.generate(s)
		ev, err := d.evaluate(SensitivityPoint(s), c, s, p.MinConfidence, p.MinLift, p.TopN)
		if err != nil {
			return err
		}
		evs[i] = ev

		st := DescribeRules(ev.rules)
		g := cooccur.FromRules(ev.rules)
		cl := g.Cluster()
		records[i] = models.SensitivityRecord{
			MinSupport:         s,
			FrequentItems:      c.frequentItems,
			FrequentItemsets:   c.frequentItemsets,
			RulesAfterFilter:   len(ev.rules),
			NumClusters:        cl.Count,
			LargestClusterSize: cl.Largest,
			SupportMean:        st.Support.Mean,
			SupportMedian:      st.Support.Median,
			ConfidenceMean:     st.Confidence.Mean,
			ConfidenceMedian:   st.Confidence.Median,
			LiftMean:           st.Lift.Mean,
			LiftMedian:         st.Lift.Median,
		}
		details[i] = summary.PointDetail{
			Point:      ev.point,
			MinSupport: s,
			Support:    st.Support,
			Confidence: st.Confidence,
			Lift:       st.Lift,
			Clusters:   g.Components(),
		}
		logger.Debug("Point %s: %d items, %d edges, %d clusters, largest %d",
			ev.point, g.NumNodes(), g.NumEdges(), cl.Count, cl.Largest)
		if st.Lift.Defined() {
			logger.Debug("Point %s lift: std %.4f, min %.4f, max %.4f",
				ev.point, st.Lift.Std, st.Lift.Min, st.Lift.Max)
		}
		return nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "sweep: sensitivity")
	}

	res := &Result[models.SensitivityRecord]{Table: summary.NewTable[models.SensitivityRecord]()}
	for i := range records {
		if err := records[i].Validate(); err != nil {
			return nil, eris.Wrapf(err, "sweep: summary row of %s", evs[i].point)
		}
		res.Table.Append(records[i])
	}
	res.Table.SortStable(func(a, b models.SensitivityRecord) bool { return a.MinSupport < b.MinSupport })
	sort.SliceStable(details, func(i, j int) bool { return details[i].MinSupport < details[j].MinSupport })
	res.Details = details
	collect(res, evs)

	paths, err := res.Table.Persist(d.writer, SensitivitySummaryName)
	if err != nil {
		return nil, eris.Wrap(err, "sweep: sensitivity summary")
	}
	res.Summary = paths

	logger.Info("Sensitivity sweep complete: %d points, %d degraded", res.Table.Len(), len(res.Degraded))
	return res, nil
}
