package sweep

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/rulesweep/internal/basket"
	"github.com/rewired-gh/rulesweep/internal/miner"
	"github.com/rewired-gh/rulesweep/internal/models"
	"github.com/rewired-gh/rulesweep/internal/summary"
)

func repeat(n int, items ...string) [][]string {
	out := make([][]string, n)
	for i := range out {
		out[i] = items
	}
	return out
}

// pairs returns a matrix where (A,B) and (C,D) each co-occur in half the
// transactions and never across pairs.
func pairs() *basket.Matrix {
	return basket.NewMatrix(append(repeat(5, "A", "B"), repeat(5, "C", "D")...))
}

// mixed has graded supports so different thresholds keep different rule counts.
func mixed() *basket.Matrix {
	return basket.NewMatrix([][]string{
		{"bread", "milk", "butter"},
		{"bread", "milk"},
		{"bread", "butter"},
		{"milk", "butter", "bread"},
		{"milk", "beer"},
		{"tea", "scone", "jam"},
		{"tea", "scone"},
		{"tea", "jam"},
		{"bread", "jam"},
		{"milk", "tea"},
	})
}

func newDriver(t *testing.T, m Miner, workers int) (*Driver, string) {
	t.Helper()
	dir := t.TempDir()
	return New(m, summary.NewWriter(dir, summary.Options{}), Options{Workers: workers}), dir
}

func readRows(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

// fakeMiner delegates to a real miner but fails generation, returns invalid
// rules or corrupts the itemsets for chosen supports. It is only used with a
// single worker.
type fakeMiner struct {
	inner       *miner.Apriori
	fail        map[float64]bool
	invalid     map[float64]bool
	badItemsets map[float64]bool
	last        float64
}

func (f *fakeMiner) MineFrequentItemsets(minSupport float64) models.Itemsets {
	f.last = minSupport
	sets := f.inner.MineFrequentItemsets(minSupport)
	if f.badItemsets[minSupport] {
		sets = append(sets, models.Itemset{Items: []string{"A", "B"}, Support: 1.5})
	}
	return sets
}

func (f *fakeMiner) GenerateRules(sets models.Itemsets, metric miner.Metric, threshold float64) miner.Generation {
	switch {
	case f.fail[f.last]:
		return miner.Generation{Outcome: miner.NoEligibleItemsets}
	case f.invalid[f.last]:
		return miner.Generation{Outcome: miner.Generated, Rules: models.RuleSet{
			{Antecedent: []string{"A"}, Consequent: []string{"A"}, Support: 0.5, Confidence: 1, Lift: 2},
		}}
	}
	return f.inner.GenerateRules(sets, metric, threshold)
}

func TestRunGrid_RowsInCartesianOrder(t *testing.T) {
	d, dir := newDriver(t, miner.New(mixed(), miner.Options{}), 1)
	p := GridParams{
		Supports:    []float64{0.2, 0.1},
		Confidences: []float64{0.2, 0.6},
		Lifts:       []float64{1.0, 1.5, 2.0},
	}

	res, err := d.RunGrid(context.Background(), p)
	require.NoError(t, err)
	require.Equal(t, 12, res.Table.Len())
	require.Len(t, res.Rules, 12)

	rows := res.Table.Rows()
	i := 0
	for _, s := range p.Supports {
		for _, c := range p.Confidences {
			for _, l := range p.Lifts {
				assert.Equal(t, s, rows[i].MinSupport)
				assert.Equal(t, c, rows[i].MinConfidence)
				assert.Equal(t, l, rows[i].MinLift)
				assert.FileExists(t, res.Rules[i])
				assert.Equal(t, filepath.Join(dir, "rules", "top_rules_"+GridPoint(s, c, l)+".csv"), res.Rules[i])
				i++
			}
		}
	}

	assert.Equal(t, []string{filepath.Join(dir, GridSummaryName+".csv")}, res.Summary)
	assert.Len(t, readRows(t, res.Summary[0]), 13)
}

func TestRunGrid_FilteringIsMonotone(t *testing.T) {
	d, _ := newDriver(t, miner.New(mixed(), miner.Options{}), 1)
	res, err := d.RunGrid(context.Background(), GridParams{
		Supports:    []float64{0.1},
		Confidences: []float64{0.2, 0.4, 0.6},
		Lifts:       []float64{0.5, 1.0, 2.0},
	})
	require.NoError(t, err)

	rows := res.Table.Rows()
	for i := range rows {
		for j := range rows {
			if rows[i].MinConfidence <= rows[j].MinConfidence && rows[i].MinLift <= rows[j].MinLift {
				assert.GreaterOrEqual(t, rows[i].RulesAfterFilter, rows[j].RulesAfterFilter)
			}
		}
	}
	assert.Greater(t, rows[0].RulesAfterFilter, 0)
}

func TestRunGrid_TopRulesOrderedAndCapped(t *testing.T) {
	d, _ := newDriver(t, miner.New(mixed(), miner.Options{}), 1)
	res, err := d.RunGrid(context.Background(), GridParams{
		Supports:    []float64{0.1},
		Confidences: []float64{0.0},
		Lifts:       []float64{0.0},
		TopN:        3,
	})
	require.NoError(t, err)
	require.Greater(t, res.Table.Rows()[0].RulesAfterFilter, 3)

	rows := readRows(t, res.Rules[0])
	require.Len(t, rows, 4)
	assert.Equal(t, summary.RuleColumns, rows[0])
	for i := 2; i < len(rows); i++ {
		prev, err := strconv.ParseFloat(rows[i-1][6], 64)
		require.NoError(t, err)
		cur, err := strconv.ParseFloat(rows[i][6], 64)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, prev, cur, "lift column is descending")
	}
}

func TestRunGrid_RejectsEmptyLists(t *testing.T) {
	d, _ := newDriver(t, miner.New(pairs(), miner.Options{}), 1)
	_, err := d.RunGrid(context.Background(), GridParams{Supports: []float64{0.5}, Lifts: []float64{1}})
	assert.Error(t, err)
}

func TestRunGrid_DegradedPointKeepsRow(t *testing.T) {
	fm := &fakeMiner{inner: miner.New(pairs(), miner.Options{}), fail: map[float64]bool{0.5: true}}
	d, _ := newDriver(t, fm, 1)

	res, err := d.RunGrid(context.Background(), GridParams{
		Supports:    []float64{0.5, 0.4},
		Confidences: []float64{0.5},
		Lifts:       []float64{1.0},
	})
	require.NoError(t, err)
	require.Equal(t, 2, res.Table.Len())

	rows := res.Table.Rows()
	assert.Equal(t, 0, rows[0].RulesAfterFilter)
	assert.Equal(t, 2, rows[0].FrequentItemsets, "mining result is still reported")
	assert.Equal(t, 4, rows[1].RulesAfterFilter)

	require.Len(t, res.Degraded, 1)
	assert.Equal(t, "s0p5_c0p5_l1p0", res.Degraded[0].Point)
	assert.True(t, errors.Is(res.Degraded[0], miner.ErrNoEligibleItemsets))
	assert.Len(t, readRows(t, res.Rules[0]), 1, "degraded artifact holds only the header")
}

func TestRunGrid_InvalidRulesDegrade(t *testing.T) {
	fm := &fakeMiner{inner: miner.New(pairs(), miner.Options{}), invalid: map[float64]bool{0.5: true}}
	d, _ := newDriver(t, fm, 1)

	res, err := d.RunGrid(context.Background(), GridParams{
		Supports: []float64{0.5}, Confidences: []float64{0}, Lifts: []float64{0},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Table.Rows()[0].RulesAfterFilter)
	require.Len(t, res.Degraded, 1)
}

func TestRunGrid_InvalidItemsetsDegrade(t *testing.T) {
	fm := &fakeMiner{inner: miner.New(pairs(), miner.Options{}), badItemsets: map[float64]bool{0.4: true}}
	d, _ := newDriver(t, fm, 1)

	res, err := d.RunGrid(context.Background(), GridParams{
		Supports: []float64{0.4, 0.5}, Confidences: []float64{0.5}, Lifts: []float64{1.0},
	})
	require.NoError(t, err)

	rows := res.Table.Rows()
	assert.Equal(t, 0, rows[0].RulesAfterFilter)
	assert.Equal(t, 4, rows[1].RulesAfterFilter)
	require.Len(t, res.Degraded, 1)
	assert.Equal(t, "s0p4_c0p5_l1p0", res.Degraded[0].Point)
	assert.Contains(t, res.Degraded[0].Error(), "invalid itemset")
}

func TestRunGrid_CancelledContext(t *testing.T) {
	d, _ := newDriver(t, miner.New(pairs(), miner.Options{}), 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.RunGrid(ctx, GridParams{Supports: []float64{0.5}, Confidences: []float64{0.5}, Lifts: []float64{1}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunGrid_ParallelMatchesSequential(t *testing.T) {
	p := GridParams{
		Supports:    []float64{0.3, 0.1, 0.2, 0.15},
		Confidences: []float64{0.2, 0.5},
		Lifts:       []float64{1.0, 1.5},
	}
	seq, _ := newDriver(t, miner.New(mixed(), miner.Options{}), 1)
	par, _ := newDriver(t, miner.New(mixed(), miner.Options{}), 4)

	want, err := seq.RunGrid(context.Background(), p)
	require.NoError(t, err)
	got, err := par.RunGrid(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, want.Table.Rows(), got.Table.Rows())
	for i := range want.Rules {
		assert.Equal(t, readRows(t, want.Rules[i]), readRows(t, got.Rules[i]))
	}
}

func TestRunSensitivity_SortedAscending(t *testing.T) {
	d, _ := newDriver(t, miner.New(mixed(), miner.Options{}), 2)
	supports := []float64{0.3, 0.1, 0.2}

	res, err := d.RunSensitivity(context.Background(), SensitivityParams{
		Supports: supports, MinConfidence: 0.3, MinLift: 1.0,
	})
	require.NoError(t, err)
	require.Equal(t, len(supports), res.Table.Len())

	rows := res.Table.Rows()
	assert.Equal(t, 0.1, rows[0].MinSupport)
	assert.Equal(t, 0.2, rows[1].MinSupport)
	assert.Equal(t, 0.3, rows[2].MinSupport)
	for _, r := range rows {
		assert.NoError(t, r.Validate())
	}

	csvRows := readRows(t, res.Summary[0])
	require.Len(t, csvRows, 4)
	assert.Equal(t, "0.1", csvRows[1][0])
	assert.Equal(t, "0.3", csvRows[3][0])
}

func TestRunSensitivity_DetailsFollowSummaryOrder(t *testing.T) {
	d, _ := newDriver(t, miner.New(pairs(), miner.Options{}), 1)

	res, err := d.RunSensitivity(context.Background(), SensitivityParams{
		Supports: []float64{0.9, 0.4}, MinConfidence: 0.5, MinLift: 1.0,
	})
	require.NoError(t, err)
	require.Len(t, res.Details, 2)

	full := res.Details[0]
	assert.Equal(t, "s0p4", full.Point)
	assert.Equal(t, [][]string{{"A", "B"}, {"C", "D"}}, full.Clusters)
	assert.Equal(t, 4, full.Lift.Count)
	assert.Equal(t, 0.0, full.Lift.Std)
	assert.Equal(t, 2.0, full.Lift.Min)
	assert.Equal(t, 2.0, full.Lift.Max)
	assert.Equal(t, 0.5, full.Support.Max)

	empty := res.Details[1]
	assert.Equal(t, "s0p9", empty.Point)
	assert.Empty(t, empty.Clusters)
	assert.True(t, math.IsNaN(empty.Confidence.Std))
	assert.True(t, math.IsNaN(empty.Support.Min))
}

func TestDescribeRules_Empty(t *testing.T) {
	st := DescribeRules(nil)
	assert.True(t, math.IsNaN(st.Support.Mean))
	assert.True(t, math.IsNaN(st.Lift.Median))
	assert.False(t, st.Confidence.Defined())
}

// Scenario: A and B co-occur in every transaction.
func TestScenario_FullCooccurrence(t *testing.T) {
	m := basket.NewMatrix(repeat(10, "A", "B"))
	d, _ := newDriver(t, miner.New(m, miner.Options{}), 1)

	grid, err := d.RunGrid(context.Background(), GridParams{
		Supports: []float64{0.5}, Confidences: []float64{0.5}, Lifts: []float64{1.0},
	})
	require.NoError(t, err)
	g := grid.Table.Rows()[0]
	assert.Equal(t, 1, g.FrequentItemsets)
	assert.GreaterOrEqual(t, g.RulesAfterFilter, 1)

	sens, err := d.RunSensitivity(context.Background(), SensitivityParams{
		Supports: []float64{0.5}, MinConfidence: 0.5, MinLift: 1.0,
	})
	require.NoError(t, err)
	s := sens.Table.Rows()[0]
	assert.Equal(t, 1, s.FrequentItemsets)
	assert.GreaterOrEqual(t, s.RulesAfterFilter, 1)
	assert.Equal(t, 1, s.NumClusters)
	assert.Equal(t, 2, s.LargestClusterSize)
	assert.Equal(t, 1.0, s.SupportMean)
	assert.Equal(t, 1.0, s.LiftMedian)
	assert.Empty(t, sens.Degraded)
}

// Scenario: the support threshold exceeds every itemset's support.
func TestScenario_SupportAboveEverything(t *testing.T) {
	d, _ := newDriver(t, miner.New(pairs(), miner.Options{}), 1)

	res, err := d.RunSensitivity(context.Background(), SensitivityParams{
		Supports: []float64{0.9}, MinConfidence: 0.5, MinLift: 1.0,
	})
	require.NoError(t, err)
	require.Equal(t, 1, res.Table.Len())

	r := res.Table.Rows()[0]
	assert.Equal(t, 0, r.FrequentItemsets)
	assert.Equal(t, 0, r.RulesAfterFilter)
	assert.Equal(t, 0, r.NumClusters)
	assert.Equal(t, 0, r.LargestClusterSize)
	assert.True(t, math.IsNaN(r.SupportMean))
	assert.True(t, math.IsNaN(r.ConfidenceMedian))
	assert.True(t, math.IsNaN(r.LiftMean))

	assert.FileExists(t, res.Rules[0])
	assert.Len(t, readRows(t, res.Rules[0]), 1)

	csvRows := readRows(t, res.Summary[0])
	require.Len(t, csvRows, 2)
	assert.Equal(t, "", csvRows[1][6], "undefined statistics are empty cells")
}

// Scenario: two disjoint, fully co-occurring pairs.
func TestScenario_DisjointPairs(t *testing.T) {
	d, _ := newDriver(t, miner.New(pairs(), miner.Options{}), 1)

	res, err := d.RunSensitivity(context.Background(), SensitivityParams{
		Supports: []float64{0.4}, MinConfidence: 0.5, MinLift: 1.0,
	})
	require.NoError(t, err)

	r := res.Table.Rows()[0]
	assert.Equal(t, 2, r.FrequentItemsets)
	assert.Equal(t, 4, r.RulesAfterFilter)
	assert.Equal(t, 2, r.NumClusters)
	assert.Equal(t, 2, r.LargestClusterSize)
	assert.Equal(t, 2.0, r.LiftMean)
}
