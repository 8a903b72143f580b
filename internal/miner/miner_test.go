package miner

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/rulesweep/internal/basket"
	"github.com/rewired-gh/rulesweep/internal/models"
)

// groceries: bread in 4/5, milk in 4/5, butter in 3/5, beer in 1/5.
func groceries() *basket.Matrix {
	return basket.NewMatrix([][]string{
		{"bread", "milk", "butter"},
		{"bread", "milk"},
		{"bread", "butter"},
		{"milk", "butter", "bread"},
		{"milk", "beer"},
	})
}

func itemsOf(sets models.Itemsets) [][]string {
	out := make([][]string, len(sets))
	for i, s := range sets {
		out[i] = s.Items
	}
	return out
}

func TestMineFrequentItemsets(t *testing.T) {
	a := New(groceries(), Options{})

	sets := a.MineFrequentItemsets(0.4)
	assert.Equal(t, [][]string{
		{"bread"}, {"butter"}, {"milk"},
		{"bread", "butter"}, {"bread", "milk"}, {"butter", "milk"},
		{"bread", "butter", "milk"},
	}, itemsOf(sets))
	assert.InDelta(t, 0.8, sets[0].Support, 1e-12)
	assert.InDelta(t, 0.4, sets[6].Support, 1e-12)

	for _, s := range sets {
		assert.NoError(t, s.Validate())
	}
}

func TestMineFrequentItemsets_Thresholds(t *testing.T) {
	a := New(groceries(), Options{})

	assert.Len(t, a.MineFrequentItemsets(0.2), 9, "beer and {beer, milk} join at 0.2")
	assert.Empty(t, a.MineFrequentItemsets(0.9))
	assert.NotNil(t, a.MineFrequentItemsets(0.9))
}

func TestMineFrequentItemsets_MaxLen(t *testing.T) {
	a := New(groceries(), Options{MaxLen: 2})
	for _, s := range a.MineFrequentItemsets(0.4) {
		assert.LessOrEqual(t, len(s.Items), 2)
	}
}

func TestMineFrequentItemsets_EmptyMatrix(t *testing.T) {
	a := New(basket.NewMatrix(nil), Options{})
	assert.Empty(t, a.MineFrequentItemsets(0.1))
}

func TestGenerateRules(t *testing.T) {
	a := New(groceries(), Options{})
	gen := a.GenerateRules(a.MineFrequentItemsets(0.6), MetricLift, 0)
	require.Equal(t, Generated, gen.Outcome)
	require.NoError(t, gen.Err())

	// frequent at 0.6: bread, butter, milk, {bread, butter}, {bread, milk}
	require.Len(t, gen.Rules, 4)

	r := gen.Rules[0]
	assert.Equal(t, []string{"bread"}, r.Antecedent)
	assert.Equal(t, []string{"butter"}, r.Consequent)
	assert.InDelta(t, 0.6, r.Support, 1e-12)
	assert.InDelta(t, 0.75, r.Confidence, 1e-12)
	assert.InDelta(t, 1.25, r.Lift, 1e-12)
	assert.InDelta(t, 0.6-0.8*0.6, r.Leverage, 1e-12)
	assert.InDelta(t, (1-0.6)/(1-0.75), r.Conviction, 1e-12)

	butterBread := gen.Rules[1]
	assert.Equal(t, []string{"butter"}, butterBread.Antecedent)
	assert.InDelta(t, 1.0, butterBread.Confidence, 1e-12)
	assert.True(t, math.IsInf(butterBread.Conviction, 1))

	for _, r := range gen.Rules {
		assert.NoError(t, r.Validate())
	}
}

func TestGenerateRules_AntecedentOrder(t *testing.T) {
	a := New(groceries(), Options{})
	gen := a.GenerateRules(a.MineFrequentItemsets(0.4), MetricSupport, 0)

	var triple []models.Rule
	for _, r := range gen.Rules {
		if len(r.Antecedent)+len(r.Consequent) == 3 {
			triple = append(triple, r)
		}
	}
	require.Len(t, triple, 6)
	assert.Len(t, triple[0].Antecedent, 2, "larger antecedents come first")
	assert.Len(t, triple[5].Antecedent, 1)
}

func TestGenerateRules_Threshold(t *testing.T) {
	a := New(groceries(), Options{})
	sets := a.MineFrequentItemsets(0.4)

	all := a.GenerateRules(sets, MetricConfidence, 0).Rules
	strict := a.GenerateRules(sets, MetricConfidence, 0.9).Rules
	assert.Less(t, len(strict), len(all))
	for _, r := range strict {
		assert.GreaterOrEqual(t, r.Confidence, 0.9)
	}
}

func TestGenerateRules_NoEligibleItemsets(t *testing.T) {
	a := New(groceries(), Options{})
	gen := a.GenerateRules(a.MineFrequentItemsets(0.95), MetricLift, 0)
	assert.Equal(t, NoEligibleItemsets, gen.Outcome)
	assert.ErrorIs(t, gen.Err(), ErrNoEligibleItemsets)
	assert.Empty(t, gen.Rules)
	assert.Equal(t, "no_eligible_itemsets", gen.Outcome.String())
}

func TestGenerateRules_SinglesOnly(t *testing.T) {
	a := New(groceries(), Options{})
	gen := a.GenerateRules(a.MineFrequentItemsets(0.7), MetricLift, 0)
	assert.Equal(t, Generated, gen.Outcome, "singletons are eligible even though they yield no rules")
	assert.Empty(t, gen.Rules)
}

func TestFilterIsMonotone(t *testing.T) {
	a := New(randomMatrix(rand.New(rand.NewSource(7)), 200, 12), Options{})
	rules := a.GenerateRules(a.MineFrequentItemsets(0.05), MetricLift, 0).Rules
	require.NotEmpty(t, rules)

	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 50; i++ {
		s1, c1, l1 := rng.Float64()*0.2, rng.Float64(), rng.Float64()*2
		s2, c2, l2 := s1+rng.Float64()*0.1, math.Min(1, c1+rng.Float64()*0.3), l1+rng.Float64()

		loose := Filter(rules, s1, c1, l1)
		strict := Filter(rules, s2, c2, l2)
		require.LessOrEqual(t, len(strict), len(loose))

		inLoose := make(map[string]bool, len(loose))
		for _, r := range loose {
			inLoose[r.Description()] = true
		}
		for _, r := range strict {
			assert.True(t, inLoose[r.Description()], "rule %s escaped the looser filter", r.Description())
		}
	}
}

func TestTop(t *testing.T) {
	rules := models.RuleSet{
		{Antecedent: []string{"a"}, Consequent: []string{"b"}, Lift: 1.5, Confidence: 0.3},
		{Antecedent: []string{"c"}, Consequent: []string{"d"}, Lift: 2.0, Confidence: 0.1},
		{Antecedent: []string{"e"}, Consequent: []string{"f"}, Lift: 1.5, Confidence: 0.9},
		{Antecedent: []string{"g"}, Consequent: []string{"h"}, Lift: 1.5, Confidence: 0.3},
	}

	top := Top(rules, 3)
	require.Len(t, top, 3)
	assert.Equal(t, "c -> d", top[0].Description())
	assert.Equal(t, "e -> f", top[1].Description())
	assert.Equal(t, "a -> b", top[2].Description(), "ties keep input order")

	assert.Len(t, Top(rules, 0), 4)
	assert.Equal(t, "a -> b", rules[0].Description(), "input is not reordered")
	assert.Equal(t, Top(rules, 10), Top(rules, 10))
}

func TestParseMetric(t *testing.T) {
	m, err := ParseMetric(" Lift ")
	require.NoError(t, err)
	assert.Equal(t, MetricLift, m)

	_, err = ParseMetric("zhangs_metric")
	assert.Error(t, err)
}

func TestCombinations(t *testing.T) {
	var got [][]int
	combinations(4, 2, func(idx []int) {
		got = append(got, append([]int(nil), idx...))
	})
	assert.Equal(t, [][]int{{0, 1}, {0, 2}, {0, 3}, {1, 2}, {1, 3}, {2, 3}}, got)
}

func randomMatrix(rng *rand.Rand, rows, items int) *basket.Matrix {
	names := make([]string, items)
	for i := range names {
		names[i] = string(rune('A' + i))
	}
	txs := make([][]string, rows)
	for i := range txs {
		for j, name := range names {
			// lower-indexed items are more popular
			if rng.Float64() < 0.6/float64(j+1)+0.05 {
				txs[i] = append(txs[i], name)
			}
		}
	}
	return basket.NewMatrix(txs)
}
