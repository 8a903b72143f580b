package miner

import (
	"math"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/rewired-gh/rulesweep/internal/models"
)

// ErrNoEligibleItemsets describes the NoEligibleItemsets generation outcome.
var ErrNoEligibleItemsets = eris.New("no frequent itemsets eligible for rule generation")

// Metric selects the rule metric used as the generation threshold.
type Metric string

const (
	MetricSupport    Metric = "support"
	MetricConfidence Metric = "confidence"
	MetricLift       Metric = "lift"
	MetricLeverage   Metric = "leverage"
	MetricConviction Metric = "conviction"
)

// ParseMetric validates a metric name.
func ParseMetric(s string) (Metric, error) {
	switch m := Metric(strings.ToLower(strings.TrimSpace(s))); m {
	case MetricSupport, MetricConfidence, MetricLift, MetricLeverage, MetricConviction:
		return m, nil
	}
	return "", eris.Errorf("miner: unknown metric %q", s)
}

func (m Metric) value(r models.Rule) float64 {
	switch m {
	case MetricSupport:
		return r.Support
	case MetricConfidence:
		return r.Confidence
	case MetricLeverage:
		return r.Leverage
	case MetricConviction:
		return r.Conviction
	default:
		return r.Lift
	}
}

// Outcome is the result kind of rule generation.
type Outcome int

const (
	// Generated means generation ran; the rule set may still be empty.
	Generated Outcome = iota
	// NoEligibleItemsets means there were no frequent itemsets to generate from.
	NoEligibleItemsets
)

func (o Outcome) String() string {
	if o == NoEligibleItemsets {
		return "no_eligible_itemsets"
	}
	return "generated"
}

// Generation is the typed result of GenerateRules.
type Generation struct {
	Outcome Outcome
	Rules   models.RuleSet
}

// Err returns ErrNoEligibleItemsets for the NoEligibleItemsets outcome.
func (g Generation) Err() error {
	if g.Outcome == NoEligibleItemsets {
		return ErrNoEligibleItemsets
	}
	return nil
}

// GenerateRules derives every rule antecedent => consequent from the
// multi-item itemsets whose metric is at least minThreshold. Antecedents are
// enumerated from largest to smallest. Rules whose antecedent or consequent
// support is missing from itemsets are skipped.
func (a *Apriori) GenerateRules(itemsets models.Itemsets, metric Metric, minThreshold float64) Generation {
	if len(itemsets) == 0 {
		return Generation{Outcome: NoEligibleItemsets, Rules: models.RuleSet{}}
	}

	supports := make(map[string]float64, len(itemsets))
	for _, s := range itemsets {
		supports[itemsKey(s.Items)] = s.Support
	}

	rules := models.RuleSet{}
	for _, set := range itemsets {
		k := len(set.Items)
		if k < 2 {
			continue
		}
		for size := k - 1; size >= 1; size-- {
			combinations(k, size, func(idx []int) {
				ante, cons := split(set.Items, idx)
				sA, okA := supports[itemsKey(ante)]
				sC, okC := supports[itemsKey(cons)]
				if !okA || !okC || sA == 0 || sC == 0 {
					return
				}
				r := newRule(ante, cons, set.Support, sA, sC)
				if metric.value(r) >= minThreshold {
					rules = append(rules, r)
				}
			})
		}
	}
	return Generation{Outcome: Generated, Rules: rules}
}

func newRule(ante, cons []string, support, sA, sC float64) models.Rule {
	confidence := support / sA
	conviction := math.Inf(1)
	if confidence < 1 {
		conviction = (1 - sC) / (1 - confidence)
	}
	return models.Rule{
		Antecedent:        ante,
		Consequent:        cons,
		AntecedentSupport: sA,
		ConsequentSupport: sC,
		Support:           support,
		Confidence:        confidence,
		Lift:              confidence / sC,
		Leverage:          support - sA*sC,
		Conviction:        conviction,
	}
}

// split partitions items into the positions listed in idx (sorted) and the rest.
func split(items []string, idx []int) (in, out []string) {
	in = make([]string, 0, len(idx))
	out = make([]string, 0, len(items)-len(idx))
	p := 0
	for i, item := range items {
		if p < len(idx) && idx[p] == i {
			in = append(in, item)
			p++
		} else {
			out = append(out, item)
		}
	}
	return in, out
}

// combinations calls fn with every size-r subset of 0..n-1 in lexicographic order.
func combinations(n, r int, fn func([]int)) {
	idx := make([]int, r)
	for i := range idx {
		idx[i] = i
	}
	for {
		fn(idx)
		i := r - 1
		for i >= 0 && idx[i] == n-r+i {
			i--
		}
		if i < 0 {
			return
		}
		idx[i]++
		for j := i + 1; j < r; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}

// Filter keeps the rules meeting all three thresholds. It never grows the set.
func Filter(rules models.RuleSet, minSupport, minConfidence, minLift float64) models.RuleSet {
	out := models.RuleSet{}
	for _, r := range rules {
		if r.Support >= minSupport && r.Confidence >= minConfidence && r.Lift >= minLift {
			out = append(out, r)
		}
	}
	return out
}

// Top returns up to n rules ordered by descending lift, then descending
// confidence. Remaining ties keep their input order. n <= 0 returns all rules.
func Top(rules models.RuleSet, n int) models.RuleSet {
	sorted := make(models.RuleSet, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Lift != sorted[j].Lift {
			return sorted[i].Lift > sorted[j].Lift
		}
		return sorted[i].Confidence > sorted[j].Confidence
	})
	if n > 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
