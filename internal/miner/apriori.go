// Package miner implements the rule miner: level-wise Apriori frequent itemset
// mining over a basket.Matrix and association rule generation with support,
// confidence, lift, leverage and conviction metrics.
//
// The miner holds no state between calls. Itemsets and rule sets are returned
// as values so each sweep point owns the rules it filters.
package miner

import (
	"sort"
	"strconv"
	"strings"

	"github.com/rewired-gh/rulesweep/internal/basket"
	"github.com/rewired-gh/rulesweep/internal/models"
)

// Options configures mining.
type Options struct {
	// MaxLen caps itemset length. Zero means unlimited.
	MaxLen int
}

// Apriori mines a fixed, read-only transaction matrix.
type Apriori struct {
	matrix *basket.Matrix
	opts   Options
}

// New creates a miner over m.
func New(m *basket.Matrix, opts Options) *Apriori {
	return &Apriori{matrix: m, opts: opts}
}

// MineFrequentItemsets returns every itemset whose support is at least
// minSupport, ordered by length and then lexicographically by item. The result
// is empty, never an error, when nothing qualifies.
func (a *Apriori) MineFrequentItemsets(minSupport float64) models.Itemsets {
	m := a.matrix
	if m.NumTransactions() == 0 {
		return models.Itemsets{}
	}

	var result models.Itemsets
	var level [][]int
	for j := 0; j < m.NumItems(); j++ {
		if supp := m.Support(j); supp >= minSupport {
			level = append(level, []int{j})
			result = append(result, a.itemset([]int{j}, supp))
		}
	}

	for k := 2; len(level) > 1; k++ {
		if a.opts.MaxLen > 0 && k > a.opts.MaxLen {
			break
		}
		frequent := make(map[string]bool, len(level))
		for _, cols := range level {
			frequent[colsKey(cols)] = true
		}

		var next [][]int
		for i := 0; i < len(level); i++ {
			for j := i + 1; j < len(level); j++ {
				cand, ok := join(level[i], level[j])
				if !ok {
					// level is sorted, so no later j shares the prefix either
					break
				}
				if !allSubsetsFrequent(cand, frequent) {
					continue
				}
				if supp := m.Support(cand...); supp >= minSupport {
					next = append(next, cand)
					result = append(result, a.itemset(cand, supp))
				}
			}
		}
		level = next
	}

	if result == nil {
		return models.Itemsets{}
	}
	return result
}

func (a *Apriori) itemset(cols []int, support float64) models.Itemset {
	items := make([]string, len(cols))
	for i, j := range cols {
		items[i] = a.matrix.Item(j)
	}
	return models.Itemset{Items: items, Support: support}
}

// join merges two sorted (k-1)-itemsets sharing their first k-2 columns.
func join(a, b []int) ([]int, bool) {
	n := len(a)
	for i := 0; i < n-1; i++ {
		if a[i] != b[i] {
			return nil, false
		}
	}
	out := make([]int, n+1)
	copy(out, a)
	out[n] = b[n-1]
	return out, true
}

func allSubsetsFrequent(cand []int, frequent map[string]bool) bool {
	sub := make([]int, 0, len(cand)-1)
	for skip := range cand {
		sub = sub[:0]
		for i, c := range cand {
			if i != skip {
				sub = append(sub, c)
			}
		}
		if !frequent[colsKey(sub)] {
			return false
		}
	}
	return true
}

func colsKey(cols []int) string {
	var sb strings.Builder
	for i, c := range cols {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(c))
	}
	return sb.String()
}

func itemsKey(items []string) string {
	sorted := make([]string, len(items))
	copy(sorted, items)
	sort.Strings(sorted)
	return strings.Join(sorted, "\x00")
}
