package basket

import (
	"math/bits"
	"sort"
)

// Matrix is the boolean transaction x item matrix. Columns are sorted by item
// identifier and stored as bitsets over transactions. A Matrix is never mutated
// after construction and is safe for concurrent reads.
type Matrix struct {
	items []string
	index map[string]int
	cols  [][]uint64
	rows  int
}

// NewMatrix encodes transactions given as item lists. Duplicate items within a
// transaction collapse; empty item identifiers are ignored.
func NewMatrix(transactions [][]string) *Matrix {
	seen := make(map[string]bool)
	for _, tx := range transactions {
		for _, item := range tx {
			if item != "" {
				seen[item] = true
			}
		}
	}
	items := make([]string, 0, len(seen))
	for item := range seen {
		items = append(items, item)
	}
	sort.Strings(items)

	m := &Matrix{
		items: items,
		index: make(map[string]int, len(items)),
		cols:  make([][]uint64, len(items)),
		rows:  len(transactions),
	}
	words := (len(transactions) + 63) / 64
	for j, item := range items {
		m.index[item] = j
		m.cols[j] = make([]uint64, words)
	}
	for i, tx := range transactions {
		for _, item := range tx {
			if j, ok := m.index[item]; ok {
				m.cols[j][i/64] |= 1 << (uint(i) % 64)
			}
		}
	}
	return m
}

// NumTransactions returns the number of rows.
func (m *Matrix) NumTransactions() int { return m.rows }

// NumItems returns the number of columns.
func (m *Matrix) NumItems() int { return len(m.items) }

// Item returns the identifier of column j.
func (m *Matrix) Item(j int) string { return m.items[j] }

// Count returns the number of transactions containing every given column.
func (m *Matrix) Count(cols ...int) int {
	if len(cols) == 0 {
		return m.rows
	}
	total := 0
	first := m.cols[cols[0]]
	for w := range first {
		word := first[w]
		for _, j := range cols[1:] {
			word &= m.cols[j][w]
			if word == 0 {
				break
			}
		}
		total += bits.OnesCount64(word)
	}
	return total
}

// Support returns the fraction of transactions containing every given column.
// An empty matrix has zero support for everything.
func (m *Matrix) Support(cols ...int) float64 {
	if m.rows == 0 {
		return 0
	}
	return float64(m.Count(cols...)) / float64(m.rows)
}
