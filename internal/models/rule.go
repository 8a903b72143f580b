// Package models defines the core domain entities for rulesweep.
// These models represent mined itemsets, association rules, raw transaction rows, and the
// per-sweep-point records that make up a summary table.
//
// Terminology:
//   - Itemset: a set of item identifiers with the fraction of transactions containing all of them.
//   - Rule: antecedent => consequent, two disjoint non-empty itemsets, with interest metrics.
//   - Sweep point: one threshold combination evaluated by a driver.
package models

import (
	"errors"
	"math"
	"strings"
)

// Rule is a single association rule antecedent => consequent.
// Items within Antecedent and Consequent are kept sorted.
type Rule struct {
	Antecedent        []string `json:"antecedents"`
	Consequent        []string `json:"consequents"`
	AntecedentSupport float64  `json:"antecedent_support"`
	ConsequentSupport float64  `json:"consequent_support"`
	Support           float64  `json:"support"`
	Confidence        float64  `json:"confidence"`
	Lift              float64  `json:"lift"`
	Leverage          float64  `json:"leverage"`
	Conviction        float64  `json:"conviction"` // +Inf when confidence is 1
}

// RuleSet is a collection of rules mined at one support threshold.
type RuleSet []Rule

// Description returns a human-readable form such as "A, B -> C".
func (r Rule) Description() string {
	return strings.Join(r.Antecedent, ", ") + " -> " + strings.Join(r.Consequent, ", ")
}

// Items returns every item referenced by the rule, antecedent first.
func (r Rule) Items() []string {
	items := make([]string, 0, len(r.Antecedent)+len(r.Consequent))
	items = append(items, r.Antecedent...)
	return append(items, r.Consequent...)
}

// Validate checks that all rule fields are valid
func (r *Rule) Validate() error {
	if len(r.Antecedent) == 0 {
		return errors.New("antecedent must not be empty")
	}
	if len(r.Consequent) == 0 {
		return errors.New("consequent must not be empty")
	}
	seen := make(map[string]bool, len(r.Antecedent))
	for _, item := range r.Antecedent {
		seen[item] = true
	}
	for _, item := range r.Consequent {
		if seen[item] {
			return errors.New("antecedent and consequent must be disjoint")
		}
	}
	if !inUnit(r.Support) {
		return errors.New("support must be between 0.0 and 1.0")
	}
	if !inUnit(r.Confidence) {
		return errors.New("confidence must be between 0.0 and 1.0")
	}
	if math.IsNaN(r.Lift) || r.Lift < 0 {
		return errors.New("lift must not be negative")
	}
	return nil
}

// Supports returns the support column of the rule set.
func (rs RuleSet) Supports() []float64 {
	return rs.column(func(r Rule) float64 { return r.Support })
}

// Confidences returns the confidence column of the rule set.
func (rs RuleSet) Confidences() []float64 {
	return rs.column(func(r Rule) float64 { return r.Confidence })
}

// Lifts returns the lift column of the rule set.
func (rs RuleSet) Lifts() []float64 {
	return rs.column(func(r Rule) float64 { return r.Lift })
}

func (rs RuleSet) column(f func(Rule) float64) []float64 {
	out := make([]float64, len(rs))
	for i, r := range rs {
		out[i] = f(r)
	}
	return out
}

func inUnit(v float64) bool {
	return !math.IsNaN(v) && v >= 0.0 && v <= 1.0
}
