package models

import (
	"errors"
	"math"
)

// Field is one named cell of a summary row. Integer fields hold whole counts;
// NaN float fields mark undefined statistics.
type Field struct {
	Name    string
	Value   float64
	Integer bool
}

// Record is a summary row produced for one sweep point.
type Record interface {
	Fields() []Field
}

// GridRecord is the summary row of one (support, confidence, lift) combination.
type GridRecord struct {
	MinSupport       float64 `json:"min_support"`
	MinConfidence    float64 `json:"min_confidence"`
	MinLift          float64 `json:"min_lift"`
	FrequentItems    int     `json:"frequent_items"`
	FrequentItemsets int     `json:"frequent_itemsets"`
	RulesAfterFilter int     `json:"rules_after_filter"`
}

// Fields implements Record.
func (r GridRecord) Fields() []Field {
	return []Field{
		{Name: "min_support", Value: r.MinSupport},
		{Name: "min_confidence", Value: r.MinConfidence},
		{Name: "min_lift", Value: r.MinLift},
		{Name: "frequent_items", Value: float64(r.FrequentItems), Integer: true},
		{Name: "frequent_itemsets", Value: float64(r.FrequentItemsets), Integer: true},
		{Name: "rules_after_filter", Value: float64(r.RulesAfterFilter), Integer: true},
	}
}

// Validate checks that all record fields are valid
func (r *GridRecord) Validate() error {
	if !inUnit(r.MinSupport) || !inUnit(r.MinConfidence) {
		return errors.New("support and confidence thresholds must be between 0.0 and 1.0")
	}
	if r.MinLift < 0 {
		return errors.New("lift threshold must not be negative")
	}
	if r.FrequentItems < 0 || r.FrequentItemsets < 0 || r.RulesAfterFilter < 0 {
		return errors.New("counts must not be negative")
	}
	return nil
}

// SensitivityRecord is the summary row of one support value in a sensitivity sweep.
// Statistics are NaN when no rules survive filtering.
type SensitivityRecord struct {
	MinSupport         float64 `json:"min_support"`
	FrequentItems      int     `json:"frequent_items"`
	FrequentItemsets   int     `json:"frequent_itemsets"`
	RulesAfterFilter   int     `json:"rules_after_filter"`
	NumClusters        int     `json:"rules_num_clusters"`
	LargestClusterSize int     `json:"rules_largest_cluster_size"`
	SupportMean        float64 `json:"support_mean"`
	SupportMedian      float64 `json:"support_median"`
	ConfidenceMean     float64 `json:"confidence_mean"`
	ConfidenceMedian   float64 `json:"confidence_median"`
	LiftMean           float64 `json:"lift_mean"`
	LiftMedian         float64 `json:"lift_median"`
}

// Fields implements Record.
func (r SensitivityRecord) Fields() []Field {
	return []Field{
		{Name: "min_support", Value: r.MinSupport},
		{Name: "frequent_items", Value: float64(r.FrequentItems), Integer: true},
		{Name: "frequent_itemsets", Value: float64(r.FrequentItemsets), Integer: true},
		{Name: "rules_after_filter", Value: float64(r.RulesAfterFilter), Integer: true},
		{Name: "rules_num_clusters", Value: float64(r.NumClusters), Integer: true},
		{Name: "rules_largest_cluster_size", Value: float64(r.LargestClusterSize), Integer: true},
		{Name: "support_mean", Value: r.SupportMean},
		{Name: "support_median", Value: r.SupportMedian},
		{Name: "confidence_mean", Value: r.ConfidenceMean},
		{Name: "confidence_median", Value: r.ConfidenceMedian},
		{Name: "lift_mean", Value: r.LiftMean},
		{Name: "lift_median", Value: r.LiftMedian},
	}
}

// Validate checks that all record fields are valid
func (r *SensitivityRecord) Validate() error {
	if !inUnit(r.MinSupport) {
		return errors.New("support threshold must be between 0.0 and 1.0")
	}
	if r.RulesAfterFilter == 0 {
		if r.NumClusters != 0 || r.LargestClusterSize != 0 {
			return errors.New("a point without rules must have no clusters")
		}
		if !math.IsNaN(r.SupportMean) || !math.IsNaN(r.ConfidenceMean) || !math.IsNaN(r.LiftMean) {
			return errors.New("a point without rules must report undefined statistics")
		}
	}
	if r.LargestClusterSize > 0 && r.NumClusters == 0 {
		return errors.New("largest cluster size requires at least one cluster")
	}
	return nil
}
