package models

import (
	"errors"
	"time"
)

// RunStatus is the lifecycle state of a recorded sweep run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one recorded driver invocation.
type Run struct {
	ID         string                 `json:"id"`
	Mode       string                 `json:"mode"`
	Status     RunStatus              `json:"status"`
	Dataset    string                 `json:"dataset"`
	Parameters map[string]interface{} `json:"parameters"`
	Points     int                    `json:"points"`
	Degraded   int                    `json:"degraded"`
	CreatedAt  time.Time              `json:"created_at"`
	UpdatedAt  time.Time              `json:"updated_at"`
}

// RunPoint is the stored summary row of one sweep point. Cluster fields are
// zero for grid runs.
type RunPoint struct {
	RunID              string  `json:"run_id"`
	Seq                int     `json:"seq"`
	Point              string  `json:"point"`
	MinSupport         float64 `json:"min_support"`
	MinConfidence      float64 `json:"min_confidence"`
	MinLift            float64 `json:"min_lift"`
	FrequentItemsets   int     `json:"frequent_itemsets"`
	RulesAfterFilter   int     `json:"rules_after_filter"`
	NumClusters        int     `json:"rules_num_clusters"`
	LargestClusterSize int     `json:"rules_largest_cluster_size"`
	Degraded           bool    `json:"degraded"`
}

// Validate checks that all point fields are valid
func (p *RunPoint) Validate() error {
	if p.Point == "" {
		return errors.New("point name is required")
	}
	if !inUnit(p.MinSupport) || !inUnit(p.MinConfidence) {
		return errors.New("support and confidence thresholds must be between 0.0 and 1.0")
	}
	if p.MinLift < 0 {
		return errors.New("lift threshold must not be negative")
	}
	if p.FrequentItemsets < 0 || p.RulesAfterFilter < 0 {
		return errors.New("counts must not be negative")
	}
	return nil
}
