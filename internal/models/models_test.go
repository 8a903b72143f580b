package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRuleValidate(t *testing.T) {
	valid := func() Rule {
		return Rule{
			Antecedent: []string{"A"},
			Consequent: []string{"B"},
			Support:    0.5,
			Confidence: 0.8,
			Lift:       1.6,
		}
	}

	tests := []struct {
		name    string
		mutate  func(r *Rule)
		wantErr bool
	}{
		{name: "valid rule", mutate: func(r *Rule) {}, wantErr: false},
		{name: "empty antecedent", mutate: func(r *Rule) { r.Antecedent = nil }, wantErr: true},
		{name: "empty consequent", mutate: func(r *Rule) { r.Consequent = []string{} }, wantErr: true},
		{name: "overlapping sides", mutate: func(r *Rule) { r.Consequent = []string{"A", "C"} }, wantErr: true},
		{name: "support above one", mutate: func(r *Rule) { r.Support = 1.2 }, wantErr: true},
		{name: "negative confidence", mutate: func(r *Rule) { r.Confidence = -0.1 }, wantErr: true},
		{name: "negative lift", mutate: func(r *Rule) { r.Lift = -1 }, wantErr: true},
		{name: "NaN lift", mutate: func(r *Rule) { r.Lift = math.NaN() }, wantErr: true},
		{name: "independence lift", mutate: func(r *Rule) { r.Lift = 1.0 }, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid()
			tt.mutate(&r)
			err := r.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRuleDescription(t *testing.T) {
	r := Rule{Antecedent: []string{"JAM", "TEA"}, Consequent: []string{"SCONE"}}
	assert.Equal(t, "JAM, TEA -> SCONE", r.Description())
	assert.Equal(t, []string{"JAM", "TEA", "SCONE"}, r.Items())
}

func TestRuleSetColumns(t *testing.T) {
	rs := RuleSet{
		{Support: 0.1, Confidence: 0.2, Lift: 1.1},
		{Support: 0.3, Confidence: 0.4, Lift: 2.5},
	}
	assert.Equal(t, []float64{0.1, 0.3}, rs.Supports())
	assert.Equal(t, []float64{0.2, 0.4}, rs.Confidences())
	assert.Equal(t, []float64{1.1, 2.5}, rs.Lifts())
	assert.Empty(t, RuleSet(nil).Lifts())
}

func TestItemsetsCountBySize(t *testing.T) {
	sets := Itemsets{
		{Items: []string{"A"}, Support: 1},
		{Items: []string{"B"}, Support: 1},
		{Items: []string{"A", "B"}, Support: 1},
	}
	singles, multi := sets.CountBySize()
	assert.Equal(t, 2, singles)
	assert.Equal(t, 1, multi)

	empty := Itemset{}
	assert.Error(t, empty.Validate())
}

func TestSensitivityRecordValidate(t *testing.T) {
	nan := math.NaN()
	empty := SensitivityRecord{
		MinSupport:     0.9,
		SupportMean:    nan,
		ConfidenceMean: nan,
		LiftMean:       nan,
	}
	assert.NoError(t, empty.Validate())

	zeroed := empty
	zeroed.SupportMean = 0
	assert.Error(t, zeroed.Validate(), "zero statistics must not stand in for missing data")

	clustered := empty
	clustered.NumClusters = 1
	assert.Error(t, clustered.Validate())
}

func TestRecordFields(t *testing.T) {
	g := GridRecord{MinSupport: 0.02, MinConfidence: 0.4, MinLift: 1.5, FrequentItemsets: 3, RulesAfterFilter: 7}
	fields := g.Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	assert.Equal(t, []string{"min_support", "min_confidence", "min_lift", "frequent_items", "frequent_itemsets", "rules_after_filter"}, names)
	assert.True(t, fields[5].Integer)
	assert.Equal(t, 7.0, fields[5].Value)
	assert.NoError(t, g.Validate())

	s := SensitivityRecord{}
	assert.Len(t, s.Fields(), 12)
}

func TestRunPointValidate(t *testing.T) {
	p := RunPoint{Point: "s0p02", MinSupport: 0.02, MinConfidence: 0.3, MinLift: 1.2, FrequentItemsets: 4, RulesAfterFilter: 6}
	assert.NoError(t, p.Validate())

	unnamed := p
	unnamed.Point = ""
	assert.Error(t, unnamed.Validate())

	support := p
	support.MinSupport = 1.5
	assert.Error(t, support.Validate())

	lift := p
	lift.MinLift = -1
	assert.Error(t, lift.Validate())

	counts := p
	counts.RulesAfterFilter = -1
	assert.Error(t, counts.Validate())
}
