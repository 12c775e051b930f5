package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/kanban-flow/internal/core/domain"
)

func rule(id string, op domain.Operator, value float64, unit domain.TimeUnit, priority int) domain.ThresholdRule {
	return domain.ThresholdRule{ID: id, Operator: op, Value: value, Unit: unit, Priority: priority}
}

func itemEntered(at time.Time) *domain.Item {
	return &domain.Item{ID: "i", ColumnEnteredAt: at}
}

func TestAppliedRule_Scenarios(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	elapsed150 := itemEntered(now.Add(-150 * time.Minute))

	tests := []struct {
		name   string
		item   *domain.Item
		rules  []domain.ThresholdRule
		wantID string
	}{
		{
			name: "larger > threshold wins regardless of priority",
			item: elapsed150,
			rules: []domain.ThresholdRule{
				rule("r120", domain.OperatorGreater, 120, domain.UnitMinutes, 1),
				rule("r10", domain.OperatorGreater, 10, domain.UnitMinutes, 2),
			},
			wantID: "r120",
		},
		{
			name: "larger > threshold wins when configured last with worse priority",
			item: elapsed150,
			rules: []domain.ThresholdRule{
				rule("r10", domain.OperatorGreater, 10, domain.UnitMinutes, 1),
				rule("r120", domain.OperatorGreater, 120, domain.UnitMinutes, 9),
			},
			wantID: "r120",
		},
		{
			name:   "single < rule passes",
			item:   elapsed150,
			rules:  []domain.ThresholdRule{rule("lt200", domain.OperatorLess, 200, domain.UnitMinutes, 1)},
			wantID: "lt200",
		},
		{
			name: "smaller < threshold is more severe",
			item: itemEntered(now.Add(-5 * time.Minute)),
			rules: []domain.ThresholdRule{
				rule("lt60", domain.OperatorLess, 60, domain.UnitMinutes, 1),
				rule("lt10", domain.OperatorLess, 10, domain.UnitMinutes, 2),
			},
			wantID: "lt10",
		},
		{
			name: "> outranks = and <",
			item: elapsed150,
			rules: []domain.ThresholdRule{
				rule("lt200", domain.OperatorLess, 200, domain.UnitMinutes, 1),
				rule("eq", domain.OperatorEqual, 2.5, domain.UnitHours, 1),
				rule("gt1h", domain.OperatorGreater, 1, domain.UnitHours, 5),
			},
			wantID: "gt1h",
		},
		{
			name: "equal severity falls back to lower priority",
			item: elapsed150,
			rules: []domain.ThresholdRule{
				rule("p3", domain.OperatorGreater, 2, domain.UnitHours, 3),
				rule("p1", domain.OperatorGreaterEqual, 120, domain.UnitMinutes, 1),
			},
			wantID: "p1",
		},
		{
			name:   "= matches within epsilon",
			item:   elapsed150,
			rules:  []domain.ThresholdRule{rule("eq", domain.OperatorEqual, 2.5, domain.UnitHours, 1)},
			wantID: "eq",
		},
		{
			name:   "days unit",
			item:   itemEntered(now.Add(-50 * time.Hour)),
			rules:  []domain.ThresholdRule{rule("d2", domain.OperatorGreaterEqual, 2, domain.UnitDays, 1)},
			wantID: "d2",
		},
		{
			name:   "<= passes on the boundary",
			item:   itemEntered(now.Add(-30 * time.Minute)),
			rules:  []domain.ThresholdRule{rule("le30", domain.OperatorLessEqual, 30, domain.UnitMinutes, 1)},
			wantID: "le30",
		},
		{
			name:   "no rule passes",
			item:   elapsed150,
			rules:  []domain.ThresholdRule{rule("gt3h", domain.OperatorGreater, 3, domain.UnitHours, 1)},
			wantID: "",
		},
		{
			name:   "= outside epsilon",
			item:   elapsed150,
			rules:  []domain.ThresholdRule{rule("eq", domain.OperatorEqual, 2.4, domain.UnitHours, 1)},
			wantID: "",
		},
		{
			name:   "no rules",
			item:   elapsed150,
			wantID: "",
		},
		{
			name:   "unset column entry time",
			item:   &domain.Item{ID: "i"},
			rules:  []domain.ThresholdRule{rule("lt1", domain.OperatorLess, 1, domain.UnitMinutes, 1)},
			wantID: "",
		},
		{
			name:   "entry time in the future clamps to zero",
			item:   itemEntered(now.Add(time.Hour)),
			rules:  []domain.ThresholdRule{rule("lt1", domain.OperatorLess, 1, domain.UnitMinutes, 1)},
			wantID: "lt1",
		},
		{
			name: "unknown operator and unit never match",
			item: elapsed150,
			rules: []domain.ThresholdRule{
				rule("op", domain.Operator("!="), 1, domain.UnitMinutes, 1),
				rule("unit", domain.OperatorGreater, 1, domain.TimeUnit("weeks"), 1),
			},
			wantID: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AppliedRule(tt.item, tt.rules, now)
			if tt.wantID == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.wantID, got.ID)
		})
	}
}

func TestAppliedRule_NeverReturnsFailingRule(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rules := []domain.ThresholdRule{
		rule("gt10m", domain.OperatorGreater, 10, domain.UnitMinutes, 1),
		rule("gt2h", domain.OperatorGreater, 2, domain.UnitHours, 1),
		rule("lt30m", domain.OperatorLess, 30, domain.UnitMinutes, 2),
		rule("le1d", domain.OperatorLessEqual, 1, domain.UnitDays, 3),
		rule("eq1h", domain.OperatorEqual, 1, domain.UnitHours, 4),
	}

	for minutes := 0; minutes <= 3*24*60; minutes += 7 {
		elapsed := time.Duration(minutes) * time.Minute
		got := AppliedRule(itemEntered(now.Add(-elapsed)), rules, now)
		if got == nil {
			continue
		}
		assert.True(t, ruleMatches(*got, float64(elapsed.Milliseconds())),
			"rule %s returned at %d minutes", got.ID, minutes)
	}
}

func TestAppliedRule_OrderIndependent(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	item := itemEntered(now.Add(-3 * time.Hour))
	rules := []domain.ThresholdRule{
		rule("a", domain.OperatorGreater, 1, domain.UnitHours, 2),
		rule("b", domain.OperatorGreater, 2, domain.UnitHours, 2),
		rule("c", domain.OperatorGreaterEqual, 120, domain.UnitMinutes, 1),
		rule("d", domain.OperatorLess, 1, domain.UnitDays, 1),
	}
	reversed := []domain.ThresholdRule{rules[3], rules[2], rules[1], rules[0]}

	first := AppliedRule(item, rules, now)
	second := AppliedRule(item, reversed, now)
	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.Equal(t, "c", first.ID)
	assert.Equal(t, first.ID, second.ID)
}

func TestThresholdEvaluator_UsesClock(t *testing.T) {
	clock := newFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	eval := NewThresholdEvaluator(clock)
	item := itemEntered(clock.Now())
	rules := []domain.ThresholdRule{rule("gt1h", domain.OperatorGreater, 1, domain.UnitHours, 1)}

	assert.Nil(t, eval.Evaluate(item, rules))

	clock.Advance(61 * time.Minute)
	got := eval.Evaluate(item, rules)
	require.NotNil(t, got)
	assert.Equal(t, "gt1h", got.ID)
}
