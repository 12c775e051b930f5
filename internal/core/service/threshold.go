package service

import (
	"cmp"
	"math"
	"slices"
	"time"

	"github.com/rl1809/kanban-flow/internal/core/domain"
)

// equalityEpsilon is the tolerance of "=" rules, in the rule's own unit.
const equalityEpsilon = 0.01

// AppliedRule returns the single rule that applies to item at now, or nil.
//
// All rules whose condition holds are ranked by severity: ">" and ">=" rules
// rank by their threshold, "<" and "<=" rules by the negated threshold, "="
// rules are neutral. Ties go to the lower priority number. Rule order in the
// slice never matters.
func AppliedRule(item *domain.Item, rules []domain.ThresholdRule, now time.Time) *domain.ThresholdRule {
	if item == nil || len(rules) == 0 || item.ColumnEnteredAt.IsZero() {
		return nil
	}

	elapsed := now.Sub(item.ColumnEnteredAt)
	if elapsed < 0 {
		elapsed = 0
	}
	elapsedMillis := float64(elapsed.Milliseconds())

	type candidate struct {
		rule     domain.ThresholdRule
		severity float64
	}
	var passing []candidate
	for _, rule := range rules {
		if !ruleMatches(rule, elapsedMillis) {
			continue
		}
		passing = append(passing, candidate{rule: rule, severity: severity(rule)})
	}
	if len(passing) == 0 {
		return nil
	}

	slices.SortStableFunc(passing, func(a, b candidate) int {
		if c := cmp.Compare(b.severity, a.severity); c != 0 {
			return c
		}
		return cmp.Compare(a.rule.Priority, b.rule.Priority)
	})

	applied := passing[0].rule
	return &applied
}

func ruleMatches(rule domain.ThresholdRule, elapsedMillis float64) bool {
	unitMillis := float64(rule.Unit.Duration().Milliseconds())
	if unitMillis == 0 || math.IsNaN(rule.Value) || math.IsInf(rule.Value, 0) {
		return false
	}
	elapsed := elapsedMillis / unitMillis

	switch rule.Operator {
	case domain.OperatorGreater:
		return elapsed > rule.Value
	case domain.OperatorGreaterEqual:
		return elapsed >= rule.Value
	case domain.OperatorLess:
		return elapsed < rule.Value
	case domain.OperatorLessEqual:
		return elapsed <= rule.Value
	case domain.OperatorEqual:
		return math.Abs(elapsed-rule.Value) <= equalityEpsilon
	}
	return false
}

func severity(rule domain.ThresholdRule) float64 {
	switch rule.Operator {
	case domain.OperatorGreater, domain.OperatorGreaterEqual:
		return rule.ThresholdMillis()
	case domain.OperatorLess, domain.OperatorLessEqual:
		return -rule.ThresholdMillis()
	}
	return 0
}

// ThresholdEvaluator binds AppliedRule to a clock.
type ThresholdEvaluator struct {
	clock Clock
}

func NewThresholdEvaluator(clock Clock) *ThresholdEvaluator {
	if clock == nil {
		clock = SystemClock
	}
	return &ThresholdEvaluator{clock: clock}
}

func (e *ThresholdEvaluator) Evaluate(item *domain.Item, rules []domain.ThresholdRule) *domain.ThresholdRule {
	return AppliedRule(item, rules, e.clock.Now())
}
