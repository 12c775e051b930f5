package domain

import "time"

type Operator string

const (
	OperatorGreater      Operator = ">"
	OperatorLess         Operator = "<"
	OperatorEqual        Operator = "="
	OperatorGreaterEqual Operator = ">="
	OperatorLessEqual    Operator = "<="
)

type TimeUnit string

const (
	UnitMinutes TimeUnit = "minutes"
	UnitHours   TimeUnit = "hours"
	UnitDays    TimeUnit = "days"
)

// Duration returns the length of one unit, or zero for unknown units.
func (u TimeUnit) Duration() time.Duration {
	switch u {
	case UnitMinutes:
		return time.Minute
	case UnitHours:
		return time.Hour
	case UnitDays:
		return 24 * time.Hour
	}
	return 0
}

// ThresholdRule is an SLA condition on time spent in the current column.
// Color is presentation only.
type ThresholdRule struct {
	ID       string   `json:"id"`
	Operator Operator `json:"operator" validate:"required,oneof=> < = >= <="`
	Value    float64  `json:"value" validate:"gte=0"`
	Unit     TimeUnit `json:"unit" validate:"required,oneof=minutes hours days"`
	Priority int      `json:"priority"`
	Color    string   `json:"color,omitempty" validate:"omitempty,max=32"`
}

// ThresholdMillis is the rule value expressed in milliseconds.
func (r ThresholdRule) ThresholdMillis() float64 {
	return r.Value * float64(r.Unit.Duration().Milliseconds())
}
