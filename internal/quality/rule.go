package quality

import (
	"fmt"
	"time"
)

// CheckKind is the closed set of quality check types the engine can run.
type CheckKind string

const (
	CheckNullRatio            CheckKind = "null_check"
	CheckRange                CheckKind = "range_check"
	CheckPattern              CheckKind = "pattern_check"
	CheckUniqueness           CheckKind = "uniqueness"
	CheckReferentialIntegrity CheckKind = "referential_integrity"
	CheckCustomSQL            CheckKind = "custom_sql"
)

func (k CheckKind) Valid() bool {
	switch k {
	case CheckNullRatio, CheckRange, CheckPattern, CheckUniqueness, CheckReferentialIntegrity, CheckCustomSQL:
		return true
	}
	return false
}

// Severity ranks how bad a failing check is.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityCritical, SeverityWarning, SeverityInfo:
		return true
	}
	return false
}

// Status describes how a check run concluded.
type Status string

const (
	StatusPassed         Status = "passed"
	StatusFailed         Status = "failed"
	StatusNotImplemented Status = "not_implemented"
)

// Overall quality grades derived from aggregate scores.
const (
	GradeExcellent = "EXCELLENT"
	GradeGood      = "GOOD"
	GradeFair      = "FAIR"
	GradePoor      = "POOR"
	GradeCritical  = "CRITICAL"
)

// Rule is a persisted quality rule bound to one asset, optionally scoped to
// a single column.
type Rule struct {
	ID           string    `json:"rule_id"`
	Name         string    `json:"rule_name"`
	Description  string    `json:"rule_description,omitempty"`
	AssetID      string    `json:"table_id"`
	ColumnName   string    `json:"column_name,omitempty"`
	Kind         CheckKind `json:"rule_type"`
	ConditionSQL string    `json:"condition_sql,omitempty"`
	Threshold    float64   `json:"threshold"`
	Severity     Severity  `json:"severity"`
	Enabled      bool      `json:"enabled"`
	CreatedDate  time.Time `json:"created_date"`
	LastModified time.Time `json:"last_modified"`
}

// Validate checks the invariants a registered rule must satisfy.
func (r *Rule) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("rule id is required")
	}
	if r.Name == "" {
		return fmt.Errorf("rule name is required")
	}
	if r.AssetID == "" {
		return fmt.Errorf("rule %s: asset id is required", r.ID)
	}
	if !r.Kind.Valid() {
		return fmt.Errorf("rule %s: unknown check kind %q", r.ID, r.Kind)
	}
	if !r.Severity.Valid() {
		return fmt.Errorf("rule %s: unknown severity %q", r.ID, r.Severity)
	}
	if r.Threshold < 0 || r.Threshold > 100 {
		return fmt.Errorf("rule %s: threshold %.2f out of range [0, 100]", r.ID, r.Threshold)
	}
	if r.Kind == CheckCustomSQL && r.ConditionSQL == "" {
		return fmt.Errorf("rule %s: custom_sql rule needs condition_sql", r.ID)
	}
	return nil
}

// Result is the outcome of one check execution.
type Result struct {
	CheckID    string                 `json:"check_id"`
	RuleID     string                 `json:"rule_id"`
	AssetID    string                 `json:"table_id"`
	RuleName   string                 `json:"rule_name"`
	Kind       CheckKind              `json:"rule_type"`
	Severity   Severity               `json:"severity"`
	Passed     bool                   `json:"passed"`
	Score      float64                `json:"score"`
	Threshold  float64                `json:"threshold"`
	Status     Status                 `json:"status"`
	Message    string                 `json:"message,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	ExecutedAt time.Time              `json:"executed_at"`
	DurationMS int64                  `json:"execution_duration_ms"`
}
