package quality

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/datahubgov/govhub/internal/database"
)

const (
	ruleTable   = "tb_quality_rule"
	resultTable = "tb_quality_check_result"
)

// Engine registers quality rules and executes checks against the governed
// tables, recording results for later aggregation.
type Engine struct {
	db  database.Querier
	log *zap.Logger
}

func NewEngine(db database.Querier, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{db: db, log: logger}
}

// EnsureSchema creates the rule and result tables if they do not exist.
func (e *Engine) EnsureSchema(ctx context.Context) error {
	ruleBody := `
		rule_id VARCHAR(128) NOT NULL PRIMARY KEY,
		rule_name VARCHAR(256) NOT NULL,
		rule_description {TEXT},
		table_id VARCHAR(128) NOT NULL,
		column_name VARCHAR(256),
		rule_type VARCHAR(50) NOT NULL,
		condition_sql {TEXT},
		threshold {FLOAT} NOT NULL,
		severity VARCHAR(20) NOT NULL,
		enabled {BOOL} NOT NULL,
		created_date {DATETIME} NOT NULL,
		last_modified {DATETIME} NOT NULL,
		rule_json {JSON} NOT NULL`
	if err := e.db.CreateTable(ctx, ruleTable, ruleBody); err != nil {
		return fmt.Errorf("ensure rule schema: %w", err)
	}

	resultBody := `
		check_id VARCHAR(128) NOT NULL PRIMARY KEY,
		rule_id VARCHAR(128) NOT NULL,
		table_id VARCHAR(128) NOT NULL,
		rule_name VARCHAR(256) NOT NULL,
		rule_type VARCHAR(50) NOT NULL,
		severity VARCHAR(20) NOT NULL,
		passed {BOOL} NOT NULL,
		score {FLOAT} NOT NULL,
		threshold {FLOAT} NOT NULL,
		status VARCHAR(30) NOT NULL,
		message {TEXT},
		executed_at {DATETIME} NOT NULL,
		execution_duration_ms BIGINT NOT NULL,
		result_json {JSON} NOT NULL`
	if err := e.db.CreateTable(ctx, resultTable, resultBody); err != nil {
		return fmt.Errorf("ensure result schema: %w", err)
	}
	return nil
}

// RegisterRule validates and upserts a rule. Re-registration replaces the
// stored rule.
func (e *Engine) RegisterRule(ctx context.Context, rule *Rule) error {
	if rule == nil {
		return fmt.Errorf("rule is nil")
	}
	now := time.Now().UTC()
	if rule.CreatedDate.IsZero() {
		rule.CreatedDate = now
	}
	rule.LastModified = now
	if err := rule.Validate(); err != nil {
		return err
	}

	snapshot, err := json.Marshal(rule)
	if err != nil {
		return fmt.Errorf("marshal rule %s: %w", rule.ID, err)
	}

	err = e.db.Upsert(ctx, ruleTable,
		[]string{
			"rule_id", "rule_name", "rule_description", "table_id", "column_name",
			"rule_type", "condition_sql", "threshold", "severity", "enabled",
			"created_date", "last_modified", "rule_json",
		},
		[]string{"rule_id"},
		rule.ID, rule.Name, rule.Description, rule.AssetID, rule.ColumnName,
		string(rule.Kind), rule.ConditionSQL, rule.Threshold, string(rule.Severity), rule.Enabled,
		rule.CreatedDate, rule.LastModified, string(snapshot),
	)
	if err != nil {
		return fmt.Errorf("register rule %s: %w", rule.ID, err)
	}

	e.log.Info("registered quality rule",
		zap.String("rule_id", rule.ID), zap.String("table_id", rule.AssetID),
		zap.String("rule_type", string(rule.Kind)))
	return nil
}

// GetRules returns the rules bound to an asset, optionally only enabled ones.
func (e *Engine) GetRules(ctx context.Context, assetID string, enabledOnly bool) ([]*Rule, error) {
	query := "SELECT rule_json FROM tb_quality_rule WHERE table_id = ?"
	args := []interface{}{assetID}
	if enabledOnly {
		query += " AND enabled = ?"
		args = append(args, true)
	}
	query += " ORDER BY rule_id"

	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load rules for asset %s: %w", assetID, err)
	}
	defer rows.Close()

	var rules []*Rule
	for rows.Next() {
		var snapshot string
		if err := rows.Scan(&snapshot); err != nil {
			return nil, fmt.Errorf("scan rule for asset %s: %w", assetID, err)
		}
		var rule Rule
		if err := json.Unmarshal([]byte(snapshot), &rule); err != nil {
			return nil, fmt.Errorf("decode rule for asset %s: %w", assetID, err)
		}
		rules = append(rules, &rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rules for asset %s: %w", assetID, err)
	}
	return rules, nil
}

// Execute runs one rule and returns its result. Execution errors surface as a
// failing result, not an error return, so one broken rule cannot abort a
// batch.
func (e *Engine) Execute(ctx context.Context, rule *Rule) *Result {
	started := time.Now()
	result := &Result{
		CheckID:    uuid.NewString(),
		RuleID:     rule.ID,
		AssetID:    rule.AssetID,
		RuleName:   rule.Name,
		Kind:       rule.Kind,
		Severity:   rule.Severity,
		Threshold:  rule.Threshold,
		ExecutedAt: started.UTC(),
	}

	var (
		score   float64
		details map[string]interface{}
		err     error
	)
	switch rule.Kind {
	case CheckNullRatio:
		score, details, err = e.checkNull(ctx, rule)
	case CheckUniqueness:
		score, details, err = e.checkUniqueness(ctx, rule)
	case CheckCustomSQL:
		score, details, err = e.checkCustomSQL(ctx, rule)
	case CheckRange, CheckPattern, CheckReferentialIntegrity:
		// Not implemented yet; surfaced explicitly instead of silently passing.
		result.Status = StatusNotImplemented
		result.Passed = true
		result.Score = 100
		result.Message = fmt.Sprintf("check type %s is not implemented", rule.Kind)
		result.DurationMS = time.Since(started).Milliseconds()
		return result
	default:
		err = fmt.Errorf("unknown check kind %q", rule.Kind)
	}

	result.DurationMS = time.Since(started).Milliseconds()
	if err != nil {
		e.log.Warn("quality check failed to execute",
			zap.String("rule_id", rule.ID), zap.Error(err))
		result.Status = StatusFailed
		result.Passed = false
		result.Score = 0
		result.Message = err.Error()
		return result
	}

	result.Score = score
	result.Details = details
	result.Passed = score >= rule.Threshold
	if result.Passed {
		result.Status = StatusPassed
	} else {
		result.Status = StatusFailed
		result.Message = fmt.Sprintf("score %.2f below threshold %.2f", score, rule.Threshold)
	}
	return result
}

// checkNull scores completeness. With a column, the score is the share of
// non-null values; without one, it degenerates to a row-existence check.
func (e *Engine) checkNull(ctx context.Context, rule *Rule) (float64, map[string]interface{}, error) {
	table := e.db.Quote(rule.AssetID)

	if rule.ColumnName == "" {
		var total int64
		query := fmt.Sprintf("SELECT COUNT(*) FROM %s", table)
		if err := e.db.QueryRowContext(ctx, query).Scan(&total); err != nil {
			return 0, nil, fmt.Errorf("count rows in %s: %w", rule.AssetID, err)
		}
		score := 0.0
		if total > 0 {
			score = 100
		}
		return score, map[string]interface{}{"total_rows": total}, nil
	}

	column := e.db.Quote(rule.ColumnName)
	query := fmt.Sprintf("SELECT COUNT(*), COUNT(%s) FROM %s", column, table)
	var total, nonNull int64
	if err := e.db.QueryRowContext(ctx, query).Scan(&total, &nonNull); err != nil {
		return 0, nil, fmt.Errorf("count nulls in %s.%s: %w", rule.AssetID, rule.ColumnName, err)
	}

	score := 0.0
	if total > 0 {
		score = float64(nonNull) / float64(total) * 100
	}
	details := map[string]interface{}{
		"total_rows":    total,
		"non_null_rows": nonNull,
		"null_rows":     total - nonNull,
		"completeness":  score,
	}
	return score, details, nil
}

// checkUniqueness scores the share of distinct values in a column.
func (e *Engine) checkUniqueness(ctx context.Context, rule *Rule) (float64, map[string]interface{}, error) {
	if rule.ColumnName == "" {
		return 0, nil, fmt.Errorf("uniqueness check requires a column")
	}

	table := e.db.Quote(rule.AssetID)
	column := e.db.Quote(rule.ColumnName)
	query := fmt.Sprintf("SELECT COUNT(*), COUNT(DISTINCT %s) FROM %s", column, table)

	var total, distinct int64
	if err := e.db.QueryRowContext(ctx, query).Scan(&total, &distinct); err != nil {
		return 0, nil, fmt.Errorf("count distinct in %s.%s: %w", rule.AssetID, rule.ColumnName, err)
	}

	score := 0.0
	if total > 0 {
		score = float64(distinct) / float64(total) * 100
	}
	details := map[string]interface{}{
		"total_rows":      total,
		"distinct_values": distinct,
		"duplicate_rows":  total - distinct,
	}
	return score, details, nil
}

// checkCustomSQL runs the rule's own query, which must return a score in its
// first column.
func (e *Engine) checkCustomSQL(ctx context.Context, rule *Rule) (float64, map[string]interface{}, error) {
	var score float64
	if err := e.db.QueryRowContext(ctx, rule.ConditionSQL).Scan(&score); err != nil {
		return 0, nil, fmt.Errorf("run custom check %s: %w", rule.ID, err)
	}
	return score, map[string]interface{}{"query": rule.ConditionSQL}, nil
}

// RecordResult appends a result row; every execution is kept.
func (e *Engine) RecordResult(ctx context.Context, result *Result) error {
	snapshot, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal check result %s: %w", result.CheckID, err)
	}

	err = e.db.Upsert(ctx, resultTable,
		[]string{
			"check_id", "rule_id", "table_id", "rule_name", "rule_type", "severity",
			"passed", "score", "threshold", "status", "message",
			"executed_at", "execution_duration_ms", "result_json",
		},
		[]string{"check_id"},
		result.CheckID, result.RuleID, result.AssetID, result.RuleName, string(result.Kind), string(result.Severity),
		result.Passed, result.Score, result.Threshold, string(result.Status), result.Message,
		result.ExecutedAt, result.DurationMS, string(snapshot),
	)
	if err != nil {
		return fmt.Errorf("record check result %s: %w", result.CheckID, err)
	}
	return nil
}

// ExecuteAll runs every enabled rule for an asset and records each result.
func (e *Engine) ExecuteAll(ctx context.Context, assetID string) ([]*Result, error) {
	rules, err := e.GetRules(ctx, assetID, true)
	if err != nil {
		return nil, err
	}

	results := make([]*Result, 0, len(rules))
	for _, rule := range rules {
		result := e.Execute(ctx, rule)
		if err := e.RecordResult(ctx, result); err != nil {
			e.log.Warn("failed to record check result",
				zap.String("rule_id", rule.ID), zap.Error(err))
		}
		results = append(results, result)
	}

	e.log.Info("executed quality checks",
		zap.String("table_id", assetID), zap.Int("checks", len(results)))
	return results, nil
}

// AggregateStatus maps an average score and critical-issue count to an
// overall grade. Any critical issue forces CRITICAL regardless of score.
func AggregateStatus(averageScore float64, criticalCount int) string {
	if criticalCount > 0 {
		return GradeCritical
	}
	switch {
	case averageScore >= 90:
		return GradeExcellent
	case averageScore >= 80:
		return GradeGood
	case averageScore >= 70:
		return GradeFair
	}
	return GradePoor
}
