package quality

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datahubgov/govhub/internal/config"
	"github.com/datahubgov/govhub/internal/database"
)

type fakeDialect struct{}

func (fakeDialect) CreateCloudSQLPool(cfg config.DatabaseConfig) (*sql.DB, error) {
	return nil, fmt.Errorf("not supported in tests")
}

func (fakeDialect) CreateStandardPool(cfg config.DatabaseConfig) (*sql.DB, error) {
	return nil, fmt.Errorf("not supported in tests")
}

func (fakeDialect) QuoteIdentifier(name string) string { return name }

func (fakeDialect) Rebind(query string) string { return query }

func (fakeDialect) UpsertSQL(table string, columns []string, keyColumns []string) string {
	return fmt.Sprintf("UPSERT %s (%s)", table, strings.Join(columns, ", "))
}

func (fakeDialect) CreateTableSQL(table string, body string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", table, body)
}

func (fakeDialect) DDLType(token string) string { return token }

func (fakeDialect) ListTables(db *database.DB) ([]string, error) { return nil, nil }

func (fakeDialect) ListColumns(db *database.DB, tableName string) ([]database.ColumnInfo, error) {
	return nil, nil
}

func newMockEngine(t *testing.T) (*Engine, sqlmock.Sqlmock) {
	t.Helper()
	pool, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })
	db := database.NewWithPool(pool, fakeDialect{}, config.DatabaseConfig{Dialect: "fake"})
	return NewEngine(db, nil), mock
}

func nullRule() *Rule {
	return &Rule{
		ID:         "rule_email_null",
		Name:       "email completeness",
		AssetID:    "tbl_customer",
		ColumnName: "email",
		Kind:       CheckNullRatio,
		Threshold:  95,
		Severity:   SeverityCritical,
		Enabled:    true,
	}
}

func TestRuleValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Rule)
		wantErr string
	}{
		{name: "valid", mutate: func(r *Rule) {}, wantErr: ""},
		{name: "missing id", mutate: func(r *Rule) { r.ID = "" }, wantErr: "rule id is required"},
		{name: "unknown kind", mutate: func(r *Rule) { r.Kind = "regex_check" }, wantErr: "unknown check kind"},
		{name: "unknown severity", mutate: func(r *Rule) { r.Severity = "fatal" }, wantErr: "unknown severity"},
		{name: "threshold too high", mutate: func(r *Rule) { r.Threshold = 101 }, wantErr: "out of range"},
		{name: "threshold negative", mutate: func(r *Rule) { r.Threshold = -1 }, wantErr: "out of range"},
		{
			name:    "custom sql without condition",
			mutate:  func(r *Rule) { r.Kind = CheckCustomSQL; r.ConditionSQL = "" },
			wantErr: "needs condition_sql",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := nullRule()
			tt.mutate(rule)
			err := rule.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestNullCheckBoundaryIsInclusive(t *testing.T) {
	engine, mock := newMockEngine(t)

	// 19 of 20 rows non-null: score 95.00 meets a threshold of 95 exactly.
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*), COUNT(email) FROM tbl_customer")).
		WillReturnRows(sqlmock.NewRows([]string{"total", "non_null"}).AddRow(20, 19))

	result := engine.Execute(context.Background(), nullRule())

	assert.True(t, result.Passed)
	assert.Equal(t, StatusPassed, result.Status)
	assert.InDelta(t, 95.0, result.Score, 0.0001)
	assert.Equal(t, int64(1), result.Details["null_rows"])
}

func TestNullCheckBelowThresholdFails(t *testing.T) {
	engine, mock := newMockEngine(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*), COUNT(email) FROM tbl_customer")).
		WillReturnRows(sqlmock.NewRows([]string{"total", "non_null"}).AddRow(20, 18))

	result := engine.Execute(context.Background(), nullRule())

	assert.False(t, result.Passed)
	assert.Equal(t, StatusFailed, result.Status)
	assert.InDelta(t, 90.0, result.Score, 0.0001)
	assert.Contains(t, result.Message, "below threshold")
}

func TestNullCheckEmptyTableScoresZero(t *testing.T) {
	engine, mock := newMockEngine(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*), COUNT(email) FROM tbl_customer")).
		WillReturnRows(sqlmock.NewRows([]string{"total", "non_null"}).AddRow(0, 0))

	result := engine.Execute(context.Background(), nullRule())

	assert.False(t, result.Passed)
	assert.Equal(t, 0.0, result.Score)
}

func TestNullCheckWithoutColumnChecksRowExistence(t *testing.T) {
	engine, mock := newMockEngine(t)

	rule := nullRule()
	rule.ColumnName = ""

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM tbl_customer")).
		WillReturnRows(sqlmock.NewRows([]string{"total"}).AddRow(42))

	result := engine.Execute(context.Background(), rule)
	assert.True(t, result.Passed)
	assert.Equal(t, 100.0, result.Score)
}

func TestUniquenessCheck(t *testing.T) {
	engine, mock := newMockEngine(t)

	rule := nullRule()
	rule.Kind = CheckUniqueness
	rule.Threshold = 100

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*), COUNT(DISTINCT email) FROM tbl_customer")).
		WillReturnRows(sqlmock.NewRows([]string{"total", "distinct"}).AddRow(10, 9))

	result := engine.Execute(context.Background(), rule)

	assert.False(t, result.Passed)
	assert.InDelta(t, 90.0, result.Score, 0.0001)
	assert.Equal(t, int64(1), result.Details["duplicate_rows"])
}

func TestUniquenessRequiresColumn(t *testing.T) {
	engine, _ := newMockEngine(t)

	rule := nullRule()
	rule.Kind = CheckUniqueness
	rule.ColumnName = ""

	result := engine.Execute(context.Background(), rule)
	assert.False(t, result.Passed)
	assert.Equal(t, StatusFailed, result.Status)
	assert.Contains(t, result.Message, "requires a column")
}

func TestCustomSQLCheck(t *testing.T) {
	engine, mock := newMockEngine(t)

	rule := nullRule()
	rule.Kind = CheckCustomSQL
	rule.ConditionSQL = "SELECT 100.0 * SUM(CASE WHEN amount >= 0 THEN 1 ELSE 0 END) / COUNT(*) FROM tbl_customer"
	rule.Threshold = 99

	mock.ExpectQuery(regexp.QuoteMeta(rule.ConditionSQL)).
		WillReturnRows(sqlmock.NewRows([]string{"score"}).AddRow(99.5))

	result := engine.Execute(context.Background(), rule)
	assert.True(t, result.Passed)
	assert.InDelta(t, 99.5, result.Score, 0.0001)
}

func TestStubChecksReportNotImplemented(t *testing.T) {
	engine, _ := newMockEngine(t)

	for _, kind := range []CheckKind{CheckRange, CheckPattern, CheckReferentialIntegrity} {
		rule := nullRule()
		rule.Kind = kind

		result := engine.Execute(context.Background(), rule)
		assert.True(t, result.Passed, string(kind))
		assert.Equal(t, 100.0, result.Score, string(kind))
		assert.Equal(t, StatusNotImplemented, result.Status, string(kind))
	}
}

func TestUnknownKindFailsResult(t *testing.T) {
	engine, _ := newMockEngine(t)

	rule := nullRule()
	rule.Kind = "made_up"

	result := engine.Execute(context.Background(), rule)
	assert.False(t, result.Passed)
	assert.Equal(t, StatusFailed, result.Status)
	assert.Contains(t, result.Message, "unknown check kind")
}

func TestQueryErrorBecomesFailingResult(t *testing.T) {
	engine, mock := newMockEngine(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*), COUNT(email) FROM tbl_customer")).
		WillReturnError(fmt.Errorf("relation does not exist"))

	result := engine.Execute(context.Background(), nullRule())
	assert.False(t, result.Passed)
	assert.Equal(t, 0.0, result.Score)
	assert.Contains(t, result.Message, "relation does not exist")
}

func TestExecuteAllRunsEnabledRulesOnly(t *testing.T) {
	engine, mock := newMockEngine(t)

	rule := nullRule()
	snapshot, err := json.Marshal(rule)
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT rule_json FROM tb_quality_rule WHERE table_id = ? AND enabled = ?")).
		WithArgs("tbl_customer", true).
		WillReturnRows(sqlmock.NewRows([]string{"rule_json"}).AddRow(string(snapshot)))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*), COUNT(email) FROM tbl_customer")).
		WillReturnRows(sqlmock.NewRows([]string{"total", "non_null"}).AddRow(100, 100))

	mock.ExpectExec(regexp.QuoteMeta("UPSERT tb_quality_check_result")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	results, err := engine.ExecuteAll(context.Background(), "tbl_customer")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Passed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterRuleUpserts(t *testing.T) {
	engine, mock := newMockEngine(t)

	mock.ExpectExec(regexp.QuoteMeta("UPSERT tb_quality_rule")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rule := nullRule()
	err := engine.RegisterRule(context.Background(), rule)
	require.NoError(t, err)
	assert.False(t, rule.CreatedDate.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAggregateStatus(t *testing.T) {
	assert.Equal(t, GradeCritical, AggregateStatus(99, 1))
	assert.Equal(t, GradeExcellent, AggregateStatus(90, 0))
	assert.Equal(t, GradeGood, AggregateStatus(85, 0))
	assert.Equal(t, GradeFair, AggregateStatus(70, 0))
	assert.Equal(t, GradePoor, AggregateStatus(69.9, 0))
}
