package briefing

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datahubgov/govhub/internal/lineage"
	"github.com/datahubgov/govhub/internal/metadata"
	"github.com/datahubgov/govhub/internal/quality"
)

type fakeAssets struct {
	assets map[string]*metadata.Asset
	order  []string
}

func (f *fakeAssets) Get(ctx context.Context, assetID string) (*metadata.Asset, error) {
	asset, ok := f.assets[assetID]
	if !ok {
		return nil, metadata.ErrNotFound
	}
	return asset, nil
}

func (f *fakeAssets) ListAll(ctx context.Context) ([]*metadata.Asset, error) {
	out := make([]*metadata.Asset, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, f.assets[id])
	}
	return out, nil
}

type fakeChecks struct {
	results map[string][]*quality.Result
}

func (f *fakeChecks) ExecuteAll(ctx context.Context, assetID string) ([]*quality.Result, error) {
	return f.results[assetID], nil
}

type fakeLineage struct {
	upstream   map[string][]*lineage.Node
	downstream map[string][]*lineage.Node
}

func (f *fakeLineage) Upstream(ctx context.Context, nodeID string) ([]*lineage.Node, error) {
	if _, ok := f.upstream[nodeID]; !ok {
		return nil, lineage.ErrNodeNotFound
	}
	return f.upstream[nodeID], nil
}

func (f *fakeLineage) Downstream(ctx context.Context, nodeID string) ([]*lineage.Node, error) {
	return f.downstream[nodeID], nil
}

func testAssets() *fakeAssets {
	return &fakeAssets{
		order: []string{"tbl_customer", "tbl_orders"},
		assets: map[string]*metadata.Asset{
			"tbl_customer": {
				ID:             "tbl_customer",
				Name:           "customer_master",
				DatabaseName:   "crm",
				Description:    "Customer master data",
				Owner:          "data-platform",
				Classification: metadata.ClassificationConfidential,
				RowCount:       1250000,
				SizeMB:         48.5,
				Columns: []metadata.Column{
					{Name: "customer_id", DataType: "VARCHAR(20)", Classification: metadata.ClassificationInternal,
						ExampleValues: []string{"C1", "C2", "C3", "C4", "C5"}},
					{Name: "email", DataType: "VARCHAR(255)", Classification: metadata.ClassificationRestricted},
					{Name: "name", DataType: "VARCHAR(100)", Classification: metadata.ClassificationRestricted},
					{Name: "created_at", DataType: "TIMESTAMP", Classification: metadata.ClassificationInternal},
					{Name: "country", DataType: "VARCHAR(2)", Classification: metadata.ClassificationInternal},
					{Name: "segment", DataType: "VARCHAR(20)", Classification: metadata.ClassificationInternal},
				},
			},
			"tbl_orders": {
				ID:             "tbl_orders",
				Name:           "orders",
				DatabaseName:   "sales",
				Owner:          "sales-eng",
				Classification: metadata.ClassificationInternal,
				RowCount:       50,
			},
		},
	}
}

func newTestBuilder(checks CheckRunner) *Builder {
	return NewBuilder(testAssets(), checks, &fakeLineage{
		upstream: map[string][]*lineage.Node{
			"tbl_customer": {{ID: "raw_crm", Name: "raw crm", Type: "source"}},
			"tbl_orders":   {},
		},
		downstream: map[string][]*lineage.Node{
			"tbl_customer": {{ID: "mart_crm", Name: "crm mart", Type: "table"}},
			"tbl_orders":   {{ID: "mart_crm", Name: "crm mart", Type: "table"}},
		},
	}, nil)
}

func passingResult(assetID, ruleID string, score float64) *quality.Result {
	return &quality.Result{
		RuleID:   ruleID,
		AssetID:  assetID,
		RuleName: ruleID,
		Passed:   true,
		Score:    score,
		Severity: quality.SeverityWarning,
		Status:   quality.StatusPassed,
	}
}

func TestMetadataContextTruncatesExampleValues(t *testing.T) {
	builder := newTestBuilder(&fakeChecks{})

	mc, err := builder.MetadataContext(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 2, mc.TotalAssets)
	require.Len(t, mc.Assets, 2)
	assert.Len(t, mc.Assets[0].DataDictionary[0].ExampleValues, 3)
}

func TestMetadataContextSkipsUnknownIDs(t *testing.T) {
	builder := newTestBuilder(&fakeChecks{})

	mc, err := builder.MetadataContext(context.Background(), []string{"tbl_customer", "ghost"})
	require.NoError(t, err)
	assert.Equal(t, 1, mc.TotalAssets)
}

func TestQualityContextWeightsTablesByRuleCount(t *testing.T) {
	// One table with one perfect check, one with three scores of 60:
	// average is (100 + 3*60) / 4 = 70, not the 80 a per-table average gives.
	checks := &fakeChecks{results: map[string][]*quality.Result{
		"tbl_customer": {passingResult("tbl_customer", "r1", 100)},
		"tbl_orders": {
			passingResult("tbl_orders", "r2", 60),
			passingResult("tbl_orders", "r3", 60),
			passingResult("tbl_orders", "r4", 60),
		},
	}}
	builder := newTestBuilder(checks)

	qc, err := builder.QualityContext(context.Background(), nil)
	require.NoError(t, err)

	assert.InDelta(t, 70.0, qc.AverageQualityScore, 0.001)
	assert.Equal(t, "FAIR", qc.QualityStatus)
	assert.Equal(t, 0, qc.CriticalIssueCount)
}

func TestQualityContextCollectsCriticalIssues(t *testing.T) {
	failing := &quality.Result{
		RuleID:   "r_crit",
		AssetID:  "tbl_customer",
		RuleName: "email completeness",
		Passed:   false,
		Score:    40,
		Severity: quality.SeverityCritical,
		Status:   quality.StatusFailed,
		Message:  "score 40.00 below threshold 95.00",
	}
	checks := &fakeChecks{results: map[string][]*quality.Result{
		"tbl_customer": {failing},
		"tbl_orders":   {passingResult("tbl_orders", "r2", 100)},
	}}
	builder := newTestBuilder(checks)

	qc, err := builder.QualityContext(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, "CRITICAL", qc.QualityStatus)
	require.Len(t, qc.CriticalIssues, 1)
	assert.Equal(t, "r_crit", qc.CriticalIssues[0].RuleID)
	assert.Equal(t, 1, qc.CriticalIssueCount)
}

func TestLineageContextDeduplicatesGlobalSets(t *testing.T) {
	builder := newTestBuilder(&fakeChecks{})

	lc, err := builder.LineageContext(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 2, lc.NodesTotal)
	assert.Equal(t, []string{"raw_crm"}, lc.UpstreamSourceIDs)
	// mart_crm consumes both tables but appears once.
	assert.Equal(t, []string{"mart_crm"}, lc.DownstreamConsumerIDs)
	assert.Len(t, lc.TableLineage["tbl_customer"].DataSources, 1)
	assert.Empty(t, lc.TableLineage["tbl_orders"].DataSources)
}

func TestGovernanceContextGroupsByOwner(t *testing.T) {
	builder := newTestBuilder(&fakeChecks{})

	gc, err := builder.GovernanceContext(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, gc.TotalAssets)
	assert.Len(t, gc.Ownership["data-platform"], 1)
	assert.Len(t, gc.Ownership["sales-eng"], 1)
	assert.Equal(t, 1, gc.ClassificationDistribution["confidential"])
	assert.Equal(t, 1, gc.ClassificationDistribution["internal"])
	assert.Equal(t, []string{"public", "internal", "confidential", "restricted"},
		gc.DataGovernancePolicies.ClassificationLevels)
}

func TestBuildAssemblesPackage(t *testing.T) {
	builder := newTestBuilder(&fakeChecks{})

	pkg, err := builder.Build(context.Background(), "pkg1", "Daily briefing", []string{"tbl_customer"})
	require.NoError(t, err)

	assert.Equal(t, "pkg1", pkg.PackageID)
	assert.Equal(t, "1.0.0", pkg.ContextMetadata.BuilderVersion)
	assert.Equal(t, "1", pkg.ContextMetadata.TablesIncluded)
	assert.Equal(t, 1, pkg.MetadataContext.TotalAssets)
	// Governance always spans every registered asset.
	assert.Equal(t, 2, pkg.GovernanceContext.TotalAssets)

	pkgAll, err := builder.Build(context.Background(), "pkg2", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "all", pkgAll.ContextMetadata.TablesIncluded)
}

func TestToPromptOmitsIssueSectionWhenClean(t *testing.T) {
	builder := newTestBuilder(&fakeChecks{results: map[string][]*quality.Result{
		"tbl_customer": {passingResult("tbl_customer", "r1", 100)},
		"tbl_orders":   {passingResult("tbl_orders", "r2", 100)},
	}})

	pkg, err := builder.Build(context.Background(), "pkg", "clean", nil)
	require.NoError(t, err)

	prompt := ToPrompt(pkg)
	assert.Contains(t, prompt, "## 데이터 허브 정보")
	assert.Contains(t, prompt, "### 메타데이터")
	assert.Contains(t, prompt, "총 데이터 자산: 2개")
	assert.Contains(t, prompt, "전체 품질 상태: EXCELLENT")
	assert.Contains(t, prompt, "평균 품질 점수: 100.00%")
	assert.Contains(t, prompt, "레코드 수: 1,250,000")
	assert.Contains(t, prompt, "data-platform: 1개 테이블")
	assert.NotContains(t, prompt, "중요 이슈")
}

func TestToPromptListsCriticalIssuesAndLimitsColumns(t *testing.T) {
	failing := &quality.Result{
		RuleID:   "r_crit",
		AssetID:  "tbl_customer",
		RuleName: "email completeness",
		Passed:   false,
		Score:    40,
		Severity: quality.SeverityCritical,
		Status:   quality.StatusFailed,
		Message:  "score 40.00 below threshold 95.00",
	}
	builder := newTestBuilder(&fakeChecks{results: map[string][]*quality.Result{
		"tbl_customer": {failing},
	}})

	pkg, err := builder.Build(context.Background(), "pkg", "dirty", nil)
	require.NoError(t, err)

	prompt := ToPrompt(pkg)
	assert.Contains(t, prompt, "중요 이슈")
	assert.Contains(t, prompt, "score 40.00 below threshold 95.00")

	// tbl_customer has six columns; only the first five are rendered.
	assert.Contains(t, prompt, "country (VARCHAR(2))")
	assert.NotContains(t, prompt, "segment")
	assert.Equal(t, 5, strings.Count(prompt, "      - "))
}

func TestRoundTo2(t *testing.T) {
	assert.InDelta(t, 66.67, roundTo2(66.666), 1e-9)
	assert.InDelta(t, 95.0, roundTo2(95.0), 1e-9)
	assert.InDelta(t, -12.35, roundTo2(-12.345), 1e-9)
}

func TestGroupDigits(t *testing.T) {
	assert.Equal(t, "0", groupDigits(0))
	assert.Equal(t, "999", groupDigits(999))
	assert.Equal(t, "1,000", groupDigits(1000))
	assert.Equal(t, "1,250,000", groupDigits(1250000))
	assert.Equal(t, "-12,345", groupDigits(-12345))
}
