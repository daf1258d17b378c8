package briefing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/datahubgov/govhub/internal/lineage"
	"github.com/datahubgov/govhub/internal/metadata"
	"github.com/datahubgov/govhub/internal/quality"
	"github.com/datahubgov/govhub/internal/utils"
)

const (
	builderVersion = "1.0.0"

	maxExampleValues = 3
	maxPromptColumns = 5
	maxPromptIssues  = 5
)

// AssetSource supplies registered asset metadata.
type AssetSource interface {
	Get(ctx context.Context, assetID string) (*metadata.Asset, error)
	ListAll(ctx context.Context) ([]*metadata.Asset, error)
}

// CheckRunner executes the enabled quality rules of an asset.
type CheckRunner interface {
	ExecuteAll(ctx context.Context, assetID string) ([]*quality.Result, error)
}

// LineageSource answers graph traversal queries.
type LineageSource interface {
	Upstream(ctx context.Context, nodeID string) ([]*lineage.Node, error)
	Downstream(ctx context.Context, nodeID string) ([]*lineage.Node, error)
}

// Builder aggregates the governance stores into briefing packages.
type Builder struct {
	assets  AssetSource
	checks  CheckRunner
	lineage LineageSource
	log     *zap.Logger
}

func NewBuilder(assets AssetSource, checks CheckRunner, lin LineageSource, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{assets: assets, checks: checks, lineage: lin, log: logger}
}

// selectAssets resolves the asset set: the named ids, or every registered
// asset when ids is empty. Unknown ids are skipped.
func (b *Builder) selectAssets(ctx context.Context, ids []string) ([]*metadata.Asset, error) {
	if len(ids) == 0 {
		return b.assets.ListAll(ctx)
	}
	assets := make([]*metadata.Asset, 0, len(ids))
	for _, id := range ids {
		asset, err := b.assets.Get(ctx, id)
		if err != nil {
			if errors.Is(err, metadata.ErrNotFound) {
				b.log.Warn("briefing skips unknown asset", zap.String("table_id", id))
				continue
			}
			return nil, err
		}
		assets = append(assets, asset)
	}
	return assets, nil
}

// MetadataContext builds the metadata layer for the given assets (all when
// ids is empty).
func (b *Builder) MetadataContext(ctx context.Context, ids []string) (MetadataContext, error) {
	assets, err := b.selectAssets(ctx, ids)
	if err != nil {
		return MetadataContext{}, fmt.Errorf("build metadata context: %w", err)
	}

	mc := MetadataContext{TotalAssets: len(assets), Assets: make([]AssetSummary, 0, len(assets))}
	for _, asset := range assets {
		summary := AssetSummary{
			TableID:         asset.ID,
			TableName:       asset.Name,
			DatabaseName:    asset.DatabaseName,
			Description:     asset.Description,
			Owner:           asset.Owner,
			OwnerEmail:      asset.OwnerEmail,
			Classification:  string(asset.Classification),
			Version:         asset.Version,
			UpdateFrequency: asset.UpdateFrequency,
			RowCount:        asset.RowCount,
			SizeMB:          asset.SizeMB,
			DataDictionary:  make([]ColumnSummary, 0, len(asset.Columns)),
		}
		for _, col := range asset.Columns {
			examples := col.ExampleValues
			if len(examples) > maxExampleValues {
				examples = examples[:maxExampleValues]
			}
			summary.DataDictionary = append(summary.DataDictionary, ColumnSummary{
				ColumnName:     col.Name,
				DataType:       col.DataType,
				Nullable:       col.Nullable,
				Description:    col.Description,
				Classification: string(col.Classification),
				ExampleValues:  examples,
			})
		}
		mc.Assets = append(mc.Assets, summary)
	}
	return mc, nil
}

// QualityContext runs the enabled checks of each asset and aggregates the
// outcomes.
func (b *Builder) QualityContext(ctx context.Context, ids []string) (QualityContext, error) {
	ids, err := b.resolveIDs(ctx, ids)
	if err != nil {
		return QualityContext{}, fmt.Errorf("build quality context: %w", err)
	}

	qc := QualityContext{
		QualityStatus:  "UNKNOWN",
		CriticalIssues: []CriticalIssue{},
		Tables:         make([]TableQuality, 0, len(ids)),
	}

	var totalScore float64
	var totalChecks int
	for _, id := range ids {
		results, err := b.checks.ExecuteAll(ctx, id)
		if err != nil {
			return QualityContext{}, fmt.Errorf("build quality context for %s: %w", id, err)
		}

		tq := TableQuality{TableID: id, RulesExecuted: len(results), Checks: make([]CheckSummary, 0, len(results))}
		for _, result := range results {
			if result.Passed {
				tq.PassedRules++
			} else {
				tq.FailedRules++
			}
			tq.Checks = append(tq.Checks, CheckSummary{
				RuleID:    result.RuleID,
				RuleName:  result.RuleName,
				Passed:    result.Passed,
				Score:     result.Score,
				Threshold: result.Threshold,
				Message:   result.Message,
			})

			if !result.Passed && result.Severity == quality.SeverityCritical {
				qc.CriticalIssues = append(qc.CriticalIssues, CriticalIssue{
					TableID: id,
					RuleID:  result.RuleID,
					Issue:   result.Message,
				})
			}

			totalScore += result.Score
			totalChecks++
		}
		qc.Tables = append(qc.Tables, tq)
	}

	avg := 0.0
	if totalChecks > 0 {
		avg = totalScore / float64(totalChecks)
	}
	qc.AverageQualityScore = roundTo2(avg)
	qc.CriticalIssueCount = len(qc.CriticalIssues)
	qc.QualityStatus = quality.AggregateStatus(avg, qc.CriticalIssueCount)
	return qc, nil
}

// LineageContext builds per-asset upstream/downstream views plus the
// deduplicated global source and consumer id sets.
func (b *Builder) LineageContext(ctx context.Context, ids []string) (LineageContext, error) {
	ids, err := b.resolveIDs(ctx, ids)
	if err != nil {
		return LineageContext{}, fmt.Errorf("build lineage context: %w", err)
	}

	lc := LineageContext{
		UpstreamSourceIDs:     []string{},
		DownstreamConsumerIDs: []string{},
		TableLineage:          make(map[string]TableLineage, len(ids)),
	}

	sources := make(map[string]bool)
	consumers := make(map[string]bool)
	for _, id := range ids {
		tl := TableLineage{TableID: id, DataSources: []NodeSummary{}, DataConsumers: []NodeSummary{}}

		upstream, err := b.lineage.Upstream(ctx, id)
		if err != nil {
			if errors.Is(err, lineage.ErrNodeNotFound) {
				// Assets without a lineage node get empty lineage entries.
				lc.TableLineage[id] = tl
				lc.NodesTotal++
				continue
			}
			return LineageContext{}, fmt.Errorf("build lineage context for %s: %w", id, err)
		}
		downstream, err := b.lineage.Downstream(ctx, id)
		if err != nil {
			return LineageContext{}, fmt.Errorf("build lineage context for %s: %w", id, err)
		}

		for _, node := range upstream {
			tl.DataSources = append(tl.DataSources, summarizeNode(node))
			sources[node.ID] = true
		}
		for _, node := range downstream {
			tl.DataConsumers = append(tl.DataConsumers, summarizeNode(node))
			consumers[node.ID] = true
		}

		lc.TableLineage[id] = tl
		lc.NodesTotal++
	}

	lc.UpstreamSourceIDs = sortedKeys(sources)
	lc.DownstreamConsumerIDs = sortedKeys(consumers)
	return lc, nil
}

// GovernanceContext aggregates ownership and classification over every
// registered asset.
func (b *Builder) GovernanceContext(ctx context.Context) (GovernanceContext, error) {
	assets, err := b.assets.ListAll(ctx)
	if err != nil {
		return GovernanceContext{}, fmt.Errorf("build governance context: %w", err)
	}

	gc := GovernanceContext{
		TotalAssets:                len(assets),
		Ownership:                  make(map[string][]OwnedTable),
		ClassificationDistribution: make(map[string]int),
		DataGovernancePolicies: Policies{
			ClassificationLevels: classificationLevels(),
			RetentionPolicy:      "Based on classification level",
			AccessControl:        "Role-based access control (RBAC)",
		},
	}
	for _, asset := range assets {
		gc.Ownership[asset.Owner] = append(gc.Ownership[asset.Owner], OwnedTable{
			TableID:   asset.ID,
			TableName: asset.Name,
		})
		gc.ClassificationDistribution[string(asset.Classification)]++
	}
	return gc, nil
}

// Build assembles the four context layers into one package.
func (b *Builder) Build(ctx context.Context, packageID, packageName string, ids []string) (*Package, error) {
	b.log.Info("building briefing package",
		zap.String("package_id", packageID), zap.Int("requested_tables", len(ids)))

	mc, err := b.MetadataContext(ctx, ids)
	if err != nil {
		return nil, err
	}
	qc, err := b.QualityContext(ctx, ids)
	if err != nil {
		return nil, err
	}
	lc, err := b.LineageContext(ctx, ids)
	if err != nil {
		return nil, err
	}
	gc, err := b.GovernanceContext(ctx)
	if err != nil {
		return nil, err
	}

	included := "all"
	if len(ids) > 0 {
		included = strconv.Itoa(len(ids))
	}

	return &Package{
		PackageID:         packageID,
		PackageName:       packageName,
		GeneratedAt:       time.Now().UTC(),
		MetadataContext:   mc,
		QualityContext:    qc,
		LineageContext:    lc,
		GovernanceContext: gc,
		ContextMetadata: PackageMetadata{
			BuilderVersion: builderVersion,
			TablesIncluded: included,
			ContextLayers: []string{
				"metadata_context",
				"quality_context",
				"lineage_context",
				"governance_context",
			},
		},
	}, nil
}

// ExportJSON writes the package as indented JSON.
func ExportJSON(pkg *Package, path string) error {
	if err := utils.WriteJSONFile(path, pkg); err != nil {
		return fmt.Errorf("export briefing package %s: %w", pkg.PackageID, err)
	}
	return nil
}

// ToPrompt renders the package as the LLM briefing text. Sections appear in
// fixed order; the critical-issues block is omitted entirely when there are
// none.
func ToPrompt(pkg *Package) string {
	var sb strings.Builder

	sb.WriteString("\n## 데이터 허브 정보\n\n")
	sb.WriteString("### 메타데이터\n")
	fmt.Fprintf(&sb, "- 총 데이터 자산: %d개\n", pkg.MetadataContext.TotalAssets)
	sb.WriteString("- 보유 데이터베이스:\n")

	for _, asset := range pkg.MetadataContext.Assets {
		fmt.Fprintf(&sb, "\n  - **%s** (%s)\n", asset.TableName, asset.DatabaseName)
		description := asset.Description
		if description == "" {
			description = "N/A"
		}
		fmt.Fprintf(&sb, "    - 설명: %s\n", description)
		fmt.Fprintf(&sb, "    - 소유자: %s\n", asset.Owner)
		fmt.Fprintf(&sb, "    - 레코드 수: %s\n", groupDigits(asset.RowCount))
		fmt.Fprintf(&sb, "    - 크기: %g MB\n", asset.SizeMB)
		sb.WriteString("    - 컬럼:\n")
		columns := asset.DataDictionary
		if len(columns) > maxPromptColumns {
			columns = columns[:maxPromptColumns]
		}
		for _, col := range columns {
			fmt.Fprintf(&sb, "      - %s (%s)\n", col.ColumnName, col.DataType)
		}
	}

	sb.WriteString("\n### 데이터 품질\n")
	fmt.Fprintf(&sb, "- 전체 품질 상태: %s\n", pkg.QualityContext.QualityStatus)
	fmt.Fprintf(&sb, "- 평균 품질 점수: %.2f%%\n", pkg.QualityContext.AverageQualityScore)
	if len(pkg.QualityContext.CriticalIssues) > 0 {
		sb.WriteString("- 중요 이슈:\n")
		issues := pkg.QualityContext.CriticalIssues
		if len(issues) > maxPromptIssues {
			issues = issues[:maxPromptIssues]
		}
		for _, issue := range issues {
			fmt.Fprintf(&sb, "  - %s\n", issue.Issue)
		}
	}

	sb.WriteString("\n### 거버넌스\n")
	sb.WriteString("- 데이터 소유 부서:\n")
	owners := make([]string, 0, len(pkg.GovernanceContext.Ownership))
	for owner := range pkg.GovernanceContext.Ownership {
		owners = append(owners, owner)
	}
	sort.Strings(owners)
	for _, owner := range owners {
		fmt.Fprintf(&sb, "  - %s: %d개 테이블\n", owner, len(pkg.GovernanceContext.Ownership[owner]))
	}

	return sb.String()
}

func (b *Builder) resolveIDs(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) > 0 {
		return ids, nil
	}
	assets, err := b.assets.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	resolved := make([]string, 0, len(assets))
	for _, asset := range assets {
		resolved = append(resolved, asset.ID)
	}
	return resolved, nil
}

func summarizeNode(node *lineage.Node) NodeSummary {
	return NodeSummary{
		NodeID:    node.ID,
		NodeName:  node.Name,
		NodeType:  node.Type,
		TableName: node.TableName,
	}
}

func classificationLevels() []string {
	levels := metadata.Levels()
	out := make([]string, len(levels))
	for i, l := range levels {
		out[i] = string(l)
	}
	return out
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func roundTo2(v float64) float64 {
	return math.Round(v*100) / 100
}

// groupDigits formats n with thousands separators.
func groupDigits(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)
	out := strings.Join(parts, ",")
	if neg {
		out = "-" + out
	}
	return out
}
