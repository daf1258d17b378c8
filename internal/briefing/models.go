package briefing

import (
	"time"
)

// AssetSummary is the per-asset slice of the metadata context.
type AssetSummary struct {
	TableID         string          `json:"table_id"`
	TableName       string          `json:"table_name"`
	DatabaseName    string          `json:"database_name"`
	Description     string          `json:"description,omitempty"`
	Owner           string          `json:"owner"`
	OwnerEmail      string          `json:"owner_email,omitempty"`
	Classification  string          `json:"classification"`
	Version         string          `json:"version"`
	UpdateFrequency string          `json:"update_frequency,omitempty"`
	RowCount        int64           `json:"row_count"`
	SizeMB          float64         `json:"size_mb"`
	DataDictionary  []ColumnSummary `json:"data_dictionary"`
}

// ColumnSummary carries at most maxExampleValues example values per column.
type ColumnSummary struct {
	ColumnName     string   `json:"column_name"`
	DataType       string   `json:"data_type"`
	Nullable       bool     `json:"nullable"`
	Description    string   `json:"description,omitempty"`
	Classification string   `json:"classification"`
	ExampleValues  []string `json:"example_values,omitempty"`
}

// MetadataContext is the metadata layer of a briefing package.
type MetadataContext struct {
	TotalAssets int            `json:"total_assets"`
	Assets      []AssetSummary `json:"assets"`
}

// CheckSummary is one check outcome inside a table's quality summary.
type CheckSummary struct {
	RuleID    string  `json:"rule_id"`
	RuleName  string  `json:"rule_name"`
	Passed    bool    `json:"passed"`
	Score     float64 `json:"score"`
	Threshold float64 `json:"threshold"`
	Message   string  `json:"message,omitempty"`
}

// TableQuality tallies the checks executed for one table.
type TableQuality struct {
	TableID       string         `json:"table_id"`
	RulesExecuted int            `json:"rules_executed"`
	PassedRules   int            `json:"passed_rules"`
	FailedRules   int            `json:"failed_rules"`
	Checks        []CheckSummary `json:"checks"`
}

// CriticalIssue is a failed critical-severity check surfaced at package level.
type CriticalIssue struct {
	TableID string `json:"table_id"`
	RuleID  string `json:"rule_id"`
	Issue   string `json:"issue"`
}

// QualityContext is the quality layer of a briefing package. The average is
// taken over every individual check, so tables with more rules weigh more.
type QualityContext struct {
	QualityStatus       string          `json:"quality_status"`
	AverageQualityScore float64         `json:"average_quality_score"`
	CriticalIssueCount  int             `json:"critical_issue_count"`
	CriticalIssues      []CriticalIssue `json:"critical_issues"`
	Tables              []TableQuality  `json:"tables"`
}

// NodeSummary identifies a lineage neighbor of an asset.
type NodeSummary struct {
	NodeID    string `json:"node_id"`
	NodeName  string `json:"node_name"`
	NodeType  string `json:"node_type"`
	TableName string `json:"table_name,omitempty"`
}

// TableLineage lists the upstream sources and downstream consumers of one
// asset.
type TableLineage struct {
	TableID       string        `json:"table_id"`
	DataSources   []NodeSummary `json:"data_sources"`
	DataConsumers []NodeSummary `json:"data_consumers"`
}

// LineageContext is the lineage layer of a briefing package. The global id
// lists are deduplicated unions across the included assets.
type LineageContext struct {
	NodesTotal            int                     `json:"nodes_total"`
	UpstreamSourceIDs     []string                `json:"upstream_source_ids"`
	DownstreamConsumerIDs []string                `json:"downstream_consumer_ids"`
	TableLineage          map[string]TableLineage `json:"table_lineage"`
}

// OwnedTable is an asset listed under its owner in the governance context.
type OwnedTable struct {
	TableID   string `json:"table_id"`
	TableName string `json:"table_name"`
}

// Policies is the static governance policy block.
type Policies struct {
	ClassificationLevels []string `json:"classification_levels"`
	RetentionPolicy      string   `json:"retention_policy"`
	AccessControl        string   `json:"access_control"`
}

// GovernanceContext is the governance layer of a briefing package.
type GovernanceContext struct {
	TotalAssets                int                     `json:"total_assets"`
	Ownership                  map[string][]OwnedTable `json:"ownership"`
	ClassificationDistribution map[string]int          `json:"classification_distribution"`
	DataGovernancePolicies     Policies                `json:"data_governance_policies"`
}

// PackageMetadata describes how a briefing package was built.
type PackageMetadata struct {
	BuilderVersion string   `json:"builder_version"`
	TablesIncluded string   `json:"tables_included"`
	ContextLayers  []string `json:"context_layers"`
}

// Package is a complete briefing assembled for LLM consumption.
type Package struct {
	PackageID         string            `json:"package_id"`
	PackageName       string            `json:"package_name"`
	GeneratedAt       time.Time         `json:"generated_at"`
	MetadataContext   MetadataContext   `json:"metadata_context"`
	QualityContext    QualityContext    `json:"quality_context"`
	LineageContext    LineageContext    `json:"lineage_context"`
	GovernanceContext GovernanceContext `json:"governance_context"`
	ContextMetadata   PackageMetadata   `json:"context_metadata"`
}
