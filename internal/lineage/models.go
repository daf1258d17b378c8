package lineage

import (
	"fmt"
	"time"
)

// TransformationType classifies how data moves across a lineage edge.
type TransformationType string

const (
	TransformExtraction     TransformationType = "extraction"
	TransformTransformation TransformationType = "transformation"
	TransformLoading        TransformationType = "loading"
	TransformAggregation    TransformationType = "aggregation"
	TransformJoin           TransformationType = "join"
	TransformFiltering      TransformationType = "filtering"
	TransformEnrichment     TransformationType = "enrichment"
)

func (t TransformationType) Valid() bool {
	switch t {
	case TransformExtraction, TransformTransformation, TransformLoading,
		TransformAggregation, TransformJoin, TransformFiltering, TransformEnrichment:
		return true
	}
	return false
}

// Node is a dataset participating in the lineage graph.
type Node struct {
	ID           string    `json:"node_id"`
	Name         string    `json:"node_name"`
	Type         string    `json:"node_type"`
	DatabaseName string    `json:"database_name,omitempty"`
	TableName    string    `json:"table_name,omitempty"`
	Description  string    `json:"description,omitempty"`
	Owner        string    `json:"owner,omitempty"`
	CreatedDate  time.Time `json:"created_date"`
}

func (n *Node) Validate() error {
	if n.ID == "" {
		return fmt.Errorf("node id is required")
	}
	if n.Name == "" {
		return fmt.Errorf("node %s: name is required", n.ID)
	}
	if n.Type == "" {
		return fmt.Errorf("node %s: type is required", n.ID)
	}
	return nil
}

// Edge is a directed source-to-target data flow.
type Edge struct {
	ID                        string             `json:"edge_id"`
	SourceNodeID              string             `json:"source_node_id"`
	TargetNodeID              string             `json:"target_node_id"`
	TransformationType        TransformationType `json:"transformation_type"`
	TransformationSQL         string             `json:"transformation_sql,omitempty"`
	TransformationDescription string             `json:"transformation_description,omitempty"`
	JobID                     string             `json:"job_id,omitempty"`
	ExecutedAt                time.Time          `json:"executed_at"`
	ExecutionDurationMS       int64              `json:"execution_duration_ms,omitempty"`
}

func (e *Edge) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("edge id is required")
	}
	if e.SourceNodeID == "" || e.TargetNodeID == "" {
		return fmt.Errorf("edge %s: source and target node ids are required", e.ID)
	}
	if !e.TransformationType.Valid() {
		return fmt.Errorf("edge %s: unknown transformation type %q", e.ID, e.TransformationType)
	}
	return nil
}

// DAG is a named snapshot of a pipeline: its nodes, edges, and derived
// boundary sets.
type DAG struct {
	ID          string           `json:"dag_id"`
	Name        string           `json:"dag_name"`
	Description string           `json:"description,omitempty"`
	Nodes       map[string]*Node `json:"nodes"`
	Edges       []*Edge          `json:"edges"`
	RootNodes   []string         `json:"root_nodes"`
	LeafNodes   []string         `json:"leaf_nodes"`
	CreatedDate time.Time        `json:"created_date"`
}
