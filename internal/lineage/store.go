package lineage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/datahubgov/govhub/internal/database"
)

// ErrNodeNotFound is returned when a lineage operation references a node id
// that was never added.
var ErrNodeNotFound = errors.New("lineage node not found")

const (
	nodeTable = "tb_lineage_node"
	edgeTable = "tb_lineage_edge"
	dagTable  = "tb_lineage_dag"
)

// Store persists the lineage graph and answers traversal queries.
type Store struct {
	db  database.Querier
	log *zap.Logger
}

func NewStore(db database.Querier, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, log: logger}
}

// EnsureSchema creates the lineage tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	nodeBody := `
		node_id VARCHAR(128) NOT NULL PRIMARY KEY,
		node_name VARCHAR(256) NOT NULL,
		node_type VARCHAR(50) NOT NULL,
		database_name VARCHAR(128),
		table_name VARCHAR(256),
		description {TEXT},
		owner VARCHAR(128),
		created_date {DATETIME} NOT NULL,
		node_json {JSON} NOT NULL`
	if err := s.db.CreateTable(ctx, nodeTable, nodeBody); err != nil {
		return fmt.Errorf("ensure node schema: %w", err)
	}

	edgeBody := `
		edge_id VARCHAR(128) NOT NULL PRIMARY KEY,
		source_node_id VARCHAR(128) NOT NULL,
		target_node_id VARCHAR(128) NOT NULL,
		transformation_type VARCHAR(50) NOT NULL,
		transformation_sql {TEXT},
		transformation_description {TEXT},
		job_id VARCHAR(128),
		executed_at {DATETIME} NOT NULL,
		execution_duration_ms BIGINT,
		edge_json {JSON} NOT NULL`
	if err := s.db.CreateTable(ctx, edgeTable, edgeBody); err != nil {
		return fmt.Errorf("ensure edge schema: %w", err)
	}

	dagBody := `
		dag_id VARCHAR(128) NOT NULL PRIMARY KEY,
		dag_name VARCHAR(256) NOT NULL,
		description {TEXT},
		created_date {DATETIME} NOT NULL,
		dag_json {JSON} NOT NULL`
	if err := s.db.CreateTable(ctx, dagTable, dagBody); err != nil {
		return fmt.Errorf("ensure dag schema: %w", err)
	}
	return nil
}

// AddNode upserts a node.
func (s *Store) AddNode(ctx context.Context, node *Node) error {
	if node == nil {
		return fmt.Errorf("node is nil")
	}
	if node.CreatedDate.IsZero() {
		node.CreatedDate = time.Now().UTC()
	}
	if err := node.Validate(); err != nil {
		return err
	}

	snapshot, err := json.Marshal(node)
	if err != nil {
		return fmt.Errorf("marshal node %s: %w", node.ID, err)
	}

	err = s.db.Upsert(ctx, nodeTable,
		[]string{
			"node_id", "node_name", "node_type", "database_name", "table_name",
			"description", "owner", "created_date", "node_json",
		},
		[]string{"node_id"},
		node.ID, node.Name, node.Type, node.DatabaseName, node.TableName,
		node.Description, node.Owner, node.CreatedDate, string(snapshot),
	)
	if err != nil {
		return fmt.Errorf("add node %s: %w", node.ID, err)
	}

	s.log.Info("added lineage node", zap.String("node_id", node.ID))
	return nil
}

// GetNode returns the node or ErrNodeNotFound.
func (s *Store) GetNode(ctx context.Context, nodeID string) (*Node, error) {
	var snapshot string
	err := s.db.QueryRowContext(ctx,
		"SELECT node_json FROM tb_lineage_node WHERE node_id = ?", nodeID).Scan(&snapshot)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, nodeID)
		}
		return nil, fmt.Errorf("get node %s: %w", nodeID, err)
	}

	var node Node
	if err := json.Unmarshal([]byte(snapshot), &node); err != nil {
		return nil, fmt.Errorf("decode node %s: %w", nodeID, err)
	}
	return &node, nil
}

// AddEdge upserts an edge after verifying both endpoints exist.
func (s *Store) AddEdge(ctx context.Context, edge *Edge) error {
	if edge == nil {
		return fmt.Errorf("edge is nil")
	}
	if edge.ExecutedAt.IsZero() {
		edge.ExecutedAt = time.Now().UTC()
	}
	if err := edge.Validate(); err != nil {
		return err
	}

	if _, err := s.GetNode(ctx, edge.SourceNodeID); err != nil {
		return fmt.Errorf("add edge %s: source: %w", edge.ID, err)
	}
	if _, err := s.GetNode(ctx, edge.TargetNodeID); err != nil {
		return fmt.Errorf("add edge %s: target: %w", edge.ID, err)
	}

	snapshot, err := json.Marshal(edge)
	if err != nil {
		return fmt.Errorf("marshal edge %s: %w", edge.ID, err)
	}

	err = s.db.Upsert(ctx, edgeTable,
		[]string{
			"edge_id", "source_node_id", "target_node_id", "transformation_type",
			"transformation_sql", "transformation_description", "job_id",
			"executed_at", "execution_duration_ms", "edge_json",
		},
		[]string{"edge_id"},
		edge.ID, edge.SourceNodeID, edge.TargetNodeID, string(edge.TransformationType),
		edge.TransformationSQL, edge.TransformationDescription, edge.JobID,
		edge.ExecutedAt, edge.ExecutionDurationMS, string(snapshot),
	)
	if err != nil {
		return fmt.Errorf("add edge %s: %w", edge.ID, err)
	}

	s.log.Info("added lineage edge",
		zap.String("edge_id", edge.ID),
		zap.String("source", edge.SourceNodeID), zap.String("target", edge.TargetNodeID))
	return nil
}

// neighborIDs returns the distinct node ids on the far end of edges touching
// nodeID in the given direction.
func (s *Store) neighborIDs(ctx context.Context, nodeID string, upstream bool) ([]string, error) {
	var query string
	if upstream {
		query = "SELECT DISTINCT source_node_id FROM tb_lineage_edge WHERE target_node_id = ? ORDER BY source_node_id"
	} else {
		query = "SELECT DISTINCT target_node_id FROM tb_lineage_edge WHERE source_node_id = ? ORDER BY target_node_id"
	}

	rows, err := s.db.QueryContext(ctx, query, nodeID)
	if err != nil {
		return nil, fmt.Errorf("load neighbors of %s: %w", nodeID, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan neighbor of %s: %w", nodeID, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate neighbors of %s: %w", nodeID, err)
	}
	return ids, nil
}

// traverse walks the graph breadth-first from nodeID and returns the reached
// nodes in visit order, excluding the start node. Each node appears once even
// when reachable over multiple paths.
func (s *Store) traverse(ctx context.Context, nodeID string, upstream bool) ([]*Node, error) {
	if _, err := s.GetNode(ctx, nodeID); err != nil {
		return nil, err
	}

	seen := map[string]bool{nodeID: true}
	queue := []string{nodeID}
	var reached []*Node

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		neighbors, err := s.neighborIDs(ctx, current, upstream)
		if err != nil {
			return nil, err
		}
		for _, id := range neighbors {
			if seen[id] {
				continue
			}
			seen[id] = true
			node, err := s.GetNode(ctx, id)
			if err != nil {
				if errors.Is(err, ErrNodeNotFound) {
					// Dangling edge; skip rather than abort the walk.
					s.log.Warn("edge references missing node", zap.String("node_id", id))
					continue
				}
				return nil, err
			}
			reached = append(reached, node)
			queue = append(queue, id)
		}
	}
	return reached, nil
}

// Upstream returns every node the given node depends on, directly or
// transitively.
func (s *Store) Upstream(ctx context.Context, nodeID string) ([]*Node, error) {
	return s.traverse(ctx, nodeID, true)
}

// Downstream returns every node that depends on the given node, directly or
// transitively.
func (s *Store) Downstream(ctx context.Context, nodeID string) ([]*Node, error) {
	return s.traverse(ctx, nodeID, false)
}

// Path returns one source-to-target node id path, or nil when target is not
// reachable from source. BFS makes it a shortest path by hop count.
func (s *Store) Path(ctx context.Context, sourceID, targetID string) ([]string, error) {
	if _, err := s.GetNode(ctx, sourceID); err != nil {
		return nil, err
	}
	if _, err := s.GetNode(ctx, targetID); err != nil {
		return nil, err
	}
	if sourceID == targetID {
		return []string{sourceID}, nil
	}

	seen := map[string]bool{sourceID: true}
	queue := [][]string{{sourceID}}
	for len(queue) > 0 {
		path := queue[0]
		queue = queue[1:]
		current := path[len(path)-1]

		neighbors, err := s.neighborIDs(ctx, current, false)
		if err != nil {
			return nil, err
		}
		for _, id := range neighbors {
			if seen[id] {
				continue
			}
			next := make([]string, len(path), len(path)+1)
			copy(next, path)
			next = append(next, id)
			if id == targetID {
				return next, nil
			}
			seen[id] = true
			queue = append(queue, next)
		}
	}
	return nil, nil
}

// SaveDAG derives the root and leaf sets from the DAG's edges and persists
// the snapshot. Roots are nodes that never appear as an edge target; leaves
// never appear as a source. An isolated node is both.
func (s *Store) SaveDAG(ctx context.Context, dag *DAG) error {
	if dag == nil {
		return fmt.Errorf("dag is nil")
	}
	if dag.ID == "" {
		return fmt.Errorf("dag id is required")
	}
	if dag.CreatedDate.IsZero() {
		dag.CreatedDate = time.Now().UTC()
	}

	isTarget := make(map[string]bool)
	isSource := make(map[string]bool)
	for _, edge := range dag.Edges {
		isSource[edge.SourceNodeID] = true
		isTarget[edge.TargetNodeID] = true
	}

	dag.RootNodes = dag.RootNodes[:0]
	dag.LeafNodes = dag.LeafNodes[:0]
	for id := range dag.Nodes {
		if !isTarget[id] {
			dag.RootNodes = append(dag.RootNodes, id)
		}
		if !isSource[id] {
			dag.LeafNodes = append(dag.LeafNodes, id)
		}
	}
	sort.Strings(dag.RootNodes)
	sort.Strings(dag.LeafNodes)

	snapshot, err := json.Marshal(dag)
	if err != nil {
		return fmt.Errorf("marshal dag %s: %w", dag.ID, err)
	}

	err = s.db.Upsert(ctx, dagTable,
		[]string{"dag_id", "dag_name", "description", "created_date", "dag_json"},
		[]string{"dag_id"},
		dag.ID, dag.Name, dag.Description, dag.CreatedDate, string(snapshot),
	)
	if err != nil {
		return fmt.Errorf("save dag %s: %w", dag.ID, err)
	}

	s.log.Info("saved lineage dag",
		zap.String("dag_id", dag.ID),
		zap.Int("nodes", len(dag.Nodes)), zap.Int("edges", len(dag.Edges)))
	return nil
}

// GetDAG returns a saved DAG snapshot.
func (s *Store) GetDAG(ctx context.Context, dagID string) (*DAG, error) {
	var snapshot string
	err := s.db.QueryRowContext(ctx,
		"SELECT dag_json FROM tb_lineage_dag WHERE dag_id = ?", dagID).Scan(&snapshot)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("dag not found: %s", dagID)
		}
		return nil, fmt.Errorf("get dag %s: %w", dagID, err)
	}

	var dag DAG
	if err := json.Unmarshal([]byte(snapshot), &dag); err != nil {
		return nil, fmt.Errorf("decode dag %s: %w", dagID, err)
	}
	return &dag, nil
}

// CountNodes returns the number of nodes in the graph.
func (s *Store) CountNodes(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tb_lineage_node").Scan(&n); err != nil {
		return 0, fmt.Errorf("count lineage nodes: %w", err)
	}
	return n, nil
}
