/*
 * Copyright 2025 The govhub Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/datahubgov/govhub/internal/lineage"
	"github.com/datahubgov/govhub/internal/utils"
)

var addNodeCmd = &cobra.Command{
	Use:     "add-node",
	Short:   "Add a lineage node",
	Example: `./govhub add-node --file ./raw_orders_node.json --dialect postgres --host localhost --port 5432 --username user --password pass --database govhub`,
	RunE:    runAddNode,
}

var addEdgeCmd = &cobra.Command{
	Use:     "add-edge",
	Short:   "Add a lineage edge between two existing nodes",
	Example: `./govhub add-edge --file ./orders_to_mart_edge.json --dialect postgres --host localhost --port 5432 --username user --password pass --database govhub`,
	RunE:    runAddEdge,
}

var saveDagCmd = &cobra.Command{
	Use:     "save-dag",
	Short:   "Save a pipeline DAG snapshot",
	Long:    `Persists a DAG definition. Root and leaf node sets are derived from the edges, not taken from the file.`,
	Example: `./govhub save-dag --file ./sales_pipeline.json --dialect postgres --host localhost --port 5432 --username user --password pass --database govhub`,
	RunE:    runSaveDag,
}

var lineageCmd = &cobra.Command{
	Use:   "lineage",
	Short: "Query the lineage graph",
	Long: `Traverses the lineage graph. With --node-id, prints the upstream and/or
downstream nodes; with --source and --target, prints one shortest path; with
--dag, prints a saved pipeline snapshot.`,
	Example: `./govhub lineage --node-id node_mart_sales --upstream --dialect postgres --host localhost --port 5432 --username user --password pass --database govhub`,
	RunE:    runLineage,
}

func runAddNode(cmd *cobra.Command, args []string) error {
	nodeFile := cmd.Flag("file").Value.String()
	if nodeFile == "" {
		return fmt.Errorf("--file is required")
	}

	var node lineage.Node
	if err := utils.ReadJSONFile(nodeFile, &node); err != nil {
		return err
	}

	db, err := setupDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	store := lineage.NewStore(db, logger)
	if err := store.EnsureSchema(cmd.Context()); err != nil {
		return err
	}
	if err := store.AddNode(cmd.Context(), &node); err != nil {
		return err
	}

	fmt.Printf("Added node: %s\n", node.ID)
	return nil
}

func runAddEdge(cmd *cobra.Command, args []string) error {
	edgeFile := cmd.Flag("file").Value.String()
	if edgeFile == "" {
		return fmt.Errorf("--file is required")
	}

	var edge lineage.Edge
	if err := utils.ReadJSONFile(edgeFile, &edge); err != nil {
		return err
	}

	db, err := setupDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := lineage.NewStore(db, logger).AddEdge(cmd.Context(), &edge); err != nil {
		return err
	}

	fmt.Printf("Added edge: %s (%s -> %s)\n", edge.ID, edge.SourceNodeID, edge.TargetNodeID)
	return nil
}

func runSaveDag(cmd *cobra.Command, args []string) error {
	dagFile := cmd.Flag("file").Value.String()
	if dagFile == "" {
		return fmt.Errorf("--file is required")
	}

	var dag lineage.DAG
	if err := utils.ReadJSONFile(dagFile, &dag); err != nil {
		return err
	}

	db, err := setupDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := lineage.NewStore(db, logger).SaveDAG(cmd.Context(), &dag); err != nil {
		return err
	}

	fmt.Printf("Saved DAG: %s (%d nodes, %d edges)\n", dag.ID, len(dag.Nodes), len(dag.Edges))
	return nil
}

func runLineage(cmd *cobra.Command, args []string) error {
	nodeID := cmd.Flag("node-id").Value.String()
	source := cmd.Flag("source").Value.String()
	target := cmd.Flag("target").Value.String()
	dagID := cmd.Flag("dag").Value.String()

	db, err := setupDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	store := lineage.NewStore(db, logger)
	ctx := cmd.Context()

	if dagID != "" {
		dag, err := store.GetDAG(ctx, dagID)
		if err != nil {
			return err
		}
		total, err := store.CountNodes(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("DAG %s (%s): %d nodes, %d edges\n", dag.ID, dag.Name, len(dag.Nodes), len(dag.Edges))
		fmt.Printf("  Roots:  %s\n", strings.Join(dag.RootNodes, ", "))
		fmt.Printf("  Leaves: %s\n", strings.Join(dag.LeafNodes, ", "))
		fmt.Printf("Lineage graph holds %d nodes in total.\n", total)
		return nil
	}

	if source != "" || target != "" {
		if source == "" || target == "" {
			return fmt.Errorf("--source and --target must be given together")
		}
		path, err := store.Path(ctx, source, target)
		if err != nil {
			return err
		}
		if path == nil {
			fmt.Printf("No path from %s to %s\n", source, target)
			return nil
		}
		fmt.Println(strings.Join(path, " -> "))
		return nil
	}

	if nodeID == "" {
		return fmt.Errorf("--node-id, --dag, or --source/--target is required")
	}

	upstreamOnly, _ := cmd.Flags().GetBool("upstream")
	downstreamOnly, _ := cmd.Flags().GetBool("downstream")
	showBoth := upstreamOnly == downstreamOnly

	if upstreamOnly || showBoth {
		nodes, err := store.Upstream(ctx, nodeID)
		if err != nil {
			return err
		}
		fmt.Printf("Upstream of %s (%d):\n", nodeID, len(nodes))
		for _, node := range nodes {
			fmt.Printf("  %s (%s, %s)\n", node.ID, node.Name, node.Type)
		}
	}
	if downstreamOnly || showBoth {
		nodes, err := store.Downstream(ctx, nodeID)
		if err != nil {
			return err
		}
		fmt.Printf("Downstream of %s (%d):\n", nodeID, len(nodes))
		for _, node := range nodes {
			fmt.Printf("  %s (%s, %s)\n", node.ID, node.Name, node.Type)
		}
	}
	return nil
}

func init() {
	addNodeCmd.Flags().StringP("file", "f", "", "Path to the node definition JSON file")
	addEdgeCmd.Flags().StringP("file", "f", "", "Path to the edge definition JSON file")
	saveDagCmd.Flags().StringP("file", "f", "", "Path to the DAG definition JSON file")

	lineageCmd.Flags().String("node-id", "", "Node to traverse from")
	lineageCmd.Flags().Bool("upstream", false, "Show only upstream nodes")
	lineageCmd.Flags().Bool("downstream", false, "Show only downstream nodes")
	lineageCmd.Flags().String("source", "", "Path query: source node id")
	lineageCmd.Flags().String("target", "", "Path query: target node id")
	lineageCmd.Flags().String("dag", "", "Print a saved DAG snapshot by id")
}
