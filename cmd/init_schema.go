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

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/datahubgov/govhub/internal/config"
	"github.com/datahubgov/govhub/internal/lineage"
	"github.com/datahubgov/govhub/internal/metadata"
	"github.com/datahubgov/govhub/internal/quality"
	"github.com/datahubgov/govhub/internal/rag"
	"github.com/datahubgov/govhub/internal/utils"
)

var initSchemaCmd = &cobra.Command{
	Use:   "init-schema",
	Short: "Create the governance tables",
	Long: `Creates the metadata, quality, lineage and retrieval tables in the connected
database. Safe to run repeatedly. With --file, runs the statements from the
given SQL script in one transaction instead of the built-in definitions.`,
	Example: `./govhub init-schema --dialect postgres --host localhost --port 5432 --username user --password pass --database govhub`,
	RunE:    runInitSchema,
}

func runInitSchema(cmd *cobra.Command, args []string) error {
	schemaFile := cmd.Flag("file").Value.String()

	db, err := setupDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	cfg := config.GetConfig()

	if schemaFile != "" {
		statements, err := utils.ReadSQLStatementsFromFile(schemaFile)
		if err != nil {
			return err
		}
		if err := db.ExecuteSQLStatements(ctx, statements); err != nil {
			return fmt.Errorf("failed to apply schema file %s: %w", schemaFile, err)
		}
		logger.Info("schema file applied",
			zap.String("file", schemaFile), zap.Int("statements", len(statements)))
		fmt.Printf("Applied %d statements from %s.\n", len(statements), schemaFile)
		return nil
	}

	if err := metadata.NewStore(db, logger).EnsureSchema(ctx); err != nil {
		return err
	}
	if err := quality.NewEngine(db, logger).EnsureSchema(ctx); err != nil {
		return err
	}
	if err := lineage.NewStore(db, logger).EnsureSchema(ctx); err != nil {
		return err
	}
	retriever := rag.NewRetriever(db, cfg.Retrieval.TopK, cfg.Retrieval.SimilarityThreshold, logger)
	if err := retriever.EnsureSchema(ctx); err != nil {
		return err
	}

	logger.Info("governance schema initialized", zap.String("dialect", cfg.Database.Dialect))
	fmt.Println("Governance schema initialized.")
	return nil
}

func init() {
	initSchemaCmd.Flags().StringP("file", "f", "", "Apply this SQL script instead of the built-in schema")
}
