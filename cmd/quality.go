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

	"github.com/datahubgov/govhub/internal/quality"
	"github.com/datahubgov/govhub/internal/utils"
)

var registerRuleCmd = &cobra.Command{
	Use:     "register-rule",
	Short:   "Register or update a quality rule",
	Long:    `Reads a quality rule definition from a JSON file and upserts it into the rule store.`,
	Example: `./govhub register-rule --dialect postgres --host localhost --port 5432 --username user --password pass --database govhub --file ./email_not_null.json`,
	RunE:    runRegisterRule,
}

var runChecksCmd = &cobra.Command{
	Use:     "run-checks",
	Short:   "Run the enabled quality rules of a table",
	Long:    `Executes every enabled quality rule registered for a table, records each result, and prints a summary.`,
	Example: `./govhub run-checks --table-id tbl_customer_master --dialect postgres --host localhost --port 5432 --username user --password pass --database govhub`,
	RunE:    runRunChecks,
}

func runRegisterRule(cmd *cobra.Command, args []string) error {
	ruleFile := cmd.Flag("file").Value.String()
	if ruleFile == "" {
		return fmt.Errorf("--file is required")
	}

	var rule quality.Rule
	if err := utils.ReadJSONFile(ruleFile, &rule); err != nil {
		return err
	}

	db, err := setupDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	engine := quality.NewEngine(db, logger)
	if err := engine.EnsureSchema(cmd.Context()); err != nil {
		return err
	}
	if err := engine.RegisterRule(cmd.Context(), &rule); err != nil {
		return err
	}

	fmt.Printf("Registered rule: %s (%s on %s)\n", rule.ID, rule.Kind, rule.AssetID)
	return nil
}

func runRunChecks(cmd *cobra.Command, args []string) error {
	tableID := cmd.Flag("table-id").Value.String()
	if tableID == "" {
		return fmt.Errorf("--table-id is required")
	}

	db, err := setupDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	results, err := quality.NewEngine(db, logger).ExecuteAll(cmd.Context(), tableID)
	if err != nil {
		return err
	}

	passed := 0
	for _, result := range results {
		marker := "FAIL"
		if result.Passed {
			marker = "PASS"
			passed++
		}
		fmt.Printf("[%s] %s (%s): score %.2f / threshold %.2f", marker, result.RuleName, result.Kind, result.Score, result.Threshold)
		if result.Status == quality.StatusNotImplemented {
			fmt.Print(" (not implemented)")
		}
		if result.Message != "" {
			fmt.Printf(" - %s", result.Message)
		}
		fmt.Println()
	}
	fmt.Printf("\n%d/%d checks passed for %s\n", passed, len(results), tableID)

	logger.Info("check run finished",
		zap.String("table_id", tableID), zap.Int("passed", passed), zap.Int("total", len(results)))
	return nil
}

func init() {
	registerRuleCmd.Flags().StringP("file", "f", "", "Path to the rule definition JSON file")
	runChecksCmd.Flags().String("table-id", "", "Asset identifier to run checks against")
}
