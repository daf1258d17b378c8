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

	"github.com/datahubgov/govhub/internal/briefing"
	"github.com/datahubgov/govhub/internal/config"
	"github.com/datahubgov/govhub/internal/genai"
	"github.com/datahubgov/govhub/internal/lineage"
	"github.com/datahubgov/govhub/internal/metadata"
	"github.com/datahubgov/govhub/internal/quality"
	"github.com/datahubgov/govhub/internal/utils"
)

var buildContextCmd = &cobra.Command{
	Use:   "build-context",
	Short: "Build an LLM briefing package",
	Long: `Aggregates the metadata, quality, lineage and governance layers into a
context package, exports it as JSON, and optionally renders the briefing
prompt or a Gemini-generated summary.`,
	Example: `./govhub build-context --package-id pkg_daily --name "Daily briefing" --tables tbl_customer_master,tbl_orders --out ./pkg_daily.json --prompt-out ./pkg_daily.txt --dialect postgres --host localhost --port 5432 --username user --password pass --database govhub`,
	RunE:    runBuildContext,
}

func runBuildContext(cmd *cobra.Command, args []string) error {
	packageID := cmd.Flag("package-id").Value.String()
	if packageID == "" {
		return fmt.Errorf("--package-id is required")
	}
	packageName := cmd.Flag("name").Value.String()
	if packageName == "" {
		packageName = packageID
	}
	tableIDs := utils.ParseIDList(cmd.Flag("tables").Value.String())

	outFile := cmd.Flag("out").Value.String()
	if outFile == "" {
		outFile = utils.GetDefaultOutputFilePath(packageID, "build-context")
	}
	promptOut := cmd.Flag("prompt-out").Value.String()
	summarize, _ := cmd.Flags().GetBool("summarize")

	db, err := setupDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	builder := briefing.NewBuilder(
		metadata.NewStore(db, logger),
		quality.NewEngine(db, logger),
		lineage.NewStore(db, logger),
		logger,
	)

	pkg, err := builder.Build(ctx, packageID, packageName, tableIDs)
	if err != nil {
		return err
	}

	if err := briefing.ExportJSON(pkg, outFile); err != nil {
		return err
	}
	fmt.Printf("Context exported to: %s\n", outFile)

	prompt := briefing.ToPrompt(pkg)
	if promptOut != "" {
		if err := utils.WriteStringToFile(promptOut, prompt); err != nil {
			return err
		}
		fmt.Printf("Prompt written to: %s\n", promptOut)
	}

	if summarize {
		cfg := config.GetConfig()
		client, err := genai.NewClient(ctx, genai.Config{APIKey: cfg.GeminiAPIKey, Model: cfg.GeminiModel}, logger)
		if err != nil {
			return err
		}
		defer client.Close()

		if err := client.IsAPIKeyValid(ctx); err != nil {
			return fmt.Errorf("gemini API key validation failed: %w", err)
		}

		summary, err := client.Summarize(ctx, prompt)
		if err != nil {
			return fmt.Errorf("failed to summarize briefing: %w", err)
		}
		fmt.Printf("\nSummary:\n%s\n", summary)
	}

	logger.Info("briefing package built",
		zap.String("package_id", packageID),
		zap.Int("assets", pkg.MetadataContext.TotalAssets))
	return nil
}

func init() {
	buildContextCmd.Flags().String("package-id", "", "Identifier for the briefing package")
	buildContextCmd.Flags().String("name", "", "Human-readable package name (defaults to the package id)")
	buildContextCmd.Flags().String("tables", "", "Comma-separated table ids to include (default: all registered assets)")
	buildContextCmd.Flags().StringP("out", "o", "", "Output JSON file (defaults to <package-id>_context.json)")
	buildContextCmd.Flags().String("prompt-out", "", "Also write the rendered briefing prompt to this file")
	buildContextCmd.Flags().Bool("summarize", false, "Summarize the briefing with Gemini (requires an API key)")
}
