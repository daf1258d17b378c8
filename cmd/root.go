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
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/datahubgov/govhub/internal/config"
	"github.com/datahubgov/govhub/internal/database"
	_ "github.com/datahubgov/govhub/internal/database/mysql"
	_ "github.com/datahubgov/govhub/internal/database/postgres"
	_ "github.com/datahubgov/govhub/internal/database/sqlserver"
)

var (
	logger *zap.Logger

	configFile   string
	geminiAPIKey string

	// Database connection flags
	dialect                        string
	host                           string
	port                           int
	username                       string
	password                       string
	dbName                         string
	sslMode                        string
	cloudSQLInstanceConnectionName string
	cloudSQLUsePrivateIP           bool
)

var rootCmd = &cobra.Command{
	Use:   "govhub",
	Short: "A data governance hub for metadata, quality and lineage",
	Long: `govhub is a CLI tool that manages a data hub's governance layer:
asset metadata and data dictionaries, quality rules and check runs, the
lineage graph, and LLM-ready context briefings built from all three.`,
	PersistentPreRunE: initFlagsAndConfig,
}

// initFlagsAndConfig loads configuration and lets command flags override it.
func initFlagsAndConfig(cmd *cobra.Command, args []string) error {
	var err error
	logCfg := zap.NewProductionConfig()
	logCfg.DisableStacktrace = true
	logger, err = logCfg.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	if cmd != nil {
		flags := cmd.Flags()
		if flags.Changed("dialect") {
			cfg.Database.Dialect = dialect
		}
		if flags.Changed("host") {
			cfg.Database.Host = host
		}
		if flags.Changed("port") {
			cfg.Database.Port = port
		}
		if flags.Changed("username") {
			cfg.Database.User = username
		}
		if flags.Changed("password") {
			cfg.Database.Password = password
		}
		if flags.Changed("database") {
			cfg.Database.DBName = dbName
		}
		if flags.Changed("sslmode") {
			cfg.Database.SSLMode = sslMode
		}
		if flags.Changed("cloudsql-instance-connection-name") {
			cfg.Database.CloudSQLInstanceConnectionName = cloudSQLInstanceConnectionName
		}
		if flags.Changed("cloudsql-use-private-ip") {
			cfg.Database.UsePrivateIP = cloudSQLUsePrivateIP
		}
	}

	if geminiAPIKey == "" {
		geminiAPIKey = os.Getenv("GEMINI_API_KEY")
	}
	if geminiAPIKey != "" {
		cfg.GeminiAPIKey = geminiAPIKey
	}

	config.SetConfig(cfg)
	return nil
}

func validateDialect(dialect string) error {
	supportedDialects := []string{"postgres", "cloudsqlpostgres", "mysql", "cloudsqlmysql", "sqlserver", "cloudsqlsqlserver"}
	for _, supported := range supportedDialects {
		if dialect == supported {
			return nil
		}
	}
	return fmt.Errorf("unsupported dialect: %s (only %s are supported)", dialect, strings.Join(supportedDialects, ", "))
}

func setupDatabase() (*database.DB, error) {
	cfg := config.GetConfig()
	if err := validateDialect(cfg.Database.Dialect); err != nil {
		return nil, err
	}
	db, err := database.New(cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", zap.Error(err))
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	defer func() {
		if logger != nil {
			logger.Sync()
		}
	}()
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to a config file (optional)")

	// Database connection flags
	rootCmd.PersistentFlags().StringVar(&dialect, "dialect", "", fmt.Sprintf("Database dialect (%s)", strings.Join([]string{"postgres", "mysql", "sqlserver", "cloudsqlpostgres", "cloudsqlmysql", "cloudsqlsqlserver"}, ", ")))
	rootCmd.PersistentFlags().StringVar(&host, "host", "", "Database host")
	rootCmd.PersistentFlags().IntVar(&port, "port", 0, "Database port")
	rootCmd.PersistentFlags().StringVar(&username, "username", "", "Database username")
	rootCmd.PersistentFlags().StringVar(&password, "password", "", "Database password")
	rootCmd.PersistentFlags().StringVar(&dbName, "database", "", "Database name")
	rootCmd.PersistentFlags().StringVar(&sslMode, "sslmode", "", "PostgreSQL SSL mode")
	rootCmd.PersistentFlags().StringVar(&cloudSQLInstanceConnectionName, "cloudsql-instance-connection-name", "", "Cloud SQL instance connection name (for Cloud SQL dialects)")
	rootCmd.PersistentFlags().BoolVar(&cloudSQLUsePrivateIP, "cloudsql-use-private-ip", false, "Use private IP for Cloud SQL connection (Cloud SQL)")

	// Gemini API Key flag
	rootCmd.PersistentFlags().StringVar(&geminiAPIKey, "gemini-api-key", "", "Gemini API key (can also be set via GEMINI_API_KEY environment variable)")

	// Add subcommands
	rootCmd.AddCommand(initSchemaCmd)
	rootCmd.AddCommand(registerAssetCmd)
	rootCmd.AddCommand(getAssetCmd)
	rootCmd.AddCommand(listAssetsCmd)
	rootCmd.AddCommand(registerRuleCmd)
	rootCmd.AddCommand(runChecksCmd)
	rootCmd.AddCommand(addNodeCmd)
	rootCmd.AddCommand(addEdgeCmd)
	rootCmd.AddCommand(saveDagCmd)
	rootCmd.AddCommand(lineageCmd)
	rootCmd.AddCommand(buildContextCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(schemaCmd)
}
