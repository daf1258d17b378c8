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
)

var schemaCmd = &cobra.Command{
	Use:     "schema",
	Short:   "Browse the connected database schema",
	Long:    `Lists the tables of the connected database, or the columns of one table with --table.`,
	Example: `./govhub schema --table tb_metadata --dialect mysql --host localhost --port 3306 --username user --password pass --database govhub`,
	RunE:    runSchema,
}

func runSchema(cmd *cobra.Command, args []string) error {
	tableName := cmd.Flag("table").Value.String()

	db, err := setupDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	if tableName != "" {
		columns, err := db.ListColumns(tableName)
		if err != nil {
			return err
		}
		fmt.Printf("Columns of %s:\n", tableName)
		for _, col := range columns {
			fmt.Printf("  %s (%s)\n", col.Name, col.DataType)
		}
		return nil
	}

	tables, err := db.ListTables()
	if err != nil {
		return err
	}
	fmt.Printf("Tables (%d):\n", len(tables))
	for _, table := range tables {
		fmt.Printf("  %s\n", table)
	}
	return nil
}

func init() {
	schemaCmd.Flags().String("table", "", "Show the columns of this table instead of listing tables")
}
