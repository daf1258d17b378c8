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
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/datahubgov/govhub/internal/metadata"
	"github.com/datahubgov/govhub/internal/utils"
)

var registerAssetCmd = &cobra.Command{
	Use:     "register-asset",
	Short:   "Register or update a data asset",
	Long:    `Reads an asset definition (table metadata plus its data dictionary) from a JSON file and upserts it into the metadata store.`,
	Example: `./govhub register-asset --dialect postgres --host localhost --port 5432 --username user --password pass --database govhub --file ./customer_master.json`,
	RunE:    runRegisterAsset,
}

var getAssetCmd = &cobra.Command{
	Use:     "get-asset",
	Short:   "Show a registered asset",
	Example: `./govhub get-asset --id tbl_customer_master --dialect postgres --host localhost --port 5432 --username user --password pass --database govhub`,
	RunE:    runGetAsset,
}

var listAssetsCmd = &cobra.Command{
	Use:     "list-assets",
	Short:   "List registered assets",
	Example: `./govhub list-assets --dialect postgres --host localhost --port 5432 --username user --password pass --database govhub`,
	RunE:    runListAssets,
}

func runRegisterAsset(cmd *cobra.Command, args []string) error {
	assetFile := cmd.Flag("file").Value.String()
	if assetFile == "" {
		return fmt.Errorf("--file is required")
	}

	var asset metadata.Asset
	if err := utils.ReadJSONFile(assetFile, &asset); err != nil {
		return err
	}

	db, err := setupDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	store := metadata.NewStore(db, logger)
	if err := store.EnsureSchema(cmd.Context()); err != nil {
		return err
	}
	if err := store.Register(cmd.Context(), &asset); err != nil {
		return err
	}

	fmt.Printf("Registered asset: %s (%d columns)\n", asset.ID, len(asset.Columns))
	return nil
}

func runGetAsset(cmd *cobra.Command, args []string) error {
	assetID := cmd.Flag("id").Value.String()
	if assetID == "" {
		return fmt.Errorf("--id is required")
	}

	db, err := setupDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	asset, err := metadata.NewStore(db, logger).Get(cmd.Context(), assetID)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(asset)
}

func runListAssets(cmd *cobra.Command, args []string) error {
	asJSON, _ := cmd.Flags().GetBool("json")

	db, err := setupDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	store := metadata.NewStore(db, logger)
	if asJSON {
		assets, err := store.ListAll(cmd.Context())
		if err != nil {
			return err
		}
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(assets)
	}

	ids, err := store.ListIDs(cmd.Context())
	if err != nil {
		return err
	}
	logger.Info("listed assets", zap.Int("count", len(ids)))
	for _, id := range ids {
		fmt.Println(id)
	}
	return nil
}

func init() {
	registerAssetCmd.Flags().StringP("file", "f", "", "Path to the asset definition JSON file")
	getAssetCmd.Flags().String("id", "", "Asset identifier (table_id)")
	listAssetsCmd.Flags().Bool("json", false, "Print full asset JSON instead of ids")
}
