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
	"github.com/datahubgov/govhub/internal/rag"
	"github.com/datahubgov/govhub/internal/utils"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search the document chunks",
	Long: `Searches the governed document chunks. With --keywords, matches chunk text
directly; with --query, embeds the query and ranks chunks by vector similarity
over the loaded embeddings.`,
	Example: `./govhub search --keywords customer,orders --dialect mysql --host localhost --port 3306 --username user --password pass --database govhub`,
	RunE:    runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	keywords := utils.ParseIDList(cmd.Flag("keywords").Value.String())
	query := cmd.Flag("query").Value.String()
	if len(keywords) == 0 && query == "" {
		return fmt.Errorf("--keywords or --query is required")
	}

	cfg := config.GetConfig()
	topK, _ := cmd.Flags().GetInt("top-k")
	if topK <= 0 {
		topK = cfg.Retrieval.TopK
	}

	db, err := setupDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	retriever := rag.NewRetriever(db, topK, cfg.Retrieval.SimilarityThreshold, logger)

	var searchContext *rag.Context
	if query != "" {
		embedder := rag.NewPseudoEmbedder(0)
		vectors := rag.NewVectorCache()
		if err := vectors.Load(ctx, db, embedder, nil, logger); err != nil {
			return err
		}
		searchCache := rag.NewSearchCache(cfg.Retrieval.CacheSize)
		searchContext, err = retriever.Search(ctx, query, embedder, vectors, searchCache)
		if err != nil {
			return err
		}
	} else {
		results, err := retriever.RetrieveByKeyword(ctx, keywords)
		if err != nil {
			return err
		}
		searchContext = retriever.BuildContext(results, fmt.Sprintf("keywords: %v", keywords), nil)
	}

	fmt.Print(searchContext.ToPrompt())

	logger.Info("search finished",
		zap.String("query", searchContext.Query), zap.Int("results", searchContext.TotalResults))
	return nil
}

func init() {
	searchCmd.Flags().String("keywords", "", "Comma-separated keywords to match against chunk text")
	searchCmd.Flags().String("query", "", "Free-text query for vector similarity search")
	searchCmd.Flags().Int("top-k", 0, "Maximum number of results (defaults to retrieval.top_k)")
}
