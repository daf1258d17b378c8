package metadata

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/datahubgov/govhub/internal/database"
)

// ErrNotFound is returned by Get when no asset exists under the identifier.
// Callers can rely on it as definitive absence, distinct from query errors.
var ErrNotFound = errors.New("asset not found")

const (
	metadataTable   = "tb_metadata"
	dictionaryTable = "tb_data_dictionary"
)

// Store persists asset metadata and its column dictionary. Each row keeps
// normalized columns next to a full JSON snapshot for round-trip
// reconstruction.
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

// EnsureSchema creates the metadata tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	metadataBody := `
		table_id VARCHAR(128) NOT NULL PRIMARY KEY,
		table_name VARCHAR(256) NOT NULL,
		database_name VARCHAR(128) NOT NULL,
		description {TEXT},
		owner VARCHAR(128) NOT NULL,
		owner_email VARCHAR(256),
		created_date {DATETIME} NOT NULL,
		last_modified {DATETIME} NOT NULL,
		version VARCHAR(20) NOT NULL,
		classification VARCHAR(50) NOT NULL,
		tags {JSON},
		row_count BIGINT DEFAULT 0,
		size_mb {FLOAT} DEFAULT 0,
		update_frequency VARCHAR(50),
		metadata_json {JSON} NOT NULL`
	if err := s.db.CreateTable(ctx, metadataTable, metadataBody); err != nil {
		return fmt.Errorf("ensure metadata schema: %w", err)
	}

	dictionaryBody := `
		table_id VARCHAR(128) NOT NULL,
		column_name VARCHAR(256) NOT NULL,
		data_type VARCHAR(100) NOT NULL,
		nullable {BOOL},
		description {TEXT},
		classification VARCHAR(50) NOT NULL,
		regex_pattern VARCHAR(500),
		example_values {JSON},
		PRIMARY KEY (table_id, column_name)`
	if err := s.db.CreateTable(ctx, dictionaryTable, dictionaryBody); err != nil {
		return fmt.Errorf("ensure dictionary schema: %w", err)
	}
	return nil
}

// Register upserts an asset and its columns. Re-registration replaces the
// stored state (last write wins), including duplicate column names.
func (s *Store) Register(ctx context.Context, asset *Asset) error {
	if asset == nil {
		return fmt.Errorf("asset is nil")
	}
	asset.applyDefaults(time.Now().UTC())
	if err := asset.Validate(); err != nil {
		return err
	}

	tagsJSON, err := json.Marshal(asset.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags for asset %s: %w", asset.ID, err)
	}
	snapshot, err := json.Marshal(asset)
	if err != nil {
		return fmt.Errorf("marshal snapshot for asset %s: %w", asset.ID, err)
	}

	err = s.db.Upsert(ctx, metadataTable,
		[]string{
			"table_id", "table_name", "database_name", "description", "owner", "owner_email",
			"created_date", "last_modified", "version", "classification", "tags",
			"row_count", "size_mb", "update_frequency", "metadata_json",
		},
		[]string{"table_id"},
		asset.ID, asset.Name, asset.DatabaseName, asset.Description, asset.Owner, asset.OwnerEmail,
		asset.CreatedDate, asset.LastModified, asset.Version, string(asset.Classification), string(tagsJSON),
		asset.RowCount, asset.SizeMB, asset.UpdateFrequency, string(snapshot),
	)
	if err != nil {
		s.log.Warn("failed to register asset", zap.String("table_id", asset.ID), zap.Error(err))
		return fmt.Errorf("register asset %s: %w", asset.ID, err)
	}

	for i := range asset.Columns {
		col := &asset.Columns[i]
		examplesJSON, err := json.Marshal(col.ExampleValues)
		if err != nil {
			return fmt.Errorf("marshal example values for %s.%s: %w", asset.ID, col.Name, err)
		}
		err = s.db.Upsert(ctx, dictionaryTable,
			[]string{
				"table_id", "column_name", "data_type", "nullable", "description",
				"classification", "regex_pattern", "example_values",
			},
			[]string{"table_id", "column_name"},
			asset.ID, col.Name, col.DataType, col.Nullable, col.Description,
			string(col.Classification), col.RegexPattern, string(examplesJSON),
		)
		if err != nil {
			s.log.Warn("failed to register column",
				zap.String("table_id", asset.ID), zap.String("column", col.Name), zap.Error(err))
			return fmt.Errorf("register column %s.%s: %w", asset.ID, col.Name, err)
		}
	}

	s.log.Info("registered asset metadata",
		zap.String("table_id", asset.ID), zap.Int("columns", len(asset.Columns)))
	return nil
}

// Get returns the asset with its columns populated, or ErrNotFound.
func (s *Store) Get(ctx context.Context, assetID string) (*Asset, error) {
	var snapshot string
	err := s.db.QueryRowContext(ctx,
		"SELECT metadata_json FROM tb_metadata WHERE table_id = ?", assetID).Scan(&snapshot)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get asset %s: %w", assetID, err)
	}

	var asset Asset
	if err := json.Unmarshal([]byte(snapshot), &asset); err != nil {
		return nil, fmt.Errorf("decode snapshot for asset %s: %w", assetID, err)
	}

	columns, err := s.loadColumns(ctx, assetID)
	if err != nil {
		return nil, err
	}
	// The dictionary is authoritative for columns; the snapshot may lag.
	if columns != nil {
		asset.Columns = columns
	}
	return &asset, nil
}

func (s *Store) loadColumns(ctx context.Context, assetID string) ([]Column, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT column_name, data_type, nullable, description, classification, regex_pattern, example_values
		FROM tb_data_dictionary WHERE table_id = ? ORDER BY column_name`, assetID)
	if err != nil {
		return nil, fmt.Errorf("load columns for asset %s: %w", assetID, err)
	}
	defer rows.Close()

	var columns []Column
	for rows.Next() {
		var (
			col          Column
			description  sql.NullString
			regexPattern sql.NullString
			examplesJSON sql.NullString
		)
		if err := rows.Scan(&col.Name, &col.DataType, &col.Nullable, &description,
			&col.Classification, &regexPattern, &examplesJSON); err != nil {
			return nil, fmt.Errorf("scan column for asset %s: %w", assetID, err)
		}
		col.Description = description.String
		col.RegexPattern = regexPattern.String
		if examplesJSON.Valid && examplesJSON.String != "" {
			if err := json.Unmarshal([]byte(examplesJSON.String), &col.ExampleValues); err != nil {
				return nil, fmt.Errorf("decode example values for %s.%s: %w", assetID, col.Name, err)
			}
		}
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns for asset %s: %w", assetID, err)
	}
	return columns, nil
}

// ListIDs returns every registered asset identifier.
func (s *Store) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT table_id FROM tb_metadata ORDER BY table_id")
	if err != nil {
		return nil, fmt.Errorf("list asset ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan asset id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate asset ids: %w", err)
	}
	return ids, nil
}

// ListAll returns every registered asset. Implemented as list-then-fetch,
// which is O(n) round trips; fine at the tens-to-hundreds scale this store
// serves.
func (s *Store) ListAll(ctx context.Context) ([]*Asset, error) {
	ids, err := s.ListIDs(ctx)
	if err != nil {
		return nil, err
	}

	assets := make([]*Asset, 0, len(ids))
	for _, id := range ids {
		asset, err := s.Get(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		assets = append(assets, asset)
	}
	return assets, nil
}
