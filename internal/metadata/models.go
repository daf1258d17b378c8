package metadata

import (
	"fmt"
	"time"
)

// Classification is the sensitivity tier of an asset or column.
type Classification string

const (
	ClassificationPublic       Classification = "public"
	ClassificationInternal     Classification = "internal"
	ClassificationConfidential Classification = "confidential"
	ClassificationRestricted   Classification = "restricted"
)

// Valid reports whether c is one of the four enumerated levels.
func (c Classification) Valid() bool {
	switch c {
	case ClassificationPublic, ClassificationInternal, ClassificationConfidential, ClassificationRestricted:
		return true
	}
	return false
}

// Levels returns every classification level in ascending sensitivity order.
func Levels() []Classification {
	return []Classification{
		ClassificationPublic,
		ClassificationInternal,
		ClassificationConfidential,
		ClassificationRestricted,
	}
}

// Column is column-level metadata owned by exactly one Asset.
type Column struct {
	Name           string         `json:"column_name"`
	DataType       string         `json:"data_type"`
	Nullable       bool           `json:"nullable"`
	Description    string         `json:"description,omitempty"`
	Classification Classification `json:"classification"`
	RegexPattern   string         `json:"regex_pattern,omitempty"`
	ExampleValues  []string       `json:"example_values,omitempty"`
}

// Asset is table-level metadata tracked by the store.
type Asset struct {
	ID              string         `json:"table_id"`
	Name            string         `json:"table_name"`
	DatabaseName    string         `json:"database_name"`
	Description     string         `json:"description,omitempty"`
	Owner           string         `json:"owner"`
	OwnerEmail      string         `json:"owner_email,omitempty"`
	CreatedDate     time.Time      `json:"created_date"`
	LastModified    time.Time      `json:"last_modified"`
	Version         string         `json:"version"`
	Classification  Classification `json:"classification"`
	Tags            []string       `json:"tags,omitempty"`
	Columns         []Column       `json:"columns"`
	RowCount        int64          `json:"row_count"`
	SizeMB          float64        `json:"size_mb"`
	UpdateFrequency string         `json:"update_frequency,omitempty"`
}

// Validate checks the invariants a registered asset must satisfy.
func (a *Asset) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("asset id is required")
	}
	if a.Name == "" {
		return fmt.Errorf("asset name is required")
	}
	if a.Owner == "" {
		return fmt.Errorf("asset owner is required")
	}
	if !a.Classification.Valid() {
		return fmt.Errorf("invalid classification %q for asset %s", a.Classification, a.ID)
	}
	for i := range a.Columns {
		col := &a.Columns[i]
		if col.Name == "" {
			return fmt.Errorf("asset %s: column #%d has no name", a.ID, i+1)
		}
		if !col.Classification.Valid() {
			return fmt.Errorf("asset %s: invalid classification %q for column %s", a.ID, col.Classification, col.Name)
		}
	}
	return nil
}

// applyDefaults fills in the fields registration may leave empty.
func (a *Asset) applyDefaults(now time.Time) {
	if a.Version == "" {
		a.Version = "1.0.0"
	}
	if a.UpdateFrequency == "" {
		a.UpdateFrequency = "daily"
	}
	if a.CreatedDate.IsZero() {
		a.CreatedDate = now
	}
	a.LastModified = now
	for i := range a.Columns {
		if a.Columns[i].Classification == "" {
			a.Columns[i].Classification = ClassificationInternal
		}
	}
}
