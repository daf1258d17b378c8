package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// ReadSQLStatementsFromFile splits a SQL file on ";\n" boundaries into
// trimmed, non-empty statements.
func ReadSQLStatementsFromFile(filePath string) ([]string, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	sqlStatements := strings.Split(string(content), ";\n")
	var trimmedStatements []string
	for _, stmt := range sqlStatements {
		trimmedStmt := strings.TrimSpace(stmt)
		if trimmedStmt != "" {
			trimmedStatements = append(trimmedStatements, trimmedStmt)
		}
	}
	return trimmedStatements, nil
}

// WriteStringToFile writes content to path, creating or truncating it.
func WriteStringToFile(path, content string) error {
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write file '%s': %w", path, err)
	}
	return nil
}

// WriteJSONFile marshals v with indentation and writes it to path.
func WriteJSONFile(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON for '%s': %w", path, err)
	}
	return WriteStringToFile(path, string(data))
}

// ReadJSONFile unmarshals the JSON file at path into v.
func ReadJSONFile(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file '%s': %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse JSON in '%s': %w", path, err)
	}
	return nil
}

// GetDefaultOutputFilePath names the output file for a command against a
// briefing package.
func GetDefaultOutputFilePath(packageID, commandName string) string {
	switch commandName {
	case "build-context":
		return fmt.Sprintf("%s_context.json", packageID)
	default:
		return fmt.Sprintf("%s_%s.txt", packageID, commandName)
	}
}

// ParseIDList splits a comma-separated id list, dropping empty entries.
func ParseIDList(flag string) []string {
	if flag == "" {
		return nil
	}
	var ids []string
	for _, part := range strings.Split(flag, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			ids = append(ids, part)
		}
	}
	return ids
}
