package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadSQLStatementsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.sql")
	content := "CREATE TABLE a (id INT);\nCREATE TABLE b (id INT);\n\n  \n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	statements, err := ReadSQLStatementsFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"CREATE TABLE a (id INT)", "CREATE TABLE b (id INT)"}, statements)
}

func TestWriteAndReadJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")

	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	require.NoError(t, WriteJSONFile(path, payload{Name: "x", Count: 3}))

	var got payload
	require.NoError(t, ReadJSONFile(path, &got))
	assert.Equal(t, payload{Name: "x", Count: 3}, got)
}

func TestReadJSONFileErrors(t *testing.T) {
	var v map[string]interface{}
	assert.Error(t, ReadJSONFile("/does/not/exist.json", &v))

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	assert.Error(t, ReadJSONFile(path, &v))
}

func TestGetDefaultOutputFilePath(t *testing.T) {
	assert.Equal(t, "pkg1_context.json", GetDefaultOutputFilePath("pkg1", "build-context"))
	assert.Equal(t, "pkg1_search.txt", GetDefaultOutputFilePath("pkg1", "search"))
}

func TestParseIDList(t *testing.T) {
	assert.Nil(t, ParseIDList(""))
	assert.Equal(t, []string{"a"}, ParseIDList("a"))
	assert.Equal(t, []string{"a", "b", "c"}, ParseIDList(" a, b ,c, "))
}
