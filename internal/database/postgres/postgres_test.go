package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPostgresQuoteIdentifier(t *testing.T) {
	h := postgresHandler{}
	assert.Equal(t, `"orders"`, h.QuoteIdentifier("orders"))
	assert.Equal(t, `"weird""name"`, h.QuoteIdentifier(`weird"name`))
}

func TestPostgresRebind(t *testing.T) {
	h := postgresHandler{}
	assert.Equal(t,
		"SELECT * FROM t WHERE a = $1 AND b = $2",
		h.Rebind("SELECT * FROM t WHERE a = ? AND b = ?"))
}

func TestPostgresUpsertSQL(t *testing.T) {
	h := postgresHandler{}
	sql := h.UpsertSQL("tb_metadata", []string{"table_id", "table_name"}, []string{"table_id"})
	assert.Equal(t,
		`INSERT INTO "tb_metadata" ("table_id", "table_name") VALUES (?, ?) ON CONFLICT ("table_id") DO UPDATE SET "table_name"=EXCLUDED."table_name"`,
		sql)
}

func TestPostgresCreateTableSQL(t *testing.T) {
	h := postgresHandler{}
	assert.Equal(t, `CREATE TABLE IF NOT EXISTS "t" (id INT)`, h.CreateTableSQL("t", "id INT"))
}

func TestPostgresDDLTypes(t *testing.T) {
	h := postgresHandler{}
	assert.Equal(t, "TEXT", h.DDLType("TEXT"))
	assert.Equal(t, "TIMESTAMPTZ", h.DDLType("DATETIME"))
	assert.Equal(t, "BOOLEAN", h.DDLType("BOOL"))
	assert.Equal(t, "DOUBLE PRECISION", h.DDLType("FLOAT"))
	assert.Equal(t, "JSONB", h.DDLType("JSON"))
}
