package mysql

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMySQLQuoteIdentifier(t *testing.T) {
	h := mysqlHandler{}
	assert.Equal(t, "`orders`", h.QuoteIdentifier("orders"))
	assert.Equal(t, "`weird``name`", h.QuoteIdentifier("weird`name"))
}

func TestMySQLRebindIsIdentity(t *testing.T) {
	h := mysqlHandler{}
	query := "SELECT * FROM t WHERE a = ? AND b = ?"
	assert.Equal(t, query, h.Rebind(query))
}

func TestMySQLUpsertSQL(t *testing.T) {
	h := mysqlHandler{}
	sql := h.UpsertSQL("tb_metadata", []string{"table_id", "table_name"}, []string{"table_id"})
	assert.Equal(t,
		"INSERT INTO `tb_metadata` (`table_id`, `table_name`) VALUES (?, ?) ON DUPLICATE KEY UPDATE `table_name`=VALUES(`table_name`)",
		sql)
}

func TestMySQLCreateTableSQL(t *testing.T) {
	h := mysqlHandler{}
	assert.Equal(t, "CREATE TABLE IF NOT EXISTS `t` (id INT)", h.CreateTableSQL("t", "id INT"))
}

func TestMySQLDDLTypes(t *testing.T) {
	h := mysqlHandler{}
	assert.Equal(t, "TEXT", h.DDLType("TEXT"))
	assert.Equal(t, "DATETIME", h.DDLType("DATETIME"))
	assert.Equal(t, "BOOLEAN", h.DDLType("BOOL"))
	assert.Equal(t, "DOUBLE", h.DDLType("FLOAT"))
	assert.Equal(t, "JSON", h.DDLType("JSON"))
}
