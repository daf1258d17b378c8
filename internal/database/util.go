package database

import (
	"fmt"
	"strings"
)

// ddlTokens are the portable type tokens DDL bodies may use.
var ddlTokens = []string{"{TEXT}", "{DATETIME}", "{BOOL}", "{FLOAT}", "{JSON}"}

// ExpandDDLTypes replaces portable type tokens in a DDL body with the
// dialect's column types.
func ExpandDDLTypes(handler DialectHandler, body string) string {
	for _, token := range ddlTokens {
		name := strings.Trim(token, "{}")
		body = strings.ReplaceAll(body, token, handler.DDLType(name))
	}
	return body
}

// RebindOrdinal rewrites ? placeholders as prefix1, prefix2, ... skipping
// quoted string literals. Used by the postgres ($) and sqlserver (@p) handlers.
func RebindOrdinal(query string, prefix string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inString := false
	for _, r := range query {
		switch {
		case r == '\'':
			inString = !inString
			b.WriteRune(r)
		case r == '?' && !inString:
			n++
			b.WriteString(fmt.Sprintf("%s%d", prefix, n))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Placeholders returns "?, ?, ..." with n entries.
func Placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
