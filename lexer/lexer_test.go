package lexer_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyleconroy/tdlineage/lexer"
	"github.com/kyleconroy/tdlineage/token"
)

func allTokens(t *testing.T, sql string) []lexer.Item {
	t.Helper()
	l := lexer.New(strings.NewReader(sql))
	var items []lexer.Item
	for {
		it := l.NextToken()
		if it.Token == token.EOF {
			break
		}
		items = append(items, it)
	}
	return items
}

func TestLexesSimpleSelect(t *testing.T) {
	items := allTokens(t, "SELECT order_id FROM orders")
	require.Len(t, items, 4)
	assert.Equal(t, token.SELECT, items[0].Token)
	assert.Equal(t, token.IDENT, items[1].Token)
	assert.Equal(t, "order_id", items[1].Value)
	assert.Equal(t, token.FROM, items[2].Token)
	assert.Equal(t, token.IDENT, items[3].Token)
	assert.Equal(t, "orders", items[3].Value)
}

func TestLexesStringLiteralStripsQuotes(t *testing.T) {
	items := allTokens(t, "WHERE status = 'SHIPPED'")
	require.Len(t, items, 4)
	assert.Equal(t, token.STRING, items[3].Token)
	assert.Equal(t, "SHIPPED", items[3].Value)
}

func TestLexesEscapedQuoteInStringLiteral(t *testing.T) {
	items := allTokens(t, "SELECT 'it''s shipped'")
	require.Len(t, items, 2)
	assert.Equal(t, token.STRING, items[1].Token)
	assert.Equal(t, "it's shipped", items[1].Value)
}

func TestLexesQuotedIdentifierMarksQuoted(t *testing.T) {
	items := allTokens(t, `SELECT "Order Id" FROM orders`)
	require.Len(t, items, 4)
	assert.Equal(t, token.IDENT, items[1].Token)
	assert.Equal(t, "Order Id", items[1].Value)
	assert.True(t, items[1].Quoted)
}

func TestLexesNumberLiterals(t *testing.T) {
	items := allTokens(t, "1 42 3.14")
	require.Len(t, items, 3)
	for _, it := range items {
		assert.Equal(t, token.NUMBER, it.Token)
	}
	assert.Equal(t, "3.14", items[2].Value)
}

func TestLexesOperators(t *testing.T) {
	items := allTokens(t, "<= >= <> != || ->")
	require.Len(t, items, 6)
	assert.Equal(t, token.LTE, items[0].Token)
	assert.Equal(t, token.GTE, items[1].Token)
	assert.Equal(t, token.NEQ, items[2].Token)
	assert.Equal(t, token.NEQ, items[3].Token)
	assert.Equal(t, token.CONCAT, items[4].Token)
	assert.Equal(t, token.ARROW, items[5].Token)
}

func TestLexesLineComment(t *testing.T) {
	items := allTokens(t, "SELECT 1 -- trailing comment\nFROM orders")
	var kinds []token.Token
	for _, it := range items {
		kinds = append(kinds, it.Token)
	}
	// The lexer surfaces comments as their own token; filtering them out is
	// the parser's job (it skips COMMENT/WHITESPACE tokens as it reads).
	assert.Contains(t, kinds, token.COMMENT)
	assert.Contains(t, kinds, token.FROM)
}

func TestLexerTracksLineAndColumn(t *testing.T) {
	items := allTokens(t, "SELECT 1\nFROM orders")
	var fromItem *lexer.Item
	for i := range items {
		if items[i].Token == token.FROM {
			fromItem = &items[i]
			break
		}
	}
	require.NotNil(t, fromItem)
	assert.Equal(t, 2, fromItem.Pos.Line)
	assert.Equal(t, 1, fromItem.Pos.Column)
}
