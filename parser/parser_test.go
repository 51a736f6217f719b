package parser_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyleconroy/tdlineage/ast"
	"github.com/kyleconroy/tdlineage/parser"
)

func parseOne(t *testing.T, sql string) ast.Statement {
	t.Helper()
	stmts, err := parser.Parse(context.Background(), strings.NewReader(sql))
	require.NoError(t, err)
	require.Len(t, stmts, 1)
	return stmts[0]
}

func TestParsesSimpleSelect(t *testing.T) {
	stmt := parseOne(t, "SELECT order_id, status FROM orders")
	sel, ok := stmt.(*ast.SelectQuery)
	require.True(t, ok)
	require.Len(t, sel.Columns, 2)
	require.NotNil(t, sel.From)
	require.Len(t, sel.From.Tables, 1)
	table, ok := sel.From.Tables[0].Table.Table.(*ast.TableIdentifier)
	require.True(t, ok)
	assert.Equal(t, "orders", table.Table)
}

func TestParsesWithCTE(t *testing.T) {
	stmt := parseOne(t, `
		WITH recent AS (
			SELECT customer_id FROM customers WHERE region = 'EU'
		)
		SELECT customer_id FROM recent
	`)
	sel, ok := stmt.(*ast.SelectQuery)
	require.True(t, ok)
	require.Len(t, sel.With, 1)
	assert.Equal(t, "recent", sel.With[0].Name)
	require.NotNil(t, sel.With[0].Query)
}

func TestParsesJoinVariants(t *testing.T) {
	cases := []struct {
		sql      string
		joinType ast.JoinType
	}{
		{"SELECT 1 FROM a JOIN b ON a.id = b.id", ast.JoinInner},
		{"SELECT 1 FROM a INNER JOIN b ON a.id = b.id", ast.JoinInner},
		{"SELECT 1 FROM a LEFT JOIN b ON a.id = b.id", ast.JoinLeft},
		{"SELECT 1 FROM a LEFT OUTER JOIN b ON a.id = b.id", ast.JoinLeft},
		{"SELECT 1 FROM a RIGHT JOIN b ON a.id = b.id", ast.JoinRight},
		{"SELECT 1 FROM a FULL JOIN b ON a.id = b.id", ast.JoinFull},
		{"SELECT 1 FROM a CROSS JOIN b", ast.JoinCross},
		{"SELECT 1 FROM a, b", ast.JoinCross},
	}
	for _, c := range cases {
		stmt := parseOne(t, c.sql)
		sel := stmt.(*ast.SelectQuery)
		require.Len(t, sel.From.Tables, 2, c.sql)
		require.NotNil(t, sel.From.Tables[1].Join, c.sql)
		assert.Equal(t, c.joinType, sel.From.Tables[1].Join.Type, c.sql)
	}
}

func TestParsesCreateVolatileTable(t *testing.T) {
	stmt := parseOne(t, `
		CREATE VOLATILE TABLE staging_orders AS (
			SELECT order_id FROM orders
		) WITH DATA ON COMMIT PRESERVE ROWS
	`)
	cq, ok := stmt.(*ast.CreateQuery)
	require.True(t, ok)
	assert.True(t, cq.Volatile)
	assert.False(t, cq.Temporary)
	assert.Equal(t, "staging_orders", cq.Table.Table)
	require.NotNil(t, cq.AsSelect)
}

func TestParsesInsertSelect(t *testing.T) {
	stmt := parseOne(t, `
		INSERT INTO reporting.orders_summary (order_id, status)
		SELECT order_id, status FROM orders WHERE status != 'CANCELLED'
	`)
	ins, ok := stmt.(*ast.InsertQuery)
	require.True(t, ok)
	assert.Equal(t, "reporting.orders_summary", ins.Table.QualifiedName())
	assert.Equal(t, []string{"order_id", "status"}, ins.Columns)
	require.NotNil(t, ins.Select)
}

func TestParsesUpdate(t *testing.T) {
	stmt := parseOne(t, `UPDATE orders SET status = 'SHIPPED' WHERE order_id = 1`)
	upd, ok := stmt.(*ast.UpdateQuery)
	require.True(t, ok)
	assert.Equal(t, "orders", upd.Table.Table)
	require.Len(t, upd.Assignments, 1)
	assert.Equal(t, "status", upd.Assignments[0].Column)
	require.NotNil(t, upd.Where)
}

func TestParsesDelete(t *testing.T) {
	stmt := parseOne(t, `DELETE FROM orders WHERE status = 'CANCELLED'`)
	del, ok := stmt.(*ast.DeleteQuery)
	require.True(t, ok)
	assert.Equal(t, "orders", del.Table.Table)
	require.NotNil(t, del.Where)
}

func TestParsesMerge(t *testing.T) {
	stmt := parseOne(t, `
		MERGE INTO orders_summary t
		USING orders s
		ON t.order_id = s.order_id
		WHEN MATCHED THEN UPDATE SET status = s.status
		WHEN NOT MATCHED THEN INSERT (order_id, status) VALUES (s.order_id, s.status)
	`)
	m, ok := stmt.(*ast.MergeQuery)
	require.True(t, ok)
	assert.Equal(t, "orders_summary", m.Target.Table)
	require.NotNil(t, m.Source)
	require.NotNil(t, m.On)
	require.Len(t, m.Whens, 2)
	assert.True(t, m.Whens[0].Matched)
	require.Len(t, m.Whens[0].Assignments, 1)
	assert.Equal(t, "status", m.Whens[0].Assignments[0].Column)
	assert.False(t, m.Whens[1].Matched)
	assert.Equal(t, []string{"order_id", "status"}, m.Whens[1].InsertColumns)
	require.Len(t, m.Whens[1].InsertValues, 2)
}

func TestParsesCall(t *testing.T) {
	stmt := parseOne(t, `CALL refresh_customer_summary(1, 'EU')`)
	call, ok := stmt.(*ast.Call)
	require.True(t, ok)
	assert.Equal(t, "refresh_customer_summary", call.Name)
	require.Len(t, call.Arguments, 2)
}

func TestExpressionPrecedenceAndVsOr(t *testing.T) {
	stmt := parseOne(t, `SELECT 1 FROM orders WHERE a = 1 AND b = 2 OR c = 3`)
	sel := stmt.(*ast.SelectQuery)
	top, ok := sel.Where.(*ast.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, "OR", strings.ToUpper(top.Op))
	left, ok := top.Left.(*ast.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, "AND", strings.ToUpper(left.Op))
}

func TestParsesInListAndSubquery(t *testing.T) {
	stmt := parseOne(t, `SELECT 1 FROM orders WHERE status IN ('SHIPPED', 'DELIVERED')`)
	sel := stmt.(*ast.SelectQuery)
	in, ok := sel.Where.(*ast.InExpr)
	require.True(t, ok)
	assert.False(t, in.Not)
	require.Len(t, in.List, 2)

	stmt2 := parseOne(t, `SELECT 1 FROM orders o WHERE o.customer_id IN (SELECT customer_id FROM customers WHERE region = 'EU')`)
	sel2 := stmt2.(*ast.SelectQuery)
	in2, ok := sel2.Where.(*ast.InExpr)
	require.True(t, ok)
	require.NotNil(t, in2.Query)
}

func TestParsesLike(t *testing.T) {
	stmt := parseOne(t, `SELECT 1 FROM customers WHERE name NOT LIKE 'A%'`)
	sel := stmt.(*ast.SelectQuery)
	like, ok := sel.Where.(*ast.LikeExpr)
	require.True(t, ok)
	assert.True(t, like.Not)
}

func TestParsesBetween(t *testing.T) {
	stmt := parseOne(t, `SELECT 1 FROM orders WHERE order_date BETWEEN DATE '2024-01-01' AND DATE '2024-01-31'`)
	sel := stmt.(*ast.SelectQuery)
	bt, ok := sel.Where.(*ast.BetweenExpr)
	require.True(t, ok)
	_, lowIsDate := bt.Low.(*ast.DateTimeLiteral)
	assert.True(t, lowIsDate)
}

func TestParsesIsNull(t *testing.T) {
	stmt := parseOne(t, `SELECT 1 FROM orders WHERE shipped_at IS NOT NULL`)
	sel := stmt.(*ast.SelectQuery)
	isNull, ok := sel.Where.(*ast.IsNullExpr)
	require.True(t, ok)
	assert.True(t, isNull.Not)
}

func TestParsesCaseExpression(t *testing.T) {
	stmt := parseOne(t, `
		SELECT CASE WHEN status = 'SHIPPED' THEN 1 WHEN status = 'CANCELLED' THEN 0 ELSE -1 END
		FROM orders
	`)
	sel := stmt.(*ast.SelectQuery)
	require.Len(t, sel.Columns, 1)
	ce, ok := sel.Columns[0].(*ast.CaseExpr)
	require.True(t, ok)
	assert.Nil(t, ce.Operand)
	require.Len(t, ce.Whens, 2)
	require.NotNil(t, ce.Else)
}

func TestParsesCastToDate(t *testing.T) {
	stmt := parseOne(t, `SELECT 1 FROM orders WHERE CAST(order_date AS DATE) = DATE '2024-01-01'`)
	sel := stmt.(*ast.SelectQuery)
	cmp, ok := sel.Where.(*ast.BinaryExpr)
	require.True(t, ok)
	cast, ok := cmp.Left.(*ast.CastExpr)
	require.True(t, ok)
	assert.Equal(t, "DATE", strings.ToUpper(cast.Type))
}

func TestParsesExtract(t *testing.T) {
	stmt := parseOne(t, `SELECT EXTRACT(YEAR FROM order_date) FROM orders`)
	sel := stmt.(*ast.SelectQuery)
	require.Len(t, sel.Columns, 1)
	ex, ok := sel.Columns[0].(*ast.ExtractExpr)
	require.True(t, ok)
	assert.Equal(t, "YEAR", strings.ToUpper(ex.Unit))
}

func TestParsesMultipleStatements(t *testing.T) {
	stmts, err := parser.Parse(context.Background(), strings.NewReader(`
		SELECT order_id FROM orders;
		SELECT customer_id FROM customers;
	`))
	require.NoError(t, err)
	assert.Len(t, stmts, 2)
}
