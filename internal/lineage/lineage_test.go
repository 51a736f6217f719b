package lineage_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyleconroy/tdlineage/internal/lineage"
	"github.com/kyleconroy/tdlineage/parser"
)

func extract(t *testing.T, sql string) *lineage.Report {
	t.Helper()
	stmts, err := parser.Parse(context.Background(), strings.NewReader(sql))
	require.NoError(t, err)
	report, err := lineage.Extract(stmts)
	require.NoError(t, err)
	return report
}

func TestBaseTablesAndAliasedColumns(t *testing.T) {
	report := extract(t, `
		SELECT o.order_id, c.name
		FROM orders o
		JOIN customers c ON o.customer_id = c.customer_id
		WHERE o.status = 'SHIPPED'
	`)

	assert.Equal(t, []string{"customers", "orders"}, report.Tables)
	assert.Equal(t, []string{"customer_id", "order_id", "status"}, report.Variables["orders"])
	assert.Equal(t, []string{"customer_id", "name"}, report.Variables["customers"])

	conds := report.Values["orders"]["status"]
	require.Len(t, conds, 1)
	assert.Equal(t, "=", conds[0].Op)
	assert.Equal(t, "SHIPPED", conds[0].Value)
}

func TestCTEsAreExcludedFromBaseTables(t *testing.T) {
	report := extract(t, `
		WITH recent AS (
			SELECT customer_id FROM customers WHERE region = 'EU'
		)
		SELECT r.customer_id FROM recent r
	`)

	assert.Equal(t, []string{"recent"}, report.CTEs)
	assert.Equal(t, []string{"customers"}, report.Tables)
	assert.NotContains(t, report.Tables, "recent")
}

func TestVolatileTableIsTempNotCreated(t *testing.T) {
	report := extract(t, `
		CREATE VOLATILE TABLE staging_orders AS (
			SELECT order_id FROM orders
		) WITH DATA ON COMMIT PRESERVE ROWS
	`)

	assert.Equal(t, []string{"staging_orders"}, report.TempTables)
	assert.Empty(t, report.CreatedObjects)
}

func TestPermanentCreateTableIsCreatedObject(t *testing.T) {
	report := extract(t, `
		CREATE TABLE reporting.orders_summary AS (
			SELECT order_id, status FROM orders
		) WITH DATA
	`)

	assert.Equal(t, []string{"reporting.orders_summary"}, report.CreatedObjects)
	assert.Empty(t, report.TempTables)
}

func TestInsertTargetIsWriteTargetNotBaseTable(t *testing.T) {
	report := extract(t, `
		INSERT INTO reporting.orders_summary (order_id, status)
		SELECT order_id, status FROM orders WHERE status != 'CANCELLED'
	`)

	assert.Equal(t, []string{"reporting.orders_summary"}, report.WriteTargets)
	assert.Equal(t, []string{"orders"}, report.Tables)
	assert.Empty(t, report.Values["orders"]["status"])
}

func TestInClauseWithFunctionStack(t *testing.T) {
	report := extract(t, `
		SELECT order_id FROM orders
		WHERE UPPER(TRIM(status)) IN ('SHIPPED', 'DELIVERED')
	`)

	conds := report.Values["orders"]["status"]
	require.Len(t, conds, 1)
	assert.Equal(t, "in", conds[0].Op)
	assert.Equal(t, []interface{}{"SHIPPED", "DELIVERED"}, conds[0].Values)
	assert.Equal(t, "upper", conds[0].Fn)
	require.Len(t, conds[0].FnStack, 2)
	assert.Equal(t, "UPPER", conds[0].FnStack[0].Fn)
	assert.Equal(t, "TRIM", conds[0].FnStack[1].Fn)
}

func TestInClauseWithFunctionWrappedElement(t *testing.T) {
	report := extract(t, `
		SELECT * FROM sales.order_items b WHERE b.status IN (UPPER('a'), 'b')
	`)

	conds := report.Values["sales.order_items"]["status"]
	require.Len(t, conds, 1)
	assert.Equal(t, "in", conds[0].Op)
	assert.Equal(t, []interface{}{"a", "b"}, conds[0].Values)
	require.Len(t, conds[0].ValueFns, 2)
	assert.Equal(t, "UPPER", conds[0].ValueFns[0])
	assert.Nil(t, conds[0].ValueFns[1])
}

func TestBetweenWithDateLiterals(t *testing.T) {
	report := extract(t, `
		SELECT order_id FROM orders
		WHERE order_date BETWEEN DATE '2024-01-01' AND DATE '2024-01-31'
	`)

	conds := report.Values["orders"]["order_date"]
	require.Len(t, conds, 1)
	assert.Equal(t, "between", conds[0].Op)
	assert.Equal(t, "DATE '2024-01-01'", conds[0].Low)
	assert.Equal(t, "DATE '2024-01-31'", conds[0].High)
}

func TestNotInWrappedByNotExpr(t *testing.T) {
	report := extract(t, `
		SELECT order_id FROM orders WHERE NOT (status IN ('CANCELLED', 'RETURNED'))
	`)

	conds := report.Values["orders"]["status"]
	require.Len(t, conds, 1)
	assert.Equal(t, "not in", conds[0].Op)
}

func TestFunctionAndProcedureInventory(t *testing.T) {
	report := extract(t, `
		SELECT UPPER(name), COUNT(*) FROM customers GROUP BY UPPER(name);
		CALL refresh_customer_summary(1, 'EU')
	`)

	var names []string
	for _, f := range report.Functions {
		names = append(names, f.Name+":"+f.Type)
	}
	assert.Contains(t, names, "UPPER:function")
	assert.Contains(t, names, "COUNT:function")
	assert.Contains(t, names, "refresh_customer_summary:procedure")
}

func TestPseudocodeRendersJoinAndWhere(t *testing.T) {
	report := extract(t, `
		SELECT o.order_id
		FROM orders o
		JOIN customers c ON o.customer_id = c.customer_id
		WHERE o.status = 'SHIPPED'
	`)

	pcs, ok := report.Pseudocode["Operation 1"]
	require.True(t, ok)
	require.Len(t, pcs, 1)
	pc := pcs[0]
	assert.Equal(t, "(orders.customer_id == customers.customer_id)", pc.Join)
	assert.Equal(t, "(orders.status == 'SHIPPED')", pc.Where)
}

func TestSelectStarEmitsWarning(t *testing.T) {
	report := extract(t, `SELECT * FROM orders`)

	assert.Equal(t, []string{"*"}, report.Variables["orders"])
	assert.Contains(t, report.Warnings, "select_star_used: table orders has '*' referenced")
}

func TestAmbiguousUnqualifiedColumnWarns(t *testing.T) {
	report := extract(t, `
		SELECT name FROM customers, orders WHERE customers.customer_id = orders.customer_id
	`)

	found := false
	for _, w := range report.Warnings {
		if strings.Contains(w, `column 'name' is ambiguous`) {
			found = true
		}
	}
	assert.True(t, found)
}

func TestCorrelatedSubqueryResolvesOuterAlias(t *testing.T) {
	report := extract(t, `
		SELECT o.order_id FROM orders o
		WHERE EXISTS (
			SELECT 1 FROM returns r WHERE r.order_id = o.order_id
		)
	`)

	assert.Contains(t, report.Tables, "returns")
	assert.Contains(t, report.Variables["orders"], "order_id")

	pcs, ok := report.Pseudocode["Operation 1"]
	require.True(t, ok)
	require.Len(t, pcs, 1)
	assert.Contains(t, pcs[0].Where, "EXISTS(Operation 1.1)")
}

func TestDeleteWhereSubqueryContributesBaseTableAndValues(t *testing.T) {
	report := extract(t, `
		DELETE FROM orders WHERE order_id IN (
			SELECT order_id FROM returns WHERE reason = 'FRAUD'
		)
	`)

	assert.Contains(t, report.Tables, "returns")
	assert.NotContains(t, report.Tables, "orders")
	conds := report.Values["returns"]["reason"]
	require.Len(t, conds, 1)
	assert.Equal(t, "FRAUD", conds[0].Value)

	pcs, ok := report.Pseudocode["Operation 1"]
	require.True(t, ok)
	require.Len(t, pcs, 1)
	assert.Equal(t, "(returns.reason == 'FRAUD')", pcs[0].Where)
}

func TestUpdateWhereSubqueryContributesBaseTable(t *testing.T) {
	report := extract(t, `
		UPDATE orders SET status = 'HELD' WHERE customer_id IN (
			SELECT customer_id FROM flagged_customers WHERE reason = 'RISK'
		)
	`)

	assert.Contains(t, report.Tables, "flagged_customers")
	conds := report.Values["flagged_customers"]["reason"]
	require.Len(t, conds, 1)
	assert.Equal(t, "RISK", conds[0].Value)
}

func TestMergeMatchedClauseSubqueryContributesBaseTable(t *testing.T) {
	report := extract(t, `
		MERGE INTO orders o
		USING staging s
		ON o.order_id = s.order_id
		WHEN MATCHED THEN UPDATE SET total = (SELECT SUM(amount) FROM order_items WHERE order_id = o.order_id)
		WHEN NOT MATCHED THEN INSERT (order_id, total) VALUES (s.order_id, s.total)
	`)

	assert.Contains(t, report.Tables, "order_items")
	assert.Contains(t, report.Tables, "staging")
}

func TestMultiStatementScriptLabelsEachTopLevelOperation(t *testing.T) {
	report := extract(t, `
		SELECT order_id FROM orders;
		SELECT customer_id FROM customers;
	`)

	assert.Equal(t, 2, report.Meta.Statements)
	first, hasFirst := report.Pseudocode["Operation 1"]
	second, hasSecond := report.Pseudocode["Operation 2"]
	require.True(t, hasFirst)
	require.True(t, hasSecond)
	require.Len(t, first, 1)
	require.Len(t, second, 1)
}
