// Package sink writes normalized retail records to the analytical warehouse
// (DuckDB) and the relational store (Postgres). Both are append-only.
package sink

import (
	"context"
	"strings"

	"github.com/sells-group/retail-pipeline/internal/model"
)

// Sink is an append-only table destination.
type Sink interface {
	// Name identifies the sink in logs ("warehouse", "relational").
	Name() string
	// Ensure creates the destination table when missing.
	Ensure(ctx context.Context) error
	// Append adds records and returns how many were written.
	Append(ctx context.Context, records []model.Record) (int64, error)
}

// Column pairs a canonical column with its type in each sink.
type Column struct {
	Name       string
	Warehouse  string
	Relational string
}

// Schema is the fixed 15-column layout in model.Columns order.
var Schema = []Column{
	{model.ColDate, "VARCHAR", "VARCHAR(10)"},
	{model.ColStoreID, "VARCHAR", "VARCHAR(50)"},
	{model.ColProductID, "VARCHAR", "VARCHAR(50)"},
	{model.ColCategory, "VARCHAR", "VARCHAR(100)"},
	{model.ColRegion, "VARCHAR", "VARCHAR(100)"},
	{model.ColInventoryLevel, "DOUBLE", "DOUBLE PRECISION"},
	{model.ColUnitsSold, "DOUBLE", "DOUBLE PRECISION"},
	{model.ColUnitsOrdered, "DOUBLE", "DOUBLE PRECISION"},
	{model.ColDemandForecast, "DOUBLE", "DOUBLE PRECISION"},
	{model.ColPrice, "DOUBLE", "DOUBLE PRECISION"},
	{model.ColDiscount, "DOUBLE", "DOUBLE PRECISION"},
	{model.ColWeatherCondition, "VARCHAR", "VARCHAR(100)"},
	{model.ColHolidayPromotion, "INTEGER", "INTEGER"},
	{model.ColCompetitorPricing, "DOUBLE", "DOUBLE PRECISION"},
	{model.ColSeasonality, "VARCHAR", "VARCHAR(50)"},
}

// WarehouseDDL returns the CREATE TABLE statement for the DuckDB sink.
func WarehouseDDL(table string) string {
	return createTable(table, func(c Column) string { return c.Warehouse })
}

// RelationalDDL returns the CREATE TABLE statement for the Postgres sink.
func RelationalDDL(table string) string {
	return createTable(table, func(c Column) string { return c.Relational })
}

func createTable(table string, typeOf func(Column) string) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS ")
	b.WriteString(quoteTable(table))
	b.WriteString(" (\n")
	for i, c := range Schema {
		b.WriteString("    ")
		b.WriteString(quoteIdent(c.Name))
		b.WriteString(" ")
		b.WriteString(typeOf(c))
		if i < len(Schema)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString(")")
	return b.String()
}

// quoteTable quotes each part of an optionally schema-qualified name. Both
// DuckDB and Postgres accept double-quoted identifiers.
func quoteTable(table string) string {
	parts := strings.Split(table, ".")
	for i, p := range parts {
		parts[i] = quoteIdent(p)
	}
	return strings.Join(parts, ".")
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// splitTable returns schema and table name; schema is empty when unqualified.
func splitTable(table string) (string, string) {
	if i := strings.LastIndex(table, "."); i >= 0 {
		return table[:i], table[i+1:]
	}
	return "", table
}
