package database

import (
	"fmt"
	"strconv"
)

// Dialect covers the few aggregate spellings that differ between backends.
type Dialect interface {
	Name() string
	Median(column string) string
	Quantile(column string, p float64) string
}

type duckDBDialect struct{}

func (duckDBDialect) Name() string { return "duckdb" }

func (duckDBDialect) Median(column string) string {
	return fmt.Sprintf("median(%s)", column)
}

func (duckDBDialect) Quantile(column string, p float64) string {
	return fmt.Sprintf("quantile_cont(%s, %s)", column, formatP(p))
}

type clickHouseDialect struct{}

func (clickHouseDialect) Name() string { return "clickhouse" }

func (clickHouseDialect) Median(column string) string {
	return fmt.Sprintf("quantileExactInclusive(0.5)(%s)", column)
}

func (clickHouseDialect) Quantile(column string, p float64) string {
	return fmt.Sprintf("quantileExactInclusive(%s)(%s)", formatP(p), column)
}

// DuckDBDialect is the dialect used by DB.
var DuckDBDialect Dialect = duckDBDialect{}

// ClickHouseDialect is the dialect used by ClickHouseDB.
var ClickHouseDialect Dialect = clickHouseDialect{}

func formatP(p float64) string {
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	return strconv.FormatFloat(p, 'f', -1, 64)
}
